// Package trie implements the State Trie: an authenticated map from
// Address to Account, stored as a binary Merkle tree keyed by the 160-bit
// address, MSB-first. Nodes are immutable and content-addressed so that
// historic roots remain valid pointers into shared storage.
package trie

import (
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/wire"
)

// Address and Hash alias the shared core types.
type (
	Address = database.Address
	Hash    = database.Hash
	Account = database.Account
)

// addressBits is the number of bits indexed by the trie (20 bytes).
const addressBits = signature.AddressLength * 8

// kind tags which variant a Node holds, the first byte of its encoding.
type kind uint8

const (
	kindEmpty kind = iota
	kindLeaf
	kindBranch
)

// Node is one trie node: exactly one of its kind-specific fields is
// meaningful, matching which Kind it carries.
type Node struct {
	Kind    kind
	Address Address // kindLeaf
	Account Account // kindLeaf
	Left    Hash    // kindBranch
	Right   Hash    // kindBranch
}

func emptyNode() Node { return Node{Kind: kindEmpty} }

// encode returns the canonical byte encoding of the node, hashed to
// produce its content address.
func (n Node) encode() []byte {
	w := wire.NewWriter()
	switch n.Kind {
	case kindEmpty:
		w.Uint8(uint8(kindEmpty))
	case kindLeaf:
		w.Uint8(uint8(kindLeaf))
		w.FixedBytes(n.Address[:])
		accountHash := n.Account.Hash(n.Address)
		w.FixedBytes(accountHash[:])
	case kindBranch:
		w.Uint8(uint8(kindBranch))
		w.FixedBytes(n.Left[:])
		w.FixedBytes(n.Right[:])
	}
	return w.Bytes()
}

// Hash returns the node's content address.
func (n Node) Hash() Hash {
	return signature.Hash256(n.encode())
}

// EncodeNode returns the full canonical encoding of a node for persistence,
// including the leaf's plaintext account (the digest alone isn't enough to
// recover Get results).
func EncodeNode(n Node) []byte {
	w := wire.NewWriter()
	w.Uint8(uint8(n.Kind))
	switch n.Kind {
	case kindLeaf:
		w.FixedBytes(n.Address[:])
		w.VarBytes(database.EncodeAccount(n.Account))
	case kindBranch:
		w.FixedBytes(n.Left[:])
		w.FixedBytes(n.Right[:])
	}
	return w.Bytes()
}

// DecodeNode parses the encoding produced by EncodeNode.
func DecodeNode(data []byte) (Node, error) {
	r := wire.NewReader(data)
	k, err := r.Uint8()
	if err != nil {
		return Node{}, err
	}

	n := Node{Kind: kind(k)}
	switch n.Kind {
	case kindLeaf:
		addr, err := r.FixedBytes(signature.AddressLength)
		if err != nil {
			return Node{}, err
		}
		copy(n.Address[:], addr)

		accRaw, err := r.VarBytes()
		if err != nil {
			return Node{}, err
		}
		acc, err := database.DecodeAccount(accRaw)
		if err != nil {
			return Node{}, err
		}
		n.Account = acc
	case kindBranch:
		left, err := r.FixedBytes(32)
		if err != nil {
			return Node{}, err
		}
		right, err := r.FixedBytes(32)
		if err != nil {
			return Node{}, err
		}
		copy(n.Left[:], left)
		copy(n.Right[:], right)
	}

	return n, nil
}

// Store is the persistence contract the trie needs from storage: content
// addressed get/put of nodes.
type Store interface {
	GetNode(hash Hash) (Node, bool, error)
	PutNodes(nodes map[Hash]Node) error
}

// BufferedStore wraps a base Store, answering GetNode from its own pending
// writes before falling through to base, and holding every PutNodes call
// in memory instead of persisting immediately. It lets a sequence of Trie
// operations (e.g. one per transaction in a block) see each other's writes
// without touching durable storage until the caller is ready to commit
// everything — block, trie nodes, index entry, and tip — in a single
// atomic transaction.
type BufferedStore struct {
	base    Store
	pending map[Hash]Node
}

// NewBufferedStore constructs a BufferedStore over base.
func NewBufferedStore(base Store) *BufferedStore {
	return &BufferedStore{base: base, pending: make(map[Hash]Node)}
}

// GetNode answers from the buffered writes first, then base.
func (b *BufferedStore) GetNode(hash Hash) (Node, bool, error) {
	if n, ok := b.pending[hash]; ok {
		return n, true, nil
	}
	return b.base.GetNode(hash)
}

// PutNodes buffers nodes in memory; it never touches base.
func (b *BufferedStore) PutNodes(nodes map[Hash]Node) error {
	for hash, node := range nodes {
		b.pending[hash] = node
	}
	return nil
}

// Pending returns every node buffered so far, for the caller to persist
// atomically alongside whatever else its transaction covers.
func (b *BufferedStore) Pending() map[Hash]Node {
	return b.pending
}

// EmptyRoot is the root hash of a trie with no accounts: H(empty).
func EmptyRoot() Hash {
	return emptyNode().Hash()
}

// bitAt returns the depth-th bit of addr, MSB-first (the canonical,
// deterministic bit ordering required by spec.md §4.2).
func bitAt(addr Address, depth int) int {
	if depth >= addressBits {
		return 0
	}
	byteIdx := depth / 8
	bitIdx := 7 - (depth % 8)
	return int((addr[byteIdx] >> uint(bitIdx)) & 1)
}

// Trie is a read-only view over a specific root hash, lazily loading nodes
// from store.
type Trie struct {
	root  Hash
	store Store
}

// New constructs a Trie rooted at root, reading nodes from store on demand.
func New(root Hash, store Store) *Trie {
	return &Trie{root: root, store: store}
}

// Root returns the trie's current root hash.
func (t *Trie) Root() Hash {
	return t.root
}

// Get returns the account stored at address, or the zero-value account
// (nonce 0, balance 0) if the address has never been touched.
func (t *Trie) Get(addr Address) (Account, error) {
	return t.getRecursive(t.root, addr, 0)
}

func (t *Trie) getRecursive(nodeHash Hash, addr Address, depth int) (Account, error) {
	node, ok, err := t.store.GetNode(nodeHash)
	if err != nil {
		return Account{}, err
	}
	if !ok {
		return database.NewAccount(), nil
	}

	switch node.Kind {
	case kindEmpty:
		return database.NewAccount(), nil
	case kindLeaf:
		if node.Address == addr {
			return node.Account, nil
		}
		return database.NewAccount(), nil
	default: // kindBranch
		if bitAt(addr, depth) == 0 {
			return t.getRecursive(node.Left, addr, depth+1)
		}
		return t.getRecursive(node.Right, addr, depth+1)
	}
}

// Update is a single pending write, used by Set and InsertBatch.
type Update struct {
	Address Address
	Account Account
}

// Set writes a single account update, persisting the freshly created nodes
// to store and returning the new root.
func (t *Trie) Set(addr Address, acc Account) (Hash, error) {
	return t.InsertBatch([]Update{{Address: addr, Account: acc}})
}

// InsertBatch applies every update in a single pass, path-copying only the
// nodes on the affected root-to-leaf paths, and persists every newly
// created node before returning the new root. A single Set writes at most
// addressBits+1 nodes, matching spec.md §4.2's bound.
func (t *Trie) InsertBatch(updates []Update) (Hash, error) {
	if len(updates) == 0 {
		return t.root, nil
	}

	newNodes := make(map[Hash]Node)
	newRoot, err := t.insertRecursive(t.root, updates, 0, newNodes)
	if err != nil {
		return Hash{}, err
	}

	if err := t.store.PutNodes(newNodes); err != nil {
		return Hash{}, err
	}

	t.root = newRoot
	return newRoot, nil
}

func (t *Trie) loadOrEmpty(hash Hash, pending map[Hash]Node) (Node, error) {
	if n, ok := pending[hash]; ok {
		return n, nil
	}
	n, ok, err := t.store.GetNode(hash)
	if err != nil {
		return Node{}, err
	}
	if !ok {
		return emptyNode(), nil
	}
	return n, nil
}

func (t *Trie) insertRecursive(nodeHash Hash, updates []Update, depth int, pending map[Hash]Node) (Hash, error) {
	if len(updates) == 0 {
		return nodeHash, nil
	}

	node, err := t.loadOrEmpty(nodeHash, pending)
	if err != nil {
		return Hash{}, err
	}

	switch node.Kind {
	case kindEmpty:
		return t.buildSubtree(updates, depth, pending)

	case kindLeaf:
		overridden := false
		for _, u := range updates {
			if u.Address == node.Address {
				overridden = true
				break
			}
		}
		all := updates
		if !overridden {
			all = append(append([]Update{}, updates...), Update{Address: node.Address, Account: node.Account})
		}
		return t.buildSubtree(all, depth, pending)

	default: // kindBranch
		var left, right []Update
		for _, u := range updates {
			if bitAt(u.Address, depth) == 0 {
				left = append(left, u)
			} else {
				right = append(right, u)
			}
		}

		newLeft, err := t.insertRecursive(node.Left, left, depth+1, pending)
		if err != nil {
			return Hash{}, err
		}
		newRight, err := t.insertRecursive(node.Right, right, depth+1, pending)
		if err != nil {
			return Hash{}, err
		}

		branch := Node{Kind: kindBranch, Left: newLeft, Right: newRight}
		pending[branch.Hash()] = branch
		return branch.Hash(), nil
	}
}

// buildSubtree constructs a fresh subtree from scratch over items, the
// strategy used both for filling in previously-empty space and for
// resolving a leaf/new-key collision.
func (t *Trie) buildSubtree(items []Update, depth int, pending map[Hash]Node) (Hash, error) {
	if len(items) == 0 {
		e := emptyNode()
		pending[e.Hash()] = e
		return e.Hash(), nil
	}

	if len(items) == 1 {
		leaf := Node{Kind: kindLeaf, Address: items[0].Address, Account: items[0].Account}
		pending[leaf.Hash()] = leaf
		return leaf.Hash(), nil
	}

	var left, right []Update
	for _, it := range items {
		if bitAt(it.Address, depth) == 0 {
			left = append(left, it)
		} else {
			right = append(right, it)
		}
	}

	leftHash, err := t.buildSubtree(left, depth+1, pending)
	if err != nil {
		return Hash{}, err
	}
	rightHash, err := t.buildSubtree(right, depth+1, pending)
	if err != nil {
		return Hash{}, err
	}

	branch := Node{Kind: kindBranch, Left: leftHash, Right: rightHash}
	pending[branch.Hash()] = branch
	return branch.Hash(), nil
}

// Proof returns an inclusion proof for address: the sibling hash at each
// level from the root down to the leaf (or the point where the address
// would be inserted), used for testing per spec.md §4.2.
func (t *Trie) Proof(addr Address) ([]Hash, error) {
	var proof []Hash
	cur := t.root
	for depth := 0; depth < addressBits; depth++ {
		node, ok, err := t.store.GetNode(cur)
		if err != nil {
			return nil, err
		}
		if !ok || node.Kind != kindBranch {
			break
		}
		if bitAt(addr, depth) == 0 {
			proof = append(proof, node.Right)
			cur = node.Left
		} else {
			proof = append(proof, node.Left)
			cur = node.Right
		}
	}
	return proof, nil
}
