// Package database defines the core data types of the blockchain — accounts,
// transactions, and blocks — along with their canonical binary encodings.
// It has no knowledge of storage engines or network transport; those are
// layered on top by the storage, trie, and p2p packages.
package database

import (
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/wire"
	"github.com/holiman/uint256"
)

// Address identifies an account, the last 20 bytes of the SHA-256 digest of
// an Ed25519 public key.
type Address = signature.Address

// Hash is a 32-byte digest used for block IDs, transaction IDs, and trie
// node hashes.
type Hash = signature.Hash

// Balance is a u128 quantity of unitless currency, represented with a
// 256-bit integer (holiman/uint256, chosen for its allocation-free
// fixed-width arithmetic) truncated to its low 128 bits on the wire.
// Values never legitimately exceed 2^128 in this system, so the extra
// range is unused headroom rather than a semantic change.
type Balance = uint256.Int

// NewBalance constructs a Balance from a uint64, the common case for tests
// and genesis configuration.
func NewBalance(v uint64) *Balance {
	return new(uint256.Int).SetUint64(v)
}

// AddBalance returns a new Balance equal to a+b.
func AddBalance(a, b *Balance) *Balance {
	return new(uint256.Int).Add(a, b)
}

// SubBalance returns a new Balance equal to a-b. The caller must have
// already checked a >= b; underflow wraps per uint256 semantics.
func SubBalance(a, b *Balance) *Balance {
	return new(uint256.Int).Sub(a, b)
}

// Account is the value stored per-address in the State Trie.
type Account struct {
	Nonce   uint64
	Balance *Balance
}

// NewAccount constructs the default account for an address that has never
// been touched: nonce 0, balance 0.
func NewAccount() Account {
	return Account{Balance: new(uint256.Int)}
}

// Hash returns the digest used as the trie leaf's value hash:
// hash(address ‖ account_encoding).
func (a Account) Hash(addr Address) Hash {
	w := wire.NewWriter()
	w.FixedBytes(addr[:])
	a.encode(w)
	return signature.Hash256(w.Bytes())
}

// encode appends the canonical encoding of the account to w: nonce then
// balance, each fixed width.
func (a Account) encode(w *wire.Writer) {
	w.Uint64(a.Nonce)

	balance := a.Balance
	if balance == nil {
		balance = new(uint256.Int)
	}
	buf := balance.Bytes32()
	// Balance is a u128 on the wire; the low 16 bytes of the big-endian
	// 32-byte representation hold it.
	w.FixedBytes(buf[16:])
}

// decodeAccount reads an account back from its canonical encoding.
func decodeAccount(r *wire.Reader) (Account, error) {
	nonce, err := r.Uint64()
	if err != nil {
		return Account{}, err
	}

	raw, err := r.FixedBytes(16)
	if err != nil {
		return Account{}, err
	}

	var buf [32]byte
	copy(buf[16:], raw)

	balance := new(uint256.Int).SetBytes(buf[:])

	return Account{Nonce: nonce, Balance: balance}, nil
}

// EncodeAccount returns the canonical encoding of an account, independent of
// any address (used for state_nodes leaf payloads alongside the address).
func EncodeAccount(a Account) []byte {
	w := wire.NewWriter()
	a.encode(w)
	return w.Bytes()
}

// DecodeAccount parses the canonical encoding produced by EncodeAccount.
func DecodeAccount(data []byte) (Account, error) {
	return decodeAccount(wire.NewReader(data))
}
