// Package p2p implements the framed TCP protocol connected nodes use to
// exchange blocks and transactions: gossip announcement, request/reply
// fetch, and a small sync bootstrap. It is grounded on
// original_source/src/network/worker.rs's message taxonomy and
// frederikgramkortegaard-august's networking/server.go accept/dial loop,
// re-expressed with the canonical binary framing from the wire package
// instead of JSON.
package p2p

import (
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/wire"
)

// Kind identifies the payload carried by a frame. Values are assigned
// densely in the order spec.md §4.5 lists the message taxonomy, plus the
// peer-discovery pair appended at the end as a supplemented feature.
type Kind uint8

// The message kinds a frame may carry.
const (
	KindPing Kind = iota + 1
	KindPong
	KindNewBlockHashes
	KindGetBlocks
	KindBlocks
	KindNewTransactionHashes
	KindGetTransactions
	KindTransactions
	KindGetHeight
	KindHeight
	KindGetPeers
	KindPeers
)

// String renders Kind for logging.
func (k Kind) String() string {
	switch k {
	case KindPing:
		return "ping"
	case KindPong:
		return "pong"
	case KindNewBlockHashes:
		return "new_block_hashes"
	case KindGetBlocks:
		return "get_blocks"
	case KindBlocks:
		return "blocks"
	case KindNewTransactionHashes:
		return "new_transaction_hashes"
	case KindGetTransactions:
		return "get_transactions"
	case KindTransactions:
		return "transactions"
	case KindGetHeight:
		return "get_height"
	case KindHeight:
		return "height"
	case KindGetPeers:
		return "get_peers"
	case KindPeers:
		return "peers"
	default:
		return "unknown"
	}
}

// heightAdvert is the payload shared by Ping, Pong, and Height: a chain
// height plus its tip's hash. spec.md's §4.5 describes Height as a bare u64;
// the tip hash is added here because the sync bootstrap in §4.5 walks
// backward "from the peer-advertised tip" by hash, which a height number
// alone cannot address — GetBlocks only ever requests by hash.
type heightAdvert struct {
	Height  uint64
	TipHash database.Hash
}

func encodeHeightAdvert(a heightAdvert) []byte {
	w := wire.NewWriter()
	w.Uint64(a.Height)
	w.FixedBytes(a.TipHash[:])
	return w.Bytes()
}

func decodeHeightAdvert(data []byte) (heightAdvert, error) {
	r := wire.NewReader(data)
	height, err := r.Uint64()
	if err != nil {
		return heightAdvert{}, err
	}
	raw, err := r.FixedBytes(32)
	if err != nil {
		return heightAdvert{}, err
	}
	var a heightAdvert
	a.Height = height
	copy(a.TipHash[:], raw)
	return a, nil
}

func encodeHashList(hashes []database.Hash) []byte {
	w := wire.NewWriter()
	w.Uint32(uint32(len(hashes)))
	for _, h := range hashes {
		w.FixedBytes(h[:])
	}
	return w.Bytes()
}

func decodeHashList(data []byte) ([]database.Hash, error) {
	r := wire.NewReader(data)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	hashes := make([]database.Hash, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := r.FixedBytes(32)
		if err != nil {
			return nil, err
		}
		var h database.Hash
		copy(h[:], raw)
		hashes = append(hashes, h)
	}
	return hashes, nil
}

func encodeBlockList(blocks []database.Block) []byte {
	w := wire.NewWriter()
	w.Uint32(uint32(len(blocks)))
	for _, b := range blocks {
		w.VarBytes(database.EncodeBlock(b))
	}
	return w.Bytes()
}

func decodeBlockList(data []byte) ([]database.Block, error) {
	r := wire.NewReader(data)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	blocks := make([]database.Block, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := r.VarBytes()
		if err != nil {
			return nil, err
		}
		b, err := database.DecodeBlock(raw)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

func encodeTxList(txs []database.SignedTx) []byte {
	w := wire.NewWriter()
	w.Uint32(uint32(len(txs)))
	for _, tx := range txs {
		w.VarBytes(database.EncodeSignedTx(tx))
	}
	return w.Bytes()
}

func decodeTxList(data []byte) ([]database.SignedTx, error) {
	r := wire.NewReader(data)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	txs := make([]database.SignedTx, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := r.VarBytes()
		if err != nil {
			return nil, err
		}
		tx, err := database.DecodeSignedTx(raw)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func encodeAddrList(addrs []string) []byte {
	w := wire.NewWriter()
	w.Uint32(uint32(len(addrs)))
	for _, a := range addrs {
		w.VarBytes([]byte(a))
	}
	return w.Bytes()
}

func decodeAddrList(data []byte) ([]string, error) {
	r := wire.NewReader(data)
	count, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	addrs := make([]string, 0, count)
	for i := uint32(0); i < count; i++ {
		raw, err := r.VarBytes()
		if err != nil {
			return nil, err
		}
		addrs = append(addrs, string(raw))
	}
	return addrs, nil
}
