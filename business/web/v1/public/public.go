// Package public implements the node's control-plane HTTP API: the thin
// external façade spec.md names (submit_transaction, get_balance,
// chain_info, miner_start, miner_stop) plus a read-only block lookup and a
// websocket block stream, in the shape of the teacher's
// app/services/node/handlers/v1/public package.
package public

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/coreledger/powchain/business/web/errs"
	"github.com/coreledger/powchain/foundation/blockchain/database"
	"github.com/coreledger/powchain/foundation/blockchain/mempool"
	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/state"
	"github.com/coreledger/powchain/foundation/blockchain/worker"
	"github.com/coreledger/powchain/foundation/events"
	"github.com/coreledger/powchain/foundation/web"
	"github.com/gorilla/websocket"
	"github.com/holiman/uint256"
	"go.uber.org/zap"
)

// Handlers manages the set of control-plane endpoints.
type Handlers struct {
	Log    *zap.SugaredLogger
	State  *state.State
	Pool   *mempool.Mempool
	Worker *worker.Worker
	Events *events.Events
	WS     websocket.Upgrader
}

// SubmitTransaction implements submit_transaction: it admits a signed
// transaction into the mempool and, if newly admitted, queues it for
// gossip to peers.
func (h Handlers) SubmitTransaction(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req txRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	tx, err := req.toSignedTx()
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	result, err := h.Pool.Insert(tx, h.State)
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}
	if result != mempool.Added {
		return errs.NewTrusted(fmt.Errorf("transaction not admitted: %s", result), http.StatusBadRequest)
	}

	h.Worker.SignalShareTx(tx)
	h.Worker.SignalStartMining()

	return web.Respond(ctx, w, txSubmitResponse{Status: result.String(), TxID: tx.ID().String()}, http.StatusOK)
}

// GetBalance implements get_balance: it returns an address's current
// balance and nonce under the chain's current tip.
func (h Handlers) GetBalance(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	addr, err := signature.ParseAddress(web.Param(r, "address"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	account, err := h.State.GetAccount(addr)
	if err != nil {
		return errs.NewTrusted(err, http.StatusNotFound)
	}

	resp := balanceResponse{
		Address: addr.String(),
		Balance: account.Balance.String(),
		Nonce:   account.Nonce,
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// ChainInfo implements chain_info: the current tip, height, and total
// accumulated proof-of-work difficulty.
func (h Handlers) ChainInfo(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	tip, height, totalDifficulty := h.State.Tip()

	resp := chainInfoResponse{
		TipID:           tip.String(),
		Height:          height,
		TotalDifficulty: totalDifficulty.String(),
	}
	return web.Respond(ctx, w, resp, http.StatusOK)
}

// MinerStart implements miner_start. interval_ms is accepted for contract
// compatibility with spec.md §6 but unused: the Miner worker mines
// continuously whenever the mempool holds eligible transactions rather
// than on a fixed timer, so enabling it is a one-shot signal, not a rate.
func (h Handlers) MinerStart(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var req minerStartRequest
	if err := web.Decode(r, &req); err != nil {
		return err
	}

	h.Worker.EnableMining(true)
	return web.Respond(ctx, w, statusResponse{Status: "mining enabled"}, http.StatusOK)
}

// MinerStop implements miner_stop.
func (h Handlers) MinerStop(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	h.Worker.EnableMining(false)
	return web.Respond(ctx, w, statusResponse{Status: "mining disabled"}, http.StatusOK)
}

// GetBlock is a supplemented read-only endpoint returning a committed
// block by ID.
func (h Handlers) GetBlock(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	id, err := signature.ParseHash(web.Param(r, "id"))
	if err != nil {
		return errs.NewTrusted(err, http.StatusBadRequest)
	}

	block, ok, err := h.State.GetBlock(id)
	if err != nil {
		return err
	}
	if !ok {
		return errs.NewTrusted(fmt.Errorf("block %s not found", id), http.StatusNotFound)
	}

	return web.Respond(ctx, w, newBlockView(block), http.StatusOK)
}

// StreamBlocks is a supplemented websocket endpoint that relays the node's
// event log (including every newly accepted block) to a connected client,
// the same log-fanout design the teacher's Events endpoint uses.
func (h Handlers) StreamBlocks(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	v, err := web.GetValues(ctx)
	if err != nil {
		return web.NewShutdownError("web value missing from context")
	}

	h.WS.CheckOrigin = func(r *http.Request) bool { return true }

	c, err := h.WS.Upgrade(w, r, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	ch := h.Events.Acquire(v.TraceID)
	defer h.Events.Release(v.TraceID)

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			if err := c.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return err
			}

		case <-ticker.C:
			if err := c.WriteMessage(websocket.PingMessage, []byte("ping")); err != nil {
				return nil
			}
		}
	}
}

// toSignedTx decodes and reassembles req into a database.SignedTx and
// verifies its signature, returning an error if verification fails.
func (req txRequest) toSignedTx() (database.SignedTx, error) {
	to, err := signature.ParseAddress(req.To)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("parsing to: %w", err)
	}
	from, err := signature.ParseAddress(req.From)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("parsing from: %w", err)
	}

	value, err := parseBalance(req.Value)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("parsing value: %w", err)
	}

	data, err := decodeHex(req.Data)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("parsing data: %w", err)
	}

	pubRaw, err := decodeHexFixed(req.PublicKey, signatureSize.public)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("parsing public_key: %w", err)
	}
	sigRaw, err := decodeHexFixed(req.Signature, signatureSize.sig)
	if err != nil {
		return database.SignedTx{}, fmt.Errorf("parsing signature: %w", err)
	}

	tx := database.SignedTx{
		UserTx: database.NewUserTx(req.Nonce, req.GasPrice, req.GasLimit, to, value, data),
		From:   from,
	}
	copy(tx.PublicKey[:], pubRaw)
	copy(tx.Signature[:], sigRaw)

	if err := tx.VerifySignature(); err != nil {
		return database.SignedTx{}, fmt.Errorf("verifying signature: %w", err)
	}

	return tx, nil
}

var signatureSize = struct{ public, sig int }{public: 32, sig: 64}

func parseBalance(s string) (*database.Balance, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, err
	}
	return v, nil
}

func decodeHex(s string) ([]byte, error) {
	if s == "" {
		return nil, nil
	}
	return hex.DecodeString(trimHexPrefix(s))
}

func decodeHexFixed(s string, n int) ([]byte, error) {
	raw, err := hex.DecodeString(trimHexPrefix(s))
	if err != nil {
		return nil, err
	}
	if len(raw) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(raw))
	}
	return raw, nil
}

func trimHexPrefix(s string) string {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		return s[2:]
	}
	return s
}

func newBlockView(b database.Block) blockView {
	txs := make([]txView, len(b.Transactions))
	for i, tx := range b.Transactions {
		txs[i] = txView{
			ID:       tx.ID().String(),
			From:     tx.From.String(),
			Nonce:    tx.Nonce,
			GasPrice: tx.GasPrice,
			GasLimit: tx.GasLimit,
			To:       tx.To.String(),
			Value:    tx.Value.String(),
			Data:     hex.EncodeToString(tx.Data),
		}
	}

	return blockView{
		ID:           b.ID().String(),
		Parent:       b.Header.Parent.String(),
		Nonce:        b.Header.Nonce,
		Difficulty:   b.Header.Difficulty.String(),
		TimestampMs:  b.Header.TimestampMs,
		MerkleRoot:   b.Header.MerkleRoot.String(),
		StateRoot:    b.Header.StateRoot.String(),
		Miner:        b.Header.Miner.String(),
		Transactions: txs,
	}
}
