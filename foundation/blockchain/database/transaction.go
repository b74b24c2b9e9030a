package database

import (
	"crypto/ed25519"
	"fmt"

	"github.com/coreledger/powchain/foundation/blockchain/signature"
	"github.com/coreledger/powchain/foundation/blockchain/wire"
)

// FixedFee is the flat, per-transaction fee deducted from the sender on
// every mined transaction. The core treats gas_price/gas_limit as
// informational (spec's Non-goal: gas-metering execution); a nonzero flat
// fee keeps balance math testable across every path that touches it
// (validation, execution, mempool admission).
const FixedFee uint64 = 1

// UserTx is the transactional data a client constructs and signs.
type UserTx struct {
	Nonce    uint64
	GasPrice uint64
	GasLimit uint64
	To       Address
	Value    *Balance
	Data     []byte
}

// NewUserTx constructs a user transaction ready for signing.
func NewUserTx(nonce, gasPrice, gasLimit uint64, to Address, value *Balance, data []byte) UserTx {
	return UserTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		GasLimit: gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	}
}

// encode appends the canonical encoding of the fields that are signed:
// nonce, gas_price, gas_limit, to, value, data — in that order, matching
// spec.md §3's field listing minus signature and from.
func (tx UserTx) encode(w *wire.Writer) {
	w.Uint64(tx.Nonce)
	w.Uint64(tx.GasPrice)
	w.Uint64(tx.GasLimit)
	w.FixedBytes(tx.To[:])

	value := tx.Value
	if value == nil {
		value = new(Balance)
	}
	buf := value.Bytes32()
	w.FixedBytes(buf[16:])

	w.VarBytes(tx.Data)
}

// signingPayload returns the bytes that get signed and, symmetrically,
// verified: the canonical serialization of every field except signature
// and from.
func (tx UserTx) signingPayload() []byte {
	w := wire.NewWriter()
	tx.encode(w)
	return w.Bytes()
}

// Sign produces a SignedTx by signing the user transaction with kp. Because
// Ed25519 signatures don't support public-key recovery the way secp256k1
// does, the signer's public key travels with the transaction; From is
// derived from that public key, not from the signature bytes alone.
func (tx UserTx) Sign(kp signature.KeyPair) SignedTx {
	sig := kp.Sign(tx.signingPayload())

	var sigArr [ed25519.SignatureSize]byte
	copy(sigArr[:], sig)

	var pubArr [ed25519.PublicKeySize]byte
	copy(pubArr[:], kp.Public)

	return SignedTx{
		UserTx:    tx,
		From:      kp.Address(),
		PublicKey: pubArr,
		Signature: sigArr,
	}
}

// SignedTx is a UserTx plus the signer's public key and signature.
type SignedTx struct {
	UserTx
	From      Address
	PublicKey [ed25519.PublicKeySize]byte
	Signature [ed25519.SignatureSize]byte
}

// VerifySignature checks that Signature is a valid Ed25519 signature over
// the transaction's signing payload by the holder of PublicKey, and that
// PublicKey derives From.
func (tx SignedTx) VerifySignature() error {
	pub := ed25519.PublicKey(tx.PublicKey[:])
	return signature.Verify(pub, tx.From, tx.signingPayload(), tx.Signature[:])
}

// FromAddress returns the sender address recorded on the transaction. Call
// VerifySignature first to establish that this address is authentic.
func (tx SignedTx) FromAddress() Address {
	return tx.From
}

// encode appends the full canonical encoding, including signature and from,
// used for the transaction ID and for wire/storage persistence.
func (tx SignedTx) encode(w *wire.Writer) {
	tx.UserTx.encode(w)
	w.FixedBytes(tx.From[:])
	w.FixedBytes(tx.PublicKey[:])
	w.FixedBytes(tx.Signature[:])
}

// EncodeSignedTx returns the canonical on-disk/wire encoding of tx.
func EncodeSignedTx(tx SignedTx) []byte {
	w := wire.NewWriter()
	tx.encode(w)
	return w.Bytes()
}

// DecodeSignedTx parses the canonical encoding produced by EncodeSignedTx.
func DecodeSignedTx(data []byte) (SignedTx, error) {
	r := wire.NewReader(data)

	nonce, err := r.Uint64()
	if err != nil {
		return SignedTx{}, err
	}
	gasPrice, err := r.Uint64()
	if err != nil {
		return SignedTx{}, err
	}
	gasLimit, err := r.Uint64()
	if err != nil {
		return SignedTx{}, err
	}
	toRaw, err := r.FixedBytes(signature.AddressLength)
	if err != nil {
		return SignedTx{}, err
	}
	valueRaw, err := r.FixedBytes(16)
	if err != nil {
		return SignedTx{}, err
	}
	data0, err := r.VarBytes()
	if err != nil {
		return SignedTx{}, err
	}
	fromRaw, err := r.FixedBytes(signature.AddressLength)
	if err != nil {
		return SignedTx{}, err
	}
	pubRaw, err := r.FixedBytes(ed25519.PublicKeySize)
	if err != nil {
		return SignedTx{}, err
	}
	sigRaw, err := r.FixedBytes(ed25519.SignatureSize)
	if err != nil {
		return SignedTx{}, err
	}

	var to, from Address
	copy(to[:], toRaw)
	copy(from[:], fromRaw)

	var valueBuf [32]byte
	copy(valueBuf[16:], valueRaw)

	var tx SignedTx
	tx.Nonce = nonce
	tx.GasPrice = gasPrice
	tx.GasLimit = gasLimit
	tx.To = to
	tx.Value = new(Balance).SetBytes(valueBuf[:])
	tx.Data = data0
	tx.From = from
	copy(tx.PublicKey[:], pubRaw)
	copy(tx.Signature[:], sigRaw)

	return tx, nil
}

// ID returns the transaction ID: the hash of the canonical serialization
// including the signature.
func (tx SignedTx) ID() Hash {
	return signature.Hash256(EncodeSignedTx(tx))
}

// String renders a short, log-friendly identifier for the transaction.
func (tx SignedTx) String() string {
	return fmt.Sprintf("%s:%d", tx.From, tx.Nonce)
}

// TotalCost is the amount debited from the sender: value plus the fixed fee.
func (tx SignedTx) TotalCost() *Balance {
	return AddBalance(tx.Value, NewBalance(FixedFee))
}
