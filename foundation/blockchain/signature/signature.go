// Package signature provides helper functions for handling the blockchain's
// signature needs. Keys are Ed25519; an address is the last 20 bytes of the
// SHA-256 digest of the public key.
package signature

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strings"
)

// AddressLength is the number of bytes in a derived address.
const AddressLength = 20

// Address is a 20-byte fingerprint of a public key.
type Address [AddressLength]byte

// ZeroAddress is the address with all bytes zero.
var ZeroAddress Address

// String renders the address as a 0x-prefixed hex string.
func (a Address) String() string {
	return fmt.Sprintf("0x%x", [AddressLength]byte(a))
}

// IsZero reports whether the address is the zero value.
func (a Address) IsZero() bool {
	return a == ZeroAddress
}

// ParseAddress parses the 0x-prefixed hex string produced by String back
// into an Address, the control-plane API's wire format for addresses.
func ParseAddress(s string) (Address, error) {
	var a Address
	raw, err := decodeHexFixed(s, AddressLength)
	if err != nil {
		return a, fmt.Errorf("parsing address %q: %w", s, err)
	}
	copy(a[:], raw)
	return a, nil
}

// Hash is a 32-byte digest, used for block IDs, transaction IDs, and trie
// node hashes.
type Hash [32]byte

// ZeroHash is the hash with all bytes zero.
var ZeroHash Hash

// String renders the hash as a 0x-prefixed hex string.
func (h Hash) String() string {
	return fmt.Sprintf("0x%x", [32]byte(h))
}

// ParseHash parses the 0x-prefixed hex string produced by String back into
// a Hash, the control-plane API's wire format for block and transaction IDs.
func ParseHash(s string) (Hash, error) {
	var h Hash
	raw, err := decodeHexFixed(s, len(h))
	if err != nil {
		return h, fmt.Errorf("parsing hash %q: %w", s, err)
	}
	copy(h[:], raw)
	return h, nil
}

// decodeHexFixed decodes a 0x-prefixed hex string into exactly n bytes.
func decodeHexFixed(s string, n int) ([]byte, error) {
	s = strings.TrimPrefix(s, "0x")
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(raw) != n {
		return nil, fmt.Errorf("expected %d bytes, got %d", n, len(raw))
	}
	return raw, nil
}

// LessOrEqual reports whether h, interpreted as a big-endian 256-bit
// integer, is less than or equal to target. This is the PoW acceptance
// test: hash(header) <= difficulty.
func (h Hash) LessOrEqual(target Hash) bool {
	for i := 0; i < len(h); i++ {
		if h[i] != target[i] {
			return h[i] < target[i]
		}
	}
	return true
}

// Hash256 computes the SHA-256 digest of data.
func Hash256(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// KeyPair holds an Ed25519 private/public key pair for a single account.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// GenerateKeyPair creates a new random Ed25519 key pair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}

	return KeyPair{Public: pub, Private: priv}, nil
}

// Address derives the account address for this key pair's public key.
func (kp KeyPair) Address() Address {
	return PublicKeyToAddress(kp.Public)
}

// Sign produces a 64-byte Ed25519 signature over data.
func (kp KeyPair) Sign(data []byte) []byte {
	return ed25519.Sign(kp.Private, data)
}

// PublicKeyToAddress converts a public key to the address it derives, the
// last 20 bytes of the SHA-256 digest of the raw public key bytes.
func PublicKeyToAddress(pub ed25519.PublicKey) Address {
	digest := sha256.Sum256(pub)

	var addr Address
	copy(addr[:], digest[len(digest)-AddressLength:])
	return addr
}

// SaveKeyPair writes kp's private key to path as hex text, the Ed25519
// analog of go-ethereum's SaveECDSA keyfile used by the teacher's wallet
// CLI. The public key is not stored; LoadKeyPair recovers it from the
// private key itself.
func SaveKeyPair(path string, kp KeyPair) error {
	if len(kp.Private) != ed25519.PrivateKeySize {
		return errors.New("invalid private key length")
	}

	enc := hex.EncodeToString(kp.Private)
	if err := os.WriteFile(path, []byte(enc), 0600); err != nil {
		return fmt.Errorf("writing key file: %w", err)
	}

	return nil
}

// LoadKeyPair reads a key pair previously written by SaveKeyPair.
func LoadKeyPair(path string) (KeyPair, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return KeyPair{}, fmt.Errorf("reading key file: %w", err)
	}

	priv, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return KeyPair{}, fmt.Errorf("decoding key file: %w", err)
	}
	if len(priv) != ed25519.PrivateKeySize {
		return KeyPair{}, fmt.Errorf("expected %d byte private key, got %d", ed25519.PrivateKeySize, len(priv))
	}

	pk := ed25519.PrivateKey(priv)
	pub, ok := pk.Public().(ed25519.PublicKey)
	if !ok {
		return KeyPair{}, errors.New("deriving public key")
	}

	return KeyPair{Public: pub, Private: pk}, nil
}

// Verify checks that sig is a valid Ed25519 signature over data by the
// holder of pub, and that pub derives the claimed address.
func Verify(pub ed25519.PublicKey, addr Address, data, sig []byte) error {
	if len(pub) != ed25519.PublicKeySize {
		return errors.New("invalid public key length")
	}
	if len(sig) != ed25519.SignatureSize {
		return errors.New("invalid signature length")
	}

	if PublicKeyToAddress(pub) != addr {
		return errors.New("public key does not derive claimed address")
	}

	if !ed25519.Verify(pub, data, sig) {
		return errors.New("signature verification failed")
	}

	return nil
}
