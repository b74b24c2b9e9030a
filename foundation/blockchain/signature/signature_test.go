package signature_test

import (
	"bytes"
	"testing"

	"github.com/coreledger/powchain/foundation/blockchain/signature"
)

func Test_Signing(t *testing.T) {
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}

	data := []byte("this is the payload to sign")
	sig := kp.Sign(data)

	addr := kp.Address()
	if err := signature.Verify(kp.Public, addr, data, sig); err != nil {
		t.Fatalf("Should be able to verify the signature: %s", err)
	}
}

func Test_VerifyRejectsTamperedData(t *testing.T) {
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}

	sig := kp.Sign([]byte("original"))

	if err := signature.Verify(kp.Public, kp.Address(), []byte("tampered"), sig); err == nil {
		t.Fatalf("Should reject a signature over different data")
	}
}

func Test_VerifyRejectsWrongAddress(t *testing.T) {
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}
	other, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}

	data := []byte("payload")
	sig := kp.Sign(data)

	if err := signature.Verify(kp.Public, other.Address(), data, sig); err == nil {
		t.Fatalf("Should reject when public key doesn't derive the claimed address")
	}
}

func Test_AddressDeterministic(t *testing.T) {
	kp, err := signature.GenerateKeyPair()
	if err != nil {
		t.Fatalf("Should be able to generate a key pair: %s", err)
	}

	a1 := signature.PublicKeyToAddress(kp.Public)
	a2 := signature.PublicKeyToAddress(kp.Public)
	if a1 != a2 {
		t.Fatalf("Should derive the same address from the same public key")
	}
}

func Test_HashDeterministic(t *testing.T) {
	h1 := signature.Hash256([]byte("data"))
	h2 := signature.Hash256([]byte("data"))
	if h1 != h2 {
		t.Fatalf("Should get back the same hash twice")
	}
}

func Test_HashLessOrEqual(t *testing.T) {
	var low, high signature.Hash
	low[0] = 0x01
	high[0] = 0x02

	if !low.LessOrEqual(high) {
		t.Fatalf("expected %s <= %s", low, high)
	}
	if high.LessOrEqual(low) {
		t.Fatalf("did not expect %s <= %s", high, low)
	}
	if !low.LessOrEqual(low) {
		t.Fatalf("expected a hash to be <= itself")
	}
}

func Test_AddressString(t *testing.T) {
	var addr signature.Address
	addr[0] = 0xab

	if !bytes.HasPrefix([]byte(addr.String()), []byte("0x")) {
		t.Fatalf("expected 0x prefix, got %s", addr.String())
	}
}
