package gswap

import (
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/mr-tron/base58"
)

func encodeSeed(seed []byte) string {
	return base58.Encode(seed)
}

func TestEd25519Signer_SignAndVerify(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i)
	}
	priv := ed25519.NewKeyFromSeed(seed)

	signer, err := NewEd25519Signer(priv)
	if err != nil {
		t.Fatalf("NewEd25519Signer: %v", err)
	}

	payload := []byte(`{"tokenIn":"GALA|Unit|none|none","amountIn":"100"}`)
	encoded, err := signer.Sign(payload)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	sig, err := base58.Decode(encoded)
	if err != nil {
		t.Fatalf("decode signature: %v", err)
	}
	pub, err := base58.Decode(signer.PublicKey())
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if !ed25519.Verify(ed25519.PublicKey(pub), payload, sig) {
		t.Error("signature does not verify against the signer's public key")
	}
}

func TestEd25519Signer_EmptyPayload(t *testing.T) {
	signer := testSigner(t)
	if _, err := signer.Sign(nil); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestEd25519Signer_Address(t *testing.T) {
	signer := testSigner(t)
	if !strings.HasPrefix(signer.Address(), "client|") {
		t.Errorf("expected client| prefix, got %s", signer.Address())
	}
	if !strings.HasSuffix(signer.Address(), signer.PublicKey()) {
		t.Errorf("address %s does not carry public key %s", signer.Address(), signer.PublicKey())
	}
}

func TestNewEd25519SignerFromBase58(t *testing.T) {
	seed := make([]byte, ed25519.SeedSize)
	for i := range seed {
		seed[i] = byte(i + 7)
	}

	// 32-byte seed form
	fromSeed, err := NewEd25519SignerFromBase58(base58.Encode(seed))
	if err != nil {
		t.Fatalf("from seed: %v", err)
	}

	// 64-byte full private key form resolves to the same key
	full := ed25519.NewKeyFromSeed(seed)
	fromFull, err := NewEd25519SignerFromBase58(base58.Encode(full))
	if err != nil {
		t.Fatalf("from full key: %v", err)
	}
	if fromSeed.PublicKey() != fromFull.PublicKey() {
		t.Errorf("seed and full key forms disagree: %s vs %s", fromSeed.PublicKey(), fromFull.PublicKey())
	}

	// Wrong lengths are rejected
	if _, err := NewEd25519SignerFromBase58(base58.Encode(seed[:16])); err == nil {
		t.Error("expected error for 16-byte key")
	}

	// Invalid base58 is rejected
	if _, err := NewEd25519SignerFromBase58("not-base58-0OIl"); err == nil {
		t.Error("expected error for invalid base58")
	}
}
