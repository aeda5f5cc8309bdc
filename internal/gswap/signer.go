package gswap

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Signer signs swap payloads. Key management beyond this port is out of
// scope; the engine only needs a signature and the matching public key.
type Signer interface {
	// Sign returns the base58-encoded signature over payload.
	Sign(payload []byte) (string, error)
	// PublicKey returns the base58-encoded public key.
	PublicKey() string
	// Address returns the venue account identifier derived from the key.
	Address() string
}

// Ed25519Signer signs payloads with an ed25519 private key.
type Ed25519Signer struct {
	priv ed25519.PrivateKey
	pub  string
	addr string
}

// NewEd25519Signer wraps a private key after validating that its public key
// is a canonical on-curve point.
func NewEd25519Signer(priv ed25519.PrivateKey) (*Ed25519Signer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key has %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	pub := priv.Public().(ed25519.PublicKey)
	if _, err := new(edwards25519.Point).SetBytes(pub); err != nil {
		return nil, fmt.Errorf("public key is not a valid curve point: %w", err)
	}
	encoded := base58.Encode(pub)
	return &Ed25519Signer{
		priv: priv,
		pub:  encoded,
		addr: "client|" + encoded,
	}, nil
}

// NewEd25519SignerFromBase58 decodes a base58 private key and wraps it.
func NewEd25519SignerFromBase58(encoded string) (*Ed25519Signer, error) {
	raw, err := base58.Decode(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode private key: %w", err)
	}
	// Accept either a 32-byte seed or a full 64-byte private key.
	switch len(raw) {
	case ed25519.SeedSize:
		return NewEd25519Signer(ed25519.NewKeyFromSeed(raw))
	case ed25519.PrivateKeySize:
		return NewEd25519Signer(ed25519.PrivateKey(raw))
	default:
		return nil, fmt.Errorf("private key has %d bytes, want %d or %d", len(raw), ed25519.SeedSize, ed25519.PrivateKeySize)
	}
}

// Sign implements Signer.
func (s *Ed25519Signer) Sign(payload []byte) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty payload")
	}
	sig := ed25519.Sign(s.priv, payload)
	return base58.Encode(sig), nil
}

// PublicKey implements Signer.
func (s *Ed25519Signer) PublicKey() string {
	return s.pub
}

// Address implements Signer.
func (s *Ed25519Signer) Address() string {
	return s.addr
}

var _ Signer = (*Ed25519Signer)(nil)
