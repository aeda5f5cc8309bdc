// Package idhash computes deterministic identifiers for routes.
package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ComputeRouteSignature computes a deterministic signature for a route's
// symbol sequence using SHA256.
// Formula: SHA256("GALA|GUSDC|GWETH|GALA") over the ordered symbols.
// Returns hex-encoded hash (64 characters). Direction matters: the reverse
// cycle is a different route with different liquidity along each hop.
func ComputeRouteSignature(symbols []string) string {
	data := strings.Join(symbols, "|")
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
