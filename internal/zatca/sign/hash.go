package sign

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// Hash is a SHA-256 digest exposed in the encodings ZATCA uses: Base64 in
// the QR TLV field, hex elsewhere.
type Hash struct {
	raw [sha256.Size]byte
}

// ComputeInvoiceHash digests the canonicalized invoice bytes. Pure function.
func ComputeInvoiceHash(canonical []byte) Hash {
	return Hash{raw: sha256.Sum256(canonical)}
}

// Raw returns the digest bytes
func (h Hash) Raw() []byte {
	out := make([]byte, len(h.raw))
	copy(out, h.raw[:])
	return out
}

// Base64 returns the standard Base64 encoding of the digest
func (h Hash) Base64() string {
	return base64.StdEncoding.EncodeToString(h.raw[:])
}

// Hex returns the lowercase hex encoding of the digest
func (h Hash) Hex() string {
	return hex.EncodeToString(h.raw[:])
}
