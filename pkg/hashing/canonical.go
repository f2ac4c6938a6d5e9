package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// CanonicalJSON serializes v to its RFC 8785 JSON Canonicalization Scheme
// (JCS) form: object members sorted lexicographically by UTF-8 code point,
// no insignificant whitespace, and a fixed number representation. Any two
// processes that canonicalize the same logical value this way produce
// byte-identical output, which is the property every deterministic id in
// this package depends on.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("hashing: marshal for canonicalization: %w", err)
	}

	canon, err := jcs.Transform(raw)
	if err != nil {
		return nil, fmt.Errorf("hashing: jcs transform: %w", err)
	}

	return canon, nil
}

// HashBytes returns the hex-encoded SHA-256 digest of b.
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// HashCanonical canonicalizes v and returns the hex-encoded SHA-256 digest
// of the canonical form. This is the "config hash" and "cache key" primitive
// used throughout provenance records.
func HashCanonical(v any) (string, error) {
	canon, err := CanonicalJSON(v)
	if err != nil {
		return "", err
	}
	return HashBytes(canon), nil
}

// SHA256Sum returns the raw (non-hex) SHA-256 digest of the canonical form
// of v. Callers that need the first N bytes of the digest (for example, to
// build a UUID) should use this rather than decoding HashCanonical's hex
// string back to bytes.
func SHA256Sum(v any) ([32]byte, error) {
	canon, err := CanonicalJSON(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(canon), nil
}
