// Package gate implements the password gate: a candidate secret is digested
// with SHA-256 and compared against a pre-provisioned reference digest.
//
// The gate is stateless. A [Gate] holds only the normalized reference digest
// and is safe for concurrent use.
package gate

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strings"
)

// DefaultReference is the digest of the built-in secret, used when the
// configuration does not provide one.
const DefaultReference = "e4ad93ca07acb8d908a3aa41e920ea4f4ef4f26e7f86cf8291c5db289780a5ae"

// ReferenceLen is the length of a hex-encoded SHA-256 digest.
const ReferenceLen = sha256.Size * 2

const (
	// ErrReferenceLength is returned when a reference digest is not exactly
	// [ReferenceLen] characters.
	ErrReferenceLength Error = "reference digest must be 64 hex characters"
	// ErrReferenceEncoding is returned when a reference digest contains
	// non-hex characters.
	ErrReferenceEncoding Error = "reference digest must be hex encoded"
	// ErrDenied reports a candidate that does not match the reference.
	ErrDenied Error = "incorrect password"
)

// Error is an error type returned by the gate.
type Error string

// Error satisfies [error].
func (e Error) Error() string { return string(e) }

// Gate verifies candidate secrets against a reference digest.
type Gate struct {
	reference string
}

// New returns a Gate for the given reference digest. The reference is
// normalized once here, so letter casing in configuration does not matter.
func New(reference string) (*Gate, error) {
	ref, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}
	return &Gate{reference: ref}, nil
}

// Reference returns the normalized reference digest.
func (g *Gate) Reference() string { return g.reference }

// Verify reports whether candidate digests to the gate's reference.
func (g *Gate) Verify(candidate string) bool {
	return Verify(g.reference, candidate)
}

// Verify reports whether the digest of candidate is identical to reference.
// The reference must already be in canonical (lowercase) form; see
// [ParseReference].
func Verify(reference, candidate string) bool {
	return subtle.ConstantTimeCompare([]byte(Digest(candidate)), []byte(reference)) == 1
}

// Digest returns the lowercase hex SHA-256 digest of candidate's UTF-8 bytes.
// No trimming or normalization is applied to candidate.
func Digest(candidate string) string {
	sum := sha256.Sum256([]byte(candidate))
	return hex.EncodeToString(sum[:])
}

// ParseReference canonicalizes a reference digest: surrounding whitespace is
// dropped and hex letters are lowercased.
func ParseReference(reference string) (string, error) {
	ref := strings.ToLower(strings.TrimSpace(reference))
	if len(ref) != ReferenceLen {
		return "", ErrReferenceLength
	}
	if _, err := hex.DecodeString(ref); err != nil {
		return "", ErrReferenceEncoding
	}
	return ref, nil
}
