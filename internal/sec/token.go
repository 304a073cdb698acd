package sec

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"strings"
)

// tokenBytes is the amount of entropy in generated tokens.
const tokenBytes = 32

const tokenSeparator = "."

// ErrMalformedToken is returned when a composite token cannot be split.
var ErrMalformedToken = errors.New("malformed token")

// NewToken returns a random URL-safe token.
func NewToken() string {
	buf := make([]byte, tokenBytes)
	_, _ = rand.Read(buf) // crypto/rand.Read never returns an error
	return base64.RawURLEncoding.EncodeToString(buf)
}

// TokenDigest returns the hex SHA-256 digest of a token, used as its storage
// key.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// JoinToken combines a lookup id and a secret into a single token.
func JoinToken(id, secret string) string {
	return id + tokenSeparator + secret
}

// SplitToken reverses [JoinToken].
func SplitToken(token string) (id, secret string, err error) {
	id, secret, ok := strings.Cut(token, tokenSeparator)
	if !ok || id == "" || secret == "" {
		return "", "", ErrMalformedToken
	}
	return id, secret, nil
}
