package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateToken returns a new random API token and the hex SHA-256 digest
// to put under mcp.api_tokens in the configuration.
func GenerateToken() (token, hash string, err error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", "", fmt.Errorf("generate token: %w", err)
	}
	token = "tc_" + hex.EncodeToString(b)
	return token, HashToken(token), nil
}

// HashToken returns the hex SHA-256 digest of token.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// TokenSet checks presented tokens against a fixed list of digests.
type TokenSet struct {
	hashes [][]byte
}

// NewTokenSet parses hex digests. Entries that are not SHA-256 digests are
// skipped; the second result reports how many.
func NewTokenSet(hexHashes []string) (*TokenSet, int) {
	ts := &TokenSet{}
	skipped := 0
	for _, h := range hexHashes {
		b, err := hex.DecodeString(strings.ToLower(h))
		if err != nil || len(b) != sha256.Size {
			skipped++
			continue
		}
		ts.hashes = append(ts.hashes, b)
	}
	return ts, skipped
}

// Len returns the number of usable digests.
func (ts *TokenSet) Len() int { return len(ts.hashes) }

// Valid reports whether token hashes to one of the digests. Every digest
// is compared, with no early exit.
func (ts *TokenSet) Valid(token string) bool {
	sum := sha256.Sum256([]byte(token))
	found := 0
	for _, h := range ts.hashes {
		found |= subtle.ConstantTimeCompare(h, sum[:])
	}
	return found == 1
}
