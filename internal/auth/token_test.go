package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken_ReturnsTokenAndMatchingHash(t *testing.T) {
	t.Parallel()

	token, hash, err := GenerateToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, "tc_"))
	assert.Len(t, token, 3+64)
	assert.Len(t, hash, 64)
	assert.Equal(t, HashToken(token), hash)
}

func TestGenerateToken_CalledTwice_ReturnsDifferentTokens(t *testing.T) {
	t.Parallel()

	first, _, err := GenerateToken()
	require.NoError(t, err)
	second, _, err := GenerateToken()
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestHashToken_KnownVector(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08", HashToken("test"))
}

func TestTokenSet_Valid(t *testing.T) {
	t.Parallel()

	ts, skipped := NewTokenSet([]string{
		HashToken("alpha"),
		strings.ToUpper(HashToken("beta")),
		"not-a-digest",
	})

	assert.Equal(t, 1, skipped)
	assert.Equal(t, 2, ts.Len())
	assert.True(t, ts.Valid("alpha"))
	assert.True(t, ts.Valid("beta"))
	assert.False(t, ts.Valid("gamma"))
	assert.False(t, ts.Valid(""))
}

func TestTokenSet_Empty_RejectsEverything(t *testing.T) {
	t.Parallel()

	ts, skipped := NewTokenSet(nil)

	assert.Zero(t, skipped)
	assert.False(t, ts.Valid("anything"))
}
