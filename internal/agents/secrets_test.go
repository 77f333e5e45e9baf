package agents

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateRegistrationToken(t *testing.T) {
	token, err := GenerateRegistrationToken()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(token, "cat_reg_"))
	// 24 random bytes hex-encoded
	assert.Len(t, token, len("cat_reg_")+48)
}

func TestGenerateAPIKey(t *testing.T) {
	key, err := GenerateAPIKey()
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(key, "cat_perm_"))
	// 32 random bytes hex-encoded
	assert.Len(t, key, len("cat_perm_")+64)
}

func TestSecretsAreUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		token, err := GenerateRegistrationToken()
		require.NoError(t, err)
		assert.False(t, seen[token])
		seen[token] = true
	}
}

func TestHashKey(t *testing.T) {
	hash := HashKey("cat_perm_deadbeef")

	// SHA-256 hex digest
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, HashKey("cat_perm_deadbeef"))
	assert.NotEqual(t, hash, HashKey("cat_perm_deadbeee"))
}
