package agents

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

const (
	tokenPrefix = "cat_reg_"
	tokenLength = 24 // 24 bytes = 192 bits

	apiKeyPrefix = "cat_perm_"
	apiKeyLength = 32 // 32 bytes = 256 bits
)

// GenerateRegistrationToken creates a one-time registration token with
// crypto/rand. The prefix makes tokens visually distinguishable from
// permanent API keys.
func GenerateRegistrationToken() (string, error) {
	return generateSecret(tokenPrefix, tokenLength)
}

// GenerateAPIKey creates a permanent agent credential.
func GenerateAPIKey() (string, error) {
	return generateSecret(apiKeyPrefix, apiKeyLength)
}

func generateSecret(prefix string, length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return prefix + hex.EncodeToString(b), nil
}

// HashKey computes the SHA-256 hash of a credential. Only the hash is
// stored; the deterministic digest keeps credential lookup a single-statement
// exact match.
func HashKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return fmt.Sprintf("%x", hash)
}
