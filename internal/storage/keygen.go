package storage

import (
	"crypto/rand"
	"math/big"
)

const (
	// APIKeyPrefix marks every chatgate-issued client key.
	APIKeyPrefix = "cg_"
	// APIKeyLength is the number of random characters after the prefix.
	APIKeyLength = 64
	// APIKeyPrefixLen is the identifying prefix length stored for lookup:
	// "cg_" plus the first 8 random characters.
	APIKeyPrefixLen = 11
)

var base62Alphabet = []byte("0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz")

// GenerateAPIKey creates a new client key: cg_ followed by 64 base62 chars.
func GenerateAPIKey() (string, error) {
	out := make([]byte, APIKeyLength)
	alphabetLen := big.NewInt(int64(len(base62Alphabet)))

	for i := range out {
		idx, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", err
		}
		out[i] = base62Alphabet[idx.Int64()]
	}
	return APIKeyPrefix + string(out), nil
}

// ExtractKeyPrefix returns the identifying prefix used for database lookup.
func ExtractKeyPrefix(key string) string {
	if len(key) < APIKeyPrefixLen {
		return key
	}
	return key[:APIKeyPrefixLen]
}
