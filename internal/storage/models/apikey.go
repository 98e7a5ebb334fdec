package models

import (
	"strings"
	"time"
)

// APIKey is a client key bound to a user account. Only the argon2id hash and
// the identifying prefix are stored; the full key is shown once at creation.
type APIKey struct {
	ID         string     `json:"id"`
	UserID     string     `json:"user_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"key_prefix"`
	IsActive   bool       `json:"is_active"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ExpiresAt  *time.Time `json:"expires_at,omitempty"`
}

// IsExpired reports whether the key is past its expiry.
func (k *APIKey) IsExpired() bool {
	return k.ExpiresAt != nil && time.Now().After(*k.ExpiresAt)
}

// MaskAPIKey renders a key for display: prefix plus asterisks.
func MaskAPIKey(key string) string {
	if len(key) <= 11 {
		return key
	}
	return key[:11] + strings.Repeat("*", 8)
}
