package sqlite

import (
	"time"

	"github.com/google/uuid"
	"github.com/tmanole/chatgate/internal/storage/models"
)

// CreateAPIKey inserts a new client API key.
func (s *Store) CreateAPIKey(key *models.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	key.CreatedAt = time.Now()

	_, err := s.db.Exec(`
		INSERT INTO api_keys (id, user_id, name, key_hash, key_prefix, is_active, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, key.ID, key.UserID, key.Name, key.KeyHash, key.KeyPrefix, key.IsActive, key.ExpiresAt, key.CreatedAt)
	return err
}

// GetAPIKeysByPrefix returns all keys sharing an identifying prefix. Hash
// verification against the presented key happens in the auth middleware.
func (s *Store) GetAPIKeysByPrefix(prefix string) ([]*models.APIKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	rows, err := s.db.Query(`
		SELECT id, user_id, name, key_hash, key_prefix, is_active, last_used_at, created_at, expires_at
		FROM api_keys WHERE key_prefix = ?
	`, prefix)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []*models.APIKey
	for rows.Next() {
		var k models.APIKey
		if err := rows.Scan(&k.ID, &k.UserID, &k.Name, &k.KeyHash, &k.KeyPrefix,
			&k.IsActive, &k.LastUsedAt, &k.CreatedAt, &k.ExpiresAt); err != nil {
			return nil, err
		}
		keys = append(keys, &k)
	}
	return keys, rows.Err()
}

// UpdateAPIKeyLastUsed stamps the last_used_at column.
func (s *Store) UpdateAPIKeyLastUsed(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	_, err := s.db.Exec("UPDATE api_keys SET last_used_at = ? WHERE id = ?", time.Now(), id)
	return err
}
