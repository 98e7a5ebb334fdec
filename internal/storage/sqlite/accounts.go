package sqlite

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tmanole/chatgate/internal/storage/models"
)

// GetAccount returns the account for userID, or ErrNotFound.
func (s *Store) GetAccount(userID string) (*models.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStoreClosed
	}

	var acc models.Account
	err := s.db.QueryRow(`
		SELECT user_id, balance, lifetime_used, period_used, period_reset_at, created_at, updated_at
		FROM accounts WHERE user_id = ?
	`, userID).Scan(&acc.UserID, &acc.Balance, &acc.LifetimeUsed, &acc.PeriodUsed,
		&acc.PeriodResetAt, &acc.CreatedAt, &acc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

// CreateAccount inserts a new account row.
func (s *Store) CreateAccount(acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	now := time.Now()
	acc.CreatedAt = now
	acc.UpdatedAt = now
	if acc.PeriodResetAt.IsZero() {
		acc.PeriodResetAt = now
	}

	_, err := s.db.Exec(`
		INSERT INTO accounts (user_id, balance, lifetime_used, period_used, period_reset_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, acc.UserID, acc.Balance, acc.LifetimeUsed, acc.PeriodUsed, acc.PeriodResetAt, acc.CreatedAt, acc.UpdatedAt)
	return err
}

// UpdateAccount persists balance and usage counters for an existing account.
// Serialization of concurrent read-modify-write cycles is the ledger's job;
// the store only guarantees a durable single write.
func (s *Store) UpdateAccount(acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStoreClosed
	}

	acc.UpdatedAt = time.Now()

	result, err := s.db.Exec(`
		UPDATE accounts
		SET balance = ?, lifetime_used = ?, period_used = ?, period_reset_at = ?, updated_at = ?
		WHERE user_id = ?
	`, acc.Balance, acc.LifetimeUsed, acc.PeriodUsed, acc.PeriodResetAt, acc.UpdatedAt, acc.UserID)
	if err != nil {
		return err
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}
