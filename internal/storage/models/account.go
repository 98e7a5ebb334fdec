// Package models defines the persisted data shapes.
package models

import "time"

// DefaultStartingBalance is granted to accounts created on first access.
const DefaultStartingBalance int64 = 5000

// Account is a user's credit account. Balances are mutated only through the
// ledger's deduct/grant operations, never written directly by handlers.
type Account struct {
	UserID        string    `json:"user_id"`
	Balance       int64     `json:"balance"`
	LifetimeUsed  int64     `json:"lifetime_used"`
	PeriodUsed    int64     `json:"period_used"`
	PeriodResetAt time.Time `json:"period_reset_at"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
