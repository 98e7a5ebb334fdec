// Package ledger owns per-user credit balances. All balance mutations go
// through Deduct and Grant, which serialize read-modify-write cycles per user
// so concurrent requests cannot double-spend. Every deduction appends an
// immutable usage record.
package ledger

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/storage/models"
)

// ErrInsufficientBalance is returned when a deduction would drive the
// balance below zero. The balance is left untouched.
var ErrInsufficientBalance = errors.New("insufficient balance")

// periodLength is the usage-this-period aggregation window.
const periodLength = 30 * 24 * time.Hour

// Ledger provides atomic check/deduct/grant operations over the store.
type Ledger struct {
	store          storage.Store
	logger         *slog.Logger
	defaultBalance int64

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger over the given store. New accounts start with
// defaultBalance credits.
func New(store storage.Store, defaultBalance int64, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		store:          store,
		logger:         logger,
		defaultBalance: defaultBalance,
		locks:          make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing mutations for one user.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()

	lock, ok := l.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[userID] = lock
	}
	return lock
}

// loadOrCreate fetches the account, creating it with the default balance on
// first access. Older user records predate the credit system entirely, so
// creation doubles as migration-on-read. Also rolls the usage period forward
// when the window has elapsed.
func (l *Ledger) loadOrCreate(userID string) (*models.Account, error) {
	acc, err := l.store.GetAccount(userID)
	if errors.Is(err, storage.ErrNotFound) {
		acc = &models.Account{
			UserID:        userID,
			Balance:       l.defaultBalance,
			PeriodResetAt: time.Now(),
		}
		if createErr := l.store.CreateAccount(acc); createErr != nil {
			return nil, fmt.Errorf("create account: %w", createErr)
		}
		l.logger.Info("credit account created", "user", userID, "balance", acc.Balance)
		return acc, nil
	}
	if err != nil {
		return nil, err
	}

	if time.Since(acc.PeriodResetAt) >= periodLength {
		acc.PeriodUsed = 0
		acc.PeriodResetAt = time.Now()
		if err := l.store.UpdateAccount(acc); err != nil {
			return nil, fmt.Errorf("reset usage period: %w", err)
		}
	}
	return acc, nil
}

// Balance returns the user's current balance, creating the account if this
// is its first access.
func (l *Ledger) Balance(userID string) (int64, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := l.loadOrCreate(userID)
	if err != nil {
		return 0, err
	}
	return acc.Balance, nil
}

// Account returns a copy of the user's full account state.
func (l *Ledger) Account(userID string) (*models.Account, error) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := l.loadOrCreate(userID)
	if err != nil {
		return nil, err
	}
	copied := *acc
	return &copied, nil
}

// HasSufficient reports whether the balance covers amount.
func (l *Ledger) HasSufficient(userID string, amount int64) (bool, error) {
	balance, err := l.Balance(userID)
	if err != nil {
		return false, err
	}
	return balance >= amount, nil
}

// Deduct atomically charges amount against the user's balance and appends a
// usage record. It fails with ErrInsufficientBalance, without mutating
// anything, if the balance at time of application is too low.
func (l *Ledger) Deduct(userID string, amount int64, reason, model string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deduct amount must be positive, got %d", amount)
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := l.loadOrCreate(userID)
	if err != nil {
		return 0, err
	}

	if acc.Balance < amount {
		return acc.Balance, ErrInsufficientBalance
	}

	acc.Balance -= amount
	acc.LifetimeUsed += amount
	acc.PeriodUsed += amount
	if err := l.store.UpdateAccount(acc); err != nil {
		return 0, fmt.Errorf("persist deduction: %w", err)
	}

	rec := &models.UsageRecord{
		UserID: userID,
		Amount: amount,
		Reason: reason,
		Model:  model,
	}
	if err := l.store.AppendUsage(rec); err != nil {
		// The balance write already landed; a missing usage record is a
		// reporting gap, not a billing error.
		l.logger.Error("usage record append failed", "user", userID, "amount", amount, "error", err)
	}

	return acc.Balance, nil
}

// Grant atomically adds credits to the user's balance. Grants are recorded
// in the usage log for audit but do not count as usage.
func (l *Ledger) Grant(userID string, amount int64, grantedBy string) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("grant amount must be positive, got %d", amount)
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	acc, err := l.loadOrCreate(userID)
	if err != nil {
		return 0, err
	}

	acc.Balance += amount
	if err := l.store.UpdateAccount(acc); err != nil {
		return 0, fmt.Errorf("persist grant: %w", err)
	}

	rec := &models.UsageRecord{
		UserID:    userID,
		Amount:    amount,
		Reason:    models.ReasonGrant,
		GrantedBy: grantedBy,
	}
	if err := l.store.AppendUsage(rec); err != nil {
		l.logger.Error("grant record append failed", "user", userID, "amount", amount, "error", err)
	}

	l.logger.Info("credits granted", "user", userID, "amount", amount, "granted_by", grantedBy)
	return acc.Balance, nil
}
