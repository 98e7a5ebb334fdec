// Package storage provides the persistence interface and its implementations.
package storage

import (
	"time"

	"github.com/tmanole/chatgate/internal/storage/models"
	"github.com/tmanole/chatgate/internal/storage/sqlite"
)

// Re-export model types for convenience.
type (
	Account     = models.Account
	UsageRecord = models.UsageRecord
	UsageStats  = models.UsageStats
	StatsFilter = models.StatsFilter
	RequestLog  = models.RequestLog
	LogFilter   = models.LogFilter
	APIKey      = models.APIKey
)

// Re-export sentinel errors.
var (
	ErrNotFound    = sqlite.ErrNotFound
	ErrStoreClosed = sqlite.ErrStoreClosed
)

// MaskAPIKey re-exports the display masking helper.
var MaskAPIKey = models.MaskAPIKey

// DefaultStartingBalance re-exports the lazy-creation grant.
const DefaultStartingBalance = models.DefaultStartingBalance

// Store is the durable persistence collaborator. Implementations guarantee
// crash-safe, serialized writes; cross-call atomicity (read-modify-write on
// balances) is layered on top by the credit ledger.
type Store interface {
	// Credit accounts
	GetAccount(userID string) (*models.Account, error)
	CreateAccount(acc *models.Account) error
	UpdateAccount(acc *models.Account) error

	// Usage ledger (append only)
	AppendUsage(rec *models.UsageRecord) error
	PeriodUsage(userID string, since time.Time) (int64, error)
	GetUsageStats(filter models.StatsFilter) (*models.UsageStats, error)

	// Request logging
	LogRequest(log *models.RequestLog) error
	GetRequestLogs(filter models.LogFilter) ([]*models.RequestLog, error)

	// Client API keys
	CreateAPIKey(key *models.APIKey) error
	GetAPIKeysByPrefix(prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(id string) error

	// Admin password
	GetAdminPasswordHash() (string, error)
	SetAdminPasswordHash(hash string) error
	HasAdminPassword() (bool, error)

	Close() error
}

// NewSQLiteStore creates the SQLite-backed store.
func NewSQLiteStore(dbPath string) (Store, error) {
	return sqlite.New(dbPath)
}
