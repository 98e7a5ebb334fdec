package ledger

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/storage/models"
)

// memStore is an in-memory storage.Store for ledger tests.
type memStore struct {
	mu       sync.Mutex
	accounts map[string]models.Account
	usage    []models.UsageRecord

	failUpdate bool
}

func newMemStore() *memStore {
	return &memStore{accounts: make(map[string]models.Account)}
}

func (m *memStore) GetAccount(userID string) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[userID]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := acc
	return &copied, nil
}

func (m *memStore) CreateAccount(acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acc.UserID] = *acc
	return nil
}

func (m *memStore) UpdateAccount(acc *models.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failUpdate {
		return assert.AnError
	}
	if _, ok := m.accounts[acc.UserID]; !ok {
		return storage.ErrNotFound
	}
	m.accounts[acc.UserID] = *acc
	return nil
}

func (m *memStore) AppendUsage(rec *models.UsageRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usage = append(m.usage, *rec)
	return nil
}

func (m *memStore) PeriodUsage(string, time.Time) (int64, error) { return 0, nil }
func (m *memStore) GetUsageStats(models.StatsFilter) (*models.UsageStats, error) {
	return &models.UsageStats{}, nil
}
func (m *memStore) LogRequest(*models.RequestLog) error { return nil }
func (m *memStore) GetRequestLogs(models.LogFilter) ([]*models.RequestLog, error) {
	return nil, nil
}
func (m *memStore) CreateAPIKey(*models.APIKey) error { return nil }
func (m *memStore) GetAPIKeysByPrefix(string) ([]*models.APIKey, error) {
	return nil, nil
}
func (m *memStore) UpdateAPIKeyLastUsed(string) error    { return nil }
func (m *memStore) GetAdminPasswordHash() (string, error) { return "", storage.ErrNotFound }
func (m *memStore) SetAdminPasswordHash(string) error     { return nil }
func (m *memStore) HasAdminPassword() (bool, error)       { return false, nil }
func (m *memStore) Close() error                          { return nil }

func (m *memStore) usageFor(userID string) []models.UsageRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.UsageRecord
	for _, rec := range m.usage {
		if rec.UserID == userID {
			out = append(out, rec)
		}
	}
	return out
}

func TestLazyAccountCreation(t *testing.T) {
	store := newMemStore()
	l := New(store, 5000, nil)

	balance, err := l.Balance("fresh-user")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), balance)

	// Second read hits the created account, not another creation.
	acc, err := l.Account("fresh-user")
	require.NoError(t, err)
	assert.Equal(t, int64(5000), acc.Balance)
	assert.Len(t, store.accounts, 1)
}

func TestDeduct(t *testing.T) {
	store := newMemStore()
	l := New(store, 100, nil)

	newBalance, err := l.Deduct("u1", 30, models.ReasonChat, "openai/gpt-4o")
	require.NoError(t, err)
	assert.Equal(t, int64(70), newBalance)

	acc, _ := l.Account("u1")
	assert.Equal(t, int64(30), acc.LifetimeUsed)
	assert.Equal(t, int64(30), acc.PeriodUsed)

	records := store.usageFor("u1")
	require.Len(t, records, 1)
	assert.Equal(t, int64(30), records[0].Amount)
	assert.Equal(t, models.ReasonChat, records[0].Reason)
	assert.Equal(t, "openai/gpt-4o", records[0].Model)
}

func TestDeductInsufficientLeavesBalanceUntouched(t *testing.T) {
	store := newMemStore()
	l := New(store, 10, nil)

	_, err := l.Deduct("u1", 50, models.ReasonChat, "m")
	assert.ErrorIs(t, err, ErrInsufficientBalance)

	balance, _ := l.Balance("u1")
	assert.Equal(t, int64(10), balance)
	assert.Empty(t, store.usageFor("u1"), "failed deduct must not append usage")
}

func TestDeductRejectsNonPositiveAmounts(t *testing.T) {
	l := New(newMemStore(), 100, nil)

	_, err := l.Deduct("u1", 0, models.ReasonChat, "m")
	assert.Error(t, err)
	_, err = l.Deduct("u1", -5, models.ReasonChat, "m")
	assert.Error(t, err)
}

func TestGrantIsNotUsage(t *testing.T) {
	store := newMemStore()
	l := New(store, 0, nil)

	newBalance, err := l.Grant("u1", 500, "admin")
	require.NoError(t, err)
	assert.Equal(t, int64(500), newBalance)

	acc, _ := l.Account("u1")
	assert.Zero(t, acc.LifetimeUsed)
	assert.Zero(t, acc.PeriodUsed)

	records := store.usageFor("u1")
	require.Len(t, records, 1)
	assert.Equal(t, models.ReasonGrant, records[0].Reason)
	assert.Equal(t, "admin", records[0].GrantedBy)
}

func TestConcurrentDeductsNeverOverspend(t *testing.T) {
	store := newMemStore()
	l := New(store, 100, nil)

	const workers = 50
	var wg sync.WaitGroup
	var succeeded int64
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := l.Deduct("u1", 10, models.ReasonChat, "m"); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	// Balance 100 at 10 per deduct: exactly 10 may win.
	assert.Equal(t, int64(10), succeeded)
	balance, _ := l.Balance("u1")
	assert.Equal(t, int64(0), balance)
	assert.Len(t, store.usageFor("u1"), 10)
}

func TestPeriodRollsOver(t *testing.T) {
	store := newMemStore()
	l := New(store, 1000, nil)

	_, err := l.Deduct("u1", 100, models.ReasonChat, "m")
	require.NoError(t, err)

	// Age the period window past its length.
	store.mu.Lock()
	acc := store.accounts["u1"]
	acc.PeriodResetAt = time.Now().Add(-periodLength - time.Hour)
	store.accounts["u1"] = acc
	store.mu.Unlock()

	got, err := l.Account("u1")
	require.NoError(t, err)
	assert.Zero(t, got.PeriodUsed, "period usage resets after the window")
	assert.Equal(t, int64(100), got.LifetimeUsed, "lifetime usage is never reset")
}
