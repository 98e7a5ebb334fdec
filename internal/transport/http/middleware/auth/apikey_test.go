package auth

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tmanole/chatgate/internal/storage"
)

func setupStoreWithKey(t *testing.T) (storage.Store, string) {
	t.Helper()

	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	key, err := storage.GenerateAPIKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	hash, err := storage.HashSecret(key)
	if err != nil {
		t.Fatalf("failed to hash key: %v", err)
	}
	err = store.CreateAPIKey(&storage.APIKey{
		ID:        uuid.New().String(),
		UserID:    "u1",
		Name:      "test",
		KeyHash:   hash,
		KeyPrefix: storage.ExtractKeyPrefix(key),
		IsActive:  true,
		CreatedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("failed to store key: %v", err)
	}
	return store, key
}

func TestAPIKeyAuth(t *testing.T) {
	store, key := setupStoreWithKey(t)

	var gotUserID string
	handler := APIKeyAuth(store, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUserID = GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name       string
		authHeader string
		wantStatus int
	}{
		{name: "valid key passes", authHeader: "Bearer " + key, wantStatus: http.StatusOK},
		{name: "missing header rejects", authHeader: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong prefix rejects", authHeader: "Bearer sk-whatever", wantStatus: http.StatusUnauthorized},
		{name: "unknown key rejects", authHeader: "Bearer " + storage.APIKeyPrefix + "0000000000000000", wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotUserID = ""
			req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusOK && gotUserID != "u1" {
				t.Errorf("expected user u1 in context, got %q", gotUserID)
			}
		})
	}
}

func TestAPIKeyAuthCaches(t *testing.T) {
	store, key := setupStoreWithKey(t)

	cache, err := NewKeyCache()
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}

	handler := APIKeyAuth(store, cache)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/v1/chat/stream", nil)
		req.Header.Set("Authorization", "Bearer "+key)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rec.Code)
		}
		cache.Wait()
	}
}
