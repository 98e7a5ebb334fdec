// Package auth provides authentication middleware for HTTP routes.
package auth

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/tmanole/chatgate/internal/storage"
	"github.com/tmanole/chatgate/internal/types"
)

// APIKeyContextKey is the context key for the authenticated API key.
type APIKeyContextKey struct{}

// cacheTTL bounds how long a verified key skips the database.
const cacheTTL = 5 * time.Minute

// CachedAPIKey holds validated key info for caching.
type CachedAPIKey struct {
	Key        *storage.APIKey
	ValidUntil time.Time
}

// NewKeyCache creates the verification cache used by APIKeyAuth.
func NewKeyCache() (*ristretto.Cache[string, *CachedAPIKey], error) {
	return ristretto.NewCache(&ristretto.Config[string, *CachedAPIKey]{
		NumCounters: 10_000,
		MaxCost:     1_000,
		BufferItems: 64,
	})
}

// APIKeyAuth authenticates requests with a bearer API key. Only keys with
// the service prefix are accepted. The argon2 verification is expensive, so
// verified keys are cached for a few minutes.
func APIKeyAuth(store storage.Store, cache *ristretto.Cache[string, *CachedAPIKey]) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "API key required")
				return
			}
			apiKey := strings.TrimPrefix(auth, "Bearer ")

			if !strings.HasPrefix(apiKey, storage.APIKeyPrefix) {
				writeUnauthorized(w, "only "+storage.APIKeyPrefix+"* API keys are accepted")
				return
			}

			prefix := storage.ExtractKeyPrefix(apiKey)
			cacheKey := "apikey:" + prefix

			if cache != nil {
				if cached, found := cache.Get(cacheKey); found && time.Now().Before(cached.ValidUntil) {
					valid, _ := storage.VerifySecret(apiKey, cached.Key.KeyHash)
					if valid && cached.Key.IsActive && !cached.Key.IsExpired() {
						ctx := context.WithValue(r.Context(), APIKeyContextKey{}, cached.Key)
						next.ServeHTTP(w, r.WithContext(ctx))
						return
					}
				}
			}

			keys, err := store.GetAPIKeysByPrefix(prefix)
			if err != nil || len(keys) == 0 {
				writeUnauthorized(w, "invalid API key")
				return
			}

			var validKey *storage.APIKey
			for _, k := range keys {
				valid, _ := storage.VerifySecret(apiKey, k.KeyHash)
				if valid {
					validKey = k
					break
				}
			}

			if validKey == nil || !validKey.IsActive || validKey.IsExpired() {
				writeUnauthorized(w, "invalid or expired API key")
				return
			}

			if cache != nil {
				cache.Set(cacheKey, &CachedAPIKey{
					Key:        validKey,
					ValidUntil: time.Now().Add(cacheTTL),
				}, 1)
			}

			go func() { _ = store.UpdateAPIKeyLastUsed(validKey.ID) }()

			ctx := context.WithValue(r.Context(), APIKeyContextKey{}, validKey)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAPIKey retrieves the authenticated API key from context.
func GetAPIKey(ctx context.Context) *storage.APIKey {
	if key, ok := ctx.Value(APIKeyContextKey{}).(*storage.APIKey); ok {
		return key
	}
	return nil
}

// GetUserID returns the user the authenticated key belongs to.
func GetUserID(ctx context.Context) string {
	if key := GetAPIKey(ctx); key != nil {
		return key.UserID
	}
	return ""
}

// writeUnauthorized writes a JSON 401 response.
func writeUnauthorized(w http.ResponseWriter, message string) {
	types.WriteError(w, http.StatusUnauthorized, types.ErrAuthentication(message))
}
