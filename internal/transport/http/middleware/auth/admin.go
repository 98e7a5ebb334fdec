package auth

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// AdminTokenLifetime is how long an issued admin session token is valid.
const AdminTokenLifetime = time.Hour

// adminSubject marks tokens issued by the admin login endpoint.
const adminSubject = "admin"

var (
	// ErrTokenExpired is returned when the admin token has expired.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken is returned when the token is invalid for any reason.
	ErrInvalidToken = errors.New("invalid token")
)

// AdminClaims are the JWT claims carried by an admin session token.
type AdminClaims struct {
	jwt.RegisteredClaims
}

// IssueAdminToken creates a signed admin session token.
func IssueAdminToken(secret string) (string, error) {
	now := time.Now()
	claims := AdminClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   adminSubject,
			ExpiresAt: jwt.NewNumericDate(now.Add(AdminTokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ValidateAdminToken validates a signed admin session token.
func ValidateAdminToken(tokenString, secret string) error {
	token, err := jwt.ParseWithClaims(tokenString, &AdminClaims{}, func(t *jwt.Token) (interface{}, error) {
		// Accept only the method we issue with.
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrTokenExpired
		}
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*AdminClaims)
	if !ok || !token.Valid || claims.Subject != adminSubject {
		return ErrInvalidToken
	}
	return nil
}

// AdminAuth protects admin routes with a bearer session token obtained from
// the admin login endpoint.
func AdminAuth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")
			if auth == "" || !strings.HasPrefix(auth, "Bearer ") {
				writeUnauthorized(w, "authorization required")
				return
			}
			token := strings.TrimPrefix(auth, "Bearer ")

			if err := ValidateAdminToken(token, secret); err != nil {
				if errors.Is(err, ErrTokenExpired) {
					writeUnauthorized(w, "session expired")
					return
				}
				writeUnauthorized(w, "invalid credentials")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
