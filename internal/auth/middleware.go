package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/openvle/messaging/backend/internal/db"
	"github.com/openvle/messaging/backend/internal/models"
)

type contextKey string

// UserKey is the context key used to store the authenticated user.
const UserKey contextKey = "user"

// RequireAuth checks for a valid bearer token in the Authorization header,
// resolves it to a user record and stores the user in the request context
// for downstream handlers. Returns 401 Unauthorized if authentication fails.
func RequireAuth(pool *pgxpool.Pool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")

		if authHeader == "" {
			log.Println("Auth: No Authorization header present")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		// Parse Authorization header: "Bearer <token>" (RFC 7235)
		// Bearer scheme is case-insensitive per RFC 7235
		fields := strings.Fields(authHeader)
		if len(fields) < 2 || !strings.EqualFold(fields[0], "Bearer") {
			log.Println("Auth: Invalid Authorization header format")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		token := strings.TrimSpace(strings.Join(fields[1:], " "))
		if token == "" {
			log.Println("Auth: Empty token after Bearer")
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		username, err := ValidateToken(token)
		if err != nil {
			log.Printf("Auth: Token validation failed: %v", err)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := db.GetUserByUsername(r.Context(), pool, username)
		if err != nil {
			if errors.Is(err, db.ErrUserNotFound) {
				log.Printf("Auth: No user for username %s", username)
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}
			log.Printf("Auth: Failed to load user: %v", err)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		ctx := context.WithValue(r.Context(), UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetUserFromContext returns the authenticated user from the context.
func GetUserFromContext(ctx context.Context) (*models.User, bool) {
	user, ok := ctx.Value(UserKey).(*models.User)
	return user, ok
}

// ValidateToken validates the token and returns the user's username.
// This is a stub for now.
// In test mode (MSG_TEST_MODE=true), if the token starts with "username:",
// it extracts the username from the token (e.g., "username:jsmith" -> "jsmith").
func ValidateToken(token string) (string, error) {
	if strings.TrimSpace(token) == "" || strings.TrimSpace(token) == "username:" {
		return "", fmt.Errorf("token is empty")
	}

	// In test mode, support extracting the username from token format "username:jsmith"
	if os.Getenv("MSG_TEST_MODE") == "true" {
		if strings.HasPrefix(token, "username:") {
			username := strings.TrimPrefix(token, "username:")
			if username != "" {
				return username, nil
			}
		}
	}

	// TODO: Implement token validation against the SSO service

	return "test", nil
}

// RequireBasicAuth guards the trusted notification endpoint with HTTP basic
// auth against a single configured credential pair.
func RequireBasicAuth(username, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(user), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(pass), []byte(password)) != 1 {
			log.Println("Auth: Invalid notification credentials")
			w.Header().Set("WWW-Authenticate", `Basic realm="notifications"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}
