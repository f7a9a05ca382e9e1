package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"ofsync/internal/shared/logger"
)

type ContextKey string

const UserIDKey ContextKey = "user_id"

const ServiceKeyHeader = "X-Service-Key"

// IdentityVerifier resolves a bearer token to the caller's user id.
// Implemented by auth.JWTVerifier and firebase.AuthVerifier.
type IdentityVerifier interface {
	VerifyToken(ctx context.Context, token string) (string, error)
}

// ServiceKeyVerifier checks elevated service credentials.
type ServiceKeyVerifier interface {
	Verify(key string) error
}

// Auth rejects requests without a valid bearer token and stores the
// resolved user id under UserIDKey.
func Auth(verifier IdentityVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				unauthorized(w, "authentication required")
				return
			}

			userID, err := verifier.VerifyToken(r.Context(), token)
			if err != nil || userID == "" {
				unauthorized(w, "invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, userID)
			_, ctx = logger.With(ctx, zap.String("user_id", userID))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ServiceAuth guards operator endpoints with the X-Service-Key header.
func ServiceAuth(verifier ServiceKeyVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := verifier.Verify(r.Header.Get(ServiceKeyHeader)); err != nil {
				logger.FromContext(r.Context()).Warn("service key rejected")
				unauthorized(w, "service credentials required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// UserID returns the authenticated user id, or "" outside Auth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": message, "code": "unauthorized"})
}
