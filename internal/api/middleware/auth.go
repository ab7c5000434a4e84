package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/helpmh2023/sekretos-hunt-quest/internal/identity"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/models"
	"github.com/helpmh2023/sekretos-hunt-quest/internal/store"
)

type contextKey string

const sessionContextKey contextKey = "session"

// Session is the per-request authenticated state: verified token claims plus
// the resolved agent profile. Handlers read it from the request context
// instead of any ambient current-user.
type Session struct {
	Claims  *identity.Claims
	Profile *models.Profile
}

// AuthMiddleware verifies bearer session tokens and resolves the agent
// profile for authenticated endpoints.
type AuthMiddleware struct {
	provider *identity.Provider
	profiles store.DataStore
}

// NewAuthMiddleware creates a new auth middleware.
func NewAuthMiddleware(provider *identity.Provider, profiles store.DataStore) *AuthMiddleware {
	return &AuthMiddleware{provider: provider, profiles: profiles}
}

// RequireAuth verifies the Authorization bearer token, resolves the agent
// profile, and stores both in the request context.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			jsonError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}
		bearer := strings.TrimPrefix(header, "Bearer ")

		claims, err := m.provider.Verify(r.Context(), bearer)
		if err != nil {
			jsonError(w, http.StatusUnauthorized, "session expired or revoked")
			return
		}

		profile, err := m.profiles.GetProfile(r.Context(), claims.Identity)
		if err != nil {
			jsonError(w, http.StatusInternalServerError, "database error")
			return
		}
		if profile == nil {
			jsonError(w, http.StatusUnauthorized, "agent profile not found")
			return
		}

		ctx := context.WithValue(r.Context(), sessionContextKey, &Session{
			Claims:  claims,
			Profile: profile,
		})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func jsonError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// GetSessionFromContext retrieves the authenticated session from the request
// context, or nil outside RequireAuth.
func GetSessionFromContext(ctx context.Context) *Session {
	session, ok := ctx.Value(sessionContextKey).(*Session)
	if !ok {
		return nil
	}
	return session
}
