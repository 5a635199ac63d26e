// Package auth is the gate in front of every protected route: bearer token
// issuance and verification, password hashing, and the admin check.
package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"scrooge-bank/apperr"
	"scrooge-bank/models"
)

// UserLookup resolves the live user record behind a token.
type UserLookup interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

type ctxKey struct{}

func WithUser(ctx context.Context, u *models.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

func UserFrom(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*models.User)
	return u, ok && u != nil
}

type Authenticator struct {
	tokens *Tokens
	users  UserLookup
	log    *zap.Logger
}

func NewAuthenticator(tokens *Tokens, users UserLookup, log *zap.Logger) *Authenticator {
	return &Authenticator{tokens: tokens, users: users, log: log}
}

// VerifyToken requires "Authorization: Bearer <token>", verifies the token and
// reloads the user it names before calling next.
func (a *Authenticator) VerifyToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		parts := strings.Split(header, " ")
		if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
			writeError(w, http.StatusUnauthorized, "Invalid authorization header")
			return
		}

		claims, err := a.tokens.Verify(parts[1])
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Invalid token")
			return
		}

		user, err := a.users.UserByID(r.Context(), claims.ID)
		if err != nil {
			if apperr.KindOf(err) == apperr.NotFound {
				writeError(w, http.StatusUnauthorized, "User not found")
				return
			}
			a.log.Error("resolve token user", zap.Int64("user_id", claims.ID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
	})
}

// RequireAdmin must run after VerifyToken.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, ok := UserFrom(r.Context())
		if !ok {
			writeError(w, http.StatusUnauthorized, "Authorization required")
			return
		}
		if !u.IsAdmin() {
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
