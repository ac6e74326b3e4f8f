package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/samudra-retail/samudra-retail/internal/platform/httpx"
	"github.com/samudra-retail/samudra-retail/internal/shared"
)

// KeyLookup abstracts the repository for the middleware.
type KeyLookup interface {
	FindByID(ctx context.Context, id int64) (APIKey, error)
}

// Middleware verifies the bearer API key and injects the actor id into the
// request context.
type Middleware struct {
	keys   KeyLookup
	logger *slog.Logger
}

// NewMiddleware constructs Middleware.
func NewMiddleware(keys KeyLookup, logger *slog.Logger) *Middleware {
	return &Middleware{keys: keys, logger: logger}
}

// RequireActor rejects requests without a valid API key.
func (m *Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, err := m.resolve(r)
		if err != nil {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "valid api key required")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actorID)))
	})
}

func (m *Middleware) resolve(r *http.Request) (int64, error) {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return 0, ErrInvalidKey
	}
	idPart, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok {
		return 0, ErrInvalidKey
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return 0, ErrInvalidKey
	}
	key, err := m.keys.FindByID(r.Context(), id)
	if err != nil {
		return 0, ErrInvalidKey
	}
	if key.Disabled {
		return 0, ErrInvalidKey
	}
	if err := bcrypt.CompareHashAndPassword([]byte(key.SecretHash), []byte(secret)); err != nil {
		m.logger.Warn("api key secret mismatch", slog.Int64("key_id", id))
		return 0, ErrInvalidKey
	}
	return key.ActorID, nil
}
