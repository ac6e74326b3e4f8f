// Package auth resolves API keys to actor identities. Full user management
// and RBAC live outside this service; the stock core only needs to know who
// performed an operation.
package auth

import (
	"errors"
	"time"
)

// APIKey is a named credential mapped to an actor id. The secret is stored
// as a bcrypt hash; the presented key is "{id}.{secret}".
type APIKey struct {
	ID         int64
	Name       string
	SecretHash string
	ActorID    int64
	Disabled   bool
	CreatedAt  time.Time
}

// ErrInvalidKey indicates a missing, malformed, unknown, or disabled API key.
var ErrInvalidKey = errors.New("invalid api key")
