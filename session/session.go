// Package session resolves the identity of the current user from the bearer
// token held in client storage.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/mercedmeals/feedclient/api"
)

// Storage keys.
const (
	KeyToken = "token"
	KeyUser  = "user"
)

var (
	// ErrUnauthenticated is returned when there is no usable credential.
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrNotFound is returned by a Store for absent keys.
	ErrNotFound = errors.New("key not found")
	// ErrMalformedToken is returned when a token is not JWT-shaped.
	ErrMalformedToken = errors.New("malformed token")
	// ErrMissingSubject is returned when the token payload has no subject.
	ErrMissingSubject = errors.New("token has no subject")
)

// A Store is the durable client-side key/value store the credential lives in.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Identity is the authenticated user of a page view.
type Identity struct {
	UserID api.ID
	Token  string
}

// Decode reads the subject claim of token. The signature is not verified;
// the backend is the only party that trusts or rejects the token.
func Decode(token string) (id Identity, err error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMalformedToken
	}
	defer func() {
		if r := recover(); r != nil {
			id, err = Identity{}, fmt.Errorf("%w: %v", ErrMalformedToken, r)
		}
	}()

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}

	var sub string
	switch v := claims["sub"].(type) {
	case string:
		sub = v
	case float64:
		sub = strconv.FormatFloat(v, 'f', -1, 64)
	}
	if sub == "" {
		return Identity{}, ErrMissingSubject
	}
	return Identity{UserID: api.ID(sub), Token: token}, nil
}

// Gate resolves the identity of one page view. The first successful
// resolution is cached; expiry is only noticed when the backend rejects a
// later request.
type Gate struct {
	Store  Store
	Logger *slog.Logger

	mu       sync.Mutex
	identity *Identity
}

// Resolve returns the cached identity or derives it from the stored token.
// Every failure matches ErrUnauthenticated.
func (g *Gate) Resolve(ctx context.Context) (Identity, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.identity != nil {
		return *g.identity, nil
	}

	token, err := g.Store.Get(ctx, KeyToken)
	switch {
	case errors.Is(err, ErrNotFound):
		return Identity{}, fmt.Errorf("%w: no token stored", ErrUnauthenticated)
	case err != nil:
		g.Logger.Error("Could not read token", "error", err.Error())
		return Identity{}, fmt.Errorf("%w: read token: %w", ErrUnauthenticated, err)
	case strings.TrimSpace(token) == "":
		return Identity{}, fmt.Errorf("%w: empty token", ErrUnauthenticated)
	}

	id, err := Decode(token)
	if err != nil {
		g.Logger.Warn("Could not decode token", "error", err.Error())
		return Identity{}, fmt.Errorf("%w: %w", ErrUnauthenticated, err)
	}

	g.identity = &id
	return id, nil
}

// Reset drops the cached identity.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.identity = nil
	g.mu.Unlock()
}
