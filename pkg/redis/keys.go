package redis

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyNamespace      = "sf"
	idempotencyPrefix = "idempotency"
	sessionPrefix     = "session"
)

// ErrMissing is returned when no session token is stored for a client.
var ErrMissing = errors.New("redis key not found")

// SessionStore persists a client's session token between runs.
type SessionStore interface {
	StoreSessionToken(ctx context.Context, clientID, token string, ttl time.Duration) error
	GetSessionToken(ctx context.Context, clientID string) (string, error)
	TouchSessionToken(ctx context.Context, clientID string, ttl time.Duration) (bool, error)
	RevokeSessionToken(ctx context.Context, clientID string) error
}

var _ SessionStore = (*Client)(nil)

// IdempotencyKey namespaces a caller's idempotency key under scope.
func (c *Client) IdempotencyKey(scope, id string) string {
	return buildKey(idempotencyPrefix, scope, id)
}

// SessionKey is where clientID's token lives.
func (c *Client) SessionKey(clientID string) string {
	return buildKey(sessionPrefix, clientID)
}

func (c *Client) StoreSessionToken(ctx context.Context, clientID, token string, ttl time.Duration) error {
	return c.Set(ctx, c.SessionKey(clientID), token, ttl)
}

// GetSessionToken returns the stored token or ErrMissing.
func (c *Client) GetSessionToken(ctx context.Context, clientID string) (string, error) {
	token, err := c.Get(ctx, c.SessionKey(clientID))
	if errors.Is(err, redis.Nil) {
		return "", ErrMissing
	}
	return token, err
}

// TouchSessionToken pushes the token's expiry out to ttl from now. It reports
// false when no token is stored.
func (c *Client) TouchSessionToken(ctx context.Context, clientID string, ttl time.Duration) (bool, error) {
	return c.Expire(ctx, c.SessionKey(clientID), ttl)
}

func (c *Client) RevokeSessionToken(ctx context.Context, clientID string) error {
	return c.Del(ctx, c.SessionKey(clientID))
}

// buildKey joins the non-empty parts under the sf namespace.
func buildKey(parts ...string) string {
	key := keyNamespace
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			key += ":" + part
		}
	}
	return key
}
