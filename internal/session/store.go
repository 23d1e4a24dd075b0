// Package session persists the opaque session token so a restarted client can
// restore its session from the gateway.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/storefront/pkg/config"
	redisclient "github.com/angelmondragon/storefront/pkg/redis"
)

// ErrNoToken is returned by Load when nothing is stored.
var ErrNoToken = errors.New("no session token stored")

// TokenStore is the single persisted artifact of the client.
type TokenStore interface {
	Load(ctx context.Context) (string, error)
	Save(ctx context.Context, token string) error
	Clear(ctx context.Context) error
}

// MemoryStore keeps the token for the lifetime of the process.
type MemoryStore struct {
	mu    sync.Mutex
	token string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (m *MemoryStore) Load(context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token == "" {
		return "", ErrNoToken
	}
	return m.token, nil
}

func (m *MemoryStore) Save(_ context.Context, token string) error {
	m.mu.Lock()
	m.token = token
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
	return nil
}

// RedisStore keeps the token under a per-client key so it survives restarts.
// Each successful Load slides the key's expiry forward by ttl.
type RedisStore struct {
	store    redisclient.SessionStore
	clientID string
	ttl      time.Duration
}

// NewRedisStore constructs a token store backed by Redis.
func NewRedisStore(store redisclient.SessionStore, clientID string, ttl time.Duration) (*RedisStore, error) {
	if store == nil {
		return nil, fmt.Errorf("redis session store is required")
	}
	if strings.TrimSpace(clientID) == "" {
		return nil, fmt.Errorf("client id is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session ttl must be positive")
	}
	return &RedisStore{store: store, clientID: clientID, ttl: ttl}, nil
}

func (r *RedisStore) Load(ctx context.Context) (string, error) {
	token, err := r.store.GetSessionToken(ctx, r.clientID)
	if errors.Is(err, redisclient.ErrMissing) {
		return "", ErrNoToken
	}
	if err != nil {
		return "", fmt.Errorf("loading session token: %w", err)
	}
	if _, err := r.store.TouchSessionToken(ctx, r.clientID, r.ttl); err != nil {
		return "", fmt.Errorf("extending session token: %w", err)
	}
	return token, nil
}

func (r *RedisStore) Save(ctx context.Context, token string) error {
	if err := r.store.StoreSessionToken(ctx, r.clientID, token, r.ttl); err != nil {
		return fmt.Errorf("saving session token: %w", err)
	}
	return nil
}

func (r *RedisStore) Clear(ctx context.Context) error {
	if err := r.store.RevokeSessionToken(ctx, r.clientID); err != nil {
		return fmt.Errorf("clearing session token: %w", err)
	}
	return nil
}

// FromConfig picks the store named by cfg.Session. A redis store requires a client.
func FromConfig(cfg *config.Config, client redisclient.SessionStore) (TokenStore, error) {
	if !cfg.Session.UsesRedis() {
		return NewMemoryStore(), nil
	}
	if client == nil {
		return nil, fmt.Errorf("session store %q requires redis", cfg.Session.Store)
	}
	return NewRedisStore(client, cfg.Session.ClientID, cfg.Redis.SessionTTL)
}
