package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront/api/responses"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	pkgredis "github.com/angelmondragon/storefront/pkg/redis"
)

// DefaultIdempotencyTTL is used when Idempotency is given a non-positive ttl.
const DefaultIdempotencyTTL = 24 * time.Hour

const (
	// IdempotencyHeader carries the caller's key for a replay-safe request.
	IdempotencyHeader = "Idempotency-Key"
	// ReplayedHeader is set on responses served from a stored record.
	ReplayedHeader = "Idempotent-Replayed"

	// A claim left behind by a crashed request frees the key after this long.
	pendingTTL = time.Minute
)

const (
	recordPending = "pending"
	recordDone    = "done"
)

// idempotentRoutes lists the chi route patterns guarded per method.
var idempotentRoutes = map[string][]string{
	http.MethodPost: {"/orders"},
}

type idempotencyRecord struct {
	State       string `json:"state"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency makes keyed requests on guarded routes run at most once per user
// and key. The first request claims the key; a repeat with the same body gets the
// stored response, a repeat with a different body or one that arrives while the
// first is still running is rejected. Server errors release the key so the caller
// can retry. Requests without a key pass through.
func Idempotency(store pkgredis.IdempotencyStore, ttl time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	if ttl <= 0 {
		ttl = DefaultIdempotencyTTL
	}
	claimTTL := min(pendingTTL, ttl)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pattern := routePattern(r)
			clientKey := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
			if store == nil || clientKey == "" || !idempotentRoute(r.Method, pattern) {
				next.ServeHTTP(w, r)
				return
			}

			ctx := logg.WithField(r.Context(), "idempotency_key", clientKey)
			body, err := io.ReadAll(r.Body)
			if err != nil {
				responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unreadable request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			hash := hashRequest(r.Method, pattern, body)
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+pattern, clientKey)

			existing, err := claim(ctx, store, key, hash, claimTTL)
			if err != nil {
				responses.WriteError(ctx, logg, w, err)
				return
			}
			if existing != nil {
				if err := existing.conflict(hash); err != nil {
					responses.WriteError(ctx, logg, w, err)
					return
				}
				logg.Info(ctx, "idempotency.replayed")
				existing.replay(w)
				return
			}

			rec := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(rec, r)

			status := defaultStatus(rec.status)
			if status >= http.StatusInternalServerError {
				if err := store.Del(ctx, key); err != nil {
					logg.Error(ctx, "idempotency.release_failed", err)
				}
				return
			}
			done := idempotencyRecord{
				State:       recordDone,
				RequestHash: hash,
				Status:      status,
				ContentType: rec.Header().Get("Content-Type"),
				Body:        rec.body.Bytes(),
			}
			if err := save(ctx, store, key, done, ttl); err != nil {
				logg.Error(ctx, "idempotency.persist_failed", err)
			}
		})
	}
}

// claim reserves key for this request. It returns the stored record when another
// request already holds the key.
func claim(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string, ttl time.Duration) (*idempotencyRecord, error) {
	pending, err := json.Marshal(idempotencyRecord{State: recordPending, RequestHash: hash})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode idempotency claim")
	}
	// The holder can expire between SetNX and Get, so try twice.
	for attempt := 0; attempt < 2; attempt++ {
		won, err := store.SetNX(ctx, key, string(pending), ttl)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim idempotency key")
		}
		if won {
			return nil, nil
		}
		stored, err := store.Get(ctx, key)
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check idempotency key")
		}
		var record idempotencyRecord
		if err := json.Unmarshal([]byte(stored), &record); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
		}
		return &record, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "idempotency key is contended")
}

func save(ctx context.Context, store pkgredis.IdempotencyStore, key string, record idempotencyRecord, ttl time.Duration) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, string(payload), ttl)
}

func (rec *idempotencyRecord) conflict(hash string) error {
	switch {
	case rec.RequestHash != hash:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body")
	case rec.State != recordDone:
		return pkgerrors.New(pkgerrors.CodeIdempotency, "a request with this idempotency key is still in progress")
	}
	return nil
}

func (rec *idempotencyRecord) replay(w http.ResponseWriter) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set(ReplayedHeader, "true")
	w.WriteHeader(defaultStatus(rec.Status))
	_, _ = w.Write(rec.Body)
}

func hashRequest(method, pattern string, body []byte) string {
	h := sha256.New()
	h.Write([]byte(method + " " + pattern + "\n"))
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}

func defaultStatus(value int) int {
	if value == 0 {
		return http.StatusOK
	}
	return value
}

func routePattern(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if pattern := rc.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}

func idempotentRoute(method, pattern string) bool {
	if pattern == "" {
		return false
	}
	for _, p := range idempotentRoutes[method] {
		if p == pattern {
			return true
		}
	}
	return false
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (r *responseCapture) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *responseCapture) Write(b []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	r.body.Write(b)
	return r.ResponseWriter.Write(b)
}
