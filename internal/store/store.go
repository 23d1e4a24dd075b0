// Package store composes the resource slices into the single container callers hold.
// It owns the cross-slice reactions: clearing user data when the session ends and
// expiring the session when any slice is told the token is no longer accepted.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/auth"
	"github.com/angelmondragon/storefront/internal/cart"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/products"
	"github.com/angelmondragon/storefront/internal/session"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Gateway is the full remote surface of the storefront.
type Gateway interface {
	auth.Gateway
	products.Gateway
	cart.Gateway
	orders.Gateway
}

// Params wires the store's collaborators.
type Params struct {
	Gateway     Gateway
	Tokens      session.TokenStore
	MaxQuantity int
	Logger      *logger.Logger
	Observer    async.Observer
	Now         func() time.Time
}

// State is a consistent-per-slice read of every slice.
type State struct {
	Auth     auth.Snapshot
	Products products.Snapshot
	Cart     cart.Snapshot
	Orders   orders.Snapshot
}

// Store holds one instance of every slice.
type Store struct {
	auth     *auth.Service
	products *products.Service
	cart     *cart.Service
	orders   *orders.Service
	logg     *logger.Logger

	mu     sync.Mutex
	userID string
	unsub  func()
}

// New builds every slice and links their cross-slice reactions.
func New(p Params) (*Store, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("gateway required")
	}
	tokens := p.Tokens
	if tokens == nil {
		tokens = session.NewMemoryStore()
	}

	authSvc, err := auth.NewService(auth.Params{
		Gateway:  p.Gateway,
		Tokens:   tokens,
		Logger:   p.Logger,
		Observer: p.Observer,
		Now:      p.Now,
	})
	if err != nil {
		return nil, err
	}
	productSvc, err := products.NewService(products.Params{
		Gateway:  p.Gateway,
		Logger:   p.Logger,
		Observer: p.Observer,
	})
	if err != nil {
		return nil, err
	}
	orderSvc, err := orders.NewService(orders.Params{
		Gateway:  p.Gateway,
		Logger:   p.Logger,
		Observer: p.Observer,
	})
	if err != nil {
		return nil, err
	}
	cartSvc, err := cart.NewService(cart.Params{
		Gateway:     p.Gateway,
		MaxQuantity: p.MaxQuantity,
		Frozen:      orderSvc.HasCurrent,
		Logger:      p.Logger,
		Observer:    p.Observer,
	})
	if err != nil {
		return nil, err
	}

	s := &Store{
		auth:     authSvc,
		products: productSvc,
		cart:     cartSvc,
		orders:   orderSvc,
		logg:     p.Logger,
	}
	s.unsub = authSvc.Subscribe(s.onAuthEvent)

	authSvc.OnRejected(s.expireOnUnauthorized(auth.SliceName))
	productSvc.OnRejected(s.expireOnUnauthorized(products.SliceName))
	cartSvc.OnRejected(s.expireOnUnauthorized(cart.SliceName))
	orderSvc.OnRejected(s.expireOnUnauthorized(orders.SliceName))
	return s, nil
}

func (s *Store) Auth() *auth.Service         { return s.auth }
func (s *Store) Products() *products.Service { return s.products }
func (s *Store) Cart() *cart.Service         { return s.cart }
func (s *Store) Orders() *orders.Service     { return s.orders }

// State snapshots every slice.
func (s *Store) State() State {
	return State{
		Auth:     s.auth.State(),
		Products: s.products.State(),
		Cart:     s.cart.State(),
		Orders:   s.orders.State(),
	}
}

// Subscribe registers fn for events from every slice.
func (s *Store) Subscribe(fn func(async.Event)) func() {
	unsubs := []func(){
		s.auth.Subscribe(fn),
		s.products.Subscribe(fn),
		s.cart.Subscribe(fn),
		s.orders.Subscribe(fn),
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

// Bootstrap restores the persisted session and, when one resolves, loads the
// user's cart and order history.
func (s *Store) Bootstrap(ctx context.Context) (*types.Session, error) {
	sess, err := s.auth.RestoreSession(ctx)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, nil
	}
	if err := s.SyncUser(ctx); err != nil {
		return sess, err
	}
	return sess, nil
}

// SyncUser refreshes the signed-in user's cart and orders in parallel.
func (s *Store) SyncUser(ctx context.Context) error {
	st := s.auth.State()
	if st.Session == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	userID := st.Session.ID

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, err := s.cart.FetchByUser(gctx, userID)
		return err
	})
	g.Go(func() error {
		_, err := s.orders.FetchByUser(gctx, userID)
		return err
	})
	return g.Wait()
}

// Login signs in and loads the user's data.
func (s *Store) Login(ctx context.Context, creds types.Credentials) (types.Session, error) {
	sess, err := s.auth.Login(ctx, creds)
	if err != nil {
		return types.Session{}, err
	}
	return sess, s.SyncUser(ctx)
}

// Signup creates an account, signs it in and loads its (empty) data.
func (s *Store) Signup(ctx context.Context, profile types.Profile) (types.Session, error) {
	sess, err := s.auth.Signup(ctx, profile)
	if err != nil {
		return types.Session{}, err
	}
	return sess, s.SyncUser(ctx)
}

// Logout ends the session; user data is cleared by the session watcher.
func (s *Store) Logout(ctx context.Context) error {
	return s.auth.Logout(ctx)
}

// Close stops every slice from applying later completions.
func (s *Store) Close() {
	s.mu.Lock()
	unsub := s.unsub
	s.unsub = nil
	s.mu.Unlock()
	if unsub != nil {
		unsub()
	}
	s.auth.Close()
	s.products.Close()
	s.cart.Close()
	s.orders.Close()
}

// onAuthEvent clears per-user slices whenever the signed-in user changes.
func (s *Store) onAuthEvent(ev async.Event) {
	if ev.Phase != async.PhaseFulfilled && ev.Phase != async.PhaseLocal {
		return
	}
	current := ""
	if sess := s.auth.State().Session; sess != nil {
		current = sess.ID
	}

	s.mu.Lock()
	previous := s.userID
	s.userID = current
	s.mu.Unlock()

	if previous == "" || previous == current {
		return
	}
	s.cart.Dispatch(cart.Reset{})
	s.orders.Dispatch(orders.Reset{})
	if s.logg != nil {
		ctx := s.logg.WithUserID(context.Background(), previous)
		s.logg.Info(s.logg.WithField(ctx, "event", ev.Operation), "store.user_data_cleared")
	}
}

func (s *Store) expireOnUnauthorized(slice string) func(op string, err error) {
	return func(op string, err error) {
		if !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
			return
		}
		// bad credentials are not an expired session
		if slice == auth.SliceName && (op == auth.OpLogin || op == auth.OpSignup) {
			return
		}
		ctx := context.Background()
		if s.logg != nil {
			ctx = s.logg.WithSlice(s.logg.WithField(ctx, "operation", op), slice)
		}
		s.auth.Expire(ctx)
	}
}
