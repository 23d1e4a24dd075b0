package store

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/session"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

type fakeGateway struct {
	mu        sync.Mutex
	sessions  map[string]types.Session
	carts     map[string][]types.CartItem
	orders    map[string][]types.Order
	cartErr   error
	cartCalls int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		sessions: map[string]types.Session{
			"tok-1": {ID: "u1", Token: "tok-1", Email: "a@example.com"},
			"tok-2": {ID: "u2", Token: "tok-2", Email: "b@example.com"},
		},
		carts: map[string][]types.CartItem{
			"u1": {{ID: "c1", ProductID: "1", UserID: "u1", Quantity: 2, Price: decimal.NewFromInt(10)}},
		},
		orders: map[string][]types.Order{
			"u1": {{ID: "o1", UserID: "u1"}},
		},
	}
}

func (f *fakeGateway) Login(_ context.Context, creds types.Credentials) (types.Session, error) {
	for _, sess := range f.sessions {
		if sess.Email == creds.Email && creds.Password == "secret" {
			return sess, nil
		}
	}
	return types.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid credentials")
}

func (f *fakeGateway) Signup(_ context.Context, profile types.Profile) (types.Session, error) {
	return types.Session{ID: "u3", Token: "tok-3", Email: profile.Email}, nil
}

func (f *fakeGateway) SessionByToken(_ context.Context, token string) (types.Session, error) {
	sess, ok := f.sessions[token]
	if !ok {
		return types.Session{}, pkgerrors.New(pkgerrors.CodeNotFound, "session not found")
	}
	return sess, nil
}

func (f *fakeGateway) UpdateUser(_ context.Context, id string, patch types.ProfilePatch) (types.Session, error) {
	return types.Session{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "token expired")
}

func (f *fakeGateway) Products(context.Context) ([]types.Product, error) {
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "catalog unavailable")
}

func (f *fakeGateway) ProductsByFilters(context.Context, types.ProductQuery) (types.ProductPage, error) {
	return types.ProductPage{}, nil
}

func (f *fakeGateway) Product(context.Context, string) (types.Product, error) {
	return types.Product{}, nil
}

func (f *fakeGateway) Brands(context.Context) ([]types.Option, error)     { return nil, nil }
func (f *fakeGateway) Categories(context.Context) ([]types.Option, error) { return nil, nil }

func (f *fakeGateway) CartByUser(_ context.Context, userID string) ([]types.CartItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cartCalls++
	if f.cartErr != nil {
		return nil, f.cartErr
	}
	return f.carts[userID], nil
}

func (f *fakeGateway) AddToCart(_ context.Context, item types.CartItem) (types.CartItem, error) {
	item.ID = "new"
	return item, nil
}

func (f *fakeGateway) UpdateCart(_ context.Context, item types.CartItem) (types.CartItem, error) {
	return item, nil
}

func (f *fakeGateway) DeleteFromCart(_ context.Context, id string) (string, error) {
	return id, nil
}

func (f *fakeGateway) CreateOrder(_ context.Context, order types.Order, _ string) (types.Order, error) {
	order.ID = "o-new"
	return order, nil
}

func (f *fakeGateway) OrdersByUser(_ context.Context, userID string) ([]types.Order, error) {
	return f.orders[userID], nil
}

func newTestStore(t *testing.T, gw Gateway, tokens session.TokenStore) *Store {
	t.Helper()
	s, err := New(Params{Gateway: gw, Tokens: tokens})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestNewRequiresGateway(t *testing.T) {
	if _, err := New(Params{}); err == nil {
		t.Fatal("expected gateway error")
	}
}

func TestBootstrapWithoutTokenLeavesSlicesEmpty(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(t, gw, session.NewMemoryStore())

	sess, err := s.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if sess != nil {
		t.Fatalf("expected no session, got %+v", sess)
	}
	st := s.State()
	if !st.Auth.Restored || st.Auth.Session != nil {
		t.Fatalf("unexpected auth state %+v", st.Auth.State)
	}
	if gw.cartCalls != 0 {
		t.Fatal("cart must not be fetched without a session")
	}
}

func TestBootstrapRestoresSessionAndSyncsUser(t *testing.T) {
	gw := newFakeGateway()
	tokens := session.NewMemoryStore()
	_ = tokens.Save(context.Background(), "tok-1")
	s := newTestStore(t, gw, tokens)

	sess, err := s.Bootstrap(context.Background())
	if err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	if sess == nil || sess.ID != "u1" {
		t.Fatalf("unexpected session %+v", sess)
	}
	st := s.State()
	if len(st.Cart.Items) != 1 || len(st.Orders.Orders) != 1 {
		t.Fatalf("user data not loaded: cart=%+v orders=%+v", st.Cart.Items, st.Orders.Orders)
	}
}

func TestLogoutClearsUserData(t *testing.T) {
	gw := newFakeGateway()
	tokens := session.NewMemoryStore()
	s := newTestStore(t, gw, tokens)

	if _, err := s.Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if len(s.State().Cart.Items) != 1 {
		t.Fatal("expected cart loaded after login")
	}
	if err := s.Logout(context.Background()); err != nil {
		t.Fatalf("logout: %v", err)
	}
	st := s.State()
	if st.Auth.Session != nil || len(st.Cart.Items) != 0 || len(st.Orders.Orders) != 0 {
		t.Fatalf("user data survived logout: %+v", st)
	}
	if _, err := tokens.Load(context.Background()); err != session.ErrNoToken {
		t.Fatalf("expected token cleared, got %v", err)
	}
}

func TestSwitchingUsersClearsPreviousData(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(t, gw, nil)

	if _, err := s.Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.Login(context.Background(), types.Credentials{Email: "b@example.com", Password: "secret"}); err != nil {
		t.Fatalf("second login: %v", err)
	}
	if items := s.State().Cart.Items; len(items) != 0 {
		t.Fatalf("first user's cart leaked: %+v", items)
	}
}

func TestUnauthorizedFromAnySliceExpiresSession(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(t, gw, nil)
	if _, err := s.Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	gw.mu.Lock()
	gw.cartErr = pkgerrors.New(pkgerrors.CodeUnauthorized, "token expired")
	gw.mu.Unlock()
	if _, err := s.Cart().FetchByUser(context.Background(), "u1"); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
	if s.State().Auth.Session != nil {
		t.Fatal("expected session expired after 401")
	}
}

func TestFailedLoginDoesNotExpire(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(t, gw, nil)
	if _, err := s.Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := s.Auth().Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "wrong"}); err == nil {
		t.Fatal("expected invalid credentials")
	}
	if s.State().Auth.Session == nil {
		t.Fatal("bad credentials must not end the existing session")
	}
}

func TestSyncUserRequiresSession(t *testing.T) {
	s := newTestStore(t, newFakeGateway(), nil)
	if err := s.SyncUser(context.Background()); !pkgerrors.Is(err, pkgerrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func TestSubscribeReceivesEverySlice(t *testing.T) {
	s := newTestStore(t, newFakeGateway(), nil)

	var mu sync.Mutex
	seen := map[string]bool{}
	unsub := s.Subscribe(func(ev async.Event) {
		mu.Lock()
		seen[ev.Slice] = true
		mu.Unlock()
	})
	_, _ = s.Products().FetchAll(context.Background())
	_, _ = s.Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "secret"})
	unsub()

	mu.Lock()
	defer mu.Unlock()
	for _, slice := range []string{"auth", "products", "cart", "orders"} {
		if !seen[slice] {
			t.Fatalf("no events from %s: %v", slice, seen)
		}
	}
}

func TestCartFrozenWhileCurrentOrderSet(t *testing.T) {
	gw := newFakeGateway()
	s := newTestStore(t, gw, nil)
	if _, err := s.Login(context.Background(), types.Credentials{Email: "a@example.com", Password: "secret"}); err != nil {
		t.Fatalf("login: %v", err)
	}

	order := types.Order{
		UserID:      "u1",
		Items:       s.State().Cart.Items,
		PaymentMode: "cash",
		SelectedAddress: types.Address{
			FullName: "A", StreetAddress: "S", City: "C", State: "ST",
			PinCode: "1", Phone: "2", Country: "X", Email: "a@example.com",
		},
	}
	if _, err := s.Orders().Create(context.Background(), order, "k"); err != nil {
		t.Fatalf("create order: %v", err)
	}
	if _, err := s.Cart().AddItem(context.Background(), types.CartItem{ProductID: "2", Quantity: 1}); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected cart frozen, got %v", err)
	}
}
