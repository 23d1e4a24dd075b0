package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/forms"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/types"
)

type stubGateway struct {
	mu      sync.Mutex
	create  func(types.Order, string) (types.Order, error)
	history func(string) ([]types.Order, error)
	keys    []string
	sent    []types.Order
}

func (s *stubGateway) CreateOrder(_ context.Context, order types.Order, key string) (types.Order, error) {
	s.mu.Lock()
	s.keys = append(s.keys, key)
	s.sent = append(s.sent, order)
	s.mu.Unlock()
	if s.create != nil {
		return s.create(order, key)
	}
	order.ID = "o1"
	return order, nil
}

func (s *stubGateway) OrdersByUser(_ context.Context, userID string) ([]types.Order, error) {
	if s.history != nil {
		return s.history(userID)
	}
	return nil, nil
}

func address() types.Address {
	return types.Address{
		FullName:      "Ada Lovelace",
		StreetAddress: "1 Analytical Way",
		City:          "London",
		State:         "LDN",
		PinCode:       "12345",
		Phone:         "555-0100",
		Country:       "UK",
		Email:         "ada@example.com",
	}
}

func validOrder() types.Order {
	return types.Order{
		UserID: "u1",
		Items: []types.CartItem{
			{ID: "a", ProductID: "1", Quantity: 2, Price: decimal.NewFromInt(10)},
			{ID: "b", ProductID: "2", Quantity: 1, Price: decimal.NewFromInt(5)},
		},
		PaymentMode:     enums.PaymentModeCash,
		SelectedAddress: address(),
	}
}

func newTestService(t *testing.T, gw Gateway) *Service {
	t.Helper()
	svc, err := NewService(Params{Gateway: gw})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func TestCreateSetsCurrentAndAppendsHistory(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw)

	order, err := svc.Create(context.Background(), validOrder(), "key-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if order.ID != "o1" {
		t.Fatalf("expected gateway id, got %q", order.ID)
	}
	st := svc.State()
	if st.Current == nil || st.Current.ID != "o1" || len(st.Orders) != 1 {
		t.Fatalf("unexpected state %+v", st.State)
	}
	if !svc.HasCurrent() {
		t.Fatal("expected current order")
	}
	if gw.keys[0] != "key-1" {
		t.Fatalf("idempotency key not forwarded: %v", gw.keys)
	}
}

func TestCreateRecomputesTotals(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw)

	in := validOrder()
	in.TotalAmount = decimal.NewFromInt(1)
	in.TotalItems = 99
	if _, err := svc.Create(context.Background(), in, "k"); err != nil {
		t.Fatalf("create: %v", err)
	}
	sent := gw.sent[0]
	if !sent.TotalAmount.Equal(decimal.NewFromInt(25)) || sent.TotalItems != 3 {
		t.Fatalf("expected 25/3, got %s/%d", sent.TotalAmount, sent.TotalItems)
	}
	if sent.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending status, got %q", sent.Status)
	}
}

func TestCreateRejectsIncompleteOrder(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw)

	in := validOrder()
	in.Items = nil
	in.PaymentMode = ""
	in.SelectedAddress.City = "  "
	_, err := svc.Create(context.Background(), in, "k")
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	fields := forms.Details(err)
	for _, field := range []string{"items", "paymentMode", "selectedAddress.city"} {
		if fields[field] == "" {
			t.Fatalf("expected %s in %v", field, fields)
		}
	}
	if len(gw.sent) != 0 {
		t.Fatal("invalid order must not reach the gateway")
	}
}

func TestConcurrentCreateIsRejected(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{
		create: func(o types.Order, _ string) (types.Order, error) {
			close(started)
			<-release
			o.ID = "o1"
			return o, nil
		},
	}
	svc := newTestService(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Create(context.Background(), validOrder(), "k")
		done <- err
	}()
	<-started
	if _, err := svc.Create(context.Background(), validOrder(), "k"); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(svc.State().Orders) != 1 {
		t.Fatal("expected exactly one order")
	}
}

func TestCreateFailureKeepsCurrentEmpty(t *testing.T) {
	gw := &stubGateway{
		create: func(types.Order, string) (types.Order, error) {
			return types.Order{}, pkgerrors.New(pkgerrors.CodeDependency, "gateway unavailable")
		},
	}
	svc := newTestService(t, gw)

	if _, err := svc.Create(context.Background(), validOrder(), "k"); err == nil {
		t.Fatal("expected error")
	}
	st := svc.State()
	if st.Current != nil || st.Status != enums.AsyncStatusError || st.Operations[OpCreate] != enums.AsyncStatusError {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestResetCurrentIsLocal(t *testing.T) {
	gw := &stubGateway{}
	svc := newTestService(t, gw)
	_, _ = svc.Create(context.Background(), validOrder(), "k")

	svc.Dispatch(ResetCurrent{})
	st := svc.State()
	if st.Current != nil {
		t.Fatal("expected current cleared")
	}
	if len(st.Orders) != 1 {
		t.Fatal("history must survive ResetCurrent")
	}
}

func TestFetchStartedBeforeCreateIsDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{
		history: func(string) ([]types.Order, error) {
			close(started)
			<-release
			return []types.Order{}, nil
		},
	}
	svc := newTestService(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := svc.FetchByUser(context.Background(), "u1")
		done <- err
	}()
	<-started
	if _, err := svc.Create(context.Background(), validOrder(), "k"); err != nil {
		t.Fatalf("create: %v", err)
	}
	close(release)
	if err := <-done; err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(svc.State().Orders) != 1 {
		t.Fatal("stale history fetch dropped the new order")
	}
}

func TestResetDiscardsInFlightHistory(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	gw := &stubGateway{
		history: func(string) ([]types.Order, error) {
			close(started)
			<-release
			return []types.Order{{ID: "old"}}, nil
		},
	}
	svc := newTestService(t, gw)

	done := make(chan error, 1)
	go func() {
		_, err := svc.FetchByUser(context.Background(), "u1")
		done <- err
	}()
	<-started
	svc.Dispatch(Reset{})
	close(release)
	<-done
	if len(svc.State().Orders) != 0 {
		t.Fatal("history from the previous session leaked after reset")
	}
}
