// Package orders holds the order slice.
package orders

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/forms"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const SliceName = "orders"

const (
	OpCreate      = "create"
	OpFetchByUser = "fetchByUser"
)

const (
	targetHistory = "history"
	targetCurrent = "current"
)

// Gateway is the remote surface the order slice depends on.
type Gateway interface {
	CreateOrder(ctx context.Context, order types.Order, idempotencyKey string) (types.Order, error)
	OrdersByUser(ctx context.Context, userID string) ([]types.Order, error)
}

// Params wires the slice's collaborators.
type Params struct {
	Gateway  Gateway
	Logger   *logger.Logger
	Observer async.Observer
}

// Service owns the order slice.
type Service struct {
	gw Gateway
	c  *async.Container[State]
}

// NewService builds the order slice.
func NewService(p Params) (*Service, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("orders gateway required")
	}
	return &Service{
		gw: p.Gateway,
		c: async.NewContainer(async.Options[State]{
			Name:     SliceName,
			Clone:    State.clone,
			Logger:   p.Logger,
			Observer: p.Observer,
		}),
	}, nil
}

func (s *Service) State() Snapshot {
	st, meta := s.c.Snapshot()
	return Snapshot{State: st, Meta: meta}
}

func (s *Service) Subscribe(fn func(async.Event)) func() {
	return s.c.Subscribe(fn)
}

func (s *Service) OnRejected(fn func(op string, err error)) {
	s.c.OnRejected(fn)
}

func (s *Service) Dispatch(a Action) {
	s.c.Update(a.name(), a.apply, a.invalidates()...)
}

func (s *Service) Close() {
	s.c.Close()
}

// HasCurrent reports whether a placed order is awaiting ResetCurrent.
func (s *Service) HasCurrent() bool {
	st, _ := s.c.Snapshot()
	return st.Current != nil
}

type draft struct {
	order types.Order
	key   string
}

// Create submits order once. Totals are recomputed from the items before sending, and
// idempotencyKey lets the gateway collapse retries of the same draft.
func (s *Service) Create(ctx context.Context, order types.Order, idempotencyKey string) (types.Order, error) {
	order = Prepare(order)
	return async.Run(ctx, s.c, async.Operation[State, draft, types.Order]{
		Name:        OpCreate,
		Target:      func(draft) string { return targetCurrent },
		Exclusive:   true,
		Invalidates: []string{targetHistory},
		Validate:    func(d draft) error { return Validate(d.order) },
		Call: func(ctx context.Context, d draft) (types.Order, error) {
			return s.gw.CreateOrder(ctx, d.order, d.key)
		},
		Apply: func(st *State, _ draft, out types.Order) {
			st.Orders = upsert(st.Orders, out)
			st.Current = out.Clone()
		},
	}, draft{order: order, key: idempotencyKey})
}

// FetchByUser replaces the order history.
func (s *Service) FetchByUser(ctx context.Context, userID string) ([]types.Order, error) {
	return async.Run(ctx, s.c, async.Operation[State, string, []types.Order]{
		Name:   OpFetchByUser,
		Target: func(string) string { return targetHistory },
		Validate: func(id string) error {
			if strings.TrimSpace(id) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
			}
			return nil
		},
		Call: s.gw.OrdersByUser,
		Apply: func(st *State, _ string, out []types.Order) {
			st.Orders = make([]types.Order, len(out))
			for i := range out {
				st.Orders[i] = *out[i].Clone()
			}
		},
	}, userID)
}

// Prepare recomputes the derived order fields from its items.
func Prepare(o types.Order) types.Order {
	total := decimal.Zero
	count := 0
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
		count += item.Quantity
	}
	o.Items = append([]types.CartItem(nil), o.Items...)
	o.TotalAmount = total
	o.TotalItems = count
	o.SelectedAddress = forms.Normalize(o.SelectedAddress)
	if o.Status == "" {
		o.Status = enums.OrderStatusPending
	}
	return o
}

// Validate checks an order snapshot before it is submitted.
func Validate(o types.Order) error {
	fields := forms.FieldErrors{}
	if strings.TrimSpace(o.UserID) == "" {
		fields["userId"] = "is required"
	}
	if len(o.Items) == 0 {
		fields["items"] = "must contain at least one item"
	}
	for i, item := range o.Items {
		if item.Quantity < 1 {
			fields[fmt.Sprintf("items[%d].quantity", i)] = "must be at least 1"
		}
	}
	if !o.PaymentMode.IsValid() {
		fields["paymentMode"] = "must be one of cash, card"
	}
	if err := forms.Address(o.SelectedAddress); err != nil {
		for field, msg := range forms.Details(err) {
			fields["selectedAddress."+field] = msg
		}
		if len(forms.Details(err)) == 0 {
			fields["selectedAddress"] = "is invalid"
		}
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order is incomplete").WithDetails(fields)
	}
	return nil
}
