// Package cart holds the cart slice. Mutations take the slice's single in-flight slot
// and are reflected only after the gateway confirms them.
package cart

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/internal/forms"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
	"go.uber.org/multierr"
)

const SliceName = "cart"

const (
	OpFetchByUser  = "fetchByUser"
	OpAddItem      = "addItem"
	OpUpdateItem   = "updateItem"
	OpDeleteItem   = "deleteItem"
	OpClearOrdered = "clearOrdered"
)

const targetItems = "items"

// DefaultMaxQuantity bounds a single entry when no limit is configured.
const DefaultMaxQuantity = 5

// Gateway is the remote surface the cart slice depends on.
type Gateway interface {
	CartByUser(ctx context.Context, userID string) ([]types.CartItem, error)
	AddToCart(ctx context.Context, item types.CartItem) (types.CartItem, error)
	UpdateCart(ctx context.Context, item types.CartItem) (types.CartItem, error)
	DeleteFromCart(ctx context.Context, id string) (string, error)
}

// Params wires the slice's collaborators.
type Params struct {
	Gateway     Gateway
	MaxQuantity int
	// Frozen reports whether mutations are currently disallowed, e.g. while an order
	// confirmation is pending display.
	Frozen   func() bool
	Logger   *logger.Logger
	Observer async.Observer
}

// Service owns the cart slice.
type Service struct {
	gw     Gateway
	max    int
	frozen func() bool
	logg   *logger.Logger
	c      *async.Container[State]
}

// NewService builds the cart slice.
func NewService(p Params) (*Service, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("cart gateway required")
	}
	maxQty := p.MaxQuantity
	if maxQty == 0 {
		maxQty = DefaultMaxQuantity
	}
	if maxQty < 1 {
		return nil, fmt.Errorf("max quantity must be positive")
	}
	frozen := p.Frozen
	if frozen == nil {
		frozen = func() bool { return false }
	}
	return &Service{
		gw:     p.Gateway,
		max:    maxQty,
		frozen: frozen,
		logg:   p.Logger,
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

// Dispatch applies a synchronous action and supersedes in-flight fetches.
func (s *Service) Dispatch(a Action) {
	s.c.Update(a.name(), a.apply, targetItems)
}

func (s *Service) Close() {
	s.c.Close()
}

// MaxQuantity is the largest quantity a single entry may carry.
func (s *Service) MaxQuantity() int {
	return s.max
}

// FetchByUser replaces the cart with the user's entries.
func (s *Service) FetchByUser(ctx context.Context, userID string) ([]types.CartItem, error) {
	return async.Run(ctx, s.c, async.Operation[State, string, []types.CartItem]{
		Name:     OpFetchByUser,
		Target:   func(string) string { return targetItems },
		Validate: requireID("user id"),
		Call:     s.gw.CartByUser,
		Apply: func(st *State, _ string, out []types.CartItem) {
			st.Items = append([]types.CartItem(nil), out...)
		},
	}, userID)
}

// AddItem creates a cart entry and appends the gateway's copy.
func (s *Service) AddItem(ctx context.Context, item types.CartItem) (types.CartItem, error) {
	return async.Run(ctx, s.c, async.Operation[State, types.CartItem, types.CartItem]{
		Name:      OpAddItem,
		Exclusive: true,
		// a fetch dispatched before this add may not include the new entry
		Invalidates: []string{targetItems},
		Validate: func(item types.CartItem) error {
			if strings.TrimSpace(item.ProductID) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "product id is required").
					WithDetails(forms.FieldErrors{"productId": "is required"})
			}
			return forms.Quantity(item.Quantity, s.max)
		},
		Guard: s.guard,
		Call:  s.gw.AddToCart,
		Apply: func(st *State, _ types.CartItem, out types.CartItem) {
			st.Items = append(removeIDs(st.Items, out.ID), out)
		},
	}, item)
}

// UpdateItem replaces an entry by id with the gateway's copy.
func (s *Service) UpdateItem(ctx context.Context, item types.CartItem) (types.CartItem, error) {
	return async.Run(ctx, s.c, async.Operation[State, types.CartItem, types.CartItem]{
		Name:        OpUpdateItem,
		Exclusive:   true,
		Invalidates: []string{targetItems},
		Validate: func(item types.CartItem) error {
			if strings.TrimSpace(item.ID) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "cart entry id is required").
					WithDetails(forms.FieldErrors{"id": "is required"})
			}
			return forms.Quantity(item.Quantity, s.max)
		},
		Guard: s.guard,
		Call:  s.gw.UpdateCart,
		Apply: func(st *State, _ types.CartItem, out types.CartItem) {
			for i := range st.Items {
				if st.Items[i].ID == out.ID {
					st.Items[i] = out
					return
				}
			}
		},
	}, item)
}

// SetQuantity updates only the quantity of an existing entry.
func (s *Service) SetQuantity(ctx context.Context, id string, quantity int) (types.CartItem, error) {
	item, ok := s.State().Find(id)
	if !ok {
		return types.CartItem{}, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}
	item.Quantity = quantity
	return s.UpdateItem(ctx, item)
}

// DeleteItem removes an entry once the gateway confirms. Deleting an id the gateway
// no longer knows resolves as fulfilled so retries are idempotent.
func (s *Service) DeleteItem(ctx context.Context, id string) (string, error) {
	return async.Run(ctx, s.c, async.Operation[State, string, string]{
		Name:        OpDeleteItem,
		Exclusive:   true,
		Invalidates: []string{targetItems},
		Validate:    requireID("cart entry id"),
		Guard:       s.guard,
		Call:        s.deleteOne,
		Apply: func(st *State, id string, _ string) {
			st.Items = removeIDs(st.Items, id)
		},
	}, id)
}

// ClearOrdered deletes the entries captured in a placed order. It bypasses the freeze
// guard since it is the follow-up to the order that froze the cart. Entries that fail
// to delete stay in the slice and are reported in the returned error.
func (s *Service) ClearOrdered(ctx context.Context, items []types.CartItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	var failed error
	cleared, err := async.Run(ctx, s.c, async.Operation[State, []types.CartItem, []string]{
		Name:        OpClearOrdered,
		Exclusive:   true,
		Invalidates: []string{targetItems},
		Call: func(ctx context.Context, items []types.CartItem) ([]string, error) {
			ids := make([]string, 0, len(items))
			for _, item := range items {
				if _, err := s.deleteOne(ctx, item.ID); err != nil {
					failed = multierr.Append(failed, fmt.Errorf("delete %s: %w", item.ID, err))
					continue
				}
				ids = append(ids, item.ID)
			}
			if len(ids) == 0 && failed != nil {
				return nil, failed
			}
			return ids, nil
		},
		Apply: func(st *State, _ []types.CartItem, ids []string) {
			st.Items = removeIDs(st.Items, ids...)
		},
	}, items)
	if err != nil {
		return nil, err
	}
	if failed != nil {
		if s.logg != nil {
			s.logg.Warn(s.logg.WithField(s.logg.WithSlice(ctx, SliceName), "error", failed.Error()), "cart.clear_ordered.partial")
		}
		return cleared, pkgerrors.Wrap(pkgerrors.CodeDependency, failed, "some cart items could not be cleared")
	}
	return cleared, nil
}

func (s *Service) deleteOne(ctx context.Context, id string) (string, error) {
	deleted, err := s.gw.DeleteFromCart(ctx, id)
	if pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		return id, nil
	}
	if err != nil {
		return "", err
	}
	if deleted == "" {
		deleted = id
	}
	return deleted, nil
}

func (s *Service) guard() error {
	if s.frozen() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is locked while an order is being confirmed")
	}
	return nil
}

func requireID(field string) func(string) error {
	return func(id string) error {
		if strings.TrimSpace(id) == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, field+" is required")
		}
		return nil
	}
}
