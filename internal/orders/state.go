package orders

import (
	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/pkg/types"
)

// State is the order slice: the user's history plus the order just placed.
type State struct {
	Orders  []types.Order
	Current *types.Order
}

func (s State) clone() State {
	orders := make([]types.Order, len(s.Orders))
	for i := range s.Orders {
		orders[i] = *s.Orders[i].Clone()
	}
	s.Orders = orders
	s.Current = s.Current.Clone()
	return s
}

// Snapshot is a read-only copy of the slice including its lifecycle.
type Snapshot struct {
	State
	async.Meta
}

// Action is a synchronous order mutation.
type Action interface {
	name() string
	apply(*State)
	invalidates() []string
}

// ResetCurrent forgets the confirmation order so the cart may be edited again.
type ResetCurrent struct{}

func (ResetCurrent) name() string { return "resetCurrent" }

func (ResetCurrent) apply(st *State) {
	st.Current = nil
}

func (ResetCurrent) invalidates() []string { return nil }

// Reset empties the slice, e.g. when the session ends. Pending completions are discarded.
type Reset struct{}

func (Reset) name() string { return "reset" }

func (Reset) apply(st *State) {
	st.Orders = nil
	st.Current = nil
}

func (Reset) invalidates() []string { return []string{targetHistory, targetCurrent} }

func upsert(orders []types.Order, o types.Order) []types.Order {
	for i := range orders {
		if orders[i].ID != "" && orders[i].ID == o.ID {
			orders[i] = o
			return orders
		}
	}
	return append(orders, o)
}
