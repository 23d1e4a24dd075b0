package cart

import (
	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/pkg/types"
)

// State is the cart slice: entries keyed by cart-entry id.
type State struct {
	Items []types.CartItem
}

func (s State) clone() State {
	s.Items = append([]types.CartItem(nil), s.Items...)
	return s
}

// Find returns the entry with id.
func (s State) Find(id string) (types.CartItem, bool) {
	for _, item := range s.Items {
		if item.ID == id {
			return item, true
		}
	}
	return types.CartItem{}, false
}

// Snapshot is a read-only copy of the slice including its lifecycle.
type Snapshot struct {
	State
	async.Meta
}

// Action is a synchronous cart mutation.
type Action interface {
	name() string
	apply(*State)
}

// Reset empties the cart locally, e.g. when the session ends.
type Reset struct{}

func (Reset) name() string { return "reset" }

func (Reset) apply(st *State) {
	st.Items = nil
}

func removeIDs(items []types.CartItem, ids ...string) []types.CartItem {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := items[:0:0]
	for _, item := range items {
		if _, ok := drop[item.ID]; !ok {
			out = append(out, item)
		}
	}
	return out
}
