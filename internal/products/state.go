package products

import (
	"github.com/angelmondragon/storefront/internal/async"
	"github.com/angelmondragon/storefront/pkg/types"
)

// State is the catalog slice. Every fetch replaces its field wholesale.
type State struct {
	Products   []types.Product
	TotalItems int
	Selected   *types.Product
	Brands     []types.Option
	Categories []types.Option
}

func (s State) clone() State {
	s.Products = cloneProducts(s.Products)
	if s.Selected != nil {
		p := cloneProduct(*s.Selected)
		s.Selected = &p
	}
	s.Brands = append([]types.Option(nil), s.Brands...)
	s.Categories = append([]types.Option(nil), s.Categories...)
	return s
}

func cloneProduct(p types.Product) types.Product {
	p.Images = append([]string(nil), p.Images...)
	return p
}

func cloneProducts(in []types.Product) []types.Product {
	if in == nil {
		return nil
	}
	out := make([]types.Product, len(in))
	for i, p := range in {
		out[i] = cloneProduct(p)
	}
	return out
}

// Snapshot is a read-only copy of the slice including its lifecycle.
type Snapshot struct {
	State
	async.Meta
}

// Action is a synchronous catalog mutation.
type Action interface {
	name() string
	apply(*State)
}

// SelectionCleared forgets the product shown on the detail view.
type SelectionCleared struct{}

func (SelectionCleared) name() string { return "selectionCleared" }

func (SelectionCleared) apply(st *State) {
	st.Selected = nil
}
