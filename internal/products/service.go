// Package products holds the catalog slice.
package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/angelmondragon/storefront/internal/async"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

const SliceName = "products"

const (
	OpFetchAll        = "fetchAll"
	OpFetchByFilters  = "fetchByFilters"
	OpFetchByID       = "fetchById"
	OpFetchBrands     = "fetchBrands"
	OpFetchCategories = "fetchCategories"
)

const (
	targetList     = "list"
	targetSelected = "selected"
)

// Gateway is the remote surface the catalog slice depends on.
type Gateway interface {
	Products(ctx context.Context) ([]types.Product, error)
	ProductsByFilters(ctx context.Context, q types.ProductQuery) (types.ProductPage, error)
	Product(ctx context.Context, id string) (types.Product, error)
	Brands(ctx context.Context) ([]types.Option, error)
	Categories(ctx context.Context) ([]types.Option, error)
}

// Params wires the slice's collaborators.
type Params struct {
	Gateway  Gateway
	Logger   *logger.Logger
	Observer async.Observer
}

// Service owns the catalog slice.
type Service struct {
	gw Gateway
	c  *async.Container[State]
}

// NewService builds the catalog slice.
func NewService(p Params) (*Service, error) {
	if p.Gateway == nil {
		return nil, fmt.Errorf("products gateway required")
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
	s.c.Update(a.name(), a.apply, targetSelected)
}

func (s *Service) Close() {
	s.c.Close()
}

// FetchAll replaces the listing with the full catalog.
func (s *Service) FetchAll(ctx context.Context) ([]types.Product, error) {
	return async.Run(ctx, s.c, async.Operation[State, struct{}, []types.Product]{
		Name:   OpFetchAll,
		Target: func(struct{}) string { return targetList },
		Call: func(ctx context.Context, _ struct{}) ([]types.Product, error) {
			return s.gw.Products(ctx)
		},
		Apply: func(st *State, _ struct{}, out []types.Product) {
			st.Products = cloneProducts(out)
			st.TotalItems = len(out)
		},
	}, struct{}{})
}

// FetchByFilters forwards the query untouched and stores the returned page and total.
func (s *Service) FetchByFilters(ctx context.Context, q types.ProductQuery) (types.ProductPage, error) {
	return async.Run(ctx, s.c, async.Operation[State, types.ProductQuery, types.ProductPage]{
		Name:     OpFetchByFilters,
		Target:   func(types.ProductQuery) string { return targetList },
		Validate: validateQuery,
		Call:     s.gw.ProductsByFilters,
		Apply: func(st *State, _ types.ProductQuery, out types.ProductPage) {
			st.Products = cloneProducts(out.Products)
			st.TotalItems = out.TotalItems
		},
	}, q)
}

// FetchByID loads the product shown on the detail view.
func (s *Service) FetchByID(ctx context.Context, id string) (types.Product, error) {
	return async.Run(ctx, s.c, async.Operation[State, string, types.Product]{
		Name:   OpFetchByID,
		Target: func(string) string { return targetSelected },
		Validate: func(id string) error {
			if strings.TrimSpace(id) == "" {
				return pkgerrors.New(pkgerrors.CodeValidation, "product id is required")
			}
			return nil
		},
		Call: s.gw.Product,
		Apply: func(st *State, _ string, out types.Product) {
			p := cloneProduct(out)
			st.Selected = &p
		},
	}, id)
}

// FetchBrands loads the brand filter options.
func (s *Service) FetchBrands(ctx context.Context) ([]types.Option, error) {
	return async.Run(ctx, s.c, async.Operation[State, struct{}, []types.Option]{
		Name: OpFetchBrands,
		Call: func(ctx context.Context, _ struct{}) ([]types.Option, error) {
			return s.gw.Brands(ctx)
		},
		Apply: func(st *State, _ struct{}, out []types.Option) {
			st.Brands = append([]types.Option(nil), out...)
		},
	}, struct{}{})
}

// FetchCategories loads the category filter options.
func (s *Service) FetchCategories(ctx context.Context) ([]types.Option, error) {
	return async.Run(ctx, s.c, async.Operation[State, struct{}, []types.Option]{
		Name: OpFetchCategories,
		Call: func(ctx context.Context, _ struct{}) ([]types.Option, error) {
			return s.gw.Categories(ctx)
		},
		Apply: func(st *State, _ struct{}, out []types.Option) {
			st.Categories = append([]types.Option(nil), out...)
		},
	}, struct{}{})
}

func validateQuery(q types.ProductQuery) error {
	if q.Pagination.Page < 0 || q.Pagination.Size < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "pagination must not be negative")
	}
	if q.Sort.Order != "" && q.Sort.Order != "asc" && q.Sort.Order != "desc" {
		return pkgerrors.New(pkgerrors.CodeValidation, "sort order must be asc or desc").
			WithDetails(map[string]string{"_order": "must be one of asc desc"})
	}
	for key := range q.Filter {
		if types.ReservedQueryKey(key) {
			return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("filter %q is reserved", key)).
				WithDetails(map[string]string{key: "reserved query parameter"})
		}
	}
	return nil
}
