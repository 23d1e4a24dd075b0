package controllers

import (
	"context"

	"github.com/angelmondragon/storefront/internal/backend"
	"github.com/angelmondragon/storefront/pkg/types"
)

// AccountService backs the session endpoints.
type AccountService interface {
	Signup(ctx context.Context, profile types.Profile) (types.Session, error)
	Login(ctx context.Context, creds types.Credentials) (types.Session, error)
	Session(ctx context.Context, token string) (types.Session, error)
	UpdateUser(ctx context.Context, actorID, token, id string, patch types.ProfilePatch) (types.Session, error)
}

// CatalogService backs the product endpoints.
type CatalogService interface {
	Products(ctx context.Context) ([]types.Product, error)
	ProductPage(ctx context.Context, filter backend.ProductFilter) (types.ProductPage, error)
	Product(ctx context.Context, id string) (types.Product, error)
	Brands(ctx context.Context) ([]types.Option, error)
	Categories(ctx context.Context) ([]types.Option, error)
}

// CartService backs the cart endpoints.
type CartService interface {
	Cart(ctx context.Context, actorID, userID string) ([]types.CartItem, error)
	AddToCart(ctx context.Context, actorID string, item types.CartItem) (types.CartItem, error)
	UpdateCart(ctx context.Context, actorID, id string, item types.CartItem) (types.CartItem, error)
	DeleteFromCart(ctx context.Context, actorID, id string) (string, error)
}

// OrderService backs the order endpoints.
type OrderService interface {
	CreateOrder(ctx context.Context, actorID string, order types.Order) (types.Order, error)
	Orders(ctx context.Context, actorID, userID string) ([]types.Order, error)
}

var (
	_ AccountService = backend.Service(nil)
	_ CatalogService = backend.Service(nil)
	_ CartService    = backend.Service(nil)
	_ OrderService   = backend.Service(nil)
)
