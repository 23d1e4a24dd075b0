package gateway

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/angelmondragon/storefront/internal/store"
	"github.com/angelmondragon/storefront/pkg/types"
)

var _ store.Gateway = (*Client)(nil)

const (
	QuerySort   = "_sort"
	QueryOrder  = "_order"
	QueryPage   = "_page"
	QueryLimit  = "_limit"
	QueryUserID = "userId"
	QueryToken  = "token"
)

func (c *Client) Login(ctx context.Context, creds types.Credentials) (types.Session, error) {
	var sess types.Session
	err := c.do(ctx, request{method: http.MethodPost, path: "/login", body: creds}, &sess)
	return sess, err
}

func (c *Client) Signup(ctx context.Context, profile types.Profile) (types.Session, error) {
	var sess types.Session
	err := c.do(ctx, request{method: http.MethodPost, path: "/signup", body: profile}, &sess)
	return sess, err
}

func (c *Client) SessionByToken(ctx context.Context, token string) (types.Session, error) {
	var sess types.Session
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/session",
		query:  url.Values{QueryToken: {token}},
	}, &sess)
	return sess, err
}

func (c *Client) UpdateUser(ctx context.Context, id string, patch types.ProfilePatch) (types.Session, error) {
	var sess types.Session
	err := c.do(ctx, request{method: http.MethodPatch, path: "/users/" + url.PathEscape(id), body: patch}, &sess)
	return sess, err
}

func (c *Client) Products(ctx context.Context) ([]types.Product, error) {
	var out []types.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/products"}, &out)
	return out, err
}

// ProductsByFilters forwards q verbatim. A query without any filter, sort or page
// falls back to the plain listing, which the gateway returns as a bare array.
func (c *Client) ProductsByFilters(ctx context.Context, q types.ProductQuery) (types.ProductPage, error) {
	values := EncodeQuery(q)
	if len(values) == 0 {
		products, err := c.Products(ctx)
		if err != nil {
			return types.ProductPage{}, err
		}
		return types.ProductPage{Products: products, TotalItems: len(products)}, nil
	}
	var page types.ProductPage
	err := c.do(ctx, request{method: http.MethodGet, path: "/products", query: values}, &page)
	return page, err
}

func (c *Client) Product(ctx context.Context, id string) (types.Product, error) {
	var out types.Product
	err := c.do(ctx, request{method: http.MethodGet, path: "/products/" + url.PathEscape(id)}, &out)
	return out, err
}

func (c *Client) Brands(ctx context.Context) ([]types.Option, error) {
	var out []types.Option
	err := c.do(ctx, request{method: http.MethodGet, path: "/brands"}, &out)
	return out, err
}

func (c *Client) Categories(ctx context.Context) ([]types.Option, error) {
	var out []types.Option
	err := c.do(ctx, request{method: http.MethodGet, path: "/categories"}, &out)
	return out, err
}

func (c *Client) CartByUser(ctx context.Context, userID string) ([]types.CartItem, error) {
	var out []types.CartItem
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/cart",
		query:  url.Values{QueryUserID: {userID}},
	}, &out)
	return out, err
}

func (c *Client) AddToCart(ctx context.Context, item types.CartItem) (types.CartItem, error) {
	var out types.CartItem
	err := c.do(ctx, request{method: http.MethodPost, path: "/cart", body: item}, &out)
	return out, err
}

func (c *Client) UpdateCart(ctx context.Context, item types.CartItem) (types.CartItem, error) {
	var out types.CartItem
	err := c.do(ctx, request{method: http.MethodPatch, path: "/cart/" + url.PathEscape(item.ID), body: item}, &out)
	return out, err
}

func (c *Client) DeleteFromCart(ctx context.Context, id string) (string, error) {
	var out string
	err := c.do(ctx, request{method: http.MethodDelete, path: "/cart/" + url.PathEscape(id)}, &out)
	if err != nil {
		return "", err
	}
	if out == "" {
		out = id
	}
	return out, nil
}

func (c *Client) CreateOrder(ctx context.Context, order types.Order, idempotencyKey string) (types.Order, error) {
	req := request{method: http.MethodPost, path: "/orders", body: order}
	if idempotencyKey != "" {
		req.headers = map[string]string{HeaderIdempotencyKey: idempotencyKey}
	}
	var out types.Order
	err := c.do(ctx, req, &out)
	return out, err
}

func (c *Client) OrdersByUser(ctx context.Context, userID string) ([]types.Order, error) {
	var out []types.Order
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "/orders",
		query:  url.Values{QueryUserID: {userID}},
	}, &out)
	return out, err
}

// EncodeQuery renders a product query: every filter value as a repeated parameter,
// then _sort/_order and _page/_limit when set.
func EncodeQuery(q types.ProductQuery) url.Values {
	values := url.Values{}
	keys := make([]string, 0, len(q.Filter))
	for k := range q.Filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		for _, v := range q.Filter[k] {
			values.Add(k, v)
		}
	}
	if q.Sort.Field != "" {
		values.Set(QuerySort, q.Sort.Field)
		if q.Sort.Order != "" {
			values.Set(QueryOrder, q.Sort.Order)
		}
	}
	if q.Pagination.Page > 0 {
		values.Set(QueryPage, strconv.Itoa(q.Pagination.Page))
	}
	if q.Pagination.Size > 0 {
		values.Set(QueryLimit, strconv.Itoa(q.Pagination.Size))
	}
	return values
}
