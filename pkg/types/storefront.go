package types

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/pkg/enums"
)

// Address is a shipping address captured by the checkout form.
type Address struct {
	FullName      string `json:"fullName" validate:"required,max=120"`
	StreetAddress string `json:"streetAddress" validate:"required,max=200"`
	City          string `json:"city" validate:"required,max=80"`
	State         string `json:"state" validate:"required,max=80"`
	PinCode       string `json:"pinCode" validate:"required,max=20"`
	Phone         string `json:"phone" validate:"required,max=30"`
	Country       string `json:"country" validate:"required,max=80"`
	Email         string `json:"email" validate:"required,email"`
}

// Session is the authenticated shopper as returned by the gateway.
type Session struct {
	ID        string         `json:"id"`
	Token     string         `json:"token"`
	Email     string         `json:"email"`
	Name      string         `json:"name,omitempty"`
	Addresses []Address      `json:"addresses"`
	Role      enums.UserRole `json:"role"`
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	out.Addresses = append([]Address(nil), s.Addresses...)
	return &out
}

// Credentials is the login form payload.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Profile is the signup form payload.
type Profile struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Name     string `json:"name,omitempty" validate:"omitempty,max=120"`
}

// ProfilePatch carries the mutable session fields; nil members are left untouched.
type ProfilePatch struct {
	Name      *string   `json:"name,omitempty" validate:"omitempty,max=120"`
	Addresses []Address `json:"addresses,omitempty" validate:"omitempty,dive"`
}

// Product is a catalog snapshot.
type Product struct {
	ID                 string          `json:"id"`
	Title              string          `json:"title"`
	Description        string          `json:"description,omitempty"`
	Price              decimal.Decimal `json:"price"`
	DiscountPercentage float64         `json:"discountPercentage,omitempty"`
	Rating             float64         `json:"rating,omitempty"`
	Stock              int             `json:"stock"`
	Brand              string          `json:"brand"`
	Category           string          `json:"category"`
	Thumbnail          string          `json:"thumbnail"`
	Images             []string        `json:"images,omitempty"`
}

// Option is a labelled filter value (brand or category).
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// Sort orders a product listing.
type Sort struct {
	Field string `json:"_sort,omitempty"`
	Order string `json:"_order,omitempty"`
}

// Pagination selects one page of a product listing.
type Pagination struct {
	Page int `json:"_page,omitempty"`
	Size int `json:"_limit,omitempty"`
}

// ProductQuery is forwarded to the gateway verbatim.
type ProductQuery struct {
	Filter     map[string][]string
	Sort       Sort
	Pagination Pagination
}

// reservedQueryKeys are owned by sorting, paging and ownership scoping.
var reservedQueryKeys = map[string]struct{}{
	"_sort": {}, "_order": {}, "_page": {}, "_limit": {}, "userId": {},
}

// ReservedQueryKey reports whether k cannot be used as a filter name.
func ReservedQueryKey(k string) bool {
	_, ok := reservedQueryKeys[k]
	return ok
}

// ProductPage is one filtered page plus the unpaginated match count.
type ProductPage struct {
	Products   []Product `json:"products"`
	TotalItems int       `json:"totalItems"`
}

// CartItem is one cart entry keyed by its cart-entry id.
type CartItem struct {
	ID        string          `json:"id,omitempty"`
	ProductID string          `json:"productId" validate:"required"`
	UserID    string          `json:"userId,omitempty"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Title     string          `json:"title"`
	Brand     string          `json:"brand"`
	Thumbnail string          `json:"thumbnail"`
}

// LineTotal is price × quantity.
func (c CartItem) LineTotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// Order is an immutable checkout snapshot.
type Order struct {
	ID              string            `json:"id,omitempty"`
	UserID          string            `json:"userId"`
	Items           []CartItem        `json:"items"`
	TotalAmount     decimal.Decimal   `json:"totalAmount"`
	TotalItems      int               `json:"totalItems"`
	PaymentMode     enums.PaymentMode `json:"paymentMode"`
	SelectedAddress Address           `json:"selectedAddress"`
	Status          enums.OrderStatus `json:"status"`
	CreatedAt       time.Time         `json:"createdAt"`
}

// Clone returns a copy that shares no slices with o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	out := *o
	out.Items = append([]CartItem(nil), o.Items...)
	return &out
}
