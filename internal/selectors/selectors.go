// Package selectors derives values from store state. Every function is pure and
// recomputes from the slices on each call.
package selectors

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/store"
	"github.com/angelmondragon/storefront/pkg/enums"
	"github.com/angelmondragon/storefront/pkg/types"
)

// CartTotalAmount is Σ price × quantity over the cart; zero for an empty cart.
func CartTotalAmount(st store.State) decimal.Decimal {
	return TotalAmount(st.Cart.Items)
}

// CartTotalItems is Σ quantity over the cart.
func CartTotalItems(st store.State) int {
	return TotalItems(st.Cart.Items)
}

// TotalAmount sums the line totals of items.
func TotalAmount(items []types.CartItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// TotalItems sums the quantities of items.
func TotalItems(items []types.CartItem) int {
	count := 0
	for _, item := range items {
		count += item.Quantity
	}
	return count
}

// CurrentOrder is the order awaiting confirmation display, or nil.
func CurrentOrder(st store.State) *types.Order {
	return st.Orders.Current.Clone()
}

// IsAuthenticated reports session presence only.
func IsAuthenticated(st store.State) bool {
	return st.Auth.Session != nil
}

func CartIsEmpty(st store.State) bool {
	return len(st.Cart.Items) == 0
}

// CartItemByProduct finds the cart entry holding productID.
func CartItemByProduct(st store.State, productID string) (types.CartItem, bool) {
	for _, item := range st.Cart.Items {
		if item.ProductID == productID {
			return item, true
		}
	}
	return types.CartItem{}, false
}

// CartLocked reports whether cart controls must be disabled: a mutation is in flight
// or a placed order has not been acknowledged yet.
func CartLocked(st store.State) bool {
	return st.Cart.Busy() || st.Orders.Current != nil
}

// Addresses returns the signed-in user's address book.
func Addresses(st store.State) []types.Address {
	if st.Auth.Session == nil {
		return nil
	}
	return append([]types.Address(nil), st.Auth.Session.Addresses...)
}

// CheckoutReady reports whether an order can be placed with the given selections.
func CheckoutReady(st store.State, addressIndex int, mode enums.PaymentMode) bool {
	if !IsAuthenticated(st) || CartIsEmpty(st) || CartLocked(st) || st.Orders.Busy() {
		return false
	}
	if addressIndex < 0 || addressIndex >= len(st.Auth.Session.Addresses) {
		return false
	}
	return mode.IsValid()
}
