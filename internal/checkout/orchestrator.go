// Package checkout sequences the purchase workflow over the auth, cart and order
// slices: address and payment selection, a single order submission per draft, the
// confirmation redirect and the follow-up cart clear.
package checkout

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront/internal/forms"
	"github.com/angelmondragon/storefront/internal/guard"
	"github.com/angelmondragon/storefront/internal/orders"
	"github.com/angelmondragon/storefront/internal/selectors"
	"github.com/angelmondragon/storefront/internal/store"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

// Params wires the orchestrator.
type Params struct {
	Store *store.Store
	// ClearOnOrder deletes the ordered cart entries once the order is confirmed.
	ClearOnOrder bool
	Logger       *logger.Logger
	// NewKey generates idempotency keys; defaults to random UUIDs.
	NewKey func() string
}

// View is what the checkout screen renders.
type View struct {
	State        enums.CheckoutState
	Redirect     string
	Items        []types.CartItem
	TotalAmount  decimal.Decimal
	TotalItems   int
	Addresses    []types.Address
	AddressIndex int
	PaymentMode  enums.PaymentMode
	Order        *types.Order
	Error        string
}

// Orchestrator drives one checkout visit. It is safe for concurrent use.
type Orchestrator struct {
	store        *store.Store
	clearOnOrder bool
	logg         *logger.Logger
	newKey       func() string

	mu           sync.Mutex
	state        enums.CheckoutState
	addressIndex int
	paymentMode  enums.PaymentMode
	draftKey     string
	draftSig     string
	order        *types.Order
	lastErr      string
	redirect     string
	closed       bool
}

// New builds an orchestrator in the Editing state with nothing selected.
func New(p Params) (*Orchestrator, error) {
	if p.Store == nil {
		return nil, fmt.Errorf("store required")
	}
	newKey := p.NewKey
	if newKey == nil {
		newKey = uuid.NewString
	}
	return &Orchestrator{
		store:        p.Store,
		clearOnOrder: p.ClearOnOrder,
		logg:         p.Logger,
		newKey:       newKey,
		state:        enums.CheckoutStateEditing,
		addressIndex: -1,
	}, nil
}

// Open enters the workflow. An empty cart aborts immediately.
func (o *Orchestrator) Open(ctx context.Context) View {
	st := o.store.State()
	o.mu.Lock()
	o.reconcile(ctx, st)
	v := o.view(st)
	o.mu.Unlock()
	o.info(ctx, "checkout.opened", map[string]any{"state": v.State.String()})
	return v
}

// View recomputes the screen from the current slices.
func (o *Orchestrator) View() View {
	st := o.store.State()
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reconcile(context.Background(), st)
	return o.view(st)
}

// State returns the workflow position.
func (o *Orchestrator) State() enums.CheckoutState {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// SubmitAddress appends addr to the session's address book. Invalid input returns
// field-level validation errors and mutates nothing.
func (o *Orchestrator) SubmitAddress(ctx context.Context, addr types.Address) (types.Session, error) {
	if err := o.requireEditable(); err != nil {
		return types.Session{}, err
	}
	if err := forms.Address(addr); err != nil {
		return types.Session{}, err
	}
	sess, err := o.store.Auth().AddAddress(ctx, addr)
	if err != nil {
		return types.Session{}, err
	}
	o.edited()
	return sess, nil
}

// SelectAddress picks one of the session's addresses by position.
func (o *Orchestrator) SelectAddress(index int) error {
	addresses := selectors.Addresses(o.store.State())
	if index < 0 || index >= len(addresses) {
		return pkgerrors.New(pkgerrors.CodeValidation, "select one of your saved addresses").
			WithDetails(forms.FieldErrors{"selectedAddress": fmt.Sprintf("must be between 0 and %d", len(addresses)-1)})
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.addressIndex = index
	o.backToEditing()
	return nil
}

// SelectPaymentMode picks how the order will be settled.
func (o *Orchestrator) SelectPaymentMode(mode enums.PaymentMode) error {
	if !mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "select a payment mode").
			WithDetails(forms.FieldErrors{"paymentMode": "must be one of cash, card"})
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.editableLocked(); err != nil {
		return err
	}
	o.paymentMode = mode
	o.backToEditing()
	return nil
}

// SetQuantity changes an entry's quantity from the checkout view.
func (o *Orchestrator) SetQuantity(ctx context.Context, id string, quantity int) (types.CartItem, error) {
	if err := o.requireEditable(); err != nil {
		return types.CartItem{}, err
	}
	item, err := o.store.Cart().SetQuantity(ctx, id, quantity)
	if err != nil {
		return types.CartItem{}, err
	}
	o.edited()
	return item, nil
}

// RemoveItem deletes an entry from the checkout view. Removing the last entry aborts.
func (o *Orchestrator) RemoveItem(ctx context.Context, id string) error {
	if err := o.requireEditable(); err != nil {
		return err
	}
	if _, err := o.store.Cart().DeleteItem(ctx, id); err != nil {
		return err
	}
	o.edited()
	return nil
}

// PlaceOrder submits the current draft. Only one submission may be in flight; a
// second call while submitting is rejected without reaching the gateway. Retrying an
// unchanged draft after a failure reuses its idempotency key.
func (o *Orchestrator) PlaceOrder(ctx context.Context) (types.Order, error) {
	st := o.store.State()

	o.mu.Lock()
	if o.closed {
		o.mu.Unlock()
		return types.Order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is closed")
	}
	o.reconcile(ctx, st)
	switch o.state {
	case enums.CheckoutStateSubmitting:
		o.mu.Unlock()
		return types.Order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "order submission already in progress")
	case enums.CheckoutStateCompleted, enums.CheckoutStateAborted:
		state := o.state
		o.mu.Unlock()
		return types.Order{}, pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout is %s", state))
	}

	draft, err := o.draftLocked(st)
	if err != nil {
		o.mu.Unlock()
		return types.Order{}, err
	}
	sig := fingerprint(draft)
	if sig != o.draftSig || o.draftKey == "" {
		o.draftSig = sig
		o.draftKey = o.newKey()
	}
	key := o.draftKey
	o.state = enums.CheckoutStateSubmitting
	o.lastErr = ""
	o.mu.Unlock()

	o.info(ctx, "checkout.submitting", map[string]any{"idempotency_key": key, "total_items": draft.TotalItems})
	created, err := o.store.Orders().Create(ctx, draft, key)

	o.mu.Lock()
	closed := o.closed
	if !closed {
		if err != nil {
			o.state = enums.CheckoutStateFailed
			o.lastErr = pkgerrors.UserMessage(err)
		} else {
			o.state = enums.CheckoutStateCompleted
			o.order = created.Clone()
			o.redirect = guard.OrderSuccessPath(created.ID)
		}
	}
	o.mu.Unlock()

	if err != nil {
		if o.logg != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.failed")
		}
		return types.Order{}, err
	}
	o.info(ctx, "checkout.completed", map[string]any{"order_id": created.ID, "dropped": closed})

	if o.clearOnOrder {
		o.clearCart(ctx, draft)
	}
	return created, nil
}

// Acknowledge is called once the confirmation has been shown; it releases the cart.
func (o *Orchestrator) Acknowledge() {
	o.store.Orders().Dispatch(orders.ResetCurrent{})
}

// Close ends the visit: selections are forgotten and later completions no longer
// touch the orchestrator.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	o.addressIndex = -1
	o.paymentMode = ""
}

// clearCart removes the ordered entries. Entries that cannot be deleted are reloaded
// so the cart reflects the gateway again.
func (o *Orchestrator) clearCart(ctx context.Context, order types.Order) {
	if _, err := o.store.Cart().ClearOrdered(ctx, order.Items); err != nil {
		if o.logg != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", err.Error()), "checkout.cart_clear_failed")
		}
		if _, ferr := o.store.Cart().FetchByUser(ctx, order.UserID); ferr != nil && o.logg != nil {
			o.logg.Warn(o.logg.WithField(ctx, "error", ferr.Error()), "checkout.cart_resync_failed")
		}
	}
}

func (o *Orchestrator) draftLocked(st store.State) (types.Order, error) {
	if !selectors.IsAuthenticated(st) {
		return types.Order{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	fields := forms.FieldErrors{}
	if o.addressIndex < 0 || o.addressIndex >= len(st.Auth.Session.Addresses) {
		fields["selectedAddress"] = "is required"
	}
	if !o.paymentMode.IsValid() {
		fields["paymentMode"] = "is required"
	}
	if len(fields) > 0 {
		return types.Order{}, pkgerrors.New(pkgerrors.CodeValidation, "select an address and a payment mode").WithDetails(fields)
	}
	if selectors.CartLocked(st) {
		return types.Order{}, pkgerrors.New(pkgerrors.CodeStateConflict, "cart is being updated")
	}
	return orders.Prepare(types.Order{
		UserID:          st.Auth.Session.ID,
		Items:           st.Cart.Items,
		PaymentMode:     o.paymentMode,
		SelectedAddress: st.Auth.Session.Addresses[o.addressIndex],
		Status:          enums.OrderStatusPending,
	}), nil
}

// reconcile applies the state-driven transitions: a current order completes the
// workflow and an emptied cart aborts it.
func (o *Orchestrator) reconcile(ctx context.Context, st store.State) {
	switch o.state {
	case enums.CheckoutStateCompleted:
		return
	case enums.CheckoutStateSubmitting, enums.CheckoutStateAborted:
		return
	}
	if cur := st.Orders.Current; cur != nil {
		o.state = enums.CheckoutStateCompleted
		o.order = cur.Clone()
		o.redirect = guard.OrderSuccessPath(cur.ID)
		return
	}
	if selectors.CartIsEmpty(st) {
		o.state = enums.CheckoutStateAborted
		o.redirect = guard.PathHome
		if o.logg != nil {
			o.logg.Info(ctx, "checkout.aborted")
		}
	}
}

func (o *Orchestrator) view(st store.State) View {
	return View{
		State:        o.state,
		Redirect:     o.redirect,
		Items:        st.Cart.Items,
		TotalAmount:  selectors.CartTotalAmount(st),
		TotalItems:   selectors.CartTotalItems(st),
		Addresses:    selectors.Addresses(st),
		AddressIndex: o.addressIndex,
		PaymentMode:  o.paymentMode,
		Order:        o.order.Clone(),
		Error:        o.lastErr,
	}
}

func (o *Orchestrator) requireEditable() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.editableLocked()
}

func (o *Orchestrator) editableLocked() error {
	if o.closed {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "checkout is closed")
	}
	if !o.state.AcceptsEdits() {
		return pkgerrors.New(pkgerrors.CodeStateConflict, fmt.Sprintf("checkout is %s", o.state))
	}
	return nil
}

func (o *Orchestrator) edited() {
	o.mu.Lock()
	o.backToEditing()
	o.mu.Unlock()
}

func (o *Orchestrator) backToEditing() {
	if o.state == enums.CheckoutStateFailed {
		o.state = enums.CheckoutStateEditing
	}
}

func (o *Orchestrator) info(ctx context.Context, msg string, fields map[string]any) {
	if o.logg == nil {
		return
	}
	o.logg.Info(o.logg.WithFields(ctx, fields), msg)
}

// fingerprint identifies a draft so retries of the same draft share a key.
func fingerprint(order types.Order) string {
	payload, _ := json.Marshal(struct {
		UserID  string            `json:"u"`
		Items   []types.CartItem  `json:"i"`
		Mode    enums.PaymentMode `json:"m"`
		Address types.Address     `json:"a"`
	}{order.UserID, order.Items, order.PaymentMode, order.SelectedAddress})
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
