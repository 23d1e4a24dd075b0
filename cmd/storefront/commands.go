package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/storefront/internal/checkout"
	"github.com/angelmondragon/storefront/internal/guard"
	"github.com/angelmondragon/storefront/internal/selectors"
	"github.com/angelmondragon/storefront/internal/store"
	"github.com/angelmondragon/storefront/pkg/config"
	"github.com/angelmondragon/storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/types"
)

var commandViews = map[string]string{
	"catalog":  guard.PathHome,
	"cart":     guard.PathCart,
	"orders":   guard.PathOrders,
	"checkout": guard.PathCheckout,
}

func dispatch(ctx context.Context, cfg *config.Config, logg *logger.Logger, s *store.Store, g *guard.Guard, cmd command) error {
	if cmd.name == "logout" {
		return s.Logout(ctx)
	}

	view, ok := commandViews[cmd.name]
	if !ok {
		return fmt.Errorf("unknown -cmd value %q", cmd.name)
	}
	if d := g.Navigate(view); !d.Render() {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required").
			WithDetails(map[string]string{"redirect": d.Redirect})
	}

	switch cmd.name {
	case "catalog":
		return showCatalog(ctx, logg, s)
	case "cart":
		return showCart(s)
	case "orders":
		return showOrders(ctx, s)
	default:
		return placeOrder(ctx, cfg, logg, s, cmd)
	}
}

func showCatalog(ctx context.Context, logg *logger.Logger, s *store.Store) error {
	var (
		products   []types.Product
		brands     []types.Option
		categories []types.Option
	)
	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() (err error) {
		products, err = s.Products().FetchAll(gctx)
		return err
	})
	grp.Go(func() (err error) {
		brands, err = s.Products().FetchBrands(gctx)
		return err
	})
	grp.Go(func() (err error) {
		categories, err = s.Products().FetchCategories(gctx)
		return err
	})
	if err := grp.Wait(); err != nil {
		return err
	}

	logg.Info(logg.WithFields(ctx, map[string]any{
		"products":   len(products),
		"brands":     len(brands),
		"categories": len(categories),
	}), "catalog.loaded")
	return printJSON(map[string]any{
		"products":   products,
		"brands":     brands,
		"categories": categories,
	})
}

func showCart(s *store.Store) error {
	st := s.State()
	return printJSON(map[string]any{
		"items":       st.Cart.Items,
		"totalAmount": selectors.CartTotalAmount(st),
		"totalItems":  selectors.CartTotalItems(st),
		"locked":      selectors.CartLocked(st),
	})
}

func showOrders(ctx context.Context, s *store.Store) error {
	sess := s.State().Auth.Session
	if sess == nil {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	orders, err := s.Orders().FetchByUser(ctx, sess.ID)
	if err != nil {
		return err
	}
	return printJSON(orders)
}

func placeOrder(ctx context.Context, cfg *config.Config, logg *logger.Logger, s *store.Store, cmd command) error {
	mode := enums.PaymentMode(strings.ToLower(cmd.payment))
	if !mode.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unsupported payment mode").
			WithDetails(map[string]string{"paymentMode": "must be cash or card"})
	}

	o, err := checkout.New(checkout.Params{Store: s, ClearOnOrder: cfg.Cart.ClearOnOrder, Logger: logg})
	if err != nil {
		return err
	}
	defer o.Close()

	if v := o.Open(ctx); v.State == enums.CheckoutStateAborted {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cart is empty")
	}
	if err := o.SelectAddress(cmd.address); err != nil {
		return err
	}
	if err := o.SelectPaymentMode(mode); err != nil {
		return err
	}
	order, err := o.PlaceOrder(ctx)
	if err != nil {
		return err
	}
	return printJSON(map[string]any{
		"order":    order,
		"redirect": o.View().Redirect,
	})
}

func credentials(cfg *config.Config) types.Credentials {
	return types.Credentials{Email: cfg.Session.Email, Password: cfg.Session.Password}
}

// logOperations writes one line per envelope counter gathered during the run.
func logOperations(ctx context.Context, logg *logger.Logger, reg prometheus.Gatherer) {
	families, err := reg.Gather()
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "metrics.gather_failed")
		return
	}
	for _, family := range families {
		if family.GetType() != dto.MetricType_COUNTER {
			continue
		}
		for _, m := range family.GetMetric() {
			fields := labelsOf(m)
			fields["metric"] = family.GetName()
			fields["value"] = m.GetCounter().GetValue()
			logg.Debug(logg.WithFields(ctx, fields), "metrics.operation")
		}
	}
}

func labelsOf(m *dto.Metric) map[string]any {
	out := make(map[string]any, len(m.GetLabel())+2)
	for _, label := range m.GetLabel() {
		out[label.GetName()] = label.GetValue()
	}
	return out
}
