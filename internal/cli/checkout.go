package cli

import (
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/galadrinks/storefront/internal/domain/checkout"
	"github.com/galadrinks/storefront/internal/domain/order"
)

func newCheckoutCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout",
		Short: "Place an order for everything in the cart",
		Long: `Place an order for everything in the cart at the prices shown when each
product was added. On success the cart is emptied; on failure it is left
as it was and the server's message is shown.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCheckout(cmd, app(), uuid.NewString)
		},
	}
}

func runCheckout(cmd *cobra.Command, a *App, newKey func() string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	mode, err := checkout.ParseMode(a.cfg.Checkout.Mode)
	if err != nil {
		return err
	}

	// Without a session the coordinator rejects the request before any
	// network call; the unauthenticated client is never used.
	var (
		orders     order.Writer = a.api
		customerID string
	)
	if sess := a.session(ctx); sess != nil {
		customerID = sess.CustomerID
		orders = a.api.WithToken(sess.AccessToken)
	}

	co, err := checkout.NewCoordinator(orders, a.cart, checkout.Options{
		Mode:                mode,
		DisableCompensation: !a.cfg.Checkout.Compensate,
		Logger:              a.lg.Named("checkout"),
	})
	if err != nil {
		return err
	}

	lines := a.cart.Lines()
	req := checkout.Request{Lines: lines, CustomerID: customerID}
	if co.Atomic() && len(lines) > 0 && customerID != "" {
		if req.IdempotencyKey, err = a.checkoutKey(ctx, newKey); err != nil {
			return err
		}
	}

	res, err := co.PlaceOrder(ctx, req)
	switch {
	case errors.Is(err, checkout.ErrNotAuthenticated):
		return errNotSignedIn
	case errors.Is(err, checkout.ErrEmptyCart):
		return errors.New("your cart is empty: add products with `storefront cart add <id>`")
	case err != nil:
		return err
	}
	a.forgetCheckoutKey(ctx)

	fmt.Fprintf(out, "Order placed! Order %s, total %s.\n", res.Order.ID, pounds(res.Order.TotalPence()))
	if !res.CartCleared {
		fmt.Fprintln(out, "The cart on this device could not be emptied; run `storefront cart clear`.")
	}
	fmt.Fprintln(out, "Continue shopping with `storefront products`.")
	return nil
}
