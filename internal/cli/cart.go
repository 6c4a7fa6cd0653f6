package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

func newCartCommand(app func() *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cart",
		Short: "Show and change the cart on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printCart(cmd.OutOrStdout(), app())
		},
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "add <product-id>",
		Short: "Add one unit of a product at your price",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCartAdd(cmd, app(), args[0])
		},
	})
	cmd.AddCommand(lineCommand(app, "inc <line>", "Add one to a line's quantity", 1,
		func(ctx context.Context, a *App, i int, _ []string) error { return a.cart.Increment(ctx, i) }))
	cmd.AddCommand(lineCommand(app, "dec <line>", "Remove one from a line's quantity", 1,
		func(ctx context.Context, a *App, i int, _ []string) error { return a.cart.Decrement(ctx, i) }))
	cmd.AddCommand(lineCommand(app, "set <line> <qty>", "Set a line's quantity", 2,
		func(ctx context.Context, a *App, i int, rest []string) error {
			qty, err := strconv.Atoi(rest[0])
			if err != nil {
				return errors.Errorf("invalid quantity %q", rest[0])
			}
			return a.cart.SetQty(ctx, i, qty)
		}))
	cmd.AddCommand(lineCommand(app, "remove <line>", "Remove a line", 1,
		func(ctx context.Context, a *App, i int, _ []string) error { return a.cart.Remove(ctx, i) }))
	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Empty the cart",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if err := a.cart.Clear(cmd.Context()); err != nil {
				return err
			}
			a.forgetCheckoutKey(cmd.Context())
			fmt.Fprintln(cmd.OutOrStdout(), "Cart cleared.")
			return nil
		},
	})

	return cmd
}

// lineCommand builds a subcommand addressing a cart line by its 1-based
// number as shown by `storefront cart`. The cart is printed afterwards.
func lineCommand(app func() *App, use, short string, nargs int, fn func(ctx context.Context, a *App, i int, rest []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return errors.Errorf("invalid line number %q", args[0])
			}
			if err := fn(cmd.Context(), a, n-1, args[1:]); err != nil {
				return err
			}
			a.forgetCheckoutKey(cmd.Context())
			return printCart(cmd.OutOrStdout(), a)
		},
	}
}

func runCartAdd(cmd *cobra.Command, a *App, productID string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	sess, api, err := a.authed(ctx)
	if err != nil {
		return err
	}
	p, err := api.GetForCustomer(ctx, sess.CustomerID, productID)
	if err != nil {
		return err
	}

	added, err := a.cart.Add(ctx, *p)
	if err != nil {
		return err
	}
	if !added {
		fmt.Fprintf(out, "No price set for %s on your account; it cannot be ordered.\n", p.Name)
		return nil
	}
	a.forgetCheckoutKey(ctx)
	fmt.Fprintf(out, "Added %s (%s) to the cart.\n", p.Name, pounds(*p.PricePence))
	return nil
}

func printCart(w io.Writer, a *App) error {
	lines := a.cart.Lines()
	if len(lines) == 0 {
		fmt.Fprintln(w, "Your cart is empty. Browse products with `storefront products`.")
		return nil
	}

	tw := newTable(w)
	fmt.Fprintln(tw, "#\tSKU\tNAME\tQTY\tPRICE\tTOTAL")
	for i, l := range lines {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%d\t%s\t%s\n", i+1, l.SKU, l.Name, l.Qty, pounds(l.PricePence), pounds(l.TotalPence()))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nSubtotal: %s\n", pounds(a.cart.Subtotal()))
	return nil
}
