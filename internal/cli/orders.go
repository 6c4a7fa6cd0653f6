package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/galadrinks/storefront/internal/domain/order"
)

func newOrdersCommand(app func() *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Show your recent orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			ctx := cmd.Context()
			sess, api, err := a.authed(ctx)
			if err != nil {
				return err
			}
			orders, err := api.ListByCustomer(ctx, sess.CustomerID, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(orders) == 0 {
				fmt.Fprintln(out, "No orders yet.")
				return nil
			}
			for i, o := range orders {
				if i > 0 {
					fmt.Fprintln(out)
				}
				printOrder(cmd, o)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", order.DefaultListLimit, "number of orders to show")
	return cmd
}

func printOrder(cmd *cobra.Command, o order.Order) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Order %s  %s  %s  %s\n",
		o.ID, o.CreatedAt.UTC().Format("2006-01-02 15:04"), o.Status, pounds(o.TotalPence()))
	for _, it := range o.Items {
		fmt.Fprintf(out, "  %d x %s (%s) @ %s = %s\n",
			it.Qty, it.ProductName, it.SKU, pounds(it.UnitPricePence), pounds(int64(it.Qty)*it.UnitPricePence))
	}
}
