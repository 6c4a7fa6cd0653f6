package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newProductsCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "products",
		Short: "List the catalog with your prices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			ctx := cmd.Context()
			sess, api, err := a.authed(ctx)
			if err != nil {
				return err
			}
			products, err := api.ListForCustomer(ctx, sess.CustomerID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(products) == 0 {
				fmt.Fprintln(out, "No products available.")
				return nil
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tSKU\tNAME\tUNIT\tPRICE")
			for _, p := range products {
				price := "No price set"
				if p.PricePence != nil {
					price = pounds(*p.PricePence)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", p.ID, p.SKU, p.Name, p.Unit, price)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintln(out, "\nAdd a product with `storefront cart add <id>`.")
			return nil
		},
	}
}
