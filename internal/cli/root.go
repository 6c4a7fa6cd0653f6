// Package cli implements the storefront command line client.
package cli

import (
	"context"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	ConfigFile string
	APIURL     string
}

// Opener builds the App a command runs against.
type Opener func(ctx context.Context, opts *RootOptions) (*App, error)

// NewRootCommand creates the root command for the storefront CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(Open)
}

func newRootCommand(open Opener) *cobra.Command {
	opts := &RootOptions{}
	var a *App
	app := func() *App { return a }

	cmd := &cobra.Command{
		Use:   "storefront",
		Short: "Gala Drinks trade storefront",
		Long: `Browse the Gala Drinks catalog at your account's prices, keep a cart on
this device and place orders.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			a, err = open(cmd.Context(), opts)
			return err
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if a == nil {
				return nil
			}
			return a.Close()
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose logging")
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "config file (default storefront.yaml or ~/.config/storefront/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "API base URL, overrides the config")

	cmd.AddCommand(newLoginCommand(app))
	cmd.AddCommand(newLogoutCommand(app))
	cmd.AddCommand(newProductsCommand(app))
	cmd.AddCommand(newCartCommand(app))
	cmd.AddCommand(newCheckoutCommand(app))
	cmd.AddCommand(newOrdersCommand(app))

	return cmd
}
