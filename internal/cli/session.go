package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"
)

type loginOptions struct {
	email          string
	customerNumber string
	password       string
}

func newLoginCommand(app func() *App) *cobra.Command {
	opts := &loginOptions{}
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with your email or account number",
		Long: `Sign in with your email or account number. The password is read from
--password or, when omitted, from the first line of standard input.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLogin(cmd, app(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.email, "email", "", "account email")
	cmd.Flags().StringVar(&opts.customerNumber, "customer-number", "", "account number, used to look up the email")
	cmd.Flags().StringVar(&opts.password, "password", "", "password")
	cmd.MarkFlagsMutuallyExclusive("email", "customer-number")
	cmd.MarkFlagsOneRequired("email", "customer-number")
	return cmd
}

func runLogin(cmd *cobra.Command, a *App, opts *loginOptions) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	email := strings.TrimSpace(opts.email)
	if opts.customerNumber != "" {
		var err error
		if email, err = a.api.CustomerEmail(ctx, opts.customerNumber); err != nil {
			return errors.Wrapf(err, "look up account %s", opts.customerNumber)
		}
	}

	password := opts.password
	if password == "" {
		fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return errors.Wrap(err, "read password")
		}
		password = strings.TrimRight(line, "\r\n")
	}

	sess, err := a.api.Login(ctx, email, password)
	if err != nil {
		return err
	}
	if err := a.saveSession(ctx, sess); err != nil {
		return errors.Wrap(err, "save session")
	}

	fmt.Fprintf(out, "Signed in as %s.\n", email)
	return nil
}

func newLogoutCommand(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out on this device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := app()
			if err := a.store.Delete(cmd.Context(), sessionKey); err != nil {
				return errors.Wrap(err, "delete session")
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out.")
			return nil
		},
	}
}
