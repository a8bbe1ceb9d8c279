package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	loginProvider string
	loginIDToken  string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with an identity provider",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		a.manager.Bootstrap(ctx)

		if state := a.store.State(); state.IsAuthenticated {
			fmt.Printf("Already signed in as %s\n", state.User.Email)
			return nil
		}

		if loginIDToken != "" {
			err = a.manager.LoginWithIDToken(ctx, loginProvider, loginIDToken)
		} else {
			err = a.manager.LoginWithProvider(ctx, loginProvider)
		}
		if err != nil {
			return err
		}

		state := a.store.State()
		fmt.Printf("Signed in as %s (%s)\n", state.User.Name, state.User.Email)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginProvider, "provider", "google", "identity provider")
	loginCmd.Flags().StringVar(&loginIDToken, "id-token", "", "sign in with a provider-issued identity token instead of the browser flow")
	rootCmd.AddCommand(loginCmd)
}
