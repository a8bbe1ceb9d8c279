package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		a.manager.Bootstrap(cmd.Context())
		<-a.manager.Ready()

		state := a.store.State()
		if !state.IsAuthenticated {
			fmt.Println("Not signed in.")
			return nil
		}
		fmt.Printf("Signed in as %s (%s)\n", state.User.Name, state.User.Email)
		fmt.Printf("  provider: %s\n", state.User.Provider)
		fmt.Printf("  user id:  %s\n", state.User.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
