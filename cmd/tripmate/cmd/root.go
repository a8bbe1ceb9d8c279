package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var configFile string

var rootCmd = &cobra.Command{
	Use:   "tripmate",
	Short: "TripMate is a trip and expense tracking client",
	Long: `The TripMate command line client. It manages the local authentication
session: sign in with a provider, inspect the current session, and sign out.`,
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "config file (default: tripmate.yaml in . or ~/.tripmate)")
}
