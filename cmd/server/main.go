package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:   "investpool",
		Short: "Shared investment pool ledger",
		Long: `investpool tracks a shared investment pool: members own shares of the pool,
priced at the pool's current value divided by outstanding shares.`,
		SilenceUsage: true,
		RunE:         runServe,
	}
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Runs the gRPC and HTTP servers and the refresh scheduler",
		RunE:  runServe,
	}
	refreshCmd = &cobra.Command{
		Use:   "refresh",
		Short: "Marks the pool to market once using the configured price oracle",
		RunE:  runRefresh,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", os.Getenv("INVESTPOOL_CONFIG"),
		"path to a YAML config file (optional)")
	rootCmd.AddCommand(serveCmd, refreshCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
