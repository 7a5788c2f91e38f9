// cmd/server/main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "storefront-analytics",
	Short: "Storefront analytics API and provider sync",
	Long: `storefront-analytics pulls products and orders from the configured
storefront providers into Postgres and serves the dashboard API over them.

Run "serve" for the HTTP API (with optional scheduled syncs), "sync" for a
one-off sync from cron or a job runner, and "migrate" to prepare the schema.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newSyncCmd(), newMigrateCmd())
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
