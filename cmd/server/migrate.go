// cmd/server/migrate.go
package main

import (
	"github.com/spf13/cobra"

	"github.com/javajoker/storefront-analytics/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var seed bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if seed {
				if err := database.SeedInitialData(a.db, a.cfg.Admin, a.log); err != nil {
					return err
				}
			}
			a.log.Info("Migrations completed")
			return nil
		},
	}

	cmd.Flags().BoolVar(&seed, "seed", true, "create the initial admin from ADMIN_EMAIL/ADMIN_PASSWORD when no users exist")
	return cmd
}
