// cmd/server/sync.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/javajoker/storefront-analytics/internal/models"
	"github.com/javajoker/storefront-analytics/internal/syncer"
)

// errSyncFailed makes the process exit non-zero for schedulers without
// printing the run a second time.
var errSyncFailed = fmt.Errorf("sync finished with status %s", models.SyncStatusFailed)

func newSyncCmd() *cobra.Command {
	var providerName string

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run one sync of every configured provider and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			stack, err := a.newSyncStack()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := stack.service.RecoverStale(ctx); err != nil {
				a.log.WithError(err).Warn("Failed to recover stale sync runs")
			}

			if providerName != "" {
				return syncOne(ctx, a, stack.service, providerName)
			}

			result, _, err := syncer.NewRunner(stack.service, a.log).Trigger(ctx)
			if err != nil {
				return err
			}
			if err := printJSON(result); err != nil {
				return err
			}
			if result.Status != models.SyncStatusSuccess {
				return errSyncFailed
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&providerName, "provider", "", "sync only the named provider")
	return cmd
}

func syncOne(ctx context.Context, a *app, service *syncer.Service, name string) error {
	provider, ok := a.cfg.ProviderByName(name)
	if !ok {
		return fmt.Errorf("unknown provider %q", name)
	}

	result := service.SyncProviderWithRetry(ctx, provider, nil)
	if err := printJSON(result); err != nil {
		return err
	}
	if !result.Success {
		return errSyncFailed
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
