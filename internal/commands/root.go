// Package commands holds the finance operator CLI.
package commands

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	"github.com/angelmondragon/ptm-finance-backend/internal/duesimport"
)

// App is what the subcommands operate on.
type App struct {
	CashBalance cashbalance.Service
	DuesImport  duesimport.Service
}

// Opener builds the App for one invocation. The returned func releases
// whatever the App holds.
type Opener func(ctx context.Context) (*App, func(), error)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand(open Opener) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "finance-cli",
		Short: "Operate the finance cash balance and membership dues",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		newBalanceCommand(open),
		newHistoryCommand(open),
		newAdjustCommand(open),
		newImportCommand(open),
	)

	return rootCmd
}

func withApp(ctx context.Context, open Opener, fn func(*App) error) error {
	app, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	if closeFn != nil {
		defer closeFn()
	}
	return fn(app)
}
