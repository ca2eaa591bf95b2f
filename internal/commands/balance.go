package commands

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/angelmondragon/ptm-finance-backend/internal/cashbalance"
	"github.com/angelmondragon/ptm-finance-backend/pkg/pagination"
)

func newBalanceCommand(open Opener) *cobra.Command {
	return &cobra.Command{
		Use:   "balance",
		Short: "Print the current cash balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd.Context(), open, func(app *App) error {
				balance, err := app.CashBalance.GetBalance(cmd.Context())
				if err != nil {
					return fmt.Errorf("reading balance: %w", err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cash balance: %s\n", balance.StringFixed(2))
				return nil
			})
		},
	}
}

func newHistoryCommand(open Opener) *cobra.Command {
	var (
		cursor int64
		limit  int
		token  string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List balance history, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := pagination.Params{Limit: limit}
			if cursor > 0 {
				params.Cursor = &cursor
			}
			return withApp(cmd.Context(), open, func(app *App) error {
				result, err := app.CashBalance.GetHistory(cmd.Context(), token, params)
				if err != nil {
					return fmt.Errorf("reading history: %w", err)
				}
				writeHistory(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().Int64Var(&cursor, "cursor", 0, "return entries with an id below this one")
	cmd.Flags().IntVar(&limit, "limit", pagination.DefaultLimit, "page size (max 100)")
	cmd.Flags().StringVar(&token, "token", "", "session token used to resolve user names")

	return cmd
}

func writeHistory(cmd *cobra.Command, result cashbalance.HistoryResult) {
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tDIRECTION\tVALUE\tBY\tDESCRIPTION")
	for _, item := range result.Items {
		direction := "debit"
		if item.Status {
			direction = "credit"
		}
		by := fmt.Sprintf("#%d", item.CreatedBy)
		if item.CreatedByUser != nil && item.CreatedByUser.Name != "" {
			by = item.CreatedByUser.Name
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n",
			item.ID, item.CreatedAt.Format(time.DateTime), direction, item.Value.StringFixed(2), by, item.Description)
	}
	_ = tw.Flush()
	if result.HasMore && result.NextCursor != nil {
		fmt.Fprintf(cmd.OutOrStdout(), "next cursor: %d\n", *result.NextCursor)
	}
}

func newAdjustCommand(open Opener) *cobra.Command {
	var (
		credit      bool
		debit       bool
		value       string
		description string
		actor       int64
	)

	cmd := &cobra.Command{
		Use:   "adjust",
		Short: "Credit or debit the cash balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if credit == debit {
				return errors.New("exactly one of --credit or --debit is required")
			}
			amount, err := decimal.NewFromString(value)
			if err != nil || !amount.IsPositive() {
				return fmt.Errorf("--value must be a positive number, got %q", value)
			}
			if actor <= 0 {
				return errors.New("--actor must be a positive user id")
			}
			return withApp(cmd.Context(), open, func(app *App) error {
				balance, err := app.CashBalance.UpdateBalance(cmd.Context(), actor, cashbalance.UpdateBalanceInput{
					Status:      credit,
					Value:       amount,
					Description: description,
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Cash balance updated: %s\n", balance.StringFixed(2))
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&credit, "credit", false, "add the value to the balance")
	cmd.Flags().BoolVar(&debit, "debit", false, "subtract the value from the balance")
	cmd.Flags().StringVar(&value, "value", "", "amount to move (required)")
	cmd.Flags().StringVar(&description, "description", "", "history description (required)")
	cmd.Flags().Int64Var(&actor, "actor", 0, "user id recorded as the author (required)")
	_ = cmd.MarkFlagRequired("value")
	_ = cmd.MarkFlagRequired("description")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}
