package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/angelmondragon/ptm-finance-backend/internal/dues"
	"github.com/angelmondragon/ptm-finance-backend/internal/duesimport"
)

func newImportCommand(open Opener) *cobra.Command {
	var (
		year  int
		file  string
		actor int64
		token string
	)

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Apply a dues spreadsheet (.xlsx or .xls) for one period year",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if year < dues.MinPeriodYear || year > dues.MaxPeriodYear {
				return fmt.Errorf("--year must be between %d and %d", dues.MinPeriodYear, dues.MaxPeriodYear)
			}
			if actor <= 0 {
				return errors.New("--actor must be a positive user id")
			}

			rows, err := duesimport.ParseFile(file)
			if err != nil {
				return err
			}

			return withApp(cmd.Context(), open, func(app *App) error {
				result, err := app.DuesImport.Import(cmd.Context(), actor, token, year, rows)
				if err != nil {
					return err
				}
				writeImport(cmd, result)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&year, "year", 0, "period year of the sheet (required)")
	cmd.Flags().StringVar(&file, "file", "", "path to the spreadsheet (required)")
	cmd.Flags().Int64Var(&actor, "actor", 0, "user id recorded as the author (required)")
	cmd.Flags().StringVar(&token, "token", "", "session token forwarded to the member directory")
	_ = cmd.MarkFlagRequired("year")
	_ = cmd.MarkFlagRequired("file")
	_ = cmd.MarkFlagRequired("actor")

	return cmd
}

func writeImport(cmd *cobra.Command, result duesimport.Result) {
	out := cmd.OutOrStdout()
	s := result.Summary
	fmt.Fprintf(out, "rows: %d  processed: %d  succeeded: %d  failed: %d\n", s.TotalRows, s.ProcessedRows, s.SuccessRows, s.FailedRows)
	for _, item := range result.Items {
		if item.Failed == 0 && len(item.Errors) == 0 {
			continue
		}
		fmt.Fprintf(out, "member %d (%s):\n", item.MemberID, item.MemberName)
		for _, msg := range item.Errors {
			fmt.Fprintf(out, "  - %s\n", msg)
		}
	}
}
