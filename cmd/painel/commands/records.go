package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/tabular"
)

var (
	importDryRun bool
	exportOut    string
	exportFlags  queryFlags
)

// validateCmd checks a candidate file without touching the store
var validateCmd = &cobra.Command{
	Use:   "validate <file.csv>",
	Short: "Validate a candidate views file",
	Long: `Checks every row of a views file against the schema and the
configured view scale. All violations are listed; the command fails
when there is at least one.

Example:
  go run ./cmd/painel validate novos.csv
  go run ./cmd/painel validate novos.csv --scale extended`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := quietBootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		batch, err := tabular.ReadViewsFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		records, err := a.validator.Validate(batch)
		if err != nil {
			return reportViolations(cmd.OutOrStdout(), err)
		}

		PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d rows valid (scale %s)", len(records), a.scale.Name()))
		return nil
	},
}

// importCmd appends a candidate file to the source of record
var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Append a views file to the store",
	Long: `Validates a views file and appends it to the configured backend as
one batch. Any invalid row rejects the whole file.

Example:
  go run ./cmd/painel import novos.csv
  go run ./cmd/painel import novos.csv --backend postgres`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := tabular.ReadViewsFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		a, err := quietBootstrap(cmd.Context(), importDryRun)
		if err != nil {
			return err
		}
		defer a.Close()

		if importDryRun {
			if _, err := a.validator.Validate(batch); err != nil {
				return reportViolations(cmd.OutOrStdout(), err)
			}
			PrintInfo(cmd.OutOrStdout(), fmt.Sprintf("dry run: %d rows would be appended", len(batch)))
			return nil
		}

		records, err := a.store.AppendRaw(cmd.Context(), batch)
		if err != nil {
			return reportViolations(cmd.OutOrStdout(), err)
		}

		PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d rows appended to %s (%d total)", len(records), a.store.Backend(), a.store.Len()))
		return nil
	},
}

// exportCmd writes the matching records in the tabular schema
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export records as CSV",
	Long: `Writes the records matching the filters in the views file layout.
The output can be imported again without changes.

Example:
  go run ./cmd/painel export --asset-class "Ações" --out acoes.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := quietBootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		records, _ := a.dashboard.Records(exportFlags.query())

		var w io.Writer = cmd.OutOrStdout()
		if exportOut != "" {
			f, err := os.Create(exportOut)
			if err != nil {
				return fmt.Errorf("create %s: %w", exportOut, err)
			}
			defer f.Close()
			w = f
		}

		if err := tabular.WriteViews(w, records); err != nil {
			return fmt.Errorf("write export: %w", err)
		}

		if exportOut != "" {
			PrintSuccess(cmd.OutOrStdout(), fmt.Sprintf("%d records written to %s", len(records), exportOut))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd, importCmd, exportCmd)

	importCmd.Flags().BoolVar(&importDryRun, "dry-run", false, "validate only")

	exportCmd.Flags().StringVar(&exportFlags.assetClass, "asset-class", "", "asset class filter (classe_ativo)")
	exportCmd.Flags().StringSliceVar(&exportFlags.managers, "manager", nil, "manager filter")
	exportCmd.Flags().StringSliceVar(&exportFlags.subclasses, "subclass", nil, "subclass filter")
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file (default stdout)")
}

// reportViolations prints every field error of a rejected batch
func reportViolations(w io.Writer, err error) error {
	var batchErr *contracts.BatchError
	if !errors.As(err, &batchErr) {
		return err
	}

	PrintError(w, fmt.Sprintf("%d violations in %d rows, batch rejected", len(batchErr.Errors), len(batchErr.Rows())))
	rows := make([][]string, 0, len(batchErr.Errors))
	for _, fe := range batchErr.Errors {
		line := fe.Line
		if line == 0 {
			line = fe.Row + 2 // the header is line 1
		}
		rows = append(rows, []string{strconv.Itoa(line), fe.Field, fe.Reason})
	}
	PrintTable(w, []string{"Linha", "Campo", "Motivo"}, rows)

	return fmt.Errorf("schema violation: %d errors", len(batchErr.Errors))
}
