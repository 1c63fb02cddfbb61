package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/marketviews/internal/extraction"
	"github.com/wonny/marketviews/internal/review"
)

var (
	extractManager string
	extractOut     string
	extractApprove bool
)

// extractCmd reads a report and prints the candidate records the model found
var extractCmd = &cobra.Command{
	Use:   "extract <report.pdf|report.html|report.txt>",
	Short: "Extract candidate views from a report",
	Long: `Reads a manager report (PDF, HTML or plain text), asks the
configured model for structured views and validates the candidates.
Nothing is written to the store unless --approve is given.

Requires GEMINI_API_KEY.

Example:
  go run ./cmd/painel extract relatorio.pdf --manager XP
  go run ./cmd/painel extract relatorio.pdf --manager XP --out candidatos.csv
  go run ./cmd/painel extract relatorio.pdf --manager XP --approve`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringVar(&extractManager, "manager", "", "manager that published the report (required)")
	extractCmd.Flags().StringVarP(&extractOut, "out", "o", "", "write the validated candidates to a CSV file")
	extractCmd.Flags().BoolVar(&extractApprove, "approve", false, "append the candidates to the store when valid")
	_ = extractCmd.MarkFlagRequired("manager")
}

func runExtract(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	path := args[0]

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read report: %w", err)
	}

	kind := extraction.DetectKind(path, "")
	text, err := extraction.ReadText(kind, data)
	if err != nil {
		return fmt.Errorf("read %s text: %w", kind, err)
	}

	a, err := quietBootstrap(cmd.Context(), !extractApprove)
	if err != nil {
		return err
	}
	defer a.Close()

	if a.extractor == nil {
		return errors.New("extraction is not configured: set GEMINI_API_KEY")
	}

	PrintHeader(out, "Extraction",
		[2]string{"Report", filepath.Base(path)},
		[2]string{"Manager", extractManager},
		[2]string{"Model", a.cfg.Gemini.Model},
	)

	result, err := a.extractor.Extract(cmd.Context(), extraction.Request{
		Manager: strings.TrimSpace(extractManager),
		Text:    text,
		Today:   time.Now(),
	})
	if err != nil {
		var upstream *extraction.UpstreamError
		if errors.As(err, &upstream) && upstream.Raw != "" {
			PrintError(out, "Model output could not be used, raw output follows")
			fmt.Fprintln(out, upstream.Raw)
		}
		return err
	}

	batch := a.queue.Submit(result.Manager, filepath.Base(path), result.Candidates, result.Raw)
	printCandidates(out, batch)

	if !batch.Valid() {
		return fmt.Errorf("schema violation: %d errors in candidates", len(batch.Errors))
	}

	if extractOut != "" {
		f, err := os.Create(extractOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", extractOut, err)
		}
		defer f.Close()

		if err := a.queue.Export(batch.ID, f, true); err != nil {
			return fmt.Errorf("export candidates: %w", err)
		}
		PrintSuccess(out, fmt.Sprintf("%d candidates written to %s", len(batch.Candidates), extractOut))
	}

	if extractApprove {
		approved, err := a.queue.Approve(cmd.Context(), batch.ID)
		if err != nil {
			return err
		}
		PrintSuccess(out, fmt.Sprintf("%d records appended to %s", approved.Appended, a.store.Backend()))
	}

	return nil
}

func printCandidates(w io.Writer, batch *review.Batch) {
	rows := make([][]string, 0, len(batch.Candidates))
	for i, c := range batch.Candidates {
		rows = append(rows, []string{
			strconv.Itoa(i),
			c.ReferenceDate,
			c.AssetClass,
			c.AssetSubclass,
			c.View,
			orDash(c.ThesisSummary),
		})
	}
	PrintTable(w, []string{"#", "Data", "Classe", "Subclasse", "Visão", "Tese"}, rows)

	if batch.Valid() {
		PrintSuccess(w, fmt.Sprintf("%d candidates valid", len(batch.Candidates)))
		return
	}

	PrintError(w, fmt.Sprintf("%d violations", len(batch.Errors)))
	for _, fe := range batch.Errors {
		fmt.Fprintf(w, "   • #%d %s: %s\n", fe.Row, fe.Field, fe.Reason)
	}
}
