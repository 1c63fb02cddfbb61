package commands

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/dashboard"
	"github.com/wonny/marketviews/internal/heatmap"
)

// queryFlags are the dashboard filters shared by the projection commands
type queryFlags struct {
	assetClass string
	managers   []string
	subclasses []string
	asJSON     bool
}

func (f *queryFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.assetClass, "asset-class", "", "asset class filter (classe_ativo)")
	cmd.Flags().StringSliceVar(&f.managers, "manager", nil, "manager filter, repeatable or comma separated")
	cmd.Flags().StringSliceVar(&f.subclasses, "subclass", nil, "subclass filter, repeatable or comma separated")
	cmd.Flags().BoolVar(&f.asJSON, "json", false, "print JSON instead of a table")
}

func (f *queryFlags) query() dashboard.Query {
	return dashboard.Query{
		AssetClass: strings.TrimSpace(f.assetClass),
		Managers:   trimAll(f.managers),
		Subclasses: trimAll(f.subclasses),
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

var (
	consensusFlags  queryFlags
	heatmapFlags    queryFlags
	heatmapLayout   string
	trajectoryJSON  bool
	trajectoryOf    string
	managerViewsOpt queryFlags
)

// consensusCmd prints the consensus table
var consensusCmd = &cobra.Command{
	Use:   "consensus",
	Short: "Consensus view per subclass",
	Long: `Prints, for each asset subclass, the most common current view across
managers. Ties go to the stronger view of the configured scale.

Example:
  go run ./cmd/painel consensus --asset-class "Ações"
  go run ./cmd/painel consensus --manager BlackRock,JPMorgan --json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := quietBootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.dashboard.Consensus(cmd.Context(), consensusFlags.query())
		if consensusFlags.asJSON {
			return PrintJSON(cmd.OutOrStdout(), result)
		}
		printConsensus(cmd.OutOrStdout(), result)
		return nil
	},
}

// heatmapCmd prints the latest-view matrix
var heatmapCmd = &cobra.Command{
	Use:   "heatmap",
	Short: "Latest view of every manager per subclass",
	Long: `Prints the subclass x manager matrix of latest views. Empty cells
are N/A. Use --layout manager to put managers on the rows.

Example:
  go run ./cmd/painel heatmap --asset-class "Renda Fixa"
  go run ./cmd/painel heatmap --layout manager`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if heatmapLayout != "subclass" && heatmapLayout != "manager" {
			return fmt.Errorf("--layout must be 'subclass' or 'manager'")
		}

		a, err := quietBootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.dashboard.Heatmap(cmd.Context(), heatmapFlags.query(), heatmapLayout == "manager")
		if heatmapFlags.asJSON {
			return PrintJSON(cmd.OutOrStdout(), result)
		}
		printHeatmap(cmd.OutOrStdout(), result.Matrix, heatmapLayout)
		return nil
	},
}

// trajectoryCmd prints the history of one subclass
var trajectoryCmd = &cobra.Command{
	Use:   "trajectory <subclass>",
	Short: "History of views for one subclass",
	Long: `Prints every recorded view of a subclass ordered by reference date.
Superseded views are kept, so changes of stance are visible.

Example:
  go run ./cmd/painel trajectory EUA
  go run ./cmd/painel trajectory EUA --manager BlackRock`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := quietBootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		result := a.dashboard.Trajectory(cmd.Context(), strings.TrimSpace(args[0]), strings.TrimSpace(trajectoryOf))
		if trajectoryJSON {
			return PrintJSON(cmd.OutOrStdout(), result)
		}
		printTrajectory(cmd.OutOrStdout(), result)
		return nil
	},
}

// viewsCmd prints the current views of one manager
var viewsCmd = &cobra.Command{
	Use:   "views <manager>",
	Short: "Current views of one manager",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := quietBootstrap(cmd.Context(), false)
		if err != nil {
			return err
		}
		defer a.Close()

		q := managerViewsOpt.query()
		q.Managers = nil
		result := a.dashboard.CurrentViews(strings.TrimSpace(args[0]), q)
		if managerViewsOpt.asJSON {
			return PrintJSON(cmd.OutOrStdout(), result)
		}
		printManagerViews(cmd.OutOrStdout(), result)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(consensusCmd, heatmapCmd, trajectoryCmd, viewsCmd)

	consensusFlags.register(consensusCmd)

	heatmapFlags.register(heatmapCmd)
	heatmapCmd.Flags().StringVar(&heatmapLayout, "layout", "subclass", "rows: subclass|manager")

	trajectoryCmd.Flags().StringVar(&trajectoryOf, "manager", "", "restrict to one manager")
	trajectoryCmd.Flags().BoolVar(&trajectoryJSON, "json", false, "print JSON instead of a table")

	viewsCmd.Flags().StringVar(&managerViewsOpt.assetClass, "asset-class", "", "asset class filter (classe_ativo)")
	viewsCmd.Flags().BoolVar(&managerViewsOpt.asJSON, "json", false, "print JSON instead of a table")
}

func printConsensus(w io.Writer, result *dashboard.ConsensusResult) {
	PrintHeader(w, "Consensus", [2]string{"Records", strconv.Itoa(result.Meta.Records)})
	if len(result.Entries) == 0 {
		PrintInfo(w, "No data for the current filters")
		return
	}

	rows := make([][]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		dist := make([]string, 0, len(e.Distribution))
		for _, vc := range e.Distribution {
			dist = append(dist, fmt.Sprintf("%s=%d", vc.View, vc.Count))
		}
		rows = append(rows, []string{
			e.AssetClass,
			e.AssetSubclass,
			string(e.View),
			fmt.Sprintf("%d/%d", e.Votes, e.Managers),
			strings.Join(dist, " "),
		})
	}
	PrintTable(w, []string{"Classe", "Subclasse", "Consenso", "Votos", "Distribuição"}, rows)
}

func printHeatmap(w io.Writer, m *heatmap.Matrix, layout string) {
	PrintHeader(w, "Heatmap", [2]string{"Rows", layout})
	if m.Empty() {
		PrintInfo(w, "No data for the current filters")
		return
	}

	columns := append([]string{""}, m.Columns...)
	rows := make([][]string, 0, len(m.Rows))
	for i, row := range m.Rows {
		cells := []string{row}
		for j := range m.Columns {
			cells = append(cells, string(m.Labels[i][j]))
		}
		rows = append(rows, cells)
	}
	PrintTable(w, columns, rows)
}

func printTrajectory(w io.Writer, result *dashboard.TrajectoryResult) {
	PrintHeader(w, "Trajectory: "+result.AssetSubclass,
		[2]string{"Manager", orDash(result.Manager)},
		[2]string{"Points", strconv.Itoa(len(result.Points))},
	)
	if len(result.Points) == 0 {
		PrintInfo(w, "No data for the current filters")
		return
	}

	rows := make([][]string, 0, len(result.Points))
	for _, p := range result.Points {
		rows = append(rows, []string{
			p.Date.Format(contracts.DateLayout),
			p.Manager,
			string(p.View),
			strconv.Itoa(p.Ordinal),
			orDash(p.ThesisSummary),
		})
	}
	PrintTable(w, []string{"Data", "Gestora", "Visão", "Nível", "Tese"}, rows)
}

func printManagerViews(w io.Writer, result *dashboard.ManagerViews) {
	PrintHeader(w, "Current views: "+result.Manager)
	if len(result.Views) == 0 {
		PrintInfo(w, "No data for the current filters")
		return
	}

	rows := make([][]string, 0, len(result.Views))
	for _, rec := range result.Views {
		rows = append(rows, []string{
			rec.AssetClass,
			rec.AssetSubclass,
			string(rec.View),
			rec.DateString(),
			orDash(rec.ThesisSummary),
		})
	}
	PrintTable(w, []string{"Classe", "Subclasse", "Visão", "Data", "Tese"}, rows)
}
