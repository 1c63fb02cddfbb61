package commands

import (
	"github.com/spf13/cobra"

	"github.com/wonny/marketviews/internal/contracts"
)

var hubJSON bool

// hubCmd prints the macro KPI and risk/opportunity tables
var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Macro KPIs, risks and opportunities",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := quietBootstrap(cmd.Context(), true)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		if hubJSON {
			return PrintJSON(out, map[string]interface{}{
				"kpis":          a.hub.KPIs(),
				"risks":         a.hub.Risks(),
				"opportunities": a.hub.Opportunities(),
			})
		}

		PrintHeader(out, "KPIs")
		kpis := a.hub.KPIs()
		rows := make([][]string, 0, len(kpis))
		for _, k := range kpis {
			rows = append(rows, []string{k.Name, k.Value})
		}
		PrintTable(out, []string{"Indicador", "Valor"}, rows)

		PrintHeader(out, "Riscos")
		printSignals(cmd, a.hub.Risks())

		PrintHeader(out, "Oportunidades")
		printSignals(cmd, a.hub.Opportunities())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(hubCmd)
	hubCmd.Flags().BoolVar(&hubJSON, "json", false, "print JSON instead of tables")
}

func printSignals(cmd *cobra.Command, signals []contracts.Signal) {
	rows := make([][]string, 0, len(signals))
	for _, s := range signals {
		rows = append(rows, []string{s.Score.StringFixed(1), s.Topic, orDash(s.Description)})
	}
	PrintTable(cmd.OutOrStdout(), []string{"Score", "Tema", "Descrição"}, rows)
}
