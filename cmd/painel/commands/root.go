package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	viewsFile    string
	storeBackend string
	scaleName    string
	verbose      bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "painel",
	Short: "Painel de visões de mercado",
	Long: `Painel de visões de mercado

Consolidates the tactical views (Overweight, Neutral, Underweight...)
published by asset managers into consensus tables, heatmaps and
per-subclass trajectories.

Usage:
  go run ./cmd/painel [command]

Examples:
  go run ./cmd/painel api
  go run ./cmd/painel consensus --asset-class "Ações"
  go run ./cmd/painel heatmap --layout manager
  go run ./cmd/painel trajectory EUA --manager BlackRock
  go run ./cmd/painel validate novos.csv
  go run ./cmd/painel extract relatorio.pdf --manager XP`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags override the matching environment settings
	rootCmd.PersistentFlags().StringVar(&viewsFile, "file", "", "views file for the csv backend (default $VIEWS_FILE)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "backend", "", "store backend: csv|postgres|memory (default $STORE_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&scaleName, "scale", "", "view scale: canonical|extended (default $SCALE)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
