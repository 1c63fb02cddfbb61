package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/internal/dashboard"
)

const viewsHeader = "data_referencia,gestora,classe_ativo,sub_classe_ativo,visao,resumo_tese\n"

func setupEnv(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("ENV", "development")
	t.Setenv("STORE_BACKEND", "csv")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("KPI_FILE", filepath.Join(dir, "kpis.csv"))
	t.Setenv("SIGNALS_FILE", filepath.Join(dir, "signals.csv"))
	return dir
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return buf.String(), err
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, []string{"Classe", "Visão"}, [][]string{
		{"Ações", "Overweight"},
		{"Renda Fixa", "Neutral"},
	})

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Classe      Visão", lines[0])
	assert.Equal(t, "Ações       Overweight", lines[2])
	assert.Equal(t, "Renda Fixa  Neutral", lines[3])
}

func TestValidateCommand(t *testing.T) {
	dir := setupEnv(t)

	valid := filepath.Join(dir, "valid.csv")
	writeFile(t, valid, viewsHeader+
		"2024-01-10,XP,Ações,Brasil,Overweight,Juros\n"+
		"10/02/2024,XP,Ações,EUA,Neutral,Lucros\n")

	out, err := execute(t, "--file", filepath.Join(dir, "dados.csv"), "validate", valid)
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows valid")

	invalid := filepath.Join(dir, "invalid.csv")
	writeFile(t, invalid, viewsHeader+
		"2024-01-10,XP,Ações,Brasil,Overweight,Juros\n"+
		"2024-01-10,,Ações,EUA,Bullish,Lucros\n")

	out, err = execute(t, "--file", filepath.Join(dir, "dados.csv"), "validate", invalid)
	require.Error(t, err)
	assert.Contains(t, out, "visao")
	assert.Contains(t, out, "gestora")
}

func TestImportThenConsensus(t *testing.T) {
	dir := setupEnv(t)
	store := filepath.Join(dir, "dados.csv")

	batch := filepath.Join(dir, "novos.csv")
	writeFile(t, batch, viewsHeader+
		"2024-01-10,BlackRock,Ações,EUA,Overweight,Tese A\n"+
		"2024-02-15,BlackRock,Ações,EUA,Underweight,Tese B\n"+
		"2024-02-01,JPMorgan,Ações,EUA,Underweight,Tese C\n")

	out, err := execute(t, "--file", store, "import", batch)
	require.NoError(t, err)
	assert.Contains(t, out, "3 rows appended")

	out, err = execute(t, "--file", store, "consensus", "--json")
	require.NoError(t, err)

	var result dashboard.ConsensusResult
	require.NoError(t, json.Unmarshal([]byte(out), &result), out)
	require.Len(t, result.Entries, 1)
	assert.Equal(t, "Underweight", string(result.Entries[0].View))
	assert.Equal(t, 2, result.Entries[0].Votes)

	// An invalid batch leaves the file untouched
	bad := filepath.Join(dir, "ruim.csv")
	writeFile(t, bad, viewsHeader+"2024-03-01,XP,Ações,EUA,Bullish,Tese\n")

	before, err := os.ReadFile(store)
	require.NoError(t, err)

	_, err = execute(t, "--file", store, "import", bad)
	require.Error(t, err)

	after, err := os.ReadFile(store)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestExtractRequiresModel(t *testing.T) {
	dir := setupEnv(t)

	report := filepath.Join(dir, "relatorio.txt")
	writeFile(t, report, "Estamos overweight em bolsa americana.")

	_, err := execute(t, "--file", filepath.Join(dir, "dados.csv"), "extract", report, "--manager", "XP")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}
