package tabular

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/validate"
	"github.com/wonny/marketviews/internal/viewscale"
)

const sampleCSV = `data_referencia,gestora,classe_ativo,sub_classe_ativo,visao,resumo_tese,frase_justificativa
2024-01-10,BlackRock,Ações,EUA,Overweight,Lucros resilientes,"Seguimos ""construtivos"""
2024-02-15,BlackRock,Ações,EUA,Underweight,Valuation esticado,
`

func TestReadViews(t *testing.T) {
	records, err := ReadViews(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, contracts.RawRecord{
		ReferenceDate:      "2024-01-10",
		Manager:            "BlackRock",
		AssetClass:         "Ações",
		AssetSubclass:      "EUA",
		View:               "Overweight",
		ThesisSummary:      "Lucros resilientes",
		JustificationQuote: `Seguimos "construtivos"`,
		Line:               2,
	}, records[0])
	assert.Equal(t, "", records[1].JustificationQuote)
}

func TestReadViews_HeaderOrderSemicolonAndBOM(t *testing.T) {
	input := "\ufeffgestora;visao;data_referencia;Sub_Classe_Ativo;classe_ativo;resumo_tese\n" +
		"JPMorgan;Neutral;05/03/2024;Japão;Ações;Yen fraco\n" +
		";;;;;\n"

	records, err := ReadViews(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 1, "blank rows are skipped")

	assert.Equal(t, "JPMorgan", records[0].Manager)
	assert.Equal(t, "Japão", records[0].AssetSubclass)
	assert.Equal(t, "05/03/2024", records[0].ReferenceDate)
	assert.Equal(t, "", records[0].JustificationQuote, "optional column absent")
}

func TestReadViews_MissingColumns(t *testing.T) {
	_, err := ReadViews(strings.NewReader("gestora,visao\nX,Neutral\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data_referencia")
	assert.Contains(t, err.Error(), "sub_classe_ativo")
}

func TestReadViews_Empty(t *testing.T) {
	records, err := ReadViews(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadViewsFile_Missing(t *testing.T) {
	_, err := ReadViewsFile(filepath.Join(t.TempDir(), "absent.csv"))
	assert.True(t, errors.Is(err, ErrMissingSource))
}

func TestWriteViews_ColumnOrder(t *testing.T) {
	rec := contracts.ViewRecord{
		ReferenceDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Manager:       "BlackRock",
		AssetClass:    "Ações",
		AssetSubclass: "EUA",
		View:          contracts.Overweight,
		ThesisSummary: "Tese, com vírgula",
	}

	var buf bytes.Buffer
	require.NoError(t, WriteViews(&buf, []contracts.ViewRecord{rec}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, strings.Join(ViewColumns, ","), lines[0])
	assert.Equal(t, `2024-01-10,BlackRock,Ações,EUA,Overweight,"Tese, com vírgula",`, lines[1])

	buf.Reset()
	require.NoError(t, AppendRows(&buf, []contracts.ViewRecord{rec}))
	assert.Equal(t, lines[1]+"\n", buf.String())
}

func TestExportRoundTrip(t *testing.T) {
	v := validate.New(viewscale.Canonical)

	raw, err := ReadViews(strings.NewReader(sampleCSV))
	require.NoError(t, err)
	original, err := v.Validate(raw)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteViews(&buf, original))

	reread, err := ReadViews(&buf)
	require.NoError(t, err)
	roundTripped, err := v.Validate(reread)
	require.NoError(t, err)

	assert.Equal(t, original, roundTripped)
}

func TestViewsTable_AppendKeepsLayout(t *testing.T) {
	input := "\ufeffgestora;visao;data_referencia;sub_classe_ativo;classe_ativo;resumo_tese\n" +
		"JPMorgan;Neutral;05/03/2024;Japão;Ações;Yen fraco\n"

	table, err := ReadViewsTable(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, ';', table.Comma())

	table.AppendViews([]contracts.ViewRecord{{
		ReferenceDate:      time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
		Manager:            "BlackRock",
		AssetClass:         "Ações",
		AssetSubclass:      "EUA",
		View:               contracts.Overweight,
		ThesisSummary:      "Tese",
		JustificationQuote: "Lucros; margens",
	}})
	assert.Equal(t, []string{"gestora", "visao", "data_referencia", "sub_classe_ativo", "classe_ativo", "resumo_tese", "frase_justificativa"}, table.Header())

	var buf bytes.Buffer
	require.NoError(t, table.Write(&buf))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "JPMorgan;Neutral;05/03/2024;Japão;Ações;Yen fraco;", lines[1])
	assert.Equal(t, `BlackRock;Overweight;2024-03-06;EUA;Ações;Tese;"Lucros; margens"`, lines[2])

	records, err := ReadViews(&buf)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-03-06", records[1].ReferenceDate)
	assert.Equal(t, "Lucros; margens", records[1].JustificationQuote)
}

func TestViewsTable_RecordsCarrySourceLine(t *testing.T) {
	input := "data_referencia,gestora,classe_ativo,sub_classe_ativo,visao,resumo_tese\n" +
		"\n" +
		"2024-01-10,BlackRock,Ações,EUA,Overweight,\"Tese\n em duas linhas\"\n" +
		",,,,,\n" +
		"2024-01-11,JPMorgan,Ações,EUA,Neutral,Tese\n"

	records, err := ReadViews(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, 3, records[0].Line)
	assert.Equal(t, 6, records[1].Line)
}

func TestNewViewsTable_ExportLayout(t *testing.T) {
	table, err := ReadViewsTable(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, ',', table.Comma())
	assert.Equal(t, ViewColumns, table.Header())
}
