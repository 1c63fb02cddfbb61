package tabular

import (
	"fmt"
	"io"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/wonny/marketviews/internal/contracts"
)

var kpiColumns = []string{"metric_name", "value"}

var signalColumns = []string{"type", "topic", "description", "score"}

// ReadKPIs parses the KPI table (metric_name, value)
func ReadKPIs(r io.Reader) ([]contracts.KPI, error) {
	t, err := readTable(r, kpiColumns, nil)
	if err != nil {
		return nil, err
	}

	kpis := make([]contracts.KPI, 0, len(t.rows))
	for i, row := range t.rows {
		get := cellGetter(row, t.index)

		name := strings.TrimSpace(get("metric_name"))
		if name == "" {
			return nil, fmt.Errorf("kpi row %d: metric_name is required", i)
		}

		value := strings.TrimSpace(get("value"))
		kpi := contracts.KPI{Name: name, Value: value}
		if d, err := parseDecimal(value); err == nil {
			kpi.Numeric = decimal.NullDecimal{Decimal: d, Valid: true}
		}
		kpis = append(kpis, kpi)
	}

	return kpis, nil
}

// ReadKPIsFile opens path and parses it; a missing file is ErrMissingSource
func ReadKPIsFile(path string) ([]contracts.KPI, error) {
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadKPIs(f)
}

// ReadSignals parses the risks/opportunities table (type, topic, description, score)
func ReadSignals(r io.Reader) ([]contracts.Signal, error) {
	t, err := readTable(r, signalColumns, nil)
	if err != nil {
		return nil, err
	}

	signals := make([]contracts.Signal, 0, len(t.rows))
	for i, row := range t.rows {
		get := cellGetter(row, t.index)

		typ := contracts.SignalType(strings.TrimSpace(get("type")))
		if typ != contracts.SignalOpportunity && typ != contracts.SignalRisk {
			return nil, fmt.Errorf("signal row %d: type %q must be Opportunity or Risk", i, typ)
		}

		score, err := parseDecimal(strings.TrimSpace(get("score")))
		if err != nil {
			return nil, fmt.Errorf("signal row %d: score: %w", i, err)
		}

		signals = append(signals, contracts.Signal{
			Type:        typ,
			Topic:       strings.TrimSpace(get("topic")),
			Description: strings.TrimSpace(get("description")),
			Score:       score,
		})
	}

	return signals, nil
}

// ReadSignalsFile opens path and parses it; a missing file is ErrMissingSource
func ReadSignalsFile(path string) ([]contracts.Signal, error) {
	f, err := openSource(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSignals(f)
}

// parseDecimal accepts "4.5", "4,5" and "4.5%"
func parseDecimal(s string) (decimal.Decimal, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if strings.Count(s, ",") == 1 && !strings.Contains(s, ".") {
		s = strings.Replace(s, ",", ".", 1)
	}
	return decimal.NewFromString(s)
}
