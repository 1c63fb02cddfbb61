package heatmap

import (
	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/recency"
	"github.com/wonny/marketviews/internal/viewscale"
)

// Matrix is a dense subclass × manager grid of latest views.
// Labels and Ordinals are index-aligned: [i][j] is (Rows[i], Columns[j]).
type Matrix struct {
	Rows     []string           `json:"rows"`
	Columns  []string           `json:"columns"`
	Labels   [][]contracts.View `json:"labels"`
	Ordinals [][]int            `json:"ordinals"`
}

// Build projects latest entries into a total grid. Rows are the observed
// subclasses and columns the observed managers, both sorted; absent pairs
// hold ViewNA with ordinal 0.
func Build(latest map[recency.Key]contracts.ViewRecord, scale *viewscale.Scale) *Matrix {
	rowSet := make(map[string]bool)
	colSet := make(map[string]bool)
	cells := make(map[[2]string]contracts.View, len(latest))

	for _, rec := range latest {
		rowSet[rec.AssetSubclass] = true
		colSet[rec.Manager] = true
		cells[[2]string{rec.AssetSubclass, rec.Manager}] = rec.View
	}

	m := &Matrix{
		Rows:    sortedKeys(rowSet),
		Columns: sortedKeys(colSet),
	}
	m.Labels = make([][]contracts.View, len(m.Rows))
	m.Ordinals = make([][]int, len(m.Rows))

	for i, row := range m.Rows {
		m.Labels[i] = make([]contracts.View, len(m.Columns))
		m.Ordinals[i] = make([]int, len(m.Columns))
		for j, col := range m.Columns {
			view, ok := cells[[2]string{row, col}]
			if !ok {
				view = contracts.ViewNA
			}
			m.Labels[i][j] = view
			m.Ordinals[i][j] = scale.Rank(view)
		}
	}

	return m
}

// Cell returns the label and ordinal at (row, column)
func (m *Matrix) Cell(row, column string) (contracts.View, int, bool) {
	i := indexOf(m.Rows, row)
	j := indexOf(m.Columns, column)
	if i < 0 || j < 0 {
		return "", 0, false
	}
	return m.Labels[i][j], m.Ordinals[i][j], true
}

// Transpose returns the manager × subclass layout
func (m *Matrix) Transpose() *Matrix {
	t := &Matrix{
		Rows:     append([]string(nil), m.Columns...),
		Columns:  append([]string(nil), m.Rows...),
		Labels:   make([][]contracts.View, len(m.Columns)),
		Ordinals: make([][]int, len(m.Columns)),
	}
	for j := range m.Columns {
		t.Labels[j] = make([]contracts.View, len(m.Rows))
		t.Ordinals[j] = make([]int, len(m.Rows))
		for i := range m.Rows {
			t.Labels[j][i] = m.Labels[i][j]
			t.Ordinals[j][i] = m.Ordinals[i][j]
		}
	}
	return t
}

// Empty reports whether the grid has no cells
func (m *Matrix) Empty() bool {
	return len(m.Rows) == 0 || len(m.Columns) == 0
}
