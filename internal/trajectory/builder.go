package trajectory

import (
	"sort"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/viewscale"
)

// Point is one observation on a trend line
type Point struct {
	Date          time.Time      `json:"date"`
	Manager       string         `json:"manager"`
	View          contracts.View `json:"view"`
	Ordinal       int            `json:"ordinal"`
	ThesisSummary string         `json:"thesis_summary,omitempty"`
}

// Series is the history of one manager
type Series struct {
	Manager string  `json:"manager"`
	Points  []Point `json:"points"`
}

// Builder produces time-ordered histories
type Builder struct {
	scale *viewscale.Scale
}

// New creates a builder projecting views through scale
func New(scale *viewscale.Scale) *Builder {
	return &Builder{scale: scale}
}

// Build returns every observation of subclass (and manager, when not empty)
// ordered by date, then manager. Same-date records of one manager keep
// insertion order. Superseded observations are kept.
func (b *Builder) Build(records []contracts.ViewRecord, subclass, manager string) []Point {
	points := make([]Point, 0)
	for _, rec := range records {
		if rec.AssetSubclass != subclass {
			continue
		}
		if manager != "" && rec.Manager != manager {
			continue
		}
		points = append(points, Point{
			Date:          rec.ReferenceDate,
			Manager:       rec.Manager,
			View:          rec.View,
			Ordinal:       b.scale.Rank(rec.View),
			ThesisSummary: rec.ThesisSummary,
		})
	}

	sort.SliceStable(points, func(i, j int) bool {
		if !points[i].Date.Equal(points[j].Date) {
			return points[i].Date.Before(points[j].Date)
		}
		return points[i].Manager < points[j].Manager
	})

	return points
}

// Split groups ordered points into one series per manager, sorted by manager
func Split(points []Point) []Series {
	index := make(map[string]int)
	series := make([]Series, 0)

	for _, p := range points {
		i, ok := index[p.Manager]
		if !ok {
			i = len(series)
			index[p.Manager] = i
			series = append(series, Series{Manager: p.Manager})
		}
		series[i].Points = append(series[i].Points, p)
	}

	sort.Slice(series, func(i, j int) bool {
		return series[i].Manager < series[j].Manager
	})
	return series
}
