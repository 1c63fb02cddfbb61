package consensus

import (
	"sort"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/recency"
	"github.com/wonny/marketviews/internal/viewscale"
)

// Aggregator computes the mode view per subclass over latest entries
type Aggregator struct {
	scale *viewscale.Scale
}

// New creates an aggregator whose tie-break follows scale
func New(scale *viewscale.Scale) *Aggregator {
	return &Aggregator{scale: scale}
}

// Entry is one row of the consensus table
type Entry struct {
	AssetSubclass string         `json:"asset_subclass"`
	AssetClass    string         `json:"asset_class"`
	View          contracts.View `json:"view"`
	Ordinal       int            `json:"ordinal"`
	Votes         int            `json:"votes"`    // managers holding the consensus view
	Managers      int            `json:"managers"` // managers with a current view
	// Distribution counts managers per view, in scale order (lowest first)
	Distribution []ViewCount `json:"distribution"`
}

// ViewCount pairs a view with its frequency
type ViewCount struct {
	View  contracts.View `json:"view"`
	Count int            `json:"count"`
}

// Consensus returns subclass → mode view
func (a *Aggregator) Consensus(latest map[recency.Key]contracts.ViewRecord) map[string]contracts.View {
	out := make(map[string]contracts.View)
	for subclass, votes := range a.tally(latest) {
		out[subclass] = a.mode(votes)
	}
	return out
}

// ForSubclass returns the consensus of one subclass, or ViewNoData
func (a *Aggregator) ForSubclass(latest map[recency.Key]contracts.ViewRecord, subclass string) contracts.View {
	votes, ok := a.tally(latest)[subclass]
	if !ok {
		return contracts.ViewNoData
	}
	return a.mode(votes)
}

// Table returns one entry per subclass, sorted by subclass
func (a *Aggregator) Table(latest map[recency.Key]contracts.ViewRecord) []Entry {
	tallies := a.tally(latest)
	classes := assetClasses(latest)

	entries := make([]Entry, 0, len(tallies))
	for subclass, votes := range tallies {
		view := a.mode(votes)

		managers := 0
		for _, n := range votes {
			managers += n
		}

		dist := make([]ViewCount, 0, len(votes))
		for _, level := range a.scale.Levels() {
			if n := votes[level]; n > 0 {
				dist = append(dist, ViewCount{View: level, Count: n})
			}
		}

		entries = append(entries, Entry{
			AssetSubclass: subclass,
			AssetClass:    classes[subclass],
			View:          view,
			Ordinal:       a.scale.Rank(view),
			Votes:         votes[view],
			Managers:      managers,
			Distribution:  dist,
		})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].AssetSubclass < entries[j].AssetSubclass
	})
	return entries
}

func (a *Aggregator) tally(latest map[recency.Key]contracts.ViewRecord) map[string]map[contracts.View]int {
	out := make(map[string]map[contracts.View]int)
	for _, rec := range latest {
		votes, ok := out[rec.AssetSubclass]
		if !ok {
			votes = make(map[contracts.View]int)
			out[rec.AssetSubclass] = votes
		}
		votes[rec.View]++
	}
	return out
}

// mode picks the most frequent view; equal counts go to the higher rank.
// Map iteration order is irrelevant because the comparison is total.
func (a *Aggregator) mode(votes map[contracts.View]int) contracts.View {
	best := contracts.ViewNoData
	bestCount := 0
	for view, n := range votes {
		switch {
		case n > bestCount:
			best, bestCount = view, n
		case n == bestCount && a.outranks(view, best):
			best = view
		}
	}
	return best
}

// outranks orders by scale rank, then by label for views outside the scale
func (a *Aggregator) outranks(v, than contracts.View) bool {
	rv, rt := a.scale.Rank(v), a.scale.Rank(than)
	if rv != rt {
		return rv > rt
	}
	return v > than
}

// assetClasses returns the asset class of the most recent entry per subclass
func assetClasses(latest map[recency.Key]contracts.ViewRecord) map[string]string {
	newest := make(map[string]contracts.ViewRecord)
	for _, rec := range latest {
		cur, ok := newest[rec.AssetSubclass]
		if !ok || rec.ReferenceDate.After(cur.ReferenceDate) ||
			(rec.ReferenceDate.Equal(cur.ReferenceDate) && rec.AssetClass < cur.AssetClass) {
			newest[rec.AssetSubclass] = rec
		}
	}

	out := make(map[string]string, len(newest))
	for subclass, rec := range newest {
		out[subclass] = rec.AssetClass
	}
	return out
}
