// Package recency selects the current observation per key.
package recency

import (
	"sort"

	"github.com/wonny/marketviews/internal/contracts"
)

// KeyFields selects the grouping key
type KeyFields int

const (
	// ByManagerSubclass groups by (manager, asset_subclass)
	ByManagerSubclass KeyFields = iota
	// BySubclass groups by asset_subclass alone; the caller holds the manager fixed
	BySubclass
)

// Key identifies one group. Manager is empty for BySubclass.
type Key struct {
	Manager       string
	AssetSubclass string
}

func keyOf(rec contracts.ViewRecord, fields KeyFields) Key {
	if fields == BySubclass {
		return Key{AssetSubclass: rec.AssetSubclass}
	}
	return Key{Manager: rec.Manager, AssetSubclass: rec.AssetSubclass}
}

// LatestPerKey returns the record with the maximum reference date per key.
// records must be in insertion order: on equal dates the later record wins.
// ⭐ SSOT: the only latest-wins rule in the system
func LatestPerKey(records []contracts.ViewRecord, fields KeyFields) map[Key]contracts.ViewRecord {
	latest := make(map[Key]contracts.ViewRecord)
	for _, rec := range records {
		k := keyOf(rec, fields)
		cur, ok := latest[k]
		if !ok || !rec.ReferenceDate.Before(cur.ReferenceDate) {
			latest[k] = rec
		}
	}
	return latest
}

// CurrentViews returns the latest view of one manager per subclass
func CurrentViews(records []contracts.ViewRecord, manager string) map[string]contracts.ViewRecord {
	own := make([]contracts.ViewRecord, 0)
	for _, rec := range records {
		if rec.Manager == manager {
			own = append(own, rec)
		}
	}

	out := make(map[string]contracts.ViewRecord)
	for k, rec := range LatestPerKey(own, BySubclass) {
		out[k.AssetSubclass] = rec
	}
	return out
}

// Sorted flattens a latest map ordered by subclass, then manager
func Sorted(latest map[Key]contracts.ViewRecord) []contracts.ViewRecord {
	out := make([]contracts.ViewRecord, 0, len(latest))
	for _, rec := range latest {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AssetSubclass != out[j].AssetSubclass {
			return out[i].AssetSubclass < out[j].AssetSubclass
		}
		return out[i].Manager < out[j].Manager
	})
	return out
}
