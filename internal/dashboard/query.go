package dashboard

import (
	"net/url"
	"sort"
	"strings"

	"github.com/wonny/marketviews/internal/contracts"
)

// Query carries every filter explicitly; no component keeps selection state.
// Empty fields mean "no restriction".
type Query struct {
	AssetClass string   `json:"asset_class,omitempty"`
	Managers   []string `json:"managers,omitempty"`
	Subclasses []string `json:"subclasses,omitempty"`
}

// QueryFromValues reads asset_class, manager and subclass parameters.
// Repeated parameters and comma-separated lists are both accepted.
func QueryFromValues(v url.Values) Query {
	return Query{
		AssetClass: strings.TrimSpace(v.Get("asset_class")),
		Managers:   splitList(v["manager"]),
		Subclasses: splitList(v["subclass"]),
	}
}

// Match reports whether rec passes every filter
func (q Query) Match(rec contracts.ViewRecord) bool {
	if q.AssetClass != "" && rec.AssetClass != q.AssetClass {
		return false
	}
	if len(q.Managers) > 0 && !contains(q.Managers, rec.Manager) {
		return false
	}
	if len(q.Subclasses) > 0 && !contains(q.Subclasses, rec.AssetSubclass) {
		return false
	}
	return true
}

// Key is a canonical encoding used in cache keys
func (q Query) Key() string {
	managers := append([]string(nil), q.Managers...)
	subclasses := append([]string(nil), q.Subclasses...)
	sort.Strings(managers)
	sort.Strings(subclasses)

	v := url.Values{}
	if q.AssetClass != "" {
		v.Set("asset_class", q.AssetClass)
	}
	for _, m := range managers {
		v.Add("manager", m)
	}
	for _, s := range subclasses {
		v.Add("subclass", s)
	}
	return v.Encode()
}

func splitList(values []string) []string {
	var out []string
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func contains(values []string, v string) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
