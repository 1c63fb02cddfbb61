package consensus

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/recency"
	"github.com/wonny/marketviews/internal/viewscale"
)

func latestOf(subclass string, views ...contracts.View) map[recency.Key]contracts.ViewRecord {
	records := make([]contracts.ViewRecord, 0, len(views))
	for i, v := range views {
		records = append(records, contracts.ViewRecord{
			ReferenceDate: time.Date(2024, 1, 1+i, 0, 0, 0, 0, time.UTC),
			Manager:       fmt.Sprintf("M%d", i),
			AssetClass:    "Ações",
			AssetSubclass: subclass,
			View:          v,
		})
	}
	return recency.LatestPerKey(records, recency.ByManagerSubclass)
}

func TestConsensus_Mode(t *testing.T) {
	agg := New(viewscale.Canonical)

	tests := []struct {
		name  string
		views []contracts.View
		want  contracts.View
	}{
		{"majority", []contracts.View{contracts.Overweight, contracts.Overweight, contracts.Underweight}, contracts.Overweight},
		{"exact tie goes higher", []contracts.View{contracts.Overweight, contracts.Underweight}, contracts.Overweight},
		{"tie reversed input", []contracts.View{contracts.Underweight, contracts.Overweight}, contracts.Overweight},
		{"three-way tie", []contracts.View{contracts.Neutral, contracts.Underweight, contracts.Overweight}, contracts.Overweight},
		{"tie below top", []contracts.View{contracts.Neutral, contracts.Underweight}, contracts.Neutral},
		{"single", []contracts.View{contracts.Underweight}, contracts.Underweight},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			latest := latestOf("EUA", tt.views...)
			for i := 0; i < 20; i++ {
				assert.Equal(t, tt.want, agg.Consensus(latest)["EUA"])
			}
		})
	}
}

func TestConsensus_ExtendedScaleTie(t *testing.T) {
	agg := New(viewscale.Extended)
	latest := latestOf("Crédito", contracts.StrongOverweight, contracts.Overweight)

	assert.Equal(t, contracts.StrongOverweight, agg.ForSubclass(latest, "Crédito"))
}

func TestConsensus_Empty(t *testing.T) {
	agg := New(viewscale.Canonical)

	assert.Empty(t, agg.Consensus(nil))
	assert.Empty(t, agg.Table(nil))
	assert.Equal(t, contracts.ViewNoData, agg.ForSubclass(nil, "EUA"))
}

func TestConsensus_ForSubclassUnknown(t *testing.T) {
	agg := New(viewscale.Canonical)
	latest := latestOf("EUA", contracts.Neutral)

	assert.Equal(t, contracts.ViewNoData, agg.ForSubclass(latest, "Japão"))
	assert.True(t, agg.ForSubclass(latest, "Japão").IsSentinel())
}

func TestConsensus_UsesLatestOnly(t *testing.T) {
	records := []contracts.ViewRecord{
		{ReferenceDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Manager: "A", AssetSubclass: "EUA", View: contracts.Underweight},
		{ReferenceDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Manager: "B", AssetSubclass: "EUA", View: contracts.Underweight},
		{ReferenceDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Manager: "A", AssetSubclass: "EUA", View: contracts.Overweight},
		{ReferenceDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Manager: "B", AssetSubclass: "EUA", View: contracts.Overweight},
		{ReferenceDate: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), Manager: "C", AssetSubclass: "EUA", View: contracts.Underweight},
	}

	latest := recency.LatestPerKey(records, recency.ByManagerSubclass)
	assert.Equal(t, contracts.Overweight, New(viewscale.Canonical).Consensus(latest)["EUA"])
}

func TestConsensus_Table(t *testing.T) {
	agg := New(viewscale.Canonical)

	latest := latestOf("EUA", contracts.Overweight, contracts.Overweight, contracts.Underweight)
	for k, v := range latestOf("Japão", contracts.Neutral) {
		k.Manager = "Z"
		latest[k] = v
	}

	table := agg.Table(latest)
	require.Len(t, table, 2)

	eua := table[0]
	assert.Equal(t, "EUA", eua.AssetSubclass)
	assert.Equal(t, "Ações", eua.AssetClass)
	assert.Equal(t, contracts.Overweight, eua.View)
	assert.Equal(t, 3, eua.Ordinal)
	assert.Equal(t, 2, eua.Votes)
	assert.Equal(t, 3, eua.Managers)
	assert.Equal(t, []ViewCount{
		{View: contracts.Underweight, Count: 1},
		{View: contracts.Overweight, Count: 2},
	}, eua.Distribution)

	assert.Equal(t, "Japão", table[1].AssetSubclass)
	assert.Equal(t, contracts.Neutral, table[1].View)
}
