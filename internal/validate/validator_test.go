package validate

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/viewscale"
)

func validRaw() contracts.RawRecord {
	return contracts.RawRecord{
		ReferenceDate: "2024-01-10",
		Manager:       "BlackRock",
		AssetClass:    "Ações",
		AssetSubclass: "EUA",
		View:          "Overweight",
		ThesisSummary: "Earnings momentum",
	}
}

func TestValidate_ValidBatch(t *testing.T) {
	v := New(viewscale.Canonical)

	second := validRaw()
	second.ReferenceDate = "15/02/2024"
	second.View = "Underweight"
	second.JustificationQuote = "  we cut exposure  "

	records, err := v.Validate([]contracts.RawRecord{validRaw(), second})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), records[0].ReferenceDate)
	assert.Equal(t, contracts.Overweight, records[0].View)
	assert.Equal(t, "Ações", records[0].AssetClass)

	assert.Equal(t, time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC), records[1].ReferenceDate)
	assert.Equal(t, "we cut exposure", records[1].JustificationQuote)
}

func TestValidate_EmptyBatch(t *testing.T) {
	records, err := New(viewscale.Canonical).Validate(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestValidate_RejectsUnknownViewAndListsOtherViolations(t *testing.T) {
	v := New(viewscale.Canonical)

	bullish := validRaw()
	bullish.View = "Bullish"

	missing := validRaw()
	missing.Manager = ""
	missing.ReferenceDate = "2024-13-45"

	records, err := v.Validate([]contracts.RawRecord{validRaw(), bullish, missing})
	assert.Nil(t, records, "batch must be rejected as a whole")

	var batchErr *contracts.BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Errors, 3)

	assert.Equal(t, 1, batchErr.Errors[0].Row)
	assert.Equal(t, ColView, batchErr.Errors[0].Field)
	assert.Contains(t, batchErr.Errors[0].Reason, "Bullish")

	assert.Equal(t, contracts.FieldError{Row: 2, Field: ColManager, Reason: "required"}, batchErr.Errors[1])
	assert.Equal(t, 2, batchErr.Errors[2].Row)
	assert.Equal(t, ColReferenceDate, batchErr.Errors[2].Field)

	assert.Equal(t, []int{1, 2}, batchErr.Rows())
}

func TestValidate_ViewMatchIsExact(t *testing.T) {
	v := New(viewscale.Canonical)

	tests := []struct {
		name  string
		label string
		ok    bool
	}{
		{"exact", "Neutral", true},
		{"surrounding spaces trimmed", " Neutral ", true},
		{"lower case", "neutral", false},
		{"typo", "Overwieght", false},
		{"extended label on canonical scale", "Strong Overweight", false},
		{"sentinel", "N/A", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := validRaw()
			raw.View = tt.label
			_, err := v.Validate([]contracts.RawRecord{raw})
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	v := New(viewscale.Canonical)

	_, err := v.Validate([]contracts.RawRecord{{AssetClass: "Renda Fixa"}})

	var batchErr *contracts.BatchError
	require.True(t, errors.As(err, &batchErr))

	fields := make([]string, 0, len(batchErr.Errors))
	for _, fe := range batchErr.Errors {
		fields = append(fields, fe.Field)
		assert.Equal(t, "required", fe.Reason)
	}
	assert.Equal(t, []string{ColManager, ColAssetSubclass, ColView, ColReferenceDate}, fields)
}

func TestValidate_ExtendedScale(t *testing.T) {
	raw := validRaw()
	raw.View = "Strong Overweight"

	records, err := New(viewscale.Extended).Validate([]contracts.RawRecord{raw})
	require.NoError(t, err)
	assert.Equal(t, contracts.StrongOverweight, records[0].View)
}

func TestValidateRecords(t *testing.T) {
	v := New(viewscale.Canonical)

	good := contracts.ViewRecord{
		ReferenceDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
		Manager:       "Itaú",
		AssetSubclass: "Brasil",
		View:          contracts.Neutral,
	}
	records, err := v.ValidateRecords([]contracts.ViewRecord{good})
	require.NoError(t, err)
	assert.Equal(t, []contracts.ViewRecord{good}, records)

	bad := good
	bad.View = "Bullish"
	bad.ReferenceDate = time.Time{}

	_, err = v.ValidateRecords([]contracts.ViewRecord{good, bad})
	var batchErr *contracts.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Len(t, batchErr.Errors, 2)
	assert.Equal(t, []int{1}, batchErr.Rows())
}

func TestValidateRecords_Normalizes(t *testing.T) {
	v := New(viewscale.Canonical)

	tests := []struct {
		name  string
		input contracts.ViewRecord
		want  contracts.ViewRecord
		field string
	}{
		{
			name: "padded text is trimmed",
			input: contracts.ViewRecord{
				ReferenceDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Manager:       " BlackRock",
				AssetClass:    "Ações ",
				AssetSubclass: " EUA ",
				View:          " Overweight ",
				ThesisSummary: " Tese ",
			},
			want: contracts.ViewRecord{
				ReferenceDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Manager:       "BlackRock",
				AssetClass:    "Ações",
				AssetSubclass: "EUA",
				View:          contracts.Overweight,
				ThesisSummary: "Tese",
			},
		},
		{
			name: "time of day is dropped",
			input: contracts.ViewRecord{
				ReferenceDate: time.Date(2024, 1, 10, 23, 15, 0, 0, time.FixedZone("BRT", -3*3600)),
				Manager:       "Itaú",
				AssetSubclass: "Brasil",
				View:          contracts.Neutral,
			},
			want: contracts.ViewRecord{
				ReferenceDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Manager:       "Itaú",
				AssetSubclass: "Brasil",
				View:          contracts.Neutral,
			},
		},
		{
			name: "blank manager is required",
			input: contracts.ViewRecord{
				ReferenceDate: time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
				Manager:       "   ",
				AssetSubclass: "Brasil",
				View:          contracts.Neutral,
			},
			field: ColManager,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records, err := v.ValidateRecords([]contracts.ViewRecord{tt.input})
			if tt.field != "" {
				var batchErr *contracts.BatchError
				require.True(t, errors.As(err, &batchErr))
				assert.Equal(t, tt.field, batchErr.Errors[0].Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []contracts.ViewRecord{tt.want}, records)
		})
	}
}

func TestValidate_ErrorsCarrySourceLine(t *testing.T) {
	raw := validRaw()
	raw.View = "Bullish"
	raw.Line = 7

	_, err := New(viewscale.Canonical).Validate([]contracts.RawRecord{raw})
	var batchErr *contracts.BatchError
	require.True(t, errors.As(err, &batchErr))
	require.Len(t, batchErr.Errors, 1)
	assert.Equal(t, 0, batchErr.Errors[0].Row)
	assert.Equal(t, 7, batchErr.Errors[0].Line)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		input   string
		wantErr bool
	}{
		{"2024-03-05", false},
		{"2024-03-05T14:30:00Z", false},
		{"2024-03-05 09:00:00", false},
		{"05/03/2024", false},
		{"2024/03/05", false},
		{"2024-02-30", true},
		{"March 5th", true},
		{"", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseDate(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}
