package validate

import (
	"fmt"
	"strings"
	"time"

	"github.com/wonny/marketviews/internal/contracts"
	"github.com/wonny/marketviews/internal/viewscale"
)

// Column names reported in field errors, matching the tabular schema
const (
	ColReferenceDate = "data_referencia"
	ColManager       = "gestora"
	ColAssetClass    = "classe_ativo"
	ColAssetSubclass = "sub_classe_ativo"
	ColView          = "visao"
)

// Accepted reference date layouts, tried in order.
// Slash dates are day-first (pt-BR source files).
var dateLayouts = []string{
	contracts.DateLayout,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"02/01/2006",
	"2006/01/02",
}

// Validator checks candidate batches against the ViewRecord schema
// ⭐ SSOT: nothing enters the store without passing through here
type Validator struct {
	scale *viewscale.Scale
}

// New creates a validator bound to a view scale
func New(scale *viewscale.Scale) *Validator {
	return &Validator{scale: scale}
}

// Scale returns the scale used for membership checks
func (v *Validator) Scale() *viewscale.Scale {
	return v.scale
}

// Validate parses a raw batch. It returns either every record typed, or a
// *contracts.BatchError listing every violation in the batch.
func (v *Validator) Validate(batch []contracts.RawRecord) ([]contracts.ViewRecord, error) {
	records := make([]contracts.ViewRecord, 0, len(batch))
	var errs []contracts.FieldError

	for i, raw := range batch {
		rec, rowErrs := v.parseRow(i, raw)
		if len(rowErrs) > 0 {
			for _, fe := range rowErrs {
				fe.Line = raw.Line
				errs = append(errs, fe)
			}
			continue
		}
		records = append(records, rec)
	}

	if len(errs) > 0 {
		return nil, &contracts.BatchError{Errors: errs}
	}
	return records, nil
}

// ValidateRecords checks already-typed records before an append and returns
// them normalized the same way Validate normalizes raw rows.
func (v *Validator) ValidateRecords(records []contracts.ViewRecord) ([]contracts.ViewRecord, error) {
	out := make([]contracts.ViewRecord, 0, len(records))
	var errs []contracts.FieldError

	for i, rec := range records {
		rec = normalize(rec)

		if rec.Manager == "" {
			errs = append(errs, required(i, ColManager))
		}
		if rec.AssetSubclass == "" {
			errs = append(errs, required(i, ColAssetSubclass))
		}
		if rec.View == "" {
			errs = append(errs, required(i, ColView))
		} else if !v.scale.Contains(rec.View) {
			errs = append(errs, v.notInScale(i, string(rec.View)))
		}
		if rec.ReferenceDate.IsZero() {
			errs = append(errs, required(i, ColReferenceDate))
		}
		out = append(out, rec)
	}

	if len(errs) > 0 {
		return nil, &contracts.BatchError{Errors: errs}
	}
	return out, nil
}

// normalize trims every text field and truncates the date to a UTC calendar day
func normalize(rec contracts.ViewRecord) contracts.ViewRecord {
	rec.Manager = strings.TrimSpace(rec.Manager)
	rec.AssetClass = strings.TrimSpace(rec.AssetClass)
	rec.AssetSubclass = strings.TrimSpace(rec.AssetSubclass)
	rec.View = contracts.View(strings.TrimSpace(string(rec.View)))
	rec.ThesisSummary = strings.TrimSpace(rec.ThesisSummary)
	rec.JustificationQuote = strings.TrimSpace(rec.JustificationQuote)
	if !rec.ReferenceDate.IsZero() {
		y, m, d := rec.ReferenceDate.Date()
		rec.ReferenceDate = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return rec
}

// parseRow runs the checks in order: required fields, enumeration, date
func (v *Validator) parseRow(row int, raw contracts.RawRecord) (contracts.ViewRecord, []contracts.FieldError) {
	var errs []contracts.FieldError

	manager := strings.TrimSpace(raw.Manager)
	subclass := strings.TrimSpace(raw.AssetSubclass)
	label := strings.TrimSpace(raw.View)
	dateStr := strings.TrimSpace(raw.ReferenceDate)

	if manager == "" {
		errs = append(errs, required(row, ColManager))
	}
	if subclass == "" {
		errs = append(errs, required(row, ColAssetSubclass))
	}
	if label == "" {
		errs = append(errs, required(row, ColView))
	}
	if dateStr == "" {
		errs = append(errs, required(row, ColReferenceDate))
	}

	view := contracts.View(label)
	if label != "" && !v.scale.Contains(view) {
		errs = append(errs, v.notInScale(row, label))
	}

	var date time.Time
	if dateStr != "" {
		d, err := ParseDate(dateStr)
		if err != nil {
			errs = append(errs, contracts.FieldError{Row: row, Field: ColReferenceDate, Reason: err.Error()})
		}
		date = d
	}

	if len(errs) > 0 {
		return contracts.ViewRecord{}, errs
	}

	return contracts.ViewRecord{
		ReferenceDate:      date,
		Manager:            manager,
		AssetClass:         strings.TrimSpace(raw.AssetClass),
		AssetSubclass:      subclass,
		View:               view,
		ThesisSummary:      strings.TrimSpace(raw.ThesisSummary),
		JustificationQuote: strings.TrimSpace(raw.JustificationQuote),
	}, nil
}

func (v *Validator) notInScale(row int, label string) contracts.FieldError {
	return contracts.FieldError{
		Row:    row,
		Field:  ColView,
		Reason: fmt.Sprintf("%q is not one of [%s]", label, strings.Join(v.scale.Labels(), ", ")),
	}
}

func required(row int, field string) contracts.FieldError {
	return contracts.FieldError{Row: row, Field: field, Reason: "required"}
}

// ParseDate parses a reference date into a UTC calendar date
func ParseDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid date %q (expected YYYY-MM-DD or DD/MM/YYYY)", s)
}
