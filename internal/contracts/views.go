package contracts

import "time"

// View is a categorical stance a manager holds on an asset subclass.
// Its ordering is not intrinsic: it comes from a viewscale.Scale.
type View string

// Canonical labels shared by the built-in scales
const (
	StrongUnderweight View = "Strong Underweight"
	Underweight       View = "Underweight"
	Neutral           View = "Neutral"
	Overweight        View = "Overweight"
	StrongOverweight  View = "Strong Overweight"
)

// Sentinels, never members of a scale
const (
	// ViewNA marks a heatmap cell with no observation (ordinal 0)
	ViewNA View = "N/A"
	// ViewNoData is the consensus of a subclass with no records
	ViewNoData View = "No Data"
)

// IsSentinel reports whether v is one of the reserved sentinel labels
func (v View) IsSentinel() bool {
	return v == ViewNA || v == ViewNoData
}

// ViewRecord is one validated observation
// ⭐ SSOT: the canonical record shape shared by store, projections and exports
type ViewRecord struct {
	ReferenceDate      time.Time `json:"reference_date"`
	Manager            string    `json:"manager"`
	AssetClass         string    `json:"asset_class"`
	AssetSubclass      string    `json:"asset_subclass"`
	View               View      `json:"view"`
	ThesisSummary      string    `json:"thesis_summary,omitempty"`
	JustificationQuote string    `json:"justification_quote,omitempty"`
}

// DateString returns the reference date in ISO format
func (r ViewRecord) DateString() string {
	return r.ReferenceDate.Format(DateLayout)
}

// DateLayout is the ISO calendar date layout used on every output surface
const DateLayout = "2006-01-02"

// RawRecord is an untrusted candidate as it arrives from a tabular file,
// an API client or the extraction model. JSON tags equal the column names.
type RawRecord struct {
	ReferenceDate      string `json:"data_referencia"`
	Manager            string `json:"gestora"`
	AssetClass         string `json:"classe_ativo"`
	AssetSubclass      string `json:"sub_classe_ativo"`
	View               string `json:"visao"`
	ThesisSummary      string `json:"resumo_tese"`
	JustificationQuote string `json:"frase_justificativa,omitempty"`

	// Line is the physical line in the source file, 0 when not read from one
	Line int `json:"-"`
}

// ToRaw renders a validated record back into its tabular shape
func (r ViewRecord) ToRaw() RawRecord {
	return RawRecord{
		ReferenceDate:      r.DateString(),
		Manager:            r.Manager,
		AssetClass:         r.AssetClass,
		AssetSubclass:      r.AssetSubclass,
		View:               string(r.View),
		ThesisSummary:      r.ThesisSummary,
		JustificationQuote: r.JustificationQuote,
	}
}

// Field names a ViewRecord attribute usable for distinct-value lookups
type Field string

const (
	FieldManager       Field = "manager"
	FieldAssetClass    Field = "asset_class"
	FieldAssetSubclass Field = "asset_subclass"
)

// Value returns the record's value for the given field
func (r ViewRecord) Value(f Field) string {
	switch f {
	case FieldManager:
		return r.Manager
	case FieldAssetClass:
		return r.AssetClass
	case FieldAssetSubclass:
		return r.AssetSubclass
	default:
		return ""
	}
}
