package contracts

import "github.com/shopspring/decimal"

// KPI is one macro indicator shown on the hub
type KPI struct {
	Name  string `json:"metric_name"`
	Value string `json:"value"`
	// Numeric is set when Value parses as a number
	Numeric decimal.NullDecimal `json:"numeric"`
}

// SignalType separates opportunities from risks
type SignalType string

const (
	SignalOpportunity SignalType = "Opportunity"
	SignalRisk        SignalType = "Risk"
)

// Signal is one risk or opportunity annotation
type Signal struct {
	Type        SignalType      `json:"type"`
	Topic       string          `json:"topic"`
	Description string          `json:"description"`
	Score       decimal.Decimal `json:"score"`
}
