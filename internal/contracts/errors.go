package contracts

import (
	"fmt"
	"strings"
)

// FieldError is one schema violation found in a candidate batch
type FieldError struct {
	Row    int    `json:"row"`            // 0-based index in the batch
	Line   int    `json:"line,omitempty"` // source file line, when read from one
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e FieldError) String() string {
	if e.Line > 0 {
		return fmt.Sprintf("row %d (line %d): %s: %s", e.Row, e.Line, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s: %s", e.Row, e.Field, e.Reason)
}

// BatchError rejects a whole batch and lists every violation in it
// ⭐ SSOT: schema violations are reported only through this type
type BatchError struct {
	Errors []FieldError `json:"errors"`
}

func (e *BatchError) Error() string {
	if len(e.Errors) == 0 {
		return "schema violation"
	}

	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fe.String())
	}
	return fmt.Sprintf("schema violation (%d): %s", len(e.Errors), strings.Join(parts, "; "))
}

// Rows returns the distinct row indexes with at least one violation
func (e *BatchError) Rows() []int {
	seen := make(map[int]bool)
	rows := make([]int, 0)
	for _, fe := range e.Errors {
		if !seen[fe.Row] {
			seen[fe.Row] = true
			rows = append(rows, fe.Row)
		}
	}
	return rows
}
