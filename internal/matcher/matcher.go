// Package matcher provides the EM line item index and the field comparison
// used by the reconciler.
//
// A bill value matches when it equals any value collected from the EM rows
// of the same account and utility type. Comparison is exact: numbers compare
// by decimal value, so 125.0 equals 125 while 125.01 does not, and text
// compares by trimmed string. A number never equals text.
//
// Example usage:
//
//	index := matcher.NewLineItemIndex(items)
//	rows := index.GetByType("1001", "Water-Usage (CF)")
//	result := matcher.CompareField(billValue, rows, models.EMFieldUsage)
package matcher

import (
	"golang-em-checker/internal/models"
)

// Outcome is the verdict for one bill field of one account
type Outcome int

const (
	// OutcomeMatch means the bill value equals at least one EM value, or the
	// bill value is zero and has nothing to disagree with.
	OutcomeMatch Outcome = iota

	// OutcomeMismatch means EM rows exist but none carries the bill value
	OutcomeMismatch

	// OutcomeMissingInEM means the account has no EM rows of the utility type
	// while the bill reports a non-zero value
	OutcomeMissingInEM
)

// String returns the string representation of Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeMatch:
		return "MATCH"
	case OutcomeMismatch:
		return "MISMATCH"
	case OutcomeMissingInEM:
		return "MISSING_IN_EM"
	default:
		return "UNKNOWN"
	}
}

// MarshalText renders the outcome name in JSON and YAML documents
func (o Outcome) MarshalText() ([]byte, error) {
	return []byte(o.String()), nil
}

// IsDiscrepancy reports whether the outcome puts the account in error
func (o Outcome) IsDiscrepancy() bool {
	return o == OutcomeMismatch || o == OutcomeMissingInEM
}

// MatchResult is the comparison of one bill value against EM rows
type MatchResult struct {
	Outcome   Outcome
	BillValue models.Value
	EMValues  []models.Value
}

// CollectValues returns the field values of the rows, in row order
func CollectValues(rows []*models.EMLineItem, field models.EMField) []models.Value {
	values := make([]models.Value, 0, len(rows))
	for _, row := range rows {
		values = append(values, row.Value(field))
	}
	return values
}

// MatchAny reports whether the bill value equals any candidate
func MatchAny(bill models.Value, candidates []models.Value) bool {
	for _, candidate := range candidates {
		if bill.Equal(candidate) {
			return true
		}
	}
	return false
}

// CompareField checks a bill value against the EM rows of its utility type.
// A zero bill value never produces a discrepancy.
func CompareField(bill models.Value, rows []*models.EMLineItem, field models.EMField) MatchResult {
	result := MatchResult{BillValue: bill}

	if len(rows) == 0 {
		if bill.IsZero() {
			result.Outcome = OutcomeMatch
		} else {
			result.Outcome = OutcomeMissingInEM
		}
		return result
	}

	result.EMValues = CollectValues(rows, field)
	if MatchAny(bill, result.EMValues) || bill.IsZero() {
		result.Outcome = OutcomeMatch
	} else {
		result.Outcome = OutcomeMismatch
	}
	return result
}
