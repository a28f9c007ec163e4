package matcher

import (
	"encoding/json"
	"testing"

	"golang-em-checker/internal/models"
)

func rows(values ...string) []*models.EMLineItem {
	items := make([]*models.EMLineItem, len(values))
	for i, v := range values {
		items[i] = models.NewEMLineItem("1001", "Water-Usage (CF)", v, "", i+2)
	}
	return items
}

func TestMatchAny(t *testing.T) {
	candidates := []models.Value{models.ParseValue("250"), models.ParseValue("n/a"), models.ParseValue("125.0")}

	tests := []struct {
		bill     string
		expected bool
	}{
		{"125", true},
		{"125.00", true},
		{"250", true},
		{"n/a", true},
		{"125.01", false},
		{"N/A", false},
		{"300", false},
	}

	for _, tt := range tests {
		t.Run(tt.bill, func(t *testing.T) {
			if got := MatchAny(models.ParseValue(tt.bill), candidates); got != tt.expected {
				t.Errorf("Expected MatchAny(%s) = %v, got %v", tt.bill, tt.expected, got)
			}
		})
	}

	if MatchAny(models.ParseValue("1"), nil) {
		t.Error("Expected no match against empty candidates")
	}
}

func TestCollectValues(t *testing.T) {
	items := []*models.EMLineItem{
		models.NewEMLineItem("1001", "Water-Usage (CF)", "50", "20.00", 2),
		models.NewEMLineItem("1001", "Water-Usage (CF)", "55", "", 3),
	}

	usage := CollectValues(items, models.EMFieldUsage)
	if models.FormatValues(usage) != "[50, 55]" {
		t.Errorf("Expected usage [50, 55], got %s", models.FormatValues(usage))
	}

	cost := CollectValues(items, models.EMFieldCost)
	if models.FormatValues(cost) != `[20, ""]` {
		t.Errorf("Expected blank cost to be collected as text, got %s", models.FormatValues(cost))
	}
}

func TestCompareField(t *testing.T) {
	tests := []struct {
		name     string
		bill     string
		rows     []*models.EMLineItem
		expected Outcome
	}{
		{"equal value", "50", rows("50"), OutcomeMatch},
		{"any of several rows", "55", rows("50", "55"), OutcomeMatch},
		{"scale ignored", "125", rows("125.0"), OutcomeMatch},
		{"cent difference", "125.01", rows("125.0"), OutcomeMismatch},
		{"no rows", "60", nil, OutcomeMissingInEM},
		{"zero with no rows", "0", nil, OutcomeMatch},
		{"zero with other value", "0.00", rows("12"), OutcomeMatch},
		{"text equal", "estimated", rows(" estimated "), OutcomeMatch},
		{"text differs", "estimated", rows("actual"), OutcomeMismatch},
		{"text never equals number", "n/a", rows("0"), OutcomeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CompareField(models.ParseValue(tt.bill), tt.rows, models.EMFieldUsage)
			if result.Outcome != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, result.Outcome)
			}
			if len(result.EMValues) != len(tt.rows) {
				t.Errorf("Expected %d EM values, got %d", len(tt.rows), len(result.EMValues))
			}
		})
	}
}

func TestOutcomeJSON(t *testing.T) {
	data, err := json.Marshal(map[string]Outcome{"outcome": OutcomeMissingInEM})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if string(data) != `{"outcome":"MISSING_IN_EM"}` {
		t.Errorf("Unexpected JSON %s", data)
	}
	if !OutcomeMismatch.IsDiscrepancy() || OutcomeMatch.IsDiscrepancy() {
		t.Error("Expected only mismatch and missing to be discrepancies")
	}
}
