package reporter

import (
	"golang-em-checker/internal/reconciler"
)

// SuccessMessage replaces the details section when nothing was found
const SuccessMessage = "All accounts validated successfully!"

// SummaryLine is one account row of the validation summary
type SummaryLine struct {
	AccountID string            `json:"account_id" yaml:"account_id"`
	Address   string            `json:"address" yaml:"address"`
	Status    reconciler.Status `json:"status" yaml:"status"`
}

// Summary is the presentation view of a report
type Summary struct {
	Lines        []SummaryLine `json:"lines" yaml:"lines"`
	Details      []string      `json:"details" yaml:"details"`
	AllValidated bool          `json:"all_validated" yaml:"all_validated"`
	Accounts     int           `json:"accounts" yaml:"accounts"`
	Errors       int           `json:"errors" yaml:"errors"`
}

// Aggregate builds the summary lines in bill order and the detail messages
// in account-then-field order. A nil report has not run, so it is never
// marked as validated.
func Aggregate(report *reconciler.Report) *Summary {
	summary := &Summary{
		Lines:   make([]SummaryLine, 0),
		Details: make([]string, 0),
	}
	if report == nil {
		return summary
	}

	for _, account := range report.Accounts {
		summary.Lines = append(summary.Lines, SummaryLine{
			AccountID: account.AccountID,
			Address:   account.DisplayAddress(),
			Status:    account.Status,
		})
		if !account.IsOK() {
			summary.Errors++
		}
	}
	for _, finding := range report.Details {
		summary.Details = append(summary.Details, finding.Message())
	}

	summary.Accounts = len(summary.Lines)
	summary.AllValidated = len(summary.Details) == 0
	return summary
}
