package reconciler

import (
	"encoding/json"
	"fmt"

	"golang-em-checker/internal/matcher"
	"golang-em-checker/internal/models"
)

// AddressNotFound is shown for accounts without an address on record
const AddressNotFound = "Address not found"

// Status is the verdict for a whole account
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// FindingKind names the kind of discrepancy a finding reports
type FindingKind string

const (
	FindingAccountNotFound FindingKind = "account_not_found"
	FindingMissingInEM     FindingKind = "missing_in_em"
	FindingValueMismatch   FindingKind = "value_mismatch"
)

// Finding is one discrepancy between the bill and the EM export
type Finding struct {
	Kind        FindingKind    `json:"kind"`
	AccountID   string         `json:"account_id"`
	Address     string         `json:"address,omitempty"`
	BillField   string         `json:"bill_field,omitempty"`
	UtilityType string         `json:"utility_type,omitempty"`
	BillValue   *models.Value  `json:"bill_value,omitempty"`
	EMValues    []models.Value `json:"em_values,omitempty"`
}

// Message renders the finding for people
func (f *Finding) Message() string {
	address := f.Address
	if address == "" {
		address = AddressNotFound
	}

	switch f.Kind {
	case FindingAccountNotFound:
		return fmt.Sprintf("Account %s (%s): not found in Energy Manager file.", f.AccountID, address)
	case FindingMissingInEM:
		return fmt.Sprintf("Account %s (%s), '%s': EM missing rows with type '%s'.",
			f.AccountID, address, f.BillField, f.UtilityType)
	case FindingValueMismatch:
		bill := ""
		if f.BillValue != nil {
			bill = f.BillValue.String()
		}
		return fmt.Sprintf("Account %s (%s), '%s': bill=%s not in EM values %s",
			f.AccountID, address, f.BillField, bill, models.FormatValues(f.EMValues))
	default:
		return fmt.Sprintf("Account %s (%s): %s", f.AccountID, address, f.Kind)
	}
}

// String implements fmt.Stringer
func (f *Finding) String() string {
	return f.Message()
}

// MarshalJSON adds the rendered message to the finding
func (f *Finding) MarshalJSON() ([]byte, error) {
	type finding Finding
	return json.Marshal(struct {
		*finding
		Message string `json:"message"`
	}{
		finding: (*finding)(f),
		Message: f.Message(),
	})
}

// FieldResult is the comparison of one tracked bill field
type FieldResult struct {
	BillField   string          `json:"bill_field"`
	UtilityType string          `json:"utility_type"`
	EMField     models.EMField  `json:"em_field"`
	Outcome     matcher.Outcome `json:"outcome"`
	BillValue   models.Value    `json:"bill_value"`
	EMValues    []models.Value  `json:"em_values"`
}

// AccountResult is the verdict for one bill account
type AccountResult struct {
	AccountID string         `json:"account_id"`
	Address   string         `json:"address"`
	Line      int            `json:"line"`
	Status    Status         `json:"status"`
	Fields    []*FieldResult `json:"fields,omitempty"`
	Findings  []*Finding     `json:"findings,omitempty"`
}

// IsOK reports whether every evaluated field agreed
func (a *AccountResult) IsOK() bool {
	return a.Status == StatusOK
}

// DisplayAddress returns the address or the not found placeholder
func (a *AccountResult) DisplayAddress() string {
	if a.Address == "" {
		return AddressNotFound
	}
	return a.Address
}

// Report holds the verdicts of one run in bill order plus every finding
// in account-then-field order.
type Report struct {
	Accounts []*AccountResult `json:"accounts"`
	Details  []*Finding       `json:"details"`

	index map[string]int
}

// NewReport creates an empty report
func NewReport() *Report {
	return &Report{
		Accounts: make([]*AccountResult, 0),
		Details:  make([]*Finding, 0),
		index:    make(map[string]int),
	}
}

// Record adds an account verdict. An account seen before keeps its
// position and first address while its verdict is replaced; findings of
// every occurrence stay in the details.
func (r *Report) Record(result *AccountResult) {
	if i, exists := r.index[result.AccountID]; exists {
		result.Address = r.Accounts[i].Address
		r.Accounts[i] = result
	} else {
		r.index[result.AccountID] = len(r.Accounts)
		r.Accounts = append(r.Accounts, result)
	}
	r.Details = append(r.Details, result.Findings...)
}

// Account returns the verdict for an account id
func (r *Report) Account(accountID string) (*AccountResult, bool) {
	i, exists := r.index[accountID]
	if !exists {
		return nil, false
	}
	return r.Accounts[i], true
}

// Len returns the number of accounts in the report
func (r *Report) Len() int {
	return len(r.Accounts)
}

// ErrorCount returns the number of accounts in error
func (r *Report) ErrorCount() int {
	count := 0
	for _, account := range r.Accounts {
		if !account.IsOK() {
			count++
		}
	}
	return count
}

// HasErrors reports whether any account is in error
func (r *Report) HasErrors() bool {
	return r.ErrorCount() > 0
}
