package parsers

import (
	"fmt"
	"strings"

	"golang-em-checker/internal/models"
)

// BillConfig represents the column layout of the bill table
type BillConfig struct {
	AccountColumn string `json:"account_column"`

	// AddressColumn names the address column. When empty the address is read
	// from the second column by position, which is where the City export keeps it.
	AddressColumn string `json:"address_column,omitempty"`

	// Sheet selects the workbook sheet. Empty means the first sheet.
	Sheet string `json:"sheet,omitempty"`
}

// DefaultBillConfig returns the layout of the City usage export
func DefaultBillConfig() *BillConfig {
	return &BillConfig{
		AccountColumn: "ACCT#",
	}
}

// Validate checks if the bill configuration is valid
func (bc *BillConfig) Validate() error {
	if strings.TrimSpace(bc.AccountColumn) == "" {
		return fmt.Errorf("account column cannot be empty")
	}
	if bc.AddressColumn != "" && strings.TrimSpace(bc.AddressColumn) == strings.TrimSpace(bc.AccountColumn) {
		return fmt.Errorf("address column cannot be the account column")
	}
	return nil
}

// EMConfig represents the column layout of the Energy Manager export
type EMConfig struct {
	AccountColumn string `json:"account_column"`
	TypeColumn    string `json:"type_column"`
	UsageColumn   string `json:"usage_column"`
	CostColumn    string `json:"cost_column"`
	Sheet         string `json:"sheet,omitempty"`
}

// DefaultEMConfig returns the layout of the Energy Manager bill export
func DefaultEMConfig() *EMConfig {
	return &EMConfig{
		AccountColumn: "Account Number",
		TypeColumn:    "Line Item Type Name",
		UsageColumn:   models.EMFieldUsage.Label(),
		CostColumn:    models.EMFieldCost.Label(),
	}
}

// Validate checks if the EM configuration is valid
func (ec *EMConfig) Validate() error {
	columns := map[string]string{
		"account": ec.AccountColumn,
		"type":    ec.TypeColumn,
		"usage":   ec.UsageColumn,
		"cost":    ec.CostColumn,
	}
	seen := make(map[string]string, len(columns))
	for _, name := range []string{"account", "type", "usage", "cost"} {
		column := strings.TrimSpace(columns[name])
		if column == "" {
			return fmt.Errorf("%s column cannot be empty", name)
		}
		if other, exists := seen[column]; exists {
			return fmt.Errorf("%s column '%s' is already used as the %s column", name, column, other)
		}
		seen[column] = name
	}
	return nil
}

// GetColumnName returns the column the EM field is read from
func (ec *EMConfig) GetColumnName(field models.EMField) string {
	switch field {
	case models.EMFieldUsage:
		return ec.UsageColumn
	case models.EMFieldCost:
		return ec.CostColumn
	default:
		return string(field)
	}
}

// RequiredColumns returns the columns every EM export must carry
func (ec *EMConfig) RequiredColumns() []string {
	return []string{ec.AccountColumn, ec.TypeColumn, ec.UsageColumn, ec.CostColumn}
}
