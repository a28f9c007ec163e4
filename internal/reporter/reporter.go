// Package reporter renders reconciliation reports.
//
// Every format is built from the same Summary, so the account order and the
// detail messages are identical whichever format is chosen.
//
// Supported output formats:
//   - Console: the validation summary and details for terminal display
//   - Table: the summary as a bordered table, details below
//   - JSON: {summary, accounts, details} for programmatic consumption
//   - YAML: the same document as JSON
//   - CSV: one row per finding or OK account for spreadsheet applications
//
// Example usage:
//
//	generator, err := reporter.NewReportGenerator(&reporter.ReportConfig{Format: reporter.FormatJSON})
//	err = generator.GenerateReport(report, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"golang-em-checker/internal/models"
	"golang-em-checker/internal/reconciler"
)

// OutputFormat represents the supported report output formats.
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatTable   OutputFormat = "table"
	FormatJSON    OutputFormat = "json"
	FormatYAML    OutputFormat = "yaml"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatTable, FormatJSON, FormatYAML, FormatCSV:
		return true
	default:
		return false
	}
}

// ParseFormat converts a flag value to an OutputFormat
func ParseFormat(s string) (OutputFormat, error) {
	format := OutputFormat(strings.ToLower(strings.TrimSpace(s)))
	if !format.IsValid() {
		return "", fmt.Errorf("unsupported output format '%s' (use console, table, json, yaml or csv)", s)
	}
	return format, nil
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format"`

	// UseColors prints ERROR summary lines in red
	UseColors bool `json:"use_colors"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration. Colors are on
// when stdout is a terminal.
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatConsole,
		UseColors:    IsTerminal(os.Stdout),
		CSVDelimiter: ',',
		CSVHeaders:   true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if c.Format == FormatCSV && (c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n') {
		return fmt.Errorf("invalid CSV delimiter: %q", c.CSVDelimiter)
	}

	return nil
}

// IsTerminal reports whether f is an interactive terminal
func IsTerminal(f *os.File) bool {
	if f == nil {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// ReportGenerator generates reconciliation reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config,
	}, nil
}

// Config returns the generator configuration
func (rg *ReportGenerator) Config() *ReportConfig {
	return rg.config
}

// GenerateReport generates a report and writes it to the provided writer
func (rg *ReportGenerator) GenerateReport(report *reconciler.Report, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("reconciliation report cannot be nil")
	}

	switch rg.config.Format {
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatTable:
		return rg.generateTableReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatYAML:
		return rg.generateYAMLReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateConsoleReport prints the summary lines then the details
func (rg *ReportGenerator) generateConsoleReport(report *reconciler.Report, writer io.Writer) error {
	summary := Aggregate(report)

	errorLine := color.New(color.FgRed)
	if rg.config.UseColors {
		errorLine.EnableColor()
	} else {
		errorLine.DisableColor()
	}

	if _, err := fmt.Fprintln(writer, "=== VALIDATION SUMMARY ==="); err != nil {
		return err
	}
	for _, line := range summary.Lines {
		text := fmt.Sprintf("Account %s | Address: %s | Status: %s", line.AccountID, line.Address, line.Status)
		if line.Status == reconciler.StatusError {
			text = errorLine.Sprint(text)
		}
		if _, err := fmt.Fprintln(writer, text); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintln(writer, "\n=== DETAILS ==="); err != nil {
		return err
	}
	return writeDetails(summary, writer)
}

// generateTableReport renders the summary lines as a table
func (rg *ReportGenerator) generateTableReport(report *reconciler.Report, writer io.Writer) error {
	summary := Aggregate(report)

	table := tablewriter.NewTable(writer)
	table.Header("Account", "Address", "Status")
	for _, line := range summary.Lines {
		if err := table.Append(line.AccountID, line.Address, string(line.Status)); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}

	fmt.Fprintf(writer, "\nAccounts: %d, errors: %d\n", summary.Accounts, summary.Errors)
	if _, err := fmt.Fprintln(writer, "\n=== DETAILS ==="); err != nil {
		return err
	}
	return writeDetails(summary, writer)
}

func writeDetails(summary *Summary, writer io.Writer) error {
	if summary.AllValidated {
		_, err := fmt.Fprintln(writer, SuccessMessage)
		return err
	}
	for _, detail := range summary.Details {
		if _, err := fmt.Fprintf(writer, " - %s\n", detail); err != nil {
			return err
		}
	}
	return nil
}

// Document is the structured form of a report used by the JSON and YAML formats
type Document struct {
	Summary  *Summary      `json:"summary" yaml:"summary"`
	Accounts []AccountView `json:"accounts" yaml:"accounts"`
	Details  []DetailView  `json:"details" yaml:"details"`
}

// AccountView is one account verdict with its evaluated fields
type AccountView struct {
	AccountID string            `json:"account_id" yaml:"account_id"`
	Address   string            `json:"address" yaml:"address"`
	Line      int               `json:"line,omitempty" yaml:"line,omitempty"`
	Status    reconciler.Status `json:"status" yaml:"status"`
	Fields    []FieldView       `json:"fields,omitempty" yaml:"fields,omitempty"`
}

// FieldView is one evaluated correspondence of an account
type FieldView struct {
	BillField   string         `json:"bill_field" yaml:"bill_field"`
	UtilityType string         `json:"utility_type" yaml:"utility_type"`
	EMField     models.EMField `json:"em_field" yaml:"em_field"`
	Outcome     string         `json:"outcome" yaml:"outcome"`
	BillValue   models.Value   `json:"bill_value" yaml:"bill_value"`
	EMValues    []models.Value `json:"em_values,omitempty" yaml:"em_values,omitempty"`
}

// DetailView is one finding with its rendered message
type DetailView struct {
	Kind        reconciler.FindingKind `json:"kind" yaml:"kind"`
	AccountID   string                 `json:"account_id" yaml:"account_id"`
	BillField   string                 `json:"bill_field,omitempty" yaml:"bill_field,omitempty"`
	UtilityType string                 `json:"utility_type,omitempty" yaml:"utility_type,omitempty"`
	Message     string                 `json:"message" yaml:"message"`
}

// BuildDocument converts a report into its structured form
func BuildDocument(report *reconciler.Report) *Document {
	doc := &Document{
		Summary:  Aggregate(report),
		Accounts: make([]AccountView, 0),
		Details:  make([]DetailView, 0),
	}
	if report == nil {
		return doc
	}

	for _, account := range report.Accounts {
		view := AccountView{
			AccountID: account.AccountID,
			Address:   account.DisplayAddress(),
			Line:      account.Line,
			Status:    account.Status,
		}
		for _, field := range account.Fields {
			view.Fields = append(view.Fields, FieldView{
				BillField:   field.BillField,
				UtilityType: field.UtilityType,
				EMField:     field.EMField,
				Outcome:     field.Outcome.String(),
				BillValue:   field.BillValue,
				EMValues:    field.EMValues,
			})
		}
		doc.Accounts = append(doc.Accounts, view)
	}

	for _, finding := range report.Details {
		doc.Details = append(doc.Details, DetailView{
			Kind:        finding.Kind,
			AccountID:   finding.AccountID,
			BillField:   finding.BillField,
			UtilityType: finding.UtilityType,
			Message:     finding.Message(),
		})
	}

	return doc
}

// generateJSONReport generates a JSON format report
func (rg *ReportGenerator) generateJSONReport(report *reconciler.Report, writer io.Writer) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(BuildDocument(report))
}

// generateYAMLReport generates a YAML format report
func (rg *ReportGenerator) generateYAMLReport(report *reconciler.Report, writer io.Writer) error {
	encoder := yaml.NewEncoder(writer)
	encoder.SetIndent(2)
	if err := encoder.Encode(BuildDocument(report)); err != nil {
		return err
	}
	return encoder.Close()
}

var csvHeaders = []string{
	"account_id", "address", "status", "kind", "bill_field", "utility_type", "bill_value", "em_values", "message",
}

// generateCSVReport writes one row per finding and one row per OK account
func (rg *ReportGenerator) generateCSVReport(report *reconciler.Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter
	if csvWriter.Comma == 0 {
		csvWriter.Comma = ','
	}

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(csvHeaders); err != nil {
			return err
		}
	}

	findings := make(map[string][]*reconciler.Finding)
	for _, finding := range report.Details {
		findings[finding.AccountID] = append(findings[finding.AccountID], finding)
	}

	for _, account := range report.Accounts {
		accountFindings := findings[account.AccountID]
		if len(accountFindings) == 0 {
			record := []string{account.AccountID, account.DisplayAddress(), string(account.Status), "", "", "", "", "", ""}
			if err := csvWriter.Write(record); err != nil {
				return err
			}
			continue
		}

		for _, finding := range accountFindings {
			billValue := ""
			if finding.BillValue != nil {
				billValue = finding.BillValue.String()
			}
			emValues := ""
			if len(finding.EMValues) > 0 {
				emValues = models.FormatValues(finding.EMValues)
			}
			record := []string{
				account.AccountID,
				account.DisplayAddress(),
				string(account.Status),
				string(finding.Kind),
				finding.BillField,
				finding.UtilityType,
				billValue,
				emValues,
				finding.Message(),
			}
			if err := csvWriter.Write(record); err != nil {
				return err
			}
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}
