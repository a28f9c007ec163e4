package reporter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"

	"golang-em-checker/internal/models"
	"golang-em-checker/internal/reconciler"
	"golang-em-checker/pkg/logger"
)

func createTestReport(t *testing.T) *reconciler.Report {
	t.Helper()

	engine, err := reconciler.NewEngine(nil, nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	water := models.NewBillRecord("1001", "12 Main St", 3)
	water.SetRaw("H20-CFT", "1200")
	cost := models.NewBillRecord("1002", "7 Oak Ave", 4)
	cost.SetRaw("WATER$ 7304", "300")
	missing := models.NewBillRecord("9999", "", 5)
	missing.SetRaw("KWH", "10")

	return engine.Reconcile(
		[]*models.BillRecord{water, cost, missing},
		[]*models.EMLineItem{
			models.NewEMLineItem("1001", "Water-Usage (CF)", "1200", "45.10", 2),
			models.NewEMLineItem("1002", "Water-Usage (CF)", "900", "250.00", 3),
		},
	)
}

func createCleanReport(t *testing.T) *reconciler.Report {
	t.Helper()

	engine, err := reconciler.NewEngine(nil, nil)
	if err != nil {
		t.Fatalf("Failed to create engine: %v", err)
	}

	record := models.NewBillRecord("1001", "12 Main St", 2)
	record.SetRaw("KWH", "500")
	return engine.Reconcile(
		[]*models.BillRecord{record},
		[]*models.EMLineItem{models.NewEMLineItem("1001", "Electric-Usage (KWH)", "500", "80", 2)},
	)
}

func generate(t *testing.T, config *ReportConfig, report *reconciler.Report) string {
	t.Helper()

	generator, err := NewReportGenerator(config)
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}

	var buf bytes.Buffer
	if err := generator.GenerateReport(report, &buf); err != nil {
		t.Fatalf("Failed to generate report: %v", err)
	}
	return buf.String()
}

func TestNewReportGenerator(t *testing.T) {
	tests := []struct {
		name        string
		config      *ReportConfig
		expectError bool
	}{
		{
			name:        "default config",
			config:      nil,
			expectError: false,
		},
		{
			name:        "valid config",
			config:      DefaultReportConfig(),
			expectError: false,
		},
		{
			name:        "invalid format",
			config:      &ReportConfig{Format: "invalid"},
			expectError: true,
		},
		{
			name:        "csv without delimiter",
			config:      &ReportConfig{Format: FormatCSV},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			generator, err := NewReportGenerator(tt.config)

			if tt.expectError {
				if err == nil {
					t.Errorf("expected error but got none")
				}
			} else {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				if generator == nil {
					t.Errorf("expected generator but got nil")
				}
			}
		})
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input    string
		expected OutputFormat
		valid    bool
	}{
		{"console", FormatConsole, true},
		{"TABLE", FormatTable, true},
		{" json ", FormatJSON, true},
		{"yaml", FormatYAML, true},
		{"csv", FormatCSV, true},
		{"xml", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			format, err := ParseFormat(tt.input)
			if tt.valid && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.valid && err == nil {
				t.Errorf("expected error for %q", tt.input)
			}
			if format != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, format)
			}
		})
	}
}

func TestAggregate(t *testing.T) {
	summary := Aggregate(createTestReport(t))

	expectedLines := []SummaryLine{
		{AccountID: "1001", Address: "12 Main St", Status: reconciler.StatusOK},
		{AccountID: "1002", Address: "7 Oak Ave", Status: reconciler.StatusError},
		{AccountID: "9999", Address: "Address not found", Status: reconciler.StatusError},
	}
	if len(summary.Lines) != len(expectedLines) {
		t.Fatalf("expected %d lines, got %d", len(expectedLines), len(summary.Lines))
	}
	for i, expected := range expectedLines {
		if summary.Lines[i] != expected {
			t.Errorf("line %d: expected %+v, got %+v", i, expected, summary.Lines[i])
		}
	}

	if summary.AllValidated {
		t.Error("expected AllValidated to be false")
	}
	if summary.Errors != 2 || summary.Accounts != 3 {
		t.Errorf("expected 3 accounts and 2 errors, got %d and %d", summary.Accounts, summary.Errors)
	}
	if len(summary.Details) != 2 {
		t.Fatalf("expected 2 details, got %d", len(summary.Details))
	}

	clean := Aggregate(createCleanReport(t))
	if !clean.AllValidated || len(clean.Details) != 0 {
		t.Errorf("expected a validated summary, got %+v", clean)
	}

	empty := Aggregate(reconciler.NewReport())
	if !empty.AllValidated || len(empty.Lines) != 0 {
		t.Errorf("expected an empty validated summary, got %+v", empty)
	}

	notRun := Aggregate(nil)
	if notRun.AllValidated {
		t.Error("expected a nil report not to be marked validated")
	}
	if len(notRun.Lines) != 0 || len(notRun.Details) != 0 {
		t.Errorf("expected an empty summary for a nil report, got %+v", notRun)
	}

	if doc := BuildDocument(nil); doc.Summary.AllValidated || len(doc.Accounts) != 0 {
		t.Errorf("expected an unvalidated empty document for a nil report, got %+v", doc)
	}
}

func TestConsoleReport(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatConsole}, createTestReport(t))

	expected := `=== VALIDATION SUMMARY ===
Account 1001 | Address: 12 Main St | Status: OK
Account 1002 | Address: 7 Oak Ave | Status: ERROR
Account 9999 | Address: Address not found | Status: ERROR

=== DETAILS ===
 - Account 1002 (7 Oak Ave), 'WATER$ 7304': bill=300 not in EM values [250]
 - Account 9999 (Address not found): not found in Energy Manager file.
`
	if output != expected {
		t.Errorf("unexpected console output:\n%s\nexpected:\n%s", output, expected)
	}
}

func TestConsoleReportSuccess(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatConsole}, createCleanReport(t))

	if !strings.HasSuffix(output, "=== DETAILS ===\n"+SuccessMessage+"\n") {
		t.Errorf("expected success message after details header, got:\n%s", output)
	}
	if strings.Contains(output, " - ") {
		t.Errorf("expected no detail lines, got:\n%s", output)
	}
}

func TestConsoleReportColors(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatConsole, UseColors: true}, createTestReport(t))

	for _, line := range strings.Split(output, "\n") {
		switch {
		case strings.Contains(line, "Status: ERROR"):
			if !strings.Contains(line, "\x1b[31m") {
				t.Errorf("expected red ERROR line, got %q", line)
			}
		case strings.Contains(line, "Status: OK"):
			if strings.Contains(line, "\x1b[") {
				t.Errorf("expected plain OK line, got %q", line)
			}
		}
	}
}

func TestTableReport(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatTable}, createTestReport(t))

	for _, expected := range []string{"1001", "12 Main St", "Address not found", "ERROR", "=== DETAILS ===", "bill=300 not in EM values [250]"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected table output to contain %q, got:\n%s", expected, output)
		}
	}
}

func TestJSONReport(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatJSON}, createTestReport(t))

	var doc struct {
		Summary struct {
			Lines []struct {
				AccountID string `json:"account_id"`
				Status    string `json:"status"`
			} `json:"lines"`
			AllValidated bool `json:"all_validated"`
		} `json:"summary"`
		Accounts []struct {
			AccountID string `json:"account_id"`
			Fields    []struct {
				Outcome   string      `json:"outcome"`
				BillValue json.Number `json:"bill_value"`
			} `json:"fields"`
		} `json:"accounts"`
		Details []struct {
			Kind    string `json:"kind"`
			Message string `json:"message"`
		} `json:"details"`
	}
	if err := json.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to decode JSON report: %v\n%s", err, output)
	}

	if len(doc.Summary.Lines) != 3 || doc.Summary.AllValidated {
		t.Errorf("unexpected summary: %+v", doc.Summary)
	}
	if len(doc.Accounts) != 3 {
		t.Fatalf("expected 3 accounts, got %d", len(doc.Accounts))
	}
	if len(doc.Accounts[0].Fields) != 1 || doc.Accounts[0].Fields[0].Outcome != "MATCH" {
		t.Errorf("expected one MATCH field for 1001, got %+v", doc.Accounts[0].Fields)
	}
	if doc.Accounts[0].Fields[0].BillValue.String() != "1200" {
		t.Errorf("expected numeric bill value 1200, got %s", doc.Accounts[0].Fields[0].BillValue)
	}
	if len(doc.Details) != 2 || doc.Details[1].Kind != "account_not_found" {
		t.Errorf("unexpected details: %+v", doc.Details)
	}
}

func TestYAMLReport(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatYAML}, createTestReport(t))

	var doc struct {
		Summary struct {
			Details []string `yaml:"details"`
		} `yaml:"summary"`
		Accounts []struct {
			AccountID string `yaml:"account_id"`
			Status    string `yaml:"status"`
		} `yaml:"accounts"`
	}
	if err := yaml.Unmarshal([]byte(output), &doc); err != nil {
		t.Fatalf("failed to decode YAML report: %v\n%s", err, output)
	}

	if len(doc.Accounts) != 3 || doc.Accounts[1].AccountID != "1002" || doc.Accounts[1].Status != "ERROR" {
		t.Errorf("unexpected accounts: %+v", doc.Accounts)
	}
	if len(doc.Summary.Details) != 2 {
		t.Errorf("expected 2 details, got %d", len(doc.Summary.Details))
	}
}

func TestCSVReport(t *testing.T) {
	output := generate(t, &ReportConfig{Format: FormatCSV, CSVDelimiter: ',', CSVHeaders: true}, createTestReport(t))

	records, err := csv.NewReader(strings.NewReader(output)).ReadAll()
	if err != nil {
		t.Fatalf("failed to read CSV report: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("expected header plus 3 rows, got %d", len(records))
	}
	if records[0][0] != "account_id" {
		t.Errorf("expected header row, got %v", records[0])
	}
	if records[1][0] != "1001" || records[1][2] != "OK" || records[1][3] != "" {
		t.Errorf("unexpected OK row: %v", records[1])
	}
	if records[2][3] != "value_mismatch" || records[2][6] != "300" || records[2][7] != "[250]" {
		t.Errorf("unexpected mismatch row: %v", records[2])
	}
	if records[3][1] != "Address not found" || records[3][3] != "account_not_found" {
		t.Errorf("unexpected not found row: %v", records[3])
	}
}

func TestGenerateReportNil(t *testing.T) {
	generator, err := NewReportGenerator(&ReportConfig{Format: FormatConsole})
	if err != nil {
		t.Fatalf("Failed to create generator: %v", err)
	}
	if err := generator.GenerateReport(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected error for nil report")
	}
}

// failOnceWriter fails the first write only
type failOnceWriter struct {
	bytes.Buffer
	failed bool
}

func (w *failOnceWriter) Write(p []byte) (int, error) {
	if !w.failed {
		w.failed = true
		return 0, errors.New("write refused")
	}
	return w.Buffer.Write(p)
}

func TestSafeReportGenerator(t *testing.T) {
	generator, err := NewSafeReportGenerator(&ReportConfig{Format: FormatJSON}, logger.Discard())
	if err != nil {
		t.Fatalf("Failed to create safe generator: %v", err)
	}

	if err := generator.GenerateReportSafely(nil, &bytes.Buffer{}); err == nil {
		t.Error("expected error for nil report")
	}

	writer := &failOnceWriter{}
	if err := generator.GenerateReportSafely(createTestReport(t), writer); err != nil {
		t.Fatalf("expected fallback to succeed, got %v", err)
	}
	output := writer.String()
	if !strings.Contains(output, "NOTE: Report generated in fallback format") {
		t.Errorf("expected fallback notice, got:\n%s", output)
	}
	if !strings.Contains(output, "=== VALIDATION SUMMARY ===") {
		t.Errorf("expected console report after fallback, got:\n%s", output)
	}

	if _, err := NewSafeReportGenerator(&ReportConfig{Format: "xml"}, nil); err == nil {
		t.Error("expected error for unsupported format")
	}
}

func TestBackupPath(t *testing.T) {
	if got := backupPath("/tmp/report.json"); got != "/tmp/report_backup.json" {
		t.Errorf("expected /tmp/report_backup.json, got %s", got)
	}
}
