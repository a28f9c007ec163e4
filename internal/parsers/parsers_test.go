package parsers

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"golang-em-checker/internal/models"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.SetGlobalLogger(logger.Discard())
	os.Exit(m.Run())
}

var trackedFields = []string{"H20-CFT", "KWH", "WATER$ 7304", "DEMAND"}

// Helper function to create a temporary file with the given content
func createTempFile(t *testing.T, name string, content []byte) string {
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

// Helper function to create a workbook with one row per slice
func createTempWorkbook(t *testing.T, sheet string, rows [][]interface{}) string {
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		if _, err := f.NewSheet(sheet); err != nil {
			t.Fatalf("Failed to create sheet: %v", err)
		}
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			t.Fatalf("Failed to compute cell name: %v", err)
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			t.Fatalf("Failed to write row: %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "bill.xlsx")
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("Failed to save workbook: %v", err)
	}
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path        string
		expected    Format
		expectError bool
	}{
		{"export.csv", FormatCSV, false},
		{"EXPORT.CSV", FormatCSV, false},
		{"bill.xlsx", FormatXLSX, false},
		{"bill.xlsm", FormatXLSX, false},
		{"bill.xls", "", true},
		{"bill", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			format, err := DetectFormat(tt.path)
			if tt.expectError {
				if err == nil {
					t.Error("Expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}
			if format != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, format)
			}
		})
	}
}

func TestNewTableHeaders(t *testing.T) {
	table := NewTable("t", []string{" ACCT# ", "", "KWH", "KWH", " KWH"})

	expected := []string{"ACCT#", "Unnamed: 1", "KWH", "KWH.1", "KWH.2"}
	for i, want := range expected {
		if table.Headers[i] != want {
			t.Errorf("Header %d: expected %q, got %q", i, want, table.Headers[i])
		}
	}
	if table.ColumnIndex("KWH") != 2 {
		t.Errorf("Expected first KWH column at 2, got %d", table.ColumnIndex("KWH"))
	}
	if table.ColumnIndex("kwh") != -1 {
		t.Error("Expected column lookup to be case sensitive")
	}
}

func TestLoadTableCSV(t *testing.T) {
	content := "\xef\xbb\xbf Account Number ,Line Item Type Name,Line Item Usage,Line Item Cost\n" +
		"1001,Water-Usage (CF),50,20.00\n" +
		"\n" +
		"1001,\"Electric-Usage (KWH)\",300,\"45,10\"\n"
	path := createTempFile(t, "em.csv", []byte(content))

	table, err := NewBaseParser(nil).LoadTable(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if !table.HasColumn("Account Number") {
		t.Errorf("Expected trimmed header without BOM, got %v", table.Headers)
	}
	if table.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", table.Len())
	}
	if table.Rows[1].Line != 4 {
		t.Errorf("Expected second row on line 4, got %d", table.Rows[1].Line)
	}
	if got := table.Value(table.Rows[1], "Line Item Cost"); got != "45,10" {
		t.Errorf("Expected quoted cell, got %q", got)
	}
}

func TestLoadTableWindows1252(t *testing.T) {
	content := []byte("Account Number,Line Item Type Name,Line Item Usage,Line Item Cost\n1001,Caf\xe9,1,2\n")
	path := createTempFile(t, "em.csv", content)

	table, err := NewBaseParser(nil).LoadTable(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if got := table.Value(table.Rows[0], "Line Item Type Name"); got != "Café" {
		t.Errorf("Expected Windows-1252 decoding, got %q", got)
	}

	config := DefaultParseConfig()
	config.FallbackEncoding = false
	_, err = NewBaseParser(config).LoadTable(context.Background(), path)
	rerr, ok := apperrors.AsReconcilerError(err)
	if !ok || rerr.Code != apperrors.CodeEncodingError {
		t.Errorf("Expected encoding error without fallback, got %v", err)
	}
}

func TestLoadTableErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		expected apperrors.ErrorCode
	}{
		{"missing file", filepath.Join(dir, "missing.csv"), apperrors.CodeFileNotFound},
		{"unsupported", createTempFile(t, "bill.pdf", []byte("x")), apperrors.CodeUnsupportedFormat},
		{"empty csv", createTempFile(t, "empty.csv", []byte("\n\n")), apperrors.CodeEmptyTable},
		{"bad quotes", createTempFile(t, "bad.csv", []byte("a,b\n1,x\"y\n")), ""},
		{"corrupt workbook", createTempFile(t, "bill.xlsx", []byte("not a zip")), apperrors.CodeFileCorrupted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewBaseParser(nil).LoadTable(context.Background(), tt.path)
			if tt.expected == "" {
				// lazy quotes accept stray quotes
				if err != nil {
					t.Errorf("Unexpected error: %v", err)
				}
				return
			}
			rerr, ok := apperrors.AsReconcilerError(err)
			if !ok {
				t.Fatalf("Expected ReconcilerError, got %v", err)
			}
			if rerr.Code != tt.expected {
				t.Errorf("Expected code %s, got %s", tt.expected, rerr.Code)
			}
		})
	}
}

func TestLoadTableCancelled(t *testing.T) {
	path := createTempFile(t, "em.csv", []byte("a,b\n1,2\n"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBaseParser(nil).LoadTable(ctx, path)
	if rerr, ok := apperrors.AsReconcilerError(err); !ok || rerr.Code != apperrors.CodeCancelled {
		t.Errorf("Expected cancelled error, got %v", err)
	}
}

func TestLoadTableWorkbook(t *testing.T) {
	path := createTempWorkbook(t, "Sheet1", [][]interface{}{
		{"ACCT# ", "SERVICE ADDRESS", "H20-CFT", "WATER$ 7304"},
		{"001001", "12 Main St", 50, 45.1},
		{},
		{"* CPO * ACCT#", nil, nil, nil},
	})

	table, err := NewBaseParser(nil).LoadTable(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if table.Len() != 2 {
		t.Fatalf("Expected 2 rows, got %d", table.Len())
	}

	row := table.Rows[0]
	if got := table.Value(row, "ACCT#"); got != "001001" {
		t.Errorf("Expected text account to keep leading zeros, got %q", got)
	}
	if got := table.Value(row, "H20-CFT"); got != "50" {
		t.Errorf("Expected raw 50, got %q", got)
	}
	if got := table.Value(row, "WATER$ 7304"); got != "45.1" {
		t.Errorf("Expected raw 45.1, got %q", got)
	}
	if table.Rows[1].Line != 4 {
		t.Errorf("Expected sentinel row on line 4, got %d", table.Rows[1].Line)
	}
}

func TestLoadTableWorkbookSheet(t *testing.T) {
	path := createTempWorkbook(t, "Usage", [][]interface{}{
		{"ACCT#", "ADDRESS"},
		{"2002", "1 Elm St"},
	})

	config := DefaultParseConfig()
	config.Sheet = "Usage"
	table, err := NewBaseParser(config).LoadTable(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if table.Len() != 1 || table.Value(table.Rows[0], "ACCT#") != "2002" {
		t.Errorf("Expected row from the Usage sheet, got %+v", table.Rows)
	}

	config.Sheet = "Missing"
	_, err = NewBaseParser(config).LoadTable(context.Background(), path)
	if apperrors.GetExitCode(err) != 4 {
		t.Errorf("Expected configuration error for unknown sheet, got %v", err)
	}
}

func TestNormalizeNumber(t *testing.T) {
	tests := []struct {
		raw      string
		expected string
	}{
		{"45.100000000000001", "45.1"},
		{"20.5", "20.5"},
		{"1001", "1001"},
		{"001001", "001001"},
		{"1.50", "1.5"},
		{"1E5", "1E5"},
		{"N.A.", "N.A."},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			if got := normalizeNumber(tt.raw); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestBillConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      *BillConfig
		expectError bool
	}{
		{"default", DefaultBillConfig(), false},
		{"named address", &BillConfig{AccountColumn: "ACCT#", AddressColumn: "ADDRESS"}, false},
		{"empty account", &BillConfig{AccountColumn: " "}, true},
		{"address is account", &BillConfig{AccountColumn: "ACCT#", AddressColumn: "ACCT#"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError && err == nil {
				t.Error("Expected error but got none")
			}
			if !tt.expectError && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestEMConfig_Validate(t *testing.T) {
	if err := DefaultEMConfig().Validate(); err != nil {
		t.Errorf("Unexpected error: %v", err)
	}

	config := DefaultEMConfig()
	config.CostColumn = ""
	if err := config.Validate(); err == nil {
		t.Error("Expected error for empty cost column")
	}

	config = DefaultEMConfig()
	config.CostColumn = config.UsageColumn
	if err := config.Validate(); err == nil {
		t.Error("Expected error for reused column")
	}

	if DefaultEMConfig().GetColumnName(models.EMFieldCost) != "Line Item Cost" {
		t.Error("Expected cost to be read from Line Item Cost")
	}
}

func TestBillParser_ParseBillRecords(t *testing.T) {
	table := NewTable("bill.xlsx", []string{"ACCT#", "SERVICE ADDRESS", "H20-CFT", "KWH", "OTHER"})
	table.AddRow(2, []string{" 1001 ", "12 Main St", "50", " ", "x"})
	table.AddRow(3, []string{"", "", "1", "2"})
	table.AddRow(4, []string{"1002"})

	parser, err := NewBillParser(nil, trackedFields)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	records, stats, err := parser.ParseBillRecords(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("Expected 3 records, got %d", len(records))
	}
	if stats.RowsSkipped != 1 || stats.RecordsValid != 2 {
		t.Errorf("Unexpected stats: %s", stats)
	}

	first := records[0]
	if first.AccountID != "1001" || first.Address != "12 Main St" || first.Line != 2 {
		t.Errorf("Unexpected first record: %s", first)
	}
	if v, ok := first.Value("H20-CFT"); !ok || v.String() != "50" {
		t.Errorf("Expected H20-CFT 50, got %v", v)
	}
	if _, ok := first.Value("KWH"); ok {
		t.Error("Expected blank KWH to be absent")
	}
	if _, ok := first.Value("OTHER"); ok {
		t.Error("Expected untracked column to be ignored")
	}

	if records[2].Address != "" {
		t.Errorf("Expected short row to have no address, got %q", records[2].Address)
	}
}

func TestBillParser_AddressColumn(t *testing.T) {
	table := NewTable("bill.csv", []string{"NAME", "ACCT#", "ADDRESS"})
	table.AddRow(2, []string{"Park", "1001", "1 Elm St"})

	parser, err := NewBillParser(&BillConfig{AccountColumn: "ACCT#", AddressColumn: "ADDRESS"}, trackedFields)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	records, _, err := parser.ParseBillRecords(table)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if records[0].Address != "1 Elm St" {
		t.Errorf("Expected configured address column, got %q", records[0].Address)
	}

	parser, _ = NewBillParser(nil, trackedFields)
	records, _, _ = parser.ParseBillRecords(table)
	if records[0].Address != "1001" {
		t.Errorf("Expected second column by position, got %q", records[0].Address)
	}
}

func TestBillParser_MissingAccountColumn(t *testing.T) {
	table := NewTable("bill.xlsx", []string{"ACCOUNT", "ADDRESS"})
	parser, _ := NewBillParser(nil, trackedFields)

	_, _, err := parser.ParseBillRecords(table)
	rerr, ok := apperrors.AsReconcilerError(err)
	if !ok || rerr.Code != apperrors.CodeMissingColumn {
		t.Fatalf("Expected missing column error, got %v", err)
	}
	if !strings.Contains(rerr.Error(), "ACCT#") {
		t.Errorf("Expected error to name the column, got %q", rerr.Error())
	}
}

func TestBillParser_ParseBillFile(t *testing.T) {
	path := createTempWorkbook(t, "Sheet1", [][]interface{}{
		{"ACCT#", "ADDRESS", "KWH", "DEMAND"},
		{"1001", "12 Main St", 300, "n/a"},
	})

	parser, _ := NewBillParser(nil, trackedFields)
	records, _, err := parser.ParseBillFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(records))
	}
	kwh, _ := records[0].Value("KWH")
	demand, _ := records[0].Value("DEMAND")
	if !kwh.IsNumeric() || demand.IsNumeric() {
		t.Errorf("Expected numeric KWH and text DEMAND, got %v %v", kwh, demand)
	}
}

func TestEMParser_ParseEMFile(t *testing.T) {
	content := "Account Number,Line Item Type Name ,Line Item Usage,Line Item Cost,Vendor\n" +
		"1001, Water-Usage (CF) ,50,20.00,City\n" +
		"1001,Demand,,12.5,City\n"
	path := createTempFile(t, "em.csv", []byte(content))

	parser, err := NewEMParser(nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	items, stats, err := parser.ParseEMFile(context.Background(), path)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(items) != 2 || stats.RecordsValid != 2 {
		t.Fatalf("Expected 2 line items, got %d", len(items))
	}
	if items[0].UtilityType != "Water-Usage (CF)" {
		t.Errorf("Expected trimmed utility type, got %q", items[0].UtilityType)
	}
	if items[1].Usage.IsNumeric() || items[1].Cost.String() != "12.5" {
		t.Errorf("Unexpected demand values: %s", items[1])
	}
}

func TestEMParser_MissingColumns(t *testing.T) {
	table := NewTable("em.csv", []string{"Account Number", "Line Item Usage"})
	parser, _ := NewEMParser(nil)

	_, _, err := parser.ParseEMLineItems(table)
	if err == nil {
		t.Fatal("Expected error but got none")
	}
	msg := err.Error()
	if !strings.Contains(msg, "Line Item Type Name") || !strings.Contains(msg, "Line Item Cost") {
		t.Errorf("Expected every missing column in %q", msg)
	}
}
