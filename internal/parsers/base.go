// Package parsers loads the bill and Energy Manager exports into tables and
// extracts reconciliation records from them.
//
// Real exports come in two shapes: the City bill is an Excel workbook and
// the Energy Manager export is a CSV file, often saved in Windows-1252.
// Both are read into a Table of named columns whose header names have
// surrounding whitespace removed, so records can be addressed by header
// regardless of the file format.
//
// Loader behaviour:
//   - .csv files are read with encoding/csv; bytes that are not valid UTF-8
//     are decoded as Windows-1252
//   - .xlsx and .xlsm files are read with excelize from the configured sheet,
//     or the first sheet
//   - the first non-empty row is the header row and empty rows are skipped
//   - blank header cells become "Unnamed: N" and repeated headers get a
//     ".1", ".2" suffix
//
// Example usage:
//
//	table, err := parsers.NewBaseParser(nil).LoadTable(ctx, "bill.xlsx")
//	bills, stats, err := billParser.ParseBillRecords(table)
package parsers

import (
	"bytes"
	"context"
	"encoding/csv"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// Format identifies the on-disk format of a table
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// DetectFormat returns the table format implied by the file extension
func DetectFormat(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", apperrors.FileError(apperrors.CodeUnsupportedFormat, path, nil)
	}
}

// ParseConfig holds configuration for table loading
type ParseConfig struct {
	Delimiter        rune
	Comment          rune
	LazyQuotes       bool
	SkipEmptyRows    bool
	MaxFieldSize     int
	FallbackEncoding bool
	Sheet            string
}

// DefaultParseConfig returns a configuration with sensible defaults
func DefaultParseConfig() *ParseConfig {
	return &ParseConfig{
		Delimiter:        ',',
		LazyQuotes:       true,
		SkipEmptyRows:    true,
		MaxFieldSize:     1000000, // 1MB per field
		FallbackEncoding: true,
	}
}

// Row is one data row of a table, cells in header order
type Row struct {
	Line  int
	Cells []string
}

// At returns the cell at position i, empty when the row is shorter
func (r *Row) At(i int) string {
	if i < 0 || i >= len(r.Cells) {
		return ""
	}
	return r.Cells[i]
}

// Table is a loaded source table with trimmed, unique header names
type Table struct {
	Name      string
	Headers   []string
	Rows      []*Row
	headerMap map[string]int
}

// NewTable creates an empty table with cleaned headers
func NewTable(name string, headers []string) *Table {
	t := &Table{
		Name:      name,
		Headers:   cleanHeaders(headers),
		headerMap: make(map[string]int, len(headers)),
	}
	for i, header := range t.Headers {
		t.headerMap[header] = i
	}
	return t
}

// cleanHeaders trims header names, names blank headers by position and
// suffixes repeated names so every column stays addressable
func cleanHeaders(headers []string) []string {
	cleaned := make([]string, len(headers))
	counts := make(map[string]int, len(headers))
	for i, header := range headers {
		name := strings.TrimSpace(header)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := counts[name]; n > 0 {
			counts[name]++
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			counts[name] = 1
		}
		cleaned[i] = name
	}
	return cleaned
}

// AddRow appends a data row
func (t *Table) AddRow(line int, cells []string) {
	t.Rows = append(t.Rows, &Row{Line: line, Cells: cells})
}

// Len returns the number of data rows
func (t *Table) Len() int {
	return len(t.Rows)
}

// ColumnIndex returns the index of a column by name, or -1 if not found
func (t *Table) ColumnIndex(name string) int {
	if index, exists := t.headerMap[strings.TrimSpace(name)]; exists {
		return index
	}
	return -1
}

// HasColumn reports whether the table carries the column
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) != -1
}

// Value returns the cell of a row by column name, empty when the column is absent
func (t *Table) Value(row *Row, column string) string {
	return row.At(t.ColumnIndex(column))
}

// RequireColumns fails with a missing column error naming every absent column
func (t *Table) RequireColumns(columns ...string) error {
	var missing []string
	for _, column := range columns {
		if !t.HasColumn(column) {
			missing = append(missing, column)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	return apperrors.ParseError(
		apperrors.CodeMissingColumn,
		t.Name,
		1,
		strings.Join(missing, ", "),
		nil,
	).WithSuggestion(fmt.Sprintf("Available columns: %s", strings.Join(t.Headers, ", ")))
}

// BaseParser loads tables from files or readers
type BaseParser struct {
	config *ParseConfig
	logger logger.Logger
}

// NewBaseParser creates a new BaseParser with the given configuration
func NewBaseParser(config *ParseConfig) *BaseParser {
	if config == nil {
		config = DefaultParseConfig()
	}

	log := logger.GetGlobalLogger().WithComponent("table_loader")
	log.WithFields(logger.Fields{
		"delimiter":         string(config.Delimiter),
		"fallback_encoding": config.FallbackEncoding,
		"sheet":             config.Sheet,
	}).Debug("Created table loader")

	return &BaseParser{
		config: config,
		logger: log,
	}
}

// OpenFile opens a source file, mapping failures to file errors
func (bp *BaseParser) OpenFile(filePath string) (*os.File, error) {
	bp.logger.WithField("file_path", filePath).Debug("Opening file")

	file, err := os.Open(filePath)
	if err != nil {
		bp.logger.WithError(err).WithField("file_path", filePath).Error("Failed to open file")

		if os.IsNotExist(err) {
			return nil, apperrors.FileError(apperrors.CodeFileNotFound, filePath, err)
		}
		if os.IsPermission(err) {
			return nil, apperrors.FileError(apperrors.CodeFilePermission, filePath, err)
		}
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, filePath, err)
	}

	if info, err := file.Stat(); err == nil && info.IsDir() {
		file.Close()
		return nil, apperrors.FileError(apperrors.CodeUnsupportedFormat, filePath,
			fmt.Errorf("path is a directory"))
	}

	return file, nil
}

// LoadTable loads a table from a file, choosing the reader by extension
func (bp *BaseParser) LoadTable(ctx context.Context, filePath string) (*Table, error) {
	format, err := DetectFormat(filePath)
	if err != nil {
		return nil, err
	}

	file, err := bp.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return bp.ReadTable(ctx, file, filePath, format)
}

// ReadTable loads a table of the given format from r. name is used in
// error messages and logs.
func (bp *BaseParser) ReadTable(ctx context.Context, r io.Reader, name string, format Format) (*Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		table *Table
		err   error
	)
	switch format {
	case FormatCSV:
		table, err = bp.readCSV(ctx, r, name)
	case FormatXLSX:
		table, err = bp.readWorkbook(ctx, r, name)
	default:
		return nil, apperrors.FileError(apperrors.CodeUnsupportedFormat, name, nil)
	}
	if err != nil {
		return nil, err
	}

	bp.logger.WithFields(logger.Fields{
		"table":   name,
		"format":  string(format),
		"columns": len(table.Headers),
		"rows":    table.Len(),
	}).Info("Loaded table")

	return table, nil
}

func (bp *BaseParser) readCSV(ctx context.Context, r io.Reader, name string) (*Table, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, name, err)
	}

	data, err = bp.decode(data, name)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(data))
	bp.configureReader(reader)

	var table *Table
	for {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.ReconciliationError(apperrors.CodeCancelled, "table_loading", err)
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			line := 0
			var csvErr *csv.ParseError
			if stderrors.As(err, &csvErr) {
				line = csvErr.Line
			}
			bp.logger.WithError(err).WithField("table", name).Error("Failed to read CSV record")
			return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, line, "", err)
		}

		line, _ := reader.FieldPos(0)
		if bp.config.SkipEmptyRows && isEmptyRecord(record) {
			continue
		}
		if err := bp.checkFieldSize(record, name, line); err != nil {
			return nil, err
		}

		if table == nil {
			table = NewTable(name, record)
			continue
		}
		table.AddRow(line, record)
	}

	if table == nil {
		return nil, apperrors.ParseError(apperrors.CodeEmptyTable, name, 0, "", nil)
	}
	return table, nil
}

// decode returns UTF-8 data without a byte order mark. Data that is not
// valid UTF-8 is decoded as Windows-1252 when the fallback is enabled.
func (bp *BaseParser) decode(data []byte, name string) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return data, nil
	}

	if !bp.config.FallbackEncoding {
		return nil, apperrors.ParseError(apperrors.CodeEncodingError, name, invalidUTF8Line(data), "",
			fmt.Errorf("invalid UTF-8 encoding detected"))
	}

	bp.logger.WithField("table", name).Debug("Decoding table as Windows-1252")
	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeEncodingError, name, 0, "", err)
	}
	return decoded, nil
}

func invalidUTF8Line(data []byte) int {
	for i, line := range bytes.Split(data, []byte("\n")) {
		if !utf8.Valid(line) {
			return i + 1
		}
	}
	return 0
}

// configureReader sets up the CSV reader with our configuration
func (bp *BaseParser) configureReader(reader *csv.Reader) {
	reader.Comma = bp.config.Delimiter
	reader.Comment = bp.config.Comment
	reader.LazyQuotes = bp.config.LazyQuotes
	reader.FieldsPerRecord = -1 // Variable number of fields
}

func (bp *BaseParser) checkFieldSize(record []string, name string, line int) error {
	if bp.config.MaxFieldSize <= 0 {
		return nil
	}
	for i, field := range record {
		if len(field) > bp.config.MaxFieldSize {
			return apperrors.ParseError(apperrors.CodeInvalidFormat, name, line, fmt.Sprintf("field_%d", i),
				fmt.Errorf("field exceeds maximum size of %d bytes", bp.config.MaxFieldSize))
		}
	}
	return nil
}

// isEmptyRecord checks if all fields in a record are empty or whitespace
func isEmptyRecord(record []string) bool {
	for _, field := range record {
		if strings.TrimSpace(field) != "" {
			return false
		}
	}
	return true
}

// ParseStats holds statistics about record extraction
type ParseStats struct {
	TotalRows    int
	RecordsValid int
	RowsSkipped  int
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Read %d rows, %d records, %d skipped",
		ps.TotalRows, ps.RecordsValid, ps.RowsSkipped)
}
