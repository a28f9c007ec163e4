package parsers

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// readWorkbook reads the configured sheet of an Excel workbook. Cells are
// read raw so number formats such as currency or thousands separators never
// leak into values.
func (bp *BaseParser) readWorkbook(ctx context.Context, r io.Reader, name string) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		bp.logger.WithError(err).WithField("table", name).Error("Failed to open workbook")
		return nil, apperrors.FileError(apperrors.CodeFileCorrupted, name, err)
	}
	defer f.Close()

	sheet, err := bp.selectSheet(f, name)
	if err != nil {
		return nil, err
	}

	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, apperrors.ParseError(apperrors.CodeInvalidFormat, name, 0, "", err)
	}

	bp.logger.WithFields(logger.Fields{
		"table": name,
		"sheet": sheet,
		"rows":  len(rows),
	}).Debug("Read workbook sheet")

	var table *Table
	for i, cells := range rows {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.ReconciliationError(apperrors.CodeCancelled, "table_loading", err)
		}

		line := i + 1
		if bp.config.SkipEmptyRows && isEmptyRecord(cells) {
			continue
		}
		if err := bp.checkFieldSize(cells, name, line); err != nil {
			return nil, err
		}

		for j, cell := range cells {
			cells[j] = normalizeNumber(cell)
		}

		if table == nil {
			table = NewTable(name, cells)
			continue
		}
		table.AddRow(line, cells)
	}

	if table == nil {
		return nil, apperrors.ParseError(apperrors.CodeEmptyTable, name, 0, "", nil)
	}
	return table, nil
}

func (bp *BaseParser) selectSheet(f *excelize.File, name string) (string, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return "", apperrors.ParseError(apperrors.CodeEmptyTable, name, 0, "", fmt.Errorf("workbook has no sheets"))
	}

	if bp.config.Sheet == "" {
		return sheets[0], nil
	}
	for _, sheet := range sheets {
		if sheet == bp.config.Sheet {
			return sheet, nil
		}
	}

	return "", apperrors.ConfigurationError(
		apperrors.CodeInvalidConfig,
		"sheet",
		bp.config.Sheet,
		fmt.Errorf("sheet not found in %s", name),
	).WithSuggestion(fmt.Sprintf("Available sheets: %s", strings.Join(sheets, ", ")))
}

// normalizeNumber rewrites raw floating point cells such as
// "45.100000000000001" to their shortest form. Integers and text are kept
// as stored so account numbers with leading zeros survive.
func normalizeNumber(raw string) string {
	if !strings.ContainsAny(raw, ".eE") {
		return raw
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return raw
	}
	short := strconv.FormatFloat(f, 'f', -1, 64)
	if len(short) < len(raw) {
		return short
	}
	return raw
}
