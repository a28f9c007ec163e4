package parsers

import (
	"context"

	"golang-em-checker/internal/models"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// addressPosition is where the bill export keeps the service address
const addressPosition = 1

// BillParser extracts bill records from the bill table
type BillParser struct {
	*BaseParser
	config *BillConfig
	fields []string
	logger logger.Logger
}

// NewBillParser creates a bill parser reading the given tracked fields
func NewBillParser(config *BillConfig, fields []string) (*BillParser, error) {
	if config == nil {
		config = DefaultBillConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig,
			"bill",
			config.AccountColumn,
			err,
		).WithSuggestion("Check the bill column configuration")
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Sheet = config.Sheet

	log := logger.GetGlobalLogger().WithComponent("bill_parser")
	log.WithFields(logger.Fields{
		"account_column": config.AccountColumn,
		"address_column": config.AddressColumn,
		"fields":         len(fields),
	}).Debug("Created bill parser")

	return &BillParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		fields:     fields,
		logger:     log,
	}, nil
}

// ParseBillFile loads the bill table from a file and extracts its records
func (bp *BillParser) ParseBillFile(ctx context.Context, filePath string) ([]*models.BillRecord, *ParseStats, error) {
	bp.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_bill",
	}).Info("Starting bill parsing")

	table, err := bp.LoadTable(ctx, filePath)
	if err != nil {
		return nil, nil, err
	}
	return bp.ParseBillRecords(table)
}

// ParseBillRecords extracts one record per data row. Only the account column
// is required; tracked fields the table does not carry are absent from every
// record. Rows are kept in table order, including rows without an account id.
func (bp *BillParser) ParseBillRecords(table *Table) ([]*models.BillRecord, *ParseStats, error) {
	stats := &ParseStats{}

	if err := table.RequireColumns(bp.config.AccountColumn); err != nil {
		bp.logger.WithError(err).WithField("table", table.Name).Error("Bill table has no account column")
		return nil, stats, err
	}

	accountIdx := table.ColumnIndex(bp.config.AccountColumn)
	addressIdx := addressPosition
	if bp.config.AddressColumn != "" {
		if err := table.RequireColumns(bp.config.AddressColumn); err != nil {
			return nil, stats, err
		}
		addressIdx = table.ColumnIndex(bp.config.AddressColumn)
	}

	fieldIdx := make(map[string]int, len(bp.fields))
	var absent []string
	for _, field := range bp.fields {
		if idx := table.ColumnIndex(field); idx != -1 {
			fieldIdx[field] = idx
		} else {
			absent = append(absent, field)
		}
	}
	if len(absent) > 0 {
		bp.logger.WithFields(logger.Fields{
			"table":  table.Name,
			"absent": absent,
		}).Warn("Bill table does not carry every tracked field")
	}

	records := make([]*models.BillRecord, 0, table.Len())
	for _, row := range table.Rows {
		stats.TotalRows++

		record := models.NewBillRecord(row.At(accountIdx), row.At(addressIdx), row.Line)
		for _, field := range bp.fields {
			if idx, ok := fieldIdx[field]; ok {
				record.SetRaw(field, row.At(idx))
			}
		}
		if record.AccountID == "" {
			stats.RowsSkipped++
		} else {
			stats.RecordsValid++
		}
		records = append(records, record)
	}

	bp.logger.WithFields(logger.Fields{
		"table":         table.Name,
		"total_rows":    stats.TotalRows,
		"records_valid": stats.RecordsValid,
	}).Info("Bill parsing completed")

	return records, stats, nil
}
