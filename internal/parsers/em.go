package parsers

import (
	"context"

	"golang-em-checker/internal/models"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// EMParser extracts line items from the Energy Manager export
type EMParser struct {
	*BaseParser
	config *EMConfig
	logger logger.Logger
}

// NewEMParser creates a new EMParser with the given configuration
func NewEMParser(config *EMConfig) (*EMParser, error) {
	if config == nil {
		config = DefaultEMConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(
			apperrors.CodeInvalidConfig,
			"em",
			config.RequiredColumns(),
			err,
		).WithSuggestion("Check the Energy Manager column configuration")
	}

	parseConfig := DefaultParseConfig()
	parseConfig.Sheet = config.Sheet

	log := logger.GetGlobalLogger().WithComponent("em_parser")
	log.WithField("required_columns", config.RequiredColumns()).Debug("Created EM parser")

	return &EMParser{
		BaseParser: NewBaseParser(parseConfig),
		config:     config,
		logger:     log,
	}, nil
}

// ParseEMFile loads the EM export from a file and extracts its line items
func (ep *EMParser) ParseEMFile(ctx context.Context, filePath string) ([]*models.EMLineItem, *ParseStats, error) {
	ep.logger.WithFields(logger.Fields{
		"file_path": filePath,
		"operation": "parse_em",
	}).Info("Starting EM parsing")

	table, err := ep.LoadTable(ctx, filePath)
	if err != nil {
		return nil, nil, err
	}
	return ep.ParseEMLineItems(table)
}

// ParseEMLineItems extracts one line item per data row. All four configured
// columns are required.
func (ep *EMParser) ParseEMLineItems(table *Table) ([]*models.EMLineItem, *ParseStats, error) {
	stats := &ParseStats{}

	if err := table.RequireColumns(ep.config.RequiredColumns()...); err != nil {
		ep.logger.WithError(err).WithField("table", table.Name).Error("EM table is missing required columns")
		return nil, stats, err
	}

	accountIdx := table.ColumnIndex(ep.config.AccountColumn)
	typeIdx := table.ColumnIndex(ep.config.TypeColumn)
	usageIdx := table.ColumnIndex(ep.config.UsageColumn)
	costIdx := table.ColumnIndex(ep.config.CostColumn)

	items := make([]*models.EMLineItem, 0, table.Len())
	for _, row := range table.Rows {
		stats.TotalRows++

		item := models.NewEMLineItem(
			row.At(accountIdx),
			row.At(typeIdx),
			row.At(usageIdx),
			row.At(costIdx),
			row.Line,
		)
		if item.AccountID == "" {
			stats.RowsSkipped++
		} else {
			stats.RecordsValid++
		}
		items = append(items, item)
	}

	ep.logger.WithFields(logger.Fields{
		"table":         table.Name,
		"total_rows":    stats.TotalRows,
		"records_valid": stats.RecordsValid,
	}).Info("EM parsing completed")

	return items, stats, nil
}
