package reconciler

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"golang-em-checker/internal/models"
	"golang-em-checker/internal/parsers"
	"golang-em-checker/internal/schema"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// ReconciliationService orchestrates the complete reconciliation process
type ReconciliationService struct {
	billParser *parsers.BillParser
	emParser   *parsers.EMParser
	engine     *Engine
	config     *Config
	logger     logger.Logger
}

// ReconciliationRequest names the two tables of one run
type ReconciliationRequest struct {
	BillFile string
	EMFile   string
}

// Validate validates the reconciliation request
func (r *ReconciliationRequest) Validate() error {
	if r.BillFile == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "bill_file", r.BillFile,
			fmt.Errorf("bill file path is required"))
	}

	if r.EMFile == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, "em_file", r.EMFile,
			fmt.Errorf("energy manager file path is required"))
	}

	return nil
}

// Source is a table supplied as a stream, such as an uploaded file. Name
// selects the format by its extension.
type Source struct {
	Name   string
	Reader io.Reader
}

// NewReconciliationService creates a new reconciliation service
func NewReconciliationService(
	billConfig *parsers.BillConfig,
	emConfig *parsers.EMConfig,
	s *schema.Schema,
	config *Config,
) (*ReconciliationService, error) {

	if s == nil {
		s = schema.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "reconciler", config.Sentinel, err)
	}

	engine, err := NewEngine(s, config)
	if err != nil {
		return nil, err
	}

	billParser, err := parsers.NewBillParser(billConfig, s.BillFields())
	if err != nil {
		return nil, err
	}

	emParser, err := parsers.NewEMParser(emConfig)
	if err != nil {
		return nil, err
	}

	return &ReconciliationService{
		billParser: billParser,
		emParser:   emParser,
		engine:     engine,
		config:     config,
		logger:     logger.GetGlobalLogger().WithComponent("reconciliation_service"),
	}, nil
}

// ProcessReconciliation loads both files and reconciles them. Any load
// failure aborts the run with a single error and no report.
func (rs *ReconciliationService) ProcessReconciliation(
	ctx context.Context,
	request *ReconciliationRequest,
) (*Report, error) {

	if err := request.Validate(); err != nil {
		return nil, err
	}

	return rs.run(ctx, request.BillFile, request.EMFile,
		func(ctx context.Context) ([]*models.BillRecord, error) {
			records, _, err := rs.billParser.ParseBillFile(ctx, request.BillFile)
			return records, err
		},
		func(ctx context.Context) ([]*models.EMLineItem, error) {
			items, _, err := rs.emParser.ParseEMFile(ctx, request.EMFile)
			return items, err
		},
	)
}

// ProcessSources reconciles two streamed tables
func (rs *ReconciliationService) ProcessSources(ctx context.Context, bill, em Source) (*Report, error) {
	if bill.Reader == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "bill", bill.Name,
			fmt.Errorf("bill table is required"))
	}
	if em.Reader == nil {
		return nil, apperrors.ValidationError(apperrors.CodeMissingField, "em", em.Name,
			fmt.Errorf("energy manager table is required"))
	}

	return rs.run(ctx, bill.Name, em.Name,
		func(ctx context.Context) ([]*models.BillRecord, error) {
			table, err := readSource(ctx, rs.billParser.BaseParser, bill)
			if err != nil {
				return nil, err
			}
			records, _, err := rs.billParser.ParseBillRecords(table)
			return records, err
		},
		func(ctx context.Context) ([]*models.EMLineItem, error) {
			table, err := readSource(ctx, rs.emParser.BaseParser, em)
			if err != nil {
				return nil, err
			}
			items, _, err := rs.emParser.ParseEMLineItems(table)
			return items, err
		},
	)
}

func readSource(ctx context.Context, bp *parsers.BaseParser, source Source) (*parsers.Table, error) {
	format, err := parsers.DetectFormat(source.Name)
	if err != nil {
		return nil, err
	}
	return bp.ReadTable(ctx, source.Reader, source.Name, format)
}

func (rs *ReconciliationService) run(
	ctx context.Context,
	billName, emName string,
	loadBills func(context.Context) ([]*models.BillRecord, error),
	loadItems func(context.Context) ([]*models.EMLineItem, error),
) (*Report, error) {

	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.New().String()
	op := logger.NewOperationLogger("reconciliation", rs.logger.WithField("run_id", runID))
	startTime := time.Now()

	// Step 1: Load the bill table
	if err := checkCancelled(ctx, "bill_loading"); err != nil {
		op.Error(err, "Reconciliation cancelled")
		return nil, err
	}
	op.Step("load_bill", logger.Fields{"bill_file": billName})
	bills, err := loadBills(ctx)
	if err != nil {
		op.Error(err, "Failed to load bill table")
		return nil, err
	}

	// Step 2: Load the Energy Manager table
	if err := checkCancelled(ctx, "em_loading"); err != nil {
		op.Error(err, "Reconciliation cancelled")
		return nil, err
	}
	op.Step("load_em", logger.Fields{"em_file": emName})
	items, err := loadItems(ctx)
	if err != nil {
		op.Error(err, "Failed to load Energy Manager table")
		return nil, err
	}

	// Step 3: Reconcile
	if err := checkCancelled(ctx, "reconciliation"); err != nil {
		op.Error(err, "Reconciliation cancelled")
		return nil, err
	}
	op.Step("reconcile", logger.Fields{
		"bill_rows":     len(bills),
		"em_line_items": len(items),
	})
	report := rs.engine.Reconcile(bills, items)

	op.Success("Reconciliation finished", logger.Fields{
		"accounts": report.Len(),
		"errors":   report.ErrorCount(),
		"findings": len(report.Details),
		"duration": time.Since(startTime).String(),
	})

	return report, nil
}

func checkCancelled(ctx context.Context, operation string) error {
	if err := ctx.Err(); err != nil {
		return apperrors.ReconciliationError(apperrors.CodeCancelled, operation, err)
	}
	return nil
}

// Engine returns the engine the service runs
func (rs *ReconciliationService) Engine() *Engine {
	return rs.engine
}

// GetConfiguration returns the current configuration
func (rs *ReconciliationService) GetConfiguration() *Config {
	return rs.config
}
