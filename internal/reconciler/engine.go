package reconciler

import (
	"fmt"
	"strings"
	"time"

	"golang-em-checker/internal/matcher"
	"golang-em-checker/internal/models"
	"golang-em-checker/internal/schema"
	"golang-em-checker/pkg/logger"
)

// Config holds configuration options for the reconciliation engine
type Config struct {
	// Sentinel is the account placeholder carried by header and footer rows
	Sentinel string

	// Processing options
	ProgressReporting bool
	ProgressInterval  time.Duration
}

// DefaultConfig returns a default configuration for the reconciliation engine
func DefaultConfig() *Config {
	return &Config{
		Sentinel:          schema.DefaultSentinel,
		ProgressReporting: false,
		ProgressInterval:  5 * time.Second,
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Sentinel) == "" {
		return fmt.Errorf("sentinel must not be empty")
	}

	if c.ProgressInterval < 0 {
		return fmt.Errorf("progress interval must not be negative, got %s", c.ProgressInterval)
	}

	return nil
}

// Engine compares bill records against EM line items. It holds no state
// between runs.
type Engine struct {
	schema *schema.Schema
	config *Config
	logger logger.Logger
}

// NewEngine creates an engine for the given schema
func NewEngine(s *schema.Schema, config *Config) (*Engine, error) {
	if s == nil {
		s = schema.Default()
	}
	if config == nil {
		config = DefaultConfig()
	}

	if err := s.Validate(); err != nil {
		return nil, err
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid engine configuration: %w", err)
	}

	return &Engine{
		schema: s,
		config: config,
		logger: logger.GetGlobalLogger().WithComponent("engine"),
	}, nil
}

// Schema returns the correspondence schema the engine checks
func (e *Engine) Schema() *schema.Schema {
	return e.schema
}

// Reconcile checks every bill row against the EM line items and returns the
// verdicts in bill order.
func (e *Engine) Reconcile(bills []*models.BillRecord, items []*models.EMLineItem) *Report {
	index := matcher.NewLineItemIndex(items)
	stats := index.GetIndexStats()

	e.logger.WithFields(logger.Fields{
		"bill_rows":       len(bills),
		"em_line_items":   stats.TotalLineItems,
		"em_accounts":     stats.UniqueAccounts,
		"utility_types":   stats.UniqueTypes,
		"correspondences": e.schema.Len(),
	}).Debug("Built EM line item index")

	var progress *logger.ProgressTracker
	if e.config.ProgressReporting {
		progress = logger.NewProgressTracker(logger.ProgressConfig{
			Operation:   "reconcile",
			Total:       int64(len(bills)),
			LogInterval: e.config.ProgressInterval,
			Logger:      e.logger,
		})
	}

	report := NewReport()
	skipped := 0
	for _, bill := range bills {
		if progress != nil {
			progress.Increment()
		}
		if bill == nil || bill.IsSkippable(e.config.Sentinel) {
			skipped++
			continue
		}
		report.Record(e.checkAccount(bill, index))
	}

	if progress != nil {
		progress.Complete()
	}

	e.logger.WithFields(logger.Fields{
		"accounts":     report.Len(),
		"errors":       report.ErrorCount(),
		"findings":     len(report.Details),
		"rows_skipped": skipped,
	}).Info("Reconciliation completed")

	return report
}

// checkAccount evaluates one bill row. An account absent from the EM export
// yields a single finding and no field checks.
func (e *Engine) checkAccount(bill *models.BillRecord, index *matcher.LineItemIndex) *AccountResult {
	result := &AccountResult{
		AccountID: bill.AccountID,
		Address:   bill.Address,
		Line:      bill.Line,
		Status:    StatusOK,
	}

	if !index.HasAccount(bill.AccountID) {
		result.Status = StatusError
		result.Findings = append(result.Findings, &Finding{
			Kind:      FindingAccountNotFound,
			AccountID: bill.AccountID,
			Address:   bill.Address,
		})
		return result
	}

	for _, c := range e.schema.Correspondences() {
		billValue, ok := bill.Value(c.BillField)
		if !ok {
			continue
		}

		match := matcher.CompareField(billValue, index.GetByType(bill.AccountID, c.UtilityType), c.EMField)
		result.Fields = append(result.Fields, &FieldResult{
			BillField:   c.BillField,
			UtilityType: c.UtilityType,
			EMField:     c.EMField,
			Outcome:     match.Outcome,
			BillValue:   match.BillValue,
			EMValues:    match.EMValues,
		})

		if finding := newFieldFinding(bill, c, match); finding != nil {
			result.Status = StatusError
			result.Findings = append(result.Findings, finding)
		}
	}

	return result
}

func newFieldFinding(bill *models.BillRecord, c schema.Correspondence, match matcher.MatchResult) *Finding {
	finding := &Finding{
		AccountID:   bill.AccountID,
		Address:     bill.Address,
		BillField:   c.BillField,
		UtilityType: c.UtilityType,
	}

	switch match.Outcome {
	case matcher.OutcomeMissingInEM:
		finding.Kind = FindingMissingInEM
	case matcher.OutcomeMismatch:
		billValue := match.BillValue
		finding.Kind = FindingValueMismatch
		finding.BillValue = &billValue
		finding.EMValues = match.EMValues
	default:
		return nil
	}

	return finding
}
