package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"golang-em-checker/internal/parsers"
	"golang-em-checker/internal/reconciler"
	"golang-em-checker/internal/reporter"
	"golang-em-checker/internal/schema"
	"golang-em-checker/internal/server"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// Configuration keys shared by flags, config files and EMCHECKER_ variables
const (
	KeyBillAccountColumn = "bill.account-column"
	KeyBillAddressColumn = "bill.address-column"
	KeyBillSheet         = "bill.sheet"

	KeyEMAccountColumn = "em.account-column"
	KeyEMTypeColumn    = "em.type-column"
	KeyEMUsageColumn   = "em.usage-column"
	KeyEMCostColumn    = "em.cost-column"
	KeyEMSheet         = "em.sheet"

	KeySentinel         = "sentinel"
	KeySchema           = "schema"
	KeyProgressInterval = "progress-interval"

	KeyLogLevel  = "log.level"
	KeyLogFormat = "log.format"
	KeyLogFile   = "log.file"

	KeyServerAddr    = "server.addr"
	KeyServerOrigins = "server.allowed-origins"
)

// EnvPrefix is the prefix of environment variable overrides
const EnvPrefix = "EMCHECKER"

// SetDefaults registers the default value of every key
func SetDefaults(v *viper.Viper) {
	bill := parsers.DefaultBillConfig()
	v.SetDefault(KeyBillAccountColumn, bill.AccountColumn)
	v.SetDefault(KeyBillAddressColumn, bill.AddressColumn)
	v.SetDefault(KeyBillSheet, bill.Sheet)

	em := parsers.DefaultEMConfig()
	v.SetDefault(KeyEMAccountColumn, em.AccountColumn)
	v.SetDefault(KeyEMTypeColumn, em.TypeColumn)
	v.SetDefault(KeyEMUsageColumn, em.UsageColumn)
	v.SetDefault(KeyEMCostColumn, em.CostColumn)
	v.SetDefault(KeyEMSheet, em.Sheet)

	engine := reconciler.DefaultConfig()
	v.SetDefault(KeySentinel, engine.Sentinel)
	v.SetDefault(KeySchema, "")
	v.SetDefault(KeyProgressInterval, engine.ProgressInterval)

	v.SetDefault(KeyLogLevel, string(logger.WarnLevel))
	v.SetDefault(KeyLogFormat, string(logger.TextFormat))
	v.SetDefault(KeyLogFile, "")

	srv := server.DefaultConfig()
	v.SetDefault(KeyServerAddr, srv.Addr)
	v.SetDefault(KeyServerOrigins, []string{})
}

// BindEnv reads EMCHECKER_ variables for every key, with dots and dashes
// replaced by underscores: EMCHECKER_BILL_ACCOUNT_COLUMN.
func BindEnv(v *viper.Viper) {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

// CreateBillConfig creates the bill loader configuration
func CreateBillConfig(v *viper.Viper) *parsers.BillConfig {
	return &parsers.BillConfig{
		AccountColumn: strings.TrimSpace(v.GetString(KeyBillAccountColumn)),
		AddressColumn: strings.TrimSpace(v.GetString(KeyBillAddressColumn)),
		Sheet:         v.GetString(KeyBillSheet),
	}
}

// CreateEMConfig creates the Energy Manager loader configuration
func CreateEMConfig(v *viper.Viper) *parsers.EMConfig {
	return &parsers.EMConfig{
		AccountColumn: strings.TrimSpace(v.GetString(KeyEMAccountColumn)),
		TypeColumn:    strings.TrimSpace(v.GetString(KeyEMTypeColumn)),
		UsageColumn:   strings.TrimSpace(v.GetString(KeyEMUsageColumn)),
		CostColumn:    strings.TrimSpace(v.GetString(KeyEMCostColumn)),
		Sheet:         v.GetString(KeyEMSheet),
	}
}

// CreateReconcilerConfig creates the engine configuration
func CreateReconcilerConfig(v *viper.Viper, showProgress bool) *reconciler.Config {
	config := reconciler.DefaultConfig()

	config.Sentinel = v.GetString(KeySentinel)
	config.ProgressReporting = showProgress
	if interval := v.GetDuration(KeyProgressInterval); interval > 0 {
		config.ProgressInterval = interval
	}

	return config
}

// LoadSchema returns the schema override file when one is configured and
// the built-in correspondences otherwise
func LoadSchema(v *viper.Viper) (*schema.Schema, error) {
	path := strings.TrimSpace(v.GetString(KeySchema))
	if path == "" {
		return schema.Default(), nil
	}
	return schema.LoadFile(path)
}

// CreateReportConfig creates a report configuration for the specified output
// format. Colors are used only for console output to a terminal.
func CreateReportConfig(format string, noColor bool, output *os.File) (*reporter.ReportConfig, error) {
	outputFormat, err := reporter.ParseFormat(format)
	if err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-format", format, err).
			WithSuggestion("Use one of: console, table, json, yaml, csv")
	}

	config := reporter.DefaultReportConfig()
	config.Format = outputFormat
	config.UseColors = !noColor && outputFormat == reporter.FormatConsole && reporter.IsTerminal(output)

	return config, nil
}

// CreateLoggerConfig creates the logger configuration. verbose raises the
// level to debug.
func CreateLoggerConfig(v *viper.Viper, verbose bool) (*logger.Config, error) {
	var config *logger.Config
	if file := strings.TrimSpace(v.GetString(KeyLogFile)); file != "" {
		config = logger.FileConfig(file)
	} else {
		config = logger.DefaultConfig()
	}

	config.Level = logger.Level(strings.ToLower(v.GetString(KeyLogLevel)))
	config.Format = logger.Format(strings.ToLower(v.GetString(KeyLogFormat)))
	if verbose {
		config.Level = logger.DebugLevel
	}

	if err := config.Validate(); err != nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "log", config.Level, err).
			WithSuggestion("Log level must be debug, info, warn or error and format text or json")
	}
	return config, nil
}

// CreateServerConfig creates the HTTP host configuration
func CreateServerConfig(v *viper.Viper) *server.Config {
	config := server.DefaultConfig()

	if addr := strings.TrimSpace(v.GetString(KeyServerAddr)); addr != "" {
		config.Addr = addr
	}
	config.AllowedOrigins = v.GetStringSlice(KeyServerOrigins)

	return config
}

// ShutdownTimeout bounds graceful shutdown of the HTTP host
const ShutdownTimeout = 10 * time.Second

// ValidateConfig validates the loader and engine configuration together
func ValidateConfig(bill *parsers.BillConfig, em *parsers.EMConfig, engine *reconciler.Config) error {
	if err := bill.Validate(); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "bill", bill.AccountColumn, err)
	}
	if err := em.Validate(); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "em", em.RequiredColumns(), err)
	}
	if err := engine.Validate(); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, KeySentinel, engine.Sentinel, err)
	}
	return nil
}

// Describe renders the effective configuration for verbose output
func Describe(bill *parsers.BillConfig, em *parsers.EMConfig, s *schema.Schema) string {
	var b strings.Builder
	address := bill.AddressColumn
	if address == "" {
		address = "(second column)"
	}
	fmt.Fprintf(&b, "Bill columns: account=%q address=%s\n", bill.AccountColumn, address)
	fmt.Fprintf(&b, "EM columns: %s\n", strings.Join(em.RequiredColumns(), ", "))
	fmt.Fprintf(&b, "Correspondences: %d\n", s.Len())
	for _, c := range s.Correspondences() {
		fmt.Fprintf(&b, "  %s\n", c)
	}
	return b.String()
}
