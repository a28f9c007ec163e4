package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"golang-em-checker/cmd/emchecker/config"
	"golang-em-checker/internal/reconciler"
	"golang-em-checker/internal/reporter"
	apperrors "golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// Flags for the reconcile command
var (
	billFile     string
	emFile       string
	schemaFile   string
	outputFormat string
	outputFile   string
	showProgress bool
	noColor      bool
)

// reconcileCmd represents the reconcile command
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Check a bill export against an Energy Manager export",
	Long: `Reconcile compares every account row of the bill table with the
Energy Manager line items of that account. Each tracked bill field must
match one of the EM values recorded for its utility type.

This command requires:
- A bill file (.xlsx, .xlsm or .csv) with an ACCT# column
- An Energy Manager export (.csv or .xlsx)

Examples:
  # Basic reconciliation
  emchecker reconcile --bill-file bill.xlsx --em-file em.csv

  # Structured output to a file
  emchecker reconcile --bill-file bill.xlsx --em-file em.csv \
    --output-format json --output-file report.json

  # Site-specific correspondences
  emchecker reconcile --bill-file bill.xlsx --em-file em.csv --schema site.yaml

  # With progress logging
  emchecker reconcile --bill-file bill.xlsx --em-file em.csv --progress --log-level info`,

	PreRunE: validateReconcileFlags,
	RunE:    runReconcile,
}

func init() {
	rootCmd.AddCommand(reconcileCmd)

	// Required flags
	reconcileCmd.Flags().StringVarP(&billFile, "bill-file", "b", "", "path to the bill file (required)")
	reconcileCmd.Flags().StringVarP(&emFile, "em-file", "e", "", "path to the Energy Manager export (required)")

	// Schema flags
	reconcileCmd.Flags().StringVar(&schemaFile, "schema", "", "YAML file overriding the bill to EM correspondences")

	// Output flags
	reconcileCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, table, json, yaml, csv")
	reconcileCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")

	// UI flags
	reconcileCmd.Flags().BoolVar(&showProgress, "progress", false, "log reconciliation progress")
	reconcileCmd.Flags().BoolVar(&noColor, "no-color", false, "disable colored output")

	// Bind flags to viper
	viper.BindPFlag("bill-file", reconcileCmd.Flags().Lookup("bill-file"))
	viper.BindPFlag("em-file", reconcileCmd.Flags().Lookup("em-file"))
	viper.BindPFlag(config.KeySchema, reconcileCmd.Flags().Lookup("schema"))
	viper.BindPFlag("output-format", reconcileCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", reconcileCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("progress", reconcileCmd.Flags().Lookup("progress"))
	viper.BindPFlag("no-color", reconcileCmd.Flags().Lookup("no-color"))
}

func validateReconcileFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	billFile = viper.GetString("bill-file")
	emFile = viper.GetString("em-file")
	schemaFile = viper.GetString(config.KeySchema)
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	showProgress = viper.GetBool("progress")
	noColor = viper.GetBool("no-color")

	// Validate required flags
	if billFile == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "bill-file", "", fmt.Errorf("bill-file is required")).
			WithSuggestion("Pass --bill-file with the bill export")
	}
	if emFile == "" {
		return apperrors.ConfigurationError(apperrors.CodeMissingConfig, "em-file", "", fmt.Errorf("em-file is required")).
			WithSuggestion("Pass --em-file with the Energy Manager export")
	}

	// Validate file existence
	if err := validateFileExists(billFile, "bill file"); err != nil {
		return err
	}
	if err := validateFileExists(emFile, "Energy Manager file"); err != nil {
		return err
	}
	if schemaFile != "" {
		if err := validateFileExists(schemaFile, "schema file"); err != nil {
			return err
		}
	}

	// Validate output format
	if _, err := reporter.ParseFormat(outputFormat); err != nil {
		return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-format", outputFormat, err).
			WithSuggestion("Use one of: console, table, json, yaml, csv")
	}

	// Validate output file directory exists if specified
	if outputFile != "" {
		dir := filepath.Dir(outputFile)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return apperrors.ConfigurationError(apperrors.CodeInvalidConfig, "output-file", outputFile,
					fmt.Errorf("output directory does not exist: %s", dir))
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return apperrors.ValidationError(apperrors.CodeMissingField, description, filePath,
			fmt.Errorf("%s path cannot be empty", description))
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return apperrors.FileError(apperrors.CodeFileNotFound, filePath, err).
			WithContext("description", description)
	}
	if err != nil {
		return apperrors.FileError(apperrors.CodeFilePermission, filePath, err)
	}

	if info.IsDir() {
		return apperrors.FileError(apperrors.CodeUnsupportedFormat, filePath,
			fmt.Errorf("%s is a directory, expected a file", description))
	}

	return nil
}

func runReconcile(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	v := viper.GetViper()
	out := cmd.OutOrStdout()

	billConfig := config.CreateBillConfig(v)
	emConfig := config.CreateEMConfig(v)
	reconcilerConfig := config.CreateReconcilerConfig(v, showProgress)
	if err := config.ValidateConfig(billConfig, emConfig, reconcilerConfig); err != nil {
		return err
	}

	s, err := config.LoadSchema(v)
	if err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "Starting reconciliation...\n")
		fmt.Fprintf(cmd.ErrOrStderr(), "Bill file: %s\n", billFile)
		fmt.Fprintf(cmd.ErrOrStderr(), "EM file: %s\n", emFile)
		fmt.Fprintf(cmd.ErrOrStderr(), "Output format: %s\n", outputFormat)
		fmt.Fprint(cmd.ErrOrStderr(), config.Describe(billConfig, emConfig, s))
	}

	service, err := reconciler.NewReconciliationService(billConfig, emConfig, s, reconcilerConfig)
	if err != nil {
		return err
	}

	report, err := service.ProcessReconciliation(ctx, &reconciler.ReconciliationRequest{
		BillFile: billFile,
		EMFile:   emFile,
	})
	if err != nil {
		return err
	}

	// Determine output destination
	var terminal *os.File
	if outputFile != "" {
		file, err := os.Create(outputFile)
		if err != nil {
			return apperrors.FileError(apperrors.CodeFilePermission, outputFile, err)
		}
		defer file.Close()
		out = file
	} else if f, ok := out.(*os.File); ok {
		terminal = f
	}

	reportConfig, err := config.CreateReportConfig(outputFormat, noColor, terminal)
	if err != nil {
		return err
	}
	generator, err := reporter.NewSafeReportGenerator(reportConfig, logger.GetGlobalLogger())
	if err != nil {
		return err
	}
	if err := generator.GenerateReportSafely(report, out); err != nil {
		return err
	}

	if viper.GetBool("verbose") {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nReconciliation completed: %d accounts, %d in error, %d findings.\n",
			report.Len(), report.ErrorCount(), len(report.Details))
		if outputFile != "" {
			fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", strings.TrimSpace(outputFile))
		}
	}

	return nil
}
