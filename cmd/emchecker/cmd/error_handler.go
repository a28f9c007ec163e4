package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/viper"

	"golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

// errorPrefix starts the single top-level message of a failed run
const errorPrefix = "Error while processing files"

// CLIErrorHandler provides user-friendly error handling for CLI operations
type CLIErrorHandler struct {
	out     io.Writer
	logger  logger.Logger
	verbose bool
}

// NewCLIErrorHandler creates a new CLI error handler writing to out
func NewCLIErrorHandler(out io.Writer) *CLIErrorHandler {
	if out == nil {
		out = os.Stderr
	}
	return &CLIErrorHandler{
		out:     out,
		logger:  logger.GetGlobalLogger().WithComponent("cli"),
		verbose: viper.GetBool("verbose"),
	}
}

// HandleError prints one message for err and returns the exit code
func (h *CLIErrorHandler) HandleError(err error) int {
	if err == nil {
		return 0
	}

	h.logger.WithError(err).Error("Command failed")

	if reconcilerErr, ok := errors.AsReconcilerError(err); ok {
		return h.handleReconcilerError(reconcilerErr)
	}

	return h.handleGenericError(err)
}

// handleReconcilerError prints the message, its suggestion and, in verbose
// mode, the context and category help
func (h *CLIErrorHandler) handleReconcilerError(err *errors.ReconcilerError) int {
	fmt.Fprintf(h.out, "%s: %s\n", errorPrefix, err.Error())

	if err.Suggestion != "" {
		fmt.Fprintf(h.out, "Suggestion: %s\n", err.Suggestion)
	}

	if h.verbose {
		if len(err.Context) > 0 {
			fmt.Fprintf(h.out, "\nContext:\n")
			for key, value := range err.Context {
				fmt.Fprintf(h.out, "  %s: %v\n", key, value)
			}
		}
		fmt.Fprintf(h.out, "\n%s\n", getCategoryHelp(err.Category))
	}

	return err.GetExitCode()
}

// handleGenericError handles non-ReconcilerError types
func (h *CLIErrorHandler) handleGenericError(err error) int {
	fmt.Fprintf(h.out, "%s: %v\n", errorPrefix, err)

	switch {
	case isFileNotFoundError(err):
		fmt.Fprintf(h.out, "Suggestion: Check if the file path is correct and the file exists\n")
		return 2
	case isPermissionError(err):
		fmt.Fprintf(h.out, "Suggestion: Check file permissions and ensure you have read access\n")
		return 2
	case isDiskFullError(err):
		fmt.Fprintf(h.out, "Suggestion: Free up disk space and try again\n")
		return 2
	}

	if strings.Contains(err.Error(), "unknown flag") || strings.Contains(err.Error(), "unknown command") {
		fmt.Fprintf(h.out, "Suggestion: Use 'emchecker --help' to see the available commands and flags\n")
	}

	return 1
}

// getCategoryHelp returns category-specific help text
func getCategoryHelp(category errors.ErrorCategory) string {
	switch category {
	case errors.CategoryFile:
		return `File error help:
• Check if the file exists and is readable
• Verify the file path is correct (use absolute paths if needed)
• Bill files must be .xlsx, .xlsm or .csv; EM exports .csv or .xlsx`

	case errors.CategoryParse:
		return `Parse error help:
• Check that the first row holds the column headers
• The bill needs an ACCT# column
• The EM export needs Account Number, Line Item Type Name, Line Item Usage and Line Item Cost
• Column names can be changed with the bill.* and em.* settings`

	case errors.CategoryValidation:
		return `Validation error help:
• Check that all required flags have values
• Use 'emchecker reconcile --help' for examples`

	case errors.CategoryConfiguration:
		return `Configuration error help:
• Check your command-line flags and arguments
• Verify configuration file syntax if using --config
• Check EMCHECKER_ environment variables and the .env file`

	default:
		return `For more help:
• Use 'emchecker --help' for general help
• Run with --verbose for detailed logs`
	}
}

// Error detection helpers

func isFileNotFoundError(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file or directory")
}

func isPermissionError(err error) bool {
	return os.IsPermission(err) ||
		strings.Contains(err.Error(), "permission denied") ||
		strings.Contains(err.Error(), "access denied")
}

func isDiskFullError(err error) bool {
	if err == syscall.ENOSPC {
		return true
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "no space left") ||
		strings.Contains(errStr, "disk full")
}
