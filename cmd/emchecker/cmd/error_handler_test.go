package cmd

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"syscall"
	"testing"

	"golang-em-checker/pkg/errors"
	"golang-em-checker/pkg/logger"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		expectedCode   int
		expectedOutput []string
	}{
		{
			name:           "nil error",
			err:            nil,
			expectedCode:   0,
			expectedOutput: nil,
		},
		{
			name:         "file not found",
			err:          errors.FileError(errors.CodeFileNotFound, "bill.xlsx", os.ErrNotExist),
			expectedCode: 2,
			expectedOutput: []string{
				"Error while processing files: file not found: bill.xlsx",
				"Suggestion: check if the file path is correct",
			},
		},
		{
			name:         "missing column",
			err:          errors.ParseError(errors.CodeMissingColumn, "em.csv", 0, "Line Item Cost", nil),
			expectedCode: 3,
			expectedOutput: []string{
				"Error while processing files:",
				"Line Item Cost",
			},
		},
		{
			name:         "configuration error",
			err:          errors.ConfigurationError(errors.CodeMissingConfig, "bill-file", "", fmt.Errorf("bill-file is required")),
			expectedCode: 4,
			expectedOutput: []string{
				"Error while processing files:",
				"bill-file is required",
			},
		},
		{
			name:         "cancelled run",
			err:          errors.ReconciliationError(errors.CodeCancelled, "reconcile", fmt.Errorf("context canceled")),
			expectedCode: 5,
			expectedOutput: []string{
				"Error while processing files:",
				"context canceled",
			},
		},
		{
			name:         "path error",
			err:          &os.PathError{Op: "open", Path: "em.csv", Err: syscall.ENOENT},
			expectedCode: 2,
			expectedOutput: []string{
				"Error while processing files: open em.csv",
				"Suggestion: Check if the file path is correct",
			},
		},
		{
			name:         "permission error",
			err:          fmt.Errorf("open report.json: permission denied"),
			expectedCode: 2,
			expectedOutput: []string{
				"Suggestion: Check file permissions",
			},
		},
		{
			name:         "unknown flag",
			err:          fmt.Errorf("unknown flag: --bill"),
			expectedCode: 1,
			expectedOutput: []string{
				"Error while processing files: unknown flag: --bill",
				"emchecker --help",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			handler := &CLIErrorHandler{out: &out, logger: logger.Discard()}

			code := handler.HandleError(tt.err)
			if code != tt.expectedCode {
				t.Errorf("expected exit code %d, got %d", tt.expectedCode, code)
			}

			output := out.String()
			if tt.err == nil && output != "" {
				t.Errorf("expected no output for nil error, got %q", output)
			}
			for _, expected := range tt.expectedOutput {
				if !strings.Contains(output, expected) {
					t.Errorf("expected output to contain %q, got:\n%s", expected, output)
				}
			}
		})
	}
}

func TestHandleErrorSingleMessage(t *testing.T) {
	var out bytes.Buffer
	handler := &CLIErrorHandler{out: &out, logger: logger.Discard()}

	handler.HandleError(errors.ParseError(errors.CodeEmptyTable, "bill.csv", 0, "", nil))

	if count := strings.Count(out.String(), errorPrefix); count != 1 {
		t.Errorf("expected exactly one error message, got %d:\n%s", count, out.String())
	}
}

func TestHandleErrorVerbose(t *testing.T) {
	var out bytes.Buffer
	handler := &CLIErrorHandler{out: &out, logger: logger.Discard(), verbose: true}

	err := errors.FileError(errors.CodeFileNotFound, "em.csv", os.ErrNotExist)
	handler.HandleError(err)

	output := out.String()
	for _, expected := range []string{"Context:", "file_path: em.csv", "File error help:"} {
		if !strings.Contains(output, expected) {
			t.Errorf("expected verbose output to contain %q, got:\n%s", expected, output)
		}
	}
}

func TestGetCategoryHelp(t *testing.T) {
	categories := map[errors.ErrorCategory]string{
		errors.CategoryFile:           "File error help",
		errors.CategoryParse:          "Parse error help",
		errors.CategoryValidation:     "Validation error help",
		errors.CategoryConfiguration:  "Configuration error help",
		errors.CategoryReconciliation: "For more help",
	}

	for category, expected := range categories {
		if help := getCategoryHelp(category); !strings.Contains(help, expected) {
			t.Errorf("help for %s should contain %q, got %q", category, expected, help)
		}
	}
}
