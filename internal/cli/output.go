package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	appErrors "github.com/noah-isme/enrollment-ledger/pkg/errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess     = 0
	ExitFailure     = 1 // unclassified failure
	ExitUsage       = 2 // bad flags, arguments or configuration
	ExitNotFound    = 3
	ExitConflict    = 4
	ExitUnavailable = 5 // the database could not be reached
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Ledger errors map by
// their code; anything else is ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	switch {
	case errors.Is(err, appErrors.ErrValidation):
		return ExitUsage
	case errors.Is(err, appErrors.ErrNotFound):
		return ExitNotFound
	case errors.Is(err, appErrors.ErrConflict):
		return ExitConflict
	case errors.Is(err, appErrors.ErrUnavailable):
		return ExitUnavailable
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format string
	Writer io.Writer
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string      `json:"status"`
	Data   interface{} `json:"data,omitempty"`
	Error  *CLIError   `json:"error,omitempty"`
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Success writes data as JSON, or calls text for human-readable output.
func (f *OutputFormatter) Success(data interface{}, text func(w io.Writer)) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "ok", Data: data})
	}
	text(f.Writer)
	return nil
}

// Table renders rows as aligned columns in text mode.
func (f *OutputFormatter) Table(data interface{}, headers []string, rows [][]string) error {
	return f.Success(data, func(w io.Writer) {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		writeRow(tw, headers)
		for _, row := range rows {
			writeRow(tw, row)
		}
		_ = tw.Flush()
	})
}

// Error writes err in the configured format.
func (f *OutputFormatter) Error(err error) {
	appErr := appErrors.FromError(err)
	code, message := appErr.Code, err.Error()
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		code = fmt.Sprintf("E%03d", exitErr.Code)
	}
	if f.Format == "json" {
		_ = json.NewEncoder(f.Writer).Encode(CLIResponse{Status: "error", Error: &CLIError{Code: code, Message: message}})
		return
	}
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
}

func writeRow(w io.Writer, cells []string) {
	for i, cell := range cells {
		if i > 0 {
			fmt.Fprint(w, "\t")
		}
		fmt.Fprint(w, cell)
	}
	fmt.Fprintln(w)
}
