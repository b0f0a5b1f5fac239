// Package errors provides the structured error types used across the
// partlinker pipeline: a typed error with file/row context, an aggregate
// error that enumerates every offender for fatal conditions, and a
// collector for recoverable conditions that must surface in reports
// instead of aborting the run.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"sync"
)

// ErrorType represents different categories of pipeline errors.
type ErrorType string

const (
	ErrorTypeParse     ErrorType = "parse"
	ErrorTypeValue     ErrorType = "value"
	ErrorTypeResolve   ErrorType = "resolve"
	ErrorTypeInventory ErrorType = "inventory"
	ErrorTypeAnnotate  ErrorType = "annotate"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeInternal  ErrorType = "internal"
)

// PipelineError is a structured error with source context.
type PipelineError struct {
	Type        ErrorType
	Code        string
	Message     string
	Cause       error
	FilePath    string
	Line        int
	Reference   string
	Recoverable bool
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Reference != "" {
		parts = append(parts, "ref:"+e.Reference)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is implements error comparison by type and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithLocation adds file location information.
func (e *PipelineError) WithLocation(filePath string, line int) *PipelineError {
	e.FilePath = filePath
	e.Line = line

	return e
}

// WithReference adds the owning component or row reference.
func (e *PipelineError) WithReference(ref string) *PipelineError {
	e.Reference = ref

	return e
}

// NewParseError creates a design file parse error.
func NewParseError(code, message string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeParse,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewValueError creates an invalid component value error.
func NewValueError(code, message string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeValue,
		Code:        code,
		Message:     message,
		Recoverable: true,
	}
}

// NewResolveError creates a project/file resolution error.
func NewResolveError(code, message string) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeResolve,
		Code:        code,
		Message:     message,
		Recoverable: false,
	}
}

// NewInventoryError creates an inventory load error. Recoverable controls
// whether the loader skips the source or aborts the whole load.
func NewInventoryError(code, message string, recoverable bool) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeInventory,
		Code:        code,
		Message:     message,
		Recoverable: recoverable,
	}
}

// NewAnnotateError creates a back-annotation error.
func NewAnnotateError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeAnnotate,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: false,
	}
}

// NewIOError creates an I/O error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:        ErrorTypeIO,
		Code:        code,
		Message:     message,
		Cause:       cause,
		Recoverable: true,
	}
}

// IsRecoverable reports whether err may be logged and skipped rather than
// aborting the operation. Unknown error types are treated as fatal.
func IsRecoverable(err error) bool {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Recoverable
	}

	return false
}

// AggregateError bundles every offending row or file behind one fatal
// condition so the caller sees all offenders at once, not just the first.
type AggregateError struct {
	Message string
	Errors  []error
}

// Error implements the error interface, enumerating every offender.
func (a *AggregateError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d offenders)", a.Message, len(a.Errors))
	for _, err := range a.Errors {
		b.WriteString("\n  - ")
		b.WriteString(err.Error())
	}

	return b.String()
}

// Unwrap exposes the individual offenders to errors.Is/As.
func (a *AggregateError) Unwrap() []error {
	return a.Errors
}

// Aggregate returns nil when errs is empty, the lone error when there is
// exactly one, and an AggregateError otherwise.
func Aggregate(message string, errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return &AggregateError{Message: message, Errors: errs}
	}
}

// Collector accumulates errors during a multi-source scan so the caller
// can keep going and report every offender at once, typically by feeding
// Errors into Aggregate.
type Collector struct {
	errors []error
	mutex  sync.Mutex
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{errors: make([]error, 0)}
}

// Add records an error. Nil errors are ignored.
func (c *Collector) Add(err error) {
	if err == nil {
		return
	}
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.errors = append(c.errors, err)
}

// Errors returns a copy of everything collected so far.
func (c *Collector) Errors() []error {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	result := make([]error, len(c.errors))
	copy(result, c.errors)

	return result
}

// HasErrors reports whether anything was collected.
func (c *Collector) HasErrors() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return len(c.errors) > 0
}
