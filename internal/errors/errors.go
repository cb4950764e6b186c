// Package errors defines the structured error type used across the
// export pipeline. Every stage surfaces the first error it encounters
// as an ExportError carrying the error kind, the pipeline stage and
// the offending artifact (module, marker or path), so the orchestrator
// can report a single human-readable failure per export.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind categorizes an export failure.
type Kind string

const (
	// KindConfiguration marks a malformed or incomplete export request.
	KindConfiguration Kind = "configuration"
	// KindIO marks a failed file system operation; Artifact carries the path.
	KindIO Kind = "io"
	// KindGeneration marks a code generator failure; Artifact carries the
	// module identifier.
	KindGeneration Kind = "generation"
	// KindTemplate marks an unresolved or malformed placeholder; Artifact
	// carries the marker name.
	KindTemplate Kind = "template"
	// KindTool marks an external minifier or packaging tool failure.
	KindTool Kind = "tool"
)

// ExportError is the structured error type for the export pipeline.
type ExportError struct {
	Kind     Kind
	Code     string
	Message  string
	Stage    string
	Artifact string
	Cause    error
}

// Error implements the error interface.
func (e *ExportError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}
	if e.Stage != "" {
		parts = append(parts, "stage:"+e.Stage)
	}
	if e.Artifact != "" {
		parts = append(parts, e.Artifact)
	}

	parts = append(parts, e.Message)
	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *ExportError) Unwrap() error {
	return e.Cause
}

// Is matches errors by kind and code.
func (e *ExportError) Is(target error) bool {
	var t *ExportError
	if errors.As(target, &t) {
		return e.Kind == t.Kind && (t.Code == "" || e.Code == t.Code)
	}

	return false
}

// WithStage records the pipeline stage that surfaced the error.
func (e *ExportError) WithStage(stage string) *ExportError {
	e.Stage = stage

	return e
}

// WithArtifact records the offending module, marker or path.
func (e *ExportError) WithArtifact(artifact string) *ExportError {
	e.Artifact = artifact

	return e
}

// Error creation functions

// NewConfigurationError creates an error for a malformed export request.
func NewConfigurationError(code, message string) *ExportError {
	return &ExportError{
		Kind:    KindConfiguration,
		Code:    code,
		Message: message,
	}
}

// NewIOError creates an error for a failed file system operation.
func NewIOError(code, message, path string, cause error) *ExportError {
	return &ExportError{
		Kind:     KindIO,
		Code:     code,
		Message:  message,
		Artifact: path,
		Cause:    cause,
	}
}

// NewGenerationError creates an error for a failed code generation.
func NewGenerationError(code, message, moduleID string, cause error) *ExportError {
	return &ExportError{
		Kind:     KindGeneration,
		Code:     code,
		Message:  message,
		Artifact: moduleID,
		Cause:    cause,
	}
}

// NewTemplateError creates an error for an unresolved or malformed marker.
func NewTemplateError(code, message, marker string) *ExportError {
	return &ExportError{
		Kind:     KindTemplate,
		Code:     code,
		Message:  message,
		Artifact: marker,
	}
}

// NewToolError creates an error for a failed external tool invocation.
func NewToolError(code, message string, cause error) *ExportError {
	return &ExportError{
		Kind:    KindTool,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// AsExport extracts an *ExportError from err's chain.
func AsExport(err error) (*ExportError, bool) {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee, true
	}

	return nil, false
}

// IsKind reports whether err is an ExportError of the given kind.
func IsKind(err error, kind Kind) bool {
	var ee *ExportError
	if errors.As(err, &ee) {
		return ee.Kind == kind
	}

	return false
}
