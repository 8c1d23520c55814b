package errors

import (
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// ArchetypeNotFound indicates a lookup by explicit archetype code failed
	ArchetypeNotFound ErrorCode = "ARCHETYPE_NOT_FOUND"
	// ProblemNotFound indicates a corpus lookup by problem id failed
	ProblemNotFound ErrorCode = "PROBLEM_NOT_FOUND"
	// RegistryInvalid indicates a registry file could not be parsed
	RegistryInvalid ErrorCode = "REGISTRY_INVALID"
	// PatternInvalid indicates a deviation detection pattern failed to compile
	PatternInvalid ErrorCode = "PATTERN_INVALID"
	// InvalidInput indicates caller input that cannot be analyzed at all
	InvalidInput ErrorCode = "INVALID_INPUT"
	// StoreUnavailable indicates the history store could not be opened
	StoreUnavailable ErrorCode = "STORE_UNAVAILABLE"
	// ExportFailed indicates a report archive could not be written
	ExportFailed ErrorCode = "EXPORT_FAILED"
	// InternalError indicates an unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// FixAction represents a suggested fix for an error
type FixAction struct {
	Command     string `json:"command,omitempty"`
	Description string `json:"description,omitempty"`
}

// Error represents an analysis error with a stable code and suggestions.
// Threshold and no-match outcomes are never modeled as errors; they are
// ordinary result fields (confidence 0, hasComp false).
type Error struct {
	Code           ErrorCode   `json:"code"`
	Message        string      `json:"message"`
	Details        interface{} `json:"details,omitempty"`
	SuggestedFixes []FixAction `json:"suggestedFixes,omitempty"`
	cause          error
}

// New creates a new Error
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:           code,
		Message:        message,
		cause:          cause,
		SuggestedFixes: SuggestedFixes(code),
	}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithDetails adds details to the error
func (e *Error) WithDetails(details interface{}) *Error {
	e.Details = details
	return e
}

// fixActions maps error codes to suggested fix actions
var fixActions = map[ErrorCode][]FixAction{
	RegistryInvalid: {
		{
			Command:     "finsight kb",
			Description: "Inspect registry load diagnostics",
		},
	},
	PatternInvalid: {
		{
			Command:     "finsight kb",
			Description: "List deviations whose patterns were skipped",
		},
	},
	StoreUnavailable: {
		{
			Command:     "finsight analyze --no-history",
			Description: "Run analysis without the history store",
		},
	},
}

// SuggestedFixes returns suggested fixes for an error code
func SuggestedFixes(code ErrorCode) []FixAction {
	if fixes, ok := fixActions[code]; ok {
		return fixes
	}
	return nil
}
