// Package apperror defines the typed errors surfaced by the audit pipeline
package apperror

import (
	"errors"
	"fmt"
)

// Code classifies an application error
type Code string

const (
	CodeNotFound          Code = "NOT_FOUND"
	CodeEmptyInput        Code = "EMPTY_INPUT"
	CodeRetrievalFailure  Code = "RETRIEVAL_FAILURE"
	CodeGenerationFailure Code = "GENERATION_FAILURE"
	CodeInvalidRequest    Code = "INVALID_REQUEST"
)

// AppError represents a domain-specific error
type AppError struct {
	Code    Code
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so the
// sentinels below match any error of their kind.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// Sentinels for errors.Is checks.
var (
	ErrNotFound   = &AppError{Code: CodeNotFound, Message: "not found"}
	ErrEmptyInput = &AppError{Code: CodeEmptyInput, Message: "no events"}
	ErrRetrieval  = &AppError{Code: CodeRetrievalFailure, Message: "retrieval failed"}
	ErrGeneration = &AppError{Code: CodeGenerationFailure, Message: "generation failed"}
)

// NotFound reports an unknown log id
func NotFound(logID string) *AppError {
	return &AppError{Code: CodeNotFound, Message: fmt.Sprintf("log %q not found", logID)}
}

// EmptyInput reports that an operation needing events got none
func EmptyInput(message string) *AppError {
	return &AppError{Code: CodeEmptyInput, Message: message}
}

// InvalidRequest reports input that is present but out of bounds
func InvalidRequest(message string) *AppError {
	return &AppError{Code: CodeInvalidRequest, Message: message}
}

// Retrieval wraps a failure of the semantic retrieval collaborator
func Retrieval(cause error) *AppError {
	return &AppError{Code: CodeRetrievalFailure, Message: "semantic search failed", Cause: cause}
}

// Generation wraps a failure of the text generation collaborator
func Generation(cause error) *AppError {
	return &AppError{Code: CodeGenerationFailure, Message: "text generation failed", Cause: cause}
}

// CodeOf returns the code of the first AppError in err's chain, or "" if none
func CodeOf(err error) Code {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}
