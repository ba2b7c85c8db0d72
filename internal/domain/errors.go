package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches another DomainError with the same code and message, so sentinel
// values keep working through errors.Is after being wrapped with a cause.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common domain error codes
const (
	ErrCodeValidation       = "VALIDATION_ERROR"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeInvalidOperation = "INVALID_OPERATION"
)

// Pipeline error codes
const (
	ErrCodeMalformedTranscript  = "MALFORMED_TRANSCRIPT"
	ErrCodeEnrichmentDegraded   = "ENRICHMENT_DEGRADED"
	ErrCodeStorageInconsistency = "STORAGE_INCONSISTENCY"
	ErrCodeGenerationFailure    = "GENERATION_FAILURE"
)

// CodeOf returns the code of the first DomainError in err's chain, or "".
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsCode reports whether err carries a DomainError with the given code.
func IsCode(err error, code string) bool {
	return CodeOf(err) == code
}

// NewMalformedTranscriptError reports a transcript that cannot be chunked.
// Ingestion aborts for the owning video only.
func NewMalformedTranscriptError(videoID, reason string) *DomainError {
	msg := "malformed transcript: " + reason
	if videoID != "" {
		msg = fmt.Sprintf("malformed transcript for video %s: %s", videoID, reason)
	}
	return NewDomainError(ErrCodeMalformedTranscript, msg)
}

// NewEnrichmentDegraded records that a chunk fell back to its raw text.
// It is logged, never returned up the ingestion call chain.
func NewEnrichmentDegraded(chunkID string, attempts int, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeEnrichmentDegraded,
		fmt.Sprintf("chunk %s enriched with raw text after %d attempts", chunkID, attempts), cause)
}

// NewStorageInconsistency reports a chunk whose vector and relational writes
// could not both be completed.
func NewStorageInconsistency(chunkID string, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeStorageInconsistency,
		fmt.Sprintf("chunk %s could not be stored consistently", chunkID), cause)
}

// NewGenerationFailure wraps a fatal per-request error raised in the given stage.
func NewGenerationFailure(stage GenerationState, cause error) *DomainError {
	return NewDomainErrorWithCause(ErrCodeGenerationFailure,
		fmt.Sprintf("generation failed during %s", stage), cause)
}

// Validation errors
var (
	ErrMissingRequiredField = NewDomainError(ErrCodeValidation, "missing required field")
	ErrInvalidTaskType      = NewDomainError(ErrCodeValidation, "invalid task type")
	ErrInvalidRole          = NewDomainError(ErrCodeValidation, "invalid message role")
	ErrInvalidTimeRange     = NewDomainError(ErrCodeValidation, "chunk start must be before end")
	ErrEmptyQuery           = NewDomainError(ErrCodeValidation, "query cannot be empty")
)

// Not found errors
var (
	ErrVideoNotFound   = NewDomainError(ErrCodeNotFound, "video not found")
	ErrChunkNotFound   = NewDomainError(ErrCodeNotFound, "chunk not found")
	ErrSessionNotFound = NewDomainError(ErrCodeNotFound, "session not found")
)

// Operation errors
var (
	ErrInvalidStateTransition = NewDomainError(ErrCodeInvalidOperation, "invalid generation state transition")
)
