package services

import (
	"errors"
	"fmt"
	"strings"

	"recap/internal/queue"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTimeout       = errors.New("timeout")
	ErrTransient     = errors.New("transient failure")
	ErrUnavailable   = errors.New("content unavailable")
)

// ErrorKind identifies the classification of a wrapped service error.
type ErrorKind string

const (
	KindExternalTool  ErrorKind = "external_tool"
	KindValidation    ErrorKind = "validation"
	KindConfiguration ErrorKind = "configuration"
	KindNotFound      ErrorKind = "not_found"
	KindTimeout       ErrorKind = "timeout"
	KindTransient     ErrorKind = "transient"
	KindUnavailable   ErrorKind = "unavailable"
	KindUnknown       ErrorKind = "unknown"
)

// ErrorDetails captures the structured parts of a wrapped service error for
// logging and persistence.
type ErrorDetails struct {
	Kind      ErrorKind
	Stage     string
	Operation string
	Message   string
	Cause     error
}

type serviceError struct {
	marker    error
	stage     string
	operation string
	message   string
	cause     error
}

func (e *serviceError) Error() string {
	detail := buildDetail(e.stage, e.operation, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.marker.Error(), detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker.Error(), detail)
}

func (e *serviceError) Is(target error) bool {
	return errors.Is(e.marker, target)
}

func (e *serviceError) Unwrap() error {
	return e.cause
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &serviceError{
		marker:    marker,
		stage:     strings.TrimSpace(stage),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		cause:     err,
	}
}

// Details extracts the structured parts of an error produced by Wrap. Plain
// errors yield KindUnknown with the error text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	var svcErr *serviceError
	if errors.As(err, &svcErr) {
		return ErrorDetails{
			Kind:      kindForMarker(svcErr.marker),
			Stage:     svcErr.stage,
			Operation: svcErr.operation,
			Message:   buildDetail(svcErr.stage, svcErr.operation, svcErr.message),
			Cause:     svcErr.cause,
		}
	}
	return ErrorDetails{
		Kind:    kindForMarker(err),
		Message: err.Error(),
	}
}

// FailureStatus maps a stage error to the queue status the workflow manager
// should persist after the stage fails. Permanent content errors park the job
// as unavailable; everything else is a retryable failure.
func FailureStatus(err error) queue.Status {
	if errors.Is(err, ErrUnavailable) {
		return queue.StatusUnavailable
	}
	return queue.StatusFailed
}

func kindForMarker(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrUnavailable):
		return KindUnavailable
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage != "" {
		parts = append(parts, stage)
	}
	if operation != "" {
		parts = append(parts, operation)
	}
	if message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
