package app

import (
	"errors"
	"fmt"
)

var (
	// ErrNoAttachments is the empty search result. It is not a failure.
	ErrNoAttachments = errors.New("no attachments found for service order")
	// ErrUploadInProgress rejects a second upload while one is in flight.
	ErrUploadInProgress = errors.New("upload already in progress")
)

// FailureKind tells which step of the workflow gave up.
type FailureKind int

const (
	FailureValidation FailureKind = iota + 1
	FailureUpload
	FailureInsert
	FailureQuery
)

func (k FailureKind) String() string {
	switch k {
	case FailureValidation:
		return "validation"
	case FailureUpload:
		return "upload_failed"
	case FailureInsert:
		return "insert_failed"
	case FailureQuery:
		return "query_failed"
	default:
		return "unknown"
	}
}

// WorkflowError is the failed variant of an upload or search. Message is
// the store's own text for store failures and a catalog key for validation.
type WorkflowError struct {
	Kind    FailureKind
	Key     MessageKey
	Message string
	Err     error
}

func (e *WorkflowError) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *WorkflowError) Unwrap() error {
	return e.Err
}

func validationError(key MessageKey, err error) *WorkflowError {
	msg := string(key)
	if err != nil {
		msg = err.Error()
	}
	return &WorkflowError{Kind: FailureValidation, Key: key, Message: msg, Err: err}
}

func storeError(kind FailureKind, key MessageKey, err error) *WorkflowError {
	return &WorkflowError{Kind: kind, Key: key, Message: err.Error(), Err: err}
}

// KindOf returns the failure kind of err, or 0 when err is not a
// WorkflowError.
func KindOf(err error) FailureKind {
	var wfErr *WorkflowError
	if errors.As(err, &wfErr) {
		return wfErr.Kind
	}
	return 0
}

// IsValidation reports whether err was raised before any store call.
func IsValidation(err error) bool {
	return KindOf(err) == FailureValidation
}
