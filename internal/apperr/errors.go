// Package apperr defines the error taxonomy shared by the request-facing
// services. Handlers translate these into JSON error envelopes; nothing in
// this package is ever allowed to escape a handler as a panic.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// TransientError wraps a failure talking to an upstream (source store, index
// gateway, document API). The sync loop retries these on its next tick;
// request handlers surface them as 502s.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("upstream failure during %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

func Transient(op string, err error) error {
	return &TransientError{Op: op, Err: err}
}

// NotFoundError names the entity that was absent (note title, snapshot id,
// heading text). No mutation is performed when one is returned.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

func NotFound(kind, name string) error {
	return &NotFoundError{Kind: kind, Name: name}
}

// ValidationError rejects malformed input before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func Validation(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// PartialFailureError reports a relocation where one of the two note updates
// committed and the other did not. There is no rollback; the caller is told
// which side succeeded.
type PartialFailureError struct {
	Succeeded string
	Failed    string
	Err       error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("partial failure: %s updated, %s failed: %v", e.Succeeded, e.Failed, e.Err)
}

func (e *PartialFailureError) Unwrap() error { return e.Err }

// CodeOf maps an error to the machine-readable code and HTTP status used by
// the JSON error envelope.
func CodeOf(err error) (string, int) {
	var nf *NotFoundError
	var ve *ValidationError
	var te *TransientError
	var pf *PartialFailureError
	switch {
	case errors.As(err, &ve):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.As(err, &nf):
		return "NOT_FOUND", http.StatusNotFound
	case errors.As(err, &pf):
		return "PARTIAL_FAILURE", http.StatusConflict
	case errors.As(err, &te):
		return "UPSTREAM_ERROR", http.StatusBadGateway
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError
	}
}
