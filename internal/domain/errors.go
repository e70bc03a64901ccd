// Package domain holds the error taxonomy and pure business rules shared by all layers.
package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Generic sentinels (no external dependencies).
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUserNotFound = errors.New("user not found")
	ErrEmailExists  = errors.New("email already registered")
	ErrInvalidInput = errors.New("invalid input")
	ErrDuplicate    = errors.New("duplicate resource")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("access denied")
	ErrConflict     = errors.New("conflict with current state")
)

// ValidationError carries submission-time input problems keyed by field.
// Nothing is persisted when one is returned.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds an empty field-keyed validation error.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string]string)}
}

// Add records a problem for a field. Only the first message per field is kept.
func (e *ValidationError) Add(field, message string) {
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = message
	}
}

// Any reports whether at least one field failed validation.
func (e *ValidationError) Any() bool { return len(e.Fields) > 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// InvalidStateError signals an action attempted against an invoice status that
// does not permit it. The invoice is left untouched.
type InvalidStateError struct {
	Action string
	Status string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s an invoice in status %q", e.Action, e.Status)
}

// AlreadyApprovedError signals a duplicate approval by the same approver.
// Soft error: the approval list is unchanged.
type AlreadyApprovedError struct {
	ApproverID string
}

func (e *AlreadyApprovedError) Error() string {
	return fmt.Sprintf("approver %s already approved this invoice", e.ApproverID)
}

// ConcurrentLockError signals a lost race locking the equity allocation for a
// year. LockedPercentage is the winner's value; the caller must retry with it.
type ConcurrentLockError struct {
	Year             int
	LockedPercentage int
}

func (e *ConcurrentLockError) Error() string {
	return fmt.Sprintf("equity allocation for %d is locked at %d%%", e.Year, e.LockedPercentage)
}

// QuorumMismatchError signals that an invoice holds more approvals than the
// company requires. This indicates a concurrency-control bug, never user error;
// callers log it and abort.
type QuorumMismatchError struct {
	InvoiceID     string
	Approvals     int
	RequiredCount int
}

func (e *QuorumMismatchError) Error() string {
	return fmt.Sprintf("invoice %s has %d approvals, more than the required %d",
		e.InvoiceID, e.Approvals, e.RequiredCount)
}

// ExternalServiceError wraps a transient failure from a collaborator (payment
// provider, tax check, grant service).
type ExternalServiceError struct {
	Service string
	Err     error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s: %v", e.Service, e.Err)
}

func (e *ExternalServiceError) Unwrap() error { return e.Err }
