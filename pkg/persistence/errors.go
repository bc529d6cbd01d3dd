// Package persistence provides standardized error types for persistence
// operations.
package persistence

import (
	"errors"
	"fmt"
)

// Standard persistence error types that all implementations should use.
var (
	// ErrRequestNotFound indicates an approval request was not found.
	ErrRequestNotFound = errors.New("approval request not found")

	// ErrWorkflowNotFound indicates a workflow was not found by the given identifier.
	ErrWorkflowNotFound = errors.New("workflow not found")

	// ErrDelegationNotFound indicates a delegation rule was not found.
	ErrDelegationNotFound = errors.New("delegation rule not found")

	// ErrRuleNotFound indicates an automation rule was not found.
	ErrRuleNotFound = errors.New("automation rule not found")

	// ErrEntryNotFound indicates a reconciliation entry was not found.
	ErrEntryNotFound = errors.New("reconciliation entry not found")

	// ErrRunNotFound indicates no reconciliation run exists for the provider and date.
	ErrRunNotFound = errors.New("reconciliation run not found")

	// ErrSettlementNotFound indicates no settlement has been recorded for the provider.
	ErrSettlementNotFound = errors.New("settlement report not found")

	// ErrVersionConflict indicates an update carried a stale aggregate version.
	ErrVersionConflict = errors.New("aggregate version conflict")

	// ErrAlreadyExists indicates a create collided with an existing identifier.
	ErrAlreadyExists = errors.New("aggregate already exists")
)

// StoreError wraps persistence errors with operation context.
type StoreError struct {
	Op       string // Operation being performed (e.g., "GetByID", "Update")
	EntityID string // Aggregate identifier if applicable
	Err      error  // Underlying error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Op, e.EntityID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func (e *StoreError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewStoreError creates a new persistence error with context.
func NewStoreError(op, entityID string, err error) *StoreError {
	return &StoreError{
		Op:       op,
		EntityID: entityID,
		Err:      err,
	}
}

// IsNotFound checks if an error indicates any aggregate was not found.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrRequestNotFound) ||
		errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrDelegationNotFound) ||
		errors.Is(err, ErrRuleNotFound) ||
		errors.Is(err, ErrEntryNotFound) ||
		errors.Is(err, ErrRunNotFound) ||
		errors.Is(err, ErrSettlementNotFound)
}

// IsVersionConflict checks if an error indicates a stale aggregate version.
func IsVersionConflict(err error) bool {
	return errors.Is(err, ErrVersionConflict)
}
