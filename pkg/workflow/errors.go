// Package workflow implements the approval state machine: workflow matching,
// action processing, delegation, and the approver queue.
package workflow

import (
	"errors"
	"fmt"
)

// Business logic errors. The web layer maps these onto HTTP statuses.
var (
	// ErrNoWorkflowMatched indicates no active workflow matched the
	// transaction. Creation stops; nothing proceeds unapproved.
	ErrNoWorkflowMatched = errors.New("no active workflow matched the transaction")

	// ErrInvalidAction indicates an action outside the known action set.
	ErrInvalidAction = errors.New("unknown approval action")

	// ErrRequestTerminal indicates an action on an already decided request.
	ErrRequestTerminal = errors.New("approval request is already in a terminal status")

	// ErrUnauthorized indicates the actor holds no sufficient role or
	// delegation for the request's current level.
	ErrUnauthorized = errors.New("actor is not authorized for this approval level")

	// ErrAlreadyActed indicates the actor already acted at the current level.
	ErrAlreadyActed = errors.New("actor already acted at this level")

	// ErrSelfApproval indicates the requester tried to approve their own
	// request on a workflow that forbids it.
	ErrSelfApproval = errors.New("requester cannot approve their own request")

	// ErrInvalidEscalation indicates an escalation that does not move the
	// request to a strictly higher level.
	ErrInvalidEscalation = errors.New("escalation target must be above the current level")

	// ErrInvalidDelegation indicates a delegation grant that violates the
	// role hierarchy or amount policy.
	ErrInvalidDelegation = errors.New("delegation violates role or amount policy")

	// ErrDelegateRequired indicates a delegate action without a target user.
	ErrDelegateRequired = errors.New("delegate action requires a target user")
)

// EngineError wraps state machine errors with the request they concern.
type EngineError struct {
	Op        string
	RequestID string
	Err       error
}

func (e *EngineError) Error() string {
	return fmt.Sprintf("%s failed for %s: %v", e.Op, e.RequestID, e.Err)
}

func (e *EngineError) Unwrap() error {
	return e.Err
}

func (e *EngineError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

func newEngineError(op, requestID string, err error) *EngineError {
	return &EngineError{Op: op, RequestID: requestID, Err: err}
}

// IsAuthorizationError checks for errors that should return HTTP 403.
func IsAuthorizationError(err error) bool {
	return errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrSelfApproval)
}

// IsValidationError checks for errors that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidEscalation) ||
		errors.Is(err, ErrInvalidDelegation) ||
		errors.Is(err, ErrDelegateRequired) ||
		errors.Is(err, ErrNoWorkflowMatched)
}

// IsConflictError checks for errors that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrRequestTerminal) || errors.Is(err, ErrAlreadyActed)
}
