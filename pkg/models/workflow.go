package models

import (
	"errors"
	"fmt"
	"time"
)

// ApprovalWorkflow defines the multi-level approval chain a request runs
// through. Workflows are immutable once referenced by an in-flight request;
// edits create a new version under the same group.
type ApprovalWorkflow struct {
	ID                 string           `json:"id"`
	Name               string           `json:"name"        validate:"required,min=3"`
	Description        string           `json:"description"`
	Version            string           `json:"version"`
	Active             bool             `json:"active"`
	Priority           int              `json:"priority"`
	Conditions         []*Condition     `json:"conditions"`
	Levels             []*ApprovalLevel `json:"levels"      validate:"required,min=1,dive"`
	GlobalTimeoutHours int              `json:"global_timeout_hours" validate:"gt=0"`
	AllowParallel      bool             `json:"allow_parallel_approvals"`
	AllowSelfApproval  bool             `json:"allow_self_approval"`
	AllowDelegation    bool             `json:"allow_delegation"`
	CreatedAt          time.Time        `json:"created_at"`
	CreatedBy          string           `json:"created_by"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

// ApprovalLevel is one stage of a workflow requiring a quorum of approvers
// holding (or delegated from) a specific role.
type ApprovalLevel struct {
	Level             int                  `json:"level"              validate:"gt=0"`
	Name              string               `json:"name"`
	RequiredRole      Role                 `json:"required_role"      validate:"required"`
	RequiredApprovers int                  `json:"required_approvers" validate:"gt=0"`
	TimeoutHours      int                  `json:"timeout_hours"      validate:"gt=0"`
	Conditions        []*Condition         `json:"conditions,omitempty"`
	BackupApprovers   []string             `json:"backup_approvers,omitempty"`
	EscalationRules   []*EscalationTrigger `json:"escalation_rules,omitempty"`
}

var (
	// ErrWorkflowNoLevels indicates a workflow without approval levels.
	ErrWorkflowNoLevels = errors.New("workflow must define at least one approval level")

	// ErrWorkflowLevelSequence indicates levels are not numbered 1..N without gaps.
	ErrWorkflowLevelSequence = errors.New("workflow levels must be strictly increasing from 1 with no gaps")
)

// Validate checks the structural invariants that validator tags cannot
// express: level numbering must be 1..N strictly increasing with no gaps.
func (w *ApprovalWorkflow) Validate() error {
	if len(w.Levels) == 0 {
		return ErrWorkflowNoLevels
	}

	for i, level := range w.Levels {
		if level.Level != i+1 {
			return fmt.Errorf("level at index %d is numbered %d: %w", i, level.Level, ErrWorkflowLevelSequence)
		}

		if !level.RequiredRole.Valid() {
			return fmt.Errorf("level %d has unknown required role %q", level.Level, level.RequiredRole)
		}
	}

	return nil
}

// LevelAt returns the level definition for the given level number, nil when
// out of range.
func (w *ApprovalWorkflow) LevelAt(n int) *ApprovalLevel {
	if n < 1 || n > len(w.Levels) {
		return nil
	}

	return w.Levels[n-1]
}

// Matches reports whether every workflow condition holds for the transaction.
// Workflow matching is conjunctive, unlike automation rule scoring.
func (w *ApprovalWorkflow) Matches(txc TransactionContext) bool {
	for _, condition := range w.Conditions {
		if !condition.Evaluate(txc) {
			return false
		}
	}

	return true
}

// EstimatedSLAHours sums the per-level timeouts, the worst-case serial time a
// request can spend in this workflow before escalation.
func (w *ApprovalWorkflow) EstimatedSLAHours() int {
	total := 0
	for _, level := range w.Levels {
		total += level.TimeoutHours
	}

	return total
}

// Deadline computes the per-level deadline for the given level from now.
func (l *ApprovalLevel) Deadline(now time.Time) time.Time {
	return now.Add(time.Duration(l.TimeoutHours) * time.Hour)
}
