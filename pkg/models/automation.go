package models

import (
	"errors"
	"time"
)

// AmountRange bounds a rule clause to [Min, Max] inclusive.
type AmountRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// TimeRestrictions limits a rule to hours of day and days of week.
type TimeRestrictions struct {
	AllowedHours []int `json:"allowed_hours,omitempty"`
	AllowedDays  []int `json:"allowed_days,omitempty"` // 0=Sunday .. 6=Saturday
}

// HistoryThresholds gates a rule on the requester's recent track record.
type HistoryThresholds struct {
	MinSuccessfulTransactions int `json:"min_successful_transactions"`
	MaxRejectedInPeriod       int `json:"max_rejected_in_period"`
	PeriodDays                int `json:"period_days"`
}

// RuleConditions is the weighted clause set of an automation rule. Only
// declared clauses contribute to the confidence score; nil clauses carry no
// weight.
type RuleConditions struct {
	AmountRange      *AmountRange       `json:"amount_range,omitempty"`
	UserTiers        []string           `json:"user_tiers,omitempty"`
	VenueTypes       []string           `json:"venue_types,omitempty"`
	TimeRestrictions *TimeRestrictions  `json:"time_restrictions,omitempty"`
	UserHistory      *HistoryThresholds `json:"user_history,omitempty"`
}

// RuleActions describes what a firing rule does. AutoApprove and AutoReject
// are mutually exclusive; escalation targets a level or role.
type RuleActions struct {
	AutoApprove     bool     `json:"auto_approve,omitempty"`
	AutoReject      bool     `json:"auto_reject,omitempty"`
	EscalateToLevel int      `json:"escalate_to_level,omitempty"`
	EscalateToRole  Role     `json:"escalate_to_role,omitempty"`
	NotifyUsers     []string `json:"notify_users,omitempty"`
	AddTags         []string `json:"add_tags,omitempty"`
}

// AutomationRule scores a request against its conditions and, on a confident
// match, applies its actions before any human sees the request.
type AutomationRule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"     validate:"required,min=3"`
	Description string         `json:"description"`
	Priority    int            `json:"priority"` // lower evaluates first
	Enabled     bool           `json:"enabled"`
	Conditions  RuleConditions `json:"conditions"`
	Actions     RuleActions    `json:"actions"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

var (
	// ErrRuleConflictingActions indicates autoApprove and autoReject were both set.
	ErrRuleConflictingActions = errors.New("automation rule cannot both auto-approve and auto-reject")

	// ErrRuleNoConditions indicates a rule with no condition clauses at all.
	ErrRuleNoConditions = errors.New("automation rule must declare at least one condition clause")
)

// Validate rejects configuration errors at rule-creation time.
func (r *AutomationRule) Validate() error {
	if r.Actions.AutoApprove && r.Actions.AutoReject {
		return ErrRuleConflictingActions
	}

	c := r.Conditions
	if c.AmountRange == nil && len(c.UserTiers) == 0 && len(c.VenueTypes) == 0 &&
		c.TimeRestrictions == nil && c.UserHistory == nil {
		return ErrRuleNoConditions
	}

	return nil
}

// EscalationTrigger escalates an overdue request when its condition holds.
type EscalationTrigger struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	Description      string `json:"description"`
	Enabled          bool   `json:"enabled"`
	TimeoutMinutes   int    `json:"timeout_minutes,omitempty"`
	RejectionCount   int    `json:"rejection_count,omitempty"`
	EscalateToRole   Role   `json:"escalate_to_role,omitempty"`
	SkipToLevel      int    `json:"skip_to_level,omitempty"`
	NewDeadlineHours int    `json:"new_deadline_hours" validate:"gt=0"`
	NotifyUsers      []string `json:"notify_users,omitempty"`
}

// Fires reports whether the trigger condition holds for an overdue request.
func (t *EscalationTrigger) Fires(request *ApprovalRequest, now time.Time) bool {
	if !t.Enabled {
		return false
	}

	if t.TimeoutMinutes > 0 {
		elapsed := now.Sub(request.Deadline)
		if elapsed >= time.Duration(t.TimeoutMinutes)*time.Minute {
			return true
		}
	}

	if t.RejectionCount > 0 && request.RejectionCount() >= t.RejectionCount {
		return true
	}

	return false
}
