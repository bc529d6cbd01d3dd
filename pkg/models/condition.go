package models

// ConditionType selects which transaction attribute a workflow condition
// inspects.
type ConditionType string

const (
	ConditionAmountRange   ConditionType = "amount_range"
	ConditionTimeRange     ConditionType = "time_range"
	ConditionVenueType     ConditionType = "venue_type"
	ConditionUserRole      ConditionType = "user_role"
	ConditionPaymentMethod ConditionType = "payment_method"
	ConditionTxnType       ConditionType = "transaction_type"
)

// ConditionOperator is the comparison applied between the inspected attribute
// and the condition value.
type ConditionOperator string

const (
	OperatorEquals      ConditionOperator = "equals"
	OperatorNotEquals   ConditionOperator = "not_equals"
	OperatorGreaterThan ConditionOperator = "greater_than"
	OperatorLessThan    ConditionOperator = "less_than"
	OperatorBetween     ConditionOperator = "between"
	OperatorIn          ConditionOperator = "in"
	OperatorNotIn       ConditionOperator = "not_in"
)

// Condition is one conjunctive clause of a workflow's match criteria. Numeric
// comparisons use Value/SecondaryValue; set membership uses Values.
type Condition struct {
	ID             string            `json:"id"`
	Type           ConditionType     `json:"type"     validate:"required"`
	Operator       ConditionOperator `json:"operator" validate:"required"`
	Value          float64           `json:"value,omitempty"`
	SecondaryValue float64           `json:"secondary_value,omitempty"`
	Values         []string          `json:"values,omitempty"`
	StringValue    string            `json:"string_value,omitempty"`
}

// Evaluate reports whether the condition holds for the transaction context.
// Unknown types and operators evaluate false so a misconfigured workflow can
// never match by accident.
func (c *Condition) Evaluate(txc TransactionContext) bool {
	switch c.Type {
	case ConditionAmountRange:
		return c.compareNumeric(txc.Transaction.Amount)
	case ConditionTimeRange:
		return c.compareNumeric(float64(txc.Now.Hour()))
	case ConditionVenueType:
		return c.compareString(txc.VenueType)
	case ConditionUserRole:
		return c.compareString(string(txc.RequesterRole))
	case ConditionPaymentMethod:
		return c.compareString(string(txc.Transaction.Provider))
	case ConditionTxnType:
		return c.compareString(string(txc.Transaction.Type))
	default:
		return false
	}
}

func (c *Condition) compareNumeric(v float64) bool {
	switch c.Operator {
	case OperatorEquals:
		return v == c.Value
	case OperatorNotEquals:
		return v != c.Value
	case OperatorGreaterThan:
		return v > c.Value
	case OperatorLessThan:
		return v < c.Value
	case OperatorBetween:
		return v >= c.Value && v <= c.SecondaryValue
	default:
		return false
	}
}

func (c *Condition) compareString(v string) bool {
	switch c.Operator {
	case OperatorEquals:
		return v == c.StringValue
	case OperatorNotEquals:
		return v != c.StringValue
	case OperatorIn:
		return contains(c.Values, v)
	case OperatorNotIn:
		return !contains(c.Values, v)
	default:
		return false
	}
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}

	return false
}
