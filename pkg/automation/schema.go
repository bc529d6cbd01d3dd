package automation

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// ruleSchema validates rule documents submitted over the API before they are
// decoded into models. Struct-level validation still runs afterwards; the
// schema catches shape errors with better messages.
const ruleSchema = `{
	"type": "object",
	"required": ["name", "conditions", "actions"],
	"properties": {
		"name": {"type": "string", "minLength": 3},
		"description": {"type": "string"},
		"priority": {"type": "integer"},
		"enabled": {"type": "boolean"},
		"conditions": {
			"type": "object",
			"properties": {
				"amount_range": {
					"type": "object",
					"required": ["min", "max"],
					"properties": {
						"min": {"type": "number", "minimum": 0},
						"max": {"type": "number", "minimum": 0}
					}
				},
				"user_tiers": {"type": "array", "items": {"type": "string"}},
				"venue_types": {"type": "array", "items": {"type": "string"}},
				"time_restrictions": {
					"type": "object",
					"properties": {
						"allowed_hours": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 23}},
						"allowed_days": {"type": "array", "items": {"type": "integer", "minimum": 0, "maximum": 6}}
					}
				},
				"user_history": {
					"type": "object",
					"properties": {
						"min_successful_transactions": {"type": "integer", "minimum": 0},
						"max_rejected_in_period": {"type": "integer", "minimum": 0},
						"period_days": {"type": "integer", "minimum": 1}
					}
				}
			}
		},
		"actions": {
			"type": "object",
			"properties": {
				"auto_approve": {"type": "boolean"},
				"auto_reject": {"type": "boolean"},
				"escalate_to_level": {"type": "integer", "minimum": 1},
				"escalate_to_role": {"type": "string", "enum": ["admin", "venue_manager", "rp", "client"]},
				"notify_users": {"type": "array", "items": {"type": "string"}},
				"add_tags": {"type": "array", "items": {"type": "string"}}
			}
		}
	}
}`

// ValidateRuleDocument checks a raw rule document against the rule schema.
func ValidateRuleDocument(document []byte) error {
	schemaLoader := gojsonschema.NewStringLoader(ruleSchema)
	dataLoader := gojsonschema.NewBytesLoader(document)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return err
	}

	if !result.Valid() {
		var errors []string
		for _, resultError := range result.Errors() {
			errors = append(errors, resultError.String())
		}

		return fmt.Errorf("rule schema validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
