package model

import (
	"fmt"
	"regexp"
)

// RuleType enumerates the supported validation rule kinds.
type RuleType string

const (
	RuleRequired  RuleType = "required"
	RuleMinLength RuleType = "minLength"
	RuleMaxLength RuleType = "maxLength"
	RulePattern   RuleType = "pattern"
	RuleRange     RuleType = "range"
	RuleCustom    RuleType = "custom"
)

// ValidationRule is one entry in a question's ordered rule list. The operand
// fields are a closed tagged union: which of them is meaningful depends on
// Type, and Validate rejects rules whose operand is missing or malformed so
// evaluation never has to second-guess the configuration.
type ValidationRule struct {
	Type    RuleType `json:"type" yaml:"type"`
	Length  int      `json:"length,omitempty" yaml:"length,omitempty"`     // minLength, maxLength
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`   // pattern
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`           // range
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`           // range
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`         // custom predicate key
	Message string   `json:"message,omitempty" yaml:"message,omitempty"`
}

// Validate checks the rule at construction time.
func (r ValidationRule) Validate() error {
	switch r.Type {
	case RuleRequired:
		return nil
	case RuleMinLength, RuleMaxLength:
		if r.Length < 0 {
			return fmt.Errorf("%s rule: length must be >= 0, got %d", r.Type, r.Length)
		}
		return nil
	case RulePattern:
		if r.Pattern == "" {
			return fmt.Errorf("pattern rule: pattern is required")
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			return fmt.Errorf("pattern rule: invalid pattern %q: %w", r.Pattern, err)
		}
		return nil
	case RuleRange:
		if r.Min == nil && r.Max == nil {
			return fmt.Errorf("range rule: at least one of min/max is required")
		}
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return fmt.Errorf("range rule: min %v exceeds max %v", *r.Min, *r.Max)
		}
		return nil
	case RuleCustom:
		if r.Name == "" {
			return fmt.Errorf("custom rule: predicate name is required")
		}
		return nil
	default:
		return fmt.Errorf("unknown validation rule type %q", r.Type)
	}
}

// VisibilityOperator enumerates the comparison operators of a visibility rule.
type VisibilityOperator string

const (
	OpEquals    VisibilityOperator = "equals"
	OpNotEquals VisibilityOperator = "notEquals"
	OpContains  VisibilityOperator = "contains"
	OpIsEmpty   VisibilityOperator = "isEmpty"
)

// VisibilityAction is the effect a fired visibility rule has on a question.
type VisibilityAction string

const (
	ActionShow    VisibilityAction = "show"
	ActionHide    VisibilityAction = "hide"
	ActionRequire VisibilityAction = "require"
	ActionDisable VisibilityAction = "disable"
)

// VisibilityRule alters a question's show/require/hide/disable state based on
// another question's answer. All rules targeting the same action must hold
// for that action to apply.
type VisibilityRule struct {
	ControllingTKey string             `json:"controlling_tkey" yaml:"controlling_tkey"`
	Operator        VisibilityOperator `json:"operator" yaml:"operator"`
	Value           string             `json:"value,omitempty" yaml:"value,omitempty"`
	Action          VisibilityAction   `json:"action" yaml:"action"`
}

// Validate checks the rule at construction time.
func (r VisibilityRule) Validate() error {
	if r.ControllingTKey == "" {
		return fmt.Errorf("visibility rule: controlling_tkey is required")
	}
	switch r.Operator {
	case OpEquals, OpNotEquals, OpContains:
		// Value may legitimately be an empty string for equals/notEquals.
	case OpIsEmpty:
		if r.Value != "" {
			return fmt.Errorf("visibility rule: isEmpty takes no value")
		}
	default:
		return fmt.Errorf("visibility rule: unknown operator %q", r.Operator)
	}
	switch r.Action {
	case ActionShow, ActionHide, ActionRequire, ActionDisable:
		return nil
	default:
		return fmt.Errorf("visibility rule: unknown action %q", r.Action)
	}
}
