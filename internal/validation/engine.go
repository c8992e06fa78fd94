// Package validation evaluates answer values against question rule lists.
// The engine owns the registry of named custom predicates; everything else
// is stateless.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/visibility"
	"github.com/formsmith/formsmith/model"
)

// Predicate is a caller-registered custom check. It receives the coerced
// answer and the full answer set so cross-field predicates are possible.
type Predicate func(value string, answers map[string]any) bool

// Engine evaluates validation rules. Safe for concurrent use once built.
type Engine struct {
	mu         sync.RWMutex
	predicates map[string]Predicate
	logger     *zap.Logger
}

// NewEngine creates an engine with an empty predicate registry.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		predicates: make(map[string]Predicate),
		logger:     logger,
	}
}

// RegisterPredicate installs or replaces a named custom predicate.
func (e *Engine) RegisterPredicate(name string, fn Predicate) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.predicates[name] = fn
}

// ValidateAnswer checks one answer against a question. The required check
// runs first; if it fails no further rules run. The remaining rules run in
// declaration order and the first failure wins. An empty optional answer
// passes without evaluating the rule list.
func (e *Engine) ValidateAnswer(q model.Question, value any, required bool, answers map[string]any) (string, bool) {
	coerced := visibility.Coerce(value)

	if isEmpty(q, coerced) {
		if required {
			return requiredMessage(q), false
		}
		return "", true
	}

	for _, r := range q.Validation {
		if msg, ok := e.applyRule(q, r, value, coerced, answers); !ok {
			return msg, false
		}
	}
	return "", true
}

// Results maps question ID to the failure message for that question.
type Results map[string]string

// ValidateForm checks the whole answer set. Hidden questions are skipped
// entirely; the resolved visibility state also supplies the effective
// required flag so require-action rules participate.
func (e *Engine) ValidateForm(questions []model.Question, answers map[string]any) Results {
	states := visibility.Resolve(questions, answers)
	out := Results{}
	for _, q := range questions {
		if q.Status == model.StatusArchived {
			continue
		}
		st := states[q.TKey]
		if !st.Visible {
			continue
		}
		if msg, ok := e.ValidateAnswer(q, answers[q.TKey], st.Required, answers); !ok {
			out[q.ID] = msg
		}
	}
	return out
}

// AsValidationFailed converts a non-empty result set into the
// VALIDATION_FAILED error envelope. Returns nil when everything passed.
func AsValidationFailed(questions []model.Question, res Results) error {
	if len(res) == 0 {
		return nil
	}
	byID := make(map[string]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	var details []model.FieldError
	for id, msg := range res {
		field := id
		if q, ok := byID[id]; ok {
			field = q.TKey
		}
		details = append(details, model.FieldError{Field: field, Code: "INVALID_ANSWER", Message: msg})
	}
	return model.NewValidationFailedError(details)
}

func (e *Engine) applyRule(q model.Question, r model.ValidationRule, raw any, value string, answers map[string]any) (string, bool) {
	// Length and pattern rules measure text; a numeric or boolean answer
	// has no length, so those rules pass it untouched.
	_, isString := raw.(string)

	switch r.Type {
	case model.RuleRequired:
		// Presence is handled before the rule list runs.
		return "", true
	case model.RuleMinLength:
		if isString && utf8.RuneCountInString(value) < r.Length {
			return message(r, fmt.Sprintf("Must be at least %d characters", r.Length)), false
		}
	case model.RuleMaxLength:
		if isString && utf8.RuneCountInString(value) > r.Length {
			return message(r, fmt.Sprintf("Must be at most %d characters", r.Length)), false
		}
	case model.RulePattern:
		if !isString {
			return "", true
		}
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			e.logger.Warn("skipping malformed pattern rule",
				zap.String("question_id", q.ID), zap.String("pattern", r.Pattern))
			return "", true
		}
		if !re.MatchString(value) {
			return message(r, "Invalid format"), false
		}
	case model.RuleRange:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return message(r, "Must be a number"), false
		}
		if r.Min != nil && n < *r.Min {
			return message(r, fmt.Sprintf("Must be at least %v", *r.Min)), false
		}
		if r.Max != nil && n > *r.Max {
			return message(r, fmt.Sprintf("Must be at most %v", *r.Max)), false
		}
	case model.RuleCustom:
		e.mu.RLock()
		fn, ok := e.predicates[r.Name]
		e.mu.RUnlock()
		if !ok {
			// Unknown predicates fail closed rather than silently passing.
			e.logger.Warn("unknown custom predicate",
				zap.String("question_id", q.ID), zap.String("predicate", r.Name))
			return message(r, fmt.Sprintf("Validation %q is not available", r.Name)), false
		}
		if !fn(value, answers) {
			return message(r, "Invalid value"), false
		}
	}
	return "", true
}

// isEmpty decides whether an answer counts as absent. An unchecked checkbox
// is absent for the purposes of the required check.
func isEmpty(q model.Question, value string) bool {
	if q.AnswerType == model.AnswerCheckbox {
		return value != "true"
	}
	return value == ""
}

func requiredMessage(q model.Question) string {
	for _, r := range q.Validation {
		if r.Type == model.RuleRequired && r.Message != "" {
			return r.Message
		}
	}
	return q.Label + " is required"
}

func message(r model.ValidationRule, fallback string) string {
	if r.Message != "" {
		return r.Message
	}
	return fallback
}
