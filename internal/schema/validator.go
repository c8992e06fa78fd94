// Package schema enforces the structural invariants of forms, sections,
// questions, and templates at construction and mutation time. It never
// touches persistence; callers pass in whatever sibling entities the checks
// need and receive a flat list of violations.
package schema

import (
	"fmt"

	"github.com/formsmith/formsmith/model"
)

// VError describes a single structural violation.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// Validator checks entities against the schema invariants.
type Validator struct{}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// ValidateQuestion checks a question against its own configuration and
// against the form's other active questions (for tkey collisions). The
// siblings slice may contain the question itself; it is skipped by ID.
func (v *Validator) ValidateQuestion(q model.Question, siblings []model.Question) []VError {
	var errs []VError

	if q.TKey == "" {
		errs = append(errs, VError{Path: "tkey", Code: "REQUIRED", Message: "tkey is required"})
	}
	if q.Label == "" {
		errs = append(errs, VError{Path: "label", Code: "REQUIRED", Message: "label is required"})
	}
	if q.SectionID == "" {
		errs = append(errs, VError{Path: "section_id", Code: "REQUIRED", Message: "section_id is required"})
	}
	if q.Order < 1 {
		errs = append(errs, VError{Path: "order", Code: "RANGE", Message: "order must be >= 1"})
	}

	if !model.ValidAnswerTypes[q.AnswerType] {
		errs = append(errs, VError{
			Path:    "answer_type",
			Code:    "INVALID_ENUM",
			Message: fmt.Sprintf("invalid answer type %q", q.AnswerType),
		})
	}

	// Choice types must carry an options source before leaving draft.
	if q.AnswerType.NeedsOptions() && q.Status != model.StatusDraft {
		if len(q.Options) == 0 && q.OptionsEndpoint == "" {
			errs = append(errs, VError{
				Path:    "options",
				Code:    "OPTIONS_REQUIRED",
				Message: fmt.Sprintf("%s questions need a non-empty options source to leave draft", q.AnswerType),
			})
		}
	}

	// A checkbox answer is a boolean and is never "empty"; requiring it via
	// the flag AND a required rule would double-report the same constraint.
	if q.AnswerType == model.AnswerCheckbox && q.Required {
		for i, r := range q.Validation {
			if r.Type == model.RuleRequired {
				errs = append(errs, VError{
					Path:    fmt.Sprintf("validation[%d]", i),
					Code:    "DUPLICATE_REQUIRED",
					Message: "required checkbox must not also carry a required rule",
				})
			}
		}
	}

	for i, r := range q.Validation {
		if err := r.Validate(); err != nil {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("validation[%d]", i),
				Code:    "INVALID_RULE",
				Message: err.Error(),
			})
		}
	}
	for i, r := range q.Visibility {
		if err := r.Validate(); err != nil {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("visibility[%d]", i),
				Code:    "INVALID_RULE",
				Message: err.Error(),
			})
		}
		if r.ControllingTKey == q.TKey && q.TKey != "" {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("visibility[%d].controlling_tkey", i),
				Code:    "SELF_REFERENCE",
				Message: "question cannot control its own visibility",
			})
		}
	}

	// TKey must be unique among the form's active (non-archived) questions.
	if q.TKey != "" {
		for _, sib := range siblings {
			if sib.ID == q.ID || sib.Status == model.StatusArchived {
				continue
			}
			if sib.TKey == q.TKey {
				errs = append(errs, VError{
					Path:    "tkey",
					Code:    "DUPLICATE_TKEY",
					Message: fmt.Sprintf("tkey %q already used by question %s", q.TKey, sib.ID),
				})
				break
			}
		}
	}

	return errs
}

// ValidateSection checks a section's own fields.
func (v *Validator) ValidateSection(s model.Section) []VError {
	var errs []VError
	if s.Name == "" {
		errs = append(errs, VError{Path: "name", Code: "REQUIRED", Message: "name is required"})
	}
	if s.FormID == "" {
		errs = append(errs, VError{Path: "form_id", Code: "REQUIRED", Message: "form_id is required"})
	}
	if s.Order < 1 {
		errs = append(errs, VError{Path: "order", Code: "RANGE", Message: "order must be >= 1"})
	}
	return errs
}

// ValidateTemplate checks a question template.
func (v *Validator) ValidateTemplate(t model.QuestionTemplate) []VError {
	var errs []VError
	if t.TKey == "" {
		errs = append(errs, VError{Path: "tkey", Code: "REQUIRED", Message: "tkey is required"})
	}
	if t.Label == "" {
		errs = append(errs, VError{Path: "label", Code: "REQUIRED", Message: "label is required"})
	}
	if !model.ValidAnswerTypes[t.AnswerType] {
		errs = append(errs, VError{
			Path:    "answer_type",
			Code:    "INVALID_ENUM",
			Message: fmt.Sprintf("invalid answer type %q", t.AnswerType),
		})
	}
	if !t.IsGlobal && len(t.AvailableRegions) == 0 {
		errs = append(errs, VError{
			Path:    "available_regions",
			Code:    "REQUIRED",
			Message: "non-global template needs at least one region",
		})
	}
	for i, r := range t.Validation {
		if err := r.Validate(); err != nil {
			errs = append(errs, VError{
				Path:    fmt.Sprintf("validation[%d]", i),
				Code:    "INVALID_RULE",
				Message: err.Error(),
			})
		}
	}
	return errs
}

// AsInvalidConfiguration converts a non-empty violation list into the
// INVALID_CONFIGURATION error surfaced to callers. Returns nil for an empty
// list.
func AsInvalidConfiguration(errs []VError) error {
	if len(errs) == 0 {
		return nil
	}
	ee := model.NewInvalidConfigurationError(errs[0].Message)
	for _, ve := range errs {
		ee.Details = append(ee.Details, model.FieldError{
			Field:   ve.Path,
			Code:    ve.Code,
			Message: ve.Message,
		})
	}
	return ee
}
