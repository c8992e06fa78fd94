package schema

import (
	"testing"

	"github.com/formsmith/formsmith/model"
)

func hasCode(errs []VError, code string) bool {
	for _, e := range errs {
		if e.Code == code {
			return true
		}
	}
	return false
}

func validQuestion() model.Question {
	return model.Question{
		ID:         "q1",
		FormID:     "f1",
		SectionID:  "s1",
		Order:      1,
		TKey:       "applicant_name",
		Label:      "Applicant name",
		AnswerType: model.AnswerText,
		Status:     model.StatusDraft,
	}
}

func TestValidateQuestion_OK(t *testing.T) {
	v := NewValidator()
	if errs := v.ValidateQuestion(validQuestion(), nil); len(errs) != 0 {
		t.Fatalf("ValidateQuestion() = %v, want no errors", errs)
	}
}

func TestValidateQuestion_MissingFields(t *testing.T) {
	v := NewValidator()
	q := validQuestion()
	q.TKey = ""
	q.Label = ""
	q.Order = 0
	errs := v.ValidateQuestion(q, nil)
	if len(errs) != 3 {
		t.Fatalf("got %d errors, want 3: %v", len(errs), errs)
	}
	if !hasCode(errs, "REQUIRED") || !hasCode(errs, "RANGE") {
		t.Errorf("missing expected codes in %v", errs)
	}
}

func TestValidateQuestion_BadAnswerType(t *testing.T) {
	v := NewValidator()
	q := validQuestion()
	q.AnswerType = "slider"
	if errs := v.ValidateQuestion(q, nil); !hasCode(errs, "INVALID_ENUM") {
		t.Errorf("ValidateQuestion() = %v, want INVALID_ENUM", errs)
	}
}

func TestValidateQuestion_ChoiceNeedsOptions(t *testing.T) {
	v := NewValidator()
	q := validQuestion()
	q.AnswerType = model.AnswerDropdown

	// Draft questions may stay optionless while being built.
	if errs := v.ValidateQuestion(q, nil); hasCode(errs, "OPTIONS_REQUIRED") {
		t.Errorf("draft dropdown flagged: %v", errs)
	}

	q.Status = model.StatusActive
	if errs := v.ValidateQuestion(q, nil); !hasCode(errs, "OPTIONS_REQUIRED") {
		t.Errorf("active dropdown without options not flagged: %v", errs)
	}

	q.OptionsEndpoint = "https://api.example.com/countries"
	if errs := v.ValidateQuestion(q, nil); hasCode(errs, "OPTIONS_REQUIRED") {
		t.Errorf("dropdown with endpoint flagged: %v", errs)
	}
}

func TestValidateQuestion_CheckboxDoubleRequired(t *testing.T) {
	v := NewValidator()
	q := validQuestion()
	q.AnswerType = model.AnswerCheckbox
	q.Required = true
	q.Validation = []model.ValidationRule{{Type: model.RuleRequired, Message: "tick it"}}
	if errs := v.ValidateQuestion(q, nil); !hasCode(errs, "DUPLICATE_REQUIRED") {
		t.Errorf("ValidateQuestion() = %v, want DUPLICATE_REQUIRED", errs)
	}
}

func TestValidateQuestion_DuplicateTKey(t *testing.T) {
	v := NewValidator()
	q := validQuestion()
	siblings := []model.Question{
		{ID: "q2", TKey: "applicant_name", Status: model.StatusActive},
	}
	if errs := v.ValidateQuestion(q, siblings); !hasCode(errs, "DUPLICATE_TKEY") {
		t.Errorf("ValidateQuestion() = %v, want DUPLICATE_TKEY", errs)
	}

	// Archived siblings release their tkey.
	siblings[0].Status = model.StatusArchived
	if errs := v.ValidateQuestion(q, siblings); hasCode(errs, "DUPLICATE_TKEY") {
		t.Errorf("archived sibling still blocks tkey: %v", errs)
	}
}

func TestValidateQuestion_SelfVisibility(t *testing.T) {
	v := NewValidator()
	q := validQuestion()
	q.Visibility = []model.VisibilityRule{{
		ControllingTKey: q.TKey,
		Operator:        model.OpEquals,
		Value:           "yes",
		Action:          model.ActionShow,
	}}
	if errs := v.ValidateQuestion(q, nil); !hasCode(errs, "SELF_REFERENCE") {
		t.Errorf("ValidateQuestion() = %v, want SELF_REFERENCE", errs)
	}
}

func TestValidateTemplate_RegionScope(t *testing.T) {
	v := NewValidator()
	tmpl := model.QuestionTemplate{
		TKey:       "email",
		Label:      "Email",
		AnswerType: model.AnswerText,
	}
	if errs := v.ValidateTemplate(tmpl); !hasCode(errs, "REQUIRED") {
		t.Errorf("non-global template without regions not flagged: %v", errs)
	}
	tmpl.IsGlobal = true
	if errs := v.ValidateTemplate(tmpl); len(errs) != 0 {
		t.Errorf("global template flagged: %v", errs)
	}
}

func TestAsInvalidConfiguration(t *testing.T) {
	if err := AsInvalidConfiguration(nil); err != nil {
		t.Fatalf("AsInvalidConfiguration(nil) = %v, want nil", err)
	}
	err := AsInvalidConfiguration([]VError{{Path: "tkey", Code: "REQUIRED", Message: "tkey is required"}})
	ee, ok := err.(*model.ErrorEnvelope)
	if !ok {
		t.Fatalf("AsInvalidConfiguration() type = %T, want *model.ErrorEnvelope", err)
	}
	if ee.Code != model.ErrInvalidConfiguration {
		t.Errorf("Code = %q, want %q", ee.Code, model.ErrInvalidConfiguration)
	}
	if len(ee.Details) != 1 || ee.Details[0].Field != "tkey" {
		t.Errorf("Details = %v, want one entry for tkey", ee.Details)
	}
}

func TestInstantiateFromTemplate(t *testing.T) {
	tmpl := model.QuestionTemplate{
		ID:         "tpl-1",
		TKey:       "email",
		Label:      "Email address",
		HelperText: "Work email preferred",
		AnswerType: model.AnswerText,
		Validation: []model.ValidationRule{
			{Type: model.RuleRequired, Message: "Email is required"},
			{Type: model.RulePattern, Pattern: `^\S+@\S+$`, Message: "Invalid email"},
		},
		Options: []model.PicklistOption{{Label: "A", Value: "a"}},
	}

	q := InstantiateFromTemplate(tmpl, Overrides{Label: "Contact email"})

	if q.QuestionTemplateID != "tpl-1" {
		t.Errorf("QuestionTemplateID = %q, want tpl-1", q.QuestionTemplateID)
	}
	if q.Label != "Contact email" {
		t.Errorf("Label = %q, want override applied", q.Label)
	}
	if q.TKey != "email" || q.HelperText != "Work email preferred" {
		t.Errorf("template fields not copied: tkey=%q helper=%q", q.TKey, q.HelperText)
	}
	if !q.Required {
		t.Error("Required = false, want true from template required rule")
	}
	if len(q.Validation) != 1 || q.Validation[0].Type != model.RulePattern {
		t.Errorf("Validation = %v, want only the pattern rule", q.Validation)
	}
	if q.Status != model.StatusDraft {
		t.Errorf("Status = %q, want draft", q.Status)
	}

	// Copy by value: mutating the instantiated question leaves the
	// template untouched.
	q.Options[0].Label = "changed"
	if tmpl.Options[0].Label != "A" {
		t.Errorf("template option mutated: %q", tmpl.Options[0].Label)
	}
}
