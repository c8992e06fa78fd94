package export

import (
	"errors"
	"testing"

	"github.com/formsmith/formsmith/model"
)

func fptr(f float64) *float64 { return &f }

func TestFormSchema(t *testing.T) {
	e := NewExporter()
	form := model.Form{
		ID: "f1", Name: "Customer Intake", Description: "New customer onboarding",
		Status: model.FormStatusActive,
	}
	questions := []model.Question{
		{
			ID: "q1", TKey: "full_name", Label: "Full name", AnswerType: model.AnswerText,
			Required: true, Status: model.StatusActive,
			Validation: []model.ValidationRule{
				{Type: model.RuleMinLength, Length: 2},
				{Type: model.RuleMaxLength, Length: 100},
			},
		},
		{
			ID: "q2", TKey: "score", Label: "Score", AnswerType: model.AnswerNumber,
			Status: model.StatusActive,
			Validation: []model.ValidationRule{
				{Type: model.RuleRange, Min: fptr(1), Max: fptr(10)},
			},
		},
		{
			ID: "q3", TKey: "country", Label: "Country", AnswerType: model.AnswerDropdown,
			Status: model.StatusActive,
			Options: []model.PicklistOption{
				{Label: "Kenya", Value: "KE"}, {Label: "Uganda", Value: "UG"},
			},
		},
		{
			ID: "q4", TKey: "agree", Label: "Terms accepted", AnswerType: model.AnswerCheckbox,
			Status: model.StatusActive,
		},
		{
			ID: "q5", TKey: "dropped", Label: "Old", AnswerType: model.AnswerText,
			Status: model.StatusArchived,
		},
	}

	schema, err := e.FormSchema(form, questions)
	if err != nil {
		t.Fatalf("FormSchema: %v", err)
	}
	if schema.Title != "Customer Intake" {
		t.Errorf("Title = %q, want form name", schema.Title)
	}
	if len(schema.Properties) != 4 {
		t.Fatalf("got %d properties, want 4 (archived excluded)", len(schema.Properties))
	}
	if len(schema.Required) != 1 || schema.Required[0] != "full_name" {
		t.Errorf("Required = %v, want [full_name]", schema.Required)
	}

	name := schema.Properties["full_name"].Value
	if !name.Type.Is("string") {
		t.Errorf("full_name type = %v, want string", name.Type)
	}
	if name.MinLength != 2 || name.MaxLength == nil || *name.MaxLength != 100 {
		t.Errorf("full_name length bounds = %d/%v", name.MinLength, name.MaxLength)
	}

	score := schema.Properties["score"].Value
	if !score.Type.Is("number") {
		t.Errorf("score type = %v, want number", score.Type)
	}
	if score.Min == nil || *score.Min != 1 || score.Max == nil || *score.Max != 10 {
		t.Errorf("score bounds = %v/%v, want 1/10", score.Min, score.Max)
	}

	country := schema.Properties["country"].Value
	if len(country.Enum) != 2 || country.Enum[0] != "KE" {
		t.Errorf("country enum = %v, want [KE UG]", country.Enum)
	}

	agree := schema.Properties["agree"].Value
	if !agree.Type.Is("boolean") {
		t.Errorf("agree type = %v, want boolean", agree.Type)
	}
}

func TestFormSchema_DraftRejected(t *testing.T) {
	e := NewExporter()
	_, err := e.FormSchema(model.Form{ID: "f1", Status: model.FormStatusDraft}, nil)
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) || ee.Code != model.ErrBadRequest {
		t.Fatalf("err = %v, want BAD_REQUEST", err)
	}
}
