// Package export renders a published form as a JSON Schema document, so
// downstream systems can validate submissions without talking to the form
// engine.
package export

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/formsmith/formsmith/model"
)

// Exporter builds schema documents from forms.
type Exporter struct{}

// NewExporter creates an Exporter.
func NewExporter() *Exporter {
	return &Exporter{}
}

// FormSchema builds an object schema whose properties are the form's
// active questions keyed by tkey. Only published forms export; drafts are
// still moving targets.
func (e *Exporter) FormSchema(f model.Form, questions []model.Question) (*openapi3.Schema, error) {
	if f.Status != model.FormStatusActive {
		return nil, model.NewBadRequestError("only published forms can be exported")
	}

	schema := openapi3.NewObjectSchema()
	schema.Title = f.Name
	schema.Description = f.Description
	schema.Properties = openapi3.Schemas{}

	for _, q := range questions {
		if q.Status != model.StatusActive {
			continue
		}
		schema.Properties[q.TKey] = openapi3.NewSchemaRef("", questionSchema(q))
		if q.Required {
			schema.Required = append(schema.Required, q.TKey)
		}
	}
	return schema, nil
}

func questionSchema(q model.Question) *openapi3.Schema {
	var s *openapi3.Schema
	switch q.AnswerType {
	case model.AnswerNumber:
		s = openapi3.NewFloat64Schema()
	case model.AnswerCheckbox:
		s = openapi3.NewBoolSchema()
	case model.AnswerDate:
		s = openapi3.NewStringSchema().WithFormat("date")
	default:
		s = openapi3.NewStringSchema()
	}

	s.Title = q.Label
	s.Description = q.HelperText
	if q.AnswerType == model.AnswerFormula {
		s.ReadOnly = true
	}
	if len(q.Options) > 0 {
		var values []any
		for _, o := range q.Options {
			values = append(values, o.Value)
		}
		s.Enum = values
	}

	applyRules(s, q.Validation)
	return s
}

func applyRules(s *openapi3.Schema, rules []model.ValidationRule) {
	for _, r := range rules {
		switch r.Type {
		case model.RuleMinLength:
			s.MinLength = uint64(r.Length)
		case model.RuleMaxLength:
			l := uint64(r.Length)
			s.MaxLength = &l
		case model.RulePattern:
			s.Pattern = r.Pattern
		case model.RuleRange:
			if r.Min != nil {
				s.Min = r.Min
			}
			if r.Max != nil {
				s.Max = r.Max
			}
		}
	}
}
