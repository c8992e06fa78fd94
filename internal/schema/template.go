package schema

import "github.com/formsmith/formsmith/model"

// Overrides carries the per-question fields a caller may customize when
// instantiating a template. Zero values mean "keep the template's value".
type Overrides struct {
	TKey       string `json:"tkey,omitempty"`
	Label      string `json:"label,omitempty"`
	HelperText string `json:"helper_text,omitempty"`
	Required   *bool  `json:"required,omitempty"`
}

// InstantiateFromTemplate copies a template into a fresh draft question by
// value. Later edits to the template never reach the question; the only
// link kept is the provenance ID. The caller assigns ID, FormID, SectionID
// and Order before persisting.
func InstantiateFromTemplate(t model.QuestionTemplate, ov Overrides) model.Question {
	q := model.Question{
		QuestionTemplateID: t.ID,
		TKey:               t.TKey,
		Label:              t.Label,
		HelperText:         t.HelperText,
		AnswerType:         t.AnswerType,
		DefaultValue:       t.DefaultValue,
		Status:             model.StatusDraft,
	}

	// A required rule on the template becomes the question's required flag;
	// the flag is the single source of truth for the presence check.
	for _, r := range t.Validation {
		if r.Type == model.RuleRequired {
			q.Required = true
			continue
		}
		q.Validation = append(q.Validation, r)
	}
	if len(t.Options) > 0 {
		q.Options = make([]model.PicklistOption, len(t.Options))
		copy(q.Options, t.Options)
	}
	if t.Storage != nil {
		sc := *t.Storage
		q.Storage = &sc
	}

	if ov.TKey != "" {
		q.TKey = ov.TKey
	}
	if ov.Label != "" {
		q.Label = ov.Label
	}
	if ov.HelperText != "" {
		q.HelperText = ov.HelperText
	}
	if ov.Required != nil {
		q.Required = *ov.Required
	}
	return q
}
