package builder

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/schema"
	"github.com/formsmith/formsmith/model"
)

// CreateQuestionInput carries the caller-supplied fields of a new question.
// AnswerType defaults to text and Order to the end of the section.
type CreateQuestionInput struct {
	TKey            string                 `json:"tkey"`
	Label           string                 `json:"label"`
	HelperText      string                 `json:"helper_text"`
	AnswerType      model.AnswerType       `json:"answer_type"`
	Required        bool                   `json:"required"`
	Order           int                    `json:"order"`
	Validation      []model.ValidationRule `json:"validation"`
	Visibility      []model.VisibilityRule `json:"visibility"`
	DefaultValue    string                 `json:"default_value"`
	Options         []model.PicklistOption `json:"options"`
	OptionsEndpoint string                 `json:"options_endpoint"`
	DependsOn       []string               `json:"depends_on"`
	Storage         *model.StorageConfig   `json:"storage"`
}

// CreateQuestion adds a question to a section of a form.
func (s *Service) CreateQuestion(ctx context.Context, sectionID string, in CreateQuestionInput) (model.Question, error) {
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return model.Question{}, err
	}
	if sec.Status == model.StatusArchived {
		return model.Question{}, model.NewInvalidTransitionError("archived sections cannot be edited")
	}

	answerType := in.AnswerType
	if answerType == "" {
		answerType = model.AnswerText
	}
	order := in.Order
	if order == 0 {
		siblings, err := s.store.ListSectionQuestions(ctx, sectionID)
		if err != nil {
			return model.Question{}, err
		}
		order = maxQuestionOrder(siblings) + 1
	}

	q := model.Question{
		ID:              uuid.NewString(),
		FormID:          sec.FormID,
		SectionID:       sectionID,
		Order:           order,
		TKey:            in.TKey,
		Label:           in.Label,
		HelperText:      in.HelperText,
		AnswerType:      answerType,
		Required:        in.Required,
		Validation:      in.Validation,
		Visibility:      in.Visibility,
		DefaultValue:    in.DefaultValue,
		Options:         in.Options,
		OptionsEndpoint: in.OptionsEndpoint,
		DependsOn:       in.DependsOn,
		Storage:         in.Storage,
		Status:          model.StatusDraft,
		CreatedBy:       actorFrom(ctx),
		UpdatedBy:       actorFrom(ctx),
	}
	return s.persistNewQuestion(ctx, q)
}

// CreateQuestionFromTemplate instantiates a template into a section. The
// template must be active and available in the form's region; its fields
// are copied by value so later template edits never reach the question.
func (s *Service) CreateQuestionFromTemplate(ctx context.Context, sectionID, templateID string, ov schema.Overrides) (model.Question, error) {
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return model.Question{}, err
	}
	if sec.Status == model.StatusArchived {
		return model.Question{}, model.NewInvalidTransitionError("archived sections cannot be edited")
	}
	f, err := s.store.GetForm(ctx, sec.FormID)
	if err != nil {
		return model.Question{}, err
	}
	tmpl, err := s.store.GetTemplate(ctx, templateID)
	if err != nil {
		return model.Question{}, err
	}
	if tmpl.Status == model.StatusArchived {
		return model.Question{}, model.NewBadRequestError("template is archived")
	}
	if !tmpl.AvailableInRegion(f.RegionID) {
		return model.Question{}, model.NewForbiddenError("template is not available in this form's region")
	}

	siblings, err := s.store.ListSectionQuestions(ctx, sectionID)
	if err != nil {
		return model.Question{}, err
	}

	q := schema.InstantiateFromTemplate(tmpl, ov)
	q.ID = uuid.NewString()
	q.FormID = sec.FormID
	q.SectionID = sectionID
	q.Order = maxQuestionOrder(siblings) + 1
	q.CreatedBy = actorFrom(ctx)
	q.UpdatedBy = actorFrom(ctx)
	return s.persistNewQuestion(ctx, q)
}

func (s *Service) persistNewQuestion(ctx context.Context, q model.Question) (model.Question, error) {
	siblings, err := s.store.ListQuestions(ctx, q.FormID)
	if err != nil {
		return model.Question{}, err
	}
	if verrs := s.validator.ValidateQuestion(q, siblings); len(verrs) > 0 {
		return model.Question{}, schema.AsInvalidConfiguration(verrs)
	}

	created, err := s.store.CreateQuestion(ctx, q)
	if err != nil {
		return model.Question{}, err
	}
	s.touchForm(ctx, q.FormID, model.HistoryUpdated, map[string]any{"question_added": created.ID})
	s.logger.Info("question created",
		zap.String("form_id", q.FormID), zap.String("question_id", created.ID),
		zap.String("tkey", created.TKey))
	return created, nil
}

// UpdateQuestionInput carries the editable fields of a question plus the
// etag the caller last observed. Nil pointers leave the current value
// unchanged; non-nil slices replace wholesale.
type UpdateQuestionInput struct {
	Etag            string                  `json:"etag"`
	TKey            *string                 `json:"tkey,omitempty"`
	Label           *string                 `json:"label,omitempty"`
	HelperText      *string                 `json:"helper_text,omitempty"`
	AnswerType      *model.AnswerType       `json:"answer_type,omitempty"`
	Required        *bool                   `json:"required,omitempty"`
	Order           *int                    `json:"order,omitempty"`
	Validation      *[]model.ValidationRule `json:"validation,omitempty"`
	Visibility      *[]model.VisibilityRule `json:"visibility,omitempty"`
	DefaultValue    *string                 `json:"default_value,omitempty"`
	Options         *[]model.PicklistOption `json:"options,omitempty"`
	OptionsEndpoint *string                 `json:"options_endpoint,omitempty"`
	DependsOn       *[]string               `json:"depends_on,omitempty"`
	Storage         *model.StorageConfig    `json:"storage,omitempty"`
}

// UpdateQuestion edits a question guarded by its etag.
func (s *Service) UpdateQuestion(ctx context.Context, questionID string, in UpdateQuestionInput) (model.Question, error) {
	if in.Etag == "" {
		return model.Question{}, model.NewBadRequestError("etag is required")
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return model.Question{}, err
	}
	if q.Status == model.StatusArchived {
		return model.Question{}, model.NewInvalidTransitionError("archived questions cannot be edited")
	}

	applyQuestionInput(&q, in)

	siblings, err := s.store.ListQuestions(ctx, q.FormID)
	if err != nil {
		return model.Question{}, err
	}
	if verrs := s.validator.ValidateQuestion(q, siblings); len(verrs) > 0 {
		return model.Question{}, schema.AsInvalidConfiguration(verrs)
	}

	q.Etag = in.Etag
	q.UpdatedBy = actorFrom(ctx)
	updated, err := s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return model.Question{}, err
	}
	s.touchForm(ctx, q.FormID, model.HistoryUpdated, map[string]any{"question_updated": questionID})
	return updated, nil
}

func applyQuestionInput(q *model.Question, in UpdateQuestionInput) {
	if in.TKey != nil {
		q.TKey = *in.TKey
	}
	if in.Label != nil {
		q.Label = *in.Label
	}
	if in.HelperText != nil {
		q.HelperText = *in.HelperText
	}
	if in.AnswerType != nil {
		q.AnswerType = *in.AnswerType
	}
	if in.Required != nil {
		q.Required = *in.Required
	}
	if in.Order != nil {
		q.Order = *in.Order
	}
	if in.Validation != nil {
		q.Validation = *in.Validation
	}
	if in.Visibility != nil {
		q.Visibility = *in.Visibility
	}
	if in.DefaultValue != nil {
		q.DefaultValue = *in.DefaultValue
	}
	if in.Options != nil {
		q.Options = *in.Options
	}
	if in.OptionsEndpoint != nil {
		q.OptionsEndpoint = *in.OptionsEndpoint
	}
	if in.DependsOn != nil {
		q.DependsOn = *in.DependsOn
	}
	if in.Storage != nil {
		q.Storage = in.Storage
	}
}

// GetQuestion retrieves a single question by ID.
func (s *Service) GetQuestion(ctx context.Context, questionID string) (model.Question, error) {
	return s.store.GetQuestion(ctx, questionID)
}

// ArchiveQuestion retires a question. Its tkey becomes reusable.
func (s *Service) ArchiveQuestion(ctx context.Context, questionID, etag string) (model.Question, error) {
	if etag == "" {
		return model.Question{}, model.NewBadRequestError("etag is required")
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return model.Question{}, err
	}
	if q.Status == model.StatusArchived {
		return model.Question{}, model.NewInvalidTransitionError("question is already archived")
	}

	q.Status = model.StatusArchived
	q.Etag = etag
	q.UpdatedBy = actorFrom(ctx)
	archived, err := s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return model.Question{}, err
	}
	s.touchForm(ctx, q.FormID, model.HistoryUpdated, map[string]any{"question_archived": questionID})
	return archived, nil
}

// MoveQuestion relocates a question to another section of the same form,
// appending it after that section's last question.
func (s *Service) MoveQuestion(ctx context.Context, questionID, targetSectionID, etag string) (model.Question, error) {
	if etag == "" {
		return model.Question{}, model.NewBadRequestError("etag is required")
	}
	q, err := s.store.GetQuestion(ctx, questionID)
	if err != nil {
		return model.Question{}, err
	}
	if q.Status == model.StatusArchived {
		return model.Question{}, model.NewInvalidTransitionError("archived questions cannot be moved")
	}
	target, err := s.store.GetSection(ctx, targetSectionID)
	if err != nil {
		return model.Question{}, err
	}
	if target.FormID != q.FormID {
		return model.Question{}, model.NewBadRequestError("target section belongs to a different form")
	}
	if target.Status == model.StatusArchived {
		return model.Question{}, model.NewInvalidTransitionError("cannot move a question into an archived section")
	}

	siblings, err := s.store.ListSectionQuestions(ctx, targetSectionID)
	if err != nil {
		return model.Question{}, err
	}

	q.SectionID = targetSectionID
	q.Order = maxQuestionOrder(siblings) + 1
	q.Etag = etag
	q.UpdatedBy = actorFrom(ctx)
	moved, err := s.store.UpdateQuestion(ctx, q)
	if err != nil {
		return model.Question{}, err
	}
	s.touchForm(ctx, q.FormID, model.HistoryUpdated, map[string]any{
		"question_moved": questionID, "target_section": targetSectionID,
	})
	return moved, nil
}

// ReorderQuestions applies a new ordering within a section. The orders map
// is keyed by question ID.
func (s *Service) ReorderQuestions(ctx context.Context, sectionID string, orders map[string]int) error {
	questions, err := s.store.ListSectionQuestions(ctx, sectionID)
	if err != nil {
		return err
	}
	byID := map[string]model.Question{}
	for _, q := range questions {
		byID[q.ID] = q
	}
	var formID string
	for id, order := range orders {
		q, ok := byID[id]
		if !ok {
			return model.NewNotFoundError("question " + id + " not found in section")
		}
		if order < 1 {
			return model.NewBadRequestError("order must be >= 1")
		}
		formID = q.FormID
		if q.Order == order {
			continue
		}
		q.Order = order
		q.UpdatedBy = actorFrom(ctx)
		if _, err := s.store.UpdateQuestion(ctx, q); err != nil {
			return err
		}
	}
	if formID != "" {
		s.touchForm(ctx, formID, model.HistoryUpdated, map[string]any{"questions_reordered": len(orders)})
	}
	return nil
}

func maxQuestionOrder(qs []model.Question) int {
	max := 0
	for _, q := range qs {
		if q.Order > max {
			max = q.Order
		}
	}
	return max
}
