// Package template manages the reusable question template library. Forms
// instantiate templates by value, so template edits and archival never
// change questions already created from them.
package template

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/schema"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/model"
)

// Service manages question templates.
type Service struct {
	store     store.Store
	validator *schema.Validator
	logger    *zap.Logger
}

// NewService creates a template service.
func NewService(st store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:     st,
		validator: schema.NewValidator(),
		logger:    logger,
	}
}

// List returns templates matching all set filters. When the request
// carries a region and the filter does not name one, the caller's region
// scopes the result.
func (s *Service) List(ctx context.Context, filters store.TemplateFilters) ([]model.QuestionTemplate, error) {
	if filters.RegionID == 0 {
		if rc := model.RequestContextFrom(ctx); rc != nil {
			filters.RegionID = rc.RegionID
		}
	}
	return s.store.ListTemplates(ctx, filters)
}

// Get retrieves a template by ID.
func (s *Service) Get(ctx context.Context, id string) (model.QuestionTemplate, error) {
	return s.store.GetTemplate(ctx, id)
}

// CreateInput carries the fields of a new template.
type CreateInput struct {
	TKey             string                 `json:"tkey"`
	Label            string                 `json:"label"`
	HelperText       string                 `json:"helper_text"`
	AnswerType       model.AnswerType       `json:"answer_type"`
	Validation       []model.ValidationRule `json:"validation"`
	DefaultValue     string                 `json:"default_value"`
	Options          []model.PicklistOption `json:"options"`
	Storage          *model.StorageConfig   `json:"storage"`
	AvailableRegions []int                  `json:"available_regions"`
	IsGlobal         bool                   `json:"is_global"`
	Category         string                 `json:"category"`
	Tags             []string               `json:"tags"`
}

// Create adds a template to the library.
func (s *Service) Create(ctx context.Context, in CreateInput) (model.QuestionTemplate, error) {
	answerType := in.AnswerType
	if answerType == "" {
		answerType = model.AnswerText
	}

	t := model.QuestionTemplate{
		ID:               uuid.NewString(),
		TKey:             in.TKey,
		Label:            in.Label,
		HelperText:       in.HelperText,
		AnswerType:       answerType,
		Validation:       in.Validation,
		DefaultValue:     in.DefaultValue,
		Options:          in.Options,
		Storage:          in.Storage,
		AvailableRegions: in.AvailableRegions,
		IsGlobal:         in.IsGlobal,
		Category:         in.Category,
		Tags:             in.Tags,
		Status:           model.StatusActive,
	}
	if rc := model.RequestContextFrom(ctx); rc != nil {
		t.CreatedBy = rc.Email
	}

	if verrs := s.validator.ValidateTemplate(t); len(verrs) > 0 {
		return model.QuestionTemplate{}, schema.AsInvalidConfiguration(verrs)
	}
	if err := s.store.CreateTemplate(ctx, t); err != nil {
		return model.QuestionTemplate{}, err
	}
	s.logger.Info("template created",
		zap.String("template_id", t.ID), zap.String("tkey", t.TKey),
		zap.Bool("is_global", t.IsGlobal))
	return t, nil
}

// UpdateInput carries the editable fields of a template. Nil pointers keep
// the current value; non-nil slices replace wholesale.
type UpdateInput struct {
	Label            *string                 `json:"label,omitempty"`
	HelperText       *string                 `json:"helper_text,omitempty"`
	Validation       *[]model.ValidationRule `json:"validation,omitempty"`
	DefaultValue     *string                 `json:"default_value,omitempty"`
	Options          *[]model.PicklistOption `json:"options,omitempty"`
	Storage          *model.StorageConfig    `json:"storage,omitempty"`
	AvailableRegions *[]int                  `json:"available_regions,omitempty"`
	IsGlobal         *bool                   `json:"is_global,omitempty"`
	Category         *string                 `json:"category,omitempty"`
	Tags             *[]string               `json:"tags,omitempty"`
}

// Update edits a template. Questions already instantiated from it keep
// their copied values.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (model.QuestionTemplate, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return model.QuestionTemplate{}, err
	}
	if t.Status == model.StatusArchived {
		return model.QuestionTemplate{}, model.NewInvalidTransitionError("archived templates cannot be edited")
	}

	if in.Label != nil {
		t.Label = *in.Label
	}
	if in.HelperText != nil {
		t.HelperText = *in.HelperText
	}
	if in.Validation != nil {
		t.Validation = *in.Validation
	}
	if in.DefaultValue != nil {
		t.DefaultValue = *in.DefaultValue
	}
	if in.Options != nil {
		t.Options = *in.Options
	}
	if in.Storage != nil {
		t.Storage = in.Storage
	}
	if in.AvailableRegions != nil {
		t.AvailableRegions = *in.AvailableRegions
	}
	if in.IsGlobal != nil {
		t.IsGlobal = *in.IsGlobal
	}
	if in.Category != nil {
		t.Category = *in.Category
	}
	if in.Tags != nil {
		t.Tags = *in.Tags
	}

	if verrs := s.validator.ValidateTemplate(t); len(verrs) > 0 {
		return model.QuestionTemplate{}, schema.AsInvalidConfiguration(verrs)
	}
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return model.QuestionTemplate{}, err
	}
	return t, nil
}

// Archive retires a template from the library. New questions can no longer
// be created from it; existing questions are untouched.
func (s *Service) Archive(ctx context.Context, id string) (model.QuestionTemplate, error) {
	t, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		return model.QuestionTemplate{}, err
	}
	if t.Status == model.StatusArchived {
		return model.QuestionTemplate{}, model.NewInvalidTransitionError("template is already archived")
	}

	t.Status = model.StatusArchived
	if err := s.store.UpdateTemplate(ctx, t); err != nil {
		return model.QuestionTemplate{}, err
	}
	s.logger.Info("template archived", zap.String("template_id", id))
	return t, nil
}

// Usage reports every question instantiated from a template, for impact
// analysis before an edit or archive.
func (s *Service) Usage(ctx context.Context, id string) ([]model.TemplateUsage, error) {
	if _, err := s.store.GetTemplate(ctx, id); err != nil {
		return nil, err
	}
	return s.store.TemplateUsage(ctx, id)
}
