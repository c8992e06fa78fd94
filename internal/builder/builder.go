// Package builder implements the form authoring lifecycle: creating and
// editing forms, sections, and questions, publishing, and keeping the form
// history log. All mutations run through the schema validator and record an
// audit entry, and every mutation bumps the owning form's version.
package builder

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/schema"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/model"
)

// Service orchestrates form authoring against a Store.
type Service struct {
	store     store.Store
	validator *schema.Validator
	logger    *zap.Logger
}

// NewService creates a builder service.
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

// FormDetail is a form assembled with its sections and their questions.
type FormDetail struct {
	Form     model.Form      `json:"form"`
	Sections []SectionDetail `json:"sections"`
}

// SectionDetail is a section with its questions in display order.
type SectionDetail struct {
	Section   model.Section    `json:"section"`
	Questions []model.Question `json:"questions"`
}

// CreateFormInput carries the caller-supplied fields of a new form.
type CreateFormInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	FormType    string `json:"form_type"`
	RegionID    int    `json:"region_id"`
}

// CreateForm creates a draft form and records the first history entry.
func (s *Service) CreateForm(ctx context.Context, in CreateFormInput) (model.Form, error) {
	if strings.TrimSpace(in.Name) == "" {
		return model.Form{}, model.NewBadRequestError("form name is required")
	}

	f := model.Form{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Slug:        slugify(in.Name),
		Description: in.Description,
		FormType:    in.FormType,
		RegionID:    in.RegionID,
		Status:      model.FormStatusDraft,
		Version:     1,
	}
	if err := s.store.CreateForm(ctx, f); err != nil {
		return model.Form{}, err
	}

	s.appendHistory(ctx, f.ID, 1, model.HistoryCreated, map[string]any{"name": f.Name})
	s.logger.Info("form created",
		zap.String("form_id", f.ID), zap.String("name", f.Name), zap.Int("region_id", f.RegionID))

	created, err := s.store.GetForm(ctx, f.ID)
	if err != nil {
		return f, nil
	}
	return created, nil
}

// UpdateFormInput carries the editable metadata of a form. Nil pointers
// leave the current value unchanged.
type UpdateFormInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	FormType    *string `json:"form_type,omitempty"`
}

// UpdateForm edits a form's metadata. Archived forms cannot be edited.
func (s *Service) UpdateForm(ctx context.Context, formID string, in UpdateFormInput) (model.Form, error) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return model.Form{}, err
	}
	if f.Status == model.FormStatusArchived {
		return model.Form{}, model.NewInvalidTransitionError("archived forms cannot be edited")
	}

	changes := map[string]any{}
	if in.Name != nil && *in.Name != f.Name {
		if strings.TrimSpace(*in.Name) == "" {
			return model.Form{}, model.NewBadRequestError("form name is required")
		}
		changes["name"] = *in.Name
		f.Name = *in.Name
		f.Slug = slugify(*in.Name)
	}
	if in.Description != nil && *in.Description != f.Description {
		changes["description"] = *in.Description
		f.Description = *in.Description
	}
	if in.FormType != nil && *in.FormType != f.FormType {
		changes["form_type"] = *in.FormType
		f.FormType = *in.FormType
	}
	if len(changes) == 0 {
		return f, nil
	}

	updated, err := s.store.UpdateForm(ctx, f)
	if err != nil {
		return model.Form{}, err
	}
	s.appendHistory(ctx, updated.ID, updated.Version, model.HistoryUpdated, changes)
	return updated, nil
}

// GetForm returns a form with its sections and questions assembled in
// display order.
func (s *Service) GetForm(ctx context.Context, formID string) (FormDetail, error) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return FormDetail{}, err
	}
	sections, err := s.store.ListSections(ctx, formID)
	if err != nil {
		return FormDetail{}, err
	}

	detail := FormDetail{Form: f}
	for _, sec := range sections {
		questions, err := s.store.ListSectionQuestions(ctx, sec.ID)
		if err != nil {
			return FormDetail{}, err
		}
		detail.Sections = append(detail.Sections, SectionDetail{Section: sec, Questions: questions})
	}
	return detail, nil
}

// ListForms returns forms matching the filters.
func (s *Service) ListForms(ctx context.Context, filters store.FormFilters) ([]model.Form, error) {
	return s.store.ListForms(ctx, filters)
}

// PublishForm transitions a draft form to active. The form must contain at
// least one active section holding at least one non-archived question, and
// every question must pass structural validation at active strictness.
func (s *Service) PublishForm(ctx context.Context, formID string) (model.Form, error) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return model.Form{}, err
	}
	if f.Status == model.FormStatusArchived {
		return model.Form{}, model.NewInvalidTransitionError("archived forms cannot be published")
	}
	if f.Status == model.FormStatusActive {
		return model.Form{}, model.NewInvalidTransitionError("form is already published")
	}

	sections, err := s.store.ListSections(ctx, formID)
	if err != nil {
		return model.Form{}, err
	}
	questions, err := s.store.ListQuestions(ctx, formID)
	if err != nil {
		return model.Form{}, err
	}

	if err := s.checkPublishable(sections, questions); err != nil {
		return model.Form{}, err
	}

	// Activate whatever is still in draft so the published form is coherent.
	for _, sec := range sections {
		if sec.Status != model.StatusDraft {
			continue
		}
		sec.Status = model.StatusActive
		sec.IsActive = true
		if _, err := s.store.UpdateSection(ctx, sec); err != nil {
			return model.Form{}, err
		}
	}
	for _, q := range questions {
		if q.Status != model.StatusDraft {
			continue
		}
		q.Status = model.StatusActive
		if _, err := s.store.UpdateQuestion(ctx, q); err != nil {
			return model.Form{}, err
		}
	}

	now := time.Now().UTC()
	f.Status = model.FormStatusActive
	f.HasPublishedVersion = true
	f.PublishedAt = &now

	updated, err := s.store.UpdateForm(ctx, f)
	if err != nil {
		return model.Form{}, err
	}
	s.appendHistory(ctx, updated.ID, updated.Version, model.HistoryPublished, nil)
	s.logger.Info("form published", zap.String("form_id", updated.ID), zap.Int("version", updated.Version))
	return updated, nil
}

func (s *Service) checkPublishable(sections []model.Section, questions []model.Question) error {
	questionsBySection := map[string]int{}
	for _, q := range questions {
		if q.Status != model.StatusArchived {
			questionsBySection[q.SectionID]++
		}
	}

	publishable := false
	for _, sec := range sections {
		if sec.Status == model.StatusArchived {
			continue
		}
		if questionsBySection[sec.ID] > 0 {
			publishable = true
			break
		}
	}
	if !publishable {
		return model.NewEmptyFormError("form needs at least one section with at least one question to publish")
	}

	var details []model.FieldError
	for _, q := range questions {
		if q.Status == model.StatusArchived {
			continue
		}
		strict := q
		strict.Status = model.StatusActive
		for _, ve := range s.validator.ValidateQuestion(strict, questions) {
			details = append(details, model.FieldError{
				Field:   fmt.Sprintf("questions[%s].%s", q.ID, ve.Path),
				Code:    ve.Code,
				Message: ve.Message,
			})
		}
	}
	if len(details) > 0 {
		ee := model.NewInvalidConfigurationError("form has questions that are not ready to publish")
		ee.Details = details
		return ee
	}
	return nil
}

// UnpublishForm takes an active form back to draft. The published flag and
// timestamp are kept so the history of having been live survives.
func (s *Service) UnpublishForm(ctx context.Context, formID string) (model.Form, error) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return model.Form{}, err
	}
	if f.Status != model.FormStatusActive {
		return model.Form{}, model.NewInvalidTransitionError("only published forms can be unpublished")
	}

	f.Status = model.FormStatusDraft
	updated, err := s.store.UpdateForm(ctx, f)
	if err != nil {
		return model.Form{}, err
	}
	s.appendHistory(ctx, updated.ID, updated.Version, model.HistoryUnpublished, nil)
	return updated, nil
}

// ArchiveForm retires a form permanently. Archived is terminal.
func (s *Service) ArchiveForm(ctx context.Context, formID string) (model.Form, error) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return model.Form{}, err
	}
	if f.Status == model.FormStatusArchived {
		return model.Form{}, model.NewInvalidTransitionError("form is already archived")
	}

	f.Status = model.FormStatusArchived
	updated, err := s.store.UpdateForm(ctx, f)
	if err != nil {
		return model.Form{}, err
	}
	s.appendHistory(ctx, updated.ID, updated.Version, model.HistoryArchived, nil)
	s.logger.Info("form archived", zap.String("form_id", updated.ID))
	return updated, nil
}

// GetHistory returns a form's audit trail, oldest first.
func (s *Service) GetHistory(ctx context.Context, formID string) ([]model.FormHistoryEntry, error) {
	if _, err := s.store.GetForm(ctx, formID); err != nil {
		return nil, err
	}
	return s.store.GetHistory(ctx, formID)
}

// touchForm bumps the form version after a nested mutation and records the
// history entry. Conflicts here mean a concurrent form edit; the nested
// entity write already succeeded, so the caller's change stands and only
// the bookkeeping is reported.
func (s *Service) touchForm(ctx context.Context, formID, action string, changes map[string]any) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		s.logger.Warn("form version bump skipped", zap.String("form_id", formID), zap.Error(err))
		return
	}
	updated, err := s.store.UpdateForm(ctx, f)
	if err != nil {
		s.logger.Warn("form version bump conflict", zap.String("form_id", formID), zap.Error(err))
		updated = f
	}
	s.appendHistory(ctx, formID, updated.Version, action, changes)
}

func (s *Service) appendHistory(ctx context.Context, formID string, version int, action string, changes map[string]any) {
	entry := model.FormHistoryEntry{
		ID:        uuid.NewString(),
		FormID:    formID,
		Version:   version,
		Action:    action,
		Changes:   changes,
		Actor:     actorFrom(ctx),
		Timestamp: time.Now().UTC(),
	}
	if err := s.store.AppendHistory(ctx, entry); err != nil {
		s.logger.Error("history append failed",
			zap.String("form_id", formID), zap.String("action", action), zap.Error(err))
	}
}

func actorFrom(ctx context.Context) string {
	rc := model.RequestContextFrom(ctx)
	if rc == nil {
		return "system"
	}
	if rc.Email != "" {
		return rc.Email
	}
	return rc.SubjectID
}

func slugify(name string) string {
	var b strings.Builder
	prevDash := true
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
			prevDash = false
		default:
			if !prevDash {
				b.WriteByte('-')
				prevDash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
