package builder

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/schema"
	"github.com/formsmith/formsmith/model"
)

// CreateSectionInput carries the caller-supplied fields of a new section.
// Order zero means "append after the last section".
type CreateSectionInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Order       int    `json:"order"`
}

// CreateSection adds a section to a form.
func (s *Service) CreateSection(ctx context.Context, formID string, in CreateSectionInput) (model.Section, error) {
	f, err := s.store.GetForm(ctx, formID)
	if err != nil {
		return model.Section{}, err
	}
	if f.Status == model.FormStatusArchived {
		return model.Section{}, model.NewInvalidTransitionError("archived forms cannot be edited")
	}

	order := in.Order
	if order == 0 {
		existing, err := s.store.ListSections(ctx, formID)
		if err != nil {
			return model.Section{}, err
		}
		order = maxSectionOrder(existing) + 1
	}

	sec := model.Section{
		ID:          uuid.NewString(),
		FormID:      formID,
		Name:        in.Name,
		Description: in.Description,
		Order:       order,
		IsActive:    true,
		Status:      model.StatusDraft,
		CreatedBy:   actorFrom(ctx),
		UpdatedBy:   actorFrom(ctx),
	}
	if verrs := s.validator.ValidateSection(sec); len(verrs) > 0 {
		return model.Section{}, schema.AsInvalidConfiguration(verrs)
	}

	created, err := s.store.CreateSection(ctx, sec)
	if err != nil {
		return model.Section{}, err
	}
	s.touchForm(ctx, formID, model.HistoryUpdated, map[string]any{"section_added": created.ID})
	s.logger.Info("section created",
		zap.String("form_id", formID), zap.String("section_id", created.ID))
	return created, nil
}

// UpdateSectionInput carries the editable fields of a section plus the etag
// the caller last observed.
type UpdateSectionInput struct {
	Etag        string  `json:"etag"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Order       *int    `json:"order,omitempty"`
}

// UpdateSection edits a section guarded by its etag.
func (s *Service) UpdateSection(ctx context.Context, sectionID string, in UpdateSectionInput) (model.Section, error) {
	if in.Etag == "" {
		return model.Section{}, model.NewBadRequestError("etag is required")
	}
	sec, err := s.store.GetSection(ctx, sectionID)
	if err != nil {
		return model.Section{}, err
	}
	if sec.Status == model.StatusArchived {
		return model.Section{}, model.NewInvalidTransitionError("archived sections cannot be edited")
	}

	changes := map[string]any{}
	if in.Name != nil && *in.Name != sec.Name {
		changes["name"] = *in.Name
		sec.Name = *in.Name
	}
	if in.Description != nil && *in.Description != sec.Description {
		changes["description"] = *in.Description
		sec.Description = *in.Description
	}
	if in.Order != nil && *in.Order != sec.Order {
		changes["order"] = *in.Order
		sec.Order = *in.Order
	}
	if len(changes) == 0 {
		return sec, nil
	}

	if verrs := s.validator.ValidateSection(sec); len(verrs) > 0 {
		return model.Section{}, schema.AsInvalidConfiguration(verrs)
	}

	sec.Etag = in.Etag
	sec.UpdatedBy = actorFrom(ctx)
	updated, err := s.store.UpdateSection(ctx, sec)
	if err != nil {
		return model.Section{}, err
	}
	s.touchForm(ctx, sec.FormID, model.HistoryUpdated, map[string]any{"section_updated": sectionID})
	return updated, nil
}

// ArchiveSection archives a section and every question in it.
func (s *Service) ArchiveSection(ctx context.Context, sectionID, etag string) (model.Section, error) {
	if etag == "" {
		return model.Section{}, model.NewBadRequestError("etag is required")
	}
	archived, err := s.store.ArchiveSection(ctx, sectionID, etag, actorFrom(ctx))
	if err != nil {
		return model.Section{}, err
	}
	s.touchForm(ctx, archived.FormID, model.HistoryUpdated, map[string]any{"section_archived": sectionID})
	s.logger.Info("section archived",
		zap.String("form_id", archived.FormID), zap.String("section_id", sectionID))
	return archived, nil
}

// ReorderSections applies a new ordering to a form's sections. The orders
// map is keyed by section ID; sections absent from the map keep their
// position. Etags are reassigned by the store on each write.
func (s *Service) ReorderSections(ctx context.Context, formID string, orders map[string]int) error {
	sections, err := s.store.ListSections(ctx, formID)
	if err != nil {
		return err
	}
	byID := map[string]model.Section{}
	for _, sec := range sections {
		byID[sec.ID] = sec
	}
	for id, order := range orders {
		sec, ok := byID[id]
		if !ok {
			return model.NewNotFoundError("section " + id + " not found in form")
		}
		if order < 1 {
			return model.NewBadRequestError("order must be >= 1")
		}
		if sec.Order == order {
			continue
		}
		sec.Order = order
		sec.UpdatedBy = actorFrom(ctx)
		if _, err := s.store.UpdateSection(ctx, sec); err != nil {
			return err
		}
	}
	s.touchForm(ctx, formID, model.HistoryUpdated, map[string]any{"sections_reordered": len(orders)})
	return nil
}

// ListSections returns a form's sections in display order.
func (s *Service) ListSections(ctx context.Context, formID string) ([]model.Section, error) {
	if _, err := s.store.GetForm(ctx, formID); err != nil {
		return nil, err
	}
	return s.store.ListSections(ctx, formID)
}

func maxSectionOrder(secs []model.Section) int {
	max := 0
	for _, sec := range secs {
		if sec.Order > max {
			max = sec.Order
		}
	}
	return max
}
