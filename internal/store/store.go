// Package store persists forms, sections, questions, templates, and the
// form history log. Two implementations exist: an in-memory store used for
// tests and single-node deployments, and a PostgreSQL store for everything
// else. Both enforce optimistic concurrency on sections and questions via
// etag compare-and-swap and on forms via version checks.
package store

import (
	"context"

	"github.com/formsmith/formsmith/model"
)

// FormFilters narrows ListForms results. Zero values mean no filtering.
type FormFilters struct {
	RegionID int
	Status   model.FormStatus
	FormType string
	Limit    int
	Offset   int
}

// TemplateFilters narrows ListTemplates results. All set filters must
// match. RegionID matches templates available in that region, including
// global ones.
type TemplateFilters struct {
	RegionID        int
	Category        string
	AnswerType      model.AnswerType
	Text            string
	IncludeArchived bool
}

// Store is the persistence boundary of the engine.
type Store interface {
	CreateForm(ctx context.Context, f model.Form) error
	GetForm(ctx context.Context, id string) (model.Form, error)
	UpdateForm(ctx context.Context, f model.Form) (model.Form, error)
	ListForms(ctx context.Context, filters FormFilters) ([]model.Form, error)

	CreateSection(ctx context.Context, s model.Section) (model.Section, error)
	GetSection(ctx context.Context, id string) (model.Section, error)
	UpdateSection(ctx context.Context, s model.Section) (model.Section, error)
	ListSections(ctx context.Context, formID string) ([]model.Section, error)
	// ArchiveSection archives a section and every non-archived question in
	// it as one atomic operation, guarded by the section's etag.
	ArchiveSection(ctx context.Context, sectionID, etag, actor string) (model.Section, error)

	CreateQuestion(ctx context.Context, q model.Question) (model.Question, error)
	GetQuestion(ctx context.Context, id string) (model.Question, error)
	UpdateQuestion(ctx context.Context, q model.Question) (model.Question, error)
	ListQuestions(ctx context.Context, formID string) ([]model.Question, error)
	ListSectionQuestions(ctx context.Context, sectionID string) ([]model.Question, error)

	CreateTemplate(ctx context.Context, t model.QuestionTemplate) error
	GetTemplate(ctx context.Context, id string) (model.QuestionTemplate, error)
	UpdateTemplate(ctx context.Context, t model.QuestionTemplate) error
	ListTemplates(ctx context.Context, filters TemplateFilters) ([]model.QuestionTemplate, error)
	TemplateUsage(ctx context.Context, templateID string) ([]model.TemplateUsage, error)

	AppendHistory(ctx context.Context, entry model.FormHistoryEntry) error
	GetHistory(ctx context.Context, formID string) ([]model.FormHistoryEntry, error)
}
