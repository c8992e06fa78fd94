// Package model defines the entities of the form builder — forms, sections,
// questions, templates — together with their error taxonomy and the request
// context carried through every operation.
package model

import "time"

// FormStatus is the lifecycle state of a form.
type FormStatus string

const (
	FormStatusDraft    FormStatus = "draft"
	FormStatusActive   FormStatus = "active"
	FormStatusArchived FormStatus = "archived"
)

// EntityStatus is the lifecycle state of a section, question, or template.
type EntityStatus string

const (
	StatusDraft    EntityStatus = "draft"
	StatusActive   EntityStatus = "active"
	StatusArchived EntityStatus = "archived"
)

// AnswerType enumerates the supported question answer types.
type AnswerType string

const (
	AnswerText     AnswerType = "text"
	AnswerTextarea AnswerType = "textarea"
	AnswerNumber   AnswerType = "number"
	AnswerDate     AnswerType = "date"
	AnswerDropdown AnswerType = "dropdown"
	AnswerRadio    AnswerType = "radio"
	AnswerCheckbox AnswerType = "checkbox"
	AnswerLookup   AnswerType = "lookup"
	AnswerFormula  AnswerType = "formula"
)

// ValidAnswerTypes is the closed set of answer types.
var ValidAnswerTypes = map[AnswerType]bool{
	AnswerText: true, AnswerTextarea: true, AnswerNumber: true,
	AnswerDate: true, AnswerDropdown: true, AnswerRadio: true,
	AnswerCheckbox: true, AnswerLookup: true, AnswerFormula: true,
}

// NeedsOptions returns true for answer types that must carry an options
// source before the question may leave draft.
func (t AnswerType) NeedsOptions() bool {
	return t == AnswerDropdown || t == AnswerRadio || t == AnswerCheckbox
}

// Form is the top-level container of sections, tied to a region and form type.
type Form struct {
	ID                  string     `json:"id"`
	Name                string     `json:"name"`
	Slug                string     `json:"slug"`
	Description         string     `json:"description,omitempty"`
	FormType            string     `json:"form_type"`
	RegionID            int        `json:"region_id"`
	Status              FormStatus `json:"status"`
	Version             int        `json:"version"`
	HasPublishedVersion bool       `json:"has_published_version"`
	PublishedAt         *time.Time `json:"published_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}

// Section is an ordered grouping of questions within a form. Mutations are
// guarded by the (Etag, Version) pair.
type Section struct {
	ID          string       `json:"id"`
	FormID      string       `json:"form_id"`
	Slug        string       `json:"slug"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Order       int          `json:"order"`
	IsActive    bool         `json:"is_active"`
	Status      EntityStatus `json:"status"`
	Etag        string       `json:"etag"`
	Version     int          `json:"version"`
	CreatedAt   time.Time    `json:"created_at"`
	UpdatedAt   time.Time    `json:"updated_at"`
	CreatedBy   string       `json:"created_by"`
	UpdatedBy   string       `json:"updated_by"`
}

// Question is a single data-collection field within a section. TKey is the
// stable machine key, unique among a form's active questions.
type Question struct {
	ID                 string           `json:"id"`
	FormID             string           `json:"form_id"`
	SectionID          string           `json:"section_id"`
	Order              int              `json:"order"`
	QuestionTemplateID string           `json:"question_template_id,omitempty"`
	TKey               string           `json:"tkey"`
	Label              string           `json:"label"`
	HelperText         string           `json:"helper_text,omitempty"`
	AnswerType         AnswerType       `json:"answer_type"`
	Required           bool             `json:"required"`
	Validation         []ValidationRule `json:"validation,omitempty"`
	Visibility         []VisibilityRule `json:"visibility,omitempty"`
	DefaultValue       string           `json:"default_value,omitempty"`
	Options            []PicklistOption `json:"options,omitempty"`
	OptionsEndpoint    string           `json:"options_endpoint,omitempty"`
	DependsOn          []string         `json:"depends_on,omitempty"`
	Storage            *StorageConfig   `json:"storage,omitempty"`
	Status             EntityStatus     `json:"status"`
	Etag               string           `json:"etag"`
	Version            int              `json:"version"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
	CreatedBy          string           `json:"created_by"`
	UpdatedBy          string           `json:"updated_by"`
}

// QuestionTemplate is a reusable, region-scoped blueprint from which
// questions are instantiated by value-copy.
type QuestionTemplate struct {
	ID               string           `json:"id"`
	TKey             string           `json:"tkey"`
	Label            string           `json:"label"`
	HelperText       string           `json:"helper_text,omitempty"`
	AnswerType       AnswerType       `json:"answer_type"`
	Validation       []ValidationRule `json:"validation,omitempty"`
	DefaultValue     string           `json:"default_value,omitempty"`
	Options          []PicklistOption `json:"options,omitempty"`
	Storage          *StorageConfig   `json:"storage,omitempty"`
	AvailableRegions []int            `json:"available_regions,omitempty"`
	IsGlobal         bool             `json:"is_global"`
	Category         string           `json:"category,omitempty"`
	Tags             []string         `json:"tags,omitempty"`
	Status           EntityStatus     `json:"status"`
	CreatedBy        string           `json:"created_by,omitempty"`
}

// AvailableInRegion reports whether the template may be used in the given
// region. Global templates are available everywhere.
func (t QuestionTemplate) AvailableInRegion(regionID int) bool {
	if t.IsGlobal {
		return true
	}
	for _, r := range t.AvailableRegions {
		if r == regionID {
			return true
		}
	}
	return false
}

// PicklistOption is a label/value pair for choice answer types.
type PicklistOption struct {
	Label     string `json:"label"`
	Value     string `json:"value"`
	Order     int    `json:"order,omitempty"`
	IsDefault bool   `json:"is_default,omitempty"`
	IsActive  bool   `json:"is_active,omitempty"`
}

// StorageConfig describes how a question's answer is persisted downstream.
type StorageConfig struct {
	Column         string `json:"column,omitempty"`
	Encrypted      bool   `json:"encrypted,omitempty"`
	Indexed        bool   `json:"indexed,omitempty"`
	PersistToTable string `json:"persist_to_table,omitempty"`
}

// History actions recorded in a form's audit trail.
const (
	HistoryCreated     = "created"
	HistoryUpdated     = "updated"
	HistoryPublished   = "published"
	HistoryUnpublished = "unpublished"
	HistoryArchived    = "archived"
)

// FormHistoryEntry is one append-only audit record for a form. The log is
// never rewritten or compacted.
type FormHistoryEntry struct {
	ID        string         `json:"id"`
	FormID    string         `json:"form_id"`
	Version   int            `json:"version"`
	Action    string         `json:"action"`
	Changes   map[string]any `json:"changes,omitempty"`
	Actor     string         `json:"actor"`
	Timestamp time.Time      `json:"timestamp"`
}

// Region is a company region a form or template is scoped to.
type Region struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	CountryCode string `json:"country_code"`
	IsActive    bool   `json:"is_active"`
}

// TemplateUsage records one question instantiated from a template, for
// impact analysis before a template is edited or archived.
type TemplateUsage struct {
	FormID      string `json:"form_id"`
	FormName    string `json:"form_name"`
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name"`
	QuestionID  string `json:"question_id"`
	IsActive    bool   `json:"is_active"`
}

// EndpointTestResult is the outcome of probing a remote options endpoint.
type EndpointTestResult struct {
	Success        bool             `json:"success"`
	Options        []PicklistOption `json:"options,omitempty"`
	ResponseTimeMs int64            `json:"response_time_ms"`
	StatusCode     int              `json:"status_code,omitempty"`
	Error          string           `json:"error,omitempty"`
}
