package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/formsmith/formsmith/model"
)

// MemoryStore is an in-memory Store for tests and single-node deployments.
type MemoryStore struct {
	mu        sync.RWMutex
	forms     map[string]model.Form
	sections  map[string]model.Section
	questions map[string]model.Question
	templates map[string]model.QuestionTemplate
	history   map[string][]model.FormHistoryEntry // key: form ID
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		forms:     make(map[string]model.Form),
		sections:  make(map[string]model.Section),
		questions: make(map[string]model.Question),
		templates: make(map[string]model.QuestionTemplate),
		history:   make(map[string][]model.FormHistoryEntry),
	}
}

// HealthCheck always succeeds for the in-memory store.
func (s *MemoryStore) HealthCheck(_ context.Context) error {
	return nil
}

// CreateForm persists a new form.
func (s *MemoryStore) CreateForm(_ context.Context, f model.Form) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.forms[f.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("form %q already exists", f.ID))
	}
	now := time.Now().UTC()
	if f.CreatedAt.IsZero() {
		f.CreatedAt = now
	}
	f.UpdatedAt = now
	if f.Version == 0 {
		f.Version = 1
	}
	s.forms[f.ID] = f
	return nil
}

// GetForm retrieves a form by ID.
func (s *MemoryStore) GetForm(_ context.Context, id string) (model.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	f, exists := s.forms[id]
	if !exists {
		return model.Form{}, model.NewNotFoundError(fmt.Sprintf("form %q not found", id))
	}
	return f, nil
}

// UpdateForm persists an updated form with optimistic locking on version.
func (s *MemoryStore) UpdateForm(_ context.Context, f model.Form) (model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.forms[f.ID]
	if !exists {
		return model.Form{}, model.NewNotFoundError(fmt.Sprintf("form %q not found", f.ID))
	}
	if existing.Version != f.Version {
		return model.Form{}, model.NewConflictError(
			fmt.Sprintf("form %q version conflict (expected %d, got %d)", f.ID, f.Version, existing.Version),
		)
	}

	f.Version++
	f.UpdatedAt = time.Now().UTC()
	s.forms[f.ID] = f
	return f, nil
}

// ListForms returns forms matching the filters, newest first.
func (s *MemoryStore) ListForms(_ context.Context, filters FormFilters) ([]model.Form, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Form
	for _, f := range s.forms {
		if filters.RegionID != 0 && f.RegionID != filters.RegionID {
			continue
		}
		if filters.Status != "" && f.Status != filters.Status {
			continue
		}
		if filters.FormType != "" && f.FormType != filters.FormType {
			continue
		}
		result = append(result, f)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})

	if filters.Offset > 0 {
		if filters.Offset >= len(result) {
			return []model.Form{}, nil
		}
		result = result[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(result) {
		result = result[:filters.Limit]
	}
	return result, nil
}

// CreateSection persists a new section and assigns its initial etag.
func (s *MemoryStore) CreateSection(_ context.Context, sec model.Section) (model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sections[sec.ID]; exists {
		return model.Section{}, model.NewConflictError(fmt.Sprintf("section %q already exists", sec.ID))
	}
	stamp(&sec.Etag, &sec.Version, &sec.CreatedAt, &sec.UpdatedAt)
	s.sections[sec.ID] = sec
	return sec, nil
}

// GetSection retrieves a section by ID.
func (s *MemoryStore) GetSection(_ context.Context, id string) (model.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sec, exists := s.sections[id]
	if !exists {
		return model.Section{}, model.NewNotFoundError(fmt.Sprintf("section %q not found", id))
	}
	return sec, nil
}

// UpdateSection persists an updated section. The incoming Etag must match
// the stored one; on success a fresh etag is assigned and the version
// incremented.
func (s *MemoryStore) UpdateSection(_ context.Context, sec model.Section) (model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateSectionLocked(sec)
}

func (s *MemoryStore) updateSectionLocked(sec model.Section) (model.Section, error) {
	existing, exists := s.sections[sec.ID]
	if !exists {
		return model.Section{}, model.NewNotFoundError(fmt.Sprintf("section %q not found", sec.ID))
	}
	if existing.Etag != sec.Etag {
		return model.Section{}, model.NewConflictError(
			fmt.Sprintf("section %q was modified by someone else", sec.ID),
		)
	}

	sec.Etag = uuid.NewString()
	sec.Version = existing.Version + 1
	sec.UpdatedAt = time.Now().UTC()
	s.sections[sec.ID] = sec
	return sec, nil
}

// ArchiveSection archives a section and all of its non-archived questions
// under one lock, so readers never observe a half-archived section.
func (s *MemoryStore) ArchiveSection(_ context.Context, sectionID, etag, actor string) (model.Section, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sec, exists := s.sections[sectionID]
	if !exists {
		return model.Section{}, model.NewNotFoundError(fmt.Sprintf("section %q not found", sectionID))
	}
	sec.Etag = etag
	sec.Status = model.StatusArchived
	sec.IsActive = false
	sec.UpdatedBy = actor
	updated, err := s.updateSectionLocked(sec)
	if err != nil {
		return model.Section{}, err
	}

	now := time.Now().UTC()
	for id, q := range s.questions {
		if q.SectionID != sectionID || q.Status == model.StatusArchived {
			continue
		}
		q.Status = model.StatusArchived
		q.Etag = uuid.NewString()
		q.Version++
		q.UpdatedAt = now
		q.UpdatedBy = actor
		s.questions[id] = q
	}
	return updated, nil
}

// ListSections returns a form's sections ordered by (order, id).
func (s *MemoryStore) ListSections(_ context.Context, formID string) ([]model.Section, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Section
	for _, sec := range s.sections {
		if sec.FormID == formID {
			result = append(result, sec)
		}
	}
	sortSections(result)
	return result, nil
}

// CreateQuestion persists a new question and assigns its initial etag.
func (s *MemoryStore) CreateQuestion(_ context.Context, q model.Question) (model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.questions[q.ID]; exists {
		return model.Question{}, model.NewConflictError(fmt.Sprintf("question %q already exists", q.ID))
	}
	stamp(&q.Etag, &q.Version, &q.CreatedAt, &q.UpdatedAt)
	s.questions[q.ID] = q
	return q, nil
}

// GetQuestion retrieves a question by ID.
func (s *MemoryStore) GetQuestion(_ context.Context, id string) (model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	q, exists := s.questions[id]
	if !exists {
		return model.Question{}, model.NewNotFoundError(fmt.Sprintf("question %q not found", id))
	}
	return q, nil
}

// UpdateQuestion persists an updated question with etag compare-and-swap.
func (s *MemoryStore) UpdateQuestion(_ context.Context, q model.Question) (model.Question, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateQuestionLocked(q)
}

func (s *MemoryStore) updateQuestionLocked(q model.Question) (model.Question, error) {
	existing, exists := s.questions[q.ID]
	if !exists {
		return model.Question{}, model.NewNotFoundError(fmt.Sprintf("question %q not found", q.ID))
	}
	if existing.Etag != q.Etag {
		return model.Question{}, model.NewConflictError(
			fmt.Sprintf("question %q was modified by someone else", q.ID),
		)
	}

	q.Etag = uuid.NewString()
	q.Version = existing.Version + 1
	q.UpdatedAt = time.Now().UTC()
	s.questions[q.ID] = q
	return q, nil
}

// ListQuestions returns all questions of a form ordered by (order, id).
func (s *MemoryStore) ListQuestions(_ context.Context, formID string) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Question
	for _, q := range s.questions {
		if q.FormID == formID {
			result = append(result, q)
		}
	}
	sortQuestions(result)
	return result, nil
}

// ListSectionQuestions returns a section's questions ordered by (order, id).
func (s *MemoryStore) ListSectionQuestions(_ context.Context, sectionID string) ([]model.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.Question
	for _, q := range s.questions {
		if q.SectionID == sectionID {
			result = append(result, q)
		}
	}
	sortQuestions(result)
	return result, nil
}

// CreateTemplate persists a new question template.
func (s *MemoryStore) CreateTemplate(_ context.Context, t model.QuestionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[t.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("template %q already exists", t.ID))
	}
	s.templates[t.ID] = t
	return nil
}

// GetTemplate retrieves a template by ID.
func (s *MemoryStore) GetTemplate(_ context.Context, id string) (model.QuestionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.templates[id]
	if !exists {
		return model.QuestionTemplate{}, model.NewNotFoundError(fmt.Sprintf("template %q not found", id))
	}
	return t, nil
}

// UpdateTemplate replaces a stored template.
func (s *MemoryStore) UpdateTemplate(_ context.Context, t model.QuestionTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.templates[t.ID]; !exists {
		return model.NewNotFoundError(fmt.Sprintf("template %q not found", t.ID))
	}
	s.templates[t.ID] = t
	return nil
}

// ListTemplates returns templates matching all set filters, sorted by label.
func (s *MemoryStore) ListTemplates(_ context.Context, filters TemplateFilters) ([]model.QuestionTemplate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.QuestionTemplate
	for _, t := range s.templates {
		if matchesTemplate(t, filters) {
			result = append(result, t)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Label < result[j].Label
	})
	return result, nil
}

func matchesTemplate(t model.QuestionTemplate, filters TemplateFilters) bool {
	if !filters.IncludeArchived && t.Status == model.StatusArchived {
		return false
	}
	if filters.RegionID != 0 && !t.AvailableInRegion(filters.RegionID) {
		return false
	}
	if filters.Category != "" && t.Category != filters.Category {
		return false
	}
	if filters.AnswerType != "" && t.AnswerType != filters.AnswerType {
		return false
	}
	if filters.Text != "" {
		needle := strings.ToLower(filters.Text)
		if !strings.Contains(strings.ToLower(t.Label), needle) &&
			!strings.Contains(strings.ToLower(t.TKey), needle) &&
			!strings.Contains(strings.ToLower(t.HelperText), needle) {
			return false
		}
	}
	return true
}

// TemplateUsage reports every question instantiated from a template.
func (s *MemoryStore) TemplateUsage(_ context.Context, templateID string) ([]model.TemplateUsage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []model.TemplateUsage
	for _, q := range s.questions {
		if q.QuestionTemplateID != templateID {
			continue
		}
		u := model.TemplateUsage{
			FormID:     q.FormID,
			SectionID:  q.SectionID,
			QuestionID: q.ID,
			IsActive:   q.Status == model.StatusActive,
		}
		if f, ok := s.forms[q.FormID]; ok {
			u.FormName = f.Name
		}
		if sec, ok := s.sections[q.SectionID]; ok {
			u.SectionName = sec.Name
		}
		result = append(result, u)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].FormID != result[j].FormID {
			return result[i].FormID < result[j].FormID
		}
		return result[i].QuestionID < result[j].QuestionID
	})
	return result, nil
}

// AppendHistory adds an entry to a form's append-only history log.
func (s *MemoryStore) AppendHistory(_ context.Context, entry model.FormHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history[entry.FormID] = append(s.history[entry.FormID], entry)
	return nil
}

// GetHistory returns a form's history ordered by timestamp.
func (s *MemoryStore) GetHistory(_ context.Context, formID string) ([]model.FormHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[formID]
	result := make([]model.FormHistoryEntry, len(entries))
	copy(result, entries)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})
	return result, nil
}

// stamp fills in the bookkeeping fields of a freshly created entity.
func stamp(etag *string, version *int, createdAt, updatedAt *time.Time) {
	now := time.Now().UTC()
	if *etag == "" {
		*etag = uuid.NewString()
	}
	if *version == 0 {
		*version = 1
	}
	if createdAt.IsZero() {
		*createdAt = now
	}
	*updatedAt = now
}

func sortSections(secs []model.Section) {
	sort.Slice(secs, func(i, j int) bool {
		if secs[i].Order != secs[j].Order {
			return secs[i].Order < secs[j].Order
		}
		return secs[i].ID < secs[j].ID
	})
}

func sortQuestions(qs []model.Question) {
	sort.Slice(qs, func(i, j int) bool {
		if qs[i].Order != qs[j].Order {
			return qs[i].Order < qs[j].Order
		}
		return qs[i].ID < qs[j].ID
	})
}
