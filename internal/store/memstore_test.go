package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/formsmith/formsmith/model"
)

func errorCode(t *testing.T, err error) string {
	t.Helper()
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		t.Fatalf("error type = %T, want *model.ErrorEnvelope", err)
	}
	return ee.Code
}

func seedForm(t *testing.T, s *MemoryStore) model.Form {
	t.Helper()
	f := model.Form{ID: "f1", Name: "Intake", Slug: "intake", RegionID: 1, Status: model.FormStatusDraft}
	if err := s.CreateForm(context.Background(), f); err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	got, err := s.GetForm(context.Background(), "f1")
	if err != nil {
		t.Fatalf("GetForm: %v", err)
	}
	return got
}

func seedSection(t *testing.T, s *MemoryStore, id string, order int) model.Section {
	t.Helper()
	sec, err := s.CreateSection(context.Background(), model.Section{
		ID: id, FormID: "f1", Name: "Section " + id, Order: order,
		IsActive: true, Status: model.StatusActive,
	})
	if err != nil {
		t.Fatalf("CreateSection(%s): %v", id, err)
	}
	return sec
}

func seedQuestion(t *testing.T, s *MemoryStore, id, sectionID string, order int) model.Question {
	t.Helper()
	q, err := s.CreateQuestion(context.Background(), model.Question{
		ID: id, FormID: "f1", SectionID: sectionID, Order: order,
		TKey: "k_" + id, Label: id, AnswerType: model.AnswerText,
		Status: model.StatusActive,
	})
	if err != nil {
		t.Fatalf("CreateQuestion(%s): %v", id, err)
	}
	return q
}

func TestMemoryStore_CreateAssignsEtagAndVersion(t *testing.T) {
	s := NewMemoryStore()
	seedForm(t, s)
	sec := seedSection(t, s, "s1", 1)

	if sec.Etag == "" {
		t.Error("Etag empty after create")
	}
	if sec.Version != 1 {
		t.Errorf("Version = %d, want 1", sec.Version)
	}
}

func TestMemoryStore_OptimisticConcurrency(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedForm(t, s)
	sec := seedSection(t, s, "s1", 1)
	e1 := sec.Etag

	// First writer with the observed etag wins.
	sec.Name = "Renamed"
	updated, err := s.UpdateSection(ctx, sec)
	if err != nil {
		t.Fatalf("UpdateSection: %v", err)
	}
	if updated.Etag == e1 {
		t.Error("etag unchanged after update")
	}
	if updated.Version != 2 {
		t.Errorf("Version = %d, want 2", updated.Version)
	}

	// Second writer still holding e1 must get CONFLICT.
	stale := sec
	stale.Etag = e1
	stale.Name = "Other edit"
	_, err = s.UpdateSection(ctx, stale)
	if err == nil {
		t.Fatal("stale update succeeded")
	}
	if code := errorCode(t, err); code != model.ErrConflict {
		t.Errorf("code = %q, want %q", code, model.ErrConflict)
	}
}

func TestMemoryStore_UpdateFormVersionConflict(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	f := seedForm(t, s)

	f.Name = "Renamed"
	updated, err := s.UpdateForm(ctx, f)
	if err != nil {
		t.Fatalf("UpdateForm: %v", err)
	}
	if updated.Version != f.Version+1 {
		t.Errorf("Version = %d, want %d", updated.Version, f.Version+1)
	}

	_, err = s.UpdateForm(ctx, f)
	if code := errorCode(t, err); code != model.ErrConflict {
		t.Errorf("code = %q, want %q", code, model.ErrConflict)
	}
}

func TestMemoryStore_ArchiveSectionCascades(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedForm(t, s)
	sec := seedSection(t, s, "s1", 1)
	seedQuestion(t, s, "q1", "s1", 1)
	seedQuestion(t, s, "q2", "s1", 2)
	seedQuestion(t, s, "q3", "s1", 3)
	other := seedSection(t, s, "s2", 2)
	untouched := seedQuestion(t, s, "q4", "s2", 1)

	archived, err := s.ArchiveSection(ctx, sec.ID, sec.Etag, "admin@example.com")
	if err != nil {
		t.Fatalf("ArchiveSection: %v", err)
	}
	if archived.Status != model.StatusArchived {
		t.Errorf("section status = %q, want archived", archived.Status)
	}

	qs, err := s.ListSectionQuestions(ctx, "s1")
	if err != nil {
		t.Fatalf("ListSectionQuestions: %v", err)
	}
	if len(qs) != 3 {
		t.Fatalf("got %d questions, want 3", len(qs))
	}
	for _, q := range qs {
		if q.Status != model.StatusArchived {
			t.Errorf("question %s status = %q, want archived", q.ID, q.Status)
		}
		if q.Version != 2 {
			t.Errorf("question %s version = %d, want 2", q.ID, q.Version)
		}
	}

	got, _ := s.GetQuestion(ctx, untouched.ID)
	if got.Status != model.StatusActive {
		t.Errorf("question in other section archived: %q", got.Status)
	}
	_ = other
}

func TestMemoryStore_ArchiveSectionStaleEtag(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedForm(t, s)
	sec := seedSection(t, s, "s1", 1)
	seedQuestion(t, s, "q1", "s1", 1)

	_, err := s.ArchiveSection(ctx, sec.ID, "stale-etag", "admin@example.com")
	if code := errorCode(t, err); code != model.ErrConflict {
		t.Errorf("code = %q, want %q", code, model.ErrConflict)
	}

	// The cascade must not have run.
	q, _ := s.GetQuestion(ctx, "q1")
	if q.Status != model.StatusActive {
		t.Errorf("question archived despite conflict: %q", q.Status)
	}
}

func TestMemoryStore_ListQuestionsOrder(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedForm(t, s)
	seedSection(t, s, "s1", 1)
	seedQuestion(t, s, "q-b", "s1", 2)
	seedQuestion(t, s, "q-c", "s1", 1)
	seedQuestion(t, s, "q-a", "s1", 2)

	qs, err := s.ListQuestions(ctx, "f1")
	if err != nil {
		t.Fatalf("ListQuestions: %v", err)
	}
	var ids []string
	for _, q := range qs {
		ids = append(ids, q.ID)
	}
	want := []string{"q-c", "q-a", "q-b"}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("order = %v, want %v", ids, want)
		}
	}
}

func TestMemoryStore_ListTemplatesFilters(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	templates := []model.QuestionTemplate{
		{ID: "t1", TKey: "email", Label: "Email address", AnswerType: model.AnswerText, Category: "contact", AvailableRegions: []int{1}, Status: model.StatusActive},
		{ID: "t2", TKey: "country", Label: "Country", AnswerType: model.AnswerDropdown, Category: "contact", IsGlobal: true, Status: model.StatusActive},
		{ID: "t3", TKey: "age", Label: "Age", AnswerType: model.AnswerNumber, Category: "personal", AvailableRegions: []int{2}, Status: model.StatusActive},
		{ID: "t4", TKey: "fax", Label: "Fax", AnswerType: model.AnswerText, Category: "contact", IsGlobal: true, Status: model.StatusArchived},
	}
	for _, tmpl := range templates {
		if err := s.CreateTemplate(ctx, tmpl); err != nil {
			t.Fatalf("CreateTemplate(%s): %v", tmpl.ID, err)
		}
	}

	// Region 1 sees its own templates plus globals; archived are hidden.
	got, err := s.ListTemplates(ctx, TemplateFilters{RegionID: 1})
	if err != nil {
		t.Fatalf("ListTemplates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("region 1: got %d templates, want 2", len(got))
	}

	got, _ = s.ListTemplates(ctx, TemplateFilters{RegionID: 1, Category: "contact", AnswerType: model.AnswerDropdown})
	if len(got) != 1 || got[0].ID != "t2" {
		t.Errorf("combined filters: got %v, want [t2]", got)
	}

	got, _ = s.ListTemplates(ctx, TemplateFilters{Text: "EMAIL"})
	if len(got) != 1 || got[0].ID != "t1" {
		t.Errorf("text filter: got %v, want [t1]", got)
	}

	got, _ = s.ListTemplates(ctx, TemplateFilters{IncludeArchived: true})
	if len(got) != 4 {
		t.Errorf("include archived: got %d, want 4", len(got))
	}
}

func TestMemoryStore_TemplateUsage(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedForm(t, s)
	seedSection(t, s, "s1", 1)

	for i, id := range []string{"q1", "q2"} {
		q := model.Question{
			ID: id, FormID: "f1", SectionID: "s1", Order: i + 1,
			TKey: "k_" + id, Label: id, AnswerType: model.AnswerText,
			QuestionTemplateID: "tpl-1", Status: model.StatusActive,
		}
		if _, err := s.CreateQuestion(ctx, q); err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
	}

	usage, err := s.TemplateUsage(ctx, "tpl-1")
	if err != nil {
		t.Fatalf("TemplateUsage: %v", err)
	}
	if len(usage) != 2 {
		t.Fatalf("got %d usage rows, want 2", len(usage))
	}
	if usage[0].FormID != "f1" || usage[0].FormName != "Intake" || usage[0].QuestionID != "q1" {
		t.Errorf("usage[0] = %+v, want f1/Intake q1", usage[0])
	}
	if !usage[1].IsActive {
		t.Errorf("usage[1].IsActive = false, want true")
	}
}

func TestMemoryStore_HistoryAppendOnly(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	seedForm(t, s)

	base := time.Now().UTC()
	entries := []model.FormHistoryEntry{
		{ID: "h1", FormID: "f1", Version: 1, Action: model.HistoryCreated, Actor: "a@example.com", Timestamp: base},
		{ID: "h2", FormID: "f1", Version: 2, Action: model.HistoryUpdated, Actor: "a@example.com", Timestamp: base.Add(time.Second)},
		{ID: "h3", FormID: "f1", Version: 3, Action: model.HistoryPublished, Actor: "b@example.com", Timestamp: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		if err := s.AppendHistory(ctx, e); err != nil {
			t.Fatalf("AppendHistory: %v", err)
		}
	}

	got, err := s.GetHistory(ctx, "f1")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d entries, want 3", len(got))
	}
	if got[2].Action != model.HistoryPublished {
		t.Errorf("last action = %q, want published", got[2].Action)
	}
}

func TestMemoryStore_NotFound(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if _, err := s.GetForm(ctx, "missing"); errorCode(t, err) != model.ErrNotFound {
		t.Error("GetForm on missing ID: want NOT_FOUND")
	}
	if _, err := s.GetSection(ctx, "missing"); errorCode(t, err) != model.ErrNotFound {
		t.Error("GetSection on missing ID: want NOT_FOUND")
	}
	if _, err := s.GetQuestion(ctx, "missing"); errorCode(t, err) != model.ErrNotFound {
		t.Error("GetQuestion on missing ID: want NOT_FOUND")
	}
	if _, err := s.GetTemplate(ctx, "missing"); errorCode(t, err) != model.ErrNotFound {
		t.Error("GetTemplate on missing ID: want NOT_FOUND")
	}
}
