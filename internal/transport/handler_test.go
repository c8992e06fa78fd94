package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/builder"
	"github.com/formsmith/formsmith/internal/options"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/internal/template"
	"github.com/formsmith/formsmith/internal/validation"
	"github.com/formsmith/formsmith/model"
)

// --- Test helpers ---

// contextMiddleware injects a RequestContext into the request.
func contextMiddleware(rctx *model.RequestContext) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(model.WithRequestContext(r.Context(), rctx)))
		})
	}
}

func testRequestContext() *model.RequestContext {
	return &model.RequestContext{
		SubjectID: "user-1",
		Email:     "user@example.com",
		RegionID:  3,
	}
}

// makeRouterRequest creates a chi-routed request with URL params and context injected.
func makeRouterRequest(method, pattern, path string, body []byte, handler http.HandlerFunc, rctx *model.RequestContext) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Use(contextMiddleware(rctx))
	switch method {
	case "GET":
		r.Get(pattern, handler)
	case "POST":
		r.Post(pattern, handler)
	case "PATCH":
		r.Patch(pattern, handler)
	}

	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newTestBuilder() *builder.Service {
	return builder.NewService(store.NewMemoryStore(), zap.NewNop())
}

// seedForm creates a draft form with one section and one text question,
// returning the three entities.
func seedForm(t *testing.T, svc *builder.Service) (model.Form, model.Section, model.Question) {
	t.Helper()
	ctx := model.WithRequestContext(context.Background(), testRequestContext())

	f, err := svc.CreateForm(ctx, builder.CreateFormInput{Name: "Intake", FormType: "case", RegionID: 3})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}
	sec, err := svc.CreateSection(ctx, f.ID, builder.CreateSectionInput{Name: "Applicant"})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}
	q, err := svc.CreateQuestion(ctx, sec.ID, builder.CreateQuestionInput{
		TKey:       "first_name",
		Label:      "First name",
		AnswerType: model.AnswerText,
		Required:   true,
		Validation: []model.ValidationRule{{Type: model.RuleMinLength, Length: 2}},
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}
	return f, sec, q
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) model.ErrorEnvelope {
	t.Helper()
	var body struct {
		Error model.ErrorEnvelope `json:"error"`
	}
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	return body.Error
}

// --- Form handler tests ---

func TestHandleCreateForm(t *testing.T) {
	svc := newTestBuilder()
	body := []byte(`{"name":"Intake","form_type":"case","region_id":3}`)

	w := makeRouterRequest("POST", "/forms", "/forms", body, handleCreateForm(svc), testRequestContext())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}

	var f model.Form
	json.NewDecoder(w.Body).Decode(&f)
	if f.Name != "Intake" {
		t.Errorf("name = %q, want Intake", f.Name)
	}
	if f.Status != model.FormStatusDraft {
		t.Errorf("status = %q, want draft", f.Status)
	}
	if f.Version != 1 {
		t.Errorf("version = %d, want 1", f.Version)
	}
}

func TestHandleCreateForm_missingName(t *testing.T) {
	svc := newTestBuilder()

	w := makeRouterRequest("POST", "/forms", "/forms", []byte(`{}`), handleCreateForm(svc), testRequestContext())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if env := decodeError(t, w); env.Code != model.ErrBadRequest {
		t.Errorf("code = %q, want BAD_REQUEST", env.Code)
	}
}

func TestHandleCreateForm_malformedJSON(t *testing.T) {
	svc := newTestBuilder()

	w := makeRouterRequest("POST", "/forms", "/forms", []byte(`{not json`), handleCreateForm(svc), testRequestContext())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleListForms_filters(t *testing.T) {
	svc := newTestBuilder()
	seedForm(t, svc)

	w := makeRouterRequest("GET", "/forms", "/forms?region_id=3&status=draft", nil, handleListForms(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		Forms []model.Form `json:"forms"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Forms) != 1 {
		t.Fatalf("forms = %d, want 1", len(body.Forms))
	}

	w = makeRouterRequest("GET", "/forms", "/forms?region_id=99", nil, handleListForms(svc), testRequestContext())
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.Forms) != 0 {
		t.Errorf("forms for region 99 = %d, want 0", len(body.Forms))
	}
}

func TestHandleListForms_badRegion(t *testing.T) {
	svc := newTestBuilder()

	w := makeRouterRequest("GET", "/forms", "/forms?region_id=abc", nil, handleListForms(svc), testRequestContext())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleGetForm(t *testing.T) {
	svc := newTestBuilder()
	f, _, _ := seedForm(t, svc)

	w := makeRouterRequest("GET", "/forms/{formId}", "/forms/"+f.ID, nil, handleGetForm(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var detail builder.FormDetail
	json.NewDecoder(w.Body).Decode(&detail)
	if detail.Form.ID != f.ID {
		t.Errorf("form id = %q, want %q", detail.Form.ID, f.ID)
	}
	if len(detail.Sections) != 1 || len(detail.Sections[0].Questions) != 1 {
		t.Errorf("sections = %d, want 1 with 1 question", len(detail.Sections))
	}
}

func TestHandleGetForm_notFound(t *testing.T) {
	svc := newTestBuilder()

	w := makeRouterRequest("GET", "/forms/{formId}", "/forms/missing", nil, handleGetForm(svc), testRequestContext())
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if env := decodeError(t, w); env.Code != model.ErrNotFound {
		t.Errorf("code = %q, want NOT_FOUND", env.Code)
	}
}

func TestHandlePublishForm(t *testing.T) {
	svc := newTestBuilder()
	f, _, _ := seedForm(t, svc)

	w := makeRouterRequest("POST", "/forms/{formId}/publish", "/forms/"+f.ID+"/publish", nil, handlePublishForm(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var out model.Form
	json.NewDecoder(w.Body).Decode(&out)
	if out.Status != model.FormStatusActive {
		t.Errorf("status = %q, want active", out.Status)
	}
}

func TestHandlePublishForm_emptyForm(t *testing.T) {
	svc := newTestBuilder()
	ctx := model.WithRequestContext(context.Background(), testRequestContext())
	f, err := svc.CreateForm(ctx, builder.CreateFormInput{Name: "Empty"})
	if err != nil {
		t.Fatalf("CreateForm: %v", err)
	}

	w := makeRouterRequest("POST", "/forms/{formId}/publish", "/forms/"+f.ID+"/publish", nil, handlePublishForm(svc), testRequestContext())
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	if env := decodeError(t, w); env.Code != model.ErrEmptyForm {
		t.Errorf("code = %q, want EMPTY_FORM", env.Code)
	}
}

func TestHandleFormHistory(t *testing.T) {
	svc := newTestBuilder()
	f, _, _ := seedForm(t, svc)

	w := makeRouterRequest("GET", "/forms/{formId}/history", "/forms/"+f.ID+"/history", nil, handleFormHistory(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var body struct {
		History []model.FormHistoryEntry `json:"history"`
	}
	json.NewDecoder(w.Body).Decode(&body)
	if len(body.History) == 0 {
		t.Fatal("history is empty, want at least the created entry")
	}
	if body.History[0].Action != model.HistoryCreated {
		t.Errorf("first action = %q, want created", body.History[0].Action)
	}
}

// --- Validation handler tests ---

func TestHandleValidateForm_valid(t *testing.T) {
	svc := newTestBuilder()
	f, _, _ := seedForm(t, svc)
	engine := validation.NewEngine(zap.NewNop())

	body := []byte(`{"answers":{"first_name":"Ada"}}`)
	w := makeRouterRequest("POST", "/forms/{formId}/validate", "/forms/"+f.ID+"/validate", body, handleValidateForm(svc, engine), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp validateResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if !resp.Valid {
		t.Error("valid = false, want true")
	}
	state, ok := resp.Visibility["first_name"]
	if !ok {
		t.Fatal("visibility missing first_name")
	}
	if !state.Visible || !state.Required {
		t.Errorf("state = %+v, want visible and required", state)
	}
}

func TestHandleValidateForm_invalid(t *testing.T) {
	svc := newTestBuilder()
	f, _, _ := seedForm(t, svc)
	engine := validation.NewEngine(zap.NewNop())

	body := []byte(`{"answers":{"first_name":"A"}}`)
	w := makeRouterRequest("POST", "/forms/{formId}/validate", "/forms/"+f.ID+"/validate", body, handleValidateForm(svc, engine), testRequestContext())
	if w.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", w.Code)
	}
	env := decodeError(t, w)
	if env.Code != model.ErrValidationFailed {
		t.Fatalf("code = %q, want VALIDATION_FAILED", env.Code)
	}
	if len(env.Details) != 1 || env.Details[0].Field != "first_name" {
		t.Errorf("details = %+v, want one error on first_name", env.Details)
	}
}

// --- Section handler tests ---

func TestHandleCreateSection(t *testing.T) {
	svc := newTestBuilder()
	f, _, _ := seedForm(t, svc)

	body := []byte(`{"name":"Address"}`)
	w := makeRouterRequest("POST", "/forms/{formId}/sections", "/forms/"+f.ID+"/sections", body, handleCreateSection(svc), testRequestContext())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201", w.Code)
	}
	var sec model.Section
	json.NewDecoder(w.Body).Decode(&sec)
	if sec.Name != "Address" {
		t.Errorf("name = %q, want Address", sec.Name)
	}
	if sec.Etag == "" {
		t.Error("etag is empty")
	}
}

func TestHandleUpdateSection_ifMatchHeader(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)

	r := chi.NewRouter()
	r.Use(contextMiddleware(testRequestContext()))
	r.Patch("/sections/{sectionId}", handleUpdateSection(svc))

	req := httptest.NewRequest("PATCH", "/sections/"+sec.ID, bytes.NewReader([]byte(`{"name":"Renamed"}`)))
	req.Header.Set("If-Match", `"`+sec.Etag+`"`)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var out model.Section
	json.NewDecoder(w.Body).Decode(&out)
	if out.Name != "Renamed" {
		t.Errorf("name = %q, want Renamed", out.Name)
	}
	if out.Etag == sec.Etag {
		t.Error("etag unchanged after update")
	}
}

func TestHandleUpdateSection_staleEtag(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)

	body := []byte(`{"etag":"stale","name":"Renamed"}`)
	w := makeRouterRequest("PATCH", "/sections/{sectionId}", "/sections/"+sec.ID, body, handleUpdateSection(svc), testRequestContext())
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
	if env := decodeError(t, w); env.Code != model.ErrConflict {
		t.Errorf("code = %q, want CONFLICT", env.Code)
	}
}

func TestHandleArchiveSection_bodyEtag(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)

	body := []byte(`{"etag":"` + sec.Etag + `"}`)
	w := makeRouterRequest("POST", "/sections/{sectionId}/archive", "/sections/"+sec.ID+"/archive", body, handleArchiveSection(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var out model.Section
	json.NewDecoder(w.Body).Decode(&out)
	if out.Status != model.StatusArchived {
		t.Errorf("status = %q, want archived", out.Status)
	}
}

func TestHandleReorderSections(t *testing.T) {
	svc := newTestBuilder()
	f, sec, _ := seedForm(t, svc)
	ctx := model.WithRequestContext(context.Background(), testRequestContext())
	sec2, err := svc.CreateSection(ctx, f.ID, builder.CreateSectionInput{Name: "Second"})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}

	body, _ := json.Marshal(map[string]any{"orders": map[string]int{sec.ID: 2, sec2.ID: 1}})
	w := makeRouterRequest("POST", "/forms/{formId}/sections/reorder", "/forms/"+f.ID+"/sections/reorder", body, handleReorderSections(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Sections []model.Section `json:"sections"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Sections) != 2 {
		t.Fatalf("sections = %d, want 2", len(resp.Sections))
	}
	if resp.Sections[0].ID != sec2.ID {
		t.Errorf("first section = %q, want %q", resp.Sections[0].ID, sec2.ID)
	}
}

// --- Question handler tests ---

func TestHandleCreateQuestion(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)

	body := []byte(`{"tkey":"dob","label":"Date of birth","answer_type":"date"}`)
	w := makeRouterRequest("POST", "/sections/{sectionId}/questions", "/sections/"+sec.ID+"/questions", body, handleCreateQuestion(svc), testRequestContext())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var q model.Question
	json.NewDecoder(w.Body).Decode(&q)
	if q.TKey != "dob" {
		t.Errorf("tkey = %q, want dob", q.TKey)
	}
}

func TestHandleCreateQuestion_duplicateTKey(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)

	body := []byte(`{"tkey":"first_name","label":"Duplicate","answer_type":"text"}`)
	w := makeRouterRequest("POST", "/sections/{sectionId}/questions", "/sections/"+sec.ID+"/questions", body, handleCreateQuestion(svc), testRequestContext())
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", w.Code)
	}
}

func TestHandleCreateQuestionFromTemplate_missingID(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)

	w := makeRouterRequest("POST", "/sections/{sectionId}/questions/from-template", "/sections/"+sec.ID+"/questions/from-template", []byte(`{}`), handleCreateQuestionFromTemplate(svc), testRequestContext())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleUpdateQuestion(t *testing.T) {
	svc := newTestBuilder()
	_, _, q := seedForm(t, svc)

	body := []byte(`{"etag":"` + q.Etag + `","label":"Given name"}`)
	w := makeRouterRequest("PATCH", "/questions/{questionId}", "/questions/"+q.ID, body, handleUpdateQuestion(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var out model.Question
	json.NewDecoder(w.Body).Decode(&out)
	if out.Label != "Given name" {
		t.Errorf("label = %q, want Given name", out.Label)
	}
	if out.Version != q.Version+1 {
		t.Errorf("version = %d, want %d", out.Version, q.Version+1)
	}
}

func TestHandleMoveQuestion(t *testing.T) {
	svc := newTestBuilder()
	f, _, q := seedForm(t, svc)
	ctx := model.WithRequestContext(context.Background(), testRequestContext())
	sec2, err := svc.CreateSection(ctx, f.ID, builder.CreateSectionInput{Name: "Second"})
	if err != nil {
		t.Fatalf("CreateSection: %v", err)
	}

	body := []byte(`{"target_section_id":"` + sec2.ID + `","etag":"` + q.Etag + `"}`)
	w := makeRouterRequest("POST", "/questions/{questionId}/move", "/questions/"+q.ID+"/move", body, handleMoveQuestion(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var out model.Question
	json.NewDecoder(w.Body).Decode(&out)
	if out.SectionID != sec2.ID {
		t.Errorf("section = %q, want %q", out.SectionID, sec2.ID)
	}
}

func TestHandleQuestionOptions_static(t *testing.T) {
	svc := newTestBuilder()
	_, sec, _ := seedForm(t, svc)
	ctx := model.WithRequestContext(context.Background(), testRequestContext())
	q, err := svc.CreateQuestion(ctx, sec.ID, builder.CreateQuestionInput{
		TKey:       "color",
		Label:      "Color",
		AnswerType: model.AnswerDropdown,
		Options: []model.PicklistOption{
			{Label: "Red", Value: "red"},
			{Label: "Blue", Value: "blue"},
		},
	})
	if err != nil {
		t.Fatalf("CreateQuestion: %v", err)
	}

	provider := options.NewProvider(options.ProviderConfig{}, zap.NewNop())
	w := makeRouterRequest("GET", "/questions/{questionId}/options", "/questions/"+q.ID+"/options", nil, handleQuestionOptions(svc, provider), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
	var res options.Result
	json.NewDecoder(w.Body).Decode(&res)
	if len(res.Options) != 2 {
		t.Errorf("options = %d, want 2", len(res.Options))
	}
}

// --- Template handler tests ---

func newTestTemplates() *template.Service {
	return template.NewService(store.NewMemoryStore(), zap.NewNop())
}

func TestHandleCreateTemplate(t *testing.T) {
	svc := newTestTemplates()

	body := []byte(`{"tkey":"email","label":"Email address","answer_type":"text","category":"contact","available_regions":[3]}`)
	w := makeRouterRequest("POST", "/templates", "/templates", body, handleCreateTemplate(svc), testRequestContext())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", w.Code, w.Body.String())
	}
	var tpl model.QuestionTemplate
	json.NewDecoder(w.Body).Decode(&tpl)
	if tpl.TKey != "email" {
		t.Errorf("tkey = %q, want email", tpl.TKey)
	}
}

func TestHandleListTemplates_regionFromContext(t *testing.T) {
	svc := newTestTemplates()

	body := []byte(`{"tkey":"email","label":"Email address","answer_type":"text","available_regions":[3]}`)
	w := makeRouterRequest("POST", "/templates", "/templates", body, handleCreateTemplate(svc), testRequestContext())
	if w.Code != http.StatusCreated {
		t.Fatalf("create status = %d", w.Code)
	}

	w = makeRouterRequest("GET", "/templates", "/templates", nil, handleListTemplates(svc), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp struct {
		Templates []model.QuestionTemplate `json:"templates"`
	}
	json.NewDecoder(w.Body).Decode(&resp)
	if len(resp.Templates) != 1 {
		t.Errorf("templates = %d, want 1", len(resp.Templates))
	}
}

func TestHandleGetTemplate_notFound(t *testing.T) {
	svc := newTestTemplates()

	w := makeRouterRequest("GET", "/templates/{templateId}", "/templates/missing", nil, handleGetTemplate(svc), testRequestContext())
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
}

// --- Options test endpoint ---

func TestHandleTestEndpoint_missingURL(t *testing.T) {
	tester := options.NewTester(0, zap.NewNop())

	w := makeRouterRequest("POST", "/options/test", "/options/test", []byte(`{}`), handleTestEndpoint(tester), testRequestContext())
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
}

func TestHandleTestEndpoint_unreachable(t *testing.T) {
	tester := options.NewTester(0, zap.NewNop())

	body := []byte(`{"url":"http://127.0.0.1:1/options"}`)
	w := makeRouterRequest("POST", "/options/test", "/options/test", body, handleTestEndpoint(tester), testRequestContext())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var res model.EndpointTestResult
	json.NewDecoder(w.Body).Decode(&res)
	if res.Success {
		t.Error("success = true, want false")
	}
	if res.Error == "" {
		t.Error("error message is empty")
	}
}
