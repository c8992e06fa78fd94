package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/formsmith/formsmith/internal/builder"
	"github.com/formsmith/formsmith/internal/export"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/internal/validation"
	"github.com/formsmith/formsmith/internal/visibility"
	"github.com/formsmith/formsmith/model"
)

const maxBodySize = 1 << 20

// decodeJSON reads a size-limited JSON request body into dst.
func decodeJSON(r *http.Request, dst any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodySize)).Decode(dst); err != nil {
		return model.NewBadRequestError("invalid JSON body: " + err.Error())
	}
	return nil
}

func handleCreateForm(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in builder.CreateFormInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		if in.RegionID == 0 {
			if rctx := model.RequestContextFrom(r.Context()); rctx != nil {
				in.RegionID = rctx.RegionID
			}
		}
		f, err := svc.CreateForm(r.Context(), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, f)
	}
}

func handleListForms(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filters := store.FormFilters{
			Status:   model.FormStatus(q.Get("status")),
			FormType: q.Get("form_type"),
		}
		if v := q.Get("region_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				WriteError(w, model.NewBadRequestError("region_id must be an integer"))
				return
			}
			filters.RegionID = n
		}
		filters.Limit, _ = strconv.Atoi(q.Get("limit"))
		filters.Offset, _ = strconv.Atoi(q.Get("offset"))

		forms, err := svc.ListForms(r.Context(), filters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"forms": forms})
	}
}

func handleGetForm(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetForm(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, detail)
	}
}

func handleUpdateForm(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in builder.UpdateFormInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		f, err := svc.UpdateForm(r.Context(), chi.URLParam(r, "formId"), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, f)
	}
}

func handlePublishForm(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.PublishForm(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, f)
	}
}

func handleUnpublishForm(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.UnpublishForm(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, f)
	}
}

func handleArchiveForm(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := svc.ArchiveForm(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, f)
	}
}

func handleFormHistory(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := svc.GetHistory(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"history": entries})
	}
}

func handleExportForm(svc *builder.Service, exporter *export.Exporter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		detail, err := svc.GetForm(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		schema, err := exporter.FormSchema(detail.Form, flattenQuestions(detail))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, schema)
	}
}

// validateRequest is the body of the answer validation endpoint.
type validateRequest struct {
	Answers map[string]any `json:"answers"`
}

// validateResponse is returned when all answers pass.
type validateResponse struct {
	Valid      bool                        `json:"valid"`
	Visibility map[string]visibility.State `json:"visibility"`
}

func handleValidateForm(svc *builder.Service, engine *validation.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validateRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		detail, err := svc.GetForm(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}

		questions := flattenQuestions(detail)
		results := engine.ValidateForm(questions, req.Answers)
		if len(results) > 0 {
			WriteError(w, validation.AsValidationFailed(questions, results))
			return
		}
		WriteJSON(w, http.StatusOK, validateResponse{
			Valid:      true,
			Visibility: visibility.Resolve(questions, req.Answers),
		})
	}
}

// flattenQuestions collects every question of a form detail in section and
// question order.
func flattenQuestions(detail builder.FormDetail) []model.Question {
	var questions []model.Question
	for _, sec := range detail.Sections {
		questions = append(questions, sec.Questions...)
	}
	return questions
}
