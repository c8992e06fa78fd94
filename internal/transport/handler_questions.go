package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formsmith/formsmith/internal/builder"
	"github.com/formsmith/formsmith/internal/options"
	"github.com/formsmith/formsmith/internal/schema"
	"github.com/formsmith/formsmith/model"
)

func handleCreateQuestion(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in builder.CreateQuestionInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		q, err := svc.CreateQuestion(r.Context(), chi.URLParam(r, "sectionId"), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, q)
	}
}

// fromTemplateRequest names the template to instantiate and the per-use
// overrides applied on top of it.
type fromTemplateRequest struct {
	TemplateID string           `json:"template_id"`
	Overrides  schema.Overrides `json:"overrides"`
}

func handleCreateQuestionFromTemplate(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req fromTemplateRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.TemplateID == "" {
			WriteError(w, model.NewBadRequestError("template_id is required"))
			return
		}
		q, err := svc.CreateQuestionFromTemplate(r.Context(), chi.URLParam(r, "sectionId"), req.TemplateID, req.Overrides)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, q)
	}
}

func handleReorderQuestions(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if err := svc.ReorderQuestions(r.Context(), chi.URLParam(r, "sectionId"), req.Orders); err != nil {
			WriteError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleUpdateQuestion(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in builder.UpdateQuestionInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		in.Etag = etagFromRequest(r, in.Etag)
		q, err := svc.UpdateQuestion(r.Context(), chi.URLParam(r, "questionId"), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, q)
	}
}

func handleArchiveQuestion(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req archiveRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				WriteError(w, err)
				return
			}
		}
		q, err := svc.ArchiveQuestion(r.Context(), chi.URLParam(r, "questionId"), etagFromRequest(r, req.Etag))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, q)
	}
}

// moveRequest names the destination section of a question move.
type moveRequest struct {
	TargetSectionID string `json:"target_section_id"`
	Etag            string `json:"etag"`
}

func handleMoveQuestion(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req moveRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.TargetSectionID == "" {
			WriteError(w, model.NewBadRequestError("target_section_id is required"))
			return
		}
		q, err := svc.MoveQuestion(r.Context(), chi.URLParam(r, "questionId"), req.TargetSectionID, etagFromRequest(r, req.Etag))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, q)
	}
}

func handleQuestionOptions(svc *builder.Service, provider *options.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q, err := svc.GetQuestion(r.Context(), chi.URLParam(r, "questionId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		if r.URL.Query().Get("refresh") == "true" && q.OptionsEndpoint != "" {
			provider.Invalidate(q.OptionsEndpoint)
		}
		res, err := provider.Resolve(r.Context(), q, r.URL.Query().Get("q"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, res)
	}
}
