package transport

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/internal/template"
	"github.com/formsmith/formsmith/model"
)

func handleListTemplates(svc *template.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		filters := store.TemplateFilters{
			Category:        q.Get("category"),
			AnswerType:      model.AnswerType(q.Get("answer_type")),
			Text:            q.Get("text"),
			IncludeArchived: q.Get("include_archived") == "true",
		}
		if v := q.Get("region_id"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				WriteError(w, model.NewBadRequestError("region_id must be an integer"))
				return
			}
			filters.RegionID = n
		}
		templates, err := svc.List(r.Context(), filters)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"templates": templates})
	}
}

func handleGetTemplate(svc *template.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tpl, err := svc.Get(r.Context(), chi.URLParam(r, "templateId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tpl)
	}
}

func handleCreateTemplate(svc *template.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in template.CreateInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		tpl, err := svc.Create(r.Context(), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, tpl)
	}
}

func handleUpdateTemplate(svc *template.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in template.UpdateInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		tpl, err := svc.Update(r.Context(), chi.URLParam(r, "templateId"), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tpl)
	}
}

func handleArchiveTemplate(svc *template.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tpl, err := svc.Archive(r.Context(), chi.URLParam(r, "templateId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, tpl)
	}
}

func handleTemplateUsage(svc *template.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		usage, err := svc.Usage(r.Context(), chi.URLParam(r, "templateId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"usage": usage})
	}
}
