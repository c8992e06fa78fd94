package transport

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/formsmith/formsmith/internal/builder"
)

// etagFromRequest prefers the If-Match header, falling back to the etag
// carried in the request body.
func etagFromRequest(r *http.Request, bodyEtag string) string {
	if h := strings.Trim(r.Header.Get("If-Match"), `"`); h != "" {
		return h
	}
	return bodyEtag
}

func handleCreateSection(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in builder.CreateSectionInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		sec, err := svc.CreateSection(r.Context(), chi.URLParam(r, "formId"), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, sec)
	}
}

func handleListSections(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sections, err := svc.ListSections(r.Context(), chi.URLParam(r, "formId"))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"sections": sections})
	}
}

// reorderRequest maps entity IDs to their new display order.
type reorderRequest struct {
	Orders map[string]int `json:"orders"`
}

func handleReorderSections(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reorderRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		formID := chi.URLParam(r, "formId")
		if err := svc.ReorderSections(r.Context(), formID, req.Orders); err != nil {
			WriteError(w, err)
			return
		}
		sections, err := svc.ListSections(r.Context(), formID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, map[string]any{"sections": sections})
	}
}

func handleUpdateSection(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in builder.UpdateSectionInput
		if err := decodeJSON(r, &in); err != nil {
			WriteError(w, err)
			return
		}
		in.Etag = etagFromRequest(r, in.Etag)
		sec, err := svc.UpdateSection(r.Context(), chi.URLParam(r, "sectionId"), in)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sec)
	}
}

// archiveRequest carries the etag when If-Match is not used.
type archiveRequest struct {
	Etag string `json:"etag"`
}

func handleArchiveSection(svc *builder.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req archiveRequest
		if r.ContentLength != 0 {
			if err := decodeJSON(r, &req); err != nil {
				WriteError(w, err)
				return
			}
		}
		sec, err := svc.ArchiveSection(r.Context(), chi.URLParam(r, "sectionId"), etagFromRequest(r, req.Etag))
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, sec)
	}
}
