package transport

import (
	"net/http"

	"github.com/formsmith/formsmith/internal/options"
	"github.com/formsmith/formsmith/model"
)

// testEndpointRequest names the remote endpoint to probe.
type testEndpointRequest struct {
	URL string `json:"url"`
}

func handleTestEndpoint(tester *options.Tester) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req testEndpointRequest
		if err := decodeJSON(r, &req); err != nil {
			WriteError(w, err)
			return
		}
		if req.URL == "" {
			WriteError(w, model.NewBadRequestError("url is required"))
			return
		}
		WriteJSON(w, http.StatusOK, tester.Test(r.Context(), req.URL))
	}
}
