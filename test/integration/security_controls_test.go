package integration

import (
	"context"
	"net/http"
	"testing"
)

// ==========================================================================
// Security Controls Tests
// ==========================================================================

func TestSecurity_authenticationRequired(t *testing.T) {
	h := NewTestHarness(t)

	t.Run("missing token", func(t *testing.T) {
		resp := h.GET("/forms", "")
		h.AssertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("expired token", func(t *testing.T) {
		token := h.GenerateExpiredToken(BuilderClaims())
		resp := h.GET("/forms", token)
		h.AssertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("garbage token", func(t *testing.T) {
		resp := h.GET("/forms", "not.a.jwt")
		h.AssertStatus(t, resp, http.StatusUnauthorized)
	})

	t.Run("valid token", func(t *testing.T) {
		token := h.GenerateToken(BuilderClaims())
		resp := h.GET("/forms", token)
		h.AssertStatus(t, resp, http.StatusOK)
	})
}

func TestSecurity_publicEndpointsBypassAuth(t *testing.T) {
	h := NewTestHarness(t)

	for _, path := range []string{"/health", "/ready"} {
		resp := h.GET(path, "")
		h.AssertStatus(t, resp, http.StatusOK)
	}
}

func TestSecurity_responseHeaders(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(BuilderClaims())

	resp := h.GET("/forms", token)
	h.AssertStatus(t, resp, http.StatusOK)

	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
	}
	for name, want := range headers {
		if got := resp.Header.Get(name); got != want {
			t.Errorf("%s = %q, want %q", name, got, want)
		}
	}
	if resp.Header.Get("X-Correlation-Id") == "" {
		t.Error("X-Correlation-Id header missing")
	}
}

func TestSecurity_correlationIDPropagation(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(BuilderClaims())

	req, err := http.NewRequestWithContext(context.Background(), "GET", h.BaseURL()+"/forms", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Correlation-Id", "req-42")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("X-Correlation-Id"); got != "req-42" {
		t.Errorf("X-Correlation-Id = %q, want req-42", got)
	}
}

func TestSecurity_corsPreflight(t *testing.T) {
	h := NewTestHarness(t)

	req, err := http.NewRequestWithContext(context.Background(), "OPTIONS", h.BaseURL()+"/forms", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("preflight status = %d, want 204", resp.StatusCode)
	}
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q", got)
	}

	t.Run("disallowed origin gets no CORS headers", func(t *testing.T) {
		req, err := http.NewRequestWithContext(context.Background(), "OPTIONS", h.BaseURL()+"/forms", nil)
		if err != nil {
			t.Fatal(err)
		}
		req.Header.Set("Origin", "http://evil.example.com")
		req.Header.Set("Access-Control-Request-Method", "POST")

		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		defer resp.Body.Close()

		if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}

func TestSecurity_subjectRecordedAsActor(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(BuilderClaims())

	var form map[string]any
	resp := h.POST("/forms", FormFixture("Attributed"), token)
	h.AssertJSON(t, resp, http.StatusCreated, &form)

	var history struct {
		History []map[string]any `json:"history"`
	}
	resp = h.GET("/forms/"+form["id"].(string)+"/history", token)
	h.AssertJSON(t, resp, http.StatusOK, &history)

	if len(history.History) == 0 {
		t.Fatal("no history recorded")
	}
	if history.History[0]["actor"] != "user-builder" {
		t.Errorf("actor = %v, want user-builder", history.History[0]["actor"])
	}
}

func TestSecurity_regionDefaultsFromToken(t *testing.T) {
	h := NewTestHarness(t)
	token := h.GenerateToken(BuilderClaims())

	// A form created without an explicit region lands in the caller's
	// region from the token.
	var form map[string]any
	resp := h.POST("/forms", map[string]any{"name": "Regional", "form_type": "case"}, token)
	h.AssertJSON(t, resp, http.StatusCreated, &form)

	if form["region_id"] != float64(3) {
		t.Errorf("region_id = %v, want 3", form["region_id"])
	}
}
