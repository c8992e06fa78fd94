// Package integration provides a reusable test harness for end-to-end
// integration testing of the formsmith server. It starts a full HTTP server
// with an in-memory store, a stub options backend, and a test JWT issuer.
package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/formsmith/formsmith/internal/builder"
	"github.com/formsmith/formsmith/internal/catalog"
	"github.com/formsmith/formsmith/internal/config"
	"github.com/formsmith/formsmith/internal/export"
	"github.com/formsmith/formsmith/internal/observability"
	"github.com/formsmith/formsmith/internal/options"
	"github.com/formsmith/formsmith/internal/store"
	"github.com/formsmith/formsmith/internal/template"
	"github.com/formsmith/formsmith/internal/transport"
	"github.com/formsmith/formsmith/internal/validation"
	"github.com/formsmith/formsmith/model"
)

// TestHarness encapsulates a fully wired formsmith instance for
// integration testing.
type TestHarness struct {
	t      *testing.T
	server *httptest.Server
	issuer *tokenIssuer

	// Internal components exposed for advanced test scenarios.
	Store     *store.MemoryStore
	Builder   *builder.Service
	Templates *template.Service
	Provider  *options.Provider
	Engine    *validation.Engine

	cfg *config.Config
}

// HarnessOption configures the test harness.
type HarnessOption func(*harnessConfig)

type harnessConfig struct {
	catalogDirs     []string
	handlerTimeout  time.Duration
	optionsTTL      time.Duration
	breakerSettings *config.CircuitBreakerConfig
}

// WithCatalog seeds the template library from the given pack directories.
func WithCatalog(dirs ...string) HarnessOption {
	return func(c *harnessConfig) {
		c.catalogDirs = dirs
	}
}

// WithHandlerTimeout sets the per-request handler timeout.
func WithHandlerTimeout(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.handlerTimeout = d
	}
}

// WithOptionsCacheTTL sets the remote options cache TTL.
func WithOptionsCacheTTL(d time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.optionsTTL = d
	}
}

// WithCircuitBreaker sets the options circuit breaker settings.
func WithCircuitBreaker(threshold int, cooldown time.Duration) HarnessOption {
	return func(c *harnessConfig) {
		c.breakerSettings = &config.CircuitBreakerConfig{
			FailureThreshold: threshold,
			Cooldown:         cooldown,
		}
	}
}

// NewTestHarness creates and starts a full formsmith test instance. The
// server is automatically cleaned up when the test completes.
func NewTestHarness(t *testing.T, opts ...HarnessOption) *TestHarness {
	t.Helper()

	hc := &harnessConfig{
		handlerTimeout: 10 * time.Second,
		optionsTTL:     5 * time.Minute,
	}
	for _, opt := range opts {
		opt(hc)
	}

	logger := zap.NewNop()

	h := &TestHarness{
		t:     t,
		Store: store.NewMemoryStore(),
	}

	if len(hc.catalogDirs) > 0 {
		packs, err := catalog.NewLoader().LoadAll(hc.catalogDirs)
		if err != nil {
			t.Fatalf("load catalog: %v", err)
		}
		if err := catalog.NewSeeder(h.Store, logger).Seed(context.Background(), packs); err != nil {
			t.Fatalf("seed catalog: %v", err)
		}
	}

	h.Builder = builder.NewService(h.Store, logger)
	h.Templates = template.NewService(h.Store, logger)
	h.Engine = validation.NewEngine(logger)

	providerCfg := options.ProviderConfig{
		RequestTimeout: 3 * time.Second,
		CacheTTL:       hc.optionsTTL,
	}
	if hc.breakerSettings != nil {
		providerCfg.BreakerThreshold = hc.breakerSettings.FailureThreshold
		providerCfg.BreakerCooldown = hc.breakerSettings.Cooldown
	}
	h.Provider = options.NewProvider(providerCfg, logger)

	h.issuer = newTokenIssuer(t)

	h.cfg = config.Defaults()
	h.cfg.Server.HandlerTimeout = hc.handlerTimeout
	h.cfg.Server.CORS.AllowedOrigins = []string{"http://localhost:3000"}
	h.cfg.Identity.Issuer = h.issuer.Issuer()
	h.cfg.Identity.Audience = h.issuer.Audience()
	h.cfg.Identity.JWKSURL = h.issuer.JWKSURL()
	h.cfg.Observability.Metrics.Enabled = false

	jwks := transport.NewJWKSClient(h.issuer.JWKSURL(), 1*time.Hour)

	router := transport.NewRouter(transport.Dependencies{
		Config:       h.cfg,
		Authenticate: transport.JWTAuthenticator(h.cfg.Identity, jwks),
		Builder:      h.Builder,
		Templates:    h.Templates,
		Options:      h.Provider,
		Tester:       options.NewTester(3*time.Second, logger),
		Validator:    h.Engine,
		Exporter:     export.NewExporter(),
		Ready:        observability.ReadinessChecks{Store: h.Store},
	})

	h.server = httptest.NewServer(router)
	t.Cleanup(func() {
		h.server.Close()
	})

	return h
}

// BaseURL returns the test server's base URL.
func (h *TestHarness) BaseURL() string {
	return h.server.URL
}

// GenerateToken creates a valid JWT token with the given claims.
func (h *TestHarness) GenerateToken(claims TestClaims) string {
	return h.issuer.GenerateToken(claims)
}

// GenerateExpiredToken creates a JWT that has already expired.
func (h *TestHarness) GenerateExpiredToken(claims TestClaims) string {
	return h.issuer.GenerateExpiredToken(claims)
}

// --- HTTP client helpers ---

// GET performs an authenticated GET request.
func (h *TestHarness) GET(path, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("GET", path, nil, token, nil)
}

// POST performs an authenticated POST request with a JSON body.
func (h *TestHarness) POST(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("POST", path, body, token, nil)
}

// PATCH performs an authenticated PATCH request with a JSON body.
func (h *TestHarness) PATCH(path string, body any, token string) *http.Response {
	h.t.Helper()
	return h.doRequest("PATCH", path, body, token, nil)
}

// PATCHWithHeaders performs an authenticated PATCH request with additional headers.
func (h *TestHarness) PATCHWithHeaders(path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()
	return h.doRequest("PATCH", path, body, token, headers)
}

func (h *TestHarness) doRequest(method, path string, body any, token string, headers map[string]string) *http.Response {
	h.t.Helper()

	url := h.server.URL + path

	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			h.t.Fatalf("marshal request body: %v", err)
		}
		bodyReader = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, bodyReader)
	if err != nil {
		h.t.Fatalf("create request: %v", err)
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	client := &http.Client{
		Timeout: 10 * time.Second,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	resp, err := client.Do(req)
	if err != nil {
		h.t.Fatalf("%s %s failed: %v", method, path, err)
	}
	return resp
}

// ParseJSON reads the response body and unmarshals it into the target.
func (h *TestHarness) ParseJSON(resp *http.Response, target any) {
	h.t.Helper()
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	if err := json.Unmarshal(data, target); err != nil {
		h.t.Fatalf("unmarshal response body: %v\nbody: %s", err, string(data))
	}
}

// ReadBody reads and returns the response body as bytes.
func (h *TestHarness) ReadBody(resp *http.Response) []byte {
	h.t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		h.t.Fatalf("read response body: %v", err)
	}
	return data
}

// AssertStatus checks that the response has the expected status code.
func (h *TestHarness) AssertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Errorf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
}

// AssertJSON checks that the response has the expected status and parses the body.
func (h *TestHarness) AssertJSON(t *testing.T, resp *http.Response, expected int, target any) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("status = %d, want %d\nbody: %s", resp.StatusCode, expected, string(body))
	}
	h.ParseJSON(resp, target)
}

// --- Default test claims ---

// BuilderClaims returns TestClaims for a form builder in region 3.
func BuilderClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-builder",
		Email:     "builder@acme.example.com",
		Roles:     []string{"form_builder"},
		RegionID:  3,
	}
}

// ViewerClaims returns TestClaims for a read-only user in region 3.
func ViewerClaims() TestClaims {
	return TestClaims{
		SubjectID: "user-viewer",
		Email:     "viewer@acme.example.com",
		Roles:     []string{"form_viewer"},
		RegionID:  3,
	}
}

// --- Helpers ---

// FormFixture returns a minimal create-form request body.
func FormFixture(name string) map[string]any {
	return map[string]any{
		"name":      name,
		"form_type": "case",
		"region_id": 3,
	}
}

// QuestionFixture returns a create-question request body with a required
// text answer.
func QuestionFixture(tkey, label string) map[string]any {
	return map[string]any{
		"tkey":        tkey,
		"label":       label,
		"answer_type": "text",
		"required":    true,
	}
}

// OptionsBackend starts a stub picklist endpoint returning the given
// options. The handler counts calls via the returned counter func.
func OptionsBackend(t *testing.T, opts []model.PicklistOption) (*httptest.Server, func() int) {
	t.Helper()
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"options": opts})
	}))
	t.Cleanup(srv.Close)
	return srv, func() int { return calls }
}

// FormatJSON converts a value to indented JSON for test output.
func FormatJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
