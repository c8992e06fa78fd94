package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/formsmith/formsmith/internal/builder"
	"github.com/formsmith/formsmith/internal/config"
	"github.com/formsmith/formsmith/internal/export"
	"github.com/formsmith/formsmith/internal/observability"
	"github.com/formsmith/formsmith/internal/options"
	"github.com/formsmith/formsmith/internal/template"
	"github.com/formsmith/formsmith/internal/validation"
)

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Config       *config.Config
	Authenticate func(http.Handler) http.Handler

	Builder   *builder.Service
	Templates *template.Service
	Options   *options.Provider
	Tester    *options.Tester
	Validator *validation.Engine
	Exporter  *export.Exporter

	Metrics *observability.Metrics
	Ready   observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the full middleware pipeline and all
// route registrations. Health, readiness, and metrics endpoints bypass the
// authentication middleware.
func NewRouter(deps Dependencies) chi.Router {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(CORS(deps.Config.Server.CORS))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	// Public routes.
	r.Get("/health", observability.HandleHealth())
	r.Get("/ready", observability.HandleReady(deps.Ready))
	if deps.Config.Observability.Metrics.Enabled {
		r.Method(http.MethodGet, deps.Config.Observability.Metrics.Path, observability.Handler())
	}

	auth := deps.Authenticate
	if auth == nil {
		auth = func(next http.Handler) http.Handler { return next }
	}

	r.Group(func(r chi.Router) {
		r.Use(auth)
		r.Use(BuildRequestContext(deps.Config.Identity.ClaimPaths))
		r.Use(HandlerTimeout(deps.Config.Server.HandlerTimeout))
		r.Use(RequestLogging)
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}
		if deps.Config.Observability.Tracing.Enabled {
			r.Use(observability.TracingMiddleware)
		}

		r.Route("/forms", func(r chi.Router) {
			r.Post("/", handleCreateForm(deps.Builder))
			r.Get("/", handleListForms(deps.Builder))

			r.Route("/{formId}", func(r chi.Router) {
				r.Get("/", handleGetForm(deps.Builder))
				r.Patch("/", handleUpdateForm(deps.Builder))
				r.Post("/publish", handlePublishForm(deps.Builder))
				r.Post("/unpublish", handleUnpublishForm(deps.Builder))
				r.Post("/archive", handleArchiveForm(deps.Builder))
				r.Get("/history", handleFormHistory(deps.Builder))
				r.Get("/export", handleExportForm(deps.Builder, deps.Exporter))
				r.Post("/validate", handleValidateForm(deps.Builder, deps.Validator))

				r.Post("/sections", handleCreateSection(deps.Builder))
				r.Get("/sections", handleListSections(deps.Builder))
				r.Post("/sections/reorder", handleReorderSections(deps.Builder))
			})
		})

		r.Route("/sections/{sectionId}", func(r chi.Router) {
			r.Patch("/", handleUpdateSection(deps.Builder))
			r.Post("/archive", handleArchiveSection(deps.Builder))
			r.Post("/questions", handleCreateQuestion(deps.Builder))
			r.Post("/questions/from-template", handleCreateQuestionFromTemplate(deps.Builder))
			r.Post("/questions/reorder", handleReorderQuestions(deps.Builder))
		})

		r.Route("/questions/{questionId}", func(r chi.Router) {
			r.Patch("/", handleUpdateQuestion(deps.Builder))
			r.Post("/archive", handleArchiveQuestion(deps.Builder))
			r.Post("/move", handleMoveQuestion(deps.Builder))
			r.Get("/options", handleQuestionOptions(deps.Builder, deps.Options))
		})

		r.Route("/templates", func(r chi.Router) {
			r.Get("/", handleListTemplates(deps.Templates))
			r.Post("/", handleCreateTemplate(deps.Templates))
			r.Get("/{templateId}", handleGetTemplate(deps.Templates))
			r.Patch("/{templateId}", handleUpdateTemplate(deps.Templates))
			r.Post("/{templateId}/archive", handleArchiveTemplate(deps.Templates))
			r.Get("/{templateId}/usage", handleTemplateUsage(deps.Templates))
		})

		r.Post("/options/test", handleTestEndpoint(deps.Tester))
	})

	return r
}
