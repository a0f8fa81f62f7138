package app

import (
	"io/fs"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/jetwayz/admin-console/internal/auth"
	"github.com/jetwayz/admin-console/internal/dashboard"
	"github.com/jetwayz/admin-console/internal/observability"
	"github.com/jetwayz/admin-console/internal/platform/httpx"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/users"
	"github.com/jetwayz/admin-console/internal/view"
	"github.com/jetwayz/admin-console/jobs"
	"github.com/jetwayz/admin-console/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger           *slog.Logger
	Config           *Config
	Templates        *view.Engine
	SessionManager   *shared.SessionManager
	CSRFManager      *shared.CSRFManager
	AuthHandler      *auth.Handler
	UsersHandler     *users.Handler
	DashboardHandler *dashboard.Handler
	JobHandler       *jobs.Handler
	Metrics          *observability.Metrics
}

// NewRouter constructs the chi.Router with console defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	if !InTestMode() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.DashboardHandler != nil {
		params.DashboardHandler.MountRoutes(r)
	}
	if params.AuthHandler != nil {
		// Credential posts get a much tighter budget than the global limit.
		loginLimit := httprate.Limit(10, time.Minute, httprate.WithKeyFuncs(httprate.KeyByIP))
		r.Route("/auth", func(r chi.Router) {
			params.AuthHandler.MountRoutes(r, loginLimit)
		})
	}
	if params.UsersHandler != nil {
		r.Route("/users", params.UsersHandler.MountRoutes)
		r.Route("/api/users", params.UsersHandler.MountAPIRoutes)
	}
	if params.JobHandler != nil {
		r.Route("/jobs", params.JobHandler.MountRoutes)
	}
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	r.NotFound(notFoundHandler(params))

	return r
}

// notFoundHandler renders the error page for unknown paths. API paths get a
// problem document instead.
func notFoundHandler(params RouterParams) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") || params.Templates == nil {
			httpx.Problem(w, http.StatusNotFound, "Not Found", "No resource lives at "+r.URL.Path+".")
			return
		}
		sess := shared.SessionFromContext(r.Context())
		data := view.TemplateData{
			Title:       "Page not found",
			CurrentPath: r.URL.Path,
			Data: map[string]any{
				"Status":  http.StatusNotFound,
				"Message": "The page you are looking for does not exist.",
			},
		}
		if sess != nil {
			data.Principal = sess.Principal()
			data.Flashes = sess.PopFlashes()
			if params.CSRFManager != nil {
				data.CSRFToken, _ = params.CSRFManager.EnsureToken(r.Context(), sess)
			}
		}
		if err := params.Templates.RenderStatus(w, http.StatusNotFound, "pages/errors/error", data); err != nil {
			params.Logger.Error("render not found page", slog.Any("error", err))
			http.NotFound(w, r)
		}
	}
}

// staticCacheHandler lets browsers cache static assets for an hour.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
