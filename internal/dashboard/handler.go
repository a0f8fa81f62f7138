package dashboard

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/jetwayz/admin-console/internal/rbac"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
	"github.com/jetwayz/admin-console/internal/view"
)

// Handler serves the dashboard.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac}
}

// MountRoutes registers the dashboard on r.
func (h *Handler) MountRoutes(r chi.Router) {
	r.With(h.rbac.RequirePrincipal).Get("/", h.index)
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())

	data := map[string]any{}
	var flashes []shared.FlashMessage
	counts, err := h.service.Counts(r.Context(), p)
	switch {
	case errors.Is(err, upstream.ErrUnauthorized):
		sess.ClearPrincipal()
		sess.AddFlash(shared.FlashMessage{Kind: "error", Title: "Session expired", Message: shared.UserSafeMessage(shared.ErrSessionExpired)})
		http.Redirect(w, r, rbac.DefaultLoginPath, http.StatusSeeOther)
		return
	case err != nil:
		h.logger.Warn("dashboard counts", slog.Any("error", err))
		flashes = append(flashes, shared.FlashMessage{Kind: "error", Title: "Error!", Message: shared.UserSafeMessage(err)})
	default:
		data["Counts"] = counts
	}

	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	viewData := view.TemplateData{
		Title:       "Dashboard",
		CSRFToken:   csrfToken,
		Flashes:     append(sess.PopFlashes(), flashes...),
		CurrentPath: r.URL.Path,
		Principal:   sess.Principal(),
		Data:        data,
	}
	if err := h.templates.Render(w, "pages/dashboard/index", viewData); err != nil {
		h.logger.Error("render template", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}
