package users

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/jetwayz/admin-console/internal/directory"
	"github.com/jetwayz/admin-console/internal/platform/httpx"
	"github.com/jetwayz/admin-console/internal/rbac"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
	"github.com/jetwayz/admin-console/internal/view"
	"github.com/jetwayz/admin-console/jobs"
)

// Handler manages user directory endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
	roles     []string
	audit     jobs.AuditPublisher
}

// NewHandler builds Handler instance. Only principals holding one of roles
// reach the directory.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbac rbac.Middleware, roles []string, audit jobs.AuditPublisher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = jobs.NopAuditPublisher{}
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbac, roles: roles, audit: audit}
}

// MountRoutes registers the HTML directory routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(h.roles...))
		r.Get("/", h.listUsers)
		r.Get("/{username}", h.showUser)
		r.Get("/{username}/edit", h.showEditForm)
		r.Post("/{username}/edit", h.updateUser)
		r.Get("/{username}/delete", h.confirmDelete)
		r.Post("/{username}/delete", h.deleteUser)
	})
}

// MountAPIRoutes registers the JSON directory route.
func (h *Handler) MountAPIRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(h.roles...))
		r.Get("/", h.listUsersJSON)
	})
}

type listResponse struct {
	View          directory.ViewModel      `json:"view"`
	Notifications []directory.Notification `json:"notifications"`
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())
	collector := &Collector{}
	ctrl, restored := h.service.Open(r.Context(), sess, p, collector)

	err := h.service.Apply(r.Context(), ctrl, restored, ParseIntent(r.URL.Query()))
	if errors.Is(err, upstream.ErrUnauthorized) {
		h.expire(w, r, sess)
		return
	}
	collector.FlushTo(sess)
	h.service.Save(r.Context(), sess, ctrl)

	vm := ctrl.View()
	scope, query := "global", vm.SearchTerm
	if vm.FilterTerm != "" {
		scope, query = "local", vm.FilterTerm
	}
	h.render(w, r, "pages/users/list", "Users", map[string]any{
		"View":      vm,
		"PageSizes": shared.PageSizeOptions,
		"Scope":     scope,
		"Query":     query,
	}, http.StatusOK)
}

func (h *Handler) listUsersJSON(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())
	collector := &Collector{}
	ctrl, restored := h.service.Open(r.Context(), sess, p, collector)

	err := h.service.Apply(r.Context(), ctrl, restored, ParseIntent(r.URL.Query()))
	if errors.Is(err, upstream.ErrUnauthorized) {
		if sess != nil {
			sess.ClearPrincipal()
		}
		httpx.RespondError(w, err)
		return
	}
	h.service.Save(r.Context(), sess, ctrl)
	httpx.JSON(w, http.StatusOK, listResponse{View: ctrl.View(), Notifications: collector.Notifications()})
}

func (h *Handler) showUser(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookup(w, r)
	if !ok {
		return
	}
	status := user.Status
	if strings.TrimSpace(status) == "" {
		status = "Active"
	}
	h.render(w, r, "pages/users/detail", user.Name, map[string]any{"User": user, "Status": status}, http.StatusOK)
}

func (h *Handler) showEditForm(w http.ResponseWriter, r *http.Request) {
	user, ok := h.lookup(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/users/edit", "Edit user", map[string]any{
		"User": user,
		"Form": formFromUser(user),
	}, http.StatusOK)
}

func (h *Handler) updateUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())
	collector := &Collector{}
	ctrl, restored := h.service.Open(r.Context(), sess, p, collector)
	user, found := h.find(r, ctrl, restored)
	if !found {
		h.notFound(w, r)
		return
	}

	form := editForm{
		Name:          r.PostFormValue("name"),
		Email:         r.PostFormValue("email"),
		AccessRole:    strings.ToLower(r.PostFormValue("accessRole")),
		Gender:        strings.ToLower(r.PostFormValue("gender")),
		ContactNumber: r.PostFormValue("contactNumber"),
		Address:       r.PostFormValue("address"),
		PinCode:       r.PostFormValue("pinCode"),
		DOB:           r.PostFormValue("dob"),
	}
	data := map[string]any{"User": user, "Form": form}
	if err := shared.ValidateForm(form); err != nil {
		data["Errors"] = shared.FieldErrors(err)
		h.render(w, r, "pages/users/edit", "Edit user", data, http.StatusBadRequest, shared.FlashMessage{
			Kind: "warning", Title: "Form Invalid", Message: "Please fill in all fields correctly.",
		})
		return
	}

	saved, err := ctrl.RequestEdit(r.Context(), user, formEditor{form: form, service: h.service.Updater(p)})
	if saved {
		h.publish(r, p, jobs.AuditPayload{
			Action: jobs.ActionUpdate, Entity: "user", EntityID: user.Username,
			Meta: map[string]any{"fields": form.changedFields(user)},
		})
	}
	if errors.Is(err, upstream.ErrUnauthorized) {
		h.expire(w, r, sess)
		return
	}
	if !saved {
		h.logger.Warn("update user failed", slog.String("username", user.Username), slog.Any("error", err))
		h.render(w, r, "pages/users/edit", "Edit user", data, http.StatusBadRequest, shared.FlashMessage{
			Kind: "error", Title: "Update Failed", Message: shared.UserSafeMessage(err),
		})
		return
	}
	collector.FlushTo(sess)
	h.service.Save(r.Context(), sess, ctrl)
	h.redirectWithFlash(w, r, "/users/"+url.PathEscape(user.Username), shared.FlashMessage{
		Kind: "success", Title: "User Updated", Message: fmt.Sprintf("%s has been updated.", form.Name),
	})
}

func (h *Handler) confirmDelete(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())
	ctrl, restored := h.service.Open(r.Context(), sess, p, FlashNotifier{Session: sess})
	user, found := h.find(r, ctrl, restored)
	if !found {
		h.notFound(w, r)
		return
	}
	capture := &promptCapture{}
	if _, err := ctrl.RequestDelete(r.Context(), user, capture); err != nil {
		h.logger.Warn("delete prompt", slog.Any("error", err))
	}
	h.render(w, r, "pages/users/delete", capture.prompt.Title, map[string]any{
		"User":   user,
		"Prompt": capture.prompt,
	}, http.StatusOK)
}

func (h *Handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	if r.PostFormValue("confirm") != "yes" {
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())
	collector := &Collector{}
	ctrl, restored := h.service.Open(r.Context(), sess, p, collector)
	user, found := h.find(r, ctrl, restored)
	if !found {
		h.notFound(w, r)
		return
	}

	deleted, err := ctrl.RequestDelete(r.Context(), user, decision(true))
	if deleted {
		h.publish(r, p, jobs.AuditPayload{Action: jobs.ActionDelete, Entity: "user", EntityID: user.Username})
	}
	if errors.Is(err, upstream.ErrUnauthorized) {
		h.expire(w, r, sess)
		return
	}
	collector.FlushTo(sess)
	h.service.Save(r.Context(), sess, ctrl)
	http.Redirect(w, r, "/users", http.StatusSeeOther)
}

// lookup resolves the {username} route parameter against the loaded page and
// renders a 404 when it is not there.
func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (directory.UserRecord, bool) {
	sess := shared.SessionFromContext(r.Context())
	p, _ := shared.CurrentPrincipal(r.Context())
	ctrl, restored := h.service.Open(r.Context(), sess, p, FlashNotifier{Session: sess})
	user, found := h.find(r, ctrl, restored)
	if !found {
		h.notFound(w, r)
		return directory.UserRecord{}, false
	}
	h.service.Save(r.Context(), sess, ctrl)
	return user, true
}

func (h *Handler) find(r *http.Request, ctrl *directory.Controller, restored bool) (directory.UserRecord, bool) {
	username := chi.URLParam(r, "username")
	if user, ok := ctrl.Find(username); ok {
		return user, true
	}
	if restored {
		return directory.UserRecord{}, false
	}
	if err := ctrl.Refresh(r.Context()); err != nil {
		return directory.UserRecord{}, false
	}
	return ctrl.Find(username)
}

func (h *Handler) notFound(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/errors/error", "User not found", map[string]any{
		"Status":    http.StatusNotFound,
		"Message":   "That user is not on the current page. Go back to the list and try again.",
		"BackURL":   "/users",
		"BackLabel": "Back to users",
	}, http.StatusNotFound)
}

// expire signs the operator out after the upstream rejected their token.
func (h *Handler) expire(w http.ResponseWriter, r *http.Request, sess *shared.Session) {
	if sess != nil {
		sess.ClearPrincipal()
		sess.AddFlash(shared.FlashMessage{Kind: "error", Title: "Session expired", Message: shared.UserSafeMessage(shared.ErrSessionExpired)})
	}
	http.Redirect(w, r, rbac.DefaultLoginPath, http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data map[string]any, status int, extra ...shared.FlashMessage) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrf.EnsureToken(r.Context(), sess)
	var flashes []shared.FlashMessage
	var principal *shared.Principal
	if sess != nil {
		flashes = sess.PopFlashes()
		principal = sess.Principal()
	}
	flashes = append(flashes, extra...)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
		Principal:   principal,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, name, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", name), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location string, flash shared.FlashMessage) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(flash)
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

func (h *Handler) publish(r *http.Request, p shared.Principal, payload jobs.AuditPayload) {
	payload.Actor = p.Username
	if err := h.audit.PublishAudit(r.Context(), payload); err != nil {
		h.logger.Warn("audit publish", slog.String("action", payload.Action), slog.Any("error", err))
	}
}
