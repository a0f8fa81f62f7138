package auth

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/jetwayz/admin-console/internal/platform/httpx"
	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
	"github.com/jetwayz/admin-console/internal/view"
	"github.com/jetwayz/admin-console/jobs"
)

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	audit          jobs.AuditPublisher
	now            func() time.Time
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, audit jobs.AuditPublisher) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	if audit == nil {
		audit = jobs.NopAuditPublisher{}
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		audit:          audit,
		now:            time.Now,
	}
}

// MountRoutes registers auth routes on provided router. Credential-bearing
// posts are wrapped with limit.
func (h *Handler) MountRoutes(r chi.Router, limit func(http.Handler) http.Handler) {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	r.Get("/login", h.showLogin)
	r.Get("/register", h.showRegister)
	r.Get("/forgot-password", h.showForgotPassword)
	r.Get(resetPasswordRoute, h.showResetPassword)
	r.Get("/captcha", h.captcha)
	r.Post("/logout", h.handleLogout)
	r.Group(func(r chi.Router) {
		r.Use(limit)
		r.Post("/login", h.handleLogin)
		r.Post("/register", h.handleRegister)
		r.Post("/forgot-password", h.handleForgotPassword)
		r.Post(resetPasswordRoute, h.handleResetPassword)
	})
}

const resetPasswordRoute = "/reset-password/{username}/{timestamp}/{token}"

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if p, ok := shared.CurrentPrincipal(r.Context()); ok && !p.Expired(h.now()) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	h.render(w, r, "pages/auth/login", "Sign in", map[string]any{
		"Form":       loginForm{},
		"CaptchaURL": captchaURL(h.now()),
	}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	form := loginForm{
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
		Captcha:  r.PostFormValue("captcha"),
	}
	data := map[string]any{"Form": loginForm{Username: form.Username}, "CaptchaURL": captchaURL(h.now())}

	if err := shared.ValidateForm(form); err != nil {
		data["Errors"] = shared.FieldErrors(err)
		h.render(w, r, "pages/auth/login", "Sign in", data, http.StatusBadRequest, formInvalid())
		return
	}

	var cookies []string
	if sess != nil {
		cookies = sess.UpstreamCookies()
	}
	principal, err := h.service.Authenticate(r.Context(), cookies, form)
	if err != nil {
		h.logger.Warn("login failed", slog.String("username", form.Username), slog.Any("error", err))
		h.render(w, r, "pages/auth/login", "Sign in", data, http.StatusBadRequest, shared.FlashMessage{
			Kind: "error", Title: "Login Failed!", Message: loginFailureMessage(err),
		})
		return
	}
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if err := h.sessionManager.Renew(r.Context(), sess); err != nil {
		h.logger.Warn("renew session", slog.Any("error", err))
	}
	sess.Delete(shared.CSRFSessionKey)
	sess.SetUpstreamCookies(nil)
	sess.SetPrincipal(principal)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Title: "Login Successful!", Message: "You have successfully logged in."})
	h.publish(r, jobs.AuditPayload{
		Actor: principal.Username, Action: jobs.ActionLogin, Entity: "session", EntityID: principal.Username,
		Meta: map[string]any{"role": principal.Role, "ip": r.RemoteAddr},
	})
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if p := sess.Principal(); p != nil {
			h.publish(r, jobs.AuditPayload{Actor: p.Username, Action: jobs.ActionLogout, Entity: "session", EntityID: p.Username})
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/auth/login", http.StatusSeeOther)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/auth/register", "Register", map[string]any{
		"Form": registerForm{AccessRole: "user"},
	}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(MaxProfileImageBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		h.logger.Warn("parse registration form", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusRequestEntityTooLarge), http.StatusRequestEntityTooLarge)
		return
	}
	form := registerForm{
		Name:       r.PostFormValue("name"),
		Email:      r.PostFormValue("email"),
		DOB:        r.PostFormValue("dob"),
		Username:   r.PostFormValue("username"),
		Password:   r.PostFormValue("password"),
		Gender:     strings.ToLower(r.PostFormValue("gender")),
		Address:    r.PostFormValue("address"),
		MobileNo:   r.PostFormValue("mobileNo"),
		PinCode:    r.PostFormValue("pinCode"),
		AccessRole: strings.ToLower(r.PostFormValue("accessRole")),
	}
	redisplay := form
	redisplay.Password = ""
	data := map[string]any{"Form": redisplay}

	fieldErrs := map[string]string{}
	if err := shared.ValidateForm(form); err != nil {
		fieldErrs = shared.FieldErrors(err)
	}
	image, imgErr := profileImage(r)
	if imgErr != "" {
		fieldErrs["profileImage"] = imgErr
	}
	if len(fieldErrs) > 0 {
		data["Errors"] = fieldErrs
		h.render(w, r, "pages/auth/register", "Register", data, http.StatusBadRequest, formInvalid())
		return
	}

	if err := h.service.Register(r.Context(), form, image); err != nil {
		h.logger.Warn("register failed", slog.String("username", form.Username), slog.Any("error", err))
		if fe := shared.FieldErrors(err); fe != nil {
			data["Errors"] = fe
		}
		h.render(w, r, "pages/auth/register", "Register", data, http.StatusBadRequest, shared.FlashMessage{
			Kind: "error", Title: "Error", Message: "Registration failed. Please try again.",
		})
		return
	}
	h.publish(r, jobs.AuditPayload{
		Actor: form.Username, Action: jobs.ActionRegister, Entity: "user", EntityID: form.Username,
		Meta: map[string]any{"accessRole": form.AccessRole},
	})
	h.redirectWithFlash(w, r, "/auth/login", shared.FlashMessage{Kind: "success", Title: "Registration Successful", Message: "Welcome to JetWayz!"})
}

func (h *Handler) showForgotPassword(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/auth/forgot_password", "Forgot password", map[string]any{
		"Form":       forgotPasswordForm{},
		"CaptchaURL": captchaURL(h.now()),
	}, http.StatusOK)
}

func (h *Handler) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := forgotPasswordForm{Email: r.PostFormValue("email"), Captcha: r.PostFormValue("captcha")}
	data := map[string]any{"Form": forgotPasswordForm{Email: form.Email}, "CaptchaURL": captchaURL(h.now())}
	if err := shared.ValidateForm(form); err != nil {
		data["Errors"] = shared.FieldErrors(err)
		h.render(w, r, "pages/auth/forgot_password", "Forgot password", data, http.StatusBadRequest, formInvalid())
		return
	}

	var cookies []string
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		cookies = sess.UpstreamCookies()
	}
	message, err := h.service.ForgotPassword(r.Context(), cookies, form)
	if err != nil {
		h.logger.Warn("forgot password failed", slog.Any("error", err))
		h.render(w, r, "pages/auth/forgot_password", "Forgot password", data, http.StatusBadRequest, shared.FlashMessage{
			Kind: "error", Title: "Email has not been sent!", Message: shared.UserSafeMessage(err),
		})
		return
	}
	if message == "" {
		message = "Check your inbox for a reset link."
	}
	h.redirectWithFlash(w, r, "/auth/forgot-password", shared.FlashMessage{Kind: "success", Title: "Email Sent Successfully!", Message: message})
}

func (h *Handler) showResetPassword(w http.ResponseWriter, r *http.Request) {
	link, ok := h.resetLink(w, r)
	if !ok {
		return
	}
	h.render(w, r, "pages/auth/reset_password", "Reset password", map[string]any{
		"Link":   link,
		"Action": r.URL.Path,
	}, http.StatusOK)
}

func (h *Handler) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	link, ok := h.resetLink(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	form := resetPasswordForm{Password: r.PostFormValue("password"), ConfirmPassword: r.PostFormValue("confirmPassword")}
	data := map[string]any{"Link": link, "Action": r.URL.Path}
	if err := shared.ValidateForm(form); err != nil {
		data["Errors"] = shared.FieldErrors(err)
		h.render(w, r, "pages/auth/reset_password", "Reset password", data, http.StatusBadRequest, formInvalid())
		return
	}

	message, err := h.service.ResetPassword(r.Context(), link, form)
	if err != nil {
		h.logger.Warn("reset password failed", slog.String("username", link.Username), slog.Any("error", err))
		h.render(w, r, "pages/auth/reset_password", "Reset password", data, http.StatusBadRequest, shared.FlashMessage{
			Kind: "error", Title: "Password Reset Failed", Message: shared.UserSafeMessage(err),
		})
		return
	}
	h.publish(r, jobs.AuditPayload{
		Actor: link.Username, Action: jobs.ActionPasswordReset, Entity: "user", EntityID: link.Username,
	})
	if message == "" {
		message = "You can now sign in with your new password."
	}
	h.redirectWithFlash(w, r, "/auth/login", shared.FlashMessage{Kind: "success", Title: "Password Reset Successful", Message: message})
}

// resetLink reads and checks the reset link in the path. Malformed links get
// an error page.
func (h *Handler) resetLink(w http.ResponseWriter, r *http.Request) (resetLink, bool) {
	link := resetLink{
		Username:  chi.URLParam(r, "username"),
		Timestamp: chi.URLParam(r, "timestamp"),
		Token:     chi.URLParam(r, "token"),
	}
	if err := shared.ValidateForm(link); err != nil {
		h.render(w, r, "pages/errors/error", "Invalid reset link", map[string]any{
			"Status":    http.StatusBadRequest,
			"Message":   "This password reset link is not valid. Request a new one.",
			"BackURL":   "/auth/forgot-password",
			"BackLabel": "Request a new link",
		}, http.StatusBadRequest)
		return resetLink{}, false
	}
	return link, true
}

// captcha proxies the upstream captcha and keeps its cookies in the session
// so the answer is checked against the same upstream captcha session.
func (h *Handler) captcha(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	var cookies []string
	if sess != nil {
		cookies = sess.UpstreamCookies()
	}
	c, err := h.service.Captcha(r.Context(), cookies)
	if err != nil {
		h.logger.Warn("captcha fetch failed", slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Captcha not loading!", shared.UserSafeMessage(err))
		return
	}
	if sess != nil {
		sess.SetUpstreamCookies(c.Cookies)
	}
	w.Header().Set("Content-Type", c.ContentType)
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Content-Length", strconv.Itoa(len(c.Image)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(c.Image)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, name, title string, data map[string]any, status int, extra ...shared.FlashMessage) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flashes []shared.FlashMessage
	if sess != nil {
		flashes = sess.PopFlashes()
	}
	flashes = append(flashes, extra...)
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flashes:     flashes,
		CurrentPath: r.URL.Path,
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

func (h *Handler) publish(r *http.Request, payload jobs.AuditPayload) {
	if err := h.audit.PublishAudit(r.Context(), payload); err != nil {
		h.logger.Warn("audit publish", slog.String("action", payload.Action), slog.Any("error", err))
	}
}

func formInvalid() shared.FlashMessage {
	return shared.FlashMessage{Kind: "warning", Title: "Form Invalid", Message: "Please fill in all fields correctly."}
}

// profileImage reads the optional upload. A non-empty string is a field error.
func profileImage(r *http.Request) (*upstream.FileUpload, string) {
	file, header, err := r.FormFile("profileImage")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, ""
		}
		return nil, "Could not read the uploaded file."
	}
	defer file.Close()
	if header.Size > MaxProfileImageBytes {
		return nil, "Image must be 5 MB or smaller."
	}
	data, err := io.ReadAll(io.LimitReader(file, MaxProfileImageBytes+1))
	if err != nil {
		return nil, "Could not read the uploaded file."
	}
	if len(data) > MaxProfileImageBytes {
		return nil, "Image must be 5 MB or smaller."
	}
	if len(data) == 0 {
		return nil, ""
	}
	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, "Upload a PNG, JPEG, GIF or WebP image."
	}
	return &upstream.FileUpload{Filename: header.Filename, ContentType: contentType, Content: bytes.NewReader(data)}, ""
}
