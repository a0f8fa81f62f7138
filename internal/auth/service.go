package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jetwayz/admin-console/internal/shared"
	"github.com/jetwayz/admin-console/internal/upstream"
)

// Service wraps authentication rules on top of the upstream user service.
type Service struct {
	gateway    Gateway
	sessionTTL time.Duration
	now        func() time.Time
}

// NewService constructs a new Service. sessionTTL bounds principals whose
// token carries no expiry.
func NewService(gateway Gateway, sessionTTL time.Duration) *Service {
	return &Service{gateway: gateway, sessionTTL: sessionTTL, now: time.Now}
}

// Authenticate exchanges credentials and the captcha answer for a principal.
func (s *Service) Authenticate(ctx context.Context, cookies []string, form loginForm) (shared.Principal, error) {
	resp, err := s.gateway.Login(ctx, cookies, upstream.LoginRequest{
		Username:        strings.TrimSpace(form.Username),
		Password:        form.Password,
		CaptchaResponse: strings.TrimSpace(form.Captcha),
	})
	if err != nil {
		return shared.Principal{}, err
	}
	if resp.Token == "" {
		return shared.Principal{}, shared.ErrInvalidCredentials
	}

	claims := inspectToken(resp.Token)
	p := shared.Principal{
		Username: firstNonEmpty(resp.Username, claims.subject, strings.TrimSpace(form.Username)),
		Name:     resp.Name,
		Email:    resp.Email,
		Role:     firstNonEmpty(resp.Role, claims.role),
		Token:    resp.Token,
	}
	p.ExpiresAt = s.expiry(claims.expiresAt)
	return p, nil
}

// ForgotPassword requests a reset link and returns the upstream message.
func (s *Service) ForgotPassword(ctx context.Context, cookies []string, form forgotPasswordForm) (string, error) {
	return s.gateway.ForgotPassword(ctx, cookies, upstream.ForgotPasswordRequest{
		Email:           strings.TrimSpace(form.Email),
		CaptchaResponse: strings.TrimSpace(form.Captcha),
	})
}

// ResetPassword sets the new password for the account named in link.
func (s *Service) ResetPassword(ctx context.Context, link resetLink, form resetPasswordForm) (string, error) {
	return s.gateway.ResetPassword(ctx, upstream.ResetPasswordRequest{
		Username:    link.Username,
		Timestamp:   link.Timestamp,
		Token:       link.Token,
		NewPassword: form.Password,
	})
}

// Register forwards a validated registration form.
func (s *Service) Register(ctx context.Context, form registerForm, image *upstream.FileUpload) error {
	dob, err := time.Parse("2006-01-02", form.DOB)
	if err != nil {
		return &shared.ValidationError{Fields: map[string]string{"dob": "Enter a date as YYYY-MM-DD."}}
	}
	return s.gateway.Register(ctx, upstream.Registration{
		Name:         strings.TrimSpace(form.Name),
		Email:        strings.TrimSpace(form.Email),
		DOB:          dob,
		Username:     strings.TrimSpace(form.Username),
		Password:     form.Password,
		Gender:       form.Gender,
		Address:      strings.TrimSpace(form.Address),
		MobileNo:     form.MobileNo,
		PinCode:      form.PinCode,
		AccessRole:   form.AccessRole,
		ProfileImage: image,
	})
}

// Captcha fetches a captcha image with the caller's upstream cookies.
func (s *Service) Captcha(ctx context.Context, cookies []string) (upstream.Captcha, error) {
	return s.gateway.Captcha(ctx, cookies)
}

// expiry picks the earlier of the token expiry and the session TTL.
func (s *Service) expiry(tokenExp time.Time) time.Time {
	var ttlExp time.Time
	if s.sessionTTL > 0 {
		ttlExp = s.now().Add(s.sessionTTL)
	}
	switch {
	case tokenExp.IsZero():
		return ttlExp
	case ttlExp.IsZero() || tokenExp.Before(ttlExp):
		return tokenExp
	default:
		return ttlExp
	}
}

type tokenClaims struct {
	subject   string
	role      string
	expiresAt time.Time
}

// inspectToken reads claims without verifying the signature; the upstream
// remains the authority on token validity.
func inspectToken(raw string) tokenClaims {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return tokenClaims{}
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return tokenClaims{}
	}
	var out tokenClaims
	if sub, err := claims.GetSubject(); err == nil {
		out.subject = sub
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		out.expiresAt = exp.Time
	}
	switch role := claims["role"].(type) {
	case string:
		out.role = role
	case []any:
		if len(role) > 0 {
			out.role, _ = role[0].(string)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// loginFailureMessage mirrors the upstream message when there is one.
func loginFailureMessage(err error) string {
	var se *upstream.ServerError
	if errors.As(err, &se) && se.Message != "" && se.Message != http.StatusText(se.Status) {
		return se.Message
	}
	if errors.Is(err, upstream.ErrNetwork) || errors.Is(err, shared.ErrInvalidCredentials) {
		return shared.UserSafeMessage(err)
	}
	return "Login failed. Please try again."
}
