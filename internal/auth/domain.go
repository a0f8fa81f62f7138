package auth

import (
	"context"
	"time"

	"github.com/jetwayz/admin-console/internal/upstream"
)

// MaxProfileImageBytes caps registration uploads.
const MaxProfileImageBytes = 5 << 20

// Gateway is the slice of the user service that authentication flows use.
// Cookies carry the upstream captcha session.
type Gateway interface {
	Login(ctx context.Context, cookies []string, req upstream.LoginRequest) (upstream.LoginResponse, error)
	ForgotPassword(ctx context.Context, cookies []string, req upstream.ForgotPasswordRequest) (string, error)
	ResetPassword(ctx context.Context, req upstream.ResetPasswordRequest) (string, error)
	Register(ctx context.Context, reg upstream.Registration) error
	Captcha(ctx context.Context, cookies []string) (upstream.Captcha, error)
}

// NewGateway adapts an upstream client to Gateway.
func NewGateway(client *upstream.Client) Gateway {
	return clientGateway{client: client}
}

type clientGateway struct {
	client *upstream.Client
}

func (g clientGateway) Login(ctx context.Context, cookies []string, req upstream.LoginRequest) (upstream.LoginResponse, error) {
	return g.client.Bind(upstream.Credentials{Cookies: cookies}).Login(ctx, req)
}

func (g clientGateway) ForgotPassword(ctx context.Context, cookies []string, req upstream.ForgotPasswordRequest) (string, error) {
	return g.client.Bind(upstream.Credentials{Cookies: cookies}).ForgotPassword(ctx, req)
}

func (g clientGateway) ResetPassword(ctx context.Context, req upstream.ResetPasswordRequest) (string, error) {
	return g.client.Bind(upstream.Credentials{}).ResetPassword(ctx, req)
}

func (g clientGateway) Register(ctx context.Context, reg upstream.Registration) error {
	return g.client.Bind(upstream.Credentials{}).Register(ctx, reg)
}

func (g clientGateway) Captcha(ctx context.Context, cookies []string) (upstream.Captcha, error) {
	return g.client.Bind(upstream.Credentials{Cookies: cookies}).Captcha(ctx)
}

type loginForm struct {
	Username string `form:"username" validate:"required,max=100"`
	Password string `form:"password" validate:"required"`
	Captcha  string `form:"captcha" validate:"required,max=20"`
}

type forgotPasswordForm struct {
	Email   string `form:"email" validate:"required,email"`
	Captcha string `form:"captcha" validate:"required,max=20"`
}

// resetLink is the path of an emailed reset link.
type resetLink struct {
	Username  string `form:"username" validate:"required,max=50"`
	Timestamp string `form:"timestamp" validate:"required,numeric,max=20"`
	Token     string `form:"token" validate:"required,max=512"`
}

type resetPasswordForm struct {
	Password        string `form:"password" validate:"required,min=6,max=100"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,eqfield=Password"`
}

type registerForm struct {
	Name       string `form:"name" validate:"required,max=100"`
	Email      string `form:"email" validate:"required,email"`
	DOB        string `form:"dob" validate:"required,datetime=2006-01-02"`
	Username   string `form:"username" validate:"required,min=3,max=50"`
	Password   string `form:"password" validate:"required,min=6,max=100"`
	Gender     string `form:"gender" validate:"required,oneof=male female other"`
	Address    string `form:"address" validate:"omitempty,max=255"`
	MobileNo   string `form:"mobileNo" validate:"required,numeric,min=7,max=15"`
	PinCode    string `form:"pinCode" validate:"required,numeric,min=4,max=10"`
	AccessRole string `form:"accessRole" validate:"required,oneof=user admin"`
}

func captchaURL(now time.Time) string {
	return "/auth/captcha?t=" + now.UTC().Format("20060102150405.000")
}
