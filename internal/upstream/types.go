package upstream

import (
	"io"
	"time"
)

// Credentials bind calls to an authenticated operator and the upstream cookie
// jar state captured during the captcha exchange.
type Credentials struct {
	Token   string
	Cookies []string
}

// LoginRequest is posted to /login.
type LoginRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	CaptchaResponse string `json:"captchaResponse"`
}

// LoginResponse is the upstream login payload.
type LoginResponse struct {
	Token    string `json:"token"`
	Role     string `json:"role"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Email    string `json:"email"`
}

// ForgotPasswordRequest is posted to /forgot-password.
type ForgotPasswordRequest struct {
	Email           string `json:"email"`
	CaptchaResponse string `json:"captchaResponse"`
}

// ResetPasswordRequest is posted to /reset-password. Username, Timestamp and
// Token come from the emailed reset link.
type ResetPasswordRequest struct {
	Username    string `json:"username"`
	Timestamp   string `json:"timestamp"`
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// FileUpload is an optional file part of a multipart request.
type FileUpload struct {
	Filename    string
	ContentType string
	Content     io.Reader
}

// Registration is the multipart /register form.
type Registration struct {
	Name         string
	Email        string
	DOB          time.Time
	Username     string
	Password     string
	Gender       string
	Address      string
	MobileNo     string
	PinCode      string
	AccessRole   string
	ProfileImage *FileUpload
}

// Captcha is a captcha image plus the cookies the upstream set with it.
type Captcha struct {
	Image       []byte
	ContentType string
	Cookies     []string
}

type messagePayload struct {
	Message string `json:"message"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}
