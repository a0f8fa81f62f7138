// Package upstream is the HTTP client for the JetWayz user-management service.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/jetwayz/admin-console/internal/directory"
)

const maxErrorBody = 64 << 10

// Observer records the outcome of every upstream call.
type Observer interface {
	ObserveUpstream(endpoint, outcome string, elapsed time.Duration)
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	Logger     *slog.Logger
	Observer   Observer
	HTTPClient *http.Client
}

// Client wraps interactions with the user-management API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	observer   Observer
}

// NewClient constructs a new client.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		httpClient: httpClient,
		logger:     logger,
		observer:   opts.Observer,
	}
}

// Bind returns a Session that sends creds with every call.
func (c *Client) Bind(creds Credentials) *Session {
	return &Session{client: c, creds: creds}
}

// Session is a Client bound to one operator's credentials.
type Session struct {
	client *Client
	creds  Credentials
}

var _ directory.Service = (*Session)(nil)

// ListUsersPage fetches one page of users having q.Role.
func (s *Session) ListUsersPage(ctx context.Context, q directory.PageQuery) (directory.PageResult, error) {
	query := url.Values{}
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("size", strconv.Itoa(q.Size))
	query.Set("role", q.Role)
	var out directory.PageResult
	err := s.getJSON(ctx, "get-all-users-pagewise", "/get-all-users-pagewise", query, &out)
	return out, err
}

// SearchUsers fetches one page of users matching q.Term.
func (s *Session) SearchUsers(ctx context.Context, q directory.SearchQuery) (directory.PageResult, error) {
	query := url.Values{}
	query.Set("searchTerm", strings.TrimSpace(q.Term))
	query.Set("page", strconv.Itoa(q.Page))
	query.Set("size", strconv.Itoa(q.Size))
	var out directory.PageResult
	err := s.getJSON(ctx, "search-users", "/search-users", query, &out)
	return out, err
}

// UpdateUser saves user, keyed by its username.
func (s *Session) UpdateUser(ctx context.Context, user directory.UserRecord) error {
	body, err := json.Marshal(user)
	if err != nil {
		return err
	}
	req, err := s.newRequest(ctx, http.MethodPut, "/update-user", nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.send(req, "update-user")
	if err != nil {
		return err
	}
	return drain(resp)
}

// DeleteUser removes the account with username.
func (s *Session) DeleteUser(ctx context.Context, username string) error {
	req, err := s.newRequest(ctx, http.MethodDelete, "/delete-user/"+url.PathEscape(username), nil, nil)
	if err != nil {
		return err
	}
	resp, err := s.send(req, "delete-user")
	if err != nil {
		return err
	}
	return drain(resp)
}

// Login exchanges credentials and a captcha answer for a token.
func (s *Session) Login(ctx context.Context, in LoginRequest) (LoginResponse, error) {
	var out LoginResponse
	err := s.postJSON(ctx, "login", "/login", in, &out, false)
	return out, err
}

// ForgotPassword asks the upstream to mail a reset link and returns its message.
func (s *Session) ForgotPassword(ctx context.Context, in ForgotPasswordRequest) (string, error) {
	// The message is optional; an empty 2xx body still means the mail went out.
	var out messagePayload
	if err := s.postJSON(ctx, "forgot-password", "/forgot-password", in, &out, true); err != nil {
		return "", err
	}
	return out.Message, nil
}

// ResetPassword sets a new password using the token from a reset link and
// returns the upstream message.
func (s *Session) ResetPassword(ctx context.Context, in ResetPasswordRequest) (string, error) {
	var out messagePayload
	if err := s.postJSON(ctx, "reset-password", "/reset-password", in, &out, true); err != nil {
		return "", err
	}
	return out.Message, nil
}

// Register posts the registration form as multipart/form-data.
func (s *Session) Register(ctx context.Context, in Registration) error {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fields := []struct{ name, value string }{
		{"name", in.Name},
		{"email", in.Email},
		{"dob", in.DOB.Format("2006-01-02")},
		{"username", in.Username},
		{"password", in.Password},
		{"gender", in.Gender},
		{"address", in.Address},
		{"mobileNo", in.MobileNo},
		{"pinCode", in.PinCode},
		{"accessRole", in.AccessRole},
	}
	for _, f := range fields {
		if err := writer.WriteField(f.name, f.value); err != nil {
			return err
		}
	}
	if in.ProfileImage != nil && in.ProfileImage.Content != nil {
		part, err := writer.CreatePart(filePartHeader("profileImage", in.ProfileImage))
		if err != nil {
			return err
		}
		if _, err := io.Copy(part, in.ProfileImage.Content); err != nil {
			return err
		}
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := s.newRequest(ctx, http.MethodPost, "/register", nil, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	resp, err := s.send(req, "register")
	if err != nil {
		return err
	}
	return drain(resp)
}

// Captcha fetches a fresh captcha image. The returned cookies must accompany
// the login or password-reset call that answers it.
func (s *Session) Captcha(ctx context.Context) (Captcha, error) {
	req, err := s.newRequest(ctx, http.MethodGet, "/captcha", nil, nil)
	if err != nil {
		return Captcha{}, err
	}
	req.Header.Set("Accept", "image/*")
	resp, err := s.send(req, "captcha")
	if err != nil {
		return Captcha{}, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	img, err := io.ReadAll(resp.Body)
	if err != nil {
		return Captcha{}, &NetworkError{Op: "captcha", Err: err}
	}
	fresh := make([]string, 0, len(resp.Cookies()))
	for _, ck := range resp.Cookies() {
		fresh = append(fresh, ck.Name+"="+ck.Value)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(img)
	}
	return Captcha{Image: img, ContentType: contentType, Cookies: MergeCookies(s.creds.Cookies, fresh)}, nil
}

// MergeCookies overlays fresh "name=value" pairs on existing ones by name.
func MergeCookies(existing, fresh []string) []string {
	index := make(map[string]int, len(existing)+len(fresh))
	merged := make([]string, 0, len(existing)+len(fresh))
	for _, list := range [][]string{existing, fresh} {
		for _, c := range list {
			name, _, ok := strings.Cut(c, "=")
			if !ok || name == "" {
				continue
			}
			if i, seen := index[name]; seen {
				merged[i] = c
				continue
			}
			index[name] = len(merged)
			merged = append(merged, c)
		}
	}
	return merged
}

func (s *Session) getJSON(ctx context.Context, op, path string, query url.Values, out any) error {
	req, err := s.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	resp, err := s.send(req, op)
	if err != nil {
		return err
	}
	return s.decode(resp, op, out, false)
}

func (s *Session) postJSON(ctx context.Context, op, path string, in, out any, allowEmpty bool) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := s.newRequest(ctx, http.MethodPost, path, nil, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.send(req, op)
	if err != nil {
		return err
	}
	return s.decode(resp, op, out, allowEmpty)
}

func (s *Session) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	target := s.client.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if s.creds.Token != "" {
		req.Header.Set("Authorization", "Bearer "+s.creds.Token)
		req.Header.Set("X-Auth-Token", s.creds.Token)
	}
	if len(s.creds.Cookies) > 0 {
		req.Header.Set("Cookie", strings.Join(s.creds.Cookies, "; "))
	}
	return req, nil
}

// send performs req and converts failures into NetworkError/ServerError. On
// success the caller owns resp.Body.
func (s *Session) send(req *http.Request, op string) (*http.Response, error) {
	start := time.Now()
	resp, err := s.client.httpClient.Do(req)
	if err != nil {
		s.observe(op, "network_error", start)
		s.client.logger.WarnContext(req.Context(), "upstream request failed", slog.String("op", op), slog.Any("error", err))
		return nil, &NetworkError{Op: op, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		defer func() {
			_ = resp.Body.Close()
		}()
		s.observe(op, "server_error", start)
		return nil, &ServerError{Op: op, Status: resp.StatusCode, Message: errorMessage(resp)}
	}
	s.observe(op, "ok", start)
	return resp, nil
}

func (s *Session) observe(op, outcome string, start time.Time) {
	if s.client.observer != nil {
		s.client.observer.ObserveUpstream(op, outcome, time.Since(start))
	}
}

// decode reads a JSON body into out. An empty body is an error unless
// allowEmpty is set; a successful status without a payload is not a result.
func (s *Session) decode(resp *http.Response, op string, out any, allowEmpty bool) error {
	defer func() {
		_ = resp.Body.Close()
	}()
	err := json.NewDecoder(resp.Body).Decode(out)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF) && allowEmpty:
		return nil
	case errors.Is(err, io.EOF):
		s.client.logger.Warn("upstream returned an empty body", slog.String("op", op), slog.Int("status", resp.StatusCode))
		return &ServerError{Op: op, Status: resp.StatusCode, Message: "The server returned an empty response."}
	default:
		s.client.logger.Warn("upstream returned a malformed body", slog.String("op", op), slog.Int("status", resp.StatusCode), slog.Any("error", err))
		return &ServerError{Op: op, Status: resp.StatusCode, Message: "The server returned an unexpected response."}
	}
}

func drain(resp *http.Response) error {
	defer func() {
		_ = resp.Body.Close()
	}()
	_, err := io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	return err
}

func errorMessage(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var payload messagePayload
	if err := json.Unmarshal(raw, &payload); err == nil {
		if payload.Message != "" {
			return payload.Message
		}
		if payload.Error != nil && payload.Error.Message != "" {
			return payload.Error.Message
		}
	}
	if text := strings.TrimSpace(string(raw)); text != "" && !strings.HasPrefix(text, "{") && len(text) <= 200 {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func filePartHeader(field string, f *FileUpload) textproto.MIMEHeader {
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`,
		quoteEscaper.Replace(field), quoteEscaper.Replace(f.Filename)))
	contentType := f.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h.Set("Content-Type", contentType)
	return h
}
