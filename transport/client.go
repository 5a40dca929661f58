// Package transport is the HTTP client for the remote auth API: one method per
// operation, JSON in and out, failures reported as *Error.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/dto"
	"github.com/google/uuid"
)

const maxBodyBytes = 1 << 20

// TenantStrategy controls whether requests carry a tenant header.
type TenantStrategy string

const (
	TenantNone      TenantStrategy = "none"
	TenantHeader    TenantStrategy = "header"
	TenantSubdomain TenantStrategy = "subdomain"
)

// Endpoints are the per-operation paths relative to the base URL.
type Endpoints struct {
	Login              string
	Register           string
	Refresh            string
	Me                 string
	Logout             string
	ForgotPassword     string
	ResetPassword      string
	ResendVerification string
	VerifyEmail        string
}

// DefaultEndpoints returns the standard endpoint paths.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Login:              "/login",
		Register:           "/register",
		Refresh:            "/refresh",
		Me:                 "/me",
		Logout:             "/logout",
		ForgotPassword:     "/forgot-password",
		ResetPassword:      "/reset-password",
		ResendVerification: "/resend-verification",
		VerifyEmail:        "/verify-email",
	}
}

// Config configures a Client.
type Config struct {
	BaseURL   string
	Endpoints Endpoints

	TenantStrategy TenantStrategy
	TenantID       string
	TenantHeader   string
	// TenantResolver takes precedence over TenantID when it returns a
	// non-empty value.
	TenantResolver func() string

	// HTTPClient defaults to a client with a 30s timeout.
	HTTPClient *http.Client

	// Observe, when set, is called after every round trip.
	Observe func(op string, elapsed time.Duration, err error)
}

// Client issues auth API calls. It is safe for concurrent use.
type Client struct {
	cfg  Config
	http *http.Client
}

// New returns a Client for cfg.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	if cfg.TenantHeader == "" {
		cfg.TenantHeader = "X-Tenant-ID"
	}
	if cfg.TenantStrategy == "" {
		cfg.TenantStrategy = TenantNone
	}
	cfg.Endpoints = cfg.Endpoints.WithDefaults()
	return &Client{cfg: cfg, http: hc}
}

// WithDefaults returns e with blank paths replaced by their defaults.
func (e Endpoints) WithDefaults() Endpoints {
	def := DefaultEndpoints()
	fill := func(v *string, d string) {
		if strings.TrimSpace(*v) == "" {
			*v = d
		}
	}
	fill(&e.Login, def.Login)
	fill(&e.Register, def.Register)
	fill(&e.Refresh, def.Refresh)
	fill(&e.Me, def.Me)
	fill(&e.Logout, def.Logout)
	fill(&e.ForgotPassword, def.ForgotPassword)
	fill(&e.ResetPassword, def.ResetPassword)
	fill(&e.ResendVerification, def.ResendVerification)
	fill(&e.VerifyEmail, def.VerifyEmail)
	return e
}

// JoinURL concatenates base and endpoint with exactly one slash between them.
func JoinURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(endpoint, "/")
}

// URL returns the absolute URL of endpoint.
func (c *Client) URL(endpoint string) string {
	return JoinURL(c.cfg.BaseURL, endpoint)
}

// TenantID returns the tenant identifier requests will carry, if any.
func (c *Client) TenantID() (string, bool) {
	switch c.cfg.TenantStrategy {
	case TenantHeader, TenantSubdomain:
	default:
		return "", false
	}
	if c.cfg.TenantResolver != nil {
		if id := c.cfg.TenantResolver(); id != "" {
			return id, true
		}
	}
	if c.cfg.TenantID != "" {
		return c.cfg.TenantID, true
	}
	return "", false
}

func (c *Client) Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error) {
	resp, err := c.auth(ctx, "login", c.cfg.Endpoints.Login, req)
	if err != nil {
		return nil, fmt.Errorf("transport.Login: %w", err)
	}
	return resp, nil
}

func (c *Client) Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error) {
	resp, err := c.auth(ctx, "register", c.cfg.Endpoints.Register, req)
	if err != nil {
		return nil, fmt.Errorf("transport.Register: %w", err)
	}
	return resp, nil
}

func (c *Client) Refresh(ctx context.Context, req dto.RefreshTokenRequest) (*dto.AuthResponse, error) {
	resp, err := c.auth(ctx, "refresh", c.cfg.Endpoints.Refresh, req)
	if err != nil {
		return nil, fmt.Errorf("transport.Refresh: %w", err)
	}
	return resp, nil
}

// Me returns the raw current-user object.
func (c *Client) Me(ctx context.Context) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "me", http.MethodGet, c.cfg.Endpoints.Me, nil, &raw); err != nil {
		return nil, fmt.Errorf("transport.Me: %w", err)
	}
	return raw, nil
}

func (c *Client) Logout(ctx context.Context, req dto.RefreshTokenRequest) error {
	if err := c.do(ctx, "logout", http.MethodPost, c.cfg.Endpoints.Logout, req, nil); err != nil {
		return fmt.Errorf("transport.Logout: %w", err)
	}
	return nil
}

func (c *Client) ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	if err := c.do(ctx, "forgot_password", http.MethodPost, c.cfg.Endpoints.ForgotPassword, req, &out); err != nil {
		return nil, fmt.Errorf("transport.ForgotPassword: %w", err)
	}
	return &out, nil
}

func (c *Client) ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	if err := c.do(ctx, "reset_password", http.MethodPost, c.cfg.Endpoints.ResetPassword, req, &out); err != nil {
		return nil, fmt.Errorf("transport.ResetPassword: %w", err)
	}
	return &out, nil
}

func (c *Client) ResendVerification(ctx context.Context, req dto.ResendVerificationRequest) (*dto.MessageResponse, error) {
	var out dto.MessageResponse
	if err := c.do(ctx, "resend_verification", http.MethodPost, c.cfg.Endpoints.ResendVerification, req, &out); err != nil {
		return nil, fmt.Errorf("transport.ResendVerification: %w", err)
	}
	return &out, nil
}

func (c *Client) VerifyEmail(ctx context.Context, req dto.VerifyEmailRequest) (*dto.VerifyEmailResponse, error) {
	var out dto.VerifyEmailResponse
	if err := c.do(ctx, "verify_email", http.MethodPost, c.cfg.Endpoints.VerifyEmail, req, &out); err != nil {
		return nil, fmt.Errorf("transport.VerifyEmail: %w", err)
	}
	return &out, nil
}

func (c *Client) auth(ctx context.Context, op, endpoint string, body any) (*dto.AuthResponse, error) {
	var raw json.RawMessage
	if err := c.do(ctx, op, http.MethodPost, endpoint, body, &raw); err != nil {
		return nil, err
	}
	var out dto.AuthResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	out.Raw = raw
	return &out, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body, out any) (err error) {
	if c.cfg.Observe != nil {
		start := time.Now()
		defer func() { c.cfg.Observe(op, time.Since(start), err) }()
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(endpoint), reqBody)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if id, ok := c.TenantID(); ok {
		req.Header.Set(c.cfg.TenantHeader, id)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // best-effort close

	data, readErr := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, data, readErr)
	}
	if readErr != nil {
		return &Error{StatusCode: resp.StatusCode, Message: "failed to read body", Err: readErr}
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if raw, ok := out.(*json.RawMessage); ok {
		*raw = append((*raw)[:0], data...)
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(status int, body []byte, readErr error) *Error {
	e := &Error{StatusCode: status}
	if readErr != nil {
		e.Message = fmt.Sprintf("failed to read body: %v", readErr)
		return e
	}

	var apiErr dto.ErrorResponse
	if json.Unmarshal(body, &apiErr) == nil {
		e.Message = apiErr.Message
		e.Errors = apiErr.Errors
	}
	if e.Message == "" {
		e.Message = http.StatusText(status)
	}
	return e
}
