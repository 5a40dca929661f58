package authclient

import (
	"context"
	"encoding/json"
	"slices"

	"github.com/MrEthical07/authclient/dto"
)

type (
	User                = dto.User
	Tokens              = dto.Tokens
	AuthResponse        = dto.AuthResponse
	RegisterRequest     = dto.RegisterRequest
	MessageResponse     = dto.MessageResponse
	VerifyEmailResponse = dto.VerifyEmailResponse
)

// Transport is the remote auth API as seen by the Manager.
// *transport.Client implements it.
type Transport interface {
	Login(ctx context.Context, req dto.LoginRequest) (*dto.AuthResponse, error)
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.AuthResponse, error)
	Refresh(ctx context.Context, req dto.RefreshTokenRequest) (*dto.AuthResponse, error)
	Me(ctx context.Context) (json.RawMessage, error)
	Logout(ctx context.Context, req dto.RefreshTokenRequest) error
	ForgotPassword(ctx context.Context, req dto.ForgotPasswordRequest) (*dto.MessageResponse, error)
	ResetPassword(ctx context.Context, req dto.ResetPasswordRequest) (*dto.MessageResponse, error)
	ResendVerification(ctx context.Context, req dto.ResendVerificationRequest) (*dto.MessageResponse, error)
	VerifyEmail(ctx context.Context, req dto.VerifyEmailRequest) (*dto.VerifyEmailResponse, error)
}

// Session is an immutable snapshot of the authentication state. A nil User
// means anonymous.
type Session struct {
	User      *User
	IsLoading bool

	rolesDisabled bool
}

func (s Session) IsAuthenticated() bool {
	return s.User != nil
}

func (s Session) IsEmailVerified() bool {
	return s.User != nil && s.User.EmailVerified
}

// RolesEnabled reports whether role evaluation is switched on.
func (s Session) RolesEnabled() bool {
	return !s.rolesDisabled
}

// UserRoles returns a copy of the user's roles. It is empty when anonymous or
// when role evaluation is disabled.
func (s Session) UserRoles() []string {
	if s.User == nil || s.rolesDisabled || len(s.User.Roles) == 0 {
		return []string{}
	}
	return slices.Clone(s.User.Roles)
}

// DisplayName returns the name, else the email, else "User".
func (s Session) DisplayName() string {
	if s.User != nil {
		if s.User.Name != "" {
			return s.User.Name
		}
		if s.User.Email != "" {
			return s.User.Email
		}
	}
	return "User"
}

// HasRole reports case-sensitive membership of role.
func (s Session) HasRole(role string) bool {
	if s.User == nil || s.rolesDisabled {
		return false
	}
	return slices.Contains(s.User.Roles, role)
}

// HasAnyRole is false for an empty list.
func (s Session) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if s.HasRole(r) {
			return true
		}
	}
	return false
}

// HasAllRoles is true for an empty list.
func (s Session) HasAllRoles(roles ...string) bool {
	for _, r := range roles {
		if !s.HasRole(r) {
			return false
		}
	}
	return true
}

func cloneUser(u *User) *User {
	if u == nil {
		return nil
	}
	out := *u
	if u.Roles != nil {
		out.Roles = slices.Clone(u.Roles)
	}
	if u.Extra != nil {
		out.Extra = make(map[string]any, len(u.Extra))
		for k, v := range u.Extra {
			out.Extra[k] = v
		}
	}
	return &out
}
