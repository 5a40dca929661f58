// Package dto holds the JSON wire shapes exchanged with the remote auth API
// and persisted by the storage layer.
package dto

import (
	"encoding/json"
	"fmt"
)

/*
====================================
REQUESTS
====================================
*/

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest carries the credentials plus any backend-defined fields in
// Extra, which are flattened into the JSON object.
type RegisterRequest struct {
	Email    string
	Password string
	Name     string
	Extra    map[string]any
}

func (r RegisterRequest) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(r.Extra)+3)
	for k, v := range r.Extra {
		out[k] = v
	}
	out["email"] = r.Email
	out["password"] = r.Password
	if r.Name != "" {
		out["name"] = r.Name
	}
	return json.Marshal(out)
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type ResendVerificationRequest struct {
	Email string `json:"email"`
}

type VerifyEmailRequest struct {
	Token string `json:"token"`
}

/*
====================================
RESPONSES
====================================
*/

// Tokens is the credential triple extracted from an auth response.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// AuthResponse is returned by login, register and refresh. Raw keeps the full
// body so token and user mappers can read non-standard layouts.
type AuthResponse struct {
	Tokens
	User json.RawMessage `json:"user,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

type MessageResponse struct {
	Message string `json:"message"`
	Success bool   `json:"success"`
}

type VerifyEmailResponse struct {
	MessageResponse
	User json.RawMessage `json:"user,omitempty"`
}

// ErrorResponse is the body shape of non-2xx replies.
type ErrorResponse struct {
	Message    string              `json:"message"`
	StatusCode int                 `json:"statusCode"`
	Errors     map[string][]string `json:"errors,omitempty"`
}

/*
====================================
USER
====================================
*/

// User is the authenticated principal. ID accepts JSON strings and numbers;
// unknown fields are kept in Extra and written back on marshal.
type User struct {
	ID            string
	Email         string
	Name          string
	Roles         []string
	EmailVerified bool
	Extra         map[string]any
}

var userKnownFields = map[string]struct{}{
	"id": {}, "email": {}, "name": {}, "roles": {}, "emailVerified": {},
}

func (u User) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(u.Extra)+5)
	for k, v := range u.Extra {
		if _, known := userKnownFields[k]; known {
			continue
		}
		out[k] = v
	}
	out["id"] = u.ID
	out["email"] = u.Email
	if u.Name != "" {
		out["name"] = u.Name
	}
	if u.Roles != nil {
		out["roles"] = u.Roles
	}
	if u.EmailVerified {
		out["emailVerified"] = true
	}
	return json.Marshal(out)
}

func (u *User) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	if fields == nil {
		return fmt.Errorf("dto: user must be a JSON object")
	}

	var next User
	for key, raw := range fields {
		var err error
		switch key {
		case "id":
			next.ID, err = decodeID(raw)
		case "email":
			err = unmarshalOptional(raw, &next.Email)
		case "name":
			err = unmarshalOptional(raw, &next.Name)
		case "roles":
			err = unmarshalOptional(raw, &next.Roles)
		case "emailVerified":
			err = unmarshalOptional(raw, &next.EmailVerified)
		default:
			var v any
			if err = json.Unmarshal(raw, &v); err == nil {
				if next.Extra == nil {
					next.Extra = make(map[string]any)
				}
				next.Extra[key] = v
			}
		}
		if err != nil {
			return fmt.Errorf("dto: user field %q: %w", key, err)
		}
	}

	*u = next
	return nil
}

// DecodeUser parses a raw user object. A null or empty payload yields nil.
func DecodeUser(raw json.RawMessage) (*User, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var u User
	if err := json.Unmarshal(raw, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", err
	}
	return n.String(), nil
}

func unmarshalOptional(raw json.RawMessage, dst any) error {
	if string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, dst)
}
