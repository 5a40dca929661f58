package authtest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/dto"
	"github.com/MrEthical07/authclient/middleware"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const maxBody = 1 << 20

type accessClaims struct {
	Email string   `json:"email,omitempty"`
	Roles []string `json:"roles,omitempty"`
	gojwt.RegisteredClaims
}

type registerBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

func (b registerBody) Validate() error {
	return validation.ValidateStruct(&b,
		validation.Field(&b.Email, validation.Required, is.Email),
		validation.Field(&b.Password, validation.Required, validation.Length(6, 0)),
	)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req dto.LoginRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	acct, ok := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if !ok || bcrypt.CompareHashAndPassword(acct.hash, []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "Invalid credentials", nil)
		return
	}
	s.writeSession(w, http.StatusOK, acct.user)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerBody
	if !decode(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", fieldErrors(err))
		return
	}

	s.mu.Lock()
	_, exists := s.accounts[strings.ToLower(req.Email)]
	s.mu.Unlock()
	if exists {
		writeError(w, http.StatusConflict, "Email already registered", nil)
		return
	}

	user, err := s.AddUser(req.Email, req.Password, req.Name)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not create account", nil)
		return
	}
	tok := uuid.NewString()
	s.mu.Lock()
	s.verifyTokens[tok] = strings.ToLower(req.Email)
	s.mu.Unlock()
	s.notify(OpRegister, req.Email, tok)

	s.writeSession(w, http.StatusCreated, user)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	email, ok := s.refresh[req.RefreshToken]
	if ok {
		delete(s.refresh, req.RefreshToken)
	}
	acct := s.accounts[email]
	s.mu.Unlock()
	if !ok || acct == nil {
		writeError(w, http.StatusUnauthorized, "Invalid refresh token", nil)
		return
	}

	access, err := s.sign(acct.user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token", nil)
		return
	}
	resp := dto.AuthResponse{Tokens: dto.Tokens{
		AccessToken: access,
		ExpiresIn:   int64(s.opts.AccessTTL / time.Second),
	}}
	if !s.opts.OmitRefreshToken {
		resp.RefreshToken = s.issueRefresh(email)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	raw, ok := middleware.BearerToken(r.Header.Get("Authorization"))
	if !ok {
		writeError(w, http.StatusUnauthorized, "Missing bearer token", nil)
		return
	}

	claims := &accessClaims{}
	_, err := gojwt.ParseWithClaims(raw, claims, func(*gojwt.Token) (any, error) {
		return s.opts.Secret, nil
	},
		gojwt.WithValidMethods([]string{gojwt.SigningMethodHS256.Alg()}),
		gojwt.WithTimeFunc(s.opts.Now),
	)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Invalid access token", nil)
		return
	}

	s.mu.Lock()
	acct := s.accounts[strings.ToLower(claims.Email)]
	s.mu.Unlock()
	if acct == nil || acct.user.ID != claims.Subject {
		writeError(w, http.StatusUnauthorized, "Unknown user", nil)
		return
	}
	writeJSON(w, http.StatusOK, acct.user)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req dto.RefreshTokenRequest
	if !decode(w, r, &req) {
		return
	}
	s.mu.Lock()
	delete(s.refresh, req.RefreshToken)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Logged out", Success: true})
}

// handleForgotPassword answers the same way whether or not the account exists.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ForgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	key := strings.ToLower(req.Email)
	tok := ""
	s.mu.Lock()
	if _, ok := s.accounts[key]; ok {
		tok = uuid.NewString()
		s.resetTokens[tok] = key
	}
	s.mu.Unlock()
	if tok != "" {
		s.notify(OpForgotPassword, req.Email, tok)
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{
		Message: "If the account exists, a reset link has been sent",
		Success: true,
	})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req dto.ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if err := validation.Validate(req.NewPassword, validation.Required, validation.Length(6, 0)); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", map[string][]string{"newPassword": {err.Error()}})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.MinCost)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not reset password", nil)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	email, ok := s.resetTokens[req.Token]
	acct := s.accounts[email]
	if !ok || acct == nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired reset token", nil)
		return
	}
	delete(s.resetTokens, req.Token)
	acct.hash = hash
	for tok, e := range s.refresh {
		if e == email {
			delete(s.refresh, tok)
		}
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Password has been reset", Success: true})
}

func (s *Server) handleResendVerification(w http.ResponseWriter, r *http.Request) {
	var req dto.ResendVerificationRequest
	if !decode(w, r, &req) {
		return
	}
	key := strings.ToLower(req.Email)
	tok := ""
	s.mu.Lock()
	if acct, ok := s.accounts[key]; ok && !acct.user.EmailVerified {
		tok = uuid.NewString()
		s.verifyTokens[tok] = key
	}
	s.mu.Unlock()
	if tok != "" {
		s.notify(OpResendVerification, req.Email, tok)
	}
	writeJSON(w, http.StatusOK, dto.MessageResponse{Message: "Verification email sent", Success: true})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req dto.VerifyEmailRequest
	if !decode(w, r, &req) {
		return
	}

	s.mu.Lock()
	email, ok := s.verifyTokens[req.Token]
	acct := s.accounts[email]
	if ok && acct != nil {
		delete(s.verifyTokens, req.Token)
		acct.user.EmailVerified = true
	}
	s.mu.Unlock()
	if !ok || acct == nil {
		writeError(w, http.StatusBadRequest, "Invalid or expired verification token", nil)
		return
	}

	user, err := json.Marshal(acct.user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not encode user", nil)
		return
	}
	writeJSON(w, http.StatusOK, dto.VerifyEmailResponse{
		MessageResponse: dto.MessageResponse{Message: "Email verified", Success: true},
		User:            user,
	})
}

/*
====================================
TOKENS
====================================
*/

func (s *Server) sign(u dto.User) (string, error) {
	now := s.opts.Now()
	claims := accessClaims{
		Email: u.Email,
		Roles: u.Roles,
		RegisteredClaims: gojwt.RegisteredClaims{
			Subject:   u.ID,
			IssuedAt:  gojwt.NewNumericDate(now),
			ExpiresAt: gojwt.NewNumericDate(now.Add(s.opts.AccessTTL)),
			ID:        uuid.NewString(),
		},
	}
	return gojwt.NewWithClaims(gojwt.SigningMethodHS256, claims).SignedString(s.opts.Secret)
}

func (s *Server) issueRefresh(email string) string {
	tok := uuid.NewString()
	s.mu.Lock()
	s.refresh[tok] = strings.ToLower(email)
	s.mu.Unlock()
	return tok
}

func (s *Server) writeSession(w http.ResponseWriter, status int, u dto.User) {
	access, err := s.sign(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not issue token", nil)
		return
	}
	user, err := json.Marshal(u)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Could not encode user", nil)
		return
	}
	writeJSON(w, status, dto.AuthResponse{
		Tokens: dto.Tokens{
			AccessToken:  access,
			RefreshToken: s.issueRefresh(u.Email),
			ExpiresIn:    int64(s.opts.AccessTTL / time.Second),
		},
		User: user,
	})
}

/*
====================================
WIRE HELPERS
====================================
*/

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Malformed request body", nil)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, fields map[string][]string) {
	writeJSON(w, status, dto.ErrorResponse{Message: msg, StatusCode: status, Errors: fields})
}

func fieldErrors(err error) map[string][]string {
	var verrs validation.Errors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make(map[string][]string, len(verrs))
	for field, e := range verrs {
		if e != nil {
			out[field] = []string{e.Error()}
		}
	}
	return out
}
