package authclient

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/clock"
	"github.com/MrEthical07/authclient/dto"
	"github.com/MrEthical07/authclient/storage"
	gojwt "github.com/golang-jwt/jwt/v5"
)

var testEpoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

// fakeTransport records calls per operation. Unset hooks answer with a
// minimal success response.
type fakeTransport struct {
	mu    sync.Mutex
	calls map[string]int

	login    func(dto.LoginRequest) (*AuthResponse, error)
	register func(dto.RegisterRequest) (*AuthResponse, error)
	refresh  func(context.Context, dto.RefreshTokenRequest) (*AuthResponse, error)
	me       func() (json.RawMessage, error)
	logout   func(dto.RefreshTokenRequest) error
	verify   func(dto.VerifyEmailRequest) (*VerifyEmailResponse, error)
}

func (f *fakeTransport) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]int)
	}
	f.calls[op]++
}

func (f *fakeTransport) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *fakeTransport) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeTransport) Login(_ context.Context, req dto.LoginRequest) (*AuthResponse, error) {
	f.record("login")
	if f.login != nil {
		return f.login(req)
	}
	return authResponse("access", "refresh", testUser("u1")), nil
}

func (f *fakeTransport) Register(_ context.Context, req dto.RegisterRequest) (*AuthResponse, error) {
	f.record("register")
	if f.register != nil {
		return f.register(req)
	}
	return authResponse("access", "refresh", testUser("u1")), nil
}

func (f *fakeTransport) Refresh(ctx context.Context, req dto.RefreshTokenRequest) (*AuthResponse, error) {
	f.record("refresh")
	if f.refresh != nil {
		return f.refresh(ctx, req)
	}
	return authResponse("access-2", "refresh-2", nil), nil
}

func (f *fakeTransport) Me(context.Context) (json.RawMessage, error) {
	f.record("me")
	if f.me != nil {
		return f.me()
	}
	return mustJSON(testUser("u1")), nil
}

func (f *fakeTransport) Logout(_ context.Context, req dto.RefreshTokenRequest) error {
	f.record("logout")
	if f.logout != nil {
		return f.logout(req)
	}
	return nil
}

func (f *fakeTransport) ForgotPassword(context.Context, dto.ForgotPasswordRequest) (*MessageResponse, error) {
	f.record("forgot_password")
	return &MessageResponse{Message: "sent", Success: true}, nil
}

func (f *fakeTransport) ResetPassword(context.Context, dto.ResetPasswordRequest) (*MessageResponse, error) {
	f.record("reset_password")
	return &MessageResponse{Message: "reset", Success: true}, nil
}

func (f *fakeTransport) ResendVerification(context.Context, dto.ResendVerificationRequest) (*MessageResponse, error) {
	f.record("resend_verification")
	return &MessageResponse{Message: "resent", Success: true}, nil
}

func (f *fakeTransport) VerifyEmail(_ context.Context, req dto.VerifyEmailRequest) (*VerifyEmailResponse, error) {
	f.record("verify_email")
	if f.verify != nil {
		return f.verify(req)
	}
	return &VerifyEmailResponse{MessageResponse: MessageResponse{Message: "verified", Success: true}}, nil
}

func testUser(id string, roles ...string) *User {
	return &User{ID: id, Email: id + "@example.com", Name: "User " + id, Roles: roles}
}

func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}

func authResponse(access, refresh string, user *User) *AuthResponse {
	resp := &AuthResponse{Tokens: Tokens{AccessToken: access, RefreshToken: refresh}}
	if user != nil {
		resp.User = mustJSON(user)
	}
	return resp
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{
		"sub": "u1",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return tok
}

type testEnv struct {
	m     *Manager
	api   *fakeTransport
	clock *clock.Fake
	nav   *History
	store storage.Store
}

// newTestEnv builds a Manager over in-memory storage, a fake clock and api.
// seed runs against the store before hydration.
func newTestEnv(t *testing.T, mutate func(*Config), api *fakeTransport, seed func(*storage.Tokens, storage.Store)) *testEnv {
	t.Helper()

	cfg := DefaultConfig()
	cfg.APIURL = "https://api.example.com/auth"
	cfg.Storage = storage.KindMemory
	if mutate != nil {
		mutate(&cfg)
	}
	if api == nil {
		api = &fakeTransport{}
	}

	store := storage.NewAdapter(storage.KindMemory, nil, storage.Options{})
	if seed != nil {
		seed(storage.NewTokens(store, cfg.StorageKeys, nil), store)
	}

	clk := clock.NewFake(testEpoch)
	nav := NewHistory("")
	m, err := New().
		WithConfig(cfg).
		WithTransport(api).
		WithStore(store).
		WithClock(clk).
		WithNavigator(nav).
		Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(func() { _ = m.Close() })

	return &testEnv{m: m, api: api, clock: clk, nav: nav, store: store}
}

func (e *testEnv) tokens() *storage.Tokens {
	return storage.NewTokens(e.store, e.m.cfg.StorageKeys, nil)
}
