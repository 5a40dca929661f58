package authtest

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/MrEthical07/authclient/dto"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"
)

// Operation names, also used as route names.
const (
	OpLogin              = "login"
	OpRegister           = "register"
	OpRefresh            = "refresh"
	OpMe                 = "me"
	OpLogout             = "logout"
	OpForgotPassword     = "forgot_password"
	OpResetPassword      = "reset_password"
	OpResendVerification = "resend_verification"
	OpVerifyEmail        = "verify_email"
)

// Options configures a Server. Zero values take defaults.
type Options struct {
	// Secret signs access tokens.
	Secret []byte
	// AccessTTL defaults to 15 minutes.
	AccessTTL time.Duration
	// Now defaults to time.Now.
	Now func() time.Time
	// TenantHeader is recorded per request. Defaults to X-Tenant-ID.
	TenantHeader string
	// OmitRefreshToken makes refresh responses carry no refresh token.
	OmitRefreshToken bool
	// Notify receives each reset or verification token as it is issued.
	// kind is the operation that issued it.
	Notify func(kind, email, token string)

	Logger *slog.Logger
}

// Failure makes an operation answer with Status and Message. Remaining
// counts down; zero means every call fails.
type Failure struct {
	Status    int
	Message   string
	Remaining int
}

type account struct {
	user dto.User
	hash []byte
}

// Server is a fake auth API. It is safe for concurrent use.
type Server struct {
	opts   Options
	router *mux.Router

	mu            sync.Mutex
	accounts      map[string]*account // by lower-cased email
	refresh       map[string]string   // refresh token -> email
	resetTokens   map[string]string
	verifyTokens  map[string]string
	calls         map[string]int
	failures      map[string]*Failure
	lastTenant    string
	lastAuthz     string
	lastRequestID string
}

// New returns a Server with its routes mounted at the root.
func New(opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("authtest-secret")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 15 * time.Minute
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TenantHeader == "" {
		opts.TenantHeader = "X-Tenant-ID"
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Server{
		opts:         opts,
		accounts:     make(map[string]*account),
		refresh:      make(map[string]string),
		resetTokens:  make(map[string]string),
		verifyTokens: make(map[string]string),
		calls:        make(map[string]int),
		failures:     make(map[string]*Failure),
	}
	s.router = s.buildRouter()
	return s
}

func (s *Server) buildRouter() *mux.Router {
	r := mux.NewRouter()
	r.Use(s.observe)

	post := r.Methods(http.MethodPost).Subrouter()
	post.HandleFunc("/login", s.handleLogin).Name(OpLogin)
	post.HandleFunc("/register", s.handleRegister).Name(OpRegister)
	post.HandleFunc("/refresh", s.handleRefresh).Name(OpRefresh)
	post.HandleFunc("/logout", s.handleLogout).Name(OpLogout)
	post.HandleFunc("/forgot-password", s.handleForgotPassword).Name(OpForgotPassword)
	post.HandleFunc("/reset-password", s.handleResetPassword).Name(OpResetPassword)
	post.HandleFunc("/resend-verification", s.handleResendVerification).Name(OpResendVerification)
	post.HandleFunc("/verify-email", s.handleVerifyEmail).Name(OpVerifyEmail)

	r.HandleFunc("/me", s.handleMe).Methods(http.MethodGet).Name(OpMe)
	return r
}

// Handler returns the API as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves the API on a loopback httptest server. Close it when done.
func (s *Server) Start() *httptest.Server {
	return httptest.NewServer(s.router)
}

// observe counts calls, records headers and applies injected failures.
func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := ""
		if route := mux.CurrentRoute(r); route != nil {
			op = route.GetName()
		}

		s.mu.Lock()
		s.calls[op]++
		s.lastTenant = r.Header.Get(s.opts.TenantHeader)
		s.lastAuthz = r.Header.Get("Authorization")
		s.lastRequestID = r.Header.Get("X-Request-ID")
		var fail *Failure
		if f, ok := s.failures[op]; ok {
			fail = &Failure{Status: f.Status, Message: f.Message}
			if f.Remaining > 0 {
				f.Remaining--
				if f.Remaining == 0 {
					delete(s.failures, op)
				}
			}
		}
		s.mu.Unlock()

		s.opts.Logger.Debug("authtest request", "op", op, "method", r.Method, "path", r.URL.Path)
		if fail != nil {
			writeError(w, fail.Status, fail.Message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

/*
====================================
CONTROL
====================================
*/

// AddUser registers an account directly and returns its user.
func (s *Server) AddUser(email, password, name string, roles ...string) (dto.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return dto.User{}, err
	}
	u := dto.User{ID: uuid.NewString(), Email: email, Name: name, Roles: roles}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[strings.ToLower(email)] = &account{user: u, hash: hash}
	return u, nil
}

// Fail injects a failure for op.
func (s *Server) Fail(op string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = &f
}

func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*Failure)
}

// Calls returns how many requests reached op, failed ones included.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// TotalCalls sums Calls over every operation.
func (s *Server) TotalCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.calls {
		n += c
	}
	return n
}

// LastTenant returns the tenant header of the most recent request.
func (s *Server) LastTenant() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastTenant
}

// LastAuthorization returns the Authorization header of the most recent
// request.
func (s *Server) LastAuthorization() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAuthz
}

func (s *Server) LastRequestID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRequestID
}

// ResetToken returns the pending reset token for email.
func (s *Server) ResetToken(email string) (string, bool) {
	return s.tokenFor(s.resetTokens, email)
}

// VerificationToken returns the pending verification token for email.
func (s *Server) VerificationToken(email string) (string, bool) {
	return s.tokenFor(s.verifyTokens, email)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

func (s *Server) notify(kind, email, token string) {
	if s.opts.Notify != nil {
		s.opts.Notify(kind, email, token)
	}
}

func (s *Server) tokenFor(tokens map[string]string, email string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := strings.ToLower(email)
	for tok, e := range tokens {
		if e == key {
			return tok, true
		}
	}
	return "", false
}
