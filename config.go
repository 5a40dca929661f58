package authclient

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/MrEthical07/authclient/dto"
	"github.com/MrEthical07/authclient/storage"
	"github.com/MrEthical07/authclient/transport"
)

// Config defines a public type used by authclient APIs.
//
// Config is resolved once by [Builder.Build] and then treated as immutable.
// Start from [DefaultConfig] when building one in code: boolean options
// default to true in several places and a zero Config disables them.
type Config struct {
	APIURL           string
	Endpoints        transport.Endpoints
	Storage          storage.Kind
	StorageKeys      storage.Keys
	StorageBackends  StorageBackendsConfig
	TokenStrategy    TokenStrategy
	AutoRefresh      bool
	RefreshThreshold time.Duration
	Tenant           TenantConfig
	UserMapper       UserMapper
	TokenMapper      TokenMapper
	Features         FeaturesConfig
	Redirects        RedirectsConfig
	HTTP             HTTPConfig
	Events           EventsConfig
	Metrics          MetricsConfig
}

// TokenStrategy describes how access tokens can be inspected.
type TokenStrategy string

const (
	// TokenJWT tokens carry a readable exp claim.
	TokenJWT TokenStrategy = "jwt"
	// TokenOpaque tokens are renewed from the expiresIn of the auth response.
	TokenOpaque TokenStrategy = "opaque"
)

// UserMapper converts the raw user object of an API response into a User.
type UserMapper func(raw []byte) (*User, error)

// TokenMapper extracts the credential triple from an auth response.
type TokenMapper func(resp *AuthResponse) (Tokens, error)

/*
====================================
STORAGE CONFIG
====================================
*/

// StorageBackendsConfig configures the concrete backends behind Config.Storage.
type StorageBackendsConfig struct {
	// SQLitePath is the durable database file. Defaults to the user config
	// directory.
	SQLitePath string
	// RedisPrefix namespaces session-scoped keys.
	RedisPrefix string
	// SessionTTL expires session-scoped entries. Zero keeps them until
	// cleared.
	SessionTTL time.Duration
	// Timeout bounds each backend call.
	Timeout time.Duration
}

/*
====================================
TENANT CONFIG
====================================
*/

// TenantConfig defines a public type used by authclient APIs.
type TenantConfig struct {
	Strategy transport.TenantStrategy
	ID       string
	Header   string
	// Resolver is consulted before ID on every request.
	Resolver func() string
}

/*
====================================
FEATURES CONFIG
====================================
*/

// FeaturesConfig gates optional operations. Disabled operations fail with
// a *FeatureDisabledError before any network call.
type FeaturesConfig struct {
	Registration      bool
	EmailVerification bool
	PasswordReset     bool
	Roles             bool
}

/*
====================================
REDIRECTS CONFIG
====================================
*/

// RedirectsConfig names the navigation targets used by the manager and guards.
type RedirectsConfig struct {
	Login        string
	AfterLogin   string
	AfterLogout  string
	Unauthorized string
}

/*
====================================
HTTP CONFIG
====================================
*/

type HTTPConfig struct {
	Timeout time.Duration
}

/*
====================================
EVENTS CONFIG
====================================
*/

// EventsConfig controls asynchronous delivery of session events to an
// [EventSink].
type EventsConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the documented defaults with no API URL.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Endpoints:   transport.DefaultEndpoints(),
		Storage:     storage.KindLocal,
		StorageKeys: storage.DefaultKeys(),
		StorageBackends: StorageBackendsConfig{
			RedisPrefix: "authclient:session",
			SessionTTL:  24 * time.Hour,
			Timeout:     2 * time.Second,
		},
		TokenStrategy:    TokenJWT,
		AutoRefresh:      true,
		RefreshThreshold: 60 * time.Second,
		Tenant: TenantConfig{
			Strategy: transport.TenantNone,
			Header:   "X-Tenant-ID",
		},
		UserMapper:  defaultUserMapper,
		TokenMapper: defaultTokenMapper,
		Features: FeaturesConfig{
			Registration:      true,
			EmailVerification: false,
			PasswordReset:     false,
			Roles:             true,
		},
		Redirects: RedirectsConfig{
			Login:        "/login",
			AfterLogin:   "/",
			AfterLogout:  "/login",
			Unauthorized: "/login",
		},
		HTTP: HTTPConfig{
			Timeout: 30 * time.Second,
		},
		Events: EventsConfig{
			Enabled:    false,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

func defaultUserMapper(raw []byte) (*User, error) {
	return dto.DecodeUser(raw)
}

func defaultTokenMapper(resp *AuthResponse) (Tokens, error) {
	if resp == nil {
		return Tokens{}, nil
	}
	return resp.Tokens, nil
}

// resolveConfig fills blank strings, zero durations and nil mappers with
// their defaults.
func resolveConfig(cfg Config) Config {
	def := defaultConfig()

	cfg.APIURL = strings.TrimSpace(cfg.APIURL)
	cfg.Endpoints = cfg.Endpoints.WithDefaults()

	if cfg.Storage == "" {
		cfg.Storage = def.Storage
	}
	keys := def.StorageKeys
	if cfg.StorageKeys.AccessToken == "" {
		cfg.StorageKeys.AccessToken = keys.AccessToken
	}
	if cfg.StorageKeys.RefreshToken == "" {
		cfg.StorageKeys.RefreshToken = keys.RefreshToken
	}
	if cfg.StorageKeys.User == "" {
		cfg.StorageKeys.User = keys.User
	}
	if cfg.StorageBackends.RedisPrefix == "" {
		cfg.StorageBackends.RedisPrefix = def.StorageBackends.RedisPrefix
	}
	if cfg.StorageBackends.Timeout == 0 {
		cfg.StorageBackends.Timeout = def.StorageBackends.Timeout
	}

	if cfg.TokenStrategy == "" {
		cfg.TokenStrategy = def.TokenStrategy
	}
	if cfg.RefreshThreshold == 0 {
		cfg.RefreshThreshold = def.RefreshThreshold
	}

	if cfg.Tenant.Strategy == "" {
		cfg.Tenant.Strategy = def.Tenant.Strategy
	}
	if cfg.Tenant.Header == "" {
		cfg.Tenant.Header = def.Tenant.Header
	}

	if cfg.UserMapper == nil {
		cfg.UserMapper = def.UserMapper
	}
	if cfg.TokenMapper == nil {
		cfg.TokenMapper = def.TokenMapper
	}

	if cfg.Redirects.Login == "" {
		cfg.Redirects.Login = def.Redirects.Login
	}
	if cfg.Redirects.AfterLogin == "" {
		cfg.Redirects.AfterLogin = def.Redirects.AfterLogin
	}
	if cfg.Redirects.AfterLogout == "" {
		cfg.Redirects.AfterLogout = def.Redirects.AfterLogout
	}
	if cfg.Redirects.Unauthorized == "" {
		cfg.Redirects.Unauthorized = def.Redirects.Unauthorized
	}

	if cfg.HTTP.Timeout == 0 {
		cfg.HTTP.Timeout = def.HTTP.Timeout
	}
	if cfg.Events.BufferSize == 0 {
		cfg.Events.BufferSize = def.Events.BufferSize
	}

	return cfg
}

func cloneConfig(cfg Config) Config {
	return cfg
}

// Validate checks cfg and returns a *ConfigurationError describing the first
// problem found.
func (c *Config) Validate() error {
	if c == nil {
		return &ConfigurationError{Field: "Config", Reason: "is nil"}
	}

	if strings.TrimSpace(c.APIURL) == "" {
		return &ConfigurationError{Field: "APIURL", Reason: "is required"}
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigurationError{Field: "APIURL", Reason: fmt.Sprintf("must be an absolute http(s) URL, got %q", c.APIURL)}
	}

	switch c.Storage {
	case storage.KindLocal, storage.KindSession, storage.KindMemory:
	default:
		return &ConfigurationError{Field: "Storage", Reason: fmt.Sprintf("unknown storage kind %q", c.Storage)}
	}
	if c.StorageKeys.AccessToken == "" || c.StorageKeys.RefreshToken == "" || c.StorageKeys.User == "" {
		return &ConfigurationError{Field: "StorageKeys", Reason: "key names must not be empty"}
	}
	if c.StorageKeys.AccessToken == c.StorageKeys.RefreshToken ||
		c.StorageKeys.AccessToken == c.StorageKeys.User ||
		c.StorageKeys.RefreshToken == c.StorageKeys.User {
		return &ConfigurationError{Field: "StorageKeys", Reason: "key names must be distinct"}
	}
	if c.StorageBackends.SessionTTL < 0 {
		return &ConfigurationError{Field: "StorageBackends.SessionTTL", Reason: "must be >= 0"}
	}
	if c.StorageBackends.Timeout < 0 {
		return &ConfigurationError{Field: "StorageBackends.Timeout", Reason: "must be >= 0"}
	}

	switch c.TokenStrategy {
	case TokenJWT, TokenOpaque:
	default:
		return &ConfigurationError{Field: "TokenStrategy", Reason: fmt.Sprintf("unknown token strategy %q", c.TokenStrategy)}
	}
	if c.RefreshThreshold < 0 {
		return &ConfigurationError{Field: "RefreshThreshold", Reason: "must be >= 0"}
	}

	switch c.Tenant.Strategy {
	case transport.TenantNone, transport.TenantHeader, transport.TenantSubdomain:
	default:
		return &ConfigurationError{Field: "Tenant.Strategy", Reason: fmt.Sprintf("unknown tenant strategy %q", c.Tenant.Strategy)}
	}
	if c.Tenant.Strategy != transport.TenantNone && strings.TrimSpace(c.Tenant.Header) == "" {
		return &ConfigurationError{Field: "Tenant.Header", Reason: "is required when multi-tenancy is enabled"}
	}

	for field, path := range map[string]string{
		"Redirects.Login":        c.Redirects.Login,
		"Redirects.AfterLogin":   c.Redirects.AfterLogin,
		"Redirects.AfterLogout":  c.Redirects.AfterLogout,
		"Redirects.Unauthorized": c.Redirects.Unauthorized,
	} {
		if !strings.HasPrefix(path, "/") {
			return &ConfigurationError{Field: field, Reason: fmt.Sprintf("must be an absolute path, got %q", path)}
		}
	}

	if c.HTTP.Timeout < 0 {
		return &ConfigurationError{Field: "HTTP.Timeout", Reason: "must be >= 0"}
	}
	if c.Events.BufferSize < 0 {
		return &ConfigurationError{Field: "Events.BufferSize", Reason: "must be >= 0"}
	}

	return nil
}
