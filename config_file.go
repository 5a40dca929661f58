package authclient

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/MrEthical07/authclient/storage"
	"github.com/MrEthical07/authclient/transport"
	"gopkg.in/yaml.v3"
)

// fileConfig is the on-disk shape of Config. Pointer booleans distinguish
// "unset" from false so omitted keys keep their defaults.
type fileConfig struct {
	APIURL           string              `yaml:"api_url" toml:"api_url"`
	Endpoints        fileEndpoints       `yaml:"endpoints" toml:"endpoints"`
	Storage          string              `yaml:"storage" toml:"storage"`
	StorageKeys      fileStorageKeys     `yaml:"storage_keys" toml:"storage_keys"`
	StorageBackends  fileStorageBackends `yaml:"storage_backends" toml:"storage_backends"`
	TokenStrategy    string              `yaml:"token_strategy" toml:"token_strategy"`
	AutoRefresh      *bool               `yaml:"auto_refresh" toml:"auto_refresh"`
	RefreshThreshold string              `yaml:"refresh_threshold" toml:"refresh_threshold"`
	Tenant           fileTenant          `yaml:"tenant" toml:"tenant"`
	Features         fileFeatures        `yaml:"features" toml:"features"`
	Redirects        fileRedirects       `yaml:"redirects" toml:"redirects"`
	HTTP             fileHTTP            `yaml:"http" toml:"http"`
	Events           fileEvents          `yaml:"events" toml:"events"`
	Metrics          fileMetrics         `yaml:"metrics" toml:"metrics"`
}

type fileEndpoints struct {
	Login              string `yaml:"login" toml:"login"`
	Register           string `yaml:"register" toml:"register"`
	Refresh            string `yaml:"refresh" toml:"refresh"`
	Me                 string `yaml:"me" toml:"me"`
	Logout             string `yaml:"logout" toml:"logout"`
	ForgotPassword     string `yaml:"forgot_password" toml:"forgot_password"`
	ResetPassword      string `yaml:"reset_password" toml:"reset_password"`
	ResendVerification string `yaml:"resend_verification" toml:"resend_verification"`
	VerifyEmail        string `yaml:"verify_email" toml:"verify_email"`
}

type fileStorageKeys struct {
	AccessToken  string `yaml:"access_token" toml:"access_token"`
	RefreshToken string `yaml:"refresh_token" toml:"refresh_token"`
	User         string `yaml:"user" toml:"user"`
}

type fileStorageBackends struct {
	SQLitePath  string `yaml:"sqlite_path" toml:"sqlite_path"`
	RedisPrefix string `yaml:"redis_prefix" toml:"redis_prefix"`
	SessionTTL  string `yaml:"session_ttl" toml:"session_ttl"`
	Timeout     string `yaml:"timeout" toml:"timeout"`
}

type fileTenant struct {
	Strategy string `yaml:"strategy" toml:"strategy"`
	ID       string `yaml:"id" toml:"id"`
	Header   string `yaml:"header" toml:"header"`
}

type fileFeatures struct {
	Registration      *bool `yaml:"registration" toml:"registration"`
	EmailVerification *bool `yaml:"email_verification" toml:"email_verification"`
	PasswordReset     *bool `yaml:"password_reset" toml:"password_reset"`
	Roles             *bool `yaml:"roles" toml:"roles"`
}

type fileRedirects struct {
	Login        string `yaml:"login" toml:"login"`
	AfterLogin   string `yaml:"after_login" toml:"after_login"`
	AfterLogout  string `yaml:"after_logout" toml:"after_logout"`
	Unauthorized string `yaml:"unauthorized" toml:"unauthorized"`
}

type fileHTTP struct {
	Timeout string `yaml:"timeout" toml:"timeout"`
}

type fileEvents struct {
	Enabled    *bool `yaml:"enabled" toml:"enabled"`
	BufferSize int   `yaml:"buffer_size" toml:"buffer_size"`
	DropIfFull *bool `yaml:"drop_if_full" toml:"drop_if_full"`
}

type fileMetrics struct {
	Enabled                 *bool `yaml:"enabled" toml:"enabled"`
	EnableLatencyHistograms *bool `yaml:"latency_histograms" toml:"latency_histograms"`
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file, expands
// ${VAR} references from the environment, applies it over DefaultConfig and
// validates the result. Mappers and the tenant resolver are code-only and
// stay at their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}
	return ParseConfig(data, strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
}

// ParseConfig decodes data in the given format ("yaml", "yml" or "toml").
func ParseConfig(data []byte, format string) (Config, error) {
	expanded := expandEnvVars(string(data))

	var fc fileConfig
	switch format {
	case "yaml", "yml":
		if err := yaml.Unmarshal([]byte(expanded), &fc); err != nil {
			return Config{}, fmt.Errorf("parsing config YAML: %w", err)
		}
	case "toml":
		if _, err := toml.Decode(expanded, &fc); err != nil {
			return Config{}, fmt.Errorf("parsing config TOML: %w", err)
		}
	default:
		return Config{}, &ConfigurationError{Field: "format", Reason: fmt.Sprintf("unsupported config format %q", format)}
	}

	cfg, err := fc.apply(defaultConfig())
	if err != nil {
		return Config{}, err
	}
	cfg = resolveConfig(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (fc fileConfig) apply(cfg Config) (Config, error) {
	cfg.APIURL = fc.APIURL
	cfg.Endpoints = transport.Endpoints{
		Login:              fc.Endpoints.Login,
		Register:           fc.Endpoints.Register,
		Refresh:            fc.Endpoints.Refresh,
		Me:                 fc.Endpoints.Me,
		Logout:             fc.Endpoints.Logout,
		ForgotPassword:     fc.Endpoints.ForgotPassword,
		ResetPassword:      fc.Endpoints.ResetPassword,
		ResendVerification: fc.Endpoints.ResendVerification,
		VerifyEmail:        fc.Endpoints.VerifyEmail,
	}.WithDefaults()

	if fc.Storage != "" {
		kind, err := storage.ParseKind(fc.Storage)
		if err != nil {
			return Config{}, &ConfigurationError{Field: "storage", Reason: err.Error()}
		}
		cfg.Storage = kind
	}
	setString(&cfg.StorageKeys.AccessToken, fc.StorageKeys.AccessToken)
	setString(&cfg.StorageKeys.RefreshToken, fc.StorageKeys.RefreshToken)
	setString(&cfg.StorageKeys.User, fc.StorageKeys.User)
	setString(&cfg.StorageBackends.SQLitePath, fc.StorageBackends.SQLitePath)
	setString(&cfg.StorageBackends.RedisPrefix, fc.StorageBackends.RedisPrefix)

	if fc.TokenStrategy != "" {
		cfg.TokenStrategy = TokenStrategy(strings.ToLower(fc.TokenStrategy))
	}
	setBool(&cfg.AutoRefresh, fc.AutoRefresh)

	if fc.Tenant.Strategy != "" {
		cfg.Tenant.Strategy = transport.TenantStrategy(strings.ToLower(fc.Tenant.Strategy))
	}
	setString(&cfg.Tenant.ID, fc.Tenant.ID)
	setString(&cfg.Tenant.Header, fc.Tenant.Header)

	setBool(&cfg.Features.Registration, fc.Features.Registration)
	setBool(&cfg.Features.EmailVerification, fc.Features.EmailVerification)
	setBool(&cfg.Features.PasswordReset, fc.Features.PasswordReset)
	setBool(&cfg.Features.Roles, fc.Features.Roles)

	setString(&cfg.Redirects.Login, fc.Redirects.Login)
	setString(&cfg.Redirects.AfterLogin, fc.Redirects.AfterLogin)
	setString(&cfg.Redirects.AfterLogout, fc.Redirects.AfterLogout)
	setString(&cfg.Redirects.Unauthorized, fc.Redirects.Unauthorized)

	setBool(&cfg.Events.Enabled, fc.Events.Enabled)
	if fc.Events.BufferSize != 0 {
		cfg.Events.BufferSize = fc.Events.BufferSize
	}
	setBool(&cfg.Events.DropIfFull, fc.Events.DropIfFull)
	setBool(&cfg.Metrics.Enabled, fc.Metrics.Enabled)
	setBool(&cfg.Metrics.EnableLatencyHistograms, fc.Metrics.EnableLatencyHistograms)

	durations := []struct {
		field string
		raw   string
		dst   *time.Duration
	}{
		{"refresh_threshold", fc.RefreshThreshold, &cfg.RefreshThreshold},
		{"storage_backends.session_ttl", fc.StorageBackends.SessionTTL, &cfg.StorageBackends.SessionTTL},
		{"storage_backends.timeout", fc.StorageBackends.Timeout, &cfg.StorageBackends.Timeout},
		{"http.timeout", fc.HTTP.Timeout, &cfg.HTTP.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return Config{}, &ConfigurationError{Field: d.field, Reason: fmt.Sprintf("invalid duration %q: %v", d.raw, err)}
		}
		*d.dst = v
	}

	return cfg, nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setBool(dst *bool, v *bool) {
	if v != nil {
		*dst = *v
	}
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR} with the value of the environment variable.
// Unset variables expand to "".
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := match[2 : len(match)-1]
		return os.Getenv(name)
	})
}
