// Command authctl drives an auth API session from the terminal. Sessions are
// persisted through the configured storage kind so consecutive invocations
// share one login.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/storage"
	"github.com/MrEthical07/authclient/transport"
	"github.com/fatih/color"
	"github.com/redis/go-redis/v9"
)

// errUsage marks bad invocations; run exits 2 for them.
var errUsage = errors.New("usage")

type globalOptions struct {
	configPath string
	apiURL     string
	storage    string
	dbPath     string
	redisAddr  string
	tenant     string
	verbose    bool
	noColor    bool
}

type app struct {
	opts   globalOptions
	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

type command struct {
	name    string
	summary string
	run     func(a *app, ctx context.Context, args []string) error
}

var commands = []command{
	{"login", "Sign in with -email and -password", (*app).cmdLogin},
	{"register", "Create an account and sign in", (*app).cmdRegister},
	{"logout", "End the stored session", (*app).cmdLogout},
	{"refresh", "Rotate the stored tokens", (*app).cmdRefresh},
	{"whoami", "Fetch the current user from the API", (*app).cmdWhoami},
	{"status", "Show the stored session without calling the API", (*app).cmdStatus},
	{"forgot-password", "Request a password reset email", (*app).cmdForgotPassword},
	{"reset-password", "Set a new password with a reset -token", (*app).cmdResetPassword},
	{"verify-email", "Confirm an email address with a -token", (*app).cmdVerifyEmail},
	{"resend-verification", "Send the verification email again", (*app).cmdResendVerification},
	{"fake-server", "Run an in-process auth API for local testing", (*app).cmdFakeServer},
	{"metrics", "Print or serve client metrics in Prometheus format", (*app).cmdMetrics},
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := &app{out: stdout, errOut: stderr}

	fs := flag.NewFlagSet("authctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&a.opts.configPath, "config", os.Getenv("AUTHCTL_CONFIG"), "config file (.yaml, .yml or .toml)")
	fs.StringVar(&a.opts.apiURL, "api", os.Getenv("AUTHCTL_API_URL"), "auth API base URL")
	fs.StringVar(&a.opts.storage, "storage", "", "storage kind: localStorage, sessionStorage or memory")
	fs.StringVar(&a.opts.dbPath, "db", "", "SQLite file for localStorage")
	fs.StringVar(&a.opts.redisAddr, "redis", os.Getenv("AUTHCTL_REDIS_ADDR"), "Redis address for sessionStorage")
	fs.StringVar(&a.opts.tenant, "tenant", "", "tenant id sent with every request")
	fs.BoolVar(&a.opts.verbose, "v", false, "verbose logging")
	fs.BoolVar(&a.opts.noColor, "no-color", false, "disable colored output")
	fs.Usage = func() { a.printUsage(fs) }

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if a.opts.noColor {
		color.NoColor = true
	}

	level := slog.LevelWarn
	if a.opts.verbose {
		level = slog.LevelDebug
	}
	a.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	rest := fs.Args()
	if len(rest) == 0 {
		a.printUsage(fs)
		return 2
	}

	name, cmdArgs := rest[0], rest[1:]
	if name == "help" {
		a.printUsage(fs)
		return 0
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		err := c.run(a, ctx, cmdArgs)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, errUsage):
			return 2
		default:
			color.New(color.FgRed).Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}

	color.New(color.FgRed).Fprintf(stderr, "Unknown command: %s\n", name)
	a.printUsage(fs)
	return 2
}

func (a *app) printUsage(fs *flag.FlagSet) {
	yellow := color.New(color.FgYellow)

	fmt.Fprintln(a.errOut, "Usage: authctl [flags] <command> [args]")
	fmt.Fprintln(a.errOut)
	yellow.Fprintln(a.errOut, "Commands:")
	for _, c := range commands {
		fmt.Fprintf(a.errOut, "  %-22s %s\n", c.name, c.summary)
	}
	fmt.Fprintln(a.errOut)
	yellow.Fprintln(a.errOut, "Flags:")
	fs.PrintDefaults()
	fmt.Fprintln(a.errOut)
	yellow.Fprintln(a.errOut, "Environment:")
	fmt.Fprintln(a.errOut, "  AUTHCTL_CONFIG        Default for -config")
	fmt.Fprintln(a.errOut, "  AUTHCTL_API_URL       Default for -api")
	fmt.Fprintln(a.errOut, "  AUTHCTL_REDIS_ADDR    Default for -redis")
	fmt.Fprintln(a.errOut, "  AUTHCTL_PASSWORD      Password when -password is omitted")
}

// config loads the file named by -config, or defaults with every optional
// feature enabled, then applies flag overrides.
func (a *app) config() (authclient.Config, error) {
	var cfg authclient.Config
	if a.opts.configPath != "" {
		loaded, err := authclient.LoadConfig(a.opts.configPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	} else {
		cfg = authclient.DefaultConfig()
		cfg.Features.EmailVerification = true
		cfg.Features.PasswordReset = true
	}

	if a.opts.apiURL != "" {
		cfg.APIURL = a.opts.apiURL
	}
	if a.opts.storage != "" {
		kind, err := storage.ParseKind(a.opts.storage)
		if err != nil {
			return cfg, fmt.Errorf("%w: %v", errUsage, err)
		}
		cfg.Storage = kind
	}
	if a.opts.dbPath != "" {
		cfg.StorageBackends.SQLitePath = a.opts.dbPath
	}
	if a.opts.tenant != "" {
		cfg.Tenant.Strategy = transport.TenantHeader
		cfg.Tenant.ID = a.opts.tenant
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		return cfg, errors.New("no API URL: pass -api, set AUTHCTL_API_URL or use -config")
	}
	return cfg, nil
}

// buildManager returns a Manager and a cleanup func closing it together with
// any Redis client it opened.
func (a *app) buildManager(context.Context) (*authclient.Manager, func(), error) {
	cfg, err := a.config()
	if err != nil {
		return nil, nil, err
	}

	b := authclient.New().
		WithConfig(cfg).
		WithLogger(a.logger).
		WithNavigator(authclient.NewHistory(""))

	var rdb redis.UniversalClient
	if a.opts.redisAddr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{a.opts.redisAddr}})
		b = b.WithRedis(rdb)
	}

	m, err := b.Build()
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return nil, nil, err
	}
	cleanup := func() {
		if err := m.Close(); err != nil {
			a.logger.Warn("closing session manager", "error", err)
		}
		if rdb != nil {
			_ = rdb.Close()
		}
	}
	return m, cleanup, nil
}
