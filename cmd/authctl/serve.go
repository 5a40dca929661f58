package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/authtest"
	"github.com/MrEthical07/authclient/metrics/export/prometheus"
	"github.com/fatih/color"
)

// seedUsers collects repeated -user email:password[:role,role] flags.
type seedUsers []seedUser

type seedUser struct {
	email, password string
	roles           []string
}

func (s *seedUsers) String() string {
	parts := make([]string, len(*s))
	for i, u := range *s {
		parts[i] = u.email
	}
	return strings.Join(parts, ",")
}

func (s *seedUsers) Set(v string) error {
	parts := strings.SplitN(v, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("want email:password[:roles], got %q", v)
	}
	u := seedUser{email: parts[0], password: parts[1]}
	if len(parts) == 3 {
		u.roles = splitList(parts[2])
	}
	*s = append(*s, u)
	return nil
}

func (a *app) cmdFakeServer(ctx context.Context, args []string) error {
	fs := a.flags("fake-server")
	addr := fs.String("addr", "127.0.0.1:8787", "listen address")
	ttl := fs.Duration("ttl", 15*time.Minute, "access token lifetime")
	secret := fs.String("secret", "", "HS256 signing secret")
	var users seedUsers
	fs.Var(&users, "user", "seed account as email:password[:role,role] (repeatable)")
	if err := parse(fs, args); err != nil {
		return err
	}

	yellow := color.New(color.FgYellow)
	srv := authtest.New(authtest.Options{
		Secret:    []byte(*secret),
		AccessTTL: *ttl,
		Logger:    a.logger,
		Notify: func(kind, email, token string) {
			a.logger.Info("token issued", "kind", kind, "email", email)
			yellow.Fprintf(a.out, "%s token for %s: %s\n", kind, email, token)
		},
	})
	for _, u := range users {
		if _, err := srv.AddUser(u.email, u.password, "", u.roles...); err != nil {
			return fmt.Errorf("seeding %s: %w", u.email, err)
		}
	}

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", *addr, err)
	}
	color.New(color.FgGreen).Fprintf(a.out, "Fake auth API on http://%s\n", ln.Addr())
	return a.serve(ctx, ln, srv.Handler())
}

func (a *app) cmdMetrics(ctx context.Context, args []string) error {
	fs := a.flags("metrics")
	listen := fs.String("listen", "", "serve /metrics on this address and keep the session renewed until interrupted")
	if err := parse(fs, args); err != nil {
		return err
	}

	return a.withManager(ctx, func(m *authclient.Manager) error {
		exp := prometheus.NewPrometheusExporter(m)
		if *listen == "" {
			fmt.Fprint(a.out, exp.Render())
			return nil
		}

		ln, err := net.Listen("tcp", *listen)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", *listen, err)
		}
		mux := http.NewServeMux()
		mux.Handle("/metrics", exp.Handler())
		color.New(color.FgGreen).Fprintf(a.out, "Serving metrics on http://%s/metrics\n", ln.Addr())
		return a.serve(ctx, ln, mux)
	})
}

// serve runs h on ln until ctx is done, then shuts down gracefully.
func (a *app) serve(ctx context.Context, ln net.Listener, h http.Handler) error {
	srv := &http.Server{Handler: h, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a.logger.Debug("shutting down", "addr", ln.Addr().String())
	return srv.Shutdown(shutCtx)
}
