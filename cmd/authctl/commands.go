package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/MrEthical07/authclient"
	"github.com/MrEthical07/authclient/forms"
	"github.com/MrEthical07/authclient/guard"
	"github.com/MrEthical07/authclient/jwt"
	"github.com/fatih/color"
)

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet("authctl "+name, flag.ContinueOnError)
	fs.SetOutput(a.errOut)
	return fs
}

func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func (a *app) withManager(ctx context.Context, fn func(*authclient.Manager) error) error {
	m, cleanup, err := a.buildManager(ctx)
	if err != nil {
		return err
	}
	defer cleanup()
	return fn(m)
}

// report prints a form result and turns failures into errors.
func (a *app) report(res forms.Result) error {
	if res.Invalid() {
		fields := make([]string, 0, len(res.Fields))
		for f := range res.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		red := color.New(color.FgRed)
		for _, f := range fields {
			red.Fprintf(a.errOut, "  %s: %s\n", f, res.Fields[f])
		}
		return errors.New("invalid input")
	}
	if res.Error != "" {
		return errors.New(res.Error)
	}
	if res.Success != "" {
		color.New(color.FgGreen).Fprintln(a.out, res.Success)
	}
	return nil
}

func passwordOr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv("AUTHCTL_PASSWORD")
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	fs := a.flags("login")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or AUTHCTL_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}

	return a.withManager(ctx, func(m *authclient.Manager) error {
		f := forms.NewLogin(m)
		f.Email, f.Password = *email, passwordOr(*password)
		if err := a.report(f.Submit(ctx)); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "Signed in as %s\n", m.DisplayName())
		return nil
	})
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	fs := a.flags("register")
	name := fs.String("name", "", "display name")
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password (or AUTHCTL_PASSWORD)")
	confirm := fs.String("confirm", "", "password confirmation, defaults to -password")
	if err := parse(fs, args); err != nil {
		return err
	}

	return a.withManager(ctx, func(m *authclient.Manager) error {
		f := forms.NewRegister(m)
		f.Name, f.Email, f.Password = *name, *email, passwordOr(*password)
		f.ConfirmPassword = *confirm
		if f.ConfirmPassword == "" {
			f.ConfirmPassword = f.Password
		}
		if err := a.report(f.Submit(ctx)); err != nil {
			return err
		}
		color.New(color.FgGreen).Fprintf(a.out, "Registered and signed in as %s\n", m.DisplayName())
		if m.Config().Features.EmailVerification && !m.IsEmailVerified() {
			color.New(color.FgYellow).Fprintln(a.out, "Check your inbox to verify your email address")
		}
		return nil
	})
}

func (a *app) cmdLogout(ctx context.Context, args []string) error {
	if err := parse(a.flags("logout"), args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		m.Logout(ctx)
		fmt.Fprintln(a.out, "Signed out")
		return nil
	})
}

func (a *app) cmdRefresh(ctx context.Context, args []string) error {
	if err := parse(a.flags("refresh"), args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		toks, err := m.RefreshToken(ctx)
		if err != nil {
			return errors.New(authclient.ErrorMessage(err, "Session refresh failed"))
		}
		color.New(color.FgGreen).Fprintln(a.out, "Tokens refreshed")
		if exp, err := jwt.ExpiresAt(toks.AccessToken); err == nil {
			fmt.Fprintf(a.out, "  Expires:  %s\n", exp.Local().Format(time.RFC3339))
		} else if toks.ExpiresIn > 0 {
			fmt.Fprintf(a.out, "  Expires:  in %s\n", time.Duration(toks.ExpiresIn)*time.Second)
		}
		return nil
	})
}

func (a *app) cmdWhoami(ctx context.Context, args []string) error {
	if err := parse(a.flags("whoami"), args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		if !m.IsAuthenticated() {
			return errors.New("not signed in")
		}
		u, err := m.GetCurrentUser(ctx)
		if err != nil {
			return errors.New(authclient.ErrorMessage(err, "Could not load the current user"))
		}
		a.printUser(u, m.UserRoles())
		return nil
	})
}

func (a *app) cmdStatus(ctx context.Context, args []string) error {
	fs := a.flags("status")
	roles := fs.String("roles", "", "comma-separated roles to check access against")
	all := fs.Bool("all", false, "require every role in -roles instead of any")
	if err := parse(fs, args); err != nil {
		return err
	}

	return a.withManager(ctx, func(m *authclient.Manager) error {
		cfg := m.Config()
		cyan := color.New(color.FgCyan)
		yellow := color.New(color.FgYellow)

		fmt.Fprintln(a.out)
		cyan.Fprintln(a.out, "  Session")
		cyan.Fprintln(a.out, "  -------")
		fmt.Fprintf(a.out, "  API:      %s\n", cfg.APIURL)
		fmt.Fprintf(a.out, "  Storage:  %s\n", cfg.Storage)

		s := m.Session()
		if !s.IsAuthenticated() {
			yellow.Fprintln(a.out, "  State:    signed out")
		} else {
			color.New(color.FgGreen).Fprintln(a.out, "  State:    signed in")
			fmt.Fprintf(a.out, "  User:     %s <%s>\n", s.DisplayName(), s.User.Email)
			if tok, ok := m.AccessToken(); ok && cfg.TokenStrategy == authclient.TokenJWT {
				if exp, err := jwt.ExpiresAt(tok); err == nil {
					fmt.Fprintf(a.out, "  Expires:  %s\n", exp.Local().Format(time.RFC3339))
				}
			}
		}

		if *roles != "" {
			route := guard.Route{RequireAuth: true, Roles: splitList(*roles), RequireAll: *all}
			d := guard.Evaluate(s, cfg.Redirects, route, "")
			if d.Allowed() {
				color.New(color.FgGreen).Fprintln(a.out, "  Access:   allowed")
			} else {
				yellow.Fprintf(a.out, "  Access:   denied, redirect to %s\n", d.Redirect)
			}
		}
		fmt.Fprintln(a.out)
		return nil
	})
}

func (a *app) cmdForgotPassword(ctx context.Context, args []string) error {
	fs := a.flags("forgot-password")
	email := fs.String("email", "", "account email")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		f := forms.NewForgotPassword(m)
		f.Email = *email
		return a.report(f.Submit(ctx))
	})
}

func (a *app) cmdResetPassword(ctx context.Context, args []string) error {
	fs := a.flags("reset-password")
	token := fs.String("token", "", "reset token from the email link")
	password := fs.String("password", "", "new password (or AUTHCTL_PASSWORD)")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		f := forms.NewResetPassword(m, url.Values{"token": {*token}}, nil)
		defer f.Close()
		if err := a.report(f.Init()); err != nil {
			return err
		}
		f.NewPassword = passwordOr(*password)
		f.ConfirmPassword = f.NewPassword
		return a.report(f.Submit(ctx))
	})
}

func (a *app) cmdVerifyEmail(ctx context.Context, args []string) error {
	fs := a.flags("verify-email")
	token := fs.String("token", "", "verification token from the email link")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		f := forms.NewVerifyEmail(m, nil)
		defer f.Close()
		return a.report(f.Run(ctx, url.Values{"token": {*token}}))
	})
}

func (a *app) cmdResendVerification(ctx context.Context, args []string) error {
	fs := a.flags("resend-verification")
	email := fs.String("email", "", "account email, defaults to the signed-in user")
	if err := parse(fs, args); err != nil {
		return err
	}
	return a.withManager(ctx, func(m *authclient.Manager) error {
		addr := *email
		if addr == "" && m.User() != nil {
			addr = m.User().Email
		}
		if addr == "" {
			return fmt.Errorf("%w: -email is required when signed out", errUsage)
		}
		resp, err := m.ResendVerificationEmail(ctx, addr)
		if err != nil {
			return errors.New(authclient.ErrorMessage(err, "Could not resend the verification email"))
		}
		msg := resp.Message
		if msg == "" {
			msg = "Verification email sent"
		}
		color.New(color.FgGreen).Fprintln(a.out, msg)
		return nil
	})
}

func (a *app) printUser(u *authclient.User, roles []string) {
	cyan := color.New(color.FgCyan)
	green := color.New(color.FgGreen)

	fmt.Fprintln(a.out)
	cyan.Fprintln(a.out, "  Identity")
	cyan.Fprintln(a.out, "  --------")
	fmt.Fprintf(a.out, "  ID:        %s\n", u.ID)
	fmt.Fprintf(a.out, "  Email:     %s\n", u.Email)
	if u.Name != "" {
		fmt.Fprintf(a.out, "  Name:      %s\n", u.Name)
	}
	fmt.Fprintf(a.out, "  Verified:  %t\n", u.EmailVerified)
	if len(roles) > 0 {
		green.Fprintf(a.out, "  Roles:     %s\n", strings.Join(roles, ", "))
	} else {
		fmt.Fprintln(a.out, "  Roles:     (none)")
	}
	fmt.Fprintln(a.out)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
