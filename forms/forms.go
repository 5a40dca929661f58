package forms

import (
	"context"
	"errors"
	"time"

	"github.com/MrEthical07/authclient"
	validation "github.com/go-ozzo/ozzo-validation"
)

// RedirectDelay is how long a success message stays before the follow-up
// navigation.
const RedirectDelay = 2 * time.Second

// Routes used by the shells' "go to" actions.
const (
	RouteLogin          = "/login"
	RouteRegister       = "/register"
	RouteForgotPassword = "/forgot-password"
	RouteHome           = "/"
)

// Auth is the part of *authclient.Manager the shells use.
type Auth interface {
	Login(ctx context.Context, email, password string) (*authclient.User, error)
	Register(ctx context.Context, req authclient.RegisterRequest) (*authclient.User, error)
	ForgotPassword(ctx context.Context, email string) (*authclient.MessageResponse, error)
	ResetPassword(ctx context.Context, token, newPassword string) (*authclient.MessageResponse, error)
	VerifyEmail(ctx context.Context, token string) (*authclient.VerifyEmailResponse, error)
	Config() authclient.Config
	Navigator() authclient.Navigator
}

var _ Auth = (*authclient.Manager)(nil)

// Result is what a shell shows after a submit. Fields is set when local
// validation failed and no request was sent.
type Result struct {
	Error   string
	Success string
	Fields  map[string]string
}

// OK reports a successful submit.
func (r Result) OK() bool {
	return r.Error == "" && len(r.Fields) == 0
}

// Invalid reports whether local validation stopped the submit.
func (r Result) Invalid() bool {
	return len(r.Fields) > 0
}

func invalid(err error) Result {
	out := map[string]string{}
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
	}
	if len(out) == 0 {
		out["form"] = err.Error()
	}
	return Result{Fields: out}
}

func failed(err error, fallback string) Result {
	return Result{Error: authclient.ErrorMessage(err, fallback)}
}

// equals is a rule requiring the value to match other.
func equals(other string) validation.RuleFunc {
	return func(value interface{}) error {
		s, _ := value.(string)
		if s != other {
			return errors.New("passwords do not match")
		}
		return nil
	}
}
