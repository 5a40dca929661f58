package forms

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const loginFailed = "Login failed. Check your credentials."

// Login is the sign-in form.
type Login struct {
	Email    string `json:"email"`
	Password string `json:"password"`

	auth Auth
}

func NewLogin(auth Auth) *Login {
	return &Login{auth: auth}
}

func (f *Login) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Password, validation.Required, validation.Length(6, 0)),
	)
}

// Submit signs in. The Manager navigates on success.
func (f *Login) Submit(ctx context.Context) Result {
	if err := f.Validate(); err != nil {
		return invalid(err)
	}
	if _, err := f.auth.Login(ctx, f.Email, f.Password); err != nil {
		return failed(err, loginFailed)
	}
	return Result{}
}

// RegisterEnabled controls the "create account" link.
func (f *Login) RegisterEnabled() bool {
	return f.auth.Config().Features.Registration
}

// PasswordResetEnabled controls the "forgot password" link.
func (f *Login) PasswordResetEnabled() bool {
	return f.auth.Config().Features.PasswordReset
}

func (f *Login) GoToRegister() {
	f.auth.Navigator().Navigate(RouteRegister, nil)
}

func (f *Login) GoToForgotPassword() {
	f.auth.Navigator().Navigate(RouteForgotPassword, nil)
}
