package forms

import (
	"context"

	"github.com/MrEthical07/authclient"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

const registerFailed = "Registration failed. Please try again."

type Register struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`

	auth Auth
}

func NewRegister(auth Auth) *Register {
	return &Register{auth: auth}
}

func (f *Register) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Name, validation.Required, validation.Length(2, 0)),
		validation.Field(&f.Email, validation.Required, is.Email),
		validation.Field(&f.Password, validation.Required, validation.Length(6, 0)),
		validation.Field(&f.ConfirmPassword, validation.Required, validation.By(equals(f.Password))),
	)
}

// Submit creates the account. The confirmation never leaves the form.
func (f *Register) Submit(ctx context.Context) Result {
	if err := f.Validate(); err != nil {
		return invalid(err)
	}
	_, err := f.auth.Register(ctx, authclient.RegisterRequest{
		Email:    f.Email,
		Password: f.Password,
		Name:     f.Name,
	})
	if err != nil {
		return failed(err, registerFailed)
	}
	return Result{}
}

func (f *Register) GoToLogin() {
	f.auth.Navigator().Navigate(RouteLogin, nil)
}
