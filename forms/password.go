package forms

import (
	"context"
	"net/url"
	"sync"

	"github.com/MrEthical07/authclient/clock"
	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// ForgotPasswordSent is shown whether or not the address exists.
const ForgotPasswordSent = "If the email exists, you will receive instructions to reset your password."

const forgotFailed = "Could not process the request."

type ForgotPassword struct {
	Email string `json:"email"`

	auth Auth
}

func NewForgotPassword(auth Auth) *ForgotPassword {
	return &ForgotPassword{auth: auth}
}

func (f *ForgotPassword) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.Email, validation.Required, is.Email),
	)
}

// Submit requests a reset email and clears the form on success.
func (f *ForgotPassword) Submit(ctx context.Context) Result {
	if err := f.Validate(); err != nil {
		return invalid(err)
	}
	if _, err := f.auth.ForgotPassword(ctx, f.Email); err != nil {
		return failed(err, forgotFailed)
	}
	f.Email = ""
	return Result{Success: ForgotPasswordSent}
}

func (f *ForgotPassword) GoToLogin() {
	f.auth.Navigator().Navigate(RouteLogin, nil)
}

/*
====================================
RESET PASSWORD
====================================
*/

const (
	ResetTokenMissing = "Invalid reset token"
	PasswordResetDone = "Password reset successfully. Redirecting..."
	resetFailed       = "Could not reset the password."
)

// ResetPassword sets a new password with the token from the reset link.
type ResetPassword struct {
	NewPassword     string `json:"newPassword"`
	ConfirmPassword string `json:"confirmPassword"`

	auth  Auth
	clock clock.Clock
	token string

	mu       sync.Mutex
	redirect clock.Timer
}

// NewResetPassword reads the token from query. A nil clock uses the wall
// clock.
func NewResetPassword(auth Auth, query url.Values, clk clock.Clock) *ResetPassword {
	if clk == nil {
		clk = clock.Real{}
	}
	return &ResetPassword{auth: auth, clock: clk, token: query.Get("token")}
}

func (f *ResetPassword) Token() string { return f.token }

// Init returns the message to show before any submit.
func (f *ResetPassword) Init() Result {
	if f.token == "" {
		return Result{Error: ResetTokenMissing}
	}
	return Result{}
}

func (f *ResetPassword) Validate() error {
	return validation.ValidateStruct(f,
		validation.Field(&f.NewPassword, validation.Required, validation.Length(6, 0)),
		validation.Field(&f.ConfirmPassword, validation.Required, validation.By(equals(f.NewPassword))),
	)
}

// Submit resets the password, then navigates to the login route after
// RedirectDelay.
func (f *ResetPassword) Submit(ctx context.Context) Result {
	if f.token == "" {
		return Result{Error: ResetTokenMissing}
	}
	if err := f.Validate(); err != nil {
		return invalid(err)
	}
	if _, err := f.auth.ResetPassword(ctx, f.token, f.NewPassword); err != nil {
		return failed(err, resetFailed)
	}
	f.scheduleRedirect(RouteLogin)
	return Result{Success: PasswordResetDone}
}

// Close cancels a pending redirect.
func (f *ResetPassword) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect != nil {
		f.redirect.Stop()
		f.redirect = nil
	}
}

func (f *ResetPassword) GoToLogin() {
	f.Close()
	f.auth.Navigator().Navigate(RouteLogin, nil)
}

func (f *ResetPassword) scheduleRedirect(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect != nil {
		f.redirect.Stop()
	}
	nav := f.auth.Navigator()
	f.redirect = f.clock.AfterFunc(RedirectDelay, func() {
		nav.Navigate(path, nil)
	})
}
