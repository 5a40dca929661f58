package forms

import (
	"context"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/MrEthical07/authclient/clock"
)

const (
	VerifyTokenMissing = "Invalid verification token"
	EmailVerified      = "Email verified successfully. Redirecting..."
	verifyFailed       = "Could not verify the email."
)

// VerifyEmail confirms the address from a verification link. It has no
// fields; Run is called once with the link's query.
type VerifyEmail struct {
	auth    Auth
	clock   clock.Clock
	loading atomic.Bool

	mu       sync.Mutex
	redirect clock.Timer
}

func NewVerifyEmail(auth Auth, clk clock.Clock) *VerifyEmail {
	if clk == nil {
		clk = clock.Real{}
	}
	return &VerifyEmail{auth: auth, clock: clk}
}

// Loading reports whether a verification is in flight.
func (f *VerifyEmail) Loading() bool {
	return f.loading.Load()
}

// Run verifies the token in query, then navigates home after
// RedirectDelay. A missing token fails without a request.
func (f *VerifyEmail) Run(ctx context.Context, query url.Values) Result {
	token := query.Get("token")
	if token == "" {
		return Result{Error: VerifyTokenMissing}
	}

	f.loading.Store(true)
	defer f.loading.Store(false)

	if _, err := f.auth.VerifyEmail(ctx, token); err != nil {
		return failed(err, verifyFailed)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect != nil {
		f.redirect.Stop()
	}
	nav := f.auth.Navigator()
	f.redirect = f.clock.AfterFunc(RedirectDelay, func() {
		nav.Navigate(RouteHome, nil)
	})
	return Result{Success: EmailVerified}
}

// Close cancels a pending redirect.
func (f *VerifyEmail) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.redirect != nil {
		f.redirect.Stop()
		f.redirect = nil
	}
}

func (f *VerifyEmail) GoToHome() {
	f.Close()
	f.auth.Navigator().Navigate(RouteHome, nil)
}
