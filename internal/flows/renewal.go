package flows

import (
	"errors"
	"time"
)

// RenewalAction is the outcome of PlanRenewal.
type RenewalAction int

const (
	// RenewSkip means no renewal should be armed.
	RenewSkip RenewalAction = iota
	// RenewAt means arm a single timer for Delay.
	RenewAt
	// RenewNow means refresh without waiting.
	RenewNow
)

func (a RenewalAction) String() string {
	switch a {
	case RenewAt:
		return "scheduled"
	case RenewNow:
		return "immediate"
	default:
		return "skip"
	}
}

// RenewalInput describes the session at the moment a renewal is planned.
type RenewalInput struct {
	Authenticated bool
	AutoRefresh   bool
	AccessToken   string
	Now           time.Time
	Threshold     time.Duration

	// Opaque selects KnownExpiry instead of decoding AccessToken.
	Opaque bool
	// KnownExpiry is now+expiresIn of the last auth response. Zero when
	// unknown.
	KnownExpiry time.Time

	// DecodeExpiry reads the exp claim of a self-describing token.
	DecodeExpiry func(token string) (time.Time, error)
	// ErrNoExpiry is the DecodeExpiry error for tokens without an exp claim.
	ErrNoExpiry error
}

// RenewalPlan is what the caller should do next.
type RenewalPlan struct {
	Action RenewalAction
	Delay  time.Duration
	Expiry time.Time
	// DecodeErr is set when the token could not be decoded and was treated
	// as expired.
	DecodeErr error
}

// PlanRenewal computes wait = expiry - now - threshold. A positive wait
// schedules. A token inside the threshold that has not expired yet renews
// immediately; an already expired token is left alone. Undecodable tokens
// count as expiring at the Unix epoch and renew immediately. Tokens without an
// expiry, opaque tokens with no known lifetime, anonymous sessions and
// disabled auto-refresh are skipped.
func PlanRenewal(in RenewalInput) RenewalPlan {
	if !in.Authenticated || !in.AutoRefresh || in.AccessToken == "" {
		return RenewalPlan{Action: RenewSkip}
	}

	var plan RenewalPlan
	switch {
	case in.Opaque:
		if in.KnownExpiry.IsZero() {
			return RenewalPlan{Action: RenewSkip}
		}
		plan.Expiry = in.KnownExpiry
	case in.DecodeExpiry == nil:
		return RenewalPlan{Action: RenewSkip}
	default:
		exp, err := in.DecodeExpiry(in.AccessToken)
		switch {
		case err == nil:
			plan.Expiry = exp
		case in.ErrNoExpiry != nil && errors.Is(err, in.ErrNoExpiry):
			return RenewalPlan{Action: RenewSkip}
		default:
			plan.Expiry = time.Unix(0, 0)
			plan.DecodeErr = err
		}
	}

	wait := plan.Expiry.Sub(in.Now) - in.Threshold
	if wait > 0 {
		plan.Action = RenewAt
		plan.Delay = wait
		return plan
	}
	if plan.DecodeErr != nil || plan.Expiry.After(in.Now) {
		plan.Action = RenewNow
		return plan
	}
	plan.Action = RenewSkip
	return plan
}
