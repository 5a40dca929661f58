package flows

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errNoExp = errors.New("no exp")

func expiryTable(tokens map[string]time.Time) func(string) (time.Time, error) {
	return func(tok string) (time.Time, error) {
		switch tok {
		case "noexp":
			return time.Time{}, errNoExp
		case "garbage":
			return time.Time{}, errors.New("malformed")
		}
		return tokens[tok], nil
	}
}

func TestPlanRenewal(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	decode := expiryTable(map[string]time.Time{
		"fresh":   now.Add(15 * time.Minute),
		"near":    now.Add(30 * time.Second),
		"edge":    now.Add(60 * time.Second),
		"expired": now.Add(-time.Hour),
		"now":     now,
	})

	base := RenewalInput{
		Authenticated: true,
		AutoRefresh:   true,
		Now:           now,
		Threshold:     60 * time.Second,
		DecodeExpiry:  decode,
		ErrNoExpiry:   errNoExp,
	}

	tests := []struct {
		name      string
		mutate    func(*RenewalInput)
		want      RenewalAction
		wantDelay time.Duration
	}{
		{name: "fresh token scheduled", mutate: func(in *RenewalInput) { in.AccessToken = "fresh" }, want: RenewAt, wantDelay: 14 * time.Minute},
		{name: "inside threshold refreshes now", mutate: func(in *RenewalInput) { in.AccessToken = "near" }, want: RenewNow},
		{name: "exactly at threshold refreshes now", mutate: func(in *RenewalInput) { in.AccessToken = "edge" }, want: RenewNow},
		{name: "expired left alone", mutate: func(in *RenewalInput) { in.AccessToken = "expired" }, want: RenewSkip},
		{name: "expiring this instant left alone", mutate: func(in *RenewalInput) { in.AccessToken = "now" }, want: RenewSkip},
		{name: "malformed refreshes now", mutate: func(in *RenewalInput) { in.AccessToken = "garbage" }, want: RenewNow},
		{name: "missing exp skipped", mutate: func(in *RenewalInput) { in.AccessToken = "noexp" }, want: RenewSkip},
		{name: "anonymous skipped", mutate: func(in *RenewalInput) { in.AccessToken = "fresh"; in.Authenticated = false }, want: RenewSkip},
		{name: "auto refresh off", mutate: func(in *RenewalInput) { in.AccessToken = "fresh"; in.AutoRefresh = false }, want: RenewSkip},
		{name: "no token", mutate: func(in *RenewalInput) {}, want: RenewSkip},
		{name: "opaque unknown lifetime", mutate: func(in *RenewalInput) { in.AccessToken = "opaque"; in.Opaque = true }, want: RenewSkip},
		{
			name: "opaque known lifetime",
			mutate: func(in *RenewalInput) {
				in.AccessToken = "opaque"
				in.Opaque = true
				in.KnownExpiry = now.Add(5 * time.Minute)
			},
			want:      RenewAt,
			wantDelay: 4 * time.Minute,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			plan := PlanRenewal(in)
			assert.Equal(t, tt.want, plan.Action, plan.Action.String())
			if tt.want == RenewAt {
				assert.Equal(t, tt.wantDelay, plan.Delay)
			}
		})
	}
}

func TestPlanRenewalMalformedExpiryIsEpoch(t *testing.T) {
	plan := PlanRenewal(RenewalInput{
		Authenticated: true,
		AutoRefresh:   true,
		AccessToken:   "garbage",
		Now:           time.Now(),
		DecodeExpiry:  expiryTable(nil),
		ErrNoExpiry:   errNoExp,
	})
	assert.Equal(t, RenewNow, plan.Action)
	assert.Equal(t, time.Unix(0, 0), plan.Expiry)
	assert.Error(t, plan.DecodeErr)
}
