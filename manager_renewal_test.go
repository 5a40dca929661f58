package authclient

import (
	"context"
	"testing"
	"time"

	"github.com/MrEthical07/authclient/dto"
	"github.com/MrEthical07/authclient/storage"
	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitFor = 2 * time.Second

// tokenAPI issues JWT access tokens expiring ttl after the env clock's now.
func tokenAPI(t *testing.T, env **testEnv, ttl time.Duration) *fakeTransport {
	return &fakeTransport{
		login: func(dto.LoginRequest) (*AuthResponse, error) {
			return authResponse(signToken(t, testEpoch.Add(ttl)), "refresh", testUser("u1")), nil
		},
		refresh: func(context.Context, dto.RefreshTokenRequest) (*AuthResponse, error) {
			return authResponse(signToken(t, (*env).clock.Now().Add(ttl)), "refresh-next", nil), nil
		},
	}
}

func TestRenewalScheduledBeforeExpiry(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, nil, tokenAPI(t, &env, 15*time.Minute), nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	deadline, ok := env.clock.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, testEpoch.Add(14*time.Minute), deadline)
	assert.Zero(t, env.api.count("refresh"))

	env.clock.Advance(14*time.Minute - time.Second)
	assert.Zero(t, env.api.count("refresh"))

	env.clock.Advance(time.Second)
	require.Eventually(t, func() bool { return env.api.count("refresh") == 1 }, waitFor, time.Millisecond)

	require.Eventually(t, func() bool { return env.clock.Pending() == 1 }, waitFor, time.Millisecond)
	deadline, _ = env.clock.NextDeadline()
	assert.Equal(t, testEpoch.Add(28*time.Minute), deadline)
	rt, _ := env.tokens().RefreshToken()
	assert.Equal(t, "refresh-next", rt)
}

func TestRenewalImmediateInsideThreshold(t *testing.T) {
	var env *testEnv
	api := tokenAPI(t, &env, 15*time.Minute)
	api.login = func(dto.LoginRequest) (*AuthResponse, error) {
		return authResponse(signToken(t, testEpoch.Add(30*time.Second)), "refresh", testUser("u1")), nil
	}
	env = newTestEnv(t, nil, api, nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return api.count("refresh") == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return env.clock.Pending() == 1 }, waitFor, time.Millisecond)

	deadline, _ := env.clock.NextDeadline()
	assert.Equal(t, testEpoch.Add(14*time.Minute), deadline)
	assert.True(t, env.m.IsAuthenticated())
	assert.Equal(t, uint64(1), env.m.MetricsSnapshot().Counters[MetricRenewalImmediate])
}

func TestRenewalShortLivedTokensDoNotLoop(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, nil, tokenAPI(t, &env, 30*time.Second), nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool { return env.api.count("refresh") == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return env.clock.Pending() == 1 }, waitFor, time.Millisecond)
	deadline, _ := env.clock.NextDeadline()
	assert.Equal(t, testEpoch.Add(30*time.Second), deadline)

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, env.api.count("refresh"))

	env.clock.Advance(30 * time.Second)
	require.Eventually(t, func() bool { return env.api.count("refresh") == 2 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return env.clock.Pending() == 1 }, waitFor, time.Millisecond)
	assert.Equal(t, 2, env.api.count("refresh"))
}

func TestRenewalMalformedTokenRefreshesOnHydrate(t *testing.T) {
	api := &fakeTransport{
		refresh: func(context.Context, dto.RefreshTokenRequest) (*AuthResponse, error) {
			return authResponse(signToken(t, testEpoch.Add(15*time.Minute)), "", nil), nil
		},
	}
	env := newTestEnv(t, nil, api, func(toks *storage.Tokens, _ storage.Store) {
		toks.SetAccessToken("not-a-jwt")
		toks.SetRefreshToken("stored-refresh")
		toks.SetUser(testUser("u1"))
	})

	require.Eventually(t, func() bool { return api.count("refresh") == 1 }, waitFor, time.Millisecond)
	require.Eventually(t, func() bool { return env.clock.Pending() == 1 }, waitFor, time.Millisecond)
	assert.True(t, env.m.IsAuthenticated())
}

func TestRenewalLeavesExpiredTokenAlone(t *testing.T) {
	api := &fakeTransport{}
	env := newTestEnv(t, nil, api, func(toks *storage.Tokens, _ storage.Store) {
		toks.SetAccessToken(signToken(t, testEpoch.Add(-time.Hour)))
		toks.SetRefreshToken("stored-refresh")
		toks.SetUser(testUser("u1"))
	})

	assert.True(t, env.m.IsAuthenticated())
	assert.Zero(t, env.clock.Pending())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, api.count("refresh"))
	assert.Zero(t, env.m.MetricsSnapshot().Counters[MetricRenewalImmediate])
}

func TestRenewalSkippedWithoutExpiry(t *testing.T) {
	noExp, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"sub": "u1"}).
		SignedString([]byte("test-secret"))
	require.NoError(t, err)

	api := &fakeTransport{
		login: func(dto.LoginRequest) (*AuthResponse, error) {
			return authResponse(noExp, "refresh", testUser("u1")), nil
		},
	}
	env := newTestEnv(t, nil, api, nil)

	_, err = env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Zero(t, env.clock.Pending())
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, api.count("refresh"))
}

func TestRenewalDisabled(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, noAutoRefresh, tokenAPI(t, &env, 15*time.Minute), nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Zero(t, env.clock.Pending())
}

func TestRenewalOpaqueUsesExpiresIn(t *testing.T) {
	api := &fakeTransport{
		login: func(dto.LoginRequest) (*AuthResponse, error) {
			resp := authResponse("opaque-access", "refresh", testUser("u1"))
			resp.ExpiresIn = 300
			return resp, nil
		},
	}
	env := newTestEnv(t, func(c *Config) { c.TokenStrategy = TokenOpaque }, api, nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	deadline, ok := env.clock.NextDeadline()
	require.True(t, ok)
	assert.Equal(t, testEpoch.Add(4*time.Minute), deadline)
}

func TestRenewalCancelledByLogout(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, nil, tokenAPI(t, &env, 15*time.Minute), nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	require.Equal(t, 1, env.clock.Pending())

	env.m.Logout(context.Background())
	assert.Zero(t, env.clock.Pending())

	env.clock.Advance(time.Hour)
	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, env.api.count("refresh"))
}

func TestRenewalReplacedOnNewLogin(t *testing.T) {
	var env *testEnv
	env = newTestEnv(t, nil, tokenAPI(t, &env, 15*time.Minute), nil)

	_, err := env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	_, err = env.m.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)

	assert.Equal(t, 1, env.clock.Pending())
}
