package authclient

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authclient/clock"
	"github.com/MrEthical07/authclient/internal/flows"
	"github.com/MrEthical07/authclient/jwt"
)

// renewalState is guarded by Manager.mu. At most one timer is pending; gen
// invalidates callbacks of superseded timers.
type renewalState struct {
	timer clock.Timer
	gen   uint64
	// immediate is set after an immediate renewal and cleared when a
	// renewal can be scheduled normally again.
	immediate bool
}

func (m *Manager) cancelRenewalLocked() {
	m.renewal.gen++
	if m.renewal.timer != nil {
		m.renewal.timer.Stop()
		m.renewal.timer = nil
	}
}

// scheduleRenewalLocked re-plans renewal after a user change. Any pending
// timer is cancelled first.
func (m *Manager) scheduleRenewalLocked() {
	m.cancelRenewalLocked()
	if m.closed {
		return
	}

	token, _ := m.tokens.AccessToken()
	now := m.clock.Now()
	plan := flows.PlanRenewal(flows.RenewalInput{
		Authenticated: m.state.Get().User != nil,
		AutoRefresh:   m.cfg.AutoRefresh,
		AccessToken:   token,
		Now:           now,
		Threshold:     m.cfg.RefreshThreshold,
		Opaque:        m.cfg.TokenStrategy == TokenOpaque,
		KnownExpiry:   m.expiresAt,
		DecodeExpiry:  jwt.ExpiresAt,
		ErrNoExpiry:   jwt.ErrNoExpiry,
	})
	if plan.DecodeErr != nil {
		m.logger.Debug("access token expiry unreadable, renewing now", "error", plan.DecodeErr)
	}

	switch plan.Action {
	case flows.RenewAt:
		m.renewal.immediate = false
		m.armLocked(plan.Delay, EventRenewalScheduled)

	case flows.RenewNow:
		if !m.renewal.immediate {
			m.renewal.immediate = true
			m.metrics.Inc(MetricRenewalImmediate)
			m.startRenewalLocked(m.renewal.gen)
			m.emitLocked(EventRenewalImmediate, nil)
			return
		}
		// The token issued by the previous immediate renewal is itself
		// inside the threshold. Renew once per token lifetime instead.
		if wait := plan.Expiry.Sub(now); wait > 0 {
			m.armLocked(wait, EventRenewalScheduled)
			return
		}
		m.logger.Warn("renewed access token is already expired, automatic renewal stopped")
	}
}

func (m *Manager) armLocked(delay time.Duration, typ EventType) {
	gen := m.renewal.gen
	m.renewal.timer = m.clock.AfterFunc(delay, func() {
		m.mu.Lock()
		if m.closed || gen != m.renewal.gen {
			m.mu.Unlock()
			return
		}
		m.renewal.timer = nil
		m.startRenewalLocked(gen)
		m.mu.Unlock()
	})
	m.metrics.Inc(MetricRenewalScheduled)
	m.logger.Debug("access token renewal scheduled", "in", delay)
	m.emitLocked(typ, map[string]string{"delay": strconv.FormatInt(delay.Milliseconds(), 10) + "ms"})
}

// startRenewalLocked runs one refresh on a tracked goroutine.
func (m *Manager) startRenewalLocked(gen uint64) {
	m.bg.Add(1)
	go func() {
		defer m.bg.Done()
		m.renew(gen)
	}()
}

func (m *Manager) renew(gen uint64) {
	m.mu.Lock()
	stale := m.closed || gen != m.renewal.gen
	m.mu.Unlock()
	if stale {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HTTP.Timeout)
	defer cancel()

	if _, err := m.RefreshToken(ctx); err != nil &&
		!errors.Is(err, ErrSessionChanged) &&
		!errors.Is(err, ErrClosed) {
		m.logger.Warn("automatic token renewal failed", "error", err)
	}
}

func (m *Manager) emitLocked(typ EventType, meta map[string]string) {
	var userID string
	if u := m.state.Get().User; u != nil {
		userID = u.ID
	}
	m.emit(context.Background(), typ, userID, nil, meta)
}
