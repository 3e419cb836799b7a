package zonetransport

import (
	"context"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sammck-go/zonerpc/zone"
)

// ReconnectPolicy bounds how a networked transport retries a dropped
// connection, grounded on the teacher's connectionLoop retry loop.
type ReconnectPolicy struct {
	// MaxRetryInterval caps the backoff delay between attempts.
	MaxRetryInterval time.Duration
	// MaxRetryCount stops retrying after this many retries following the
	// first failed dial; <0 means unlimited.
	MaxRetryCount int
}

// Dialer reconnects to one peer, producing a fresh zone.Transport each
// successful attempt.
type Dialer func(ctx context.Context) (zone.Transport, error)

// Reconnector drives a Dialer through RECONNECTING with backoff,
// reporting each retry through Run's onReconnecting callback, until ctx
// is done, the policy's retry budget is exhausted, or a dial succeeds.
type Reconnector struct {
	dial   Dialer
	policy ReconnectPolicy
	logger zone.Logger
}

// NewReconnector builds a Reconnector for dial under policy.
func NewReconnector(dial Dialer, policy ReconnectPolicy, logger zone.Logger) *Reconnector {
	return &Reconnector{dial: dial, policy: policy, logger: logger}
}

// Run attempts to (re)establish a connection, retrying with backoff on
// failure, until it succeeds, ctx is cancelled, or the retry budget is
// exhausted. The first dial is made at once; onReconnecting is called
// before each later retry (not before the first dial), so the caller
// can mark its transport's status RECONNECTING.
func (r *Reconnector) Run(ctx context.Context, onReconnecting func(attempt int, delay time.Duration)) (zone.Transport, error) {
	b := &backoff.Backoff{Max: r.policy.MaxRetryInterval}
	var lastErr error
	for {
		select {
		case <-ctx.Done():
			return nil, zone.WrapError(zone.Cancelled, ctx.Err(), "reconnect cancelled")
		default:
		}

		if lastErr != nil {
			attempt := int(b.Attempt())
			if r.policy.MaxRetryCount >= 0 && attempt >= r.policy.MaxRetryCount {
				return nil, zone.WrapError(zone.TransportDown, lastErr, "giving up after %d retries", attempt)
			}
			delay := b.Duration()
			if onReconnecting != nil {
				onReconnecting(attempt, delay)
			}
			r.logger.ILogf("reconnecting in %s (attempt %d): %s", delay, attempt, lastErr)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, zone.WrapError(zone.Cancelled, ctx.Err(), "reconnect cancelled during backoff")
			}
		}

		t, err := r.dial(ctx)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
}
