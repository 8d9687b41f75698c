package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }

func TestBreakerTransitions(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	breaker := NewBreaker("quotes", 2, 0.5, time.Minute)
	breaker.now = clock.now
	ctx := context.Background()

	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.True(t, breaker.Allow(ctx))
	breaker.Report(ctx, false)
	require.False(t, breaker.Allow(ctx), "breaker should open after threshold exceeded")
	require.Equal(t, 1.0, testutil.ToFloat64(BreakerState.WithLabelValues("quotes")))

	clock.t = clock.t.Add(2 * time.Minute)
	require.True(t, breaker.Allow(ctx), "breaker should move to half-open after cool off")
	require.Equal(t, HalfOpen, breaker.State())
	breaker.Report(ctx, true)
	require.Equal(t, Closed, breaker.State())
	require.Equal(t, 0.0, testutil.ToFloat64(BreakerState.WithLabelValues("quotes")))
}

func TestExecuteIgnoresNonFailures(t *testing.T) {
	breaker := NewBreaker("lookup", 1, 0.5, time.Minute)
	notFound := errors.New("not found")
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		err := breaker.Execute(ctx, func(context.Context) error { return notFound }, func(err error) bool {
			return !errors.Is(err, notFound)
		})
		require.ErrorIs(t, err, notFound)
	}
	require.Equal(t, Closed, breaker.State())

	for i := 0; i < 5 && breaker.State() != Open; i++ {
		err := breaker.Execute(ctx, func(context.Context) error { return errors.New("timeout") }, nil)
		require.Error(t, err)
	}
	require.Equal(t, Open, breaker.State())
	require.ErrorIs(t, breaker.Execute(ctx, func(context.Context) error { return nil }, nil), ErrOpenCircuit)
}

func TestBackoffWithJitter(t *testing.T) {
	base := 100 * time.Millisecond
	require.Equal(t, base, Backoff(base, 1, 0))
	require.Equal(t, base*4, Backoff(base, 3, 0))

	d := Backoff(base, 2, 0.2)
	require.GreaterOrEqual(t, d, base*2-(base*2/5))
	require.LessOrEqual(t, d, base*2+(base*2/5))
}
