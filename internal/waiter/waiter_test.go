// Copyright (c) 2026 dokeys authors
// dokeys - DigitalOcean SSH key management client
// This source code is licensed under the MIT license found in the LICENSE file.

package waiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/flavienbert/digitalocean/internal/api"
	"github.com/flavienbert/digitalocean/internal/metrics"
	"github.com/flavienbert/digitalocean/internal/model"
)

var key = model.Key{ID: "1", Fingerprint: "aa:bb", Name: "Test-1", PublicKey: "ssh-ed25519 AAAA"}

// countingSleeper records requested delays without sleeping.
type countingSleeper struct {
	calls  int
	delays []time.Duration
}

func (s *countingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.calls++
	if len(s.delays) < 8 {
		s.delays = append(s.delays, d)
	}
	return ctx.Err()
}

// visibleAfter returns a lister that shows keys from its n-th call on.
func visibleAfter(n int, keys ...model.Key) (Lister, *int) {
	calls := 0
	return ListFunc(func(ctx context.Context) ([]model.Key, error) {
		calls++
		if calls >= n {
			return keys, nil
		}
		return nil, nil
	}), &calls
}

func TestUntilReturnsImmediatelyWhenSatisfied(t *testing.T) {
	l, calls := visibleAfter(1, key)
	s := &countingSleeper{}
	w := New(l, time.Second, WithSleeper(s))

	res, err := w.Until(context.Background(), Present(key))
	require.NoError(t, err)
	require.Equal(t, 1, res.Attempts)
	require.Equal(t, 1, *calls)
	require.Zero(t, s.calls, "no sleep before a satisfied first attempt")
	require.True(t, model.ContainsExact(res.Keys, key))
}

func TestUntilSleepsFixedIntervalBetweenAttempts(t *testing.T) {
	l, calls := visibleAfter(4, key)
	s := &countingSleeper{}
	w := New(l, 250*time.Millisecond, WithSleeper(s))

	res, err := w.Until(context.Background(), Present(key))
	require.NoError(t, err)
	require.Equal(t, 4, res.Attempts)
	require.Equal(t, 4, *calls)
	require.Equal(t, 3, s.calls)
	for _, d := range s.delays {
		require.Equal(t, 250*time.Millisecond, d)
	}
}

func TestUntilHasNoAttemptLimit(t *testing.T) {
	const n = 100000
	l, _ := visibleAfter(n, key)
	s := &countingSleeper{}
	w := New(l, time.Hour, WithSleeper(s))

	res, err := w.Until(context.Background(), Present(key))
	require.NoError(t, err)
	require.Equal(t, n, res.Attempts)
	require.Equal(t, n-1, s.calls)
}

func TestUntilTimesOutThroughContext(t *testing.T) {
	l, _ := visibleAfter(1 << 30)
	w := New(l, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	res, err := w.Until(ctx, Present(key))

	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	require.GreaterOrEqual(t, te.Attempts, 1)
	require.Equal(t, 0, te.LastSeen)
	require.Equal(t, te.Attempts, res.Attempts)
}

func TestUntilOnCancelledContextDoesNotList(t *testing.T) {
	l, calls := visibleAfter(1, key)
	w := New(l, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := w.Until(ctx, Present(key))
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, *calls)
}

func TestUntilReturnsListErrorsWithoutRetrying(t *testing.T) {
	calls := 0
	l := ListFunc(func(ctx context.Context) ([]model.Key, error) {
		calls++
		return nil, &api.Error{Op: "list", Kind: api.ErrTransport, Status: 503}
	})
	w := New(l, time.Millisecond, WithSleeper(&countingSleeper{}))

	_, err := w.Until(context.Background(), Present(key))
	require.ErrorIs(t, err, api.ErrTransport)
	require.False(t, errors.Is(err, ErrTimeout), "api errors are not timeouts")
	require.Equal(t, 1, calls)
}

func TestUntilTreatsListInterruptedByDeadlineAsTimeout(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	l := ListFunc(func(ctx context.Context) ([]model.Key, error) {
		cancel()
		return nil, &api.Error{Op: "list", Kind: api.ErrTransport, Err: ctx.Err()}
	})
	w := New(l, time.Millisecond)

	_, err := w.Until(ctx, Present(key))
	require.ErrorIs(t, err, ErrTimeout)
}

func TestUntilStopsOnSleeperFailure(t *testing.T) {
	l, calls := visibleAfter(1 << 30)
	stop := errors.New("sleeper gave up")
	s := SleeperFunc(func(ctx context.Context, d time.Duration) error { return stop })
	w := New(l, time.Second, WithSleeper(s))

	res, err := w.Until(context.Background(), Present(key))
	require.ErrorIs(t, err, ErrTimeout)
	require.ErrorIs(t, err, stop)
	require.Equal(t, 1, *calls)
	require.Equal(t, 1, res.Attempts)
}

func TestSleeperTimerFiresAfterSleep(t *testing.T) {
	s := &countingSleeper{}
	tm := &sleeperTimer{ctx: context.Background(), sleeper: s, c: make(chan time.Time, 1)}
	tm.Start(3 * time.Second)
	tm.Start(3 * time.Second) // a pending tick is not duplicated
	select {
	case <-tm.C():
	default:
		t.Fatal("timer did not fire after the sleep")
	}
	require.Equal(t, 2, s.calls)
	require.Equal(t, []time.Duration{3 * time.Second, 3 * time.Second}, s.delays)
	require.NoError(t, tm.err)
}

func TestUntilRecordsMetrics(t *testing.T) {
	m := metrics.New()
	l, _ := visibleAfter(2, key)
	w := New(l, time.Millisecond, WithSleeper(&countingSleeper{}), WithMetrics(m))

	_, err := w.Until(context.Background(), Present(key))
	require.NoError(t, err)
	require.Equal(t, 1, testutil.CollectAndCount(m.WaiterSeconds))
}

func TestTimerSleeper(t *testing.T) {
	require.NoError(t, TimerSleeper.Sleep(context.Background(), time.Millisecond))
	require.NoError(t, TimerSleeper.Sleep(context.Background(), 0))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	require.ErrorIs(t, TimerSleeper.Sleep(ctx, time.Hour), context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}

func TestPredicates(t *testing.T) {
	renamed := key
	renamed.Name = "Test-1Updated"
	other := model.Key{ID: "2", Fingerprint: "cc", Name: "other", PublicKey: "ssh-ed25519 BBBB"}

	require.True(t, Present(key)([]model.Key{other, key}))
	require.False(t, Present(key)([]model.Key{renamed}), "present checks the name too")

	require.False(t, RenameVisible(renamed)([]model.Key{key}), "still old name")
	require.False(t, RenameVisible(renamed)([]model.Key{key, renamed}), "old and new listed side by side")
	require.True(t, RenameVisible(renamed)([]model.Key{renamed, other}))

	require.True(t, NameListed("other")([]model.Key{other}))
	require.False(t, NameListed("nope")([]model.Key{other}))

	require.False(t, Absent(key.ID)([]model.Key{renamed}))
	require.True(t, Absent(key.ID)([]model.Key{other}))

	require.True(t, All(Absent(key.ID), NameListed("other"))([]model.Key{other}))
	require.False(t, All(Absent(key.ID), NameListed("x"))([]model.Key{other}))

	require.True(t, Listed(key.ID)([]model.Key{renamed}))
	require.True(t, FingerprintListed("cc")([]model.Key{other}))
	require.False(t, FingerprintListed("aa:bb")([]model.Key{other}))
	require.True(t, Not(FingerprintListed("aa:bb"))([]model.Key{other}))
}
