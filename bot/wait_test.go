package bot

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClockWaiter records requested sleeps instead of sleeping
func fakeClockWaiter(slept *[]time.Duration) *Waiter {
	return &Waiter{
		sleep: func(ctx context.Context, d time.Duration) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			*slept = append(*slept, d)
			return nil
		},
		rnd: rand.New(rand.NewSource(1)),
	}
}

func TestCountdownTicks(t *testing.T) {
	var slept []time.Duration
	w := fakeClockWaiter(&slept)

	var ticks []time.Duration
	require.NoError(t, w.Countdown(context.Background(), 3*time.Second, func(r time.Duration) {
		ticks = append(ticks, r)
	}))

	assert.Equal(t, []time.Duration{3 * time.Second, 2 * time.Second, time.Second, 0}, ticks)
	assert.Equal(t, []time.Duration{time.Second, time.Second, time.Second}, slept)
}

func TestCountdownFractionalSecond(t *testing.T) {
	var slept []time.Duration
	w := fakeClockWaiter(&slept)
	require.NoError(t, w.Countdown(context.Background(), 1500*time.Millisecond, nil))
	assert.Equal(t, []time.Duration{time.Second, 500 * time.Millisecond}, slept)
}

func TestSettlePauseRange(t *testing.T) {
	var slept []time.Duration
	w := fakeClockWaiter(&slept)

	for i := 0; i < 50; i++ {
		d, err := w.SettlePause(context.Background(), 5*time.Second, 10*time.Second, nil)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, d, 5*time.Second)
		assert.LessOrEqual(t, d, 10*time.Second)
		assert.Zero(t, d%time.Second)
	}
}

func TestCountdownInterrupted(t *testing.T) {
	w := NewWaiter()
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	err := w.Countdown(ctx, time.Hour, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestPauseZero(t *testing.T) {
	assert.NoError(t, NewWaiter().Pause(context.Background(), 0))
}
