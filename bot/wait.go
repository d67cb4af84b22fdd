package bot

import (
	"context"
	"math/rand"
	"time"
)

// TickFunc receives the time left in a wait, once per second and once with
// zero when the wait completes. It is display only.
type TickFunc func(remaining time.Duration)

// Waiter realizes the workflow's pure delays. Display is attached through TickFunc.
type Waiter struct {
	sleep func(ctx context.Context, d time.Duration) error
	rnd   *rand.Rand
}

func NewWaiter() *Waiter {
	return &Waiter{
		sleep: sleepContext,
		rnd:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Pause blocks for d or until ctx is cancelled
func (w *Waiter) Pause(ctx context.Context, d time.Duration) error {
	return w.sleep(ctx, d)
}

// Countdown blocks for total in one-second steps, reporting the remaining time
func (w *Waiter) Countdown(ctx context.Context, total time.Duration, onTick TickFunc) error {
	for remaining := total; remaining > 0; {
		if onTick != nil {
			onTick(remaining)
		}
		step := time.Second
		if remaining < step {
			step = remaining
		}
		if err := w.sleep(ctx, step); err != nil {
			return err
		}
		remaining -= step
	}
	if onTick != nil {
		onTick(0)
	}
	return nil
}

// SettlePause waits a random whole number of seconds in [shortest, longest] and returns the chosen duration
func (w *Waiter) SettlePause(ctx context.Context, shortest, longest time.Duration, onTick TickFunc) (time.Duration, error) {
	lo, hi := int(shortest/time.Second), int(longest/time.Second)
	if hi < lo {
		hi = lo
	}
	d := time.Duration(lo+w.rnd.Intn(hi-lo+1)) * time.Second
	return d, w.Countdown(ctx, d, onTick)
}
