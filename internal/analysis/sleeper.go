package analysis

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// Sleeper waits between retry attempts.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper waits on a clockwork.Clock and gives up when ctx is done.
type ClockSleeper struct {
	Clock clockwork.Clock
}

// NewClockSleeper returns a sleeper on clock, or on the real clock if nil.
func NewClockSleeper(clock clockwork.Clock) ClockSleeper {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return ClockSleeper{Clock: clock}
}

func (s ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := s.Clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.Chan():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
