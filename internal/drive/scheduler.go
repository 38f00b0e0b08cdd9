package drive

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/metrics"
)

// DefaultPeriod is one frame at 60 Hz.
const DefaultPeriod = 16666 * time.Microsecond

// PeriodForRate converts a refresh rate in Hz to a tick period.
func PeriodForRate(hz int) time.Duration {
	if hz <= 0 {
		return DefaultPeriod
	}
	return time.Second / time.Duration(hz)
}

// StepFunc runs one tick. Returning false ends the loop without error.
type StepFunc func(now time.Time) (bool, error)

// Scheduler runs a step at a best-effort fixed rate: after each step it
// sleeps only what is left of the period. A slow step is not compensated
// by shortening later sleeps.
type Scheduler struct {
	clock   clockwork.Clock
	period  time.Duration
	log     *zerolog.Logger
	metrics *metrics.Metrics
}

func NewScheduler(clock clockwork.Clock, period time.Duration, logger *zerolog.Logger, m *metrics.Metrics) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if period <= 0 {
		period = DefaultPeriod
	}
	if logger == nil {
		l := zerolog.Nop()
		logger = &l
	}
	return &Scheduler{clock: clock, period: period, log: logger, metrics: m}
}

func (s *Scheduler) Period() time.Duration { return s.period }

func (s *Scheduler) Clock() clockwork.Clock { return s.clock }

// Residual is how long to sleep after a step that took elapsed.
func (s *Scheduler) Residual(elapsed time.Duration) time.Duration {
	if elapsed >= s.period {
		return 0
	}
	return s.period - elapsed
}

// Run calls step until it returns false, returns an error, or ctx is done.
// ctx is only checked between steps; the sleep itself is not interrupted.
func (s *Scheduler) Run(ctx context.Context, step StepFunc) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := s.clock.Now()
		more, err := step(start)
		elapsed := s.clock.Since(start)
		s.metrics.ObserveTick(elapsed, s.period)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}

		residual := s.Residual(elapsed)
		if residual == 0 {
			s.log.Debug().Dur("elapsed", elapsed).Dur("period", s.period).Msg("tick overran its period")
			continue
		}
		s.clock.Sleep(residual)
	}
}
