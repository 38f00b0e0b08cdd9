package drive

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/metrics"
)

// Session is one engagement of drive mode. It is owned by a single goroutine.
type Session struct {
	ID     string
	engine *Engine
	log    zerolog.Logger
	m      *metrics.Metrics
	ticks  uint64
}

func NewSession(id string, engine *Engine, logger *zerolog.Logger, m *metrics.Metrics) *Session {
	if logger == nil {
		l := defaultLogger
		logger = &l
	}
	return &Session{
		ID:     id,
		engine: engine,
		log:    logger.With().Str("session", id).Logger(),
		m:      m,
	}
}

func (s *Session) Engine() *Engine { return s.engine }

// Ticks returns the number of completed engine steps.
func (s *Session) Ticks() uint64 { return s.ticks }

// Run drives the engine from source until the deactivation hotkey is seen,
// the source fails, or ctx is cancelled. The engine is reset on every exit.
func (s *Session) Run(ctx context.Context, source SnapshotSource, sched *Scheduler) error {
	started := sched.Clock().Now()
	s.m.SessionStarted()
	s.log.Info().Dur("period", sched.Period()).Msg("drive mode engaged")

	defer func() {
		s.engine.Reset()
		s.m.SessionEnded(sched.Clock().Since(started))
		s.log.Info().Uint64("ticks", s.ticks).Msg("drive mode released")
	}()

	err := sched.Run(ctx, func(now time.Time) (bool, error) {
		snap, err := source.Sample()
		if err != nil {
			return false, fmt.Errorf("sample keys: %w", err)
		}
		if snap.Deactivate {
			return false, nil
		}
		s.engine.Step(snap, now)
		s.ticks++
		return true, nil
	})
	if err != nil && ctx.Err() == nil {
		s.log.Error().Err(err).Msg("drive session aborted")
	}
	return err
}
