package sweep

import (
	"context"
	"errors"
	"time"
)

// RunEvery sweeps once per interval until ctx is done. Each run gets its own
// timeout so a stuck upstream call cannot stall the loop.
func (s *Sweeper) RunEvery(ctx context.Context, interval, timeout time.Duration) {
	if interval <= 0 {
		return
	}

	s.logger.Info().Dur("interval", interval).Msg("scheduled sweeps enabled")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.scheduledRun(ctx, timeout)
		}
	}
}

func (s *Sweeper) scheduledRun(ctx context.Context, timeout time.Duration) {
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := s.Run(runCtx, s.cfg.AuthKey)
	switch {
	case err == nil:
	case errors.Is(err, ErrSweepInProgress):
		s.logger.Info().Msg("scheduled sweep skipped, another sweep is running")
	default:
		s.logger.Error().Err(err).Msg("scheduled sweep failed")
	}
}
