// Package sweeper reclaims stock held by abandoned reservations. Expiry is
// logical (a timestamp comparison), so expired-but-unswept reservations
// keep their stock until the next run; the interval bounds that staleness.
package sweeper

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

type Releaser interface {
	ReleaseExpired(ctx context.Context) (int, error)
}

type Sweeper struct {
	Releaser Releaser
	Interval time.Duration
	Log      zerolog.Logger

	// OnReleased is called with the count of each non-empty run.
	OnReleased func(count int)

	stop chan struct{}
	done chan struct{}
}

func New(r Releaser, interval time.Duration, log zerolog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Sweeper{
		Releaser: r,
		Interval: interval,
		Log:      log.With().Str("component", "sweeper").Logger(),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start runs the sweep loop until Stop or ctx cancellation.
func (s *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		t := time.NewTicker(s.Interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stop:
				return
			case <-t.C:
				if _, err := s.RunOnce(ctx); err != nil {
					// transient failures retry on the next tick
					s.Log.Error().Err(err).Msg("sweep failed")
				}
			}
		}
	}()
}

func (s *Sweeper) Stop() {
	close(s.stop)
	<-s.done
}

// RunOnce sweeps immediately; the deterministic entry point for tests and
// the manual admin trigger.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	released, err := s.Releaser.ReleaseExpired(ctx)
	if err != nil {
		return 0, err
	}
	if released > 0 {
		s.Log.Info().Int("released", released).Msg("expired reservations reclaimed")
		if s.OnReleased != nil {
			s.OnReleased(released)
		}
	}
	return released, nil
}
