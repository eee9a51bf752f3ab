// Package jobs runs background maintenance of booking state.
package jobs

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Completer marks elapsed confirmed bookings as completed.
type Completer interface {
	CompleteElapsedBookings(ctx context.Context) (int64, error)
}

// CompletionRecorder receives the number of bookings closed per sweep.
type CompletionRecorder interface {
	BookingsCompleted(n int64)
}

// Sweeper periodically completes bookings whose end time has passed.
type Sweeper struct {
	completer Completer
	recorder  CompletionRecorder
	interval  time.Duration
	timeout   time.Duration
	logger    *slog.Logger
}

// NewSweeper builds a sweeper ticking every interval. Each sweep is bounded
// by half the interval, capped at one minute.
func NewSweeper(completer Completer, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	timeout := interval / 2
	if timeout > time.Minute {
		timeout = time.Minute
	}
	return &Sweeper{
		completer: completer,
		interval:  interval,
		timeout:   timeout,
		logger:    logger.With("job", "booking_completion"),
	}
}

// WithRecorder attaches a metrics recorder and returns the sweeper.
func (s *Sweeper) WithRecorder(recorder CompletionRecorder) *Sweeper {
	s.recorder = recorder
	return s
}

// Run sweeps once immediately and then on every tick until ctx is done.
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.InfoContext(ctx, "sweeper started", "interval", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "sweeper stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Sweep runs a single completion pass and returns the number of bookings closed.
func (s *Sweeper) Sweep(ctx context.Context) int64 {
	if ctx.Err() != nil {
		return 0
	}
	sweepCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.completer.CompleteElapsedBookings(sweepCtx)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return 0
		}
		s.logger.ErrorContext(ctx, "sweep failed", "error", err)
		return 0
	}
	if s.recorder != nil {
		s.recorder.BookingsCompleted(n)
	}
	s.logger.DebugContext(ctx, "sweep finished", "completed", n)
	return n
}
