package command

import (
	"context"
	"log/slog"
	"time"

	"scout/internal/logging"
)

// Scheduler periodically persists the region cache when it has pending
// mutations. Flush requests travel over a bounded channel to a single owner
// goroutine, so disk writes never overlap and a burst of requests collapses
// into one flush.
type Scheduler struct {
	cmdCtx   *Context
	interval time.Duration
	logger   *slog.Logger
	requests chan struct{}
}

// NewScheduler builds the flush scheduler. interval governs how often the
// dirty flag is checked.
func NewScheduler(cmdCtx *Context, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scheduler{
		cmdCtx:   cmdCtx,
		interval: interval,
		logger:   logging.NewComponentLogger(logger, "scheduler"),
		requests: make(chan struct{}, 1),
	}
}

// Kick requests a flush outside the regular cadence. A flush already queued
// absorbs the request.
func (s *Scheduler) Kick() {
	select {
	case s.requests <- struct{}{}:
	default:
	}
}

// Run drives the scheduler until ctx is cancelled, then attempts one final
// flush if mutations are still pending. It blocks; run it on its own
// goroutine.
func (s *Scheduler) Run(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-s.requests:
				s.flush()
			case <-ctx.Done():
				return
			}
		}
	}()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if s.cmdCtx.TestAndClearDirty() {
				s.Kick()
			}
		case <-ctx.Done():
			<-done
			// Best effort on the way out: cover both a queued request the
			// flusher never consumed and a freshly raised dirty flag.
			pending := false
			select {
			case <-s.requests:
				pending = true
			default:
			}
			if s.cmdCtx.TestAndClearDirty() || pending {
				s.flush()
			}
			return
		}
	}
}

func (s *Scheduler) flush() {
	if err := s.cmdCtx.Cache().Save(); err != nil {
		// Memory stays authoritative; retry on the next cycle.
		s.logger.Error("cache flush failed", logging.Error(err))
		s.cmdCtx.MarkCacheDirty()
		return
	}
	s.logger.Debug("cache flushed",
		logging.Int("entry_count", s.cmdCtx.Cache().Len()))
}
