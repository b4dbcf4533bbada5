package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/techcorp/taskflow-support/internal/conversation"
	"github.com/techcorp/taskflow-support/internal/queue"
)

// Sweep defaults.
const (
	DefaultSweepInterval = 10 * time.Minute
	DefaultPurgeAfter    = 24 * time.Hour
	DefaultCloseBatch    = 100
)

// Sweeper runs the periodic maintenance pass: auto-resolving conversations
// idle past the inactivity window and purging processed queue entries old
// enough to be useless for debugging.
type Sweeper struct {
	Queue         *queue.Queue
	Conversations *conversation.Manager
	Log           zerolog.Logger

	Interval   time.Duration
	PurgeAfter time.Duration
	CloseBatch int
}

// Run sweeps on a fixed interval until ctx is canceled. The first sweep
// happens immediately so a restart doesn't defer overdue closures.
func (s *Sweeper) Run(ctx context.Context) error {
	interval := s.Interval
	if interval <= 0 {
		interval = DefaultSweepInterval
	}

	s.Sweep(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep performs one maintenance pass. Failures are logged, not returned;
// the next tick retries.
func (s *Sweeper) Sweep(ctx context.Context) {
	batch := s.CloseBatch
	if batch <= 0 {
		batch = DefaultCloseBatch
	}
	closed, err := s.Conversations.CloseInactive(ctx, time.Now().UTC(), batch)
	if err != nil {
		s.Log.Error().Err(err).Msg("close inactive failed")
	} else if len(closed) > 0 {
		sweepClosed.Add(float64(len(closed)))
		s.Log.Info().Int("closed", len(closed)).Msg("inactive conversations resolved")
	}

	purgeAfter := s.PurgeAfter
	if purgeAfter <= 0 {
		purgeAfter = DefaultPurgeAfter
	}
	purged, err := s.Queue.Purge(ctx, purgeAfter)
	if err != nil {
		s.Log.Error().Err(err).Msg("queue purge failed")
	} else if purged > 0 {
		s.Log.Info().Int64("purged", purged).Msg("processed queue entries purged")
	}
}
