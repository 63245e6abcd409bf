package backfill

import (
	"context"
	"time"

	"github.com/hiiliketocode/polycopy-sub003/internal/traders"
	"github.com/rs/zerolog/log"
)

type Processor struct {
	queue    *Queue
	traders  *traders.Service
	interval time.Duration // Time between queue drains
}

func NewProcessor(queue *Queue, tradersService *traders.Service, interval time.Duration) *Processor {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Processor{
		queue:    queue,
		traders:  tradersService,
		interval: interval,
	}
}

// Start begins the backfill processing loop
func (p *Processor) Start(ctx context.Context) {
	logger := log.With().Str("component", "backfill_processor").Logger()
	logger.Info().Msg("starting backfill processor")

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("shutting down backfill processor")
			return
		case <-ticker.C:
			if err := p.drainPending(); err != nil {
				logger.Error().Err(err).Msg("failed to drain backfill queue")
			}
		}
	}
}

func (p *Processor) drainPending() error {
	logger := log.With().Str("component", "backfill_processor").Logger()

	jobs, err := p.queue.PendingJobs(50)
	if err != nil {
		return err
	}
	if len(jobs) == 0 {
		return nil
	}

	logger.Info().Int("pending_count", len(jobs)).Msg("processing backfill jobs")

	for i := range jobs {
		job := &jobs[i]
		if err := p.traders.RecomputeTraderAggregates(job.Wallet); err != nil {
			logger.Error().
				Err(err).
				Str("wallet", job.Wallet).
				Int("attempts", job.Attempts+1).
				Msg("backfill job failed")
			if ferr := p.queue.Fail(job, err); ferr != nil {
				logger.Error().Err(ferr).Str("wallet", job.Wallet).Msg("failed to record job failure")
			}
			continue
		}
		if err := p.queue.Complete(job); err != nil {
			logger.Error().Err(err).Str("wallet", job.Wallet).Msg("failed to mark job done")
		}
	}

	return nil
}

// DrainOnce runs a single queue drain outside the ticker loop, used by the
// internal trigger endpoint.
func (p *Processor) DrainOnce() error {
	return p.drainPending()
}
