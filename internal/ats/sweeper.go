package ats

import (
	"context"
	"time"
)

const defaultSweepInterval = 15 * time.Minute

// StartGuestSweeper runs a background goroutine that periodically deletes
// guest analyses older than retention, along with their resumes.
func (p *Pipeline) StartGuestSweeper(ctx context.Context, retention, interval time.Duration) {
	if retention <= 0 {
		p.logger.Info("guest sweeper disabled")
		return
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		p.logger.Info("guest sweeper started", "interval", interval, "retention", retention)

		for {
			select {
			case <-ticker.C:
				p.sweepGuests(ctx, retention)
			case <-ctx.Done():
				p.logger.Info("guest sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (p *Pipeline) sweepGuests(ctx context.Context, retention time.Duration) int {
	expired, err := p.store.ListGuestAnalysesBefore(ctx, p.now().Add(-retention))
	if err != nil {
		p.logger.Error("guest sweeper failed to list expired analyses", "error", err)
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	for _, a := range expired {
		logger := p.logger.With("namespace", a.Namespace)
		p.removeAnalysis(ctx, logger, a)
		p.dropNamespace(ctx, logger, a.Namespace)
	}

	p.logger.Info("guest sweeper cleanup completed", "cleaned", len(expired))
	return len(expired)
}
