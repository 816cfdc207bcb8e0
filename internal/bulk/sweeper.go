package bulk

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Run sweeps completed jobs out of the registry once their retention
// expires. Jobs are never persisted, so this is the only cleanup path.
func (o *Orchestrator) Run(ctx context.Context) {
	ticker := time.NewTicker(o.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.sweep()
		}
	}
}

func (o *Orchestrator) sweep() {
	cutoff := time.Now().UTC().Add(-o.opts.Retention)

	o.mu.Lock()
	var dropped int
	for id, job := range o.jobs {
		if !job.isCompleted() {
			continue
		}
		if done := job.completedSince(); !done.IsZero() && done.Before(cutoff) {
			delete(o.jobs, id)
			dropped++
		}
	}
	o.mu.Unlock()

	if dropped > 0 {
		o.logger.Debug("bulk_jobs_swept", zap.Int("dropped", dropped))
	}
}
