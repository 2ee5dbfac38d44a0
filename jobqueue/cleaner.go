package jobqueue

import (
	"context"
)

func (w *Worker) cleanerLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if w.stopFetch.Load() {
			return
		}

		if err := w.q.CleanupOnce(
			ctx,
			w.cfg.RetainSucceeded,
			w.cfg.RetainDead,
			w.cfg.CleanBatchSize,
			w.cfg.MaxBatchesPerClean,
		); err != nil {
			w.logf("cleaner error: %v", err)
		}

		sleepWithJitter(ctx, w.cfg.CleanInterval, w.cfg.CleanJitterPct)
	}
}
