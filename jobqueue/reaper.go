package jobqueue

import (
	"context"
)

func (w *Worker) reaperLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if w.stopFetch.Load() {
			return
		}

		if err := w.q.ReapExpiredRunning(ctx); err != nil {
			w.logf("reaper error: %v", err)
		}

		sleepWithJitter(ctx, w.cfg.ReapInterval, w.cfg.ReapJitterPct)
	}
}
