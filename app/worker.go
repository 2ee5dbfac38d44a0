package app

import (
	"context"
	"encoding/json"
	"fmt"

	"nightlight/jobqueue"

	"go.uber.org/zap"
)

func (a *App) HandlerFunc() jobqueue.Handler {
	return func(ctx context.Context, job jobqueue.Job) error {
		switch job.Type {
		case JobGroupExpire:
			p := GroupExpirePayload{}
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				return jobqueue.Permanent(fmt.Errorf("failed to unmarshal payload: %w", err))
			}
			return a.handleGroupExpire(ctx, p)
		case JobReactionExpire:
			p := ReactionExpirePayload{}
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				return jobqueue.Permanent(fmt.Errorf("failed to unmarshal payload: %w", err))
			}
			return a.handleReactionExpire(ctx, p)
		case JobPingExpire:
			p := PingExpirePayload{}
			if err := json.Unmarshal(job.Payload, &p); err != nil {
				return jobqueue.Permanent(fmt.Errorf("failed to unmarshal payload: %w", err))
			}
			return a.handlePingExpire(ctx, p)
		default:
			// Unknown types complete without effect so a rolling deploy with
			// newer producers does not wedge older workers.
			a.log.Warn("unknown job type", zap.String("type", job.Type), zap.Stringer("job", job.ID))
			return nil
		}
	}
}
