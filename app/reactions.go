package app

import (
	"context"
	"fmt"
	"time"

	"nightlight/jobqueue"
	"nightlight/model"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type AddReactionParams struct {
	VenueID   uuid.UUID
	UserID    uuid.UUID
	Emoji     string
	ExpiresAt time.Time
}

// AddReaction records the (user, emoji) entry on a venue and schedules its
// expiry. Re-reacting with the same emoji refreshes the expiry: the previous
// job is cancelled and replaced, keeping at most one outstanding job per
// reaction.
func (a *App) AddReaction(ctx context.Context, p AddReactionParams) error {
	if p.Emoji == "" {
		return &InvalidArgumentError{Msg: "emoji is required"}
	}
	if p.ExpiresAt.IsZero() {
		return &InvalidArgumentError{Msg: "expiry time is required"}
	}

	prevQueueID, err := a.st.UpsertReaction(ctx, model.Reaction{
		VenueID:   p.VenueID,
		UserID:    p.UserID,
		Emoji:     p.Emoji,
		ExpiresAt: p.ExpiresAt,
	})
	if err != nil {
		return fmt.Errorf("upsert reaction failed: %w", err)
	}

	if prevQueueID != nil {
		if err := a.queue.Cancel(ctx, *prevQueueID); err != nil {
			a.log.Warn("cancel superseded reaction job failed", zap.Stringer("venue", p.VenueID), zap.Error(err))
		}
	}

	jobID, err := a.queue.Enqueue(ctx, venueJobGroup(p.VenueID), JobReactionExpire, ReactionExpirePayload{
		VenueID: p.VenueID,
		UserID:  p.UserID,
		Emoji:   p.Emoji,
	}, &jobqueue.EnqueueOptions{RunAfter: &p.ExpiresAt})
	if err != nil {
		if _, _, derr := a.st.DeleteReaction(ctx, p.VenueID, p.UserID, p.Emoji); derr != nil {
			a.log.Error("reaction rollback failed", zap.Stringer("venue", p.VenueID), zap.Error(derr))
		}
		return fmt.Errorf("enqueue reaction expire job failed: %w", err)
	}

	if err := a.st.SetReactionQueueID(ctx, p.VenueID, p.UserID, p.Emoji, jobID); err != nil {
		return fmt.Errorf("store reaction queue id failed: %w", err)
	}

	return nil
}

// RemoveReaction is the user toggling the reaction off. Removing a reaction
// that is already gone is a no-op, so toggle-off and expiry can race freely.
func (a *App) RemoveReaction(ctx context.Context, venueID, userID uuid.UUID, emoji string) error {
	queueID, removed, err := a.st.DeleteReaction(ctx, venueID, userID, emoji)
	if err != nil {
		return fmt.Errorf("delete reaction failed: %w", err)
	}
	if !removed {
		return nil
	}

	if queueID != nil {
		if err := a.queue.Cancel(ctx, *queueID); err != nil {
			a.log.Warn("cancel reaction expire job failed", zap.Stringer("venue", venueID), zap.Error(err))
		}
	}

	return nil
}

func (a *App) GetVenue(ctx context.Context, id uuid.UUID) (model.Venue, error) {
	return a.st.GetVenue(ctx, id)
}

func (a *App) CreateVenue(ctx context.Context, name, address string) (model.Venue, error) {
	if name == "" {
		return model.Venue{}, &InvalidArgumentError{Msg: "venue name is required"}
	}
	v := model.Venue{Name: name, Address: address}
	if err := a.st.CreateVenue(ctx, &v); err != nil {
		return model.Venue{}, fmt.Errorf("create venue failed: %w", err)
	}
	return v, nil
}
