package app

import (
	"context"
	"fmt"

	"nightlight/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// The expire handlers below are conditional state transitions. Delivery is
// at-least-once and a cancel can lose the race with a fire, so each handler
// checks that the entity is still in the expirable state and quietly returns
// nil when it is not. Side effects (notifications) only happen on the run
// that actually applied the transition.

func (a *App) handleGroupExpire(ctx context.Context, p GroupExpirePayload) error {
	d, err := a.st.DeleteGroup(ctx, p.GroupID)
	if err != nil {
		return fmt.Errorf("delete group failed: %w", err)
	}
	if d == nil {
		// Already deleted, either by a user or an earlier attempt.
		return nil
	}

	if err := a.st.ClearCurrentGroup(ctx, p.GroupID); err != nil {
		return fmt.Errorf("clear members failed: %w", err)
	}
	if err := a.st.PullInvitedGroup(ctx, p.GroupID); err != nil {
		return fmt.Errorf("pull invites failed: %w", err)
	}

	a.notifier.Send(ctx, d.Members, notify.KindGroupExpired, map[string]string{
		"groupId":   p.GroupID.String(),
		"groupName": d.Name,
	}, false)

	a.log.Info("group expired", zap.Stringer("group", p.GroupID), zap.Int("members", len(d.Members)))
	return nil
}

func (a *App) handleReactionExpire(ctx context.Context, p ReactionExpirePayload) error {
	_, removed, err := a.st.DeleteReaction(ctx, p.VenueID, p.UserID, p.Emoji)
	if err != nil {
		return fmt.Errorf("delete reaction failed: %w", err)
	}
	if removed {
		a.log.Info("reaction expired",
			zap.Stringer("venue", p.VenueID),
			zap.Stringer("user", p.UserID),
			zap.String("emoji", p.Emoji))
	}
	return nil
}

func (a *App) handlePingExpire(ctx context.Context, p PingExpirePayload) error {
	senderID, recipientID, ok, err := a.st.ExpirePing(ctx, p.PingID)
	if err != nil {
		return fmt.Errorf("expire ping failed: %w", err)
	}
	if !ok {
		// The ping was answered, or a previous attempt already expired it.
		return nil
	}

	data := map[string]string{"pingId": p.PingID.String()}
	a.notifier.Send(ctx, []uuid.UUID{senderID}, notify.KindPingExpiredSender, data, false)
	a.notifier.Send(ctx, []uuid.UUID{recipientID}, notify.KindPingExpiredRecipient, data, false)

	a.log.Info("ping expired", zap.Stringer("ping", p.PingID))
	return nil
}
