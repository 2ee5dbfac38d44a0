package app

import (
	"context"
	"fmt"
	"time"

	"nightlight/jobqueue"
	"nightlight/model"
	"nightlight/notify"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type SendPingParams struct {
	SenderID           uuid.UUID
	RecipientID        uuid.UUID
	VenueID            *uuid.UUID
	Message            string
	ExpirationDateTime time.Time
}

// SendPing persists the ping in SENT, schedules the expiry job and notifies
// the recipient. Enqueue failure rolls the ping back.
func (a *App) SendPing(ctx context.Context, p SendPingParams) (model.Ping, error) {
	if p.SenderID == uuid.Nil || p.RecipientID == uuid.Nil {
		return model.Ping{}, &InvalidArgumentError{Msg: "sender and recipient are required"}
	}
	if p.SenderID == p.RecipientID {
		return model.Ping{}, &InvalidArgumentError{Msg: "cannot ping yourself"}
	}
	if p.ExpirationDateTime.IsZero() {
		return model.Ping{}, &InvalidArgumentError{Msg: "expiration time is required"}
	}

	ping := model.Ping{
		SenderID:           p.SenderID,
		RecipientID:        p.RecipientID,
		VenueID:            p.VenueID,
		Message:            p.Message,
		Status:             model.PingSent,
		ExpirationDateTime: p.ExpirationDateTime,
	}
	if err := a.st.CreatePing(ctx, &ping); err != nil {
		return model.Ping{}, fmt.Errorf("create ping failed: %w", err)
	}

	jobID, err := a.queue.Enqueue(ctx, pingJobGroup(ping.ID), JobPingExpire, PingExpirePayload{PingID: ping.ID}, &jobqueue.EnqueueOptions{
		RunAfter: &ping.ExpirationDateTime,
	})
	if err != nil {
		if derr := a.st.DeletePing(ctx, ping.ID); derr != nil {
			a.log.Error("ping rollback failed", zap.Stringer("ping", ping.ID), zap.Error(derr))
		}
		return model.Ping{}, fmt.Errorf("enqueue ping expire job failed: %w", err)
	}

	if err := a.st.SetPingQueueID(ctx, ping.ID, jobID); err != nil {
		return model.Ping{}, fmt.Errorf("store ping queue id failed: %w", err)
	}
	ping.QueueID = &jobID

	sender, err := a.st.GetUser(ctx, p.SenderID)
	senderName := "Someone"
	if err == nil {
		senderName = sender.Name
	}
	a.notifier.Send(ctx, []uuid.UUID{p.RecipientID}, notify.KindPingReceived, map[string]string{
		"pingId":     ping.ID.String(),
		"senderName": senderName,
		"message":    ping.Message,
	}, false)

	return ping, nil
}

// RespondPing applies SENT -> RESPONDED_OKAY | RESPONDED_NOT_OKAY and cancels
// the pending expire job. Only SENT pings can be responded to; a ping that
// already expired (or was already answered) returns ErrPingResolved.
func (a *App) RespondPing(ctx context.Context, id uuid.UUID, status model.PingStatus) error {
	if !status.IsResponse() {
		return &InvalidArgumentError{Msg: fmt.Sprintf("invalid response status: %s", status)}
	}

	queueID, ok, err := a.st.RespondPing(ctx, id, status)
	if err != nil {
		return fmt.Errorf("respond ping failed: %w", err)
	}
	if !ok {
		return ErrPingResolved
	}

	if queueID != nil {
		if err := a.queue.Cancel(ctx, *queueID); err != nil {
			a.log.Warn("cancel ping expire job failed", zap.Stringer("ping", id), zap.Error(err))
		}
	}

	return nil
}

func (a *App) GetPing(ctx context.Context, id uuid.UUID) (model.Ping, error) {
	return a.st.GetPing(ctx, id)
}
