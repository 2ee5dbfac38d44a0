package app

import (
	"context"
	"fmt"
	"time"

	"nightlight/jobqueue"
	"nightlight/model"
	"nightlight/notify"
	"nightlight/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type CreateGroupParams struct {
	Name           string
	CreatorID      uuid.UUID
	Invited        []uuid.UUID
	ExpirationDate time.Time
}

// CreateGroup persists the group, schedules its expiry job and stores the job
// handle back on the group. An expiration date in the past is allowed: the job
// is due immediately and the group expires on the next worker pass.
//
// If the enqueue fails, the group write is rolled back and the error is
// surfaced. A group without a pending expire job would never leave on its own.
func (a *App) CreateGroup(ctx context.Context, p CreateGroupParams) (model.Group, error) {
	if p.Name == "" {
		return model.Group{}, &InvalidArgumentError{Msg: "group name is required"}
	}
	if p.CreatorID == uuid.Nil {
		return model.Group{}, &InvalidArgumentError{Msg: "creator id is required"}
	}
	if p.ExpirationDate.IsZero() {
		return model.Group{}, &InvalidArgumentError{Msg: "expiration date is required"}
	}

	g := model.Group{
		Name:           p.Name,
		CreatorID:      p.CreatorID,
		Members:        []uuid.UUID{p.CreatorID},
		Invited:        p.Invited,
		ExpirationDate: p.ExpirationDate,
	}
	if err := a.st.CreateGroup(ctx, &g); err != nil {
		return model.Group{}, fmt.Errorf("create group failed: %w", err)
	}

	if err := a.st.SetCurrentGroup(ctx, g.Members, g.ID); err != nil {
		return model.Group{}, fmt.Errorf("set current group failed: %w", err)
	}
	if err := a.st.AddInvitedGroup(ctx, g.Invited, g.ID); err != nil {
		return model.Group{}, fmt.Errorf("add invited group failed: %w", err)
	}

	jobID, err := a.queue.Enqueue(ctx, groupJobGroup(g.ID), JobGroupExpire, GroupExpirePayload{GroupID: g.ID}, &jobqueue.EnqueueOptions{
		RunAfter: &g.ExpirationDate,
	})
	if err != nil {
		a.rollbackGroup(ctx, g.ID)
		return model.Group{}, fmt.Errorf("enqueue group expire job failed: %w", err)
	}

	if err := a.st.SetGroupQueueID(ctx, g.ID, jobID); err != nil {
		return model.Group{}, fmt.Errorf("store group queue id failed: %w", err)
	}
	g.QueueID = &jobID

	a.notifier.Send(ctx, g.Invited, notify.KindGroupInvite, map[string]string{
		"groupId":   g.ID.String(),
		"groupName": g.Name,
	}, false)

	return g, nil
}

func (a *App) rollbackGroup(ctx context.Context, id uuid.UUID) {
	if _, err := a.st.DeleteGroup(ctx, id); err != nil {
		a.log.Error("group rollback failed", zap.Stringer("group", id), zap.Error(err))
		return
	}
	if err := a.st.ClearCurrentGroup(ctx, id); err != nil {
		a.log.Error("group rollback: clear members failed", zap.Stringer("group", id), zap.Error(err))
	}
	if err := a.st.PullInvitedGroup(ctx, id); err != nil {
		a.log.Error("group rollback: pull invites failed", zap.Stringer("group", id), zap.Error(err))
	}
}

// DeleteGroup is the user-initiated teardown. It cancels the pending expire
// job; if the cancel loses the race with the worker, the expire handler finds
// the group already gone and does nothing.
func (a *App) DeleteGroup(ctx context.Context, id uuid.UUID) error {
	d, err := a.st.DeleteGroup(ctx, id)
	if err != nil {
		return fmt.Errorf("delete group failed: %w", err)
	}
	if d == nil {
		return store.ErrNotFound
	}

	if d.QueueID != nil {
		if err := a.queue.Cancel(ctx, *d.QueueID); err != nil {
			// Advisory only; the conditional handler absorbs a late fire.
			a.log.Warn("cancel group expire job failed", zap.Stringer("group", id), zap.Error(err))
		}
	}

	if err := a.st.ClearCurrentGroup(ctx, id); err != nil {
		return fmt.Errorf("clear members failed: %w", err)
	}
	if err := a.st.PullInvitedGroup(ctx, id); err != nil {
		return fmt.Errorf("pull invites failed: %w", err)
	}

	return nil
}

func (a *App) GetGroup(ctx context.Context, id uuid.UUID) (model.Group, error) {
	return a.st.GetGroup(ctx, id)
}
