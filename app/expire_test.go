package app_test

import (
	"encoding/json"
	"time"

	"nightlight/app"
	"nightlight/jobqueue"
	"nightlight/notify"
	"nightlight/store"

	"github.com/google/uuid"
)

func (t *TestSuite) Test_Group_Expires() {
	creator := t.createUser("alice", "tok-alice")
	invitee := t.createUser("bob", "tok-bob")

	g, err := t.app.CreateGroup(t.T().Context(), app.CreateGroupParams{
		Name:           "friday",
		CreatorID:      creator.ID,
		Invited:        []uuid.UUID{invitee.ID},
		ExpirationDate: time.Now(),
	})
	t.Require().NoError(err)
	t.Require().NotNil(g.QueueID)

	t.Require().NoError(t.worker.Drain(t.T().Context()))

	t.Run("group is gone", func() {
		_, err := t.app.GetGroup(t.T().Context(), g.ID)
		t.Require().ErrorIs(err, store.ErrNotFound)
	})

	t.Run("job succeeded", func() {
		t.Require().Equal(jobqueue.StatusSucceeded, t.jobStatus(*g.QueueID))
	})

	t.Run("membership cleared", func() {
		u, err := t.st.GetUser(t.T().Context(), creator.ID)
		t.Require().NoError(err)
		t.Require().Nil(u.CurrentGroup)
	})

	t.Run("invite pulled", func() {
		u, err := t.st.GetUser(t.T().Context(), invitee.ID)
		t.Require().NoError(err)
		t.Require().NotContains(u.InvitedGroups, g.ID)
	})

	t.Run("members notified", func() {
		ns := t.notificationsOfKind(creator.ID, notify.KindGroupExpired)
		t.Require().Len(ns, 1)
		t.Require().Equal("friday", ns[0].Data["groupName"])
	})
}

func (t *TestSuite) Test_Group_DeleteCancelsExpiry() {
	creator := t.createUser("alice")

	g, err := t.app.CreateGroup(t.T().Context(), app.CreateGroupParams{
		Name:           "saturday",
		CreatorID:      creator.ID,
		ExpirationDate: time.Now().Add(1 * time.Hour),
	})
	t.Require().NoError(err)
	t.Require().NotNil(g.QueueID)
	t.Require().True(t.jobExists(*g.QueueID))

	t.Require().NoError(t.app.DeleteGroup(t.T().Context(), g.ID))

	t.Run("job canceled", func() {
		t.Require().False(t.jobExists(*g.QueueID))
	})

	t.Run("group is gone", func() {
		_, err := t.app.GetGroup(t.T().Context(), g.ID)
		t.Require().ErrorIs(err, store.ErrNotFound)
	})

	t.Run("second delete reports not found", func() {
		t.Require().ErrorIs(t.app.DeleteGroup(t.T().Context(), g.ID), store.ErrNotFound)
	})

	t.Run("no expiry notification", func() {
		t.Require().Empty(t.notificationsOfKind(creator.ID, notify.KindGroupExpired))
	})
}

func (t *TestSuite) Test_Group_InviteesNotified() {
	creator := t.createUser("alice")
	inviteeA := t.createUser("bob")
	inviteeB := t.createUser("carol")

	_, err := t.app.CreateGroup(t.T().Context(), app.CreateGroupParams{
		Name:           "sunday",
		CreatorID:      creator.ID,
		Invited:        []uuid.UUID{inviteeA.ID, inviteeB.ID},
		ExpirationDate: time.Now().Add(1 * time.Hour),
	})
	t.Require().NoError(err)

	t.Require().Len(t.notificationsOfKind(inviteeA.ID, notify.KindGroupInvite), 1)
	t.Require().Len(t.notificationsOfKind(inviteeB.ID, notify.KindGroupInvite), 1)
	t.Require().Empty(t.notificationsOfKind(creator.ID, notify.KindGroupInvite))
}

func (t *TestSuite) Test_Reaction_Expires() {
	user := t.createUser("alice")
	venue, err := t.app.CreateVenue(t.T().Context(), "the spot", "1 main st")
	t.Require().NoError(err)

	err = t.app.AddReaction(t.T().Context(), app.AddReactionParams{
		VenueID:   venue.ID,
		UserID:    user.ID,
		Emoji:     "🔥",
		ExpiresAt: time.Now(),
	})
	t.Require().NoError(err)

	t.Require().NoError(t.worker.Drain(t.T().Context()))

	v, err := t.app.GetVenue(t.T().Context(), venue.ID)
	t.Require().NoError(err)
	t.Require().Empty(v.Reactions)
}

func (t *TestSuite) Test_Reaction_RefreshReplacesJob() {
	user := t.createUser("alice")
	venue, err := t.app.CreateVenue(t.T().Context(), "the spot", "")
	t.Require().NoError(err)

	add := func(expiresAt time.Time) {
		t.Require().NoError(t.app.AddReaction(t.T().Context(), app.AddReactionParams{
			VenueID:   venue.ID,
			UserID:    user.ID,
			Emoji:     "🍕",
			ExpiresAt: expiresAt,
		}))
	}

	add(time.Now().Add(1 * time.Hour))

	v, err := t.app.GetVenue(t.T().Context(), venue.ID)
	t.Require().NoError(err)
	t.Require().Len(v.Reactions, 1)
	t.Require().NotNil(v.Reactions[0].QueueID)
	firstJob := *v.Reactions[0].QueueID

	add(time.Now().Add(2 * time.Hour))

	t.Run("old job replaced", func() {
		t.Require().False(t.jobExists(firstJob))

		v, err := t.app.GetVenue(t.T().Context(), venue.ID)
		t.Require().NoError(err)
		t.Require().Len(v.Reactions, 1)
		t.Require().NotNil(v.Reactions[0].QueueID)
		t.Require().NotEqual(firstJob, *v.Reactions[0].QueueID)
		t.Require().True(t.jobExists(*v.Reactions[0].QueueID))
	})

	t.Run("toggle off cancels", func() {
		v, err := t.app.GetVenue(t.T().Context(), venue.ID)
		t.Require().NoError(err)
		jobID := *v.Reactions[0].QueueID

		t.Require().NoError(t.app.RemoveReaction(t.T().Context(), venue.ID, user.ID, "🍕"))
		t.Require().False(t.jobExists(jobID))
	})

	t.Run("toggle off again is a no-op", func() {
		t.Require().NoError(t.app.RemoveReaction(t.T().Context(), venue.ID, user.ID, "🍕"))
	})
}

func (t *TestSuite) Test_Reaction_ExpiryAfterRemovalIsNoop() {
	user := t.createUser("alice")
	venue, err := t.app.CreateVenue(t.T().Context(), "the spot", "")
	t.Require().NoError(err)

	// Simulate a cancel losing the race: an expire job fires for a reaction
	// that no longer exists.
	payload, err := json.Marshal(map[string]any{
		"venueId": venue.ID,
		"userId":  user.ID,
		"emoji":   "👻",
	})
	t.Require().NoError(err)

	jobID, err := t.queue.Enqueue(t.T().Context(), "venue|"+venue.ID.String(), "reactionExpire", json.RawMessage(payload), nil)
	t.Require().NoError(err)

	t.Require().NoError(t.worker.Drain(t.T().Context()))
	t.Require().Equal(jobqueue.StatusSucceeded, t.jobStatus(jobID))
}

func (t *TestSuite) Test_UnknownJobType_CompletesWithoutEffect() {
	jobID, err := t.queue.Enqueue(t.T().Context(), "misc", "somethingNew", map[string]string{"k": "v"}, nil)
	t.Require().NoError(err)

	t.Require().NoError(t.worker.Drain(t.T().Context()))
	t.Require().Equal(jobqueue.StatusSucceeded, t.jobStatus(jobID))
}
