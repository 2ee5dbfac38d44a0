package app_test

import (
	"encoding/json"
	"time"

	"nightlight/app"
	"nightlight/jobqueue"
	"nightlight/model"
	"nightlight/notify"
)

func (t *TestSuite) Test_Ping_Expires() {
	sender := t.createUser("alice", "tok-alice")
	recipient := t.createUser("bob", "tok-bob")

	p, err := t.app.SendPing(t.T().Context(), app.SendPingParams{
		SenderID:           sender.ID,
		RecipientID:        recipient.ID,
		Message:            "you okay?",
		ExpirationDateTime: time.Now(),
	})
	t.Require().NoError(err)
	t.Require().Equal(model.PingSent, p.Status)
	t.Require().NotNil(p.QueueID)

	t.Require().NoError(t.worker.Drain(t.T().Context()))

	t.Run("ping is expired", func() {
		got, err := t.app.GetPing(t.T().Context(), p.ID)
		t.Require().NoError(err)
		t.Require().Equal(model.PingExpired, got.Status)
	})

	t.Run("both sides notified once", func() {
		t.Require().Len(t.notificationsOfKind(sender.ID, notify.KindPingExpiredSender), 1)
		t.Require().Len(t.notificationsOfKind(recipient.ID, notify.KindPingExpiredRecipient), 1)
	})

	t.Run("recipient got the original ping", func() {
		t.Require().Len(t.notificationsOfKind(recipient.ID, notify.KindPingReceived), 1)
	})

	t.Run("pushes reached the gateway", func() {
		var tokens []string
		for _, msg := range t.gateway.all() {
			tokens = append(tokens, msg.To...)
		}
		t.Require().Contains(tokens, "tok-alice")
		t.Require().Contains(tokens, "tok-bob")
	})
}

func (t *TestSuite) Test_Ping_RespondCancelsExpiry() {
	sender := t.createUser("alice")
	recipient := t.createUser("bob")

	p, err := t.app.SendPing(t.T().Context(), app.SendPingParams{
		SenderID:           sender.ID,
		RecipientID:        recipient.ID,
		ExpirationDateTime: time.Now().Add(1 * time.Hour),
	})
	t.Require().NoError(err)
	t.Require().NotNil(p.QueueID)

	t.Require().NoError(t.app.RespondPing(t.T().Context(), p.ID, model.PingRespondedOkay))

	t.Run("status applied", func() {
		got, err := t.app.GetPing(t.T().Context(), p.ID)
		t.Require().NoError(err)
		t.Require().Equal(model.PingRespondedOkay, got.Status)
	})

	t.Run("job canceled", func() {
		t.Require().False(t.jobExists(*p.QueueID))
	})

	t.Run("second response rejected", func() {
		err := t.app.RespondPing(t.T().Context(), p.ID, model.PingRespondedNotOkay)
		t.Require().ErrorIs(err, app.ErrPingResolved)

		got, err := t.app.GetPing(t.T().Context(), p.ID)
		t.Require().NoError(err)
		t.Require().Equal(model.PingRespondedOkay, got.Status)
	})

	t.Run("no expiry notifications", func() {
		t.Require().Empty(t.notificationsOfKind(sender.ID, notify.KindPingExpiredSender))
		t.Require().Empty(t.notificationsOfKind(recipient.ID, notify.KindPingExpiredRecipient))
	})
}

func (t *TestSuite) Test_Ping_RespondAfterExpiry() {
	sender := t.createUser("alice")
	recipient := t.createUser("bob")

	p, err := t.app.SendPing(t.T().Context(), app.SendPingParams{
		SenderID:           sender.ID,
		RecipientID:        recipient.ID,
		ExpirationDateTime: time.Now(),
	})
	t.Require().NoError(err)

	t.Require().NoError(t.worker.Drain(t.T().Context()))

	err = t.app.RespondPing(t.T().Context(), p.ID, model.PingRespondedOkay)
	t.Require().ErrorIs(err, app.ErrPingResolved)

	got, err := t.app.GetPing(t.T().Context(), p.ID)
	t.Require().NoError(err)
	t.Require().Equal(model.PingExpired, got.Status)
}

func (t *TestSuite) Test_Ping_InvalidResponseStatus() {
	sender := t.createUser("alice")
	recipient := t.createUser("bob")

	p, err := t.app.SendPing(t.T().Context(), app.SendPingParams{
		SenderID:           sender.ID,
		RecipientID:        recipient.ID,
		ExpirationDateTime: time.Now().Add(1 * time.Hour),
	})
	t.Require().NoError(err)

	for _, status := range []model.PingStatus{model.PingSent, model.PingExpired, "BOGUS"} {
		err := t.app.RespondPing(t.T().Context(), p.ID, status)
		var invalid *app.InvalidArgumentError
		t.Require().ErrorAs(err, &invalid)
	}
}

func (t *TestSuite) Test_Ping_DuplicateExpiryIsNoop() {
	sender := t.createUser("alice")
	recipient := t.createUser("bob")

	p, err := t.app.SendPing(t.T().Context(), app.SendPingParams{
		SenderID:           sender.ID,
		RecipientID:        recipient.ID,
		ExpirationDateTime: time.Now(),
	})
	t.Require().NoError(err)

	t.Require().NoError(t.worker.Drain(t.T().Context()))

	// A second expire job for the same ping, as if a requeued attempt fired
	// after the first one already finished.
	payload, err := json.Marshal(map[string]any{"pingId": p.ID})
	t.Require().NoError(err)

	jobID, err := t.queue.Enqueue(t.T().Context(), "ping|"+p.ID.String(), "pingExpire", json.RawMessage(payload), nil)
	t.Require().NoError(err)

	t.Require().NoError(t.worker.Drain(t.T().Context()))
	t.Require().Equal(jobqueue.StatusSucceeded, t.jobStatus(jobID))

	t.Run("no duplicate notifications", func() {
		t.Require().Len(t.notificationsOfKind(sender.ID, notify.KindPingExpiredSender), 1)
		t.Require().Len(t.notificationsOfKind(recipient.ID, notify.KindPingExpiredRecipient), 1)
	})

	t.Run("self ping rejected", func() {
		_, err := t.app.SendPing(t.T().Context(), app.SendPingParams{
			SenderID:           sender.ID,
			RecipientID:        sender.ID,
			ExpirationDateTime: time.Now().Add(1 * time.Hour),
		})
		var invalid *app.InvalidArgumentError
		t.Require().ErrorAs(err, &invalid)
	})
}
