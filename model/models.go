package model

import (
	"time"

	"github.com/google/uuid"
)

type User struct {
	ID            uuid.UUID   `json:"id"`
	Name          string      `json:"name"`
	PushTokens    []string    `json:"pushTokens,omitempty"`
	CurrentGroup  *uuid.UUID  `json:"currentGroup,omitempty"`
	InvitedGroups []uuid.UUID `json:"invitedGroups,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

// Group is an ephemeral meetup. QueueID is a weak handle to the pending
// expire job; the queue owns the job, the group only remembers its id so a
// user-initiated deletion can ask for cancellation.
type Group struct {
	ID             uuid.UUID   `json:"id"`
	Name           string      `json:"name"`
	CreatorID      uuid.UUID   `json:"creatorId"`
	Members        []uuid.UUID `json:"members"`
	Invited        []uuid.UUID `json:"invited,omitempty"`
	ExpirationDate time.Time   `json:"expirationDate"`
	QueueID        *uuid.UUID  `json:"queueId,omitempty"`
	CreatedAt      time.Time   `json:"createdAt"`
}

type Venue struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	Address   string     `json:"address,omitempty"`
	Reactions []Reaction `json:"reactions,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Reaction is a single (user, emoji) entry on a venue.
type Reaction struct {
	VenueID   uuid.UUID  `json:"venueId"`
	UserID    uuid.UUID  `json:"userId"`
	Emoji     string     `json:"emoji"`
	ExpiresAt time.Time  `json:"expiresAt"`
	QueueID   *uuid.UUID `json:"queueId,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type PingStatus string

const (
	PingSent             PingStatus = "SENT"
	PingRespondedOkay    PingStatus = "RESPONDED_OKAY"
	PingRespondedNotOkay PingStatus = "RESPONDED_NOT_OKAY"
	PingExpired          PingStatus = "EXPIRED"
)

// IsResponse reports whether s is a valid user-supplied response transition
// from SENT. EXPIRED is reachable only through the expiry handler.
func (s PingStatus) IsResponse() bool {
	return s == PingRespondedOkay || s == PingRespondedNotOkay
}

func (s PingStatus) IsTerminal() bool {
	return s != PingSent
}

type Ping struct {
	ID                 uuid.UUID  `json:"id"`
	SenderID           uuid.UUID  `json:"senderId"`
	RecipientID        uuid.UUID  `json:"recipientId"`
	VenueID            *uuid.UUID `json:"venueId,omitempty"`
	Message            string     `json:"message,omitempty"`
	Status             PingStatus `json:"status"`
	ExpirationDateTime time.Time  `json:"expirationDateTime"`
	QueueID            *uuid.UUID `json:"queueId,omitempty"`
	CreatedAt          time.Time  `json:"createdAt"`
}

type Notification struct {
	ID        uuid.UUID         `json:"id"`
	UserID    uuid.UUID         `json:"userId"`
	Type      string            `json:"type"`
	Title     string            `json:"title"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"createdAt"`
}
