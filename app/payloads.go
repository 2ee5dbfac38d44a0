package app

import (
	"fmt"

	"github.com/google/uuid"
)

// The closed set of expire-job types. The worker dispatch switches over these;
// anything else completes as a no-op so old workers survive new job types.
const (
	JobGroupExpire    = "groupExpire"
	JobReactionExpire = "reactionExpire"
	JobPingExpire     = "pingExpire"
)

type GroupExpirePayload struct {
	GroupID uuid.UUID `json:"groupId"`
}

type ReactionExpirePayload struct {
	VenueID uuid.UUID `json:"venueId"`
	UserID  uuid.UUID `json:"userId"`
	Emoji   string    `json:"emoji"`
}

type PingExpirePayload struct {
	PingID uuid.UUID `json:"pingId"`
}

// Job groups are keyed per entity, so the queue's one-job-at-a-time-per-group
// guarantee holds per entity.
func groupJobGroup(id uuid.UUID) string { return fmt.Sprintf("group|%s", id) }
func venueJobGroup(id uuid.UUID) string { return fmt.Sprintf("venue|%s", id) }
func pingJobGroup(id uuid.UUID) string  { return fmt.Sprintf("ping|%s", id) }
