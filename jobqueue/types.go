package jobqueue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusRunning   JobStatus = "running"
	StatusSucceeded JobStatus = "succeeded"
	StatusDead      JobStatus = "dead"
)

type Job struct {
	ID       uuid.UUID
	JobGroup string

	// OrderingSeq is assigned at insert time and breaks ties between jobs
	// that become runnable at the same instant.
	OrderingSeq int64
	RunAfter    time.Time

	Type    string
	Payload json.RawMessage

	Attempts    int
	MaxAttempts int

	Status     JobStatus
	StartedAt  *time.Time
	FinishedAt *time.Time
	LastError  *string

	LockedBy    *string
	LockedUntil *time.Time
}

type Handler func(ctx context.Context, job Job) error

type Logger interface {
	Printf(format string, args ...any)
}
