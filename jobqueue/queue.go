package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

type Queue struct {
	pool *pgxpool.Pool
}

func NewQueue(pool *pgxpool.Pool) *Queue {
	return &Queue{pool: pool}
}

type EnqueueOptions struct {
	RunAfter    *time.Time
	MaxAttempts *int
}

// Enqueue inserts a job into jobGroup. Jobs within a group run one at a time,
// so a group per domain entity gives at-most-one in-flight job per entity.
// A RunAfter in the past is already due and is delivered on the next claim.
func (q *Queue) Enqueue(
	ctx context.Context,
	jobGroup string,
	jobType string,
	payload any,
	opts *EnqueueOptions,
) (uuid.UUID, error) {
	if jobType == "" {
		return uuid.Nil, fmt.Errorf("type must not be empty")
	}

	b, err := json.Marshal(payload)
	if err != nil {
		return uuid.Nil, err
	}

	runAfter := time.Now()
	if opts != nil && opts.RunAfter != nil {
		runAfter = *opts.RunAfter
	}

	maxAttempts := 0
	if opts != nil && opts.MaxAttempts != nil {
		maxAttempts = *opts.MaxAttempts
	}

	_, err = q.pool.Exec(ctx, `
		INSERT INTO job_groups(job_group) VALUES ($1)
		ON CONFLICT (job_group) DO NOTHING
	`, jobGroup)
	if err != nil {
		return uuid.Nil, err
	}

	var id uuid.UUID
	err = q.pool.QueryRow(ctx, `
		INSERT INTO jobs(job_group, type, run_after, status, payload, max_attempts)
		VALUES ($1, $2, $3, 'queued', $4::jsonb, $5)
		RETURNING id
	`, jobGroup, jobType, runAfter, b, maxAttempts).Scan(&id)
	if err != nil {
		return uuid.Nil, err
	}
	return id, nil
}

// Cancel drops a job that has not been claimed yet. Cancelling a job that is
// unknown, already running or already finished is a silent no-op: callers hold
// only a weak handle and the conditional handlers absorb the losing race.
func (q *Queue) Cancel(ctx context.Context, id uuid.UUID) error {
	if id == uuid.Nil {
		return nil
	}
	_, err := q.pool.Exec(ctx, `
		DELETE FROM jobs
		WHERE id = $1 AND status = 'queued'
	`, id)
	return err
}
