package jobqueue

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GetCounts returns total + by-status counts, with optional filters (group/type/status).
func (q *Queue) GetCounts(ctx context.Context, f JobQuery) (Counts, error) {
	where, args := buildWhere(f)

	var out Counts
	out.ByStatus = make(map[JobStatus]int64)

	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM jobs `+where, args...).Scan(&out.Total); err != nil {
		return Counts{}, err
	}

	rows, err := q.pool.Query(ctx, `SELECT status, count(*) FROM jobs `+where+` GROUP BY status`, args...)
	if err != nil {
		return Counts{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var s JobStatus
		var c int64
		if err := rows.Scan(&s, &c); err != nil {
			return Counts{}, err
		}
		out.ByStatus[s] = c
	}
	return out, rows.Err()
}

// ListJobs returns a page of jobs + total count, newest first.
func (q *Queue) ListJobs(ctx context.Context, f JobQuery) (JobListPage, error) {
	if f.Limit <= 0 {
		f.Limit = 50
	}
	if f.Limit > 500 {
		f.Limit = 500
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	where, args := buildWhere(f)

	var total int64
	if err := q.pool.QueryRow(ctx, `SELECT count(*) FROM jobs `+where, args...).Scan(&total); err != nil {
		return JobListPage{}, err
	}

	cols := `
		id, job_group, type, ordering_seq, run_after, status, payload,
		attempts, max_attempts, locked_by, locked_until, started_at, finished_at, last_error
	`
	if !f.IncludePayload {
		cols = strings.Replace(cols, "payload,", "NULL::jsonb AS payload,", 1)
	}

	args = append(args, f.Limit, f.Offset)

	sql := `SELECT ` + cols + ` FROM jobs ` + where + ` ORDER BY ordering_seq DESC` +
		fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return JobListPage{}, err
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return JobListPage{}, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return JobListPage{}, err
	}

	return JobListPage{Jobs: jobs, Total: total}, nil
}

// GetJob fetches a single job by id.
func (q *Queue) GetJob(ctx context.Context, id uuid.UUID) (Job, error) {
	row := q.pool.QueryRow(ctx, `
		SELECT
		  id, job_group, type, ordering_seq, run_after, status, payload,
		  attempts, max_attempts, locked_by, locked_until, started_at, finished_at, last_error
		FROM jobs
		WHERE id=$1
	`, id)
	return scanJob(row)
}

func buildWhere(f JobQuery) (string, []any) {
	where := "WHERE 1=1"
	args := []any{}

	if f.JobGroup != "" {
		args = append(args, f.JobGroup)
		where += fmt.Sprintf(" AND job_group = $%d", len(args))
	}
	if f.Type != "" {
		args = append(args, f.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if len(f.Statuses) > 0 {
		place := make([]string, 0, len(f.Statuses))
		for _, s := range f.Statuses {
			args = append(args, s)
			place = append(place, fmt.Sprintf("$%d", len(args)))
		}
		where += " AND status IN (" + strings.Join(place, ",") + ")"
	}

	return where, args
}
