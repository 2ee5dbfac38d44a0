package store

import (
	"context"
	"encoding/json"
	"errors"

	"nightlight/model"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type batchSender interface {
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// --- users ---

func (s *PostgresStore) CreateUser(ctx context.Context, name string, pushTokens []string) (model.User, error) {
	if pushTokens == nil {
		pushTokens = []string{}
	}
	var u model.User
	err := s.pool.QueryRow(ctx, `
		INSERT INTO users (name, push_tokens)
		VALUES ($1, $2)
		RETURNING id, name, push_tokens, current_group, invited_groups, created_at
	`, name, pushTokens).Scan(&u.ID, &u.Name, &u.PushTokens, &u.CurrentGroup, &u.InvitedGroups, &u.CreatedAt)
	return u, err
}

func (s *PostgresStore) GetUser(ctx context.Context, id uuid.UUID) (model.User, error) {
	var u model.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, push_tokens, current_group, invited_groups, created_at
		FROM users WHERE id=$1
	`, id).Scan(&u.ID, &u.Name, &u.PushTokens, &u.CurrentGroup, &u.InvitedGroups, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	return u, err
}

// PushTokens returns the flattened push tokens of the given users.
func (s *PostgresStore) PushTokens(ctx context.Context, userIDs []uuid.UUID) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT unnest(push_tokens) FROM users WHERE id = ANY($1)
	`, userIDs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, err
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// --- groups ---

func (s *PostgresStore) CreateGroup(ctx context.Context, g *model.Group) error {
	if g.Members == nil {
		g.Members = []uuid.UUID{}
	}
	if g.Invited == nil {
		g.Invited = []uuid.UUID{}
	}
	return s.pool.QueryRow(ctx, `
		INSERT INTO groups (name, creator_id, members, invited, expiration_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, g.Name, g.CreatorID, g.Members, g.Invited, g.ExpirationDate).Scan(&g.ID, &g.CreatedAt)
}

func (s *PostgresStore) GetGroup(ctx context.Context, id uuid.UUID) (model.Group, error) {
	var g model.Group
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, creator_id, members, invited, expiration_date, queue_id, created_at
		FROM groups WHERE id=$1
	`, id).Scan(&g.ID, &g.Name, &g.CreatorID, &g.Members, &g.Invited, &g.ExpirationDate, &g.QueueID, &g.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Group{}, ErrNotFound
	}
	return g, err
}

func (s *PostgresStore) SetGroupQueueID(ctx context.Context, id uuid.UUID, queueID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE groups SET queue_id=$2 WHERE id=$1`, id, queueID)
	return err
}

// DeletedGroup is what a successful DeleteGroup reports back so the caller
// can run the post-delete effects (membership cleanup, job cancel, fan-out).
type DeletedGroup struct {
	Name    string
	Members []uuid.UUID
	Invited []uuid.UUID
	QueueID *uuid.UUID
}

// DeleteGroup removes the group. A nil result with nil error means the group
// was already gone (expiry/cancel race), which callers treat as a no-op.
func (s *PostgresStore) DeleteGroup(ctx context.Context, id uuid.UUID) (*DeletedGroup, error) {
	var d DeletedGroup
	err := s.pool.QueryRow(ctx, `
		DELETE FROM groups WHERE id=$1
		RETURNING name, members, invited, queue_id
	`, id).Scan(&d.Name, &d.Members, &d.Invited, &d.QueueID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *PostgresStore) SetCurrentGroup(ctx context.Context, userIDs []uuid.UUID, groupID uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET current_group=$2 WHERE id = ANY($1)
	`, userIDs, groupID)
	return err
}

// ClearCurrentGroup unsets current_group for every member of the group.
// Conditional by construction: users already moved to another group keep it.
func (s *PostgresStore) ClearCurrentGroup(ctx context.Context, groupID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET current_group=NULL WHERE current_group=$1
	`, groupID)
	return err
}

func (s *PostgresStore) AddInvitedGroup(ctx context.Context, userIDs []uuid.UUID, groupID uuid.UUID) error {
	return s.addInvitedGroupBatch(ctx, s.pool, userIDs, groupID)
}

func (s *PostgresStore) addInvitedGroupBatch(ctx context.Context, sender batchSender, userIDs []uuid.UUID, groupID uuid.UUID) error {
	if len(userIDs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, id := range userIDs {
		batch.Queue(`
			UPDATE users SET invited_groups = array_append(invited_groups, $2)
			WHERE id=$1 AND NOT ($2 = ANY(invited_groups))
		`, id, groupID)
	}

	br := sender.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return err
	}

	return nil
}

// PullInvitedGroup removes the group id from every invited-but-unjoined user.
func (s *PostgresStore) PullInvitedGroup(ctx context.Context, groupID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE users SET invited_groups = array_remove(invited_groups, $1)
		WHERE $1 = ANY(invited_groups)
	`, groupID)
	return err
}

// --- venues / reactions ---

func (s *PostgresStore) CreateVenue(ctx context.Context, v *model.Venue) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO venues (name, address)
		VALUES ($1, $2)
		RETURNING id, created_at
	`, v.Name, v.Address).Scan(&v.ID, &v.CreatedAt)
}

func (s *PostgresStore) GetVenue(ctx context.Context, id uuid.UUID) (model.Venue, error) {
	var v model.Venue
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, address, created_at FROM venues WHERE id=$1
	`, id).Scan(&v.ID, &v.Name, &v.Address, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Venue{}, ErrNotFound
	}
	if err != nil {
		return model.Venue{}, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT venue_id, user_id, emoji, expires_at, queue_id, created_at
		FROM venue_reactions WHERE venue_id=$1
		ORDER BY created_at
	`, id)
	if err != nil {
		return model.Venue{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var r model.Reaction
		if err := rows.Scan(&r.VenueID, &r.UserID, &r.Emoji, &r.ExpiresAt, &r.QueueID, &r.CreatedAt); err != nil {
			return model.Venue{}, err
		}
		v.Reactions = append(v.Reactions, r)
	}
	return v, rows.Err()
}

// UpsertReaction inserts the (venue, user, emoji) entry, or refreshes its
// expiry if it already exists. It returns the previous queue id, if any, so
// the caller can cancel the superseded job and keep the at-most-one-job
// invariant.
func (s *PostgresStore) UpsertReaction(ctx context.Context, r model.Reaction) (prevQueueID *uuid.UUID, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT queue_id FROM venue_reactions
		WHERE venue_id=$1 AND user_id=$2 AND emoji=$3
	`, r.VenueID, r.UserID, r.Emoji).Scan(&prevQueueID)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO venue_reactions (venue_id, user_id, emoji, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (venue_id, user_id, emoji)
		DO UPDATE SET expires_at = EXCLUDED.expires_at, queue_id = NULL
	`, r.VenueID, r.UserID, r.Emoji, r.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return prevQueueID, nil
}

func (s *PostgresStore) SetReactionQueueID(ctx context.Context, venueID, userID uuid.UUID, emoji string, queueID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE venue_reactions SET queue_id=$4
		WHERE venue_id=$1 AND user_id=$2 AND emoji=$3
	`, venueID, userID, emoji, queueID)
	return err
}

// DeleteReaction removes the matching entry. removed=false means it was
// already gone; the returned queue id (when set) is the pending expire job.
func (s *PostgresStore) DeleteReaction(ctx context.Context, venueID, userID uuid.UUID, emoji string) (queueID *uuid.UUID, removed bool, err error) {
	err = s.pool.QueryRow(ctx, `
		DELETE FROM venue_reactions
		WHERE venue_id=$1 AND user_id=$2 AND emoji=$3
		RETURNING queue_id
	`, venueID, userID, emoji).Scan(&queueID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return queueID, true, nil
}

// --- pings ---

func (s *PostgresStore) CreatePing(ctx context.Context, p *model.Ping) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO pings (sender_id, recipient_id, venue_id, message, status, expiration_datetime)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, p.SenderID, p.RecipientID, p.VenueID, p.Message, p.Status, p.ExpirationDateTime).Scan(&p.ID, &p.CreatedAt)
}

func (s *PostgresStore) GetPing(ctx context.Context, id uuid.UUID) (model.Ping, error) {
	var p model.Ping
	err := s.pool.QueryRow(ctx, `
		SELECT id, sender_id, recipient_id, venue_id, message, status, expiration_datetime, queue_id, created_at
		FROM pings WHERE id=$1
	`, id).Scan(&p.ID, &p.SenderID, &p.RecipientID, &p.VenueID, &p.Message, &p.Status, &p.ExpirationDateTime, &p.QueueID, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Ping{}, ErrNotFound
	}
	return p, err
}

// DeletePing is used by the producer to roll back a ping whose expire job
// could not be enqueued.
func (s *PostgresStore) DeletePing(ctx context.Context, id uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM pings WHERE id=$1`, id)
	return err
}

func (s *PostgresStore) SetPingQueueID(ctx context.Context, id uuid.UUID, queueID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `UPDATE pings SET queue_id=$2 WHERE id=$1`, id, queueID)
	return err
}

// RespondPing transitions SENT -> status. ok=false means the ping was not in
// SENT anymore (already responded or expired) and nothing changed.
func (s *PostgresStore) RespondPing(ctx context.Context, id uuid.UUID, status model.PingStatus) (queueID *uuid.UUID, ok bool, err error) {
	// Self-join trick so RETURNING sees the pre-update queue_id.
	err = s.pool.QueryRow(ctx, `
		UPDATE pings p SET status=$2, queue_id=NULL
		FROM (SELECT id, queue_id FROM pings WHERE id=$1 AND status='SENT' FOR UPDATE) old
		WHERE p.id = old.id
		RETURNING old.queue_id
	`, id, status).Scan(&queueID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return queueID, true, nil
}

// ExpirePing transitions SENT -> EXPIRED. ok=false means the ping was already
// responded to (or gone) and the expiry is a no-op.
func (s *PostgresStore) ExpirePing(ctx context.Context, id uuid.UUID) (senderID, recipientID uuid.UUID, ok bool, err error) {
	err = s.pool.QueryRow(ctx, `
		UPDATE pings SET status='EXPIRED', queue_id=NULL
		WHERE id=$1 AND status='SENT'
		RETURNING sender_id, recipient_id
	`, id).Scan(&senderID, &recipientID)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, uuid.Nil, false, nil
	}
	if err != nil {
		return uuid.Nil, uuid.Nil, false, err
	}
	return senderID, recipientID, true, nil
}

// --- notifications ---

func (s *PostgresStore) InsertNotifications(ctx context.Context, ns []model.Notification) error {
	return s.insertNotificationsBatch(ctx, s.pool, ns)
}

func (s *PostgresStore) insertNotificationsBatch(ctx context.Context, sender batchSender, ns []model.Notification) error {
	if len(ns) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, n := range ns {
		var data []byte
		if n.Data != nil {
			b, err := json.Marshal(n.Data)
			if err != nil {
				return err
			}
			data = b
		}
		batch.Queue(`
			INSERT INTO notifications (user_id, type, title, body, data)
			VALUES ($1, $2, $3, $4, $5)
		`, n.UserID, n.Type, n.Title, n.Body, data)
	}

	br := sender.SendBatch(ctx, batch)
	if err := br.Close(); err != nil {
		return err
	}

	return nil
}

func (s *PostgresStore) ListNotifications(ctx context.Context, userID uuid.UUID, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, type, title, body, data, created_at
		FROM notifications
		WHERE user_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var n model.Notification
		var data []byte
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &data, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(data) > 0 {
			if err := json.Unmarshal(data, &n.Data); err != nil {
				return nil, err
			}
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
