/*
Package db provides database connectivity and the query layer for the
persisted collaborators: user accounts and call-duration bookkeeping.

The live signaling state is deliberately not here; rooms and participants are
process-local and reconstructible, only accounts and call history persist.
*/
package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Queries bundles all SQL operations over one connection pool.
type Queries struct {
	pool *pgxpool.Pool
}

// New returns a Queries instance backed by the given pool.
func New(pool *pgxpool.Pool) *Queries {
	return &Queries{pool: pool}
}

// User is one account row.
type User struct {
	ID           pgtype.UUID
	Username     string
	Email        string
	PasswordHash string
	AvatarKey    pgtype.Text
	CreatedAt    pgtype.Timestamptz
	UpdatedAt    pgtype.Timestamptz
}

const userColumns = "id, username, email, password_hash, avatar_key, created_at, updated_at"

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.AvatarKey, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CreateUserParams carries the fields required to create an account.
type CreateUserParams struct {
	Username     string
	Email        string
	PasswordHash string
}

// CreateUser inserts a new account and returns the stored row.
func (q *Queries) CreateUser(ctx context.Context, arg CreateUserParams) (User, error) {
	row := q.pool.QueryRow(ctx,
		`INSERT INTO users (username, email, password_hash)
		 VALUES ($1, $2, $3)
		 RETURNING `+userColumns,
		arg.Username, arg.Email, arg.PasswordHash)
	return scanUser(row)
}

// GetUserByID fetches an account by primary key.
func (q *Queries) GetUserByID(ctx context.Context, id pgtype.UUID) (User, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

// GetUserByEmail fetches an account by email, used at login.
func (q *Queries) GetUserByEmail(ctx context.Context, email string) (User, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

// GetUserByUsername fetches an account by username, used for uniqueness checks.
func (q *Queries) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE username = $1`, username)
	return scanUser(row)
}

// UpdateUserProfileParams carries a profile update; empty fields keep their value.
type UpdateUserProfileParams struct {
	ID       pgtype.UUID
	Username string
	Email    string
}

// UpdateUserProfile updates username/email, leaving empty inputs unchanged,
// and returns the updated row.
func (q *Queries) UpdateUserProfile(ctx context.Context, arg UpdateUserProfileParams) (User, error) {
	row := q.pool.QueryRow(ctx,
		`UPDATE users
		 SET username = COALESCE(NULLIF($2, ''), username),
		     email = COALESCE(NULLIF($3, ''), email),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		arg.ID, arg.Username, arg.Email)
	return scanUser(row)
}

// UpdateUserAvatarParams points an account at a new stored avatar object.
type UpdateUserAvatarParams struct {
	ID        pgtype.UUID
	AvatarKey pgtype.Text
}

// UpdateUserAvatar records the avatar object key for the account.
func (q *Queries) UpdateUserAvatar(ctx context.Context, arg UpdateUserAvatarParams) (User, error) {
	row := q.pool.QueryRow(ctx,
		`UPDATE users SET avatar_key = $2, updated_at = now()
		 WHERE id = $1
		 RETURNING `+userColumns,
		arg.ID, arg.AvatarKey)
	return scanUser(row)
}

// UpdateUserPasswordParams carries a password rotation.
type UpdateUserPasswordParams struct {
	ID           pgtype.UUID
	PasswordHash string
}

// UpdateUserPassword replaces the stored password hash.
func (q *Queries) UpdateUserPassword(ctx context.Context, arg UpdateUserPasswordParams) error {
	_, err := q.pool.Exec(ctx,
		`UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`,
		arg.ID, arg.PasswordHash)
	return err
}

// DeleteUser removes the account; call logs cascade.
func (q *Queries) DeleteUser(ctx context.Context, id pgtype.UUID) error {
	_, err := q.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}

// CallLog is one call-history row. Bookkeeping is keyed by the same room
// identifier namespace the relay uses; the relay itself never writes here.
type CallLog struct {
	ID              pgtype.UUID
	CallerID        pgtype.UUID
	ReceiverID      pgtype.UUID
	RoomID          string
	StartTime       pgtype.Timestamptz
	EndTime         pgtype.Timestamptz
	DurationSeconds int32
	CreatedAt       pgtype.Timestamptz
}

const callLogColumns = "id, caller_id, receiver_id, room_id, start_time, end_time, duration_seconds, created_at"

func scanCallLog(row pgx.Row) (CallLog, error) {
	var cl CallLog
	err := row.Scan(&cl.ID, &cl.CallerID, &cl.ReceiverID, &cl.RoomID,
		&cl.StartTime, &cl.EndTime, &cl.DurationSeconds, &cl.CreatedAt)
	return cl, err
}

// CreateCallLogParams opens a call record for a room.
type CreateCallLogParams struct {
	CallerID   pgtype.UUID
	ReceiverID pgtype.UUID
	RoomID     string
	StartTime  pgtype.Timestamptz
}

// CreateCallLog inserts an open call record (no end time, zero duration).
func (q *Queries) CreateCallLog(ctx context.Context, arg CreateCallLogParams) (CallLog, error) {
	row := q.pool.QueryRow(ctx,
		`INSERT INTO call_logs (caller_id, receiver_id, room_id, start_time)
		 VALUES ($1, $2, $3, COALESCE($4, now()))
		 RETURNING `+callLogColumns,
		arg.CallerID, arg.ReceiverID, arg.RoomID, arg.StartTime)
	return scanCallLog(row)
}

// GetOpenCallLog returns the call record for the room that has not ended yet.
func (q *Queries) GetOpenCallLog(ctx context.Context, roomID string) (CallLog, error) {
	row := q.pool.QueryRow(ctx,
		`SELECT `+callLogColumns+` FROM call_logs
		 WHERE room_id = $1 AND end_time IS NULL
		 ORDER BY start_time DESC
		 LIMIT 1`, roomID)
	return scanCallLog(row)
}

// EndCallLogParams closes an open call record.
type EndCallLogParams struct {
	ID              pgtype.UUID
	EndTime         pgtype.Timestamptz
	DurationSeconds int32
}

// EndCallLog stamps the end time and duration on the record.
func (q *Queries) EndCallLog(ctx context.Context, arg EndCallLogParams) (CallLog, error) {
	row := q.pool.QueryRow(ctx,
		`UPDATE call_logs SET end_time = $2, duration_seconds = $3
		 WHERE id = $1
		 RETURNING `+callLogColumns,
		arg.ID, arg.EndTime, arg.DurationSeconds)
	return scanCallLog(row)
}

// CallLogWithPeers is a call-history row joined with both party usernames for display.
type CallLogWithPeers struct {
	CallLog
	CallerUsername   string
	ReceiverUsername string
}

// ListUserCallLogs returns the newest 50 call records the user took part in,
// on either side of the call.
func (q *Queries) ListUserCallLogs(ctx context.Context, userID pgtype.UUID) ([]CallLogWithPeers, error) {
	rows, err := q.pool.Query(ctx,
		`SELECT cl.id, cl.caller_id, cl.receiver_id, cl.room_id, cl.start_time,
		        cl.end_time, cl.duration_seconds, cl.created_at,
		        caller.username, receiver.username
		 FROM call_logs cl
		 JOIN users caller ON caller.id = cl.caller_id
		 JOIN users receiver ON receiver.id = cl.receiver_id
		 WHERE cl.caller_id = $1 OR cl.receiver_id = $1
		 ORDER BY cl.start_time DESC
		 LIMIT 50`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []CallLogWithPeers
	for rows.Next() {
		var cl CallLogWithPeers
		if err := rows.Scan(&cl.ID, &cl.CallerID, &cl.ReceiverID, &cl.RoomID,
			&cl.StartTime, &cl.EndTime, &cl.DurationSeconds, &cl.CreatedAt,
			&cl.CallerUsername, &cl.ReceiverUsername); err != nil {
			return nil, err
		}
		logs = append(logs, cl)
	}
	return logs, rows.Err()
}

// CallLogStats aggregates a user's call history.
type CallLogStats struct {
	TotalCalls      int64
	CompletedCalls  int64
	ActiveCalls     int64
	TotalDuration   int64
	AverageDuration int64
}

// GetCallLogStats computes call counters and durations for the user in one query.
func (q *Queries) GetCallLogStats(ctx context.Context, userID pgtype.UUID) (CallLogStats, error) {
	var s CallLogStats
	err := q.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(end_time),
		        COUNT(*) - COUNT(end_time),
		        COALESCE(SUM(duration_seconds) FILTER (WHERE end_time IS NOT NULL), 0)
		 FROM call_logs
		 WHERE caller_id = $1 OR receiver_id = $1`, userID).
		Scan(&s.TotalCalls, &s.CompletedCalls, &s.ActiveCalls, &s.TotalDuration)
	if err != nil {
		return CallLogStats{}, err
	}

	if s.TotalCalls > 0 {
		s.AverageDuration = s.TotalDuration / s.TotalCalls
	}
	return s, nil
}
