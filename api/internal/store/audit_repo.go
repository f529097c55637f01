package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog"

	"figscan/api/internal/scan"
)

// Schema creates the audit table. Only stage metadata is stored; page images,
// crops and explanation text never leave the process.
const Schema = `
create table if not exists scan_events (
	id          bigserial primary key,
	session_id  text        not null,
	generation  bigint      not null,
	stage       text        not null,
	item_count  integer     not null default 0,
	duration_ms bigint      not null default 0,
	error       text,
	created_at  timestamptz not null default now()
);
create index if not exists scan_events_session_idx on scan_events(session_id, id);
`

// EventRow is one persisted scan.Event.
type EventRow struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"session_id"`
	Generation uint64    `json:"generation"`
	Stage      string    `json:"stage"`
	Count      int       `json:"count"`
	DurationMS int64     `json:"duration_ms"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// AuditRepo is a scan.Recorder backed by Postgres.
type AuditRepo struct {
	DB  *sql.DB
	Log zerolog.Logger
	// Timeout bounds each insert; the request context's cancellation is ignored.
	Timeout time.Duration
}

func NewAuditRepo(db *sql.DB, log zerolog.Logger) *AuditRepo {
	return &AuditRepo{DB: db, Log: log, Timeout: 5 * time.Second}
}

var _ scan.Recorder = (*AuditRepo)(nil)

func (r *AuditRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.DB.ExecContext(ctx, Schema)
	return err
}

// Record inserts ev. Failures are logged, never returned: auditing must not
// break a scan.
func (r *AuditRepo) Record(ctx context.Context, ev scan.Event) {
	if r == nil || r.DB == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout())
	defer cancel()

	row := rowFromEvent(ev)
	const q = `
insert into scan_events(session_id, generation, stage, item_count, duration_ms, error, created_at)
values ($1,$2,$3,$4,$5,$6,$7)`
	_, err := r.DB.ExecContext(ctx, q,
		row.SessionID, int64(row.Generation), row.Stage, row.Count, row.DurationMS,
		nullString(row.Error), row.CreatedAt)
	if err != nil {
		r.Log.Error().Err(err).Str("stage", row.Stage).Msg("audit insert failed")
	}
}

// Recent returns up to limit events of one session, oldest first.
func (r *AuditRepo) Recent(ctx context.Context, sessionID string, limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 100
	}
	const q = `
select id, session_id, generation, stage, item_count, duration_ms, coalesce(error, ''), created_at
from (
	select * from scan_events where session_id=$1 order by id desc limit $2
) t
order by id`
	rows, err := r.DB.QueryContext(ctx, q, sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []EventRow{}
	for rows.Next() {
		var (
			row EventRow
			gen int64
		)
		if err := rows.Scan(&row.ID, &row.SessionID, &gen, &row.Stage, &row.Count,
			&row.DurationMS, &row.Error, &row.CreatedAt); err != nil {
			return nil, err
		}
		row.Generation = uint64(gen)
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *AuditRepo) timeout() time.Duration {
	if r.Timeout <= 0 {
		return 5 * time.Second
	}
	return r.Timeout
}

func rowFromEvent(ev scan.Event) EventRow {
	row := EventRow{
		SessionID:  ev.SessionID,
		Generation: ev.Generation,
		Stage:      string(ev.Stage),
		Count:      ev.Count,
		DurationMS: ev.Duration.Milliseconds(),
		CreatedAt:  ev.At,
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	return row
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
