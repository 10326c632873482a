package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// EventTypeAttemptSubmitted is appended once per committed submission.
const EventTypeAttemptSubmitted = "AttemptSubmitted"

// DBTX matches *sql.DB and *sql.Tx so appends can share the caller's
// transaction boundary.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

type EventRepo struct {
	siteID string
}

func NewEventRepo(siteID string) *EventRepo { return &EventRepo{siteID: siteID} }

// Append writes one event. data is marshalled to JSON; key is the natural
// key of the subject (an attempt id).
func (r *EventRepo) Append(ctx context.Context, q DBTX, typ, key string, data any) error {
	buf, err := json.Marshal(data)
	if err != nil {
		return err
	}
	_, err = q.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, key, string(buf), time.Now().Unix())
	return err
}
