package outcome

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

const (
	EventRecomputeCommitted = "RecomputeCommitted"
	EventRecomputeAborted   = "RecomputeAborted"
)

// EventRepo appends recompute outcomes to the event_log table for staleness
// and failure auditing.
type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

type recomputeEvent struct {
	Scope   Scope         `json:"scope"`
	Phase   Phase         `json:"phase"`
	Written int           `json:"written"`
	Skipped []SkippedNode `json:"skipped,omitempty"`
	Error   string        `json:"error,omitempty"`
}

func (r *EventRepo) RecordRecompute(ctx context.Context, res *Result) error {
	typ := EventRecomputeCommitted
	ev := recomputeEvent{Scope: res.Scope, Phase: res.Phase, Written: len(res.Written), Skipped: res.Skipped}
	if res.Phase == PhaseAborted {
		typ = EventRecomputeAborted
		if res.Err != nil {
			ev.Error = res.Err.Error()
		}
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		r.siteID, typ, res.RequestID, string(data), time.Now().Unix())
	return err
}
