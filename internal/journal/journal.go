// Package journal persists committed ledger events to Postgres for off-core
// indexers and audit reads.
package journal

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"insurelane/internal/ledger"
	"insurelane/pkg/domain"

	"github.com/jackc/pgx/v5/pgxpool"
)

type Journal struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Journal {
	return &Journal{DB: db}
}

// EnsureSchema creates the events table when the service owns its schema.
func (j *Journal) EnsureSchema(ctx context.Context) error {
	_, err := j.DB.Exec(ctx, `
CREATE TABLE IF NOT EXISTS insurance_events (
  event_id    text PRIMARY KEY,
  event_type  text NOT NULL,
  entity      text NOT NULL,
  entity_id   bigint NOT NULL,
  actor       text NOT NULL,
  payload     jsonb NOT NULL DEFAULT '{}'::jsonb,
  occurred_at timestamptz NOT NULL
)
`)
	return err
}

type row struct {
	EventID    string
	EventType  string
	Entity     string
	EntityID   uint64
	Actor      string
	Payload    []byte
	OccurredAt time.Time
}

func rowFromEvent(ev ledger.Event) (row, error) {
	payload := ev.Payload
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return row{}, err
	}
	return row{
		EventID:    ev.ID,
		EventType:  ev.Type,
		Entity:     ev.Entity,
		EntityID:   ev.EntityID,
		Actor:      string(ev.Actor),
		Payload:    b,
		OccurredAt: ev.OccurredAt,
	}, nil
}

// Emit writes the event best-effort. Journal failure never fails the
// transition that produced the event.
func (j *Journal) Emit(ctx context.Context, ev ledger.Event) {
	r, err := rowFromEvent(ev)
	if err != nil {
		log.Printf("journal: marshal event %s: %v", ev.ID, err)
		return
	}
	_, err = j.DB.Exec(ctx, `
INSERT INTO insurance_events(event_id,event_type,entity,entity_id,actor,payload,occurred_at)
VALUES($1,$2,$3,$4,$5,$6::jsonb,$7)
ON CONFLICT (event_id) DO NOTHING
`, r.EventID, r.EventType, r.Entity, r.EntityID, r.Actor, string(r.Payload), r.OccurredAt)
	if err != nil {
		log.Printf("journal: insert event %s: %v", ev.ID, err)
	}
}

type StoredEvent struct {
	EventID    string          `json:"event_id"`
	EventType  string          `json:"event_type"`
	Entity     string          `json:"entity"`
	EntityID   uint64          `json:"entity_id"`
	Actor      domain.Identity `json:"actor"`
	Payload    map[string]any  `json:"payload"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// Recent returns the newest events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]StoredEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.DB.Query(ctx, `
SELECT event_id,event_type,entity,entity_id,actor,payload,occurred_at
FROM insurance_events
ORDER BY occurred_at DESC, event_id DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StoredEvent
	for rows.Next() {
		var ev StoredEvent
		var payload []byte
		if err := rows.Scan(&ev.EventID, &ev.EventType, &ev.Entity, &ev.EntityID, &ev.Actor, &payload, &ev.OccurredAt); err != nil {
			return nil, err
		}
		if err := json.Unmarshal(payload, &ev.Payload); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}
