package ledger

import (
	"context"
	"time"

	"insurelane/pkg/domain"

	"github.com/google/uuid"
)

const (
	EventCompanyRegistered = "company.registered"
	EventPlanCreated       = "plan.created"
	EventRequestSubmitted  = "request.submitted"
	EventRequestNegotiated = "request.negotiated"
	EventRequestDenied     = "request.denied"
	EventRequestSettled    = "request.settled"
	EventRequestExpired    = "request.expired"
)

// Event is a committed state change, emitted once per successful transition.
type Event struct {
	ID         string          `json:"event_id"`
	Type       string          `json:"event_type"`
	Entity     string          `json:"entity"`
	EntityID   uint64          `json:"entity_id"`
	Actor      domain.Identity `json:"actor"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    map[string]any  `json:"payload"`
}

// Sink receives committed events. Delivery is fire-and-forget: a sink must
// not call back into the ledger and must not block for long.
type Sink interface {
	Emit(ctx context.Context, ev Event)
}

func (l *Ledger) emit(ctx context.Context, eventType, entity string, entityID uint64, actor domain.Identity, payload map[string]any) {
	if len(l.sinks) == 0 {
		return
	}
	ev := Event{
		ID:         "evt_" + uuid.NewString(),
		Type:       eventType,
		Entity:     entity,
		EntityID:   entityID,
		Actor:      actor,
		OccurredAt: l.now().UTC(),
		Payload:    payload,
	}
	for _, s := range l.sinks {
		s.Emit(ctx, ev)
	}
}
