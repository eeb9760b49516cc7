package outbox

import (
	"encoding/json"
	"time"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	ActorID string `json:"actorId"`
}

// NewActorRef returns nil for anonymous callers so the envelope omits the actor.
func NewActorRef(actorID string) *ActorRef {
	if actorID == "" {
		return nil
	}
	return &ActorRef{ActorID: actorID}
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
