package outbox

import (
	"encoding/json"
	"time"

	"github.com/okabe-dev/bidhouse-backend/pkg/types"
)

// ActorRef identifies who produced the event.
type ActorRef struct {
	Address types.Address `json:"address"`
	Role    string        `json:"role,omitempty"`
}

// PayloadEnvelope is the stable payload structure stored in outbox_events.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}
