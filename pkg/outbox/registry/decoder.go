package registry

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/okabe-dev/bidhouse-backend/pkg/enums"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, schema version) pairs to payload decoders
// so consumers can unmarshal old envelope versions after a payload evolves.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	decoders map[decoderKey]decoderFunc
}

// NewDecoderRegistry builds an empty decoder registry.
func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: make(map[decoderKey]decoderFunc)}
}

// Register stores a decoder for the given event type and version, replacing
// any previous registration.
func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.decoders[decoderKey{eventType: eventType, version: version}] = decoder
}

// Decode runs the decoder registered for the event type and version. Unknown
// pairs are an error so consumers fail loudly on unregistered schemas.
func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	decoder, ok := r.decoders[decoderKey{eventType: eventType, version: version}]
	r.mtx.RUnlock()
	if !ok {
		return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
	}
	return decoder(payload)
}
