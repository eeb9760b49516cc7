package outbox

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/angelmondragon/materials-ledger/pkg/enums"
	"github.com/angelmondragon/materials-ledger/pkg/outbox/payloads"
)

type decoderFunc func(payload json.RawMessage) (interface{}, error)

type registryKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps versioned event types to payload decoders.
type DecoderRegistry struct {
	mtx      sync.RWMutex
	registry map[registryKey]decoderFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{registry: make(map[registryKey]decoderFunc)}
}

// DefaultDecoders knows every event the ledger emits at version 1.
func DefaultDecoders() *DecoderRegistry {
	r := NewDecoderRegistry()
	r.Register(enums.EventStockImportCompleted, 1, decodeInto[payloads.StockImportCompletedEvent])
	r.Register(enums.EventStagedImportConfirmed, 1, decodeInto[payloads.StagedImportConfirmedEvent])
	r.Register(enums.EventStockReserved, 1, decodeInto[payloads.StockReservationEvent])
	r.Register(enums.EventStockReleased, 1, decodeInto[payloads.StockReservationEvent])
	return r
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decoder decoderFunc) {
	r.mtx.Lock()
	defer r.mtx.Unlock()
	r.registry[registryKey{eventType: eventType, version: version}] = decoder
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (interface{}, error) {
	r.mtx.RLock()
	defer r.mtx.RUnlock()
	if decoder, ok := r.registry[registryKey{eventType: eventType, version: version}]; ok {
		return decoder(payload)
	}
	return nil, fmt.Errorf("decoder not registered for %s@v%d", eventType, version)
}

// DecodeEnvelope unwraps a stored outbox payload and decodes its data section.
func (r *DecoderRegistry) DecodeEnvelope(eventType enums.OutboxEventType, raw json.RawMessage) (PayloadEnvelope, interface{}, error) {
	var envelope PayloadEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("decode envelope: %w", err)
	}
	data, err := r.Decode(eventType, envelope.Version, envelope.Data)
	if err != nil {
		return envelope, nil, err
	}
	return envelope, data, nil
}

func decodeInto[T any](payload json.RawMessage) (interface{}, error) {
	var out T
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, err
	}
	return out, nil
}
