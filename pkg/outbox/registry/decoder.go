package registry

import (
	"encoding/json"
	"fmt"

	"github.com/gebeya-market/gebeya-backend/pkg/enums"
	"github.com/gebeya-market/gebeya-backend/pkg/outbox"
)

type decoderKey struct {
	eventType enums.OutboxEventType
	version   int
}

// DecoderRegistry maps (event type, envelope version) to a payload decoder.
// Populate it before sharing; lookups are not synchronised with Register.
type DecoderRegistry struct {
	decoders map[decoderKey]decodeFunc
}

func NewDecoderRegistry() *DecoderRegistry {
	return &DecoderRegistry{decoders: map[decoderKey]decodeFunc{}}
}

// NewConsumerDecoders knows the current version of every catalogued event.
func NewConsumerDecoders() *DecoderRegistry {
	reg := NewDecoderRegistry()
	for _, e := range catalog {
		reg.Register(e.eventType, outbox.CurrentVersion, e.decode)
	}
	return reg
}

func (r *DecoderRegistry) Register(eventType enums.OutboxEventType, version int, decode func(json.RawMessage) (any, error)) {
	r.decoders[decoderKey{eventType, version}] = decode
}

func (r *DecoderRegistry) Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error) {
	decode, ok := r.decoders[decoderKey{eventType, version}]
	if !ok {
		return nil, fmt.Errorf("no decoder for %s@v%d", eventType, version)
	}
	return decode(payload)
}
