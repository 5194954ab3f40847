package transmit

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/irclimate/internal/ircode"
)

// EnvelopeKey is the field IR bridges such as zigbee2mqtt blasters read the code from.
const EnvelopeKey = "ir_code_to_send"

// Encoder frames a table payload for the wire. One encoder is chosen per
// deployment; the state machine never sees framing.
type Encoder interface {
	Encode(payload ircode.Payload) ([]byte, error)
	Name() string
}

// RawEncoder sends the table payload verbatim.
type RawEncoder struct{}

// Encode implements Encoder.
func (RawEncoder) Encode(payload ircode.Payload) ([]byte, error) {
	return []byte(payload), nil
}

// Name implements Encoder.
func (RawEncoder) Name() string { return "raw" }

// EnvelopeEncoder wraps the payload as {"ir_code_to_send": <payload>}.
// Payloads that are themselves JSON objects are embedded as objects, anything
// else as a string.
type EnvelopeEncoder struct{}

// Encode implements Encoder.
func (EnvelopeEncoder) Encode(payload ircode.Payload) ([]byte, error) {
	var value any = string(payload)
	trimmed := strings.TrimSpace(string(payload))
	if strings.HasPrefix(trimmed, "{") && json.Valid([]byte(trimmed)) {
		value = json.RawMessage(trimmed)
	}

	b, err := json.Marshal(map[string]any{EnvelopeKey: value})
	if err != nil {
		return nil, fmt.Errorf("encoding envelope: %w", err)
	}
	return b, nil
}

// Name implements Encoder.
func (EnvelopeEncoder) Name() string { return "envelope" }

// EncoderFor returns the encoder registered under name ("raw" or "envelope").
func EncoderFor(name string) (Encoder, error) {
	switch strings.ToLower(name) {
	case "", "raw":
		return RawEncoder{}, nil
	case "envelope":
		return EnvelopeEncoder{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEncoding, name)
}
