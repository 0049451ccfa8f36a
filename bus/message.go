package bus

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/vsariola/mixrack"
)

// Message is one event on the bus: a topic and its JSON payload. Messages
// without payload have a nil Payload.
type Message struct {
	Topic   Topic           `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage encodes payload and wraps it in a message. A nil payload gives a
// message without payload.
func NewMessage(topic Topic, payload any) (Message, error) {
	if payload == nil {
		return Message{Topic: topic}, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return Message{}, fmt.Errorf("encoding %s payload: %w", topic, err)
	}
	return Message{Topic: topic, Payload: b}, nil
}

// MustMessage is like NewMessage but panics if the payload cannot be encoded.
// Use it only with the payload types of this package.
func MustMessage(topic Topic, payload any) Message {
	m, err := NewMessage(topic, payload)
	if err != nil {
		panic(err)
	}
	return m
}

// Decode decodes the payload into v. Malformed payloads are reported as
// mixrack.ErrTypeMismatch.
func (m Message) Decode(v any) error {
	if len(bytes.TrimSpace(m.Payload)) == 0 {
		return fmt.Errorf("%s: empty payload: %w", m.Topic, mixrack.ErrTypeMismatch)
	}
	if err := json.Unmarshal(m.Payload, v); err != nil {
		return fmt.Errorf("%s: %v: %w", m.Topic, err, mixrack.ErrTypeMismatch)
	}
	return nil
}

func (m Message) String() string {
	if len(m.Payload) == 0 {
		return string(m.Topic)
	}
	return fmt.Sprintf("%s %s", m.Topic, m.Payload)
}
