package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

var (
	ErrEmptyBody   = errors.New("event body is empty")
	ErrMissingType = errors.New("event has no type")
)

// Metadata carries the request-scoped identifiers attached by upstream
// services when they publish an event.
type Metadata struct {
	CorrelationID string `json:"correlationId,omitempty"`
	CausationID   string `json:"causationId,omitempty"`
	UserID        string `json:"userId,omitempty"`
	TraceID       string `json:"traceId,omitempty"`
}

// Event is the normalized internal representation of a broker message.
// Upstream services publish two envelope generations (`type`/`payload` and
// `eventType`/`data`); DecodeEvent folds both into this one shape so
// handlers never have to care which service produced the event.
type Event struct {
	ID            string
	Type          string
	AggregateType string
	AggregateID   string
	Timestamp     time.Time
	Version       int
	Payload       json.RawMessage
	Metadata      Metadata
}

// wireEnvelope accepts both envelope generations at once.
type wireEnvelope struct {
	EventID       string          `json:"eventId"`
	Type          string          `json:"type"`
	EventType     string          `json:"eventType"`
	AggregateType string          `json:"aggregateType"`
	AggregateID   string          `json:"aggregateId"`
	Timestamp     string          `json:"timestamp"`
	Version       int             `json:"version"`
	Payload       json.RawMessage `json:"payload"`
	Data          json.RawMessage `json:"data"`
	Metadata      Metadata        `json:"metadata"`
}

// DecodeEvent parses a raw broker message body and normalizes it.
// A failure here is treated exactly like a handler failure by the consumer,
// so malformed messages follow the same retry/drop policy as everything else.
func DecodeEvent(body []byte) (Event, error) {
	if len(body) == 0 {
		return Event{}, ErrEmptyBody
	}

	var wire wireEnvelope
	if err := json.Unmarshal(body, &wire); err != nil {
		return Event{}, fmt.Errorf("failed to decode event envelope: %w", err)
	}

	eventType := wire.Type
	if eventType == "" {
		eventType = wire.EventType
	}
	if eventType == "" {
		return Event{}, ErrMissingType
	}

	payload := wire.Payload
	if len(payload) == 0 {
		payload = wire.Data
	}

	evt := Event{
		ID:            wire.EventID,
		Type:          eventType,
		AggregateType: wire.AggregateType,
		AggregateID:   wire.AggregateID,
		Version:       wire.Version,
		Payload:       payload,
		Metadata:      wire.Metadata,
	}

	if wire.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, wire.Timestamp); err == nil {
			evt.Timestamp = ts
		}
	}

	return evt, nil
}

// DecodePayload unmarshals the event payload into the given struct.
func (e Event) DecodePayload(v any) error {
	if len(e.Payload) == 0 {
		return fmt.Errorf("event %s has no payload", e.Type)
	}
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}
