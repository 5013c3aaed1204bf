package event

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Event represents a domain event about a workflow instance
type Event struct {
	ID            string         `json:"id"`
	Type          Type           `json:"type"`
	InstanceID    string         `json:"instance_id"`
	Payload       map[string]any `json:"payload"`
	Timestamp     time.Time      `json:"timestamp"`
	CorrelationID string         `json:"correlation_id"`
}

// NewEvent creates a new domain event with a generated ID and timestamp
func NewEvent(eventType Type, instanceID string, payload map[string]any) *Event {
	id := uuid.NewString()
	return &Event{
		ID:            id,
		Type:          eventType,
		InstanceID:    instanceID,
		Payload:       payload,
		Timestamp:     time.Now(),
		CorrelationID: id,
	}
}

// NewEventWithCorrelation creates an event linked to a correlation chain,
// e.g. every event emitted by one RecordDecision call
func NewEventWithCorrelation(eventType Type, instanceID string, payload map[string]any, correlationID string) *Event {
	evt := NewEvent(eventType, instanceID, payload)
	evt.CorrelationID = correlationID
	return evt
}

// WithPayload returns a copy of the event with an added payload entry
func (e *Event) WithPayload(key string, value any) *Event {
	newPayload := make(map[string]any, len(e.Payload)+1)
	for k, v := range e.Payload {
		newPayload[k] = v
	}
	newPayload[key] = value

	clone := *e
	clone.Payload = newPayload
	return &clone
}

// GetPayloadString retrieves a string value from the payload
func (e *Event) GetPayloadString(key string) string {
	return cast.ToString(e.Payload[key])
}

// GetPayloadStrings retrieves a list of strings from the payload
func (e *Event) GetPayloadStrings(key string) []string {
	return cast.ToStringSlice(e.Payload[key])
}

// GetPayloadInt retrieves an int64 value from the payload
func (e *Event) GetPayloadInt(key string) int64 {
	return cast.ToInt64(e.Payload[key])
}

// GetPayloadBool retrieves a bool value from the payload
func (e *Event) GetPayloadBool(key string) bool {
	return cast.ToBool(e.Payload[key])
}
