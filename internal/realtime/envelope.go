package realtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
)

// EventType is the SSE event name a handler is registered under.
type EventType string

const (
	EventConnected          EventType = "connected"
	EventHeartbeat          EventType = "heartbeat"
	EventCommentChanged     EventType = "comment_changed"
	EventReactionChanged    EventType = "reaction_changed"
	EventUnreadCountChanged EventType = "unread_count_changed"
)

// Envelope is the JSON payload carried by every realtime event.
type Envelope struct {
	EventID    string          `json:"eventId"`
	ScopeID    int64           `json:"scopeId"`
	Type       string          `json:"type"`
	OccurredAt string          `json:"occurredAt"`
	Data       json.RawMessage `json:"data,omitempty"`
}

// Time parses OccurredAt. Zoned RFC 3339 and zone-less local timestamps
// are both accepted; the latter are read as UTC.
func (e Envelope) Time() (time.Time, bool) {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999999"} {
		if t, err := time.Parse(layout, e.OccurredAt); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Decode unmarshals the event data into v.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return errors.New("realtime: event has no data")
	}
	return json.Unmarshal(e.Data, v)
}

// UnreadCount is the data of an unread_count_changed event.
type UnreadCount struct {
	UnreadCount *int64 `json:"unreadCount"`
}

// envelopeWire accepts the legacy per-scope id keys next to scopeId.
type envelopeWire struct {
	EventID    string          `json:"eventId"`
	ScopeID    *int64          `json:"scopeId"`
	BoardID    *int64          `json:"boardId"`
	UserID     *int64          `json:"userId"`
	Type       string          `json:"type"`
	OccurredAt string          `json:"occurredAt"`
	Data       json.RawMessage `json:"data"`
}

const envelopeSchemaJSON = `{
  "type": "object",
  "required": ["eventId", "type", "occurredAt"],
  "properties": {
    "eventId":    {"type": "string", "minLength": 1},
    "type":       {"type": "string", "minLength": 1},
    "occurredAt": {"type": "string", "minLength": 1},
    "scopeId":    {"type": "integer"},
    "boardId":    {"type": "integer"},
    "userId":     {"type": "integer"}
  }
}`

var envelopeSchema = mustSchema(envelopeSchemaJSON)

func mustSchema(src string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("realtime: invalid envelope schema: %v", err))
	}
	return schema
}

// parseEnvelope validates and decodes one event payload.
func parseEnvelope(raw string) (Envelope, error) {
	result, err := envelopeSchema.Validate(gojsonschema.NewStringLoader(raw))
	if err != nil {
		return Envelope{}, fmt.Errorf("realtime: parse envelope: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			msgs = append(msgs, desc.String())
		}
		return Envelope{}, fmt.Errorf("realtime: invalid envelope: %s", strings.Join(msgs, "; "))
	}

	var wire envelopeWire
	if err := json.Unmarshal([]byte(raw), &wire); err != nil {
		return Envelope{}, fmt.Errorf("realtime: decode envelope: %w", err)
	}
	env := Envelope{
		EventID:    wire.EventID,
		Type:       wire.Type,
		OccurredAt: wire.OccurredAt,
		Data:       wire.Data,
	}
	switch {
	case wire.ScopeID != nil:
		env.ScopeID = *wire.ScopeID
	case wire.BoardID != nil:
		env.ScopeID = *wire.BoardID
	case wire.UserID != nil:
		env.ScopeID = *wire.UserID
	}
	return env, nil
}
