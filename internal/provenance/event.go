package provenance

import (
	"fmt"
	"strings"
)

// EventType classifies a single transition of a flow entity through the engine.
type EventType string

// Known event types.
const (
	EventCreate             EventType = "CREATE"
	EventReceive            EventType = "RECEIVE"
	EventFetch              EventType = "FETCH"
	EventSend               EventType = "SEND"
	EventDownload           EventType = "DOWNLOAD"
	EventDrop               EventType = "DROP"
	EventExpire             EventType = "EXPIRE"
	EventFork               EventType = "FORK"
	EventJoin               EventType = "JOIN"
	EventClone              EventType = "CLONE"
	EventContentModified    EventType = "CONTENT_MODIFIED"
	EventAttributesModified EventType = "ATTRIBUTES_MODIFIED"
	EventRoute              EventType = "ROUTE"
	EventReplay             EventType = "REPLAY"
	EventUnknown            EventType = "UNKNOWN"
)

// Types lists every known event type in declaration order.
func Types() []EventType {
	return []EventType{
		EventCreate, EventReceive, EventFetch, EventSend, EventDownload,
		EventDrop, EventExpire, EventFork, EventJoin, EventClone,
		EventContentModified, EventAttributesModified, EventRoute,
		EventReplay, EventUnknown,
	}
}

// ParseEventType resolves a single token to a known EventType.
func ParseEventType(token string) (EventType, error) {
	t := EventType(strings.ToUpper(strings.TrimSpace(token)))
	for _, known := range Types() {
		if t == known {
			return known, nil
		}
	}
	return "", fmt.Errorf("provenance: unknown event type %q", token)
}

// ParseEventTypes splits a comma-separated token list and resolves each token.
// Unknown tokens are returned in rejected rather than failing the whole parse;
// callers surface them as configuration warnings.
func ParseEventTypes(csv string) (accepted []EventType, rejected []string) {
	for _, raw := range strings.Split(csv, ",") {
		token := strings.TrimSpace(raw)
		if token == "" {
			continue
		}
		t, err := ParseEventType(token)
		if err != nil {
			rejected = append(rejected, token)
			continue
		}
		accepted = append(accepted, t)
	}
	return accepted, rejected
}

// Event is one provenance record as stored in the event log. EventID is the
// log ordinal: strictly increasing within a single log and assigned at append
// time, never by the producer.
type Event struct {
	EventID             uint64            `json:"eventId"`
	EventType           EventType         `json:"eventType"`
	TimestampMillis     int64             `json:"timestampMillis"`
	DurationMillis      int64             `json:"durationMillis"`
	LineageStartMillis  int64             `json:"lineageStartMillis"`
	ComponentID         string            `json:"componentId,omitempty"`
	ComponentType       string            `json:"componentType,omitempty"`
	Details             string            `json:"details,omitempty"`
	FlowEntityID        string            `json:"flowEntityId,omitempty"`
	EntitySize          *int64            `json:"entitySize,omitempty"`
	PreviousEntitySize  *int64            `json:"previousEntitySize,omitempty"`
	UpdatedAttributes   map[string]string `json:"updatedAttributes,omitempty"`
	PreviousAttributes  map[string]string `json:"previousAttributes,omitempty"`
	ParentIDs           []string          `json:"parentIds,omitempty"`
	ChildIDs            []string          `json:"childIds,omitempty"`
	TransitURI          string            `json:"transitUri,omitempty"`
	RemoteIdentifier    string            `json:"remoteSystemIdentifier,omitempty"`
	AlternateIdentifier string            `json:"alternateIdentifierUri,omitempty"`
}
