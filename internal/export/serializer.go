package export

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rzbill/provex/internal/provenance"
	"github.com/rzbill/provex/internal/topology"
)

const (
	// TimestampFormat renders event times in UTC for the wire envelope.
	TimestampFormat = "2006-01-02T15:04:05.000Z"

	// EntityType identifies the kind of data unit every provenance event
	// describes.
	EntityType = "io.provex.flow.FlowEntity"

	// DestinationURLSuffix is the fixed suffix the configured destination URL
	// must end with; stripping it yields the API prefix for content URIs.
	DestinationURLSuffix = "/ui"

	contentPathPrefix = "/api/provenance-events/"
)

// WireRecord is the canonical serialized form of one provenance event plus
// per-cycle context. Field order matches the documented envelope; absent
// optional values are omitted keys, never null.
type WireRecord struct {
	EventID             string            `json:"eventId"`
	EventOrdinal        uint64            `json:"eventOrdinal"`
	EventType           string            `json:"eventType"`
	TimestampMillis     int64             `json:"timestampMillis"`
	Timestamp           string            `json:"timestamp"`
	DurationMillis      int64             `json:"durationMillis"`
	LineageStart        int64             `json:"lineageStart"`
	Details             string            `json:"details,omitempty"`
	ComponentID         string            `json:"componentId,omitempty"`
	ComponentType       string            `json:"componentType,omitempty"`
	ComponentName       string            `json:"componentName,omitempty"`
	EntityID            string            `json:"entityId,omitempty"`
	EntityType          string            `json:"entityType,omitempty"`
	EntitySize          *int64            `json:"entitySize,omitempty"`
	PreviousEntitySize  *int64            `json:"previousEntitySize,omitempty"`
	UpdatedAttributes   map[string]string `json:"updatedAttributes,omitempty"`
	PreviousAttributes  map[string]string `json:"previousAttributes,omitempty"`
	ActorHostname       string            `json:"actorHostname,omitempty"`
	ContentURI          string            `json:"contentURI,omitempty"`
	PreviousContentURI  string            `json:"previousContentURI,omitempty"`
	ParentIDs           []string          `json:"parentIds,omitempty"`
	ChildIDs            []string          `json:"childIds,omitempty"`
	TransitURI          string            `json:"transitUri,omitempty"`
	RemoteIdentifier    string            `json:"remoteIdentifier,omitempty"`
	AlternateIdentifier string            `json:"alternateIdentifier,omitempty"`
	Platform            string            `json:"platform,omitempty"`
	Application         string            `json:"application,omitempty"`
}

// SerializeContext carries the per-cycle context constants the serializer
// folds into every record. It is rebuilt fresh each cycle and read-only for
// the cycle's duration.
type SerializeContext struct {
	Names             topology.NameIndex
	Hostname          string
	Platform          string
	Application       string
	DestinationPrefix string // destination URL minus DestinationURLSuffix; "" when unknown
	NodeID            string // cluster node id; "" when not clustered
	// NewID generates the per-record identifier; defaults to uuid.NewString.
	// The identifier is cosmetic deduplication metadata with no semantic
	// meaning and is intentionally fresh on every serialization.
	NewID func() string
}

// SplitDestinationURL validates that raw ends with DestinationURLSuffix and
// returns the stripped prefix and the URL's hostname.
func SplitDestinationURL(raw string) (prefix, hostname string, err error) {
	if !strings.HasSuffix(raw, DestinationURLSuffix) {
		return "", "", fmt.Errorf("export: destination URL %q must end with %q", raw, DestinationURLSuffix)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("export: destination URL: %w", err)
	}
	return strings.TrimSuffix(raw, DestinationURLSuffix), u.Hostname(), nil
}

// Serialize maps one event plus context into a WireRecord. Deterministic for
// identical inputs except for the freshly generated EventID.
func Serialize(ev provenance.Event, sctx SerializeContext) WireRecord {
	newID := sctx.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	rec := WireRecord{
		EventID:             newID(),
		EventOrdinal:        ev.EventID,
		EventType:           string(ev.EventType),
		TimestampMillis:     ev.TimestampMillis,
		Timestamp:           time.UnixMilli(ev.TimestampMillis).UTC().Format(TimestampFormat),
		DurationMillis:      ev.DurationMillis,
		LineageStart:        ev.LineageStartMillis,
		Details:             ev.Details,
		ComponentID:         ev.ComponentID,
		ComponentType:       ev.ComponentType,
		ComponentName:       sctx.Names.Lookup(ev.ComponentID),
		EntityID:            ev.FlowEntityID,
		EntityType:          EntityType,
		EntitySize:          copyInt64(ev.EntitySize),
		PreviousEntitySize:  copyInt64(ev.PreviousEntitySize),
		UpdatedAttributes:   copyAttributes(ev.UpdatedAttributes),
		PreviousAttributes:  copyAttributes(ev.PreviousAttributes),
		ActorHostname:       sctx.Hostname,
		ParentIDs:           copyIdentifiers(ev.ParentIDs),
		ChildIDs:            copyIdentifiers(ev.ChildIDs),
		TransitURI:          ev.TransitURI,
		RemoteIdentifier:    ev.RemoteIdentifier,
		AlternateIdentifier: ev.AlternateIdentifier,
		Platform:            sctx.Platform,
		Application:         sctx.Application,
	}

	if sctx.DestinationPrefix != "" {
		base := sctx.DestinationPrefix + contentPathPrefix + strconv.FormatUint(ev.EventID, 10) + "/content/"
		suffix := ""
		if sctx.NodeID != "" {
			suffix = "?clusterNodeId=" + sctx.NodeID
		}
		rec.ContentURI = base + "output" + suffix
		rec.PreviousContentURI = base + "input" + suffix
	}

	return rec
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	out := *v
	return &out
}

// copyAttributes drops entries with an absent key or value; map entry order
// carries no meaning on the wire.
func copyAttributes(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if k == "" || v == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// copyIdentifiers drops absent entries while preserving sequence order.
func copyIdentifiers(ids []string) []string {
	if ids == nil {
		return nil
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		out = append(out, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
