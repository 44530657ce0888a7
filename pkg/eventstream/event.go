package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeRelayCompleted is emitted after the gateway finished relaying a
	// request to the upstream API.
	EventTypeRelayCompleted = "devlens.gateway.relay.completed"
)

// Relay outcomes.
const (
	OutcomeCompleted           = "completed"
	OutcomeUpstreamUnavailable = "upstream_unavailable"
	OutcomeInterrupted         = "interrupted"
	OutcomeClientGone          = "client_gone"
	OutcomeShutdown            = "shutdown"
)

// RelayCompletedEvent is a transport-neutral event payload for one relayed
// request.
type RelayCompletedEvent struct {
	SchemaVersion int         `json:"schema_version"`
	EventType     string      `json:"event_type"`
	EventID       string      `json:"event_id"`
	EmittedAt     time.Time   `json:"emitted_at"`
	TraceID       string      `json:"trace_id"`
	Request       RequestMeta `json:"request"`
	Stream        *StreamMeta `json:"stream,omitempty"`
	Outcome       string      `json:"outcome"`
}

// RequestMeta captures request lifecycle metadata for the event.
type RequestMeta struct {
	Method      string    `json:"method"`
	Path        string    `json:"path"`
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
	HTTPStatus  int       `json:"http_status"`
	BytesOut    int64     `json:"bytes_out"`
}

// StreamMeta is set for relayed event streams.
type StreamMeta struct {
	Frames         int   `json:"frames"`
	FirstFrameMs   int64 `json:"first_frame_ms"`
	LastEventIsEnd bool  `json:"last_event_is_end"`
}

// NewRelayCompletedEvent stamps a new event with its schema, type, id and
// emission time.
func NewRelayCompletedEvent(traceID string, req RequestMeta, outcome string) *RelayCompletedEvent {
	return &RelayCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeRelayCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		TraceID:       traceID,
		Request:       req,
		Outcome:       outcome,
	}
}
