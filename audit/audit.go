package audit

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"time"
)

// Event types emitted by the admission pipeline.
const (
	EventSessionCreated    = "session_created"
	EventAuthRejected      = "auth_rejected"
	EventCSRFRejected      = "csrf_rejected"
	EventRateLimitExceeded = "rate_limit_exceeded"
	EventBackendDegraded   = "rate_limit_backend_degraded"
	EventBackendRecovered  = "rate_limit_backend_recovered"
)

// Event is the canonical audit record produced by admission decisions.
type Event struct {
	Timestamp  time.Time         `json:"timestamp"`
	EventType  string            `json:"event_type"`
	UserID     string            `json:"user_id,omitempty"`
	Identifier string            `json:"identifier,omitempty"`
	IP         string            `json:"ip,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// sensitiveKeys are metadata fields whose values are never recorded verbatim.
var sensitiveKeys = []string{"password", "token", "secret", "key", "authorization", "cookie"}

// Redact returns a copy of metadata with credential-bearing values masked.
// Keys are matched case-insensitively by substring.
func Redact(metadata map[string]string) map[string]string {
	if len(metadata) == 0 {
		return nil
	}
	out := make(map[string]string, len(metadata))
	for k, v := range metadata {
		lower := strings.ToLower(k)
		masked := false
		for _, s := range sensitiveKeys {
			if strings.Contains(lower, s) {
				out[k] = "[redacted]"
				masked = true
				break
			}
		}
		if !masked {
			out[k] = v
		}
	}
	return out
}

// Sink receives emitted audit events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops audit events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes audit events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
