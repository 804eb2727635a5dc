package sessionguard

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Audit event types emitted by the Manager.
const (
	AuditSessionCreated       = "session_created"
	AuditSessionRotated       = "session_rotated"
	AuditRotationRetried      = "rotation_retried"
	AuditRotationInvalid      = "rotation_invalid"
	AuditReplayDetected       = "replay_detected"
	AuditSessionRevoked       = "session_revoked"
	AuditSessionsRevokedAll   = "sessions_revoked_all"
	AuditSessionLimitRejected = "session_limit_rejected"
)

// AuditEvent is one observable lifecycle fact. Events never carry token
// material or hashes; SessionID is the only credential-adjacent field and is
// safe for log lines.
type AuditEvent struct {
	Timestamp time.Time         `json:"timestamp"`
	EventType string            `json:"event_type"`
	UserID    string            `json:"user_id,omitempty"`
	SessionID string            `json:"session_id,omitempty"`
	IP        string            `json:"ip,omitempty"`
	Success   bool              `json:"success"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// AuditSink receives events from the asynchronous dispatcher. Emit must be
// safe for concurrent use and should return quickly; slow sinks cause event
// drops when Config.Audit.DropIfFull is set.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards all events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// ChannelSink buffers events on a channel for consumption by application code.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan AuditEvent, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// JSONWriterSink writes one JSON object per line to the given writer.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event AuditEvent) {
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

// emit stamps and forwards an event to the dispatcher. No-op when audit is
// disabled.
func (m *Manager) emit(ctx context.Context, event AuditEvent) {
	if m == nil || m.audit == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = m.now()
	}
	m.audit.Emit(ctx, event)
}
