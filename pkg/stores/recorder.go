package stores

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/rauzy/rauzy/pkg/telemetry"
)

// Recorder returns a telemetry subscriber that appends every event it
// receives to the audit log of s. Failures are logged, not returned.
func Recorder(ctx context.Context, s Store) telemetry.EventSubscriber {
	return func(e telemetry.Event) {
		event := FromTelemetryEvent(e)
		if err := s.AppendEvent(ctx, event); err != nil {
			log.Warn().Err(err).
				Str("event_type", e.Type).
				Msg("Failed to record event")
		}
	}
}

// FromTelemetryEvent converts a published event into an audit row.
func FromTelemetryEvent(e telemetry.Event) *Event {
	event := &Event{
		EventID:   e.ID,
		Type:      e.Type,
		Source:    e.Source,
		Model:     optional(e.Model),
		Subject:   optional(e.Subject),
		Level:     toLevel(e.Level),
		Message:   e.Message,
		Timestamp: e.Timestamp,
	}
	if len(e.Data) > 0 {
		if data, err := json.Marshal(e.Data); err == nil {
			details := string(data)
			event.Details = &details
		}
	}
	return event
}

func toLevel(level string) EventLevel {
	switch EventLevel(level) {
	case EventLevelDebug, EventLevelWarning, EventLevelError:
		return EventLevel(level)
	}
	return EventLevelInfo
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
