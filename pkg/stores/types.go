package stores

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rauzy/rauzy/pkg/document"
)

// ErrNotFound is wrapped by lookups that match no row.
var ErrNotFound = errors.New("not found")

// SnapshotKind tells which document a snapshot holds.
type SnapshotKind string

const (
	SnapshotKindModel   SnapshotKind = "model"
	SnapshotKindLibrary SnapshotKind = "library"
)

// EventLevel represents the severity level of an event
type EventLevel string

const (
	EventLevelDebug   EventLevel = "debug"
	EventLevelInfo    EventLevel = "info"
	EventLevelWarning EventLevel = "warning"
	EventLevelError   EventLevel = "error"
)

// Snapshot is one stored version of a model or library document.
// Versions count from 1 per kind and name.
type Snapshot struct {
	ID        string       `json:"id"`
	Kind      SnapshotKind `json:"kind"`
	Name      string       `json:"name"`
	Version   int          `json:"version"`
	Hash      string       `json:"hash"`              // SHA256 of Content
	Content   []byte       `json:"content,omitempty"` // JSON document, empty in listings
	LibraryID *string      `json:"library_id,omitempty"`
	Metadata  string       `json:"metadata"` // JSON blob
	CreatedAt time.Time    `json:"created_at"`
}

// Library decodes a library snapshot.
func (s *Snapshot) Library() (*document.Library, error) {
	if s.Kind != SnapshotKindLibrary {
		return nil, fmt.Errorf("snapshot %s is a %s, not a library", s.ID, s.Kind)
	}
	return document.DecodeLibrary(bytes.NewReader(s.Content), document.FormatJSON)
}

// Model decodes a model snapshot.
func (s *Snapshot) Model() (*document.Object, error) {
	if s.Kind != SnapshotKindModel {
		return nil, fmt.Errorf("snapshot %s is a %s, not a model", s.ID, s.Kind)
	}
	return document.DecodeObject(bytes.NewReader(s.Content), document.FormatJSON)
}

// Event represents an append-only audit event
type Event struct {
	ID         int64      `json:"id"`
	EventID    string     `json:"event_id"`
	SnapshotID *string    `json:"snapshot_id,omitempty"`
	Type       string     `json:"type"`
	Source     string     `json:"source"`
	Model      *string    `json:"model,omitempty"`
	Subject    *string    `json:"subject,omitempty"`
	Level      EventLevel `json:"level"`
	Message    string     `json:"message"`
	Details    *string    `json:"details,omitempty"` // JSON blob
	Timestamp  time.Time  `json:"timestamp"`
}

// EventFilter narrows ListEvents. Nil fields match everything.
type EventFilter struct {
	Model *string
	Type  *string
	Level *EventLevel
}

// Store defines the interface for the snapshot catalog
type Store interface {
	// Lifecycle
	Init(ctx context.Context) error
	Close() error
	Migrate(ctx context.Context) error

	// Snapshot operations
	SaveLibrary(ctx context.Context, name string, doc *document.Library) (*Snapshot, error)
	GetLibrary(ctx context.Context, name string, version int) (*Snapshot, error)
	SaveModel(ctx context.Context, name string, doc *document.Object, libraryID *string) (*Snapshot, error)
	GetModel(ctx context.Context, name string, version int) (*Snapshot, error)
	GetSnapshot(ctx context.Context, id string) (*Snapshot, error)
	ListSnapshots(ctx context.Context, kind *SnapshotKind, name *string, limit, offset int) ([]*Snapshot, error)
	DeleteSnapshot(ctx context.Context, id string) error

	// Event operations
	AppendEvent(ctx context.Context, event *Event) error
	ListEvents(ctx context.Context, filter EventFilter, limit, offset int) ([]*Event, error)

	// Utility
	HealthCheck(ctx context.Context) error
}
