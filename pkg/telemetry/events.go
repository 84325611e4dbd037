package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event represents a telemetry event emitted while working on models.
type Event struct {
	// ID is the unique identifier for this event.
	ID string `json:"id"`

	// Timestamp is when the event occurred.
	Timestamp time.Time `json:"timestamp"`

	// Type is the event type.
	Type string `json:"type"`

	// Source identifies where the event originated.
	Source string `json:"source"`

	// Model is the associated model name, if applicable.
	Model string `json:"model,omitempty"`

	// Subject is the object path, relation path or class the event is about.
	Subject string `json:"subject,omitempty"`

	// Message is a human-readable event message.
	Message string `json:"message"`

	// Level is the event severity level (info, warning, error).
	Level string `json:"level"`

	// Data contains additional event-specific data.
	Data map[string]interface{} `json:"data,omitempty"`
}

// EventType constants for common event types.
const (
	EventTypeModelLoaded        = "model.loaded"
	EventTypeModelSaved         = "model.saved"
	EventTypeLibraryLoaded      = "library.loaded"
	EventTypeTransformCompleted = "transform.completed"
	EventTypeTransformFailed    = "transform.failed"
	EventTypeRelationsRemoved   = "relations.removed"
	EventTypePolicyViolation    = "policy.violation"
	EventTypeSnapshotSaved      = "snapshot.saved"
)

// EventLevel constants for event severity.
const (
	EventLevelInfo    = "info"
	EventLevelWarning = "warning"
	EventLevelError   = "error"
)

// EventSubscriber is a function that handles events.
type EventSubscriber func(event Event)

// EventFilter determines if an event should be processed.
type EventFilter func(event Event) bool

// EventPublisher manages event publishing and subscriptions.
type EventPublisher struct {
	config      EventsConfig
	buffer      chan Event
	subscribers []subscriberEntry
	wg          sync.WaitGroup
	mu          sync.RWMutex
	ctx         context.Context
	cancel      context.CancelFunc
}

type subscriberEntry struct {
	subscriber EventSubscriber
	filter     EventFilter
}

// NewEventPublisher creates a new event publisher with the given configuration.
func NewEventPublisher(cfg EventsConfig) (*EventPublisher, error) {
	if !cfg.Enabled {
		return &EventPublisher{config: cfg}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())

	ep := &EventPublisher{
		config:      cfg,
		buffer:      make(chan Event, cfg.BufferSize),
		subscribers: make([]subscriberEntry, 0),
		ctx:         ctx,
		cancel:      cancel,
	}

	// Start the event processing goroutine
	if cfg.EnableAsync {
		ep.wg.Add(1)
		go ep.processEvents()
	}

	return ep, nil
}

// Publish publishes an event to all subscribers.
func (ep *EventPublisher) Publish(event Event) error {
	if !ep.config.Enabled {
		return nil
	}

	// Set ID and timestamp if not already set
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Send to buffer if async, otherwise process immediately
	if ep.config.EnableAsync {
		select {
		case ep.buffer <- event:
			return nil
		case <-ep.ctx.Done():
			return fmt.Errorf("event publisher stopped")
		default:
			// Buffer full, drop event or log warning
			return fmt.Errorf("event buffer full, event dropped")
		}
	}

	// Synchronous publishing
	ep.deliverEvent(event)
	return nil
}

// PublishModelLoaded publishes a model loaded event.
func (ep *EventPublisher) PublishModelLoaded(model, path string, objects int) error {
	return ep.Publish(Event{
		Type:    EventTypeModelLoaded,
		Source:  "workspace",
		Model:   model,
		Message: fmt.Sprintf("Model %s loaded from %s (%d objects)", model, path, objects),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path":    path,
			"objects": objects,
		},
	})
}

// PublishModelSaved publishes a model saved event.
func (ep *EventPublisher) PublishModelSaved(model, path string) error {
	return ep.Publish(Event{
		Type:    EventTypeModelSaved,
		Source:  "workspace",
		Model:   model,
		Message: fmt.Sprintf("Model %s saved to %s", model, path),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"path": path,
		},
	})
}

// PublishLibraryLoaded publishes a library loaded event.
func (ep *EventPublisher) PublishLibraryLoaded(path string, objectClasses, relationClasses int) error {
	return ep.Publish(Event{
		Type:    EventTypeLibraryLoaded,
		Source:  "library",
		Subject: path,
		Message: fmt.Sprintf("Library %s loaded (%d object classes, %d relation classes)", path, objectClasses, relationClasses),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"object_classes":   objectClasses,
			"relation_classes": relationClasses,
		},
	})
}

// PublishTransformCompleted publishes a transform completed event.
func (ep *EventPublisher) PublishTransformCompleted(model, transform string, duration time.Duration) error {
	return ep.Publish(Event{
		Type:    EventTypeTransformCompleted,
		Source:  "transform",
		Model:   model,
		Subject: transform,
		Message: fmt.Sprintf("Transform %s of model %s completed", transform, model),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"duration": duration.Seconds(),
		},
	})
}

// PublishTransformFailed publishes a transform failed event.
func (ep *EventPublisher) PublishTransformFailed(model, transform, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypeTransformFailed,
		Source:  "transform",
		Model:   model,
		Subject: transform,
		Message: fmt.Sprintf("Transform %s of model %s failed: %s", transform, model, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"reason": reason,
		},
	})
}

// PublishRelationsRemoved publishes the relations dropped by a transform.
func (ep *EventPublisher) PublishRelationsRemoved(model, transform string, paths []string) error {
	if len(paths) == 0 {
		return nil
	}
	return ep.Publish(Event{
		Type:    EventTypeRelationsRemoved,
		Source:  "transform",
		Model:   model,
		Subject: transform,
		Message: fmt.Sprintf("Transform %s of model %s removed %d relations", transform, model, len(paths)),
		Level:   EventLevelWarning,
		Data: map[string]interface{}{
			"relations": paths,
		},
	})
}

// PublishPolicyViolation publishes a policy violation event.
func (ep *EventPublisher) PublishPolicyViolation(model, subject, policyName, reason string) error {
	return ep.Publish(Event{
		Type:    EventTypePolicyViolation,
		Source:  "policy_engine",
		Model:   model,
		Subject: subject,
		Message: fmt.Sprintf("Policy violation on %s: %s - %s", subject, policyName, reason),
		Level:   EventLevelError,
		Data: map[string]interface{}{
			"policy": policyName,
			"reason": reason,
		},
	})
}

// PublishSnapshotSaved publishes a snapshot saved event.
func (ep *EventPublisher) PublishSnapshotSaved(kind, name string, version int) error {
	return ep.Publish(Event{
		Type:    EventTypeSnapshotSaved,
		Source:  "store",
		Subject: name,
		Message: fmt.Sprintf("Snapshot %s %s v%d saved", kind, name, version),
		Level:   EventLevelInfo,
		Data: map[string]interface{}{
			"kind":    kind,
			"version": version,
		},
	})
}

// Subscribe adds a new event subscriber.
func (ep *EventPublisher) Subscribe(subscriber EventSubscriber, filter EventFilter) {
	ep.mu.Lock()
	defer ep.mu.Unlock()

	ep.subscribers = append(ep.subscribers, subscriberEntry{
		subscriber: subscriber,
		filter:     filter,
	})
}

// processEvents processes events from the buffer asynchronously. A batch
// is delivered when it is full or when the flush interval elapses.
func (ep *EventPublisher) processEvents() {
	defer ep.wg.Done()

	batch := make([]Event, 0, ep.config.MaxBatchSize)

	var tick <-chan time.Time
	if ep.config.FlushInterval > 0 {
		ticker := time.NewTicker(ep.config.FlushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case event := <-ep.buffer:
			batch = append(batch, event)

			if len(batch) >= ep.config.MaxBatchSize {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-tick:
			if len(batch) > 0 {
				ep.flushBatch(batch)
				batch = make([]Event, 0, ep.config.MaxBatchSize)
			}

		case <-ep.ctx.Done():
			// Drain what is already buffered before shutting down
			for len(ep.buffer) > 0 {
				batch = append(batch, <-ep.buffer)
			}
			if len(batch) > 0 {
				ep.flushBatch(batch)
			}
			return
		}
	}
}

// flushBatch delivers a batch of events to subscribers.
func (ep *EventPublisher) flushBatch(events []Event) {
	for _, event := range events {
		ep.deliverEvent(event)
	}
}

// deliverEvent delivers an event to all subscribers, in subscription
// order, on the calling goroutine.
func (ep *EventPublisher) deliverEvent(event Event) {
	ep.mu.RLock()
	subscribers := ep.subscribers
	ep.mu.RUnlock()

	for _, entry := range subscribers {
		// Apply subscriber-specific filter
		if entry.filter != nil && !entry.filter(event) {
			continue
		}
		entry.subscriber(event)
	}
}

// Shutdown gracefully shuts down the event publisher.
func (ep *EventPublisher) Shutdown(ctx context.Context) error {
	if !ep.config.Enabled {
		return nil
	}

	// Signal shutdown
	ep.cancel()

	// Wait for processing to complete with timeout
	done := make(chan struct{})
	go func() {
		ep.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event publisher shutdown timeout")
	}
}

// Common event filters.

// FilterByLevel creates a filter that only allows events of a specific level or higher.
func FilterByLevel(minLevel string) EventFilter {
	levels := map[string]int{
		EventLevelInfo:    0,
		EventLevelWarning: 1,
		EventLevelError:   2,
	}

	minLevelValue := levels[minLevel]

	return func(event Event) bool {
		return levels[event.Level] >= minLevelValue
	}
}

// FilterByType creates a filter that only allows events of specific types.
func FilterByType(types ...string) EventFilter {
	typeSet := make(map[string]bool)
	for _, t := range types {
		typeSet[t] = true
	}

	return func(event Event) bool {
		return typeSet[event.Type]
	}
}
