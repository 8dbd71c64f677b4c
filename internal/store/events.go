package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"strings"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
)

const EventSource = "synapse-tasks/store"

// Change event types emitted after a mutation.
const (
	EventTaskAdded       = "dev.synapsetasks.task.added"
	EventTaskToggled     = "dev.synapsetasks.task.toggled"
	EventTaskStatus      = "dev.synapsetasks.task.status"
	EventTaskDue         = "dev.synapsetasks.task.due"
	EventTaskNote        = "dev.synapsetasks.task.note"
	EventTaskTags        = "dev.synapsetasks.task.tags"
	EventTaskPriority    = "dev.synapsetasks.task.priority"
	EventTaskCategory    = "dev.synapsetasks.task.category"
	EventTaskRemoved     = "dev.synapsetasks.task.removed"
	EventCategoryChanged = "dev.synapsetasks.category.changed"
	EventGraphChanged    = "dev.synapsetasks.graph.changed"
	EventStoreReload     = "dev.synapsetasks.store.reloaded"
)

// ChangeData is the payload of every change event.
type ChangeData struct {
	IDs []string `json:"ids"`
}

// Observer is notified synchronously after each mutation. Returned errors are logged.
type Observer interface {
	OnEvent(ctx context.Context, event cloudevents.Event) error
	ObserverID() string
}

type funcObserver struct {
	id string
	fn func(ctx context.Context, event cloudevents.Event) error
}

func (o funcObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return o.fn(ctx, event)
}

func (o funcObserver) ObserverID() string { return o.id }

// ObserverFunc wraps fn as an Observer registered under id.
func ObserverFunc(id string, fn func(ctx context.Context, event cloudevents.Event) error) Observer {
	return funcObserver{id: id, fn: fn}
}

type registration struct {
	observer Observer
	types    map[string]bool
}

func (r registration) wants(eventType string) bool {
	return len(r.types) == 0 || r.types[eventType]
}

// RegisterObserver subscribes o to the given event types (all types when none are
// given). Registering an id twice replaces the earlier registration.
func (s *Store) RegisterObserver(o Observer, eventTypes ...string) error {
	if o == nil || strings.TrimSpace(o.ObserverID()) == "" {
		return fmt.Errorf("%w: observer needs an id", ErrInvalid)
	}
	reg := registration{observer: o}
	if len(eventTypes) > 0 {
		reg.types = map[string]bool{}
		for _, t := range eventTypes {
			reg.types[t] = true
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.observers {
		if r.observer.ObserverID() == o.ObserverID() {
			s.observers[i] = reg
			return nil
		}
	}
	s.observers = append(s.observers, reg)
	return nil
}

// UnregisterObserver is idempotent.
func (s *Store) UnregisterObserver(o Observer) error {
	if o == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.observers[:0]
	for _, r := range s.observers {
		if r.observer.ObserverID() != o.ObserverID() {
			kept = append(kept, r)
		}
	}
	s.observers = kept
	return nil
}

// newChangeEvent builds the envelope. A data encoding error still returns a usable
// event, without a payload.
func newChangeEvent(eventType string, data any) (cloudevents.Event, error) {
	event := cloudevents.NewEvent()
	event.SetID(newULID())
	event.SetSource(EventSource)
	event.SetType(eventType)
	event.SetTime(timeNow())
	event.SetSpecVersion(cloudevents.VersionV1)
	if err := event.SetData(cloudevents.ApplicationJSON, data); err != nil {
		return event, fmt.Errorf("encode %s data: %w", eventType, err)
	}
	return event, nil
}

// notify must be called without holding s.mu so observers can read the store.
func (s *Store) notify(eventType string, ids []string) {
	s.mu.RLock()
	regs := append([]registration(nil), s.observers...)
	s.mu.RUnlock()
	if len(regs) == 0 {
		return
	}
	event, err := newChangeEvent(eventType, ChangeData{IDs: ids})
	if err != nil {
		s.log.WithError(err).WithField("event", eventType).Warn("change event sent without data")
	}
	ctx := context.Background()
	for _, r := range regs {
		if !r.wants(eventType) {
			continue
		}
		if err := r.observer.OnEvent(ctx, event); err != nil {
			s.log.WithError(err).WithFields(logrus.Fields{
				"observer": r.observer.ObserverID(),
				"event":    eventType,
			}).Warn("observer failed")
		}
	}
}

type randReader struct{}

func (randReader) Read(p []byte) (int, error) { return rand.Read(p) }

func newULID() string {
	t := ulid.Timestamp(timeNow())
	entropy := ulid.Monotonic(randReader{}, 0)
	id, err := ulid.New(t, entropy)
	if err != nil {
		return fmt.Sprintf("%d", time.Now().UnixNano())
	}
	return id.String()
}
