// Package events carries domain events between the API and background
// workers over RabbitMQ.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	TypeUserRegistered   Type = "user.registered"
	TypeActivityRecorded Type = "activity.recorded"
	TypeLevelUp          Type = "level.up"
)

// Event is the JSON payload published for every domain event. Fields not
// relevant to a type are left empty.
type Event struct {
	ID            string    `json:"id"`
	Type          Type      `json:"type"`
	UserID        uint      `json:"user_id"`
	Email         string    `json:"email,omitempty"`
	Name          string    `json:"name,omitempty"`
	TaskID        uint      `json:"task_id,omitempty"`
	Points        int       `json:"points"`
	Total         int       `json:"total"`
	CO2Saved      float64   `json:"co2_saved"`
	Level         string    `json:"level,omitempty"`
	PreviousLevel string    `json:"previous_level,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// New stamps an event with a fresh ID and the current time.
func New(t Type, userID uint) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		OccurredAt: time.Now().UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// NopPublisher drops every event. Used when no broker is configured.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
func (NopPublisher) Close() error                        { return nil }

// Recorder keeps published events in memory, for tests.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, ev Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

func (r *Recorder) Close() error { return nil }

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// OfType returns the recorded events of type t.
func (r *Recorder) OfType(t Type) []Event {
	var out []Event
	for _, ev := range r.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}
