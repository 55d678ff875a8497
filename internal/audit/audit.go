// Package audit publishes coordinated-mutation events: one event per state
// transition, sharing the op id of the mutation they belong to.
package audit

import (
	"context"
	"errors"
	"time"

	"github.com/roach88/quark/internal/store"
)

// Event is one state transition of a coordinated mutation.
type Event struct {
	OpID   string    `json:"op_id"`
	Op     string    `json:"op"`
	Entity string    `json:"entity"`
	Key    string    `json:"key"`
	State  string    `json:"state"`
	Detail string    `json:"detail,omitempty"`
	At     time.Time `json:"at"`
}

// Sink receives events.
type Sink interface {
	Emit(ctx context.Context, e Event) error
}

// Discard drops every event.
type Discard struct{}

func (Discard) Emit(context.Context, Event) error { return nil }

// Multi fans an event out to every sink. All sinks are tried; their errors
// are joined.
type Multi []Sink

func (m Multi) Emit(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Journal writes events to the store's operations journal.
type Journal struct {
	Store *store.Store
}

func (j Journal) Emit(ctx context.Context, e Event) error {
	_, err := j.Store.AppendOperation(ctx, store.Operation{
		OpID:      e.OpID,
		Op:        e.Op,
		Entity:    e.Entity,
		Key:       e.Key,
		State:     e.State,
		Detail:    e.Detail,
		CreatedAt: e.At,
	})
	return err
}

// Recorder keeps events in memory. Used for testing.
type Recorder struct {
	events chan Event
}

// NewRecorder creates a recorder holding up to capacity events.
func NewRecorder(capacity int) *Recorder {
	return &Recorder{events: make(chan Event, capacity)}
}

func (r *Recorder) Emit(_ context.Context, e Event) error {
	select {
	case r.events <- e:
		return nil
	default:
		return errors.New("recorder full")
	}
}

// Events drains and returns the recorded events in emission order.
func (r *Recorder) Events() []Event {
	var out []Event
	for {
		select {
		case e := <-r.events:
			out = append(out, e)
		default:
			return out
		}
	}
}
