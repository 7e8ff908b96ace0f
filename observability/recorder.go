package observability

import (
	"context"
	"slices"
	"sync"
)

// Recorder keeps every event it receives in memory. Tests use it to assert on
// component behavior that is otherwise only visible in logs.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) OnEvent(ctx context.Context, event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of all recorded events in arrival order.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.events)
}

// OfType returns the recorded events whose type matches typ.
func (r *Recorder) OfType(typ EventType) []Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	var matched []Event
	for _, e := range r.events {
		if e.Type == typ {
			matched = append(matched, e)
		}
	}
	return matched
}

// Count returns how many events of the given type were recorded.
func (r *Recorder) Count(typ EventType) int {
	return len(r.OfType(typ))
}

// Reset discards all recorded events.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}
