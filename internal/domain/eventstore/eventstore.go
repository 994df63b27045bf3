// Package eventstore is a per-transport bounded ring buffer of SSE events,
// supporting Last-Event-ID resumption after a client reconnects.
package eventstore

import (
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultRetention is the number of events kept when a Store is constructed
// with retention <= 0.
const DefaultRetention = 100

// maxLoggedPayload bounds how much of an event's payload a log line quotes
// verbatim; beyond that, LogSummary reports a content hash instead so
// repeated oversized payloads can still be correlated across log lines.
// The stored/replayed Event.Data itself is never truncated — resumability
// requires byte-exact replay.
const maxLoggedPayload = 2048

// Event is one retained SSE frame.
type Event struct {
	ID   string
	Type string
	Data []byte
}

// Store is a concurrency-safe, fixed-capacity FIFO of Events keyed by a
// strictly increasing monotonic id. Reads never block writes: Append takes
// the lock only long enough to mutate the slice; ReplayAfter takes a
// read-equivalent copy under the same lock, so the two never contend for
// more than a slice append/copy.
type Store struct {
	mu        sync.Mutex
	retention int
	nextID    uint64
	events    []Event
}

// New builds a Store retaining at most retention events. retention <= 0
// falls back to DefaultRetention.
func New(retention int) *Store {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Store{
		retention: retention,
		events:    make([]Event, 0, retention),
	}
}

// Append assigns the next monotonic id to (eventType, data), appends it,
// and evicts the oldest retained event if the store is now over capacity.
// The returned id is stable across the store's lifetime and never reused.
func (s *Store) Append(eventType string, data []byte) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := strconv.FormatUint(s.nextID, 10)
	s.events = append(s.events, Event{ID: id, Type: eventType, Data: data})
	if len(s.events) > s.retention {
		s.events = s.events[len(s.events)-s.retention:]
	}
	return id
}

// ReplayAfter returns the retained events with id strictly greater than
// lastID, in id order. If lastID predates the oldest retained event (or is
// empty), replay begins at the oldest still-retained event — there is no
// error for a gap; the caller silently resumes from whatever is left.
func (s *Store) ReplayAfter(lastID string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	if lastID == "" {
		out := make([]Event, len(s.events))
		copy(out, s.events)
		return out
	}

	last, err := strconv.ParseUint(lastID, 10, 64)
	if err != nil {
		out := make([]Event, len(s.events))
		copy(out, s.events)
		return out
	}

	idx := 0
	for i, ev := range s.events {
		n, err := strconv.ParseUint(ev.ID, 10, 64)
		if err == nil && n > last {
			idx = i
			break
		}
		idx = i + 1
	}
	out := make([]Event, len(s.events)-idx)
	copy(out, s.events[idx:])
	return out
}

// LogSummary renders an event for a log line: short payloads are quoted
// verbatim, oversized ones are reported by length and content hash so a
// log handler never has to buffer a full multi-kilobyte event body.
func (e Event) LogSummary() string {
	if len(e.Data) <= maxLoggedPayload {
		return string(e.Data)
	}
	sum := xxhash.Sum64(e.Data)
	return "<" + strconv.Itoa(len(e.Data)) + " bytes, xxhash:" +
		strconv.FormatUint(sum, 16) + ">"
}
