// Package stream defines the ordered event stream that carries model output
// and tool side effects from a chat turn to the HTTP client.
//
// All producers of a turn (the generation callback and every tool execution)
// run on the same goroutine inside the generation loop and write into a
// single Stream; the consumer drains it lazily, so event order on the wire
// is exactly emission order.
package stream

import "sync"

// Type identifies the kind of payload an Event carries.
type Type string

const (
	// TypeText carries a delta of the model's own streamed answer.
	TypeText Type = "text"
	// TypeID announces the id of the document a canvas tool works on.
	TypeID Type = "id"
	// TypeTitle announces the title of that document.
	TypeTitle Type = "title"
	// TypeClear resets the visible document content; Content carries the
	// title of the document being (re)written.
	TypeClear Type = "clear"
	// TypeTextDelta carries an increment of generated document content.
	TypeTextDelta Type = "text-delta"
	// TypeSuggestion carries one completed writing suggestion record.
	TypeSuggestion Type = "suggestion"
	// TypeFinish marks the end of a document generation.
	TypeFinish Type = "finish"
)

// Event is one unit on the stream. Content is a string for every type
// except TypeSuggestion, which carries a suggestion record.
type Event struct {
	Type    Type `json:"type"`
	Content any  `json:"content"`
}

// Stream is a bounded, single-consumer event channel with explicit close
// semantics: Close is idempotent, and emits after Close (or after the
// consumer has abandoned the stream) are dropped without blocking.
type Stream struct {
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// New creates a Stream with the given buffer size.
func New(buffer int) *Stream {
	if buffer < 0 {
		buffer = 0
	}
	return &Stream{
		events: make(chan Event, buffer),
		done:   make(chan struct{}),
	}
}

// Emit delivers e to the consumer, blocking while the buffer is full.
// After Close it drops e and reports false.
func (s *Stream) Emit(e Event) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.events <- e:
		return true
	case <-s.done:
		return false
	}
}

// Events returns the receive side of the stream. Buffered events remain
// readable after Close.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Done is closed when the stream is closed.
func (s *Stream) Done() <-chan struct{} {
	return s.done
}

// Close marks the stream finished. Safe to call more than once and from
// either side: the producer calls it when the turn completes, the consumer
// when the client goes away.
func (s *Stream) Close() {
	s.once.Do(func() { close(s.done) })
}
