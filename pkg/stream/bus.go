package stream

import (
	"sync"
	"sync/atomic"

	"github.com/veiloq/kraken-stream/pkg/protocol"
)

// bus fans decoded events out to any number of independent streams. There is
// exactly one publisher, the session goroutine; delivery to each stream is
// best-effort with a drop-oldest policy, not a durable log.
type bus struct {
	mu       sync.Mutex
	capacity int
	streams  []*Stream
}

func newBus(capacity int) *bus {
	return &bus{capacity: capacity}
}

// Stream is one consumer's view of the event flow: a fixed-capacity ring.
// When the consumer falls behind, the oldest buffered events are discarded
// first and counted; Dropped exposes that count for monitoring.
type Stream struct {
	bus     *bus
	ch      chan protocol.Event
	dropped atomic.Uint64
}

func (b *bus) subscribe() *Stream {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Stream{bus: b, ch: make(chan protocol.Event, b.capacity)}
	b.streams = append(b.streams, s)
	return s
}

// publish delivers to every attached stream. Pushes happen under the bus
// lock so a concurrent Stream.Close never races a send on a closed channel.
func (b *bus) publish(ev protocol.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, s := range b.streams {
		s.push(ev)
	}
}

func (s *Stream) push(ev protocol.Event) {
	select {
	case s.ch <- ev:
		return
	default:
	}

	// Ring full: evict the oldest buffered event, then retry once. The
	// consumer may drain concurrently, in which case the retry just lands in
	// the freed slot.
	select {
	case <-s.ch:
		s.dropped.Add(1)
	default:
	}
	select {
	case s.ch <- ev:
	default:
		s.dropped.Add(1)
	}
}

// Events returns the receive side of the stream. The channel is closed when
// the stream is closed; buffered events remain readable until drained.
func (s *Stream) Events() <-chan protocol.Event {
	return s.ch
}

// Dropped returns the number of events this stream has discarded because the
// consumer fell behind.
func (s *Stream) Dropped() uint64 {
	return s.dropped.Load()
}

// Close detaches the stream from the bus and closes its channel. Closing is
// how a consumer disengages; it does not affect the client or other streams.
func (s *Stream) Close() {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	for i, other := range s.bus.streams {
		if other == s {
			s.bus.streams = append(s.bus.streams[:i], s.bus.streams[i+1:]...)
			close(s.ch)
			return
		}
	}
}
