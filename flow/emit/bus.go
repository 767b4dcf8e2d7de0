package emit

import "sync"

// Bus is the single-producer, multi-consumer event bus described in
// spec.md §4.8: events are ordered within an execution, pushed to an
// unbounded in-process queue, and consumers iterate asynchronously. A
// consumer draining slower than the producer never blocks node execution
// because each subscriber gets its own growable slice-backed queue guarded
// by a condition variable — the queue owner bears the backpressure of its
// own memory growth, not the engine.
type Bus struct {
	mu          sync.Mutex
	subscribers map[*Subscription]struct{}
	emitter     Emitter
}

// NewBus creates a Bus that additionally forwards every event to emitter
// (typically a MultiEmitter combining LogEmitter with tracing/metrics).
// Pass NullEmitter{} when no synchronous backend is wanted.
func NewBus(emitter Emitter) *Bus {
	if emitter == nil {
		emitter = NullEmitter{}
	}
	return &Bus{subscribers: make(map[*Subscription]struct{}), emitter: emitter}
}

// Publish delivers event to every current subscriber and to the
// synchronous emitter. The engine calls it concurrently from the
// goroutines of a node group; never blocks.
func (b *Bus) Publish(event Event) {
	b.emitter.Emit(event)

	b.mu.Lock()
	subs := make([]*Subscription, 0, len(b.subscribers))
	for s := range b.subscribers {
		subs = append(subs, s)
	}
	b.mu.Unlock()

	for _, s := range subs {
		s.push(event)
	}
}

// Subscribe registers a new consumer. Cancelling the consumer's context (by
// calling Unsubscribe) never cancels the producer.
func (b *Bus) Subscribe() *Subscription {
	s := &Subscription{cond: sync.NewCond(&sync.Mutex{})}
	b.mu.Lock()
	b.subscribers[s] = struct{}{}
	b.mu.Unlock()
	return s
}

// Unsubscribe removes a consumer and wakes it so a blocked Next returns.
func (b *Bus) Unsubscribe(s *Subscription) {
	b.mu.Lock()
	delete(b.subscribers, s)
	b.mu.Unlock()
	s.close()
}

// Subscription is one consumer's view of the bus: an unbounded FIFO queue
// drained by repeated calls to Next.
type Subscription struct {
	cond   *sync.Cond
	queue  []Event
	closed bool
}

func (s *Subscription) push(event Event) {
	s.cond.L.Lock()
	s.queue = append(s.queue, event)
	s.cond.L.Unlock()
	s.cond.Signal()
}

func (s *Subscription) close() {
	s.cond.L.Lock()
	s.closed = true
	s.cond.L.Unlock()
	s.cond.Broadcast()
}

// Next blocks until an event is available or the subscription is closed.
// The second return value is false once the subscription is closed and
// drained.
func (s *Subscription) Next() (Event, bool) {
	s.cond.L.Lock()
	defer s.cond.L.Unlock()
	for len(s.queue) == 0 && !s.closed {
		s.cond.Wait()
	}
	if len(s.queue) == 0 {
		return Event{}, false
	}
	event := s.queue[0]
	s.queue = s.queue[1:]
	return event, true
}
