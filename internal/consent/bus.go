package consent

import "sync"

// Event is broadcast after a consent record is written or reset.
type Event struct {
	Scope   string
	Record  Record
	Cleared bool // true when the record was removed to re-prompt the visitor
}

// Observer receives consent events synchronously on the publishing goroutine.
type Observer func(Event)

// Bus is a process-wide publish/subscribe list for consent changes.
// The zero value is ready to use.
type Bus struct {
	mu        sync.Mutex
	nextID    uint64
	observers []subscription
}

type subscription struct {
	id uint64
	fn Observer
}

// Subscribe registers fn and returns a function that removes it. Calling the
// returned function more than once is a no-op.
func (b *Bus) Subscribe(fn Observer) (unsubscribe func()) {
	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.observers = append(b.observers, subscription{id: id, fn: fn})
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(id) })
	}
}

func (b *Bus) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, s := range b.observers {
		if s.id == id {
			b.observers = append(b.observers[:i:i], b.observers[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every observer registered at call time, in
// subscription order, and returns once all of them have run.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	snapshot := make([]subscription, len(b.observers))
	copy(snapshot, b.observers)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.fn(e)
	}
}

// Len returns the number of registered observers.
func (b *Bus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.observers)
}
