package popup

import "sync"

type subscriber struct {
	ch     chan Message
	accept Filter
}

// Bus fans messages out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the message. Each subscriber filters before
// buffering, so messages it would discard cannot crowd out the one it waits
// for.
type Bus struct {
	mu   sync.Mutex
	next int
	subs map[int]subscriber
}

func NewBus() *Bus {
	return &Bus{subs: map[int]subscriber{}}
}

func (b *Bus) Publish(m Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.subs {
		if s.accept != nil && !s.accept(m) {
			continue
		}
		select {
		case s.ch <- m:
		default:
		}
	}
}

// Subscribe registers a new subscriber that receives the messages accept
// lets through. The returned func removes it and closes the channel; calling
// it more than once is harmless. accept runs under the bus lock and must not
// call back into the bus.
func (b *Bus) Subscribe(buffer int, accept Filter) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Message, buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = subscriber{ch: ch, accept: accept}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			close(ch)
			b.mu.Unlock()
		})
	}
}
