package orchestrator

import (
	"sync"
	"time"
)

// Stage names a step of an orchestrated build.
type Stage string

const (
	StageTemplate   Stage = "templatePreparation"
	StageProcessing Stage = "assetProcessing"
	StageInjection  Stage = "assetInjection"
	StageCompleted  Stage = "completed"
	StageFailed     Stage = "failed"
)

// Event reports build progress. Progress is a percentage.
type Event struct {
	BuildID   string    `json:"buildId"`
	PartnerID string    `json:"partnerId,omitempty"`
	Stage     Stage     `json:"stage"`
	Progress  int       `json:"progress"`
	Message   string    `json:"message"`
	Time      time.Time `json:"time"`
}

// Bus fans build events out to subscribers. Slow subscribers miss events
// rather than stall a build. A nil *Bus discards everything.
type Bus struct {
	mu     sync.RWMutex
	subs   map[uint64]chan Event
	next   uint64
	buffer int
}

// NewBus creates a bus whose subscriptions buffer up to buffer events.
func NewBus(buffer int) *Bus {
	if buffer < 1 {
		buffer = 1
	}
	return &Bus{subs: make(map[uint64]chan Event), buffer: buffer}
}

// Subscribe returns a channel of events and a function that ends the
// subscription and closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, b.buffer)

	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = ch
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

// Publish delivers e to every subscriber with room for it.
func (b *Bus) Publish(e Event) {
	if b == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, ch := range b.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// Subscribers returns the number of active subscriptions.
func (b *Bus) Subscribers() int {
	if b == nil {
		return 0
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
