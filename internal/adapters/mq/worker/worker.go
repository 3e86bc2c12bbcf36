// Package worker fans updates off the bus out to connected subscribers.
//
// Subscribers (SSE streams, display consoles) register per party; a pool of
// broadcasters drains the bus and delivers each update to every subscriber
// of its party. Delivery never blocks: a slow subscriber's buffer fills and
// further updates to it are dropped, so one stalled dashboard cannot back up
// the match.
package worker

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/okian/rumble/internal/domain/model"
	"github.com/okian/rumble/pkg/logger"
	"github.com/okian/rumble/pkg/metrics"
)

// Default broadcaster configuration constants.
const (
	defaultBroadcasterCount = 2
	defaultSubscriberBuffer = 64
	workerShutdownTimeout   = 5 * time.Second
)

// Update is what broadcasters read off the bus.
type Update = model.Update

// Bus defines how broadcasters receive updates.
type Bus interface {
	Dequeue(ctx context.Context) <-chan Update
}

// Registry tracks live subscribers per party.
type Registry struct {
	mu         sync.RWMutex
	subs       map[string]map[int]chan Update
	nextID     int
	bufferSize int
}

// NewRegistry creates an empty subscriber registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		subs:       make(map[string]map[int]chan Update),
		bufferSize: defaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Subscribe registers a consumer for one party's updates. The returned
// cancel func must be called when the consumer goes away; it closes the
// channel.
func (r *Registry) Subscribe(partyID string) (<-chan Update, func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	ch := make(chan Update, r.bufferSize)
	if r.subs[partyID] == nil {
		r.subs[partyID] = make(map[int]chan Update)
	}
	r.subs[partyID][id] = ch
	metrics.UpdateSubscriberCount(r.totalLocked())

	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if ch, ok := r.subs[partyID][id]; ok {
			delete(r.subs[partyID], id)
			if len(r.subs[partyID]) == 0 {
				delete(r.subs, partyID)
			}
			close(ch)
			metrics.UpdateSubscriberCount(r.totalLocked())
		}
	}
	return ch, cancel
}

// Count returns the number of live subscribers across all parties.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalLocked()
}

func (r *Registry) totalLocked() int {
	n := 0
	for _, m := range r.subs {
		n += len(m)
	}
	return n
}

// deliver sends u to every subscriber of its party without blocking.
func (r *Registry) deliver(u Update) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, ch := range r.subs[u.PartyID] {
		select {
		case ch <- u:
			metrics.RecordUpdateDelivered()
		default:
			metrics.RecordUpdateDropped("subscriber_full")
		}
	}
}

// Broadcaster drains the bus and delivers updates through the registry.
type Broadcaster struct {
	bus      Bus
	registry *Registry
	name     string

	shutdown chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewBroadcaster creates a broadcaster with configuration options.
func NewBroadcaster(bus Bus, registry *Registry, opts ...Option) *Broadcaster {
	b := &Broadcaster{
		bus:      bus,
		registry: registry,
		name:     "broadcaster",
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Get().Named("broadcaster"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Run starts the broadcaster loop until ctx is canceled or the bus closes.
func (b *Broadcaster) Run(ctx context.Context) {
	defer close(b.done)

	updates := b.bus.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.shutdown:
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			b.registry.deliver(u)
		}
	}
}

func (b *Broadcaster) signalStop() {
	b.stopOnce.Do(func() { close(b.shutdown) })
}

// Shutdown gracefully stops the broadcaster.
func (b *Broadcaster) Shutdown(ctx context.Context) error {
	b.signalStop()
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		b.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Pool manages multiple broadcasters draining one bus.
type Pool struct {
	broadcasters []*Broadcaster
	registry     *Registry

	logger logger.Logger
}

// NewPool creates a broadcaster pool.
func NewPool(count int, bus Bus, registry *Registry) *Pool {
	if count < 1 {
		count = defaultBroadcasterCount
	}
	p := &Pool{
		broadcasters: make([]*Broadcaster, count),
		registry:     registry,
		logger:       logger.Get().Named("broadcaster-pool"),
	}
	for i := 0; i < count; i++ {
		p.broadcasters[i] = NewBroadcaster(bus, registry, WithName("broadcaster-"+strconv.Itoa(i)))
	}
	return p
}

// Start starts all broadcasters in the pool.
func (p *Pool) Start(ctx context.Context) {
	for _, b := range p.broadcasters {
		go b.Run(ctx)
	}
}

// Stop gracefully stops all broadcasters.
func (p *Pool) Stop() {
	for _, b := range p.broadcasters {
		b.signalStop()
	}
	for _, b := range p.broadcasters {
		select {
		case <-b.done:
		case <-time.After(workerShutdownTimeout):
		}
	}
}
