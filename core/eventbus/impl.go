package eventbus

import (
	"cmp"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"lungscan-go/core/event"
)

// subscription represents a single event subscription.
type subscription struct {
	id      string
	seq     uint64
	handler EventHandler
	jobID   string // Empty string means subscribe to all events
}

// channelEventBus is a channel-based implementation of EventBus.
type channelEventBus struct {
	eventChan     chan event.Event
	subscriptions map[string]*subscription
	mu            sync.RWMutex
	// closeMu orders Publish against Close so no send hits a closed channel.
	closeMu sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	nextID  atomic.Uint64
	logger  *slog.Logger
}

// DefaultBufferSize is used when a non-positive buffer size is requested.
const DefaultBufferSize = 256

// New creates a new EventBus with the specified buffer size.
func New(bufferSize int) EventBus {
	return NewWithLogger(bufferSize, nil)
}

// NewWithLogger creates a new EventBus that reports handler panics to logger.
func NewWithLogger(bufferSize int, logger *slog.Logger) EventBus {
	if bufferSize <= 0 {
		bufferSize = DefaultBufferSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	bus := &channelEventBus{
		eventChan:     make(chan event.Event, bufferSize),
		subscriptions: make(map[string]*subscription),
		logger:        logger,
	}

	bus.wg.Add(1)
	go bus.dispatch()

	return bus
}

// Publish publishes an event to all subscribers.
func (b *channelEventBus) Publish(e event.Event) {
	b.closeMu.RLock()
	defer b.closeMu.RUnlock()

	if b.closed {
		return
	}
	b.eventChan <- e
}

// Subscribe subscribes to all events.
func (b *channelEventBus) Subscribe(handler EventHandler) string {
	return b.subscribe("", handler)
}

// SubscribeJob subscribes to events from a specific job.
func (b *channelEventBus) SubscribeJob(jobID string, handler EventHandler) string {
	return b.subscribe(jobID, handler)
}

func (b *channelEventBus) subscribe(jobID string, handler EventHandler) string {
	seq := b.nextID.Add(1)
	id := fmt.Sprintf("sub-%d", seq)

	b.mu.Lock()
	b.subscriptions[id] = &subscription{
		id:      id,
		seq:     seq,
		handler: handler,
		jobID:   jobID,
	}
	b.mu.Unlock()

	return id
}

// Unsubscribe removes a subscription by its ID.
func (b *channelEventBus) Unsubscribe(subscriptionID string) {
	b.mu.Lock()
	delete(b.subscriptions, subscriptionID)
	b.mu.Unlock()
}

// Close shuts down the event bus.
func (b *channelEventBus) Close() {
	b.closeMu.Lock()
	if b.closed {
		b.closeMu.Unlock()
		return // Already closed
	}
	b.closed = true
	close(b.eventChan)
	b.closeMu.Unlock()

	b.wg.Wait()
}

// dispatch is the main event dispatch loop.
func (b *channelEventBus) dispatch() {
	defer b.wg.Done()

	for e := range b.eventChan {
		b.deliverEvent(e)
	}
}

// deliverEvent delivers an event to all matching subscribers in subscription order.
func (b *channelEventBus) deliverEvent(e event.Event) {
	b.mu.RLock()
	// Copy subscriptions to avoid holding lock during handler execution
	subs := make([]*subscription, 0, len(b.subscriptions))
	for _, sub := range b.subscriptions {
		subs = append(subs, sub)
	}
	b.mu.RUnlock()
	slices.SortFunc(subs, func(a, c *subscription) int { return cmp.Compare(a.seq, c.seq) })

	// Get job ID if this is a job event
	var eventJobID string
	if je, ok := e.(event.JobEvent); ok {
		eventJobID = je.JobID()
	}

	for _, sub := range subs {
		// Filter by job ID if subscription is job-specific
		if sub.jobID != "" {
			if eventJobID == "" || sub.jobID != eventJobID {
				continue
			}
		}

		// Call handler (catch panics to prevent one bad handler from affecting others)
		func() {
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("Event handler panicked",
						"event", e.EventName(),
						"subscription", sub.id,
						"panic", r)
				}
			}()
			sub.handler(e)
		}()
	}
}
