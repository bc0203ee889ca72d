package events

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Handler receives emitted events. Handlers run synchronously on the
// emitter's goroutine; panics are caught and do not affect other handlers.
type Handler func(Event)

// Default bounds.
const (
	DefaultMaxSubscribers = 100
	DefaultMaxHistory     = 1_000
)

// Bus is the process-wide event bus. Fire-and-forget: ordering is
// preserved within a single emitter call only.
type Bus struct {
	mu             sync.Mutex
	nextID         uint64
	nextSub        int
	handlers       map[int]Handler
	history        []Event
	maxSubscribers int
	maxHistory     int
	log            *zap.Logger
}

// NewBus creates a bus with the given bounds. Zero values select defaults.
func NewBus(maxSubscribers, maxHistory int, log *zap.Logger) *Bus {
	if maxSubscribers <= 0 {
		maxSubscribers = DefaultMaxSubscribers
	}
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		handlers:       make(map[int]Handler),
		maxSubscribers: maxSubscribers,
		maxHistory:     maxHistory,
		log:            log,
	}
}

// Subscribe registers a handler and returns its unsubscribe function.
// Past the subscriber cap the handler is rejected and a no-op
// unsubscribe is returned.
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.handlers) >= b.maxSubscribers {
		b.log.Warn("subscriber limit reached, rejecting subscription",
			zap.Int("max", b.maxSubscribers))
		return func() {}
	}

	id := b.nextSub
	b.nextSub++
	b.handlers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.handlers, id)
	}
}

// Emit assigns the event an id and timestamp, appends it to history, and
// calls every handler. A panicking handler is logged and skipped; it
// never affects other handlers or the emitter.
func (b *Bus) Emit(evtType Type, agentID string, data map[string]any) Event {
	b.mu.Lock()
	b.nextID++
	evt := Event{
		ID:        b.nextID,
		Type:      evtType,
		Timestamp: time.Now(),
		AgentID:   agentID,
		Data:      data,
	}

	b.history = append(b.history, evt)
	// Amortised trim: let history overshoot to 1.5x before copying down.
	if len(b.history) > b.maxHistory+b.maxHistory/2 {
		b.history = append(b.history[:0:0], b.history[len(b.history)-b.maxHistory:]...)
	}

	handlers := make([]Handler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()

	for _, h := range handlers {
		b.dispatch(h, evt)
	}
	return evt
}

func (b *Bus) dispatch(h Handler, evt Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("event handler panicked",
				zap.Any("panic", r),
				zap.String("event_type", string(evt.Type)),
				zap.Uint64("event_id", evt.ID))
		}
	}()
	h(evt)
}

// RecentEvents returns up to count events from the tail of history,
// oldest first.
func (b *Bus) RecentEvents(count int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if count <= 0 || count > len(b.history) {
		count = len(b.history)
	}
	tail := b.history[len(b.history)-count:]
	return append([]Event(nil), tail...)
}

// AgentEvents returns up to count events for the given agent, matched on
// the agent id field or a nested agent.id, oldest first.
func (b *Bus) AgentEvents(agentID string, count int) []Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []Event
	for i := len(b.history) - 1; i >= 0 && (count <= 0 || len(out) < count); i-- {
		if b.history[i].matchesAgent(agentID) {
			out = append(out, b.history[i])
		}
	}
	// Collected newest-first; reverse to oldest-first.
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// ClearHistory drops all retained events.
func (b *Bus) ClearHistory() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history = nil
}

// SubscriberCount returns the number of active subscribers.
func (b *Bus) SubscriberCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers)
}
