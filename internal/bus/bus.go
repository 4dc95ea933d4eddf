package bus

import (
	"log"
	"sync"
	"time"
)

const (
	subscriberBufSize = 64
	tapBufSize        = 256
)

// #region event

// EventKind classifies an engine event.
type EventKind string

const (
	// EventConflict is a surfaced conflict notification.
	EventConflict EventKind = "conflict"
	// EventStateApplied signals that a synchronized snapshot reached the adapters.
	EventStateApplied EventKind = "state_applied"
	// EventReduceQuality asks rendering subsystems to drop visual-effect quality.
	EventReduceQuality EventKind = "reduce_quality"
	// EventSecuredHDR asks the lighting subsystem to enable secured HDR mode.
	EventSecuredHDR EventKind = "secured_hdr"
	// EventMinimalLighting asks for minimal lighting mode under an open breaker.
	EventMinimalLighting EventKind = "minimal_lighting"
	// EventAlert is an active security alert notification.
	EventAlert EventKind = "alert"
)

// Event is a flat notification payload. Severity/Suggestion are populated for
// conflict events; System names the originating subsystem where meaningful.
type Event struct {
	Kind       EventKind
	ID         string
	Severity   string
	Message    string
	Suggestion string
	System     string
	Timestamp  time.Time
}

// #endregion event

// #region bus

// Bus is the observable notification bus. Conflict notifications and security
// side effects fan out through it; consumers never mutate engine state.
// An audit sink receives a read-only tap of every published event.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[EventKind][]chan Event
	tapCh       chan Event
}

// New creates a Bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[EventKind][]chan Event),
		tapCh:       make(chan Event, tapBufSize),
	}
}

// Publish fans out ev to all subscribers of ev.Kind and to the tap channel.
// Non-blocking: if a subscriber's channel is full, the event is dropped with
// a warning.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	subs := b.subscribers[ev.Kind]
	b.mu.RUnlock()

	for _, ch := range subs {
		select {
		case ch <- ev:
		default:
			log.Printf("[BUS] WARNING: subscriber channel full for kind=%s — event dropped", ev.Kind)
		}
	}

	select {
	case b.tapCh <- ev:
	default:
		log.Printf("[BUS] WARNING: tap channel full — audit event dropped kind=%s", ev.Kind)
	}
}

// Subscribe returns a receive-only channel that delivers events of kind k.
// Each call creates a new independent subscriber channel.
func (b *Bus) Subscribe(k EventKind) <-chan Event {
	ch := make(chan Event, subscriberBufSize)
	b.mu.Lock()
	b.subscribers[k] = append(b.subscribers[k], ch)
	b.mu.Unlock()
	return ch
}

// Tap returns the read-only tap channel. Only one consumer should drain it.
func (b *Bus) Tap() <-chan Event {
	return b.tapCh
}

// #endregion bus
