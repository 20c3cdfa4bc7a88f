// Package events delivers platform lifecycle events to the video pipeline.
//
// The bus fans events out to independent subscriptions: each pipeline phase
// (bootstrap, steady state) takes its own subscription and is guaranteed to
// observe every event published after it subscribed. A single shared queue
// would let one phase steal events meant for another.
package events

import (
	"sync"

	"github.com/openmirror/vidrecv/pkg/rtcvideo/engine"
	"github.com/openmirror/vidrecv/pkg/rtcvideo/handle"
)

// Event is one lifecycle notification. The concrete types are
// SurfaceCreated, SurfaceDestroyed and ApplicationDestroyed.
type Event interface {
	isEvent()
}

// SurfaceCreated announces a new rendering surface. The surface itself is
// held by the bus's registry; receivers resolve Token through Bus.Surface.
type SurfaceCreated struct {
	Token handle.Token
}

// SurfaceDestroyed announces that the current surface is gone and must not
// be rendered to.
type SurfaceDestroyed struct{}

// ApplicationDestroyed announces that the embedding application is shutting
// down.
type ApplicationDestroyed struct{}

func (SurfaceCreated) isEvent()       {}
func (SurfaceDestroyed) isEvent()     {}
func (ApplicationDestroyed) isEvent() {}

// Bus is the single-producer lifecycle event channel. Safe for concurrent
// use; the producer is the platform layer, consumers are subscriptions.
type Bus struct {
	mu       sync.Mutex
	subs     map[*Subscription]struct{}
	closed   bool
	surfaces *handle.Registry[engine.Surface]
	current  handle.Token
}

// NewBus returns an open bus with no subscribers.
func NewBus() *Bus {
	return &Bus{
		subs:     make(map[*Subscription]struct{}),
		surfaces: handle.NewRegistry[engine.Surface](),
	}
}

// Subscribe registers a new subscription. It observes every event published
// after this call.
func (b *Bus) Subscribe() *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	s := &Subscription{bus: b, closed: b.closed}
	if !b.closed {
		b.subs[s] = struct{}{}
	}
	return s
}

// PublishSurfaceCreated registers surface and delivers a SurfaceCreated
// event carrying its token. A previously published surface is destroyed
// first; its tokens go stale.
func (b *Bus) PublishSurfaceCreated(surface engine.Surface) {
	b.mu.Lock()
	b.dropCurrentLocked()
	tok := b.surfaces.Create(surface)
	b.current = tok
	b.publishLocked(SurfaceCreated{Token: tok})
	b.mu.Unlock()
}

// PublishSurfaceDestroyed invalidates the current surface token and
// delivers a SurfaceDestroyed event.
func (b *Bus) PublishSurfaceDestroyed() {
	b.mu.Lock()
	b.dropCurrentLocked()
	b.publishLocked(SurfaceDestroyed{})
	b.mu.Unlock()
}

// PublishApplicationDestroyed delivers an ApplicationDestroyed event.
func (b *Bus) PublishApplicationDestroyed() {
	b.mu.Lock()
	b.publishLocked(ApplicationDestroyed{})
	b.mu.Unlock()
}

// Surface resolves a token from a SurfaceCreated event. Fails with
// handle.ErrStaleToken once the surface has been destroyed or replaced.
func (b *Bus) Surface(token handle.Token) (engine.Surface, error) {
	return b.surfaces.Borrow(token)
}

// Close marks the bus and all subscriptions closed. Pending events remain
// readable; subscriptions report done once drained.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.dropCurrentLocked()
	for s := range b.subs {
		s.close()
	}
	b.subs = nil
}

func (b *Bus) publishLocked(ev Event) {
	for s := range b.subs {
		s.push(ev)
	}
}

func (b *Bus) dropCurrentLocked() {
	if b.current != 0 {
		_ = b.surfaces.Destroy(b.current)
		b.current = 0
	}
}

func (b *Bus) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs, s)
}

// Subscription is one consumer's view of the bus. Not shared between
// goroutines; each consumer takes its own.
type Subscription struct {
	bus    *Bus
	mu     sync.Mutex
	queue  []Event
	closed bool
}

// TryNext pops the oldest pending event without blocking. ok is false when
// the queue is empty.
func (s *Subscription) TryNext() (ev Event, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.queue) == 0 {
		return nil, false
	}
	ev = s.queue[0]
	s.queue = s.queue[1:]
	return ev, true
}

// Done reports whether the bus has closed and no events remain.
func (s *Subscription) Done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed && len(s.queue) == 0
}

// Cancel detaches the subscription from the bus.
func (s *Subscription) Cancel() {
	s.bus.unsubscribe(s)
	s.close()
}

func (s *Subscription) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
}

func (s *Subscription) close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
}
