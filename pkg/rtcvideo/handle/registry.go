// Package handle provides an opaque token registry for objects that cross
// an ownership boundary, such as platform surfaces handed to the pipeline.
// Tokens carry a generation counter so that borrowing a destroyed slot
// fails instead of aliasing whatever object reused it.
package handle

import (
	"errors"
	"sync"
)

// ErrStaleToken is returned by Borrow and Destroy when the token's slot has
// been destroyed or reused since the token was issued.
var ErrStaleToken = errors.New("handle: stale or unknown token")

// Token identifies a registered object. The zero Token is never issued.
type Token uint64

const genBits = 32

func makeToken(slot, gen uint32) Token {
	return Token(uint64(slot)<<genBits | uint64(gen))
}

func (t Token) slot() uint32 { return uint32(uint64(t) >> genBits) }
func (t Token) gen() uint32  { return uint32(uint64(t)) }

type entry[T any] struct {
	value T
	gen   uint32
	live  bool
}

// Registry is a generational slot map. Safe for concurrent use.
type Registry[T any] struct {
	mu    sync.Mutex
	slots []entry[T]
	free  []uint32
}

// NewRegistry returns an empty registry.
func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{}
}

// Create registers value and returns its token.
func (r *Registry[T]) Create(value T) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	var slot uint32
	if n := len(r.free); n > 0 {
		slot = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		r.slots = append(r.slots, entry[T]{})
		slot = uint32(len(r.slots) - 1)
	}

	e := &r.slots[slot]
	e.gen++ // generation 0 is never issued, so the zero Token stays invalid
	e.value = value
	e.live = true
	return makeToken(slot, e.gen)
}

// Borrow returns the object behind token without transferring ownership.
func (r *Registry[T]) Borrow(token Token) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var zero T
	e, ok := r.lookup(token)
	if !ok {
		return zero, ErrStaleToken
	}
	return e.value, nil
}

// Destroy unregisters the object behind token. Further Borrow or Destroy
// calls with the same token fail with ErrStaleToken.
func (r *Registry[T]) Destroy(token Token) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.lookup(token)
	if !ok {
		return ErrStaleToken
	}
	var zero T
	e.value = zero
	e.live = false
	r.free = append(r.free, token.slot())
	return nil
}

// Len returns the number of live entries.
func (r *Registry[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for i := range r.slots {
		if r.slots[i].live {
			n++
		}
	}
	return n
}

func (r *Registry[T]) lookup(token Token) (*entry[T], bool) {
	slot := token.slot()
	if int(slot) >= len(r.slots) {
		return nil, false
	}
	e := &r.slots[slot]
	if !e.live || e.gen != token.gen() {
		return nil, false
	}
	return e, true
}
