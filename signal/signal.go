// SPDX-FileCopyrightText: 2025 Tobias Böhm <code@aibor.de>
//
// SPDX-License-Identifier: GPL-3.0-or-later

package signal

import (
	"slices"
	"sync"
	"sync/atomic"
)

type waiter struct {
	mask Mask
	wake func()
	// Subscriptions stay registered after being woken.
	persist bool
}

// Signal is an atomic bitmask condition. The zero value is ready to use. A
// Signal must not be copied after first use.
//
// The state is only ever modified by [Signal.Assert] and [Signal.Take]. The
// waiter list is guarded by a mutex, but asserting does not touch it unless
// there are registered waiters.
type Signal struct {
	state   atomic.Uint64
	waiters atomic.Int32

	mu   sync.Mutex
	list []*waiter
}

// New creates a new [Signal] with no bits set.
func New() *Signal {
	return new(Signal)
}

// Assert sets the given bits and wakes every waiter whose wake mask
// intersects the resulting state.
func (s *Signal) Assert(mask Mask) {
	if mask == NoMask {
		return
	}

	state := Mask(s.state.Or(uint64(mask))) | mask

	// The waiter count is read after the state is published. A waiter
	// registers before re-checking the state, so one of both sides sees the
	// other.
	if s.waiters.Load() == 0 {
		return
	}

	s.wakeWaiters(state)
}

// Take clears the given bits and returns those of them that were set.
func (s *Signal) Take(mask Mask) Mask {
	return Mask(s.state.And(^uint64(mask))) & mask
}

// Snapshot returns the current state. It is not authoritative: the state may
// change right after it has been read. Use it for debugging and for cheap
// pre-checks only.
func (s *Signal) Snapshot() Mask {
	return Mask(s.state.Load())
}

// Wait blocks until any bit of wake is set and returns the set bits of wake.
// The bits are not cleared.
//
// Waiting for bits no one will ever assert blocks forever.
func (s *Signal) Wait(wake Mask) Mask {
	check := func() Mask {
		return s.Snapshot() & wake
	}

	for {
		// Another consumer may take the bits between wakeup and check, so
		// park again in that case.
		if set := Await(s, wake, nil, check); set != NoMask {
			return set
		}
	}
}

// Subscribe registers fn to be called for every assert after which the
// state intersects wake. fn is called on the goroutine calling
// [Signal.Assert], so it must not block and must not call back into s.
//
// Asserts before the subscription do not call fn. Callers check
// [Signal.Snapshot] after subscribing if they care about them.
func (s *Signal) Subscribe(wake Mask, fn func()) (cancel func()) {
	w := &waiter{mask: wake, wake: fn, persist: true}
	s.register(w)

	return sync.OnceFunc(func() { s.remove(w) })
}

// Await is the general form of [Signal.Wait].
//
// If the state already intersects wake, onCheck is returned right away.
// Otherwise the caller is registered as waiter, the state is checked again
// and onPark is called once right before the calling goroutine parks. Once
// woken, the result of onCheck is returned. Both callbacks may be nil.
//
// onPark runs with the waiter already registered, so an assert happening
// while onPark runs is not lost.
func Await[T any](s *Signal, wake Mask, onPark func(), onCheck func() T) T {
	check := func() T {
		var zero T
		if onCheck == nil {
			return zero
		}

		return onCheck()
	}

	if s.Snapshot().Any(wake) {
		return check()
	}

	token := make(chan struct{}, 1)
	w := &waiter{
		mask: wake,
		wake: func() {
			select {
			case token <- struct{}{}:
			default:
			}
		},
	}

	s.register(w)

	if s.Snapshot().Any(wake) {
		s.remove(w)
		return check()
	}

	if onPark != nil {
		onPark()
	}

	<-token

	return check()
}

func (s *Signal) register(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.list = append(s.list, w)
	s.waiters.Add(1)
}

func (s *Signal) remove(w *waiter) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(s.list, w)
	if idx < 0 {
		// Already woken and removed by an assert.
		return
	}

	s.list = slices.Delete(s.list, idx, idx+1)
	s.waiters.Add(-1)
}

func (s *Signal) wakeWaiters(state Mask) {
	var wakers []func()

	s.mu.Lock()

	kept := s.list[:0]

	for _, w := range s.list {
		if !w.mask.Any(state) {
			kept = append(kept, w)
			continue
		}

		wakers = append(wakers, w.wake)

		if w.persist {
			kept = append(kept, w)
		} else {
			s.waiters.Add(-1)
		}
	}

	clear(s.list[len(kept):])
	s.list = kept

	s.mu.Unlock()

	// Wake outside of the lock, so subscribers may take locks of their own.
	for _, wake := range wakers {
		wake()
	}
}
