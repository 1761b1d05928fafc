// Package arena provides the recycling slot allocator behind every stable
// handle in the runtime: mounted element ids, mounted instance trees and
// component scopes.
//
// Handles are small dense integers. A released handle is pushed onto a free
// list and returned by a later Insert, so handles are unique among live
// entries but not across time. There are no generations; callers guarantee
// that a handle is released only once nothing references it any more.
package arena

import "fmt"

// Root is the reserved handle of a slab created with NewReserved.
const Root uint32 = 0

type entry[T any] struct {
	value    T
	occupied bool
}

// Slab is a slot allocator with O(1) insert, lookup and release.
// It is not safe for concurrent use.
type Slab[T any] struct {
	name     string
	entries  []entry[T]
	free     []uint32
	live     int
	reserved bool
}

// New creates an empty slab. The name is used in panic messages only.
func New[T any](name string, capacity int) *Slab[T] {
	if capacity < 0 {
		capacity = 0
	}
	return &Slab[T]{
		name:    name,
		entries: make([]entry[T], 0, capacity),
	}
}

// NewReserved creates a slab whose handle 0 is permanently occupied by root.
// Releasing the root handle is a no-op.
func NewReserved[T any](name string, root T, capacity int) *Slab[T] {
	s := New[T](name, capacity)
	s.entries = append(s.entries, entry[T]{value: root, occupied: true})
	s.live = 1
	s.reserved = true
	return s
}

// Insert stores v and returns its handle, reusing the most recently
// released slot when one is available.
func (s *Slab[T]) Insert(v T) uint32 {
	s.live++
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.entries[h] = entry[T]{value: v, occupied: true}
		return h
	}
	s.entries = append(s.entries, entry[T]{value: v, occupied: true})
	return uint32(len(s.entries) - 1)
}

// Get returns the value behind h and whether h is live.
func (s *Slab[T]) Get(h uint32) (T, bool) {
	if int(h) >= len(s.entries) || !s.entries[h].occupied {
		var zero T
		return zero, false
	}
	return s.entries[h].value, true
}

// MustGet returns the value behind h and panics if h is not live.
func (s *Slab[T]) MustGet(h uint32) T {
	v, ok := s.Get(h)
	if !ok {
		panic(fmt.Sprintf("livetree: %s handle %d is not live", s.name, h))
	}
	return v
}

// Contains reports whether h is live.
func (s *Slab[T]) Contains(h uint32) bool {
	_, ok := s.Get(h)
	return ok
}

// Rebind overwrites the value behind a live handle, keeping the handle.
func (s *Slab[T]) Rebind(h uint32, v T) {
	if !s.Contains(h) {
		panic(fmt.Sprintf("livetree: rebind of %s handle %d which is not live", s.name, h))
	}
	s.entries[h].value = v
}

// Remove releases h and returns the value it held. It panics if h is not
// live. Removing the reserved root handle does nothing.
func (s *Slab[T]) Remove(h uint32) T {
	if s.reserved && h == Root {
		return s.entries[Root].value
	}
	if !s.Contains(h) {
		panic(fmt.Sprintf("livetree: release of %s handle %d which is not live", s.name, h))
	}
	v := s.entries[h].value
	s.entries[h] = entry[T]{}
	s.free = append(s.free, h)
	s.live--
	return v
}

// Len returns the number of live handles, including a reserved root.
func (s *Slab[T]) Len() int {
	return s.live
}

// Each calls fn for every live handle in ascending order until fn returns false.
func (s *Slab[T]) Each(fn func(h uint32, v T) bool) {
	for i := range s.entries {
		if !s.entries[i].occupied {
			continue
		}
		if !fn(uint32(i), s.entries[i].value) {
			return
		}
	}
}
