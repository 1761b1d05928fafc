// Package dirty holds the scheduler's set of scopes awaiting a re-render.
//
// Scopes are bucketed into priority lanes (lane 0 is the most urgent). Each
// scope is present at most once; marking an already-dirty scope with a more
// urgent lane promotes it. Within a lane scopes pop in ascending height, so
// ancestors are always rendered before their descendants.
package dirty

import "container/heap"

// Entry is one dirty scope.
type Entry struct {
	ID     uint32
	Height uint32
}

type location struct {
	lane   int
	height uint32
}

// Set is a deduplicated, lane-partitioned, height-ordered collection of
// dirty scopes. Removal is lazy: stale heap entries are skipped on Pop.
// It is not safe for concurrent use.
type Set struct {
	lanes  []entryHeap
	counts []int
	index  map[uint32]location
}

// New creates a set with the given number of lanes.
func New(lanes int) *Set {
	return &Set{
		lanes:  make([]entryHeap, lanes),
		counts: make([]int, lanes),
		index:  make(map[uint32]location),
	}
}

// Insert marks a scope dirty in lane. It returns false when the scope was
// already dirty in the same or a more urgent lane.
func (s *Set) Insert(id, height uint32, lane int) bool {
	if loc, ok := s.index[id]; ok {
		if loc.lane <= lane {
			return false
		}
		s.counts[loc.lane]--
	}
	s.index[id] = location{lane: lane, height: height}
	s.counts[lane]++
	heap.Push(&s.lanes[lane], Entry{ID: id, Height: height})
	return true
}

// Remove drops a scope from the set if present.
func (s *Set) Remove(id uint32) bool {
	loc, ok := s.index[id]
	if !ok {
		return false
	}
	delete(s.index, id)
	s.counts[loc.lane]--
	return true
}

// Contains reports whether the scope is dirty, and in which lane.
func (s *Set) Contains(id uint32) (int, bool) {
	loc, ok := s.index[id]
	return loc.lane, ok
}

// Highest returns the most urgent lane holding at least one scope.
func (s *Set) Highest() (int, bool) {
	for lane, n := range s.counts {
		if n > 0 {
			return lane, true
		}
	}
	return 0, false
}

// Pop removes and returns the shallowest scope of lane.
func (s *Set) Pop(lane int) (Entry, bool) {
	h := &s.lanes[lane]
	for h.Len() > 0 {
		e := heap.Pop(h).(Entry)
		loc, ok := s.index[e.ID]
		if !ok || loc.lane != lane || loc.height != e.Height {
			continue
		}
		delete(s.index, e.ID)
		s.counts[lane]--
		return e, true
	}
	return Entry{}, false
}

// Len returns the number of dirty scopes across all lanes.
func (s *Set) Len() int {
	return len(s.index)
}

// LaneLen returns the number of dirty scopes in one lane.
func (s *Set) LaneLen(lane int) int {
	return s.counts[lane]
}

// entryHeap is a min-heap ordered by height, then id
type entryHeap []Entry

func (h entryHeap) Len() int { return len(h) }
func (h entryHeap) Less(i, j int) bool {
	if h[i].Height != h[j].Height {
		return h[i].Height < h[j].Height
	}
	return h[i].ID < h[j].ID
}
func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(Entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}
