package livetree

import "github.com/livefir/livetree/internal/lis"

// diffChildren reconciles the children of two fragments filling the same
// slot. Keyed groups are matched by key, anything else by position.
func (rt *Runtime) diffChildren(to Sink, old, next []*VNode, slot ElementRef) {
	if checkKeys(next) && old[0].Key != "" {
		rt.diffKeyed(to, old, next, slot)
		return
	}
	rt.diffUnkeyed(to, old, next, slot)
}

func (rt *Runtime) diffUnkeyed(to Sink, old, next []*VNode, slot ElementRef) {
	switch {
	case len(old) > len(next):
		rt.removeChildren(to, old[len(next):], -1)
	case len(next) > len(old):
		anchor := rt.lastElement(old[len(old)-1])
		m := rt.createChildren(to, next[len(old):], slot)
		rt.emit(to, Mutation{Op: OpInsertAfter, ID: anchor, M: m})
	}

	for i := 0; i < len(old) && i < len(next); i++ {
		rt.diffNode(to, old[i], next[i])
	}
}

// diffKeyed consumes the common prefix and suffix in place, then reorders
// the middle run with as few moves as a longest increasing subsequence
// allows.
func (rt *Runtime) diffKeyed(to Sink, old, next []*VNode, slot ElementRef) {
	left := 0
	for left < len(old) && left < len(next) && old[left].Key == next[left].Key {
		rt.diffNode(to, old[left], next[left])
		left++
	}

	switch {
	case left == len(old) && left == len(next):
		return
	case left == len(old):
		anchor := rt.lastElement(next[left-1])
		m := rt.createChildren(to, next[left:], slot)
		rt.emit(to, Mutation{Op: OpInsertAfter, ID: anchor, M: m})
		return
	case left == len(next):
		rt.removeChildren(to, old[left:], -1)
		return
	}

	right := 0
	for right < len(old)-left && right < len(next)-left &&
		old[len(old)-1-right].Key == next[len(next)-1-right].Key {
		rt.diffNode(to, old[len(old)-1-right], next[len(next)-1-right])
		right++
	}

	oldMid := old[left : len(old)-right]
	nextMid := next[left : len(next)-right]

	switch {
	case len(nextMid) == 0:
		rt.removeChildren(to, oldMid, -1)
	case len(oldMid) == 0:
		m := rt.createChildren(to, nextMid, slot)
		if right > 0 {
			rt.emit(to, Mutation{Op: OpInsertBefore, ID: rt.firstElement(next[len(next)-right]), M: m})
		} else {
			rt.emit(to, Mutation{Op: OpInsertAfter, ID: rt.lastElement(next[left-1]), M: m})
		}
	default:
		rt.diffKeyedMiddle(to, oldMid, nextMid, slot)
	}
}

// diffKeyedMiddle reconciles a run in which neither end matches. Nodes on a
// longest increasing subsequence of old positions stay where they are; every
// other surviving node is diffed and moved next to its nearest subsequence
// neighbour, and new nodes are created in the same batches.
func (rt *Runtime) diffKeyedMiddle(to Sink, old, next []*VNode, slot ElementRef) {
	oldIndex := make(map[string]int, len(old))
	for i, c := range old {
		oldIndex[c.Key] = i
	}

	newToOld := make([]int, len(next))
	inNew := make(map[string]struct{}, len(next))
	shared := 0
	for i, c := range next {
		inNew[c.Key] = struct{}{}
		if j, ok := oldIndex[c.Key]; ok {
			newToOld[i] = j
			shared++
		} else {
			newToOld[i] = -1
		}
	}

	if shared == 0 {
		rt.removeChildren(to, old[1:], -1)
		m := rt.createChildren(to, next, slot)
		rt.removeVNode(to, old[0], m, true)
		return
	}

	for _, c := range old {
		if _, ok := inNew[c.Key]; !ok {
			rt.removeVNode(to, c, -1, true)
		}
	}

	seq := lis.Indices(newToOld)
	for _, i := range seq {
		rt.diffNode(to, old[newToOld[i]], next[i])
	}

	stage := func(i int) int {
		if j := newToOld[i]; j >= 0 {
			rt.diffNode(to, old[j], next[i])
			return rt.pushRoots(to, next[i])
		}
		return rt.createVNode(to, next[i], slot)
	}

	if last := seq[len(seq)-1]; last < len(next)-1 {
		m := 0
		for i := last + 1; i < len(next); i++ {
			m += stage(i)
		}
		rt.emit(to, Mutation{Op: OpInsertAfter, ID: rt.lastElement(next[last]), M: m})
	}

	for k := len(seq) - 1; k > 0; k-- {
		hi, lo := seq[k], seq[k-1]
		if hi-lo <= 1 {
			continue
		}
		m := 0
		for i := lo + 1; i < hi; i++ {
			m += stage(i)
		}
		rt.emit(to, Mutation{Op: OpInsertBefore, ID: rt.firstElement(next[hi]), M: m})
	}

	if first := seq[0]; first > 0 {
		m := 0
		for i := 0; i < first; i++ {
			m += stage(i)
		}
		rt.emit(to, Mutation{Op: OpInsertBefore, ID: rt.firstElement(next[first]), M: m})
	}
}
