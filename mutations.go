package livetree

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Op names a mutation. Ops that take a count (M) consume that many nodes,
// in creation order, from the top of the backend's staging stack.
type Op string

const (
	OpRegisterTemplate    Op = "RegisterTemplate"
	OpLoadTemplate        Op = "LoadTemplate"
	OpCreateText          Op = "CreateText"
	OpCreatePlaceholder   Op = "CreatePlaceholder"
	OpAssignID            Op = "AssignId"
	OpHydrateText         Op = "HydrateText"
	OpSetAttribute        Op = "SetAttribute"
	OpSetText             Op = "SetText"
	OpAppendChildren      Op = "AppendChildren"
	OpInsertBefore        Op = "InsertBefore"
	OpInsertAfter         Op = "InsertAfter"
	OpReplaceWith         Op = "ReplaceWith"
	OpReplacePlaceholder  Op = "ReplacePlaceholder"
	OpRemove              Op = "Remove"
	OpNewEventListener    Op = "NewEventListener"
	OpRemoveEventListener Op = "RemoveEventListener"
	// OpPushRoot stages an already mounted node so that a following insert
	// moves it.
	OpPushRoot Op = "PushRoot"
)

// Mutation is one edit instruction. It references only element ids issued by
// earlier mutations and static data; nothing points back into VNodes.
type Mutation struct {
	Op        Op              `json:"op" cbor:"1,keyasint"`
	ID        ElementID       `json:"id,omitempty" cbor:"2,keyasint,omitempty"`
	M         int             `json:"m,omitempty" cbor:"3,keyasint,omitempty"`
	Index     int             `json:"index,omitempty" cbor:"4,keyasint,omitempty"`
	Name      string          `json:"name,omitempty" cbor:"5,keyasint,omitempty"`
	Namespace string          `json:"ns,omitempty" cbor:"6,keyasint,omitempty"`
	Value     string          `json:"value,omitempty" cbor:"7,keyasint,omitempty"`
	Attr      *AttributeValue `json:"attr,omitempty" cbor:"8,keyasint,omitempty"`
	Path      Path            `json:"path,omitempty" cbor:"9,keyasint,omitempty"`
	Template  *Template       `json:"template,omitempty" cbor:"10,keyasint,omitempty"`
}

func (m Mutation) String() string {
	switch m.Op {
	case OpRegisterTemplate:
		if m.Template == nil {
			return "RegisterTemplate{}"
		}
		return fmt.Sprintf("RegisterTemplate{%s}", m.Template.Name)
	case OpLoadTemplate:
		return fmt.Sprintf("LoadTemplate{%s, %d, %d}", m.Name, m.Index, m.ID)
	case OpCreateText, OpSetText:
		return fmt.Sprintf("%s{%q, %d}", m.Op, m.Value, m.ID)
	case OpCreatePlaceholder, OpRemove, OpPushRoot:
		return fmt.Sprintf("%s{%d}", m.Op, m.ID)
	case OpAssignID:
		return fmt.Sprintf("AssignId{%v, %d}", []uint8(m.Path), m.ID)
	case OpHydrateText:
		return fmt.Sprintf("HydrateText{%v, %q, %d}", []uint8(m.Path), m.Value, m.ID)
	case OpSetAttribute:
		val := ""
		if m.Attr != nil {
			val = m.Attr.String()
		}
		return fmt.Sprintf("SetAttribute{%s, %q, %d}", m.Name, val, m.ID)
	case OpAppendChildren, OpInsertBefore, OpInsertAfter, OpReplaceWith:
		return fmt.Sprintf("%s{%d, %d}", m.Op, m.ID, m.M)
	case OpReplacePlaceholder:
		return fmt.Sprintf("ReplacePlaceholder{%v, %d}", []uint8(m.Path), m.M)
	case OpNewEventListener, OpRemoveEventListener:
		return fmt.Sprintf("%s{%s, %d}", m.Op, m.Name, m.ID)
	default:
		return string(m.Op)
	}
}

// Sink receives mutations in emission order. Backends implement it.
type Sink interface {
	Push(m Mutation)
}

// Mutations is a recording sink.
type Mutations struct {
	Edits []Mutation `json:"edits" cbor:"1,keyasint"`
}

// Push appends m.
func (ms *Mutations) Push(m Mutation) {
	ms.Edits = append(ms.Edits, m)
}

// Len returns the number of recorded edits.
func (ms *Mutations) Len() int {
	return len(ms.Edits)
}

// Reset drops recorded edits and keeps the buffer.
func (ms *Mutations) Reset() {
	ms.Edits = ms.Edits[:0]
}

// Templates returns the templates registered by this batch.
func (ms *Mutations) Templates() []*Template {
	var out []*Template
	for _, m := range ms.Edits {
		if m.Op == OpRegisterTemplate && m.Template != nil {
			out = append(out, m.Template)
		}
	}
	return out
}

// Sanitize replaces template names with "template" and drops template
// bodies so recorded batches compare equal across template naming schemes.
func (ms *Mutations) Sanitize() *Mutations {
	for i := range ms.Edits {
		switch ms.Edits[i].Op {
		case OpRegisterTemplate:
			ms.Edits[i].Template = nil
			ms.Edits[i].Name = "template"
		case OpLoadTemplate:
			ms.Edits[i].Name = "template"
		}
	}
	return ms
}

// Apply replays the recorded edits into another sink.
func (ms *Mutations) Apply(to Sink) {
	for _, m := range ms.Edits {
		to.Push(m)
	}
}

func (ms *Mutations) String() string {
	parts := make([]string, len(ms.Edits))
	for i, m := range ms.Edits {
		parts[i] = m.String()
	}
	return strings.Join(parts, "\n")
}

// NoopSink discards everything, for dry runs.
type NoopSink struct{}

// Push discards m.
func (NoopSink) Push(Mutation) {}

// MultiSink fans every mutation out to several sinks in order.
type MultiSink []Sink

// Push forwards m to every sink.
func (ms MultiSink) Push(m Mutation) {
	for _, s := range ms {
		s.Push(m)
	}
}

// CountingSink counts mutations per op and forwards them to Next if set.
type CountingSink struct {
	Next   Sink
	total  atomic.Int64
	counts map[Op]int
}

// Push counts and forwards m.
func (c *CountingSink) Push(m Mutation) {
	if c.counts == nil {
		c.counts = make(map[Op]int)
	}
	c.counts[m.Op]++
	c.total.Add(1)
	if c.Next != nil {
		c.Next.Push(m)
	}
}

// Count returns how many mutations of op were pushed.
func (c *CountingSink) Count(op Op) int {
	return c.counts[op]
}

// Total returns how many mutations were pushed. Safe to call from any
// goroutine.
func (c *CountingSink) Total() int64 {
	return c.total.Load()
}
