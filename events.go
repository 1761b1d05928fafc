package livetree

import (
	"fmt"
	"strings"
)

// Event is a backend event addressed to a mounted element. Handlers run on
// the render goroutine, innermost listener first, then bubble outwards
// through enclosing elements and templates unless Bubbles is false or a
// handler calls StopPropagation.
type Event struct {
	Name    string
	Element ElementID
	Data    any
	Bubbles bool
	// Lane is the lane dirty marks made by handlers land in when they use
	// LaneDefault. Zero picks the lane from the event name.
	Lane Lane

	stopped bool
}

var nonBubbling = map[string]bool{
	"focus":      true,
	"blur":       true,
	"load":       true,
	"unload":     true,
	"scroll":     true,
	"mouseenter": true,
	"mouseleave": true,
}

// NewEvent builds an event with the default bubbling behavior for its name.
func NewEvent(name string, target ElementID, data any) *Event {
	name = strings.TrimPrefix(name, "on")
	return &Event{Name: name, Element: target, Data: data, Bubbles: !nonBubbling[name]}
}

// StopPropagation keeps the event from reaching outer listeners. Listeners
// on the same element still run.
func (e *Event) StopPropagation() {
	e.stopped = true
}

// Stopped reports whether a handler stopped propagation.
func (e *Event) Stopped() bool {
	return e.stopped
}

// EventLane returns the lane renders caused by an event of that name land
// in: text input is immediate, direct interaction high, the rest medium.
func EventLane(name string) Lane {
	name = strings.TrimPrefix(name, "on")
	switch name {
	case "input", "change", "beforeinput", "compositionend":
		return LaneImmediate
	case "click", "dblclick", "submit", "focus", "blur", "contextmenu":
		return LaneHigh
	}
	for _, prefix := range []string{"mouse", "key", "pointer", "touch", "drag"} {
		if strings.HasPrefix(name, prefix) {
			return LaneHigh
		}
	}
	return LaneMedium
}

// HandleEvent dispatches ev synchronously. Render goroutine only; other
// goroutines use Send.
func (rt *Runtime) HandleEvent(ev *Event) error {
	if rt.closed.Load() {
		return ErrRuntimeClosed
	}
	ref, ok := rt.lookupElement(ev.Element)
	if !ok {
		rt.metrics.IncrementEventDropped()
		return fmt.Errorf("dispatch %s to element %d: %w", ev.Name, ev.Element, ErrElementNotFound)
	}

	lane := ev.Lane
	if lane == LaneDefault {
		lane = EventLane(ev.Name)
	}
	rt.dispatchLane.Store(int32(lane))
	defer rt.dispatchLane.Store(int32(LaneDefault))

	delivered := 0
	for ref.valid() {
		n, ok := rt.mounts.Get(uint32(ref.mount))
		if !ok || n == nil {
			break
		}
		t := n.tmpl
		for k := len(ref.path); k > 0; k-- {
			prefix := ref.path[:k]
			for a, p := range t.AttrPaths {
				if !p.Equal(prefix) {
					continue
				}
				attr := n.DynamicAttrs[a]
				if !attr.isListener() || attr.eventName() != ev.Name || attr.Value.handler == nil {
					continue
				}
				rt.callListener(n, attr, ev)
				delivered++
			}
			if ev.stopped || !ev.Bubbles {
				break
			}
		}
		if ev.stopped || !ev.Bubbles {
			break
		}
		ref = n.parent
	}

	if delivered == 0 {
		rt.metrics.IncrementEventDropped()
		return nil
	}
	rt.metrics.IncrementEventDispatched()
	return nil
}

func (rt *Runtime) lookupElement(id ElementID) (ElementRef, bool) {
	if id == RootID {
		return ElementRef{}, false
	}
	ref, ok := rt.elements.Get(uint32(id))
	if !ok || !ref.valid() {
		return ElementRef{}, false
	}
	return ref, true
}

func (rt *Runtime) callListener(n *VNode, attr Attribute, ev *Event) {
	defer func() {
		if r := recover(); r != nil {
			rt.log.Errorf("listener %s on %s panicked: %v", attr.Name, n.tmpl.Name, r)
			rt.metrics.IncrementListenerPanic()
		}
	}()
	attr.Value.handler(ev)
}
