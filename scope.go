package livetree

import (
	"context"
	"reflect"
)

// ScopeID names a mounted component instance. IDs are recycled after the
// scope is dropped; 0 never names a scope.
type ScopeID uint32

// Scope is the persistent state of one component instance. It is handed to
// the component's render function and to every hook call; it must only be
// used on the render goroutine, except for NeedsUpdate and Spawn which are
// safe anywhere.
type Scope struct {
	id        ScopeID
	parent    ScopeID
	height    uint32
	name      string
	rt        *Runtime
	props     anyProps
	renderID  uintptr
	slot      ElementRef
	hooks     []any
	hookIdx   int
	rendered  bool
	failed    bool
	last      *VNode
	contexts  map[reflect.Type]any
	tasks     map[TaskID]struct{}
	renders   int
	rendering bool
}

// ID returns the scope's id.
func (s *Scope) ID() ScopeID { return s.id }

// Name returns the component name the scope was created from.
func (s *Scope) Name() string { return s.name }

// Height returns the scope's depth in the component tree; the root is 0.
func (s *Scope) Height() uint32 { return s.height }

// Parent returns the parent scope, or false for the root scope.
func (s *Scope) Parent() (ScopeID, bool) { return s.parent, s.parent != 0 }

// Runtime returns the runtime that owns the scope.
func (s *Scope) Runtime() *Runtime { return s.rt }

// Renders returns how many times the component function ran successfully.
func (s *Scope) Renders() int { return s.renders }

// Root returns the last successfully rendered tree.
func (s *Scope) Root() *VNode { return s.last }

// NeedsUpdate marks the scope dirty in the lane of the event being
// dispatched, or the configured async lane outside dispatch.
func (s *Scope) NeedsUpdate() {
	s.rt.MarkDirty(s.id, LaneDefault)
}

// NeedsUpdateWith marks the scope dirty in an explicit lane.
func (s *Scope) NeedsUpdateWith(lane Lane) {
	s.rt.MarkDirty(s.id, lane)
}

// Spawn runs fn on its own goroutine, bound to the scope's lifetime: ctx is
// cancelled when the scope is dropped or the runtime closes. Panics in fn
// are recovered and logged.
func (s *Scope) Spawn(fn func(ctx context.Context)) TaskID {
	return s.rt.spawn(s, fn)
}

// ProvideContext makes v visible to this scope and its descendants by type.
// Providing again replaces the value.
func ProvideContext[T any](cx *Scope, v T) T {
	if cx.contexts == nil {
		cx.contexts = make(map[reflect.Type]any)
	}
	cx.contexts[reflect.TypeFor[T]()] = v
	return v
}

// ConsumeContext finds the nearest value of type T provided by this scope or
// an ancestor.
func ConsumeContext[T any](cx *Scope) (T, bool) {
	key := reflect.TypeFor[T]()
	for s := cx; s != nil; {
		if v, ok := s.contexts[key]; ok {
			return v.(T), true
		}
		if s.parent == 0 {
			break
		}
		parent, ok := s.rt.scopes.Get(uint32(s.parent))
		if !ok {
			break
		}
		s = parent
	}
	var zero T
	return zero, false
}

func (rt *Runtime) newScope(c *VComponent, slot ElementRef) *Scope {
	s := &Scope{
		name:     c.Name,
		rt:       rt,
		props:    c.props,
		renderID: c.renderID,
		slot:     slot,
	}
	if n := len(rt.stack); n > 0 {
		parent := rt.stack[n-1]
		s.parent = parent.id
		s.height = parent.height + 1
	}
	s.id = ScopeID(rt.scopes.Insert(s))
	c.scope = s.id
	rt.metrics.IncrementScopeCreated()
	return s
}

// runScope invokes the component function of s. A panic inside it is
// recovered and reported as false; contract violations are re-raised.
func (rt *Runtime) runScope(s *Scope) (node *VNode, ok bool) {
	rt.dirty.Remove(uint32(s.id))
	s.hookIdx = 0
	s.rendering = true
	rt.stack = append(rt.stack, s)

	defer func() {
		rt.stack = rt.stack[:len(rt.stack)-1]
		s.rendering = false
		if r := recover(); r != nil {
			if cv, isViolation := r.(*ContractViolation); isViolation {
				panic(cv)
			}
			err := &RenderError{Component: s.name, Scope: s.id, Value: r}
			rt.log.Errorf("%s", err.Error())
			rt.metrics.IncrementRenderPanic()
			s.failed = true
			node, ok = nil, false
		}
	}()

	node = s.props.render(s)
	if rt.config.Debug && s.rendered && s.hookIdx != len(s.hooks) {
		violate("hooks", "%s (scope %d) called %d hooks, previous renders called %d", s.name, s.id, s.hookIdx, len(s.hooks))
	}
	if node == nil {
		node = placeholderVNode()
	}
	s.rendered = true
	s.failed = false
	s.renders++
	rt.metrics.IncrementRender()
	return node, true
}

// withScope makes s the current scope while fn runs, so that components
// created by fn become its children.
func (rt *Runtime) withScope(s *Scope, fn func()) {
	rt.stack = append(rt.stack, s)
	defer func() { rt.stack = rt.stack[:len(rt.stack)-1] }()
	fn()
}
