package livetree

import (
	"reflect"
	"sync"
)

// Disposer is implemented by hook values that hold resources. Hooks are
// disposed in reverse registration order when their scope is dropped.
type Disposer interface {
	Dispose()
}

// UseHook returns the scope's next hook value, calling init to create it on
// the scope's first render. Hooks are matched by call order: a component must
// call the same hooks in the same order on every render. Registering a new
// hook after the first render, or asking for a hook with a different type
// than it was registered with, panics with a *ContractViolation.
func UseHook[T any](cx *Scope, init func() T) T {
	if !cx.rendering {
		violate("hooks", "%s (scope %d) used a hook outside its render", cx.name, cx.id)
	}
	i := cx.hookIdx
	cx.hookIdx++

	if i < len(cx.hooks) {
		v, ok := cx.hooks[i].(T)
		if !ok {
			violate("hooks", "%s (scope %d) hook %d was registered as %T, requested as %v",
				cx.name, cx.id, i, cx.hooks[i], reflect.TypeFor[T]())
		}
		return v
	}
	if cx.rendered {
		violate("hooks", "%s (scope %d) registered hook %d after its first render", cx.name, cx.id, i)
	}

	v := init()
	cx.hooks = append(cx.hooks, v)
	return v
}

// State is a value owned by a scope. Writing it schedules a re-render of the
// scope. Get and Set are safe from any goroutine.
type State[T any] struct {
	mu    sync.RWMutex
	value T
	scope *Scope
}

// UseState registers a State initialised by init on the first render.
func UseState[T any](cx *Scope, init func() T) *State[T] {
	return UseHook(cx, func() *State[T] {
		return &State[T]{value: init(), scope: cx}
	})
}

// Get returns the current value.
func (s *State[T]) Get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.value
}

// Set replaces the value and marks the owning scope dirty.
func (s *State[T]) Set(v T) {
	s.mu.Lock()
	s.value = v
	s.mu.Unlock()
	s.scope.NeedsUpdate()
}

// Modify updates the value in place and marks the owning scope dirty.
func (s *State[T]) Modify(fn func(*T)) {
	s.mu.Lock()
	fn(&s.value)
	s.mu.Unlock()
	s.scope.NeedsUpdate()
}

// Ref is a mutable box that survives renders without scheduling any.
type Ref[T any] struct {
	Current T
}

// UseRef registers a Ref initialised by init on the first render.
func UseRef[T any](cx *Scope, init func() T) *Ref[T] {
	return UseHook(cx, func() *Ref[T] {
		return &Ref[T]{Current: init()}
	})
}

type memo[T any] struct {
	deps  any
	value T
}

// UseMemo caches compute's result until deps change (reflect.DeepEqual).
func UseMemo[T any](cx *Scope, deps any, compute func() T) T {
	m := UseHook(cx, func() *memo[T] {
		return &memo[T]{deps: deps, value: compute()}
	})
	if !reflect.DeepEqual(m.deps, deps) {
		m.deps = deps
		m.value = compute()
	}
	return m.value
}

type cleanup struct {
	fn func()
}

func (c *cleanup) Dispose() {
	if c.fn != nil {
		c.fn()
	}
}

// UseCleanup registers fn to run when the scope is dropped. Each render
// replaces the function, so the latest closure runs.
func UseCleanup(cx *Scope, fn func()) {
	c := UseHook(cx, func() *cleanup { return &cleanup{} })
	c.fn = fn
}

// disposeHooks drops a scope's hooks bottom-up. A panicking Dispose is
// logged and does not stop the others.
func (rt *Runtime) disposeHooks(s *Scope) {
	for i := len(s.hooks) - 1; i >= 0; i-- {
		d, ok := s.hooks[i].(Disposer)
		if !ok {
			continue
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					rt.log.Errorf("hook %d of %s (scope %d) panicked in Dispose: %v", i, s.name, s.id, r)
				}
			}()
			d.Dispose()
		}()
	}
	s.hooks = nil
}
