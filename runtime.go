// Package livetree is a virtual-tree UI runtime. Components render
// instance trees of static templates; the runtime diffs each new tree against
// the previous one and emits the minimal mutation stream a backend needs to
// bring its real tree up to date. Re-renders are driven by a cooperative
// scheduler with four priority lanes.
package livetree

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/livefir/livetree/internal/arena"
	"github.com/livefir/livetree/internal/dirty"
	"github.com/livefir/livetree/internal/ingress"
	"github.com/livefir/livetree/internal/metrics"
	"github.com/tliron/commonlog"
)

// Collector counts render, scheduler and event activity. Share one between
// runtimes with WithCollector to aggregate.
type Collector = metrics.Collector

// Metrics is a point-in-time copy of a Collector.
type Metrics = metrics.Snapshot

// NewCollector creates an empty Collector.
func NewCollector() *Collector { return metrics.NewCollector() }

// Runtime owns one mounted component tree: the element and scope arenas, the
// diff engine and the scheduler. Rendering methods must be called from a
// single goroutine; Send, MarkDirty, ReplaceTemplate, State and Metrics are
// safe from any goroutine.
type Runtime struct {
	config  *Config
	log     commonlog.Logger
	metrics *metrics.Collector

	elements *arena.Slab[ElementRef]
	mounts   *arena.Slab[*VNode]
	scopes   *arena.Slab[*Scope]

	root      *VComponent
	rootScope ScopeID
	built     bool
	closed    atomic.Bool

	overrides  map[string]*Template
	registered map[string]*Template

	stack          []*Scope
	dirty          *dirty.Set
	queue          *ingress.Queue[message]
	dispatchLane   atomic.Int32
	state          atomic.Int32
	pendingRelease []ElementID

	tasksMu  sync.Mutex
	tasks    map[TaskID]*task
	nextTask TaskID
	taskWG   sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc
}

// Option configures a Runtime instance
type Option func(*Runtime) error

// WithConfig replaces the default configuration. The config is validated.
func WithConfig(config *Config) Option {
	return func(rt *Runtime) error {
		if config == nil {
			return fmt.Errorf("config must not be nil")
		}
		if err := config.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		rt.config = config
		return nil
	}
}

// WithLogger sets the logger used for render failures and scheduler events.
func WithLogger(log commonlog.Logger) Option {
	return func(rt *Runtime) error {
		if log == nil {
			return fmt.Errorf("logger must not be nil")
		}
		rt.log = log
		return nil
	}
}

// WithCollector shares a metrics collector.
func WithCollector(c *Collector) Option {
	return func(rt *Runtime) error {
		if c == nil {
			return fmt.Errorf("collector must not be nil")
		}
		rt.metrics = c
		return nil
	}
}

// New creates a runtime whose root component is render with props. Nothing
// is rendered until Rebuild.
func New[P any](name string, render RenderFunc[P], props P, options ...Option) (*Runtime, error) {
	rt := &Runtime{
		config:     DefaultConfig(),
		log:        commonlog.GetLogger("livetree.runtime"),
		overrides:  make(map[string]*Template),
		registered: make(map[string]*Template),
		dirty:      dirty.New(laneCount),
		queue:      ingress.New[message](),
		tasks:      make(map[TaskID]*task),
	}

	for _, option := range options {
		if err := option(rt); err != nil {
			return nil, fmt.Errorf("failed to apply runtime option: %w", err)
		}
	}
	if rt.metrics == nil {
		rt.metrics = metrics.NewCollector()
	}

	capacity := rt.config.InitialCapacity
	rt.elements = arena.NewReserved[ElementRef]("element", ElementRef{}, capacity)
	rt.mounts = arena.NewReserved[*VNode]("mount", nil, capacity)
	rt.scopes = arena.NewReserved[*Scope]("scope", nil, capacity)
	rt.ctx, rt.cancel = context.WithCancel(context.Background())
	rt.root = Component(name, render, props)
	return rt, nil
}

// NewApp creates a runtime for a root component without props.
func NewApp(name string, render func(cx *Scope) *VNode, options ...Option) (*Runtime, error) {
	return New(name, func(cx *Scope, _ struct{}) *VNode { return render(cx) }, struct{}{}, options...)
}

// Config returns the runtime configuration.
func (rt *Runtime) Config() Config {
	return *rt.config
}

// Metrics returns a snapshot of the runtime's counters.
func (rt *Runtime) Metrics() Metrics {
	return rt.metrics.Snapshot()
}

// Collector returns the runtime's metrics collector.
func (rt *Runtime) Collector() *Collector {
	return rt.metrics
}

// RootScope returns the root component's scope id; it is 0 before Rebuild.
func (rt *Runtime) RootScope() ScopeID {
	return rt.rootScope
}

// Scope looks up a live scope. Render goroutine only.
func (rt *Runtime) Scope(id ScopeID) (*Scope, bool) {
	if id == 0 {
		return nil, false
	}
	return rt.scopes.Get(uint32(id))
}

// ScopeCount returns the number of live scopes.
func (rt *Runtime) ScopeCount() int {
	return rt.scopes.Len() - 1
}

// ElementCount returns the number of live element ids, not counting RootID.
func (rt *Runtime) ElementCount() int {
	return rt.elements.Len() - 1
}

// Rebuild renders the root component from scratch and appends its real
// roots to RootID. It may be called once.
func (rt *Runtime) Rebuild(to Sink) error {
	if rt.closed.Load() {
		return ErrRuntimeClosed
	}
	if rt.built {
		return ErrAlreadyBuilt
	}
	rt.built = true

	m := rt.createComponent(to, rt.root, ElementRef{})
	rt.rootScope = rt.root.scope
	rt.emit(to, Mutation{Op: OpAppendChildren, ID: RootID, M: m})
	rt.finishPass()
	return nil
}

// Close drops every scope, cancels running tasks and waits for them to
// return. Pending messages are discarded.
func (rt *Runtime) Close() error {
	if !rt.closed.CompareAndSwap(false, true) {
		return ErrRuntimeClosed
	}
	rt.queue.Close()
	rt.cancel()

	if rt.built && rt.rootScope != 0 {
		if _, ok := rt.scopes.Get(uint32(rt.rootScope)); ok {
			rt.removeComponent(NoopSink{}, rt.root, -1, false)
		}
		rt.flushReleases()
	}

	rt.taskWG.Wait()
	rt.setState(StateIdle)
	return nil
}

// Closed reports whether Close has been called.
func (rt *Runtime) Closed() bool {
	return rt.closed.Load()
}

func (rt *Runtime) emit(to Sink, m Mutation) {
	to.Push(m)
	rt.metrics.AddMutations(1)
}

func (rt *Runtime) nextElement(ref ElementRef) ElementID {
	return ElementID(rt.elements.Insert(ref))
}

// releaseElement queues id for release at the end of the current pass so it
// cannot be handed out again while mutations of this pass still name it.
func (rt *Runtime) releaseElement(id ElementID) {
	if id == RootID {
		return
	}
	rt.pendingRelease = append(rt.pendingRelease, id)
}

func (rt *Runtime) flushReleases() {
	for _, id := range rt.pendingRelease {
		rt.elements.Remove(uint32(id))
	}
	rt.pendingRelease = rt.pendingRelease[:0]
}

// resolve returns the hot-reload override for t, if any.
func (rt *Runtime) resolve(t *Template) *Template {
	if o, ok := rt.overrides[t.Name]; ok {
		return o
	}
	return t
}

// register emits RegisterTemplate the first time t (or a new override of
// its name) is about to be instantiated.
func (rt *Runtime) register(to Sink, t *Template) {
	if rt.registered[t.Name] == t {
		return
	}
	rt.registered[t.Name] = t
	rt.emit(to, Mutation{Op: OpRegisterTemplate, Name: t.Name, Template: t})
	rt.metrics.IncrementTemplateRegistered()
}

// finishPass runs at the end of every unit of rendering work.
func (rt *Runtime) finishPass() {
	rt.flushReleases()
	if rt.config.Debug {
		if err := rt.CheckInvariants(); err != nil {
			panic(fmt.Sprintf("livetree: invariant check failed: %v", err))
		}
	}
}
