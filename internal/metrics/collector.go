package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Collector provides built-in render and scheduler metrics with no external dependencies
type Collector struct {
	counters       *Counters
	customCounters map[string]*int64
	mu             sync.RWMutex
	startTime      time.Time
}

// Counters tracks runtime-level render and scheduling data
type Counters struct {
	// Scheduler passes
	Passes int64 `json:"passes"`
	Yields int64 `json:"yields"`

	// Scope rendering
	Renders       int64 `json:"renders"`
	MemoizedSkips int64 `json:"memoized_skips"`
	RenderPanics  int64 `json:"render_panics"`

	// Scope lifecycle
	ScopesCreated     int64 `json:"scopes_created"`
	ScopesDropped     int64 `json:"scopes_dropped"`
	ActiveScopes      int64 `json:"active_scopes"`
	MaxActiveScopes   int64 `json:"max_active_scopes"`
	StaleDirtyDropped int64 `json:"stale_dirty_dropped"`

	// Mutation output
	MutationsEmitted    int64 `json:"mutations_emitted"`
	TemplatesRegistered int64 `json:"templates_registered"`

	// Events
	EventsDispatched int64 `json:"events_dispatched"`
	EventsDropped    int64 `json:"events_dropped"`
	ListenerPanics   int64 `json:"listener_panics"`

	// Tasks
	TasksSpawned  int64 `json:"tasks_spawned"`
	TasksFinished int64 `json:"tasks_finished"`
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	Counters
	StartTime time.Time     `json:"start_time"`
	Uptime    time.Duration `json:"uptime"`
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{
		counters:       &Counters{},
		customCounters: make(map[string]*int64),
		startTime:      time.Now(),
	}
}

// IncrementPass records one scheduler pass, and whether it yielded
func (c *Collector) IncrementPass(yielded bool) {
	atomic.AddInt64(&c.counters.Passes, 1)
	if yielded {
		atomic.AddInt64(&c.counters.Yields, 1)
	}
}

// IncrementRender records a component function invocation
func (c *Collector) IncrementRender() {
	atomic.AddInt64(&c.counters.Renders, 1)
}

// IncrementMemoizedSkip records a re-render skipped because props were equal
func (c *Collector) IncrementMemoizedSkip() {
	atomic.AddInt64(&c.counters.MemoizedSkips, 1)
}

// IncrementRenderPanic records a recovered component render failure
func (c *Collector) IncrementRenderPanic() {
	atomic.AddInt64(&c.counters.RenderPanics, 1)
}

// IncrementScopeCreated records a new scope and tracks the high-water mark
func (c *Collector) IncrementScopeCreated() {
	atomic.AddInt64(&c.counters.ScopesCreated, 1)
	active := atomic.AddInt64(&c.counters.ActiveScopes, 1)

	for {
		max := atomic.LoadInt64(&c.counters.MaxActiveScopes)
		if active <= max {
			break
		}
		if atomic.CompareAndSwapInt64(&c.counters.MaxActiveScopes, max, active) {
			break
		}
	}
}

// IncrementScopeDropped records a scope teardown
func (c *Collector) IncrementScopeDropped() {
	atomic.AddInt64(&c.counters.ScopesDropped, 1)
	atomic.AddInt64(&c.counters.ActiveScopes, -1)
}

// IncrementStaleDirty records a dirty entry discarded because its scope is gone
func (c *Collector) IncrementStaleDirty() {
	atomic.AddInt64(&c.counters.StaleDirtyDropped, 1)
}

// AddMutations records emitted mutations
func (c *Collector) AddMutations(n int64) {
	atomic.AddInt64(&c.counters.MutationsEmitted, n)
}

// IncrementTemplateRegistered records a RegisterTemplate emission
func (c *Collector) IncrementTemplateRegistered() {
	atomic.AddInt64(&c.counters.TemplatesRegistered, 1)
}

// IncrementEventDispatched records an event delivered to at least one listener
func (c *Collector) IncrementEventDispatched() {
	atomic.AddInt64(&c.counters.EventsDispatched, 1)
}

// IncrementEventDropped records an event whose target was no longer mounted
func (c *Collector) IncrementEventDropped() {
	atomic.AddInt64(&c.counters.EventsDropped, 1)
}

// IncrementListenerPanic records a recovered listener panic
func (c *Collector) IncrementListenerPanic() {
	atomic.AddInt64(&c.counters.ListenerPanics, 1)
}

// IncrementTaskSpawned records a task started by a scope
func (c *Collector) IncrementTaskSpawned() {
	atomic.AddInt64(&c.counters.TasksSpawned, 1)
}

// IncrementTaskFinished records a task that returned or was cancelled
func (c *Collector) IncrementTaskFinished() {
	atomic.AddInt64(&c.counters.TasksFinished, 1)
}

// IncrementCustomCounter increments a custom named counter
func (c *Collector) IncrementCustomCounter(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if counter, exists := c.customCounters[name]; exists {
		atomic.AddInt64(counter, 1)
	} else {
		var newCounter int64 = 1
		c.customCounters[name] = &newCounter
	}
}

// Snapshot returns current counters
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	start := c.startTime
	c.mu.RUnlock()

	return Snapshot{
		Counters: Counters{
			Passes:              atomic.LoadInt64(&c.counters.Passes),
			Yields:              atomic.LoadInt64(&c.counters.Yields),
			Renders:             atomic.LoadInt64(&c.counters.Renders),
			MemoizedSkips:       atomic.LoadInt64(&c.counters.MemoizedSkips),
			RenderPanics:        atomic.LoadInt64(&c.counters.RenderPanics),
			ScopesCreated:       atomic.LoadInt64(&c.counters.ScopesCreated),
			ScopesDropped:       atomic.LoadInt64(&c.counters.ScopesDropped),
			ActiveScopes:        atomic.LoadInt64(&c.counters.ActiveScopes),
			MaxActiveScopes:     atomic.LoadInt64(&c.counters.MaxActiveScopes),
			StaleDirtyDropped:   atomic.LoadInt64(&c.counters.StaleDirtyDropped),
			MutationsEmitted:    atomic.LoadInt64(&c.counters.MutationsEmitted),
			TemplatesRegistered: atomic.LoadInt64(&c.counters.TemplatesRegistered),
			EventsDispatched:    atomic.LoadInt64(&c.counters.EventsDispatched),
			EventsDropped:       atomic.LoadInt64(&c.counters.EventsDropped),
			ListenerPanics:      atomic.LoadInt64(&c.counters.ListenerPanics),
			TasksSpawned:        atomic.LoadInt64(&c.counters.TasksSpawned),
			TasksFinished:       atomic.LoadInt64(&c.counters.TasksFinished),
		},
		StartTime: start,
		Uptime:    time.Since(start),
	}
}

// GetCustomCounters returns all custom counters
func (c *Collector) GetCustomCounters() map[string]int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make(map[string]int64)
	for name, counter := range c.customCounters {
		result[name] = atomic.LoadInt64(counter)
	}
	return result
}

// Reset resets all metrics to zero
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range []*int64{
		&c.counters.Passes, &c.counters.Yields,
		&c.counters.Renders, &c.counters.MemoizedSkips, &c.counters.RenderPanics,
		&c.counters.ScopesCreated, &c.counters.ScopesDropped, &c.counters.ActiveScopes,
		&c.counters.MaxActiveScopes, &c.counters.StaleDirtyDropped,
		&c.counters.MutationsEmitted, &c.counters.TemplatesRegistered,
		&c.counters.EventsDispatched, &c.counters.EventsDropped, &c.counters.ListenerPanics,
		&c.counters.TasksSpawned, &c.counters.TasksFinished,
	} {
		atomic.StoreInt64(p, 0)
	}

	c.customCounters = make(map[string]*int64)
	c.startTime = time.Now()
}

// MemoHitRate returns the share of component re-renders avoided by memoization, in percent
func (c *Collector) MemoHitRate() float64 {
	skips := atomic.LoadInt64(&c.counters.MemoizedSkips)
	renders := atomic.LoadInt64(&c.counters.Renders)

	if skips+renders == 0 {
		return 0.0
	}
	return float64(skips) / float64(skips+renders) * 100.0
}

// YieldRate returns the share of passes that ended by yielding, in percent
func (c *Collector) YieldRate() float64 {
	passes := atomic.LoadInt64(&c.counters.Passes)
	yields := atomic.LoadInt64(&c.counters.Yields)

	if passes == 0 {
		return 0.0
	}
	return float64(yields) / float64(passes) * 100.0
}
