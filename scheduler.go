package livetree

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// Lane is the priority of a pending re-render. A more urgent lane is always
// drained completely before a less urgent one is touched.
type Lane uint8

const (
	// LaneDefault resolves to the lane of the event being dispatched, or the
	// configured async lane outside event dispatch.
	LaneDefault Lane = iota
	// LaneImmediate is for input that needs same-tick feedback.
	LaneImmediate
	// LaneHigh is for direct user interaction.
	LaneHigh
	// LaneMedium is for page-level events not caused by input.
	LaneMedium
	// LaneLow is for background updates.
	LaneLow
)

const laneCount = 4

func (l Lane) index() int { return int(l) - 1 }

func (l Lane) String() string {
	switch l {
	case LaneDefault:
		return "default"
	case LaneImmediate:
		return "immediate"
	case LaneHigh:
		return "high"
	case LaneMedium:
		return "medium"
	case LaneLow:
		return "low"
	default:
		return fmt.Sprintf("lane(%d)", uint8(l))
	}
}

// ParseLane parses a lane name as written by Lane.String.
func ParseLane(s string) (Lane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "default":
		return LaneDefault, nil
	case "immediate":
		return LaneImmediate, nil
	case "high":
		return LaneHigh, nil
	case "medium":
		return LaneMedium, nil
	case "low":
		return LaneLow, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidLane, s)
	}
}

// SchedulerState is the phase the scheduler is in.
type SchedulerState int32

const (
	StateIdle SchedulerState = iota
	StateDrainingEvents
	StateSelectingLane
	StateWorking
	StateYielding
)

func (s SchedulerState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateDrainingEvents:
		return "draining-events"
	case StateSelectingLane:
		return "selecting-lane"
	case StateWorking:
		return "working"
	case StateYielding:
		return "yielding"
	default:
		return "unknown"
	}
}

// Outcome tells the caller of a render pass why it returned.
type Outcome int

const (
	// Idle means every lane is empty and no message is pending.
	Idle Outcome = iota
	// Yielded means the deadline or the per-pass render limit was reached
	// with work left.
	Yielded
)

func (o Outcome) String() string {
	if o == Yielded {
		return "yielded"
	}
	return "idle"
}

type messageKind uint8

const (
	msgDirty messageKind = iota
	msgEvent
	msgTaskDone
	msgTemplate
)

// message is what other goroutines hand to the render goroutine.
type message struct {
	kind     messageKind
	scope    ScopeID
	lane     Lane
	event    *Event
	task     TaskID
	template *Template
}

// State returns the scheduler's current phase.
func (rt *Runtime) State() SchedulerState {
	return SchedulerState(rt.state.Load())
}

func (rt *Runtime) setState(s SchedulerState) {
	rt.state.Store(int32(s))
}

// MarkDirty schedules a re-render of scope id. Safe from any goroutine.
func (rt *Runtime) MarkDirty(id ScopeID, lane Lane) error {
	if lane == LaneDefault {
		lane = rt.defaultLane()
	}
	if !rt.queue.Push(message{kind: msgDirty, scope: id, lane: lane}) {
		return ErrRuntimeClosed
	}
	return nil
}

func (rt *Runtime) defaultLane() Lane {
	if l := Lane(rt.dispatchLane.Load()); l != LaneDefault {
		return l
	}
	return rt.config.asyncLane()
}

// Send queues an event for dispatch on the render goroutine. Safe from any
// goroutine; never blocks.
func (rt *Runtime) Send(ev *Event) error {
	if ev == nil {
		return fmt.Errorf("event must not be nil")
	}
	if !rt.queue.Push(message{kind: msgEvent, event: ev}) {
		return ErrRuntimeClosed
	}
	return nil
}

// HasWork reports whether a render pass would do anything.
func (rt *Runtime) HasWork() bool {
	return rt.queue.Len() > 0 || rt.dirty.Len() > 0
}

// WaitForWork blocks until there is a message or dirty scope to process, or
// ctx is done.
func (rt *Runtime) WaitForWork(ctx context.Context) error {
	for {
		if rt.closed.Load() {
			return ErrRuntimeClosed
		}
		if rt.HasWork() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-rt.queue.Wake():
		}
	}
}

// drain converts every queued message into dirty scopes, dispatched events
// and finished tasks. Messages produced while draining are drained too.
func (rt *Runtime) drain() {
	rt.setState(StateDrainingEvents)
	for {
		batch := rt.queue.Drain()
		if len(batch) == 0 {
			return
		}
		for _, msg := range batch {
			switch msg.kind {
			case msgDirty:
				rt.markDirtyNow(msg.scope, msg.lane)
			case msgEvent:
				if err := rt.HandleEvent(msg.event); err != nil {
					rt.log.Debugf("event %s on element %d: %v", msg.event.Name, msg.event.Element, err)
				}
			case msgTaskDone:
				rt.finishTask(msg.task)
			case msgTemplate:
				rt.applyTemplate(msg.template)
			}
		}
	}
}

func (rt *Runtime) markDirtyNow(id ScopeID, lane Lane) {
	s, ok := rt.Scope(id)
	if !ok {
		rt.log.Debugf("dropping dirty mark for scope %d which no longer exists", id)
		rt.metrics.IncrementStaleDirty()
		return
	}
	if lane == LaneDefault {
		lane = rt.config.asyncLane()
	}
	rt.dirty.Insert(uint32(id), s.height, lane.index())
}

// RenderWithDeadline drains pending messages and re-renders dirty scopes,
// most urgent lane first and shallowest scope first within a lane, until no
// work is left or ctx is done. The context is only consulted between two
// scopes and only after at least one scope rendered, so every pass makes
// progress. Mutations go to to.
func (rt *Runtime) RenderWithDeadline(ctx context.Context, to Sink) (Outcome, error) {
	if rt.closed.Load() {
		return Idle, ErrRuntimeClosed
	}
	if !rt.built {
		return Idle, ErrNotBuilt
	}

	outcome := Idle
	rendered := 0
	limit := rt.config.MaxRendersPerPass

	for {
		rt.drain()
		rt.setState(StateSelectingLane)

		lane, ok := rt.dirty.Highest()
		if !ok {
			break
		}
		if rendered > 0 && (ctx.Err() != nil || (limit > 0 && rendered >= limit)) {
			outcome = Yielded
			rt.setState(StateYielding)
			rt.log.Debugf("yielding after %d renders with %d dirty scopes", rendered, rt.dirty.Len())
			break
		}

		e, ok := rt.dirty.Pop(lane)
		if !ok {
			continue
		}
		s, ok := rt.Scope(ScopeID(e.ID))
		if !ok || s.height != e.Height {
			rt.metrics.IncrementStaleDirty()
			continue
		}

		rt.setState(StateWorking)
		rt.rerender(to, s)
		rendered++
	}

	rt.finishPass()
	rt.metrics.IncrementPass(outcome == Yielded)
	if outcome == Idle {
		rt.setState(StateIdle)
	}
	return outcome, nil
}

// RenderImmediate runs the scheduler until no work is left.
func (rt *Runtime) RenderImmediate(to Sink) error {
	_, err := rt.RenderWithDeadline(context.Background(), to)
	return err
}

// Run renders frames until ctx is done: it waits for work, renders it
// within the configured frame budget, and hands every non-empty batch to
// flush. A flush error stops the loop.
func (rt *Runtime) Run(ctx context.Context, flush func(*Mutations) error) error {
	budget := rt.config.FrameBudget
	if budget <= 0 {
		budget = 16 * time.Millisecond
	}

	for {
		if err := rt.WaitForWork(ctx); err != nil {
			return err
		}

		frame, cancel := context.WithTimeout(ctx, budget)
		batch := &Mutations{}
		_, err := rt.RenderWithDeadline(frame, batch)
		cancel()
		if err != nil {
			return err
		}

		if batch.Len() > 0 {
			if err := flush(batch); err != nil {
				return fmt.Errorf("flush mutations: %w", err)
			}
		}
	}
}
