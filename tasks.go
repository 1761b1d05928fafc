package livetree

import (
	"context"
	"fmt"
)

// TaskID names a goroutine spawned by a scope.
type TaskID uint64

type task struct {
	id     TaskID
	scope  ScopeID
	owner  string
	cancel context.CancelFunc
}

func (rt *Runtime) spawn(s *Scope, fn func(ctx context.Context)) TaskID {
	ctx, cancel := context.WithCancel(rt.ctx)

	rt.tasksMu.Lock()
	rt.nextTask++
	t := &task{id: rt.nextTask, scope: s.id, owner: s.name, cancel: cancel}
	rt.tasks[t.id] = t
	if s.tasks == nil {
		s.tasks = make(map[TaskID]struct{})
	}
	s.tasks[t.id] = struct{}{}
	rt.tasksMu.Unlock()

	rt.metrics.IncrementTaskSpawned()
	rt.taskWG.Add(1)
	go func() {
		defer rt.taskWG.Done()
		defer rt.queue.Push(message{kind: msgTaskDone, task: t.id})
		defer func() {
			if r := recover(); r != nil {
				rt.log.Errorf("task %d of %s (scope %d) panicked: %v", t.id, t.owner, t.scope, r)
			}
		}()
		fn(ctx)
	}()
	return t.id
}

// CancelTask cancels a running task. The task's goroutine still has to
// observe its context to stop.
func (rt *Runtime) CancelTask(id TaskID) error {
	rt.tasksMu.Lock()
	t, ok := rt.tasks[id]
	rt.tasksMu.Unlock()
	if !ok {
		return fmt.Errorf("cancel task %d: %w", id, ErrTaskNotFound)
	}
	t.cancel()
	return nil
}

// TaskCount returns the number of tasks that have not finished.
func (rt *Runtime) TaskCount() int {
	rt.tasksMu.Lock()
	defer rt.tasksMu.Unlock()
	return len(rt.tasks)
}

func (rt *Runtime) finishTask(id TaskID) {
	rt.tasksMu.Lock()
	t, ok := rt.tasks[id]
	if ok {
		delete(rt.tasks, id)
		if s, live := rt.Scope(t.scope); live && s.tasks != nil {
			delete(s.tasks, id)
		}
	}
	rt.tasksMu.Unlock()

	if ok {
		t.cancel()
		rt.metrics.IncrementTaskFinished()
	}
}

func (rt *Runtime) cancelScopeTasks(s *Scope) {
	rt.tasksMu.Lock()
	defer rt.tasksMu.Unlock()
	for id := range s.tasks {
		if t, ok := rt.tasks[id]; ok {
			t.cancel()
		}
	}
	s.tasks = nil
}
