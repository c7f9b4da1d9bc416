// Package task schedules callables onto the foreign runtime's own worker
// threads and retrieves their results on the owning thread. Scheduling
// goes through the call bridge like any other foreign call; the helper
// module installed at runtime startup provides the scheduling entry point.
//
// Cancellation is not supported once a task has been dispatched: the task
// runs to completion or raises. Abandoning a Task before Wait merely stops
// observing it.
package task

import (
	"context"
	"time"

	"github.com/gofrs/uuid"

	"github.com/cpodariu/jlrs/errs"
	"github.com/cpodariu/jlrs/memory"
	"github.com/cpodariu/jlrs/module"
	"github.com/cpodariu/jlrs/value"
)

// HelperModule is the name of the module installed into Main at runtime
// startup, providing the scheduling entry point.
const HelperModule = "JlrsGo"

// DefaultPollInterval is how often Wait polls task completion when no
// interval is given.
const DefaultPollInterval = 10 * time.Millisecond

// Task denotes a foreign task object. The value must stay rooted (in the
// scope that scheduled it) until the result has been retrieved.
type Task struct {
	val value.Value
	id  uuid.UUID
}

// Schedule dispatches the callable with the given arguments onto the
// foreign worker pool and returns the task denoting it. A raise during
// scheduling itself is returned as an ExceptionError; a raise inside the
// scheduled callable is captured by the task and surfaces from Wait.
func Schedule(t memory.Target, c value.Callable, args ...value.Value) (*Task, error) {
	main, err := module.Main(t)
	if err != nil {
		return nil, err
	}
	helper, err := main.Submodule(t, HelperModule)
	if err != nil {
		return nil, err
	}
	sched, err := helper.Function(t, "asynccall")
	if err != nil {
		return nil, err
	}
	callable := sched.Callable()
	if kw, ok := c.Keywords(); ok {
		callable = callable.WithKeywords(kw)
	}
	callArgs := make([]value.Value, 0, 1+len(args))
	callArgs = append(callArgs, c.Function())
	callArgs = append(callArgs, args...)
	res, err := callable.Call(t, callArgs...)
	if err != nil {
		return nil, err
	}
	v, err := res.Unwrap(t)
	if err != nil {
		return nil, err
	}
	return &Task{val: v, id: uuid.Must(uuid.NewV4())}, nil
}

// Value returns the task's foreign value.
func (tk *Task) Value() value.Value {
	return tk.val
}

// ID returns the host-side identifier assigned at scheduling time, used
// to correlate log lines about this task.
func (tk *Task) ID() uuid.UUID {
	return tk.id
}

// Done polls whether the task has completed, through the foreign
// istaskdone predicate.
func (tk *Task) Done(t memory.Target) (bool, error) {
	base, err := module.Base(t)
	if err != nil {
		return false, err
	}
	doneFn, err := base.Function(t, "istaskdone")
	if err != nil {
		return false, err
	}
	res, err := doneFn.Call(t, tk.val)
	if err != nil {
		return false, err
	}
	v, err := res.Unwrap(t)
	if err != nil {
		return false, err
	}
	if t.Backend().TypeNameOf(v.Addr()) != "Bool" {
		return false, errs.RuntimeErrorf("runtime error: istaskdone returned a non-boolean")
	}
	return t.Backend().UnboxBool(v.Addr()), nil
}

// Wait blocks the calling goroutine until the task completes, fetching
// its outcome rooted in fr. Polling uses unrooted handles so waiting does
// not consume frame slots. The exception branch of the returned result
// carries whatever the task's callable raised.
//
// Wait returns early with the context's error if ctx is done first; the
// task itself keeps running on the foreign side.
func (tk *Task) Wait(ctx context.Context, fr *memory.Frame, poll time.Duration) (value.CallResult, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()
	for {
		done, err := tk.Done(fr.Unrooted())
		if err != nil {
			return value.CallResult{}, err
		}
		if done {
			return tk.fetch(fr.Target())
		}
		select {
		case <-ctx.Done():
			return value.CallResult{}, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (tk *Task) fetch(t memory.Target) (value.CallResult, error) {
	base, err := module.Base(t)
	if err != nil {
		return value.CallResult{}, err
	}
	fetchFn, err := base.Function(t, "fetch")
	if err != nil {
		return value.CallResult{}, err
	}
	return fetchFn.Call(t, tk.val)
}
