// Package bgtask runs long operations in the background with a strict
// one-in-flight guarantee per resource key.
//
// The control loop stays responsive by never blocking on an operation: it
// calls Start to launch one and Poll each tick to observe progress. A second
// Start against the same key while one is running is rejected with
// errors.ErrOperationInProgress; operations on different keys never contend.
package bgtask

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	towererrors "github.com/Cassin01/multi-agent-control-tower-sub001/internal/errors"
	"github.com/Cassin01/multi-agent-control-tower-sub001/internal/logging"
)

// Func is a background operation. It receives a context that is only used
// for deadline propagation into child commands; the coordinator never
// cancels a running operation.
type Func func(ctx context.Context) Result

// Result is the terminal outcome of an operation.
type Result struct {
	// Message is a human-readable summary shown in the UI.
	Message string
	// Ready reports whether the launched agent reached readiness. Only
	// meaningful for launch operations; a false value with a nil Err means
	// the readiness window expired, which is an observation, not a failure.
	Ready bool
	// Err is non-nil when the operation failed.
	Err error
}

// Status is the observed state of a resource's slot.
type Status int

const (
	// StatusIdle means no operation is running and no result is pending.
	StatusIdle Status = iota
	// StatusRunning means an operation is in flight.
	StatusRunning
	// StatusDone means an operation finished and its result is being
	// delivered by this poll.
	StatusDone
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusRunning:
		return "running"
	case StatusDone:
		return "done"
	default:
		return "unknown"
	}
}

// Poll is one observation of a resource's slot.
type Poll struct {
	Status Status
	// Name is the operation name, set while running and on the delivering poll.
	Name string
	// Started is when the operation began, zero when idle.
	Started time.Time
	// Result is set only when Status is StatusDone.
	Result Result
}

// slot tracks one resource's in-flight or completed operation.
type slot struct {
	name    string
	started time.Time
	done    bool
	result  Result
}

// Coordinator owns the background slots. The zero value is not usable; use
// New.
type Coordinator struct {
	mu     sync.Mutex
	slots  map[string]*slot
	logger *logging.Logger
	wg     sync.WaitGroup

	// base context handed to operations; never cancelled by Abandon.
	base context.Context
}

// New returns an empty Coordinator.
func New(logger *logging.Logger) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		slots:  make(map[string]*slot),
		logger: logger,
		base:   context.Background(),
	}
}

// Start launches fn in the background for the given resource key.
// Returns errors.ErrOperationInProgress if the key already has an operation
// in flight or an undelivered result; the running operation is unaffected.
func (c *Coordinator) Start(key, name string, fn Func) error {
	c.mu.Lock()
	if existing, ok := c.slots[key]; ok {
		c.mu.Unlock()
		return fmt.Errorf("%w: %s is busy with %s", towererrors.ErrOperationInProgress, key, existing.name)
	}
	s := &slot{name: name, started: time.Now()}
	c.slots[key] = s
	c.mu.Unlock()

	c.logger.Debug("operation started", "key", key, "operation", name)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		result := c.invoke(key, name, fn)

		c.mu.Lock()
		// The slot may have been dropped by Abandon; delivering into a
		// removed slot would resurrect it.
		if current, ok := c.slots[key]; ok && current == s {
			s.done = true
			s.result = result
		}
		c.mu.Unlock()
	}()

	return nil
}

// invoke runs the operation, converting a panic into a failed Result so one
// bad operation cannot take down the tower.
func (c *Coordinator) invoke(key, name string, fn Func) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("operation panicked",
				"key", key,
				"operation", name,
				"panic", fmt.Sprint(r),
				"stack", string(debug.Stack()),
			)
			result = Result{Err: fmt.Errorf("operation %s panicked: %v", name, r)}
		}
	}()
	return fn(c.base)
}

// PollOne observes the slot for one resource key. A completed operation's
// result is delivered exactly once: the delivering poll reports StatusDone
// and frees the slot, so the next poll reports StatusIdle and the next Start
// succeeds.
func (c *Coordinator) PollOne(key string) Poll {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.slots[key]
	if !ok {
		return Poll{Status: StatusIdle}
	}
	if !s.done {
		return Poll{Status: StatusRunning, Name: s.name, Started: s.started}
	}

	delete(c.slots, key)
	c.logger.Debug("operation result delivered", "key", key, "operation", s.name)
	return Poll{Status: StatusDone, Name: s.name, Started: s.started, Result: s.result}
}

// Busy reports whether the key currently has an operation in flight or an
// undelivered result, without consuming anything.
func (c *Coordinator) Busy(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.slots[key]
	return ok
}

// Abandon drops every slot without cancelling the underlying operations;
// their goroutines run to completion and their results are discarded. Used
// when the tower exits but the supervised agents should keep running.
func (c *Coordinator) Abandon() {
	c.mu.Lock()
	n := len(c.slots)
	c.slots = make(map[string]*slot)
	c.mu.Unlock()

	if n > 0 {
		c.logger.Info("abandoned in-flight operations", "count", n)
	}
}

// Wait blocks until every launched operation goroutine has returned. Only
// used by tests and orderly shutdown paths that want a quiet exit.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}
