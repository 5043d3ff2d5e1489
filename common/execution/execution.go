package execution

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Execution is a single code submission being run by the Engine.
type Execution struct {
	ID             string
	Code           string
	ExecutionCount int
	StartedAt      time.Time

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

func newExecution(id string, code string, executionCount int, cancel context.CancelFunc) *Execution {
	return &Execution{
		ID:             id,
		Code:           code,
		ExecutionCount: executionCount,
		StartedAt:      time.Now(),
		state:          Pending,
		cancel:         cancel,
	}
}

func (e *Execution) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

// setState moves the execution to the given state. An interrupted execution stays interrupted.
func (e *Execution) setState(state State) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Interrupted {
		return
	}
	e.state = state
}

// interrupt cancels the execution's context. It returns false if the execution had already finished.
func (e *Execution) interrupt() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == Completed || e.state == Erred {
		return false
	}

	e.state = Interrupted
	e.cancel()
	return true
}

func (e *Execution) String() string {
	return fmt.Sprintf("Execution[ID=%s, Count=%d, State=%v, Elapsed=%v]", e.ID, e.ExecutionCount, e.State(), time.Since(e.StartedAt))
}
