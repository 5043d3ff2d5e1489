package execution

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/google/uuid"

	"github.com/scusemua/notebook-kernel/common/jupyter/kernel"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/syntax"
	"github.com/scusemua/notebook-kernel/common/utils"
	"github.com/scusemua/notebook-kernel/common/utils/hashmap"
)

const (
	Implementation        = "notebook-kernel"
	ImplementationVersion = "0.1.0"

	InterruptedErrorName = "KeyboardInterrupt"
	ExitErrorName        = "ExitError"
	ExecutionErrorName   = "ExecutionError"
)

var _ kernel.Handler = (*Engine)(nil)

// Engine runs the code of execute requests with a Runner and answers the other requests of a kernel.
//
// Executions are serialized. The execution count is only advanced by executions that succeed and are not silent.
type Engine struct {
	log logger.Logger

	variant *Variant
	runner  Runner
	checker *syntax.CompletenessChecker

	// execMu serializes executions. executionCount is only written while holding it.
	execMu         sync.Mutex
	executionCount atomic.Int64

	// active holds the executions that have been started and have not yet returned, keyed by Execution.ID.
	active *hashmap.ConcurrentMap[*Execution]

	closed       atomic.Bool
	shutdownOnce sync.Once
}

func NewEngine(variant *Variant, runner Runner) *Engine {
	engine := &Engine{
		variant: variant,
		runner:  runner,
		checker: syntax.NewCompletenessChecker(variant.Name),
		active:  hashmap.NewConcurrentMap[*Execution](0),
	}
	config.InitLogger(&engine.log, engine)
	return engine
}

func (e *Engine) Variant() *Variant {
	return e.variant
}

// ExecutionCount returns the count of the last successful execution.
func (e *Engine) ExecutionCount() int {
	return int(e.executionCount.Load())
}

func (e *Engine) NumActiveExecutions() int {
	return e.active.Len()
}

func (e *Engine) Describe() *messaging.KernelInfoReply {
	return &messaging.KernelInfoReply{
		Status:                messaging.MessageStatusOK,
		ProtocolVersion:       messaging.ProtocolVersion,
		Implementation:        Implementation,
		ImplementationVersion: ImplementationVersion,
		LanguageInfo:          e.variant.LanguageInfo(),
		Banner:                fmt.Sprintf("%s kernel (%s %s)", e.variant.DisplayName, Implementation, ImplementationVersion),
		HelpLinks:             []messaging.HelpLink{},
	}
}

func (e *Engine) Execute(ctx context.Context, req *messaging.ExecuteRequest, publisher kernel.Publisher) (*messaging.ExecuteReply, error) {
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	e.execMu.Lock()
	defer e.execMu.Unlock()

	// Shutdown may have happened while this execution was waiting for the previous one.
	if e.closed.Load() {
		return nil, ErrEngineClosed
	}

	count := e.ExecutionCount()
	if !req.Silent {
		count++

		if err := publisher.Publish(messaging.IOExecuteInputMessage, &messaging.ExecuteInputContent{Code: req.Code, ExecutionCount: count}); err != nil {
			e.log.Error("Failed to publish execute_input for execution %d: %v", count, err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	execution := newExecution(uuid.NewString(), req.Code, count, cancel)
	e.active.Store(execution.ID, execution)
	defer e.active.Delete(execution.ID)
	execution.setState(Running)

	var stdout, stderr io.Writer = io.Discard, io.Discard
	if !req.Silent {
		stdout = &streamWriter{name: messaging.StreamStdout, publisher: publisher, log: e.log}
		stderr = &streamWriter{name: messaging.StreamStderr, publisher: publisher, log: e.log}
	}

	e.log.Debug("Running execution %s (count=%d, silent=%v): %s", execution.ID, count, req.Silent, utils.Abbreviate(req.Code, 40))

	err := e.runner.Run(runCtx, e.variant, req.Code, stdout, stderr)
	if err != nil {
		execution.setState(Erred)
		content := e.errorContent(runCtx, err)

		e.log.Warn(utils.OrangeStyle.Render("Execution %s failed: %s: %s"), execution.ID, content.ErrName, content.ErrValue)

		if !req.Silent {
			if pubErr := publisher.Publish(messaging.IOErrorMessage, content); pubErr != nil {
				e.log.Error("Failed to publish error of execution %s: %v", execution.ID, pubErr)
			}
		}

		return &messaging.ExecuteReply{
			Status:          messaging.MessageStatusError,
			ExecutionCount:  count,
			UserExpressions: map[string]interface{}{},
			Payload:         []map[string]interface{}{},
			ErrName:         content.ErrName,
			ErrValue:        content.ErrValue,
			Traceback:       content.Traceback,
		}, nil
	}

	execution.setState(Completed)
	if !req.Silent {
		e.executionCount.Store(int64(count))
	}

	e.log.Debug("Execution %s completed.", execution)

	return &messaging.ExecuteReply{
		Status:          messaging.MessageStatusOK,
		ExecutionCount:  count,
		UserExpressions: map[string]interface{}{},
		Payload:         []map[string]interface{}{},
	}, nil
}

func (e *Engine) IsComplete(req *messaging.IsCompleteRequest) (*messaging.IsCompleteReply, error) {
	return e.checker.Check(req.Code), nil
}

// Shutdown interrupts in-flight executions and refuses new ones. Only the first call releases anything.
func (e *Engine) Shutdown(req *messaging.ShutdownRequest) (*messaging.ShutdownReply, error) {
	e.shutdownOnce.Do(func() {
		e.closed.Store(true)
		e.Interrupt()
		e.log.Info(utils.LightBlueStyle.Render("Execution engine for %s has been shut down (restart=%v)."), e.variant.Name, req.Restart)
	})

	return &messaging.ShutdownReply{Status: messaging.MessageStatusOK, Restart: req.Restart}, nil
}

// Interrupt cancels every in-flight execution. It is safe to call at any time.
func (e *Engine) Interrupt() {
	e.active.Range(func(id string, execution *Execution) bool {
		if execution.interrupt() {
			e.log.Info("Interrupted execution %s.", id)
		}
		return true
	})
}

func (e *Engine) errorContent(ctx context.Context, err error) *messaging.MessageError {
	name := ExecutionErrorName

	var exitErr *ExitError
	switch {
	case errors.Is(err, ErrInterrupted) || ctx.Err() != nil:
		name = InterruptedErrorName
	case errors.As(err, &exitErr):
		name = ExitErrorName
	}

	return &messaging.MessageError{
		ErrName:   name,
		ErrValue:  err.Error(),
		Traceback: []string{fmt.Sprintf("%s: %s", name, err.Error())},
	}
}

// streamWriter publishes everything written to it as "stream" broadcasts.
type streamWriter struct {
	name      string
	publisher kernel.Publisher
	log       logger.Logger
}

func (w *streamWriter) Write(p []byte) (int, error) {
	if err := w.publisher.Publish(messaging.IOStreamMessage, &messaging.StreamContent{Name: w.name, Text: string(p)}); err != nil {
		w.log.Error("Failed to publish %s output: %v", w.name, err)
	}
	return len(p), nil
}
