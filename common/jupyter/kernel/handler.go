package kernel

import (
	"context"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
)

// Handler answers the requests routed to it by the Dispatcher.
// Handler methods run on the goroutine serving the originating channel; shell and control requests may overlap.
type Handler interface {
	// Describe returns the content of the kernel_info_reply.
	Describe() *messaging.KernelInfoReply

	// Execute runs the code of an execute_request. Output is broadcast through the given Publisher.
	// A returned error is turned into an error reply by the Dispatcher.
	Execute(ctx context.Context, req *messaging.ExecuteRequest, publisher Publisher) (*messaging.ExecuteReply, error)

	// IsComplete classifies the code of an is_complete_request.
	IsComplete(req *messaging.IsCompleteRequest) (*messaging.IsCompleteReply, error)

	// Shutdown releases the resources held by the handler. It is called at most once per shutdown_request.
	Shutdown(req *messaging.ShutdownRequest) (*messaging.ShutdownReply, error)

	// Interrupt cancels in-flight executions.
	Interrupt()

	// ExecutionCount returns the count of the last successful execution.
	// It is reported in the error reply of an execute_request that the handler failed to answer.
	ExecutionCount() int
}

// Publisher broadcasts content on the iopub channel, parented on the request being handled.
type Publisher interface {
	Publish(msgType messaging.JupyterMessageType, content interface{}) error
}
