package server

import (
	"time"

	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

// MessagingMetricsProvider allows servers to record observations of message traffic without knowing
// the actual names of the fields within concrete structs that implement it.
type MessagingMetricsProvider interface {
	// ReceivedMessage records that a multipart message arrived on the given socket.
	ReceivedMessage(socketType types.MessageType)

	// RejectedMessage records that a message was dropped before dispatch, e.g. because its signature was invalid.
	RejectedMessage(socketType types.MessageType, reason string)

	// SentMessage records that a message of the given Jupyter type was sent on the given socket.
	SentMessage(socketType types.MessageType, jupyterMessageType string)

	// AddHandlerLatencyObservation records how long the handler took to answer a request, from busy to idle.
	AddHandlerLatencyObservation(latency time.Duration, socketType types.MessageType, jupyterMessageType string)
}
