package kernel

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/go-zeromq/zmq4"
	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/router"
	"github.com/scusemua/notebook-kernel/common/jupyter/server"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

const (
	HandlerErrorName = "HandlerError"
	HandlerPanicName = "HandlerPanic"

	RejectReasonMalformed = "malformed"
	RejectReasonSignature = "signature"
)

// Channels is the write side of the kernel's sockets.
type Channels interface {
	// Send sends the frames on the given channel only.
	Send(typ types.MessageType, frames [][]byte) error

	// Publish sends the frames on the iopub channel.
	Publish(frames [][]byte) error
}

// Dispatcher authenticates requests, brackets their handling with busy/idle status broadcasts,
// routes them to the Handler, and sends the reply on the channel the request arrived on.
//
// Dispatcher implements router.Provider. Shell and control requests are dispatched on the goroutines serving those
// channels, so requests from different channels may be handled concurrently.
type Dispatcher struct {
	ctx      context.Context
	codec    *messaging.Codec
	handler  Handler
	channels Channels
	metrics  server.MessagingMetricsProvider

	// session identifies broadcasts that have no parent request.
	session string

	startingOnce sync.Once
	shutdownOnce sync.Once
	done         chan struct{}

	log logger.Logger
}

// NewDispatcher creates a Dispatcher. metricsProvider may be nil.
func NewDispatcher(ctx context.Context, codec *messaging.Codec, handler Handler, channels Channels, metricsProvider server.MessagingMetricsProvider) *Dispatcher {
	dispatcher := &Dispatcher{
		ctx:      ctx,
		codec:    codec,
		handler:  handler,
		channels: channels,
		metrics:  metricsProvider,
		session:  uuid.NewString(),
		done:     make(chan struct{}),
	}
	config.InitLogger(&dispatcher.log, dispatcher)
	return dispatcher
}

// Done is closed once a successful shutdown_reply has been sent.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

// SetChannels replaces the write side of the sockets. It must be called before any request is dispatched.
func (d *Dispatcher) SetChannels(channels Channels) {
	d.channels = channels
}

// Session returns the session of broadcasts that have no parent request.
func (d *Dispatcher) Session() string {
	return d.session
}

// ShellHandler implements router.Provider.
func (d *Dispatcher) ShellHandler(_ router.Info, msg *zmq4.Msg) error {
	d.Dispatch(types.ShellMessage, msg.Frames)
	return nil
}

// ControlHandler implements router.Provider.
func (d *Dispatcher) ControlHandler(_ router.Info, msg *zmq4.Msg) error {
	d.Dispatch(types.ControlMessage, msg.Frames)
	return nil
}

// PublishStarting broadcasts the "starting" status. Only the first call has an effect.
func (d *Dispatcher) PublishStarting() error {
	var err error
	d.startingOnce.Do(func() {
		msg := messaging.CreateBroadcast(messaging.MessageHeader{Session: d.session}, messaging.IOStatusMessage,
			map[string]interface{}{"execution_state": messaging.MessageKernelStatusStarting})
		msg.ParentHeader = messaging.MessageHeader{}
		err = d.publish(msg)
	})
	return err
}

// Dispatch runs the full pipeline for the raw frames of one request and returns the last state it reached.
//
// Frames that cannot be decoded or authenticated are dropped without any status broadcast or reply.
func (d *Dispatcher) Dispatch(channel types.MessageType, frames [][]byte) RequestState {
	msg, err := d.codec.Decode(frames)
	if err != nil {
		d.reject(channel, frames, err)
		return Rejected
	}
	d.trace(msg, Authenticated)

	start := time.Now()
	if err = d.publishStatus(msg.Header, messaging.MessageKernelStatusBusy); err != nil {
		d.log.Error("Failed to publish busy status for %v \"%s\" request: %v", channel, msg.Type(), err)
	}
	d.trace(msg, BusyPublished)

	content, state := d.handle(msg)
	d.trace(msg, state)
	d.trace(msg, IdlePublished)

	if d.metrics != nil {
		d.metrics.AddHandlerLatencyObservation(time.Since(start), channel, msg.Type().String())
	}

	if state == RouteUnrecognized {
		return IdlePublished
	}

	reply, err := messaging.CreateReply(msg, content)
	if err != nil {
		d.log.Error("Failed to create reply for %v \"%s\" request \"%s\": %v", channel, msg.Type(), msg.JupyterMessageId(), err)
		return IdlePublished
	}

	replyFrames, err := d.codec.Encode(reply)
	if err != nil {
		d.log.Error("Failed to encode \"%s\" for request \"%s\": %v", reply.Type(), msg.JupyterMessageId(), err)
		return IdlePublished
	}

	if err = d.channels.Send(channel, replyFrames); err != nil {
		d.log.Error(utils.RedStyle.Render("Failed to send \"%s\" for request \"%s\" on %v channel: %v"),
			reply.Type(), msg.JupyterMessageId(), channel, err)
		return IdlePublished
	}

	if d.metrics != nil {
		d.metrics.SentMessage(channel, reply.Type().String())
	}
	d.trace(msg, Replied)

	if messaging.ParseRequestKind(msg.Type()) == messaging.KindShutdownRequest && state == Handled {
		d.shutdownOnce.Do(func() {
			d.log.Info(utils.LightBlueStyle.Render("Shutdown reply sent. Kernel is shutting down."))
			close(d.done)
		})
	}

	return Replied
}

// handle routes the request to the handler. The idle status is published on return, even if the handler panics.
func (d *Dispatcher) handle(msg *messaging.JupyterMessage) (content map[string]interface{}, state RequestState) {
	kind := messaging.ParseRequestKind(msg.Type())

	defer func() {
		if r := recover(); r != nil {
			d.log.Error(utils.RedStyle.Render("Handler panicked while handling \"%s\" request \"%s\": %v"), msg.Type(), msg.JupyterMessageId(), r)
			content = d.failureContent(kind, HandlerPanicName, fmt.Sprintf("%v", r), strings.Split(string(debug.Stack()), "\n"))
			state = HandlerFailed
		}

		if err := d.publishStatus(msg.Header, messaging.MessageKernelStatusIdle); err != nil {
			d.log.Error("Failed to publish idle status for \"%s\" request: %v", msg.Type(), err)
		}
	}()

	d.trace(msg, Routed)

	var (
		result interface{}
		err    error
	)
	switch kind {
	case messaging.KindKernelInfoRequest:
		result = d.handler.Describe()
	case messaging.KindExecuteRequest:
		var req messaging.ExecuteRequest
		if err = messaging.DecodeContent(msg.Content, &req); err == nil {
			result, err = d.handler.Execute(d.ctx, &req, &requestPublisher{dispatcher: d, parent: msg.Header})
		}
	case messaging.KindIsCompleteRequest:
		var req messaging.IsCompleteRequest
		if err = messaging.DecodeContent(msg.Content, &req); err == nil {
			result, err = d.handler.IsComplete(&req)
		}
	case messaging.KindShutdownRequest:
		var req messaging.ShutdownRequest
		if err = messaging.DecodeContent(msg.Content, &req); err == nil {
			result, err = d.handler.Shutdown(&req)
		}
	default:
		d.log.Warn(utils.OrangeStyle.Render("Received unrecognized message type \"%s\" (msg_id=%s). No reply will be sent."),
			msg.Type(), msg.JupyterMessageId())
		return nil, RouteUnrecognized
	}

	if err != nil {
		d.log.Error("Handler failed to handle \"%s\" request \"%s\": %v", msg.Type(), msg.JupyterMessageId(), err)
		return d.failureContent(kind, HandlerErrorName, err.Error(), strings.Split(fmt.Sprintf("%+v", err), "\n")), HandlerFailed
	}

	content, err = messaging.ToMap(result)
	if err != nil {
		d.log.Error("Failed to convert \"%s\" reply content: %v", msg.Type(), err)
		return d.failureContent(kind, HandlerErrorName, err.Error(), nil), HandlerFailed
	}

	return content, Handled
}

func (d *Dispatcher) reject(channel types.MessageType, frames [][]byte, err error) {
	reason := RejectReasonMalformed

	var mismatch *messaging.SignatureMismatchError
	if errors.As(err, &mismatch) {
		reason = RejectReasonSignature
		d.log.Error(utils.RedStyle.Render("Dropping %v message with invalid signature. Received: \"%s\". Expected: \"%s\"."),
			channel, mismatch.Received, mismatch.Expected)
	} else {
		d.log.Warn("Dropping malformed %v message (%d frames): %v", channel, len(frames), err)
	}

	if d.metrics != nil {
		d.metrics.RejectedMessage(channel, reason)
	}
}

func (d *Dispatcher) publishStatus(parent messaging.MessageHeader, status string) error {
	return d.publish(messaging.CreateBroadcast(parent, messaging.IOStatusMessage,
		map[string]interface{}{"execution_state": status}))
}

func (d *Dispatcher) publish(msg *messaging.JupyterMessage) error {
	frames, err := d.codec.Encode(msg)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to encode \"%s\" broadcast", msg.Type())
	}

	if err = d.channels.Publish(frames); err != nil {
		return err
	}

	if d.metrics != nil {
		d.metrics.SentMessage(types.IOMessage, msg.Type().String())
	}
	return nil
}

func (d *Dispatcher) trace(msg *messaging.JupyterMessage, state RequestState) {
	if d.log.GetLevel() == logger.LOG_LEVEL_ALL {
		d.log.Debug(utils.GrayStyle.Render("[%s] \"%s\" request \"%s\" -> %v"), msg.JupyterSession(), msg.Type(), msg.JupyterMessageId(), state)
	}
}

// failureContent is the content of the error reply sent when the handler could not answer a request.
// An execute_reply always carries an execution_count, so the handler's current count is added for execute requests.
func (d *Dispatcher) failureContent(kind messaging.RequestKind, ename string, evalue string, traceback []string) map[string]interface{} {
	if traceback == nil {
		traceback = []string{}
	}

	content := map[string]interface{}{
		"status":    messaging.MessageStatusError,
		"ename":     ename,
		"evalue":    evalue,
		"traceback": traceback,
	}

	if kind == messaging.KindExecuteRequest {
		content["execution_count"] = d.executionCount()
	}

	return content
}

func (d *Dispatcher) executionCount() (count int) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error("Handler panicked while reporting its execution count: %v", r)
			count = 0
		}
	}()

	return d.handler.ExecutionCount()
}

// requestPublisher broadcasts on behalf of a single request.
type requestPublisher struct {
	dispatcher *Dispatcher
	parent     messaging.MessageHeader
}

func (p *requestPublisher) Publish(msgType messaging.JupyterMessageType, content interface{}) error {
	contentMap, err := messaging.ToMap(content)
	if err != nil {
		return pkgerrors.Wrapf(err, "failed to convert \"%s\" content", msgType)
	}

	return p.dispatcher.publish(messaging.CreateBroadcast(p.parent, msgType, contentMap))
}
