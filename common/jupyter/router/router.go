package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	"github.com/go-zeromq/zmq4"

	"github.com/scusemua/notebook-kernel/common/jupyter"
	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/server"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

var (
	ErrNotBound = errors.New("router sockets are not bound")
)

// MessageHandler defines the interface of messages that a Router can intercept and handle.
type MessageHandler func(Info, *zmq4.Msg) error

type Info interface {
	types.JupyterServerInfo
}

// Provider defines the interface to provide handlers for the request channels of a Router.
// Heartbeat and stdin traffic is handled by the Router itself.
type Provider interface {
	ControlHandler(Info, *zmq4.Msg) error

	ShellHandler(Info, *zmq4.Msg) error
}

// Router owns the five sockets of a kernel.
//
// Shell and control are ROUTER sockets, each served by its own goroutine.
// Heartbeat is a REP socket that echoes every payload. Stdin is a ROUTER socket whose inbound traffic is dropped.
// IOPub is a write-only PUB socket shared by all senders.
type Router struct {
	server *server.AbstractServer

	name string // Identifies the router server.

	log logger.Logger

	// handlers, indexed by channel. Every inbound channel has exactly one.
	handlers [5]MessageHandler

	bound bool
}

func New(ctx context.Context, opts *jupyter.ConnectionInfo, provider Provider, metricsProvider server.MessagingMetricsProvider) *Router {
	name := opts.KernelName
	if name == "" {
		name = "kernel"
	}

	router := &Router{
		name: name,
		server: server.New(ctx, opts, func(s *server.AbstractServer) {
			s.Sockets.HB = types.NewSocket(zmq4.NewRep(s.Ctx), opts.HBPort, types.HBMessage, fmt.Sprintf("Router-Rep-HB[%s]", name))
			s.Sockets.Control = types.NewSocket(zmq4.NewRouter(s.Ctx), opts.ControlPort, types.ControlMessage, fmt.Sprintf("Router-Router-Ctrl[%s]", name))
			s.Sockets.Shell = types.NewSocket(zmq4.NewRouter(s.Ctx), opts.ShellPort, types.ShellMessage, fmt.Sprintf("Router-Router-Shell[%s]", name))
			s.Sockets.Stdin = types.NewSocket(zmq4.NewRouter(s.Ctx), opts.StdinPort, types.StdinMessage, fmt.Sprintf("Router-Router-Stdin[%s]", name))
			s.Sockets.IO = types.NewSocket(zmq4.NewPub(s.Ctx), opts.IOPubPort, types.IOMessage, fmt.Sprintf("Router-Pub-IO[%s]", name))
			s.MetricsProvider = metricsProvider
			s.Name = fmt.Sprintf("Router[%s] ", name)
			config.InitLogger(&s.Log, s.Name)
		}),
	}
	router.handlers[types.HBMessage] = router.echoHeartbeat
	router.handlers[types.StdinMessage] = router.dropStdin
	if provider != nil {
		router.handlers[types.ControlMessage] = provider.ControlHandler
		router.handlers[types.ShellMessage] = provider.ShellHandler
	}

	config.InitLogger(&router.log, router)
	return router
}

// Socket implements types.JupyterServerInfo.
func (g *Router) Socket(typ types.MessageType) *types.Socket {
	return g.server.Socket(typ)
}

// String returns the information for logging.
func (g *Router) String() string {
	return fmt.Sprintf("Router[%s] ", g.name)
}

// Bind listens on every socket. The first failure is returned as a *jupyter.BindError naming the channel;
// sockets bound before the failure stay bound until Close.
func (g *Router) Bind() error {
	for _, socket := range g.server.Sockets.All {
		g.log.Debug("Listening on %v socket now.", socket.Type.String())

		if err := g.server.Listen(socket); err != nil {
			g.log.Error(utils.RedStyle.Render("Error while trying to listen on %v socket %s (port=%d): %v"), socket.Type, socket.Name, socket.Port, err)
			return err
		}
	}

	g.bound = true
	g.log.Info("All sockets bound: shell=%d, iopub=%d, stdin=%d, control=%d, hb=%d",
		g.Socket(types.ShellMessage).Port, g.Socket(types.IOMessage).Port, g.Socket(types.StdinMessage).Port,
		g.Socket(types.ControlMessage).Port, g.Socket(types.HBMessage).Port)
	return nil
}

// Serve starts one serving goroutine per inbound socket and returns immediately.
func (g *Router) Serve() error {
	if !g.bound {
		return ErrNotBound
	}

	for _, socket := range g.server.Sockets.All {
		if socket.Type == types.IOMessage {
			// PUB sockets cannot receive.
			continue
		}

		g.log.Debug("Serving %v socket now.", socket.Type.String())
		go g.server.Serve(g, socket, g.handleMsg)
	}

	return nil
}

// Send sends the given frames on the given channel only.
func (g *Router) Send(typ types.MessageType, frames [][]byte) error {
	socket := g.Socket(typ)
	if socket == nil {
		return types.ErrSocketNotAvailable
	}

	return socket.SendFrames(frames)
}

// Publish sends the given frames on the iopub channel. Concurrent publishers are serialized.
func (g *Router) Publish(frames [][]byte) error {
	return g.Send(types.IOMessage, frames)
}

// Close stops serving and closes every socket.
func (g *Router) Close() error {
	return g.server.Close()
}

func (g *Router) handleMsg(_ types.JupyterServerInfo, typ types.MessageType, msg *zmq4.Msg) error {
	handler := g.handlers[typ]
	if handler != nil {
		return handler(g, msg)
	}

	return nil
}

// echoHeartbeat sends every heartbeat payload back unmodified.
func (g *Router) echoHeartbeat(info Info, msg *zmq4.Msg) error {
	return info.Socket(types.HBMessage).SendFrames(msg.Frames)
}

func (g *Router) dropStdin(_ Info, msg *zmq4.Msg) error {
	_, offset := messaging.SkipIdentitiesFrame(msg.Frames)
	g.log.Debug("Dropping %d-frame stdin message (%d identities): %s", len(msg.Frames), offset,
		messaging.FramesToString(msg.Frames[offset:]))
	return nil
}
