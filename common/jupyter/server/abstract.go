package server

import (
	"context"
	"errors"
	"io"
	"net"
	"sync/atomic"

	"github.com/Scusemua/go-utils/logger"
	"github.com/go-zeromq/zmq4"
	"github.com/petermattis/goid"

	"github.com/scusemua/notebook-kernel/common/jupyter"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
	"github.com/scusemua/notebook-kernel/common/utils"
)

// AbstractServer implements the basic socket serving useful for a Jupyter server. Embed this struct in your server implementation.
type AbstractServer struct {
	Meta *jupyter.ConnectionInfo

	// ctx of this server and a func to cancel it.
	Ctx       context.Context
	CancelCtx func()

	// ZMQ sockets
	Sockets *types.JupyterSocket

	// logger
	Log logger.Logger

	// Optional. Records socket level traffic.
	MetricsProvider MessagingMetricsProvider

	// Unique name of the server, mostly for debugging.
	Name string
}

func New(ctx context.Context, info *jupyter.ConnectionInfo, init func(server *AbstractServer)) *AbstractServer {
	var cancelCtx func()
	ctx, cancelCtx = context.WithCancel(ctx)

	server := &AbstractServer{
		Meta:      info,
		Ctx:       ctx,
		CancelCtx: cancelCtx,
		Sockets:   &types.JupyterSocket{},
	}
	init(server)
	server.Sockets.All = [5]*types.Socket{server.Sockets.HB, server.Sockets.Control, server.Sockets.Shell, server.Sockets.Stdin, server.Sockets.IO}
	for i, socket := range server.Sockets.All {
		if socket != nil {
			socket.Type = types.MessageType(i)
		}
	}

	return server
}

// Socket implements types.JupyterServerInfo.
func (s *AbstractServer) Socket(typ types.MessageType) *types.Socket {
	return s.Sockets.All[typ]
}

// String implements types.JupyterServerInfo.
func (s *AbstractServer) String() string {
	if s.Name != "" {
		return s.Name
	}
	return "AbstractServer"
}

// Listen binds the socket to its endpoint. If the port of the socket is 0, the ephemeral
// port picked by the OS is written back to the socket.
func (s *AbstractServer) Listen(socket *types.Socket) error {
	endpoint := s.Meta.Endpoint(socket.Port)

	if err := socket.Listen(endpoint); err != nil {
		return &jupyter.BindError{Channel: socket.Type.String(), Endpoint: endpoint, Err: err}
	}

	// Update the port number if it is 0.
	if addr, ok := socket.Addr().(*net.TCPAddr); ok && socket.Port == 0 {
		socket.Port = addr.Port
	}

	s.Log.Debug("%s socket listening on %s (port %d).", socket.Type.String(), endpoint, socket.Port)
	return nil
}

// Serve receives messages from the socket and passes them to the handler, one at a time, in arrival order.
// Serve returns when the socket is closed or the server's context is cancelled.
//
// Request/reply sockets (heartbeat) are served in lock-step: the next message is not
// received until the handler for the current one has returned.
func (s *AbstractServer) Serve(server types.JupyterServerInfo, socket *types.Socket, handler types.MessageHandler) {
	goroutineId := goid.Get()

	if !atomic.CompareAndSwapInt32(&socket.Serving, 0, 1) {
		// Already serving.
		return
	}
	defer atomic.StoreInt32(&socket.Serving, 0)

	chMsg := make(chan interface{})
	var contd chan bool
	if socket.Socket.Type() == zmq4.Rep {
		contd = make(chan bool)
	}
	go s.poll(socket, chMsg, contd)
	s.Log.Debug("[gid=%d] Start serving %v messages.", goroutineId, socket.Type.String())

	stop := func() {
		if contd != nil {
			select {
			case contd <- false:
			default:
			}
		}
	}

	for {
		select {
		case <-s.Ctx.Done():
			stop()
			return
		case msg := <-chMsg:
			if msg == nil {
				return
			}

			var err error
			switch v := msg.(type) {
			case error:
				err = v
			case *zmq4.Msg:
				if s.MetricsProvider != nil {
					s.MetricsProvider.ReceivedMessage(socket.Type)
				}
				err = handler(server, socket.Type, v)
			}

			// Stop serving on error.
			if err == io.EOF || errors.Is(err, context.Canceled) {
				s.Log.Debug("[gid=%d] Done serving %s messages: %v.", goroutineId, socket.Type.String(), err)
				stop()
				return
			} else if err != nil {
				if s.Ctx.Err() != nil {
					return
				}
				s.Log.Error(utils.RedStyle.Render("[gid=%d] Error on handle %s message: %v."), goroutineId, socket.Type.String(), err)
				if _, isRecvErr := msg.(error); isRecvErr {
					// poll quits after a receive error.
					return
				}
			}

			if contd != nil {
				select {
				case contd <- true:
				case <-s.Ctx.Done():
					return
				}
			}
		}
	}
}

// Close cancels the serving goroutines and closes every socket.
func (s *AbstractServer) Close() error {
	s.CancelCtx()

	var firstErr error
	for _, socket := range s.Sockets.All {
		if socket == nil {
			continue
		}

		if err := socket.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	return firstErr
}

func (s *AbstractServer) poll(socket *types.Socket, chMsg chan<- interface{}, contd <-chan bool) {
	goroutineId := goid.Get()
	defer close(chMsg)

	var msg interface{}
	for {
		got, err := socket.Recv()

		if err == nil {
			msg = &got
		} else {
			msg = err
		}
		select {
		case chMsg <- msg:
		// Quit on server closed.
		case <-s.Ctx.Done():
			return
		}
		// Quit on error.
		if err != nil {
			s.Log.Debug("[gid=%d] Polling of %v socket is stopping: %v", goroutineId, socket.Type, err)
			return
		}

		// Wait for continue signal or quit.
		if contd != nil {
			select {
			case proceed := <-contd:
				if !proceed {
					return
				}
			case <-s.Ctx.Done():
				return
			}
		}
	}
}
