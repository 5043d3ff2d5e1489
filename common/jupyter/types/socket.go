package types

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-zeromq/zmq4"
)

var (
	ErrSocketNotAvailable = errors.New("socket not available")
)

const (
	HBMessage MessageType = iota
	ControlMessage
	ShellMessage
	StdinMessage
	IOMessage
)

// MessageType identifies the channel a socket serves.
type MessageType int

func (t MessageType) String() string {
	return [...]string{"heartbeat", "control", "shell", "stdin", "iopub"}[t]
}

// MessageHandler handles the raw frames received on a socket.
type MessageHandler func(JupyterServerInfo, MessageType, *zmq4.Msg) error

type Socket struct {
	zmq4.Socket
	Port    int
	Type    MessageType
	Serving int32
	Name    string // Mostly used for debugging.

	// sendMu serializes writers. zmq4 sockets are not safe for concurrent sends.
	sendMu sync.Mutex
}

func NewSocket(socket zmq4.Socket, port int, typ MessageType, name string) *Socket {
	return &Socket{
		Socket: socket,
		Port:   port,
		Type:   typ,
		Name:   name,
	}
}

// SendFrames sends the given frames as a single multipart message.
func (s *Socket) SendFrames(frames [][]byte) error {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	return s.Socket.Send(zmq4.NewMsgFrom(frames...))
}

func (s *Socket) String() string {
	return fmt.Sprintf("%s(%d)", s.Type, s.Port)
}

type JupyterSocket struct {
	HB      *Socket
	Control *Socket
	Shell   *Socket
	Stdin   *Socket
	IO      *Socket // Pub for the kernel.
	All     [5]*Socket
}

// JupyterServerInfo defines the interface to provider infos of a JupyterServer.
type JupyterServerInfo interface {
	fmt.Stringer

	Socket(MessageType) *Socket
}
