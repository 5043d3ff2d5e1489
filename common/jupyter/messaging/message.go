package messaging

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scusemua/notebook-kernel/common/jupyter"
)

const (
	ProtocolVersion = "5.3"

	MessageHeaderDefaultUsername = "kernel"

	IOStatusMessage       = "status"
	IOStreamMessage       = "stream"
	IOExecuteInputMessage = "execute_input"
	IOErrorMessage        = "error"

	KernelInfoRequestType = "kernel_info_request"
	KernelInfoReplyType   = "kernel_info_reply"
	ExecuteRequestType    = "execute_request"
	ExecuteReplyType      = "execute_reply"
	IsCompleteRequestType = "is_complete_request"
	IsCompleteReplyType   = "is_complete_reply"
	ShutdownRequestType   = "shutdown_request"
	ShutdownReplyType     = "shutdown_reply"

	MessageKernelStatusIdle     = "idle"
	MessageKernelStatusBusy     = "busy"
	MessageKernelStatusStarting = "starting"

	MessageStatusOK    = "ok"
	MessageStatusError = "error"
)

type JupyterMessageType string

func (t JupyterMessageType) String() string {
	return string(t)
}

// GetBaseMessageType returns the base portion of the Jupyter message type.
// The "base part" is best defined through an example:
//
// If the message type is "execute_request", then this returns "execute_" and true.
//
// If the message type is not of the form "{action}_request" or "{action}_reply", then this
// returns the empty string and false.
func (t JupyterMessageType) GetBaseMessageType() (string, bool) {
	if strings.HasSuffix(t.String(), "request") {
		return t.String()[0 : len(t.String())-7], true
	} else if strings.HasSuffix(t.String(), "reply") {
		return t.String()[0 : len(t.String())-5], true
	}

	return "", false
}

// ReplyType returns the message type of the reply to a message of type t.
func (t JupyterMessageType) ReplyType() (JupyterMessageType, bool) {
	base, ok := t.GetBaseMessageType()
	if !ok {
		return "", false
	}

	return JupyterMessageType(base + "reply"), true
}

// FramesToString returns a string of the given frames.
func FramesToString(frames [][]byte) string {
	if len(frames) == 0 {
		return "[]"
	}

	var sb strings.Builder
	sb.WriteString("[")
	for i, frame := range frames {
		sb.WriteString("\"" + string(frame) + "\"")

		if i+1 < len(frames) {
			sb.WriteString(", ")
		}
	}
	sb.WriteString("]")

	return sb.String()
}

// MessageHeader is a Jupyter message header.
// http://jupyter-client.readthedocs.io/en/latest/messaging.html#general-message-format
type MessageHeader struct {
	MsgID    string             `json:"msg_id"`
	Username string             `json:"username"`
	Session  string             `json:"session"`
	Date     string             `json:"date"`
	MsgType  JupyterMessageType `json:"msg_type"`
	Version  string             `json:"version"`

	// Extra holds the keys of a received header that have no field above, such as "subshell_id".
	// They are encoded back verbatim, so a parent header is identical to the header it was received as.
	Extra map[string]json.RawMessage `json:"-"`
}

var headerKeys = map[string]struct{}{
	"msg_id":   {},
	"username": {},
	"session":  {},
	"date":     {},
	"msg_type": {},
	"version":  {},
}

// IsEmpty returns true if no field of the header is set.
func (header MessageHeader) IsEmpty() bool {
	return header.MsgID == "" && header.Username == "" && header.Session == "" && header.Date == "" &&
		header.MsgType == "" && header.Version == "" && len(header.Extra) == 0
}

// MarshalJSON encodes an empty header as "{}", which is what clients expect for
// the parent header of messages that have no parent.
func (header MessageHeader) MarshalJSON() ([]byte, error) {
	if header.IsEmpty() {
		return JupyterFrameEmpty, nil
	}

	type plain MessageHeader
	data, err := json.Marshal(plain(header))
	if err != nil || len(header.Extra) == 0 {
		return data, err
	}

	fields := make(map[string]json.RawMessage, len(headerKeys)+len(header.Extra))
	if err = json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	for key, value := range header.Extra {
		if _, known := headerKeys[key]; !known {
			fields[key] = value
		}
	}

	return json.Marshal(fields)
}

func (header *MessageHeader) UnmarshalJSON(data []byte) error {
	type plain MessageHeader
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}
	for key, value := range fields {
		if _, known := headerKeys[key]; known {
			continue
		}
		if decoded.Extra == nil {
			decoded.Extra = make(map[string]json.RawMessage)
		}
		decoded.Extra[key] = value
	}

	*header = MessageHeader(decoded)
	return nil
}

// deriveHeader creates the header of a message sent in response to (or on behalf of) the message with the given header.
func deriveHeader(parent MessageHeader, msgType JupyterMessageType) MessageHeader {
	username := parent.Username
	if username == "" {
		username = MessageHeaderDefaultUsername
	}

	version := parent.Version
	if version == "" {
		version = ProtocolVersion
	}

	return MessageHeader{
		MsgID:    uuid.NewString(),
		Username: username,
		Session:  parent.Session,
		Date:     time.Now().UTC().Format(time.RFC3339Nano),
		MsgType:  msgType,
		Version:  version,
	}
}

// JupyterMessage is a fully decoded and authenticated Jupyter message.
//
// Messages are built by Codec.Decode, CreateReply, or CreateBroadcast and are not modified once encoded.
type JupyterMessage struct {
	// Identities are the routing frames that precede the delimiter.
	// For broadcast messages, this is the single topic frame.
	Identities [][]byte

	// Signature is the lowercase hex signature as received. It is not consulted by Encode.
	Signature string

	Header       MessageHeader
	ParentHeader MessageHeader
	Metadata     map[string]interface{}
	Content      map[string]interface{}
	Buffers      [][]byte
}

// CreateReply creates the reply to the given request.
//
// The identities of the request are copied verbatim so that the reply is routed back to the sender,
// the parent header is the header of the request, and the message type is derived from that of the request
// ("execute_request" -> "execute_reply").
func CreateReply(request *JupyterMessage, content map[string]interface{}) (*JupyterMessage, error) {
	replyType, ok := request.Header.MsgType.ReplyType()
	if !ok {
		return nil, fmt.Errorf("cannot derive reply type from message type \"%s\"", request.Header.MsgType)
	}

	identities := make([][]byte, len(request.Identities))
	for i, identity := range request.Identities {
		identities[i] = append([]byte(nil), identity...)
	}

	return &JupyterMessage{
		Identities:   identities,
		Header:       deriveHeader(request.Header, replyType),
		ParentHeader: request.Header,
		Metadata:     make(map[string]interface{}),
		Content:      content,
	}, nil
}

// CreateBroadcast creates a message of the given type for the iopub channel, parented on the given header.
// The topic frame is "kernel.<session>.<msg_type>".
func CreateBroadcast(parent MessageHeader, msgType JupyterMessageType, content map[string]interface{}) *JupyterMessage {
	return &JupyterMessage{
		Identities:   [][]byte{[]byte(fmt.Sprintf(jupyter.IOTopicFormatter, parent.Session, msgType))},
		Header:       deriveHeader(parent, msgType),
		ParentHeader: parent,
		Metadata:     make(map[string]interface{}),
		Content:      content,
	}
}

// Type returns the message type from the header.
func (m *JupyterMessage) Type() JupyterMessageType {
	return m.Header.MsgType
}

func (m *JupyterMessage) JupyterMessageId() string {
	return m.Header.MsgID
}

func (m *JupyterMessage) JupyterSession() string {
	return m.Header.Session
}

func (m *JupyterMessage) JupyterParentMessageId() string {
	return m.ParentHeader.MsgID
}

func (m *JupyterMessage) String() string {
	return fmt.Sprintf("JupyterMessage[msg_id=%s,type=%s,session=%s,parent=%s,identities=%d,buffers=%d]",
		m.Header.MsgID, m.Header.MsgType, m.Header.Session, m.ParentHeader.MsgID, len(m.Identities), len(m.Buffers))
}
