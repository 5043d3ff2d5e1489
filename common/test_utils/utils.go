package test_utils

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	. "github.com/onsi/gomega"

	"github.com/scusemua/notebook-kernel/common/jupyter/messaging"
	"github.com/scusemua/notebook-kernel/common/jupyter/types"
)

const (
	SignatureScheme string = "hmac-sha256"
	KernelKey       string = "149a41b5-0df54cf013c3035a3084a319"
)

// CreateRequestHeader creates the header of a client request of the given type.
func CreateRequestHeader(messageType messaging.JupyterMessageType, session string) messaging.MessageHeader {
	return messaging.MessageHeader{
		MsgID:    uuid.NewString(),
		Username: "jovyan",
		Session:  session,
		Date:     "2024-04-03T22:55:52.605Z",
		MsgType:  messageType,
		Version:  "5.3",
	}
}

// CreateJupyterFrames creates the signed wire frames of a request, prefixed by the given routing identities.
func CreateJupyterFrames(header messaging.MessageHeader, kernelKey string, identities [][]byte, content map[string]interface{}) [][]byte {
	contentEncoded, err := json.Marshal(content)
	Expect(err).To(BeNil())

	unsignedFrames := [][]byte{
		[]byte("<IDS|MSG>"), /* Frame start */
		[]byte(""),          /* Signature */
		[]byte(""),          /* Header */
		[]byte("{}"),        /* Parent header */
		[]byte("{}"),        /* Metadata */
		contentEncoded,      /* Content */
	}
	frames := append(append([][]byte{}, identities...), unsignedFrames...)

	jFrames := messaging.NewJupyterFramesFromBytes(frames)
	err = jFrames.EncodeHeader(header)
	Expect(err).To(BeNil())

	err = jFrames.Sign(SignatureScheme, []byte(kernelKey))
	Expect(err).To(BeNil())

	return jFrames.Frames
}

// CreateJupyterMessageFrames is a shortcut for a request with a fresh header and a single identity.
func CreateJupyterMessageFrames(messageType messaging.JupyterMessageType, session string, kernelKey string, content map[string]interface{}) (messaging.MessageHeader, [][]byte) {
	header := CreateRequestHeader(messageType, session)
	return header, CreateJupyterFrames(header, kernelKey, [][]byte{[]byte("client-" + session)}, content)
}

// SentFrames is a message captured by RecordingChannels.
type SentFrames struct {
	Channel types.MessageType
	Frames  [][]byte
}

// RecordingChannels captures everything that is sent or published, in order.
type RecordingChannels struct {
	mu   sync.Mutex
	sent []SentFrames

	// Optional. Returned by Send and Publish.
	Err error
}

func (c *RecordingChannels) Send(typ types.MessageType, frames [][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sent = append(c.sent, SentFrames{Channel: typ, Frames: frames})
	return c.Err
}

func (c *RecordingChannels) Publish(frames [][]byte) error {
	return c.Send(types.IOMessage, frames)
}

// Sent returns a snapshot of all captured messages.
func (c *RecordingChannels) Sent() []SentFrames {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]SentFrames(nil), c.sent...)
}

// Decoded decodes every captured message with the given codec.
func (c *RecordingChannels) Decoded(codec *messaging.Codec) []*messaging.JupyterMessage {
	sent := c.Sent()
	msgs := make([]*messaging.JupyterMessage, 0, len(sent))
	for _, s := range sent {
		msg, err := codec.Decode(s.Frames)
		Expect(err).To(BeNil())
		msgs = append(msgs, msg)
	}
	return msgs
}
