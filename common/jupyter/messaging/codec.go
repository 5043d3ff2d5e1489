package messaging

import (
	"encoding/json"

	"github.com/pkg/errors"
)

// Codec converts between raw multipart frames and JupyterMessage values.
//
// The signing key never leaves the Codec. A Codec is immutable and may be shared between goroutines.
type Codec struct {
	signatureScheme string
	key             []byte
}

// NewCodec creates a Codec for the given signature scheme and key.
// A blank scheme selects hmac-sha256. An empty key disables signing and verification.
func NewCodec(signatureScheme string, key string) (*Codec, error) {
	if signatureScheme == "" {
		signatureScheme = SignatureSchemeHmacSha256
	}

	if _, ok := signatureSchemes[signatureScheme]; !ok {
		return nil, errors.Wrapf(ErrNotSupportedSignatureScheme, "\"%s\"", signatureScheme)
	}

	return &Codec{signatureScheme: signatureScheme, key: []byte(key)}, nil
}

func (c *Codec) SignatureScheme() string {
	return c.signatureScheme
}

// Signed returns true if messages are signed and verified.
func (c *Codec) Signed() bool {
	return len(c.key) > 0
}

// Decode authenticates and parses the given frames.
//
// The signature is checked over the raw body frames before any of them is parsed,
// so a forged message is rejected without touching the JSON decoder.
func (c *Codec) Decode(frames [][]byte) (*JupyterMessage, error) {
	jFrames := NewJupyterFramesFromBytes(frames)
	if err := jFrames.Validate(); err != nil {
		return nil, err
	}

	if err := jFrames.Verify(c.signatureScheme, c.key); err != nil {
		return nil, err
	}

	msg := &JupyterMessage{
		Identities: jFrames.Identities(),
		Signature:  string(jFrames.SignatureFrame()),
		Buffers:    jFrames.BuffersFrames(),
	}

	if err := jFrames.DecodeHeader(&msg.Header); err != nil {
		return nil, malformedFrameError("header", err)
	}

	if err := jFrames.DecodeParentHeader(&msg.ParentHeader); err != nil {
		return nil, malformedFrameError("parent_header", err)
	}

	if err := jFrames.DecodeMetadata(&msg.Metadata); err != nil {
		return nil, malformedFrameError("metadata", err)
	}

	if err := jFrames.DecodeContent(&msg.Content); err != nil {
		return nil, malformedFrameError("content", err)
	}

	if msg.Metadata == nil {
		msg.Metadata = make(map[string]interface{})
	}

	if msg.Content == nil {
		msg.Content = make(map[string]interface{})
	}

	return msg, nil
}

// Encode serializes and signs the given message.
// The result is identities, delimiter, signature, header, parent header, metadata, content, then buffers.
func (c *Codec) Encode(msg *JupyterMessage) ([][]byte, error) {
	jFrames := NewJupyterFramesWithIdentities(msg.Identities, len(msg.Buffers))

	if err := jFrames.EncodeHeader(msg.Header); err != nil {
		return nil, errors.Wrap(err, "failed to encode header")
	}

	if err := jFrames.EncodeParentHeader(msg.ParentHeader); err != nil {
		return nil, errors.Wrap(err, "failed to encode parent header")
	}

	if err := jFrames.EncodeMetadata(nonNil(msg.Metadata)); err != nil {
		return nil, errors.Wrap(err, "failed to encode metadata")
	}

	if err := jFrames.EncodeContent(nonNil(msg.Content)); err != nil {
		return nil, errors.Wrap(err, "failed to encode content")
	}

	jFrames.AppendBuffers(msg.Buffers...)

	if err := jFrames.Sign(c.signatureScheme, c.key); err != nil {
		return nil, errors.Wrap(err, "failed to sign message")
	}

	return jFrames.Frames, nil
}

func nonNil(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return map[string]interface{}{}
	}
	return m
}

// ToMap converts a typed content struct to the generic map carried by JupyterMessage.
func ToMap(content any) (map[string]interface{}, error) {
	if content == nil {
		return map[string]interface{}{}, nil
	}

	data, err := json.Marshal(content)
	if err != nil {
		return nil, err
	}

	var m map[string]interface{}
	if err = json.Unmarshal(data, &m); err != nil {
		return nil, err
	}

	return nonNil(m), nil
}
