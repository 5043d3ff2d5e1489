package messaging

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"hash"
)

const (
	JupyterFrameStart int = iota
	JupyterFrameSignature
	JupyterFrameHeader
	JupyterFrameParentHeader
	JupyterFrameMetadata
	JupyterFrameContent
	JupyterFrameBuffers
)

const (
	SignatureSchemeHmacSha256 = "hmac-sha256"
	SignatureSchemeHmacSha512 = "hmac-sha512"
	SignatureSchemeHmacSha1   = "hmac-sha1"
)

var (
	JupyterFrameIDSMSG = []byte("<IDS|MSG>")
	JupyterFrameEmpty  = []byte("{}")

	signatureSchemes = map[string]func() hash.Hash{
		SignatureSchemeHmacSha256: sha256.New,
		SignatureSchemeHmacSha512: sha512.New,
		SignatureSchemeHmacSha1:   sha1.New,
	}
)

// JupyterFrames provides access to the frames of a Jupyter message.
//
// Frames holds every frame as received from the socket, including the routing identities.
// Offset is the index of the "<IDS|MSG>" delimiter within Frames.
// 0: <IDS|MSG>, 1: Signature, 2: Header, 3: ParentHeader, 4: Metadata, 5: Content[, 6...: Buffers]
// (all relative to Offset).
type JupyterFrames struct {
	Frames [][]byte
	Offset int
}

// NewJupyterFramesFromBytes wraps the given frames and locates the delimiter.
// If there is no delimiter, Offset is set to len(frames).
func NewJupyterFramesFromBytes(frames [][]byte) *JupyterFrames {
	_, offset := SkipIdentitiesFrame(frames)
	return &JupyterFrames{Frames: frames, Offset: offset}
}

// NewJupyterFramesWithIdentities creates the minimal frame set for a new message.
func NewJupyterFramesWithIdentities(identities [][]byte, numBuffers int) *JupyterFrames {
	frames := make([][]byte, 0, len(identities)+JupyterFrameBuffers+numBuffers)
	frames = append(frames, identities...)
	frames = append(frames,
		JupyterFrameIDSMSG,
		[]byte{},
		JupyterFrameEmpty,
		JupyterFrameEmpty,
		JupyterFrameEmpty,
		JupyterFrameEmpty)

	return &JupyterFrames{Frames: frames, Offset: len(identities)}
}

// SkipIdentitiesFrame returns the frames starting at the delimiter and the delimiter's index.
func SkipIdentitiesFrame(frames [][]byte) ([][]byte, int) {
	i := 0
	for i < len(frames) && !bytes.Equal(frames[i], JupyterFrameIDSMSG) {
		i++
	}
	return frames[i:], i
}

// Identities returns the routing identity frames that precede the delimiter.
func (frames *JupyterFrames) Identities() [][]byte {
	return frames.Frames[:frames.Offset]
}

// LenWithoutIdentitiesFrame returns the number of frames starting at the delimiter.
func (frames *JupyterFrames) LenWithoutIdentitiesFrame() int {
	return len(frames.Frames) - frames.Offset
}

// Validate checks that the delimiter is present and that all four body frames follow the signature.
func (frames *JupyterFrames) Validate() error {
	if frames.Offset >= len(frames.Frames) {
		return ErrMissingDelimiter
	}

	if frames.LenWithoutIdentitiesFrame() <= JupyterFrameContent {
		return ErrMissingFrames
	}

	return nil
}

func (frames *JupyterFrames) frame(index int) []byte {
	return frames.Frames[frames.Offset+index]
}

func (frames *JupyterFrames) setFrame(index int, data []byte) {
	frames.Frames[frames.Offset+index] = data
}

func (frames *JupyterFrames) SignatureFrame() []byte {
	return frames.frame(JupyterFrameSignature)
}

// BuffersFrames returns the trailing binary frames, if any.
func (frames *JupyterFrames) BuffersFrames() [][]byte {
	if frames.LenWithoutIdentitiesFrame() > JupyterFrameBuffers {
		return frames.Frames[frames.Offset+JupyterFrameBuffers:]
	}
	return nil
}

func (frames *JupyterFrames) EncodeHeader(in any) (err error) {
	return frames.encode(JupyterFrameHeader, in)
}

func (frames *JupyterFrames) EncodeParentHeader(in any) (err error) {
	return frames.encode(JupyterFrameParentHeader, in)
}

func (frames *JupyterFrames) EncodeMetadata(in any) (err error) {
	return frames.encode(JupyterFrameMetadata, in)
}

func (frames *JupyterFrames) EncodeContent(in any) (err error) {
	return frames.encode(JupyterFrameContent, in)
}

func (frames *JupyterFrames) encode(index int, in any) error {
	data, err := json.Marshal(in)
	if err != nil {
		return err
	}

	frames.setFrame(index, data)
	return nil
}

func (frames *JupyterFrames) DecodeHeader(out any) error {
	return json.Unmarshal(frames.frame(JupyterFrameHeader), out)
}

func (frames *JupyterFrames) DecodeParentHeader(out any) error {
	return json.Unmarshal(frames.frame(JupyterFrameParentHeader), out)
}

func (frames *JupyterFrames) DecodeMetadata(out any) error {
	return json.Unmarshal(frames.frame(JupyterFrameMetadata), out)
}

func (frames *JupyterFrames) DecodeContent(out any) error {
	return json.Unmarshal(frames.frame(JupyterFrameContent), out)
}

// AppendBuffers adds trailing binary frames after the content frame.
func (frames *JupyterFrames) AppendBuffers(buffers ...[]byte) {
	frames.Frames = append(frames.Frames, buffers...)
}

// Sign computes the signature over the body frames and writes it, hex-encoded, into the signature frame.
// An empty key leaves the signature frame empty.
func (frames *JupyterFrames) Sign(signatureScheme string, key []byte) error {
	if err := frames.Validate(); err != nil {
		return err
	}

	if len(key) == 0 {
		frames.setFrame(JupyterFrameSignature, []byte{})
		return nil
	}

	signature, err := frames.CreateSignature(signatureScheme, key)
	if err != nil {
		return err
	}

	encoded := make([]byte, hex.EncodedLen(len(signature)))
	hex.Encode(encoded, signature)
	frames.setFrame(JupyterFrameSignature, encoded)
	return nil
}

// Verify recomputes the signature over the raw body frames and compares it to the signature frame.
// An empty key disables verification.
func (frames *JupyterFrames) Verify(signatureScheme string, key []byte) error {
	if err := frames.Validate(); err != nil {
		return err
	}

	if len(key) == 0 {
		return nil
	}

	expected, err := frames.CreateSignature(signatureScheme, key)
	if err != nil {
		return err
	}

	received := frames.SignatureFrame()
	signature := make([]byte, hex.DecodedLen(len(received)))
	if _, err = hex.Decode(signature, received); err != nil || !hmac.Equal(expected, signature) {
		return &SignatureMismatchError{
			Received: string(received),
			Expected: hex.EncodeToString(expected),
		}
	}

	return nil
}

// CreateSignature returns the raw HMAC of header, parent header, metadata, content and buffers, in that order.
func (frames *JupyterFrames) CreateSignature(signatureScheme string, key []byte) ([]byte, error) {
	hashFn, ok := signatureSchemes[signatureScheme]
	if !ok {
		return nil, ErrNotSupportedSignatureScheme
	}

	mac := hmac.New(hashFn, key)
	for _, part := range frames.Frames[frames.Offset+JupyterFrameHeader:] {
		mac.Write(part)
	}
	return mac.Sum(nil), nil
}
