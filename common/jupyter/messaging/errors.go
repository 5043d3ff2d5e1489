package messaging

import (
	"errors"
	"fmt"
)

var (
	ErrMalformedFrame              = errors.New("malformed jupyter message")
	ErrMissingDelimiter            = fmt.Errorf("%w: missing <IDS|MSG> delimiter", ErrMalformedFrame)
	ErrMissingFrames               = fmt.Errorf("%w: fewer than 5 frames after <IDS|MSG> delimiter", ErrMalformedFrame)
	ErrSignatureMismatch           = errors.New("invalid jupyter signature")
	ErrNotSupportedSignatureScheme = errors.New("not supported signature scheme")
)

// SignatureMismatchError is returned when the signature frame of an inbound message
// does not match the signature computed over its body frames.
type SignatureMismatchError struct {
	Received string
	Expected string
}

func (e *SignatureMismatchError) Error() string {
	return fmt.Sprintf("%v: received \"%s\", expected \"%s\"", ErrSignatureMismatch, e.Received, e.Expected)
}

func (e *SignatureMismatchError) Is(target error) bool {
	return target == ErrSignatureMismatch
}

// malformedFrameError names the body frame that could not be parsed.
func malformedFrameError(frame string, err error) error {
	return fmt.Errorf("%w: cannot decode %s frame: %v", ErrMalformedFrame, frame, err)
}
