package jupyter

import (
	"errors"
	"regexp"
)

var (
	ErrNotSupported = errors.New("not supported")
	ErrInvalidPort  = errors.New("invalid port")

	// IOTopicFormatter formats the topic frame of broadcast messages: kernel.<session>.<msg_type>
	IOTopicFormatter  = "kernel.%s.%s"
	IOTopicRecognizer = regexp.MustCompile(`^kernel\.([^.]+)\.([^.]+)$`)
)
