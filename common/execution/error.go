package execution

import (
	"errors"
	"fmt"
)

var (
	ErrUnknownVariant = errors.New("unknown kernel variant")
	ErrEngineClosed   = errors.New("execution engine has been shut down")
	ErrInterrupted    = errors.New("execution was interrupted")
	ErrEmptyCommand   = errors.New("interpreter command is empty")
)

// ExitError is returned by a Runner when the interpreter exits with a non-zero status.
type ExitError struct {
	Interpreter string
	Code        int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with status %d", e.Interpreter, e.Code)
}
