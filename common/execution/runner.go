package execution

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/Scusemua/go-utils/config"
	"github.com/Scusemua/go-utils/logger"
	pkgerrors "github.com/pkg/errors"
)

// Runner runs a single cell of code. Output is written to stdout and stderr as it is produced.
//
// Run returns ErrInterrupted (possibly wrapped) if ctx is cancelled before the code finishes,
// and an *ExitError if the code ran but failed.
type Runner interface {
	Run(ctx context.Context, variant *Variant, code string, stdout io.Writer, stderr io.Writer) error
}

// ProcessRunner runs every cell in a fresh interpreter process.
// The cell is written to a temporary file carrying the variant's file extension.
type ProcessRunner struct {
	// Interpreter overrides the variant's interpreter when non-empty.
	Interpreter string

	// Dir is the working directory of the interpreter and holds the temporary files.
	// The process's working directory and the default temporary directory are used when empty.
	Dir string

	// WaitDelay bounds how long output is drained after the interpreter is killed.
	WaitDelay time.Duration

	log logger.Logger
}

func NewProcessRunner(interpreter string, dir string) *ProcessRunner {
	runner := &ProcessRunner{
		Interpreter: interpreter,
		Dir:         dir,
		WaitDelay:   time.Second,
	}
	config.InitLogger(&runner.log, runner)
	return runner
}

func (r *ProcessRunner) Run(ctx context.Context, variant *Variant, code string, stdout io.Writer, stderr io.Writer) error {
	command := variant.Interpreter
	if r.Interpreter != "" {
		command = r.Interpreter
	}

	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ErrEmptyCommand
	}

	path, err := r.writeCell(variant, code)
	if err != nil {
		return err
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			r.log.Warn("Failed to remove cell file \"%s\": %v", path, err)
		}
	}()

	args := append(fields[1:], path)
	cmd := exec.CommandContext(ctx, fields[0], args...)
	cmd.Dir = r.Dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = r.WaitDelay

	r.log.Debug("Running cell with \"%s %s\"", fields[0], strings.Join(args, " "))

	err = cmd.Run()
	if err == nil {
		return nil
	}

	if ctx.Err() != nil {
		return pkgerrors.Wrapf(ErrInterrupted, "%s was stopped", fields[0])
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return &ExitError{Interpreter: fields[0], Code: exitErr.ExitCode()}
	}

	return pkgerrors.Wrapf(err, "failed to run %s", fields[0])
}

func (r *ProcessRunner) writeCell(variant *Variant, code string) (string, error) {
	file, err := os.CreateTemp(r.Dir, "cell-*"+variant.FileExtension)
	if err != nil {
		return "", pkgerrors.Wrap(err, "failed to create cell file")
	}

	if _, err = file.WriteString(code); err != nil {
		_ = file.Close()
		_ = os.Remove(file.Name())
		return "", pkgerrors.Wrap(err, "failed to write cell file")
	}

	if err = file.Close(); err != nil {
		_ = os.Remove(file.Name())
		return "", pkgerrors.Wrap(err, "failed to close cell file")
	}

	return file.Name(), nil
}
