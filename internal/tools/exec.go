package tools

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
	"time"
)

// MaxPromptBytes is the largest prompt passed as a single argv entry. Linux
// caps one argument at 128 KiB including the terminating NUL.
const MaxPromptBytes = 128*1024 - 1

// waitDelay bounds how long Run waits for the child's output pipes to close
// after the context is done.
const waitDelay = 3 * time.Second

// maxStderrBytes bounds the stderr kept on an ExitError.
const maxStderrBytes = 4 << 10

var ErrPromptTooLarge = errors.New("prompt exceeds the command-line argument limit")

// Runner invokes an external model CLI as `<program> --model <model> --prompt <prompt>`
// and returns its trimmed standard output. A non-zero exit is reported as
// *ExitError.
type Runner interface {
	Run(ctx context.Context, program, model, prompt string) (string, error)
}

// ExitError is a CLI that ran and exited with a non-zero status.
type ExitError struct {
	Program string
	Code    int
	Stderr  string
}

func (e *ExitError) Error() string {
	msg := fmt.Sprintf("command '%s' returned non-zero exit status %d", e.Program, e.Code)
	if e.Code < 0 {
		msg = fmt.Sprintf("command '%s' was terminated by a signal", e.Program)
	}
	if s := strings.TrimSpace(e.Stderr); s != "" {
		msg += ": " + s
	}
	return msg
}

// ExecRunner runs the program directly, without a shell, so the prompt needs
// no quoting. The child is not given a deadline of its own; it runs until it
// exits or ctx is done. A run stopped by ctx reports ctx.Err(), never an
// *ExitError.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, program, model, prompt string) (string, error) {
	if len(prompt) > MaxPromptBytes {
		return "", fmt.Errorf("%s: %w (%d > %d bytes)", program, ErrPromptTooLarge, len(prompt), MaxPromptBytes)
	}

	cmd := exec.CommandContext(ctx, program, "--model", model, "--prompt", prompt)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = waitDelay

	slog.Debug("exec: starting", "program", program, "model", model, "prompt_bytes", len(prompt))

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil && err != nil {
		return "", fmt.Errorf("running %s: %w", program, ctxErr)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return "", &ExitError{Program: program, Code: exitErr.ExitCode(), Stderr: tail(stderr.Bytes(), maxStderrBytes)}
	}
	if err != nil {
		return "", fmt.Errorf("running %s: %w", program, err)
	}

	slog.Debug("exec: done", "program", program, "stdout_bytes", stdout.Len())
	return strings.TrimSpace(stdout.String()), nil
}

// tail keeps the last n bytes of b.
func tail(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return "..." + string(b[len(b)-n:])
}
