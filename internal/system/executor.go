package system

import (
	"context"
	"os/exec"
	"strings"
	"time"
)

// Executor abstracts command execution for wg/wg-quick/ip operations.
type Executor interface {
	Run(ctx context.Context, name string, args ...string) error
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
	// OutputInput runs the command with input on stdin, for piping private
	// keys through `wg pubkey` without touching the filesystem or argv.
	OutputInput(ctx context.Context, input string, name string, args ...string) ([]byte, error)
}

// osExec runs commands on the host with a per-command deadline.
type osExec struct {
	timeout time.Duration
}

// NewExecutor returns the host executor. Every command is bounded by timeout;
// zero disables the deadline.
func NewExecutor(timeout time.Duration) Executor {
	return osExec{timeout: timeout}
}

func (e osExec) command(ctx context.Context, name string, args ...string) (*exec.Cmd, context.CancelFunc) {
	if e.timeout > 0 {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		return exec.CommandContext(ctx, name, args...), cancel
	}
	return exec.CommandContext(ctx, name, args...), func() {}
}

func (e osExec) Run(ctx context.Context, name string, args ...string) error {
	cmd, cancel := e.command(ctx, name, args...)
	defer cancel()
	return cmd.Run()
}

func (e osExec) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd, cancel := e.command(ctx, name, args...)
	defer cancel()
	return cmd.CombinedOutput()
}

func (e osExec) OutputInput(ctx context.Context, input string, name string, args ...string) ([]byte, error) {
	cmd, cancel := e.command(ctx, name, args...)
	defer cancel()
	cmd.Stdin = strings.NewReader(input)
	return cmd.CombinedOutput()
}
