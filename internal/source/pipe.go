package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/setevik/faultwatch/internal/fault"
)

// CommandSource runs a host command and reads JSON-lines faults from its stdout.
// The command's stderr is passed through to ours.
type CommandSource struct {
	name string
	args []string

	mu     sync.Mutex
	cmd    *exec.Cmd
	cancel context.CancelFunc
}

// NewCommandSource creates a CommandSource for name with args.
func NewCommandSource(name string, args ...string) *CommandSource {
	return &CommandSource{name: name, args: args}
}

func (c *CommandSource) Faults(ctx context.Context) (<-chan *fault.Fault, error) {
	ctx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()

	cmd := exec.CommandContext(ctx, c.name, c.args...)
	cmd.Stderr = os.Stderr
	c.mu.Lock()
	c.cmd = cmd
	c.mu.Unlock()

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		cancel()
		return nil, fmt.Errorf("starting %s: %w", c.name, err)
	}

	ch := make(chan *fault.Fault, 64)

	go func() {
		defer close(ch)
		defer func() {
			if err := cmd.Wait(); err != nil && ctx.Err() == nil {
				slog.Warn("fault command exited", "command", c.name, "error", err)
			}
		}()
		scan(ctx, stdout, ch, c.name)
	}()

	slog.Info("fault command started", "command", c.name, "pid", cmd.Process.Pid)
	return ch, nil
}

func (c *CommandSource) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
	}
}
