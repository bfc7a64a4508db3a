package system

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// Command describes one external invocation.
type Command struct {
	Name string
	Args []string
	// Dir is the working directory; empty means the caller's.
	Dir string
	// Env entries are appended to the inherited environment. They may carry
	// secrets and are never logged.
	Env   []string
	Stdin string
}

// Output captures the result of a finished command.
type Output struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func (o Output) Success() bool { return o.ExitCode == 0 }

// Text returns the most useful human-readable output, preferring stderr.
func (o Output) Text() string {
	if s := strings.TrimSpace(o.Stderr); s != "" {
		return s
	}
	return strings.TrimSpace(o.Stdout)
}

// CommandRunner executes external commands.
type CommandRunner interface {
	Run(ctx context.Context, cmd Command) (Output, error)
}

// ExecRunner runs commands on the local host.
type ExecRunner struct{}

func NewExecRunner() *ExecRunner {
	return &ExecRunner{}
}

func (r *ExecRunner) Run(ctx context.Context, cmd Command) (Output, error) {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	var stdout, stderr bytes.Buffer
	c.Stdout = &stdout
	c.Stderr = &stderr

	zap.S().Named("system").Debugw("running command", "command", cmd.Name, "args", cmd.Args)

	err := c.Run()
	out := Output{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctx.Err() != nil {
			return out, ctx.Err()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			out.ExitCode = exitErr.ExitCode()
			return out, nil
		}
		return out, err
	}
	return out, nil
}
