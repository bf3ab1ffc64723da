package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"

	"nixstrap/internal/logger"
)

var ErrCommandFailed = errors.New("command failed")

type Command struct {
	Command string
	Args    []string
	Dir     string
	// Env entries ("KEY=value") are added to the current environment.
	Env   []string
	Stdin io.Reader
}

func NewCommand(command string, args ...string) *Command {
	return &Command{
		Command: command,
		Args:    args,
	}
}

// Shell runs line through /bin/sh -c.
func Shell(line string) *Command {
	return NewCommand("/bin/sh", "-c", line)
}

func (c *Command) WithDir(dir string) *Command {
	c.Dir = dir
	return c
}

func (c *Command) WithEnv(env ...string) *Command {
	c.Env = append(c.Env, env...)
	return c
}

func (c *Command) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

func (c *Command) build(ctx context.Context) *exec.Cmd {
	cmd := exec.CommandContext(ctx, c.Command, c.Args...)

	if c.Dir != "" {
		cmd.Dir = c.Dir
	}
	if len(c.Env) > 0 {
		cmd.Env = append(os.Environ(), c.Env...)
	}
	cmd.Stdin = c.Stdin
	return cmd
}

func (c *Command) Execute() (string, error) {
	return c.ExecuteContext(context.Background())
}

// ExecuteContext runs the command and returns its trimmed stdout.
func (c *Command) ExecuteContext(ctx context.Context) (string, error) {
	cmd := c.build(ctx)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Executing: %s", c)
	err := cmd.Run()
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v\nStderr: %s", ErrCommandFailed, c, err, stderr.String())
	}

	return strings.TrimSpace(stdout.String()), nil
}

// Stream runs the command with its output connected to stdout and stderr.
// Only the exit status is interpreted.
func (c *Command) Stream(ctx context.Context, stdout, stderr io.Writer) error {
	cmd := c.build(ctx)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	logger.Debug("Executing: %s", c)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCommandFailed, c, err)
	}
	return nil
}

// Runner runs local commands. Local is the os/exec implementation.
type Runner interface {
	Execute(ctx context.Context, c *Command) (string, error)
	Stream(ctx context.Context, c *Command) error
}

// Local runs commands on this machine, streaming to Stdout and Stderr
// (os.Stdout and os.Stderr when nil).
type Local struct {
	Stdout io.Writer
	Stderr io.Writer
}

func (l Local) Execute(ctx context.Context, c *Command) (string, error) {
	return c.ExecuteContext(ctx)
}

func (l Local) Stream(ctx context.Context, c *Command) error {
	stdout, stderr := l.Stdout, l.Stderr
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return c.Stream(ctx, stdout, stderr)
}
