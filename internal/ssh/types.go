package ssh

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// Endpoint identifies the remote machine. It is fixed for the lifetime of a Session.
type Endpoint struct {
	Destination string
	Port        uint16
}

func (e Endpoint) Address() string {
	return net.JoinHostPort(e.Destination, strconv.Itoa(int(e.Port)))
}

func (e Endpoint) String() string {
	return e.Address()
}

// State of a Session.
type State string

const (
	StateDisconnected  State = "disconnected"
	StateConnected     State = "connected"
	StateAuthenticated State = "authenticated"
	StateFailed        State = "failed"
)

// CommandResult holds everything a remote command produced.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Success reports a zero exit status.
func (r *CommandResult) Success() bool {
	return r.ExitCode == 0
}

// Err returns a *CommandError when the command exited non-zero, nil otherwise.
func (r *CommandResult) Err(command string) error {
	if r.ExitCode == 0 {
		return nil
	}
	return &CommandError{
		Command:  command,
		ExitCode: r.ExitCode,
		Stdout:   r.Stdout,
		Stderr:   r.Stderr,
	}
}

// CommandError is a non-zero exit treated as fatal by the caller.
type CommandError struct {
	Command  string
	ExitCode int
	Stdout   []byte
	Stderr   []byte
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("%v: %q exited with status %d", ErrCommand, e.Command, e.ExitCode)
	if stderr := strings.TrimSpace(string(e.Stderr)); stderr != "" {
		msg += ": " + stderr
	}
	return msg
}

func (e *CommandError) Unwrap() error {
	return ErrCommand
}

// Target is a parsed user@host[:port] argument.
type Target struct {
	User     string
	Endpoint Endpoint
}

// ParseTarget parses user@host[:port]. The port defaults to 22. IPv6
// destinations must be bracketed: user@[::1]:2222.
func ParseTarget(target string) (Target, error) {
	at := strings.LastIndex(target, "@")
	if at < 0 {
		return Target{}, fmt.Errorf("%w: username is required in format username@hostname[:port]", ErrInvalidTarget)
	}
	user, hostPort := target[:at], target[at+1:]
	if user == "" {
		return Target{}, fmt.Errorf("%w: username cannot be empty", ErrInvalidTarget)
	}

	host, portStr := hostPort, ""
	if strings.HasPrefix(hostPort, "[") {
		end := strings.Index(hostPort, "]")
		if end < 0 {
			return Target{}, fmt.Errorf("%w: unterminated bracket in %s", ErrInvalidTarget, target)
		}
		host = hostPort[1:end]
		rest := hostPort[end+1:]
		if rest != "" {
			if !strings.HasPrefix(rest, ":") {
				return Target{}, fmt.Errorf("%w: %s", ErrInvalidTarget, target)
			}
			portStr = rest[1:]
		}
	} else if strings.Count(hostPort, ":") == 1 {
		host, portStr, _ = strings.Cut(hostPort, ":")
	} else if strings.Contains(hostPort, ":") {
		return Target{}, fmt.Errorf("%w: %s", ErrInvalidTarget, target)
	}

	if host == "" {
		return Target{}, fmt.Errorf("%w: hostname cannot be empty", ErrInvalidTarget)
	}

	port := uint64(22)
	if portStr != "" {
		var err error
		port, err = strconv.ParseUint(portStr, 10, 16)
		if err != nil || port == 0 {
			return Target{}, fmt.Errorf("%w: invalid port number: %s", ErrInvalidTarget, portStr)
		}
	}

	return Target{User: user, Endpoint: Endpoint{Destination: host, Port: uint16(port)}}, nil
}
