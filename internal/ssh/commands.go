package ssh

import (
	"bytes"
	"errors"
	"fmt"

	"nixstrap/internal/logger"

	"golang.org/x/crypto/ssh"
)

// RunCommand executes command on one new channel and waits for it to exit.
// A non-zero exit status is reported in the result, not as an error; use
// CommandResult.Err when the caller treats it as fatal. Output written
// before a failure is kept in the result.
func (s *Session) RunCommand(command string) (*CommandResult, error) {
	client, err := s.authenticatedClient()
	if err != nil {
		return nil, err
	}

	cmd, err := client.Command(command)
	if err != nil {
		return nil, s.transportFailure(fmt.Errorf("open command channel: %v", err))
	}
	defer cmd.Close()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("Running on %s: %s", s.endpoint, command)
	err = cmd.Run()

	result := &CommandResult{
		Stdout: stdout.Bytes(),
		Stderr: stderr.Bytes(),
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
			return result, nil
		}
		result.ExitCode = -1
		return result, s.transportFailure(fmt.Errorf("run %q: %v", command, err))
	}

	return result, nil
}

// Run is RunCommand with a non-zero exit turned into a *CommandError.
func (s *Session) Run(command string) (*CommandResult, error) {
	result, err := s.RunCommand(command)
	if err != nil {
		return result, err
	}
	return result, result.Err(command)
}
