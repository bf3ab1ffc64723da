package ssh

import "errors"

// Session errors
var (
	ErrTransport    = errors.New("SSH transport failed")
	ErrAuth         = errors.New("SSH authentication rejected")
	ErrNoCredential = errors.New("no SSH credential provided")
	ErrInvalidState = errors.New("SSH session is not in the required state")
)

// Command and transfer errors
var (
	ErrCommand        = errors.New("remote command failed")
	ErrTransfer       = errors.New("file transfer failed")
	ErrNotAFile       = errors.New("remote path is not a regular file")
	ErrNotADirectory  = errors.New("local path is not a directory")
	ErrInvalidTarget  = errors.New("invalid SSH target")
	ErrHostKeyChanged = errors.New("host key changed since connect")
)

var errProbeFinished = errors.New("host key captured")
