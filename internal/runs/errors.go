package runs

import "errors"

var (
	ErrRunNotFound      = errors.New("run not found")
	ErrRunFinished      = errors.New("run already finished")
	ErrInvalidRunStatus = errors.New("invalid final run status")
)
