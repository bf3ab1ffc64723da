package bootstrap

import "errors"

var (
	ErrAborted            = errors.New("bootstrap aborted")
	ErrCredentialsRefused = errors.New("every SSH credential was rejected")
	ErrNoHostSelected     = errors.New("no configuration host matches")
)
