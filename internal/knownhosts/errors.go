package knownhosts

import "errors"

var (
	ErrIO            = errors.New("known hosts store I/O failed")
	ErrInvalidKey    = errors.New("invalid host public key")
	ErrKeyNotTrusted = errors.New("host key is not trusted by the known hosts store")
)
