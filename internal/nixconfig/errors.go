package nixconfig

import "errors"

var (
	ErrNotARepository  = errors.New("not a git repository")
	ErrNoHosts         = errors.New("no nixosConfigurations found")
	ErrDiskPathMissing = errors.New("disk.path not found in host configuration")
	ErrInvalidHost     = errors.New("invalid host name")
	ErrInvalidDevices  = errors.New("invalid lsblk output")
)
