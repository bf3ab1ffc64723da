package registry

import (
	"errors"
	"fmt"
)

var (
	ErrStructure       = errors.New("secrets registry structure error")
	ErrIO              = errors.New("secrets registry I/O failed")
	ErrUnknownGroup    = errors.New("unknown key group")
	ErrInvalidEntry    = errors.New("invalid key entry")
	ErrInvalidDocument = errors.New("edit would leave the registry unparseable")
)

// StructureError reports a block the editor needed but could not use.
type StructureError struct {
	Group    string
	Block    string // "definition" or "reference"
	Sentinel string
	Reason   string
}

func (e *StructureError) Error() string {
	return fmt.Sprintf("%v: group %s: %s block %q: %s", ErrStructure, e.Group, e.Block, e.Sentinel, e.Reason)
}

func (e *StructureError) Unwrap() error {
	return ErrStructure
}
