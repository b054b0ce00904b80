package nbt

import (
	"fmt"

	"github.com/gregLibert/nbt-brand-protection/pkg/iso7816"
)

// TransportError reports a failure of the physical link.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ProtocolError reports a command the tag answered with a non-success status.
type ProtocolError struct {
	Command string
	Status  iso7816.StatusWord
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s rejected by tag: %s", e.Command, e.Status.Verbose())
}
