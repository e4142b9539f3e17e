package debug

import "fmt"

// ProtocolError is a failed debug-module operation: an abstract command
// that reported an error code or never completed. The in-flight operation
// is fatal and not retried.
type ProtocolError struct {
	Op      string
	CmdErr  uint32
	Timeout bool
}

func (e *ProtocolError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: abstract command never completed", e.Op)
	}
	return fmt.Sprintf("%s: abstract command error %d", e.Op, e.CmdErr)
}

// InvalidHaltModeError flags a request for a halt mode that does not
// exist. This is a programming error, not a device condition.
type InvalidHaltModeError struct {
	Mode HaltMode
}

func (e *InvalidHaltModeError) Error() string {
	return fmt.Sprintf("unknown halt mode %d", int(e.Mode))
}
