package procs

import "fmt"

// NotRunningError reports an operation against a cid that is unknown or
// already terminal.
type NotRunningError struct {
	CID string
}

func (e *NotRunningError) Error() string {
	return fmt.Sprintf("no running process for correlation id %q", e.CID)
}

// ErrNotRunning constructs a NotRunningError.
func ErrNotRunning(cid string) error {
	return &NotRunningError{CID: cid}
}

// ConflictError reports a Start against a cid that is still live.
type ConflictError struct {
	CID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("correlation id %q is already running", e.CID)
}

// ErrConflict constructs a ConflictError.
func ErrConflict(cid string) error {
	return &ConflictError{CID: cid}
}
