package dispatch

import (
	"errors"
	"fmt"
	"io/fs"

	"clai/internal/procs"
)

// Code classifies a dispatch failure. Codes are stable strings the loop can
// surface to the model verbatim.
type Code string

const (
	CodeNotFound         Code = "not_found"
	CodePermissionDenied Code = "permission_denied"
	CodeAlreadyExists    Code = "already_exists"
	CodeNotRunning       Code = "not_running"
	CodeConflict         Code = "conflict"
	CodeInvalid          Code = "invalid"
)

// DispatchError is a structured action failure. It never crashes the loop;
// the dispatcher converts it to a failed ActionResult.
type DispatchError struct {
	Code Code
	Op   string // action kind that failed
	Path string // target path or correlation id, when known
	Err  error
}

func (e *DispatchError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s: %s", e.Op, e.Path, e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Code)
}

func (e *DispatchError) Unwrap() error { return e.Err }

func fail(code Code, op, path string, err error) *DispatchError {
	return &DispatchError{Code: code, Op: op, Path: path, Err: err}
}

// classify maps an underlying error onto a dispatch code. Filesystem errors
// use the fs sentinel set; registry errors carry their own types.
func classify(op, path string, err error) *DispatchError {
	var de *DispatchError
	if errors.As(err, &de) {
		return de
	}

	code := CodeInvalid
	switch {
	case errors.Is(err, fs.ErrNotExist):
		code = CodeNotFound
	case errors.Is(err, fs.ErrPermission):
		code = CodePermissionDenied
	case errors.Is(err, fs.ErrExist):
		code = CodeAlreadyExists
	default:
		var nr *procs.NotRunningError
		var cf *procs.ConflictError
		if errors.As(err, &nr) {
			code = CodeNotRunning
		} else if errors.As(err, &cf) {
			code = CodeConflict
		}
	}
	return fail(code, op, path, err)
}
