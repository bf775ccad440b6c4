// Package action decodes model output into typed action requests. Parsing is
// pure and deterministic: the same input always yields the same request or
// the same decode failure, and nothing here touches the filesystem.
package action

import "fmt"

// Kind is the enumerated action category.
type Kind string

const (
	KindReadFile           Kind = "read_file"
	KindCreateFile         Kind = "create_file"
	KindUpdateFile         Kind = "update_file"
	KindDeleteFile         Kind = "delete_file"
	KindCreateFolder       Kind = "create_folder"
	KindDeleteFolder       Kind = "delete_folder"
	KindListDirectory      Kind = "list_directory"
	KindChangeDirectory    Kind = "change_directory"
	KindRunCommand         Kind = "run_command"
	KindSendInputToProcess Kind = "send_input_to_process"
	KindKillProcess        Kind = "kill_process"
)

// knownKinds is the closed set of dispatchable actions.
var knownKinds = map[Kind]bool{
	KindReadFile:           true,
	KindCreateFile:         true,
	KindUpdateFile:         true,
	KindDeleteFile:         true,
	KindCreateFolder:       true,
	KindDeleteFolder:       true,
	KindListDirectory:      true,
	KindChangeDirectory:    true,
	KindRunCommand:         true,
	KindSendInputToProcess: true,
	KindKillProcess:        true,
}

// Request is a decoded, validated action request.
type Request struct {
	Kind          Kind
	Args          map[string]any
	CorrelationID string
}

// StringArg returns args[key] as a string, with ok=false when absent or not
// a string.
func (r *Request) StringArg(key string) (string, bool) {
	v, ok := r.Args[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// IntArg returns args[key] as an int. JSON numbers decode as float64.
func (r *Request) IntArg(key string) (int, bool) {
	switch v := r.Args[key].(type) {
	case float64:
		return int(v), true
	case int:
		return v, true
	default:
		return 0, false
	}
}

// DecodeErrorKind classifies a decode failure.
type DecodeErrorKind string

const (
	// MalformedSyntax: no parseable payload in the model output.
	MalformedSyntax DecodeErrorKind = "malformed_syntax"
	// MissingField: a required top-level key (e.g. "action") is absent.
	MissingField DecodeErrorKind = "missing_field"
	// UnknownActionKind: the action is not in the enumerated set.
	UnknownActionKind DecodeErrorKind = "unknown_action_kind"
	// InvalidArgsForKind: kind-specific required args are missing.
	InvalidArgsForKind DecodeErrorKind = "invalid_args_for_kind"
)

// DecodeError is a structured parse failure. It is recoverable: the loop
// surfaces it to the model as a corrective message and continues.
type DecodeError struct {
	Kind   DecodeErrorKind
	Action string // offending action name, when known
	Field  string // offending field, when known
	Err    error  // wrapped syntax error, when any
}

func (e *DecodeError) Error() string {
	switch e.Kind {
	case MalformedSyntax:
		if e.Err != nil {
			return fmt.Sprintf("malformed action payload: %v", e.Err)
		}
		return "malformed action payload"
	case MissingField:
		return fmt.Sprintf("action payload missing required field %q", e.Field)
	case UnknownActionKind:
		return fmt.Sprintf("unknown action kind %q", e.Action)
	case InvalidArgsForKind:
		return fmt.Sprintf("action %q missing required argument %q", e.Action, e.Field)
	default:
		return "decode error"
	}
}

func (e *DecodeError) Unwrap() error { return e.Err }
