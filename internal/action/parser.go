package action

import (
	"encoding/json"
	"strings"
)

// payload is the wire shape the model is instructed to produce.
type payload struct {
	Action string         `json:"action"`
	Args   map[string]any `json:"args"`
	CID    string         `json:"cid"`
}

// requiredArgs lists, per kind, the string arguments that must be present
// and non-empty for the request to be dispatchable.
var requiredArgs = map[Kind][]string{
	KindReadFile:           {"path"},
	KindCreateFile:         {"path", "content"},
	KindUpdateFile:         {"path"},
	KindDeleteFile:         {"path"},
	KindCreateFolder:       {"path"},
	KindDeleteFolder:       {"path"},
	KindChangeDirectory:    {"path"},
	KindRunCommand:         {"command_string"},
	KindSendInputToProcess: {"input_data"},
}

// Parse decodes model output into a Request. The output may wrap the JSON
// payload in prose or markdown fences; the outermost balanced object span is
// what gets decoded. All failures are *DecodeError values.
func Parse(modelOutput string) (*Request, error) {
	raw := extractPayload(modelOutput)
	if raw == "" {
		return nil, &DecodeError{Kind: MalformedSyntax}
	}

	var p payload
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return nil, &DecodeError{Kind: MalformedSyntax, Err: err}
	}

	if strings.TrimSpace(p.Action) == "" {
		return nil, &DecodeError{Kind: MissingField, Field: "action"}
	}

	kind, ok := normalizeKind(p.Action)
	if !ok {
		return nil, &DecodeError{Kind: UnknownActionKind, Action: p.Action}
	}

	args := p.Args
	if args == nil {
		args = make(map[string]any)
	}
	normalizeArgs(kind, args)
	kind = rewriteCommandCD(kind, args)

	cid := p.CID
	if cid == "" {
		// Older payload shapes carry the correlation id inside args.
		for _, key := range []string{"cid", "pid_or_cid", "correlation_id", "process_id"} {
			if v, ok := args[key].(string); ok && v != "" {
				cid = v
				break
			}
		}
	}

	req := &Request{Kind: kind, Args: args, CorrelationID: cid}
	if err := validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

// validate enforces kind-specific required arguments.
func validate(req *Request) error {
	for _, field := range requiredArgs[req.Kind] {
		s, ok := req.StringArg(field)
		if !ok {
			return &DecodeError{Kind: InvalidArgsForKind, Action: string(req.Kind), Field: field}
		}
		// A bare newline is legitimate process input; everything else must
		// be non-blank.
		if field != "input_data" && strings.TrimSpace(s) == "" {
			return &DecodeError{Kind: InvalidArgsForKind, Action: string(req.Kind), Field: field}
		}
	}

	// update_file needs content unless the mode only deletes lines.
	if req.Kind == KindUpdateFile {
		mode, _ := req.StringArg("mode")
		if mode != "delete_line_range" {
			if s, ok := req.StringArg("content"); !ok || s == "" {
				return &DecodeError{Kind: InvalidArgsForKind, Action: string(req.Kind), Field: "content"}
			}
		}
	}

	// Process-addressing actions need a correlation id to resolve a handle.
	if req.Kind == KindSendInputToProcess || req.Kind == KindKillProcess {
		if req.CorrelationID == "" {
			return &DecodeError{Kind: InvalidArgsForKind, Action: string(req.Kind), Field: "cid"}
		}
	}

	return nil
}
