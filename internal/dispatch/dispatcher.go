// Package dispatch routes decoded action requests to file, directory, and
// process handlers, resolving paths against explicit session state and
// normalizing every failure into a structured result the loop can surface.
package dispatch

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"clai/internal/action"
	"clai/internal/logging"
	"clai/internal/procs"
)

// Indexer is the slice of the file index the dispatcher mutates after
// filesystem side effects. A nil Indexer disables the side effects.
type Indexer interface {
	Upsert(ctx context.Context, path string) error
	Remove(path string)
}

// Result is the outcome of a dispatched action. Failures set Err and carry
// the error text in Output so the loop can feed it back to the model.
type Result struct {
	OK      bool
	Output  string
	Summary string
	Err     error
}

// Dispatcher executes action requests. It is driven by the single foreground
// loop; only the process registry introduces concurrency.
type Dispatcher struct {
	session *Session
	index   Indexer
	procs   *procs.Registry
}

func New(session *Session, idx Indexer, registry *procs.Registry) *Dispatcher {
	return &Dispatcher{session: session, index: idx, procs: registry}
}

// Dispatch routes one request. It never returns a Go error: every failure is
// a Result with OK=false, because a bad action must not stop the loop.
func (d *Dispatcher) Dispatch(ctx context.Context, req *action.Request) Result {
	switch req.Kind {
	case action.KindReadFile:
		return d.readFile(req)
	case action.KindCreateFile:
		return d.createFile(ctx, req)
	case action.KindUpdateFile:
		return d.updateFile(ctx, req)
	case action.KindDeleteFile:
		return d.deleteFile(req)
	case action.KindCreateFolder:
		return d.createFolder(req)
	case action.KindDeleteFolder:
		return d.deleteFolder(req)
	case action.KindListDirectory:
		return d.listDirectory(req)
	case action.KindChangeDirectory:
		return d.changeDirectory(req)
	case action.KindRunCommand:
		return d.runCommand(ctx, req)
	case action.KindSendInputToProcess:
		return d.sendInput(req)
	case action.KindKillProcess:
		return d.killProcess(req)
	default:
		return failure(fail(CodeInvalid, string(req.Kind), "", fmt.Errorf("unroutable action kind %q", req.Kind)))
	}
}

func failure(err error) Result {
	return Result{OK: false, Output: err.Error(), Err: err}
}

func success(output, summary string) Result {
	return Result{OK: true, Output: output, Summary: summary}
}

// pathArg resolves the request's path argument against the session.
func (d *Dispatcher) pathArg(req *action.Request) (string, error) {
	p, ok := req.StringArg("path")
	if !ok || strings.TrimSpace(p) == "" {
		return "", fail(CodeInvalid, string(req.Kind), "", fmt.Errorf("missing path argument"))
	}
	return d.session.Resolve(p), nil
}

func (d *Dispatcher) readFile(req *action.Request) Result {
	path, err := d.pathArg(req)
	if err != nil {
		return failure(err)
	}
	content, err := readFile(path)
	if err != nil {
		return failure(err)
	}
	return success(content, fmt.Sprintf("read %s (%d bytes)", path, len(content)))
}

func (d *Dispatcher) createFile(ctx context.Context, req *action.Request) Result {
	path, err := d.pathArg(req)
	if err != nil {
		return failure(err)
	}
	content, _ := req.StringArg("content")
	if err := createFile(path, content); err != nil {
		return failure(err)
	}
	d.upsertIndex(ctx, path)
	return success(fmt.Sprintf("created %s (%d bytes)", path, len(content)),
		fmt.Sprintf("create_file %s", path))
}

func (d *Dispatcher) updateFile(ctx context.Context, req *action.Request) Result {
	path, err := d.pathArg(req)
	if err != nil {
		return failure(err)
	}
	content, _ := req.StringArg("content")
	mode, _ := req.StringArg("mode")
	line, _ := req.IntArg("line")
	startLine, _ := req.IntArg("start_line")
	endLine, _ := req.IntArg("end_line")

	if err := updateFile(path, content, mode, line, startLine, endLine); err != nil {
		return failure(err)
	}
	d.upsertIndex(ctx, path)
	if mode == "" {
		mode = "overwrite"
	}
	return success(fmt.Sprintf("updated %s (%s)", path, mode),
		fmt.Sprintf("update_file %s mode=%s", path, mode))
}

func (d *Dispatcher) deleteFile(req *action.Request) Result {
	path, err := d.pathArg(req)
	if err != nil {
		return failure(err)
	}
	if err := deleteFile(path); err != nil {
		return failure(err)
	}
	if d.index != nil {
		d.index.Remove(path)
	}
	return success(fmt.Sprintf("deleted %s", path), fmt.Sprintf("delete_file %s", path))
}

func (d *Dispatcher) createFolder(req *action.Request) Result {
	path, err := d.pathArg(req)
	if err != nil {
		return failure(err)
	}
	if err := createFolder(path); err != nil {
		return failure(err)
	}
	return success(fmt.Sprintf("created directory %s", path), fmt.Sprintf("create_folder %s", path))
}

func (d *Dispatcher) deleteFolder(req *action.Request) Result {
	path, err := d.pathArg(req)
	if err != nil {
		return failure(err)
	}
	if err := deleteFolder(path); err != nil {
		return failure(err)
	}
	return success(fmt.Sprintf("deleted directory %s", path), fmt.Sprintf("delete_folder %s", path))
}

func (d *Dispatcher) listDirectory(req *action.Request) Result {
	// list_directory with no path lists the session cwd.
	path := d.session.Cwd()
	if p, ok := req.StringArg("path"); ok && strings.TrimSpace(p) != "" {
		path = d.session.Resolve(p)
	}
	listing, err := listDirectory(path)
	if err != nil {
		return failure(err)
	}
	return success(listing, fmt.Sprintf("list_directory %s", path))
}

func (d *Dispatcher) changeDirectory(req *action.Request) Result {
	p, ok := req.StringArg("path")
	if !ok || strings.TrimSpace(p) == "" {
		return failure(fail(CodeInvalid, "change_directory", "", fmt.Errorf("missing path argument")))
	}
	if err := d.session.ChangeDir(p); err != nil {
		return failure(err)
	}
	return success(fmt.Sprintf("cwd: %s", d.session.Cwd()), fmt.Sprintf("change_directory %s", d.session.Cwd()))
}

func (d *Dispatcher) runCommand(ctx context.Context, req *action.Request) Result {
	cmd, ok := req.StringArg("command_string")
	if !ok || strings.TrimSpace(cmd) == "" {
		return failure(fail(CodeInvalid, "run_command", "", fmt.Errorf("missing command_string argument")))
	}
	cid := req.CorrelationID
	if cid == "" {
		cid = "proc-" + uuid.NewString()[:8]
	}
	if err := d.procs.Start(ctx, cid, cmd, d.session.Cwd()); err != nil {
		return failure(classify("run_command", cid, err))
	}
	return success(fmt.Sprintf("started [%s]: %s", cid, cmd), fmt.Sprintf("run_command %s", cid))
}

func (d *Dispatcher) sendInput(req *action.Request) Result {
	text, ok := req.StringArg("input_data")
	if !ok {
		return failure(fail(CodeInvalid, "send_input_to_process", req.CorrelationID, fmt.Errorf("missing input_data argument")))
	}
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	if err := d.procs.SendInput(req.CorrelationID, text); err != nil {
		return failure(classify("send_input_to_process", req.CorrelationID, err))
	}
	return success(fmt.Sprintf("sent input to [%s]", req.CorrelationID),
		fmt.Sprintf("send_input_to_process %s", req.CorrelationID))
}

func (d *Dispatcher) killProcess(req *action.Request) Result {
	if err := d.procs.Kill(req.CorrelationID); err != nil {
		return failure(classify("kill_process", req.CorrelationID, err))
	}
	return success(fmt.Sprintf("kill signal sent to [%s]", req.CorrelationID),
		fmt.Sprintf("kill_process %s", req.CorrelationID))
}

// upsertIndex refreshes the file index after a successful write. Index
// failures are logged, never surfaced: the write itself succeeded.
func (d *Dispatcher) upsertIndex(ctx context.Context, path string) {
	if d.index == nil {
		return
	}
	if err := d.index.Upsert(ctx, path); err != nil {
		logging.Get(logging.CategoryDispatch).Warnw("index refresh failed", "path", path, "error", err)
	}
}
