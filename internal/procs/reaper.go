package procs

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"clai/internal/logging"
)

// capture drains one output pipe into the handle's ring buffer, one tagged
// line at a time. Lines from a single stream are append-ordered; interleaving
// between streams is not deterministic.
func (r *Registry) capture(h *handle, stream string, pipe io.Reader) {
	defer r.wg.Done()
	defer h.captureWG.Done()

	scanner := bufio.NewScanner(pipe)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		h.appendLine(r.cfg.MaxOutputLines, fmt.Sprintf("[%s] %s", stream, scanner.Text()))
	}
	// Pipe closed: either the process exited or it was killed. Scanner
	// errors past EOF are expected here and carry no information.
}

// reap waits for the process to finish, records the terminal state and exit
// code, and emits a completion notification. Natural termination transitions
// Running to Exited; if a kill was requested the Killed state set by Kill is
// preserved.
func (r *Registry) reap(h *handle) {
	defer r.wg.Done()

	// Wait must not be called while the pipe readers are still draining.
	h.captureWG.Wait()
	err := h.cmd.Wait()
	exitCode := h.cmd.ProcessState.ExitCode()
	_ = err // non-zero exit is reported via the exit code, not as an error

	h.mu.Lock()
	if !h.killed {
		h.state = StateExited
	}
	h.exitCode = exitCode
	h.finished = timeNow()
	state := h.state
	_ = h.stdin.Close()
	close(h.done)
	h.mu.Unlock()

	logging.Get(logging.CategoryProcs).Infow("process finished",
		"cid", h.cid, "pid", h.pid, "state", state, "exit_code", exitCode)

	note := Notification{
		CID:      h.cid,
		State:    state,
		ExitCode: exitCode,
		Output:   tail(h.output(), 20),
	}
	select {
	case r.notifications <- note:
	default:
		// A full notification queue must never wedge the reaper.
		logging.Get(logging.CategoryProcs).Warnw("notification dropped", "cid", h.cid)
	}
}

// tail returns the last n lines of s.
func tail(s string, n int) string {
	s = strings.TrimRight(s, "\n")
	if s == "" {
		return ""
	}
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
