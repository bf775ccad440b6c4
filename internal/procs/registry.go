// Package procs owns spawned shell processes. Handles are addressed by
// correlation id only; callers never hold the underlying process. Output is
// captured by background goroutines, exits are detected by a per-process
// reaper, and terminal handles stay readable for a retention window.
package procs

import (
	"context"
	"fmt"
	"os/exec"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"clai/internal/logging"
)

// State is the lifecycle state of a spawned process.
type State string

const (
	StateRunning State = "running"
	StateExited  State = "exited"
	StateKilled  State = "killed"
)

// Notification is emitted when a process reaches a terminal state. The
// foreground loop drains these and appends them to conversation history.
type Notification struct {
	CID      string
	State    State
	ExitCode int
	Output   string // tail of captured output
}

// Config bounds registry resource usage.
type Config struct {
	// Retention keeps terminal handles readable before GC.
	Retention time.Duration
	// MaxOutputLines caps each handle's output ring buffer.
	MaxOutputLines int
	// KillGrace is the SIGTERM-to-SIGKILL window.
	KillGrace time.Duration
}

// DefaultConfig returns production defaults.
func DefaultConfig() Config {
	return Config{
		Retention:      2 * time.Minute,
		MaxOutputLines: 200,
		KillGrace:      3 * time.Second,
	}
}

// handle is the registry-private process record.
type handle struct {
	cid   string
	pid   int
	cmd   *exec.Cmd
	stdin interface {
		Write(p []byte) (int, error)
		Close() error
	}

	mu         sync.Mutex
	state      State
	exitCode   int
	killed     bool // kill requested; reaper records Killed instead of Exited
	lines      []string
	dropped    int // lines discarded by the ring buffer
	started    time.Time
	finished   time.Time
	commandStr string
	done       chan struct{} // closed by the reaper on terminal transition

	// captureWG gates cmd.Wait until both pipe readers hit EOF, per the
	// os/exec StdoutPipe contract.
	captureWG sync.WaitGroup
}

// timeNow is swappable in tests.
var timeNow = time.Now

func (h *handle) appendLine(max int, line string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lines = append(h.lines, line)
	if max > 0 && len(h.lines) > max {
		over := len(h.lines) - max
		h.lines = h.lines[over:]
		h.dropped += over
	}
}

func (h *handle) snapshotState() (State, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state, h.exitCode
}

func (h *handle) output() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var sb strings.Builder
	if h.dropped > 0 {
		fmt.Fprintf(&sb, "... (%d earlier lines dropped)\n", h.dropped)
	}
	for _, l := range h.lines {
		sb.WriteString(l)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// Registry tracks spawned processes by correlation id.
type Registry struct {
	mu      sync.Mutex
	handles map[string]*handle
	cfg     Config

	notifications chan Notification
	wg            sync.WaitGroup
	janitorStop   chan struct{}
	janitorDone   chan struct{}
	closed        bool
}

// NewRegistry creates a Registry and starts its retention janitor.
func NewRegistry(cfg Config) *Registry {
	if cfg.Retention <= 0 {
		cfg.Retention = DefaultConfig().Retention
	}
	if cfg.MaxOutputLines <= 0 {
		cfg.MaxOutputLines = DefaultConfig().MaxOutputLines
	}
	if cfg.KillGrace <= 0 {
		cfg.KillGrace = DefaultConfig().KillGrace
	}

	r := &Registry{
		handles:       make(map[string]*handle),
		cfg:           cfg,
		notifications: make(chan Notification, 64),
		janitorStop:   make(chan struct{}),
		janitorDone:   make(chan struct{}),
	}
	go r.janitor()
	return r
}

// Notifications is the completion stream. It is never closed while the
// registry is live; drain with a select.
func (r *Registry) Notifications() <-chan Notification {
	return r.notifications
}

// Start spawns commandString via the shell in workdir, registering the handle
// under cid. A cid colliding with a live process is a conflict; a cid whose
// previous process is terminal is reusable.
func (r *Registry) Start(ctx context.Context, cid, commandString, workdir string) error {
	log := logging.Get(logging.CategoryProcs)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return fmt.Errorf("registry is shut down")
	}
	if existing, ok := r.handles[cid]; ok {
		state, _ := existing.snapshotState()
		if state == StateRunning {
			r.mu.Unlock()
			return ErrConflict(cid)
		}
		// Terminal: the id is free for reuse.
		delete(r.handles, cid)
	}
	r.mu.Unlock()

	cmd := exec.Command("sh", "-c", commandString)
	cmd.Dir = workdir
	// Own process group so Kill can signal the whole pipeline.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to open stdout: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to open stderr: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start command: %w", err)
	}

	h := &handle{
		cid:        cid,
		pid:        cmd.Process.Pid,
		cmd:        cmd,
		stdin:      stdin,
		state:      StateRunning,
		started:    time.Now(),
		commandStr: commandString,
		done:       make(chan struct{}),
	}

	r.mu.Lock()
	if _, ok := r.handles[cid]; ok {
		// Lost a race to the same cid. Abort this spawn.
		r.mu.Unlock()
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return ErrConflict(cid)
	}
	r.handles[cid] = h
	r.mu.Unlock()

	log.Infow("process started", "cid", cid, "pid", h.pid, "command", commandString)

	// Capture goroutines drain the pipes; the reaper waits for exit.
	r.wg.Add(3)
	h.captureWG.Add(2)
	go r.capture(h, "stdout", stdout)
	go r.capture(h, "stderr", stderr)
	go r.reap(h)

	return nil
}

// SendInput writes text to the process's stdin. Valid only while Running.
func (r *Registry) SendInput(cid, text string) error {
	h := r.lookup(cid)
	if h == nil {
		return ErrNotRunning(cid)
	}

	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return ErrNotRunning(cid)
	}
	stdin := h.stdin
	h.mu.Unlock()

	if _, err := stdin.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write input to %s: %w", cid, err)
	}
	return nil
}

// Kill terminates the process. The Killed state is observable as soon as
// Kill returns; the reaper fills in the exit code afterwards.
func (r *Registry) Kill(cid string) error {
	h := r.lookup(cid)
	if h == nil {
		return ErrNotRunning(cid)
	}

	h.mu.Lock()
	if h.state != StateRunning {
		h.mu.Unlock()
		return ErrNotRunning(cid)
	}
	h.state = StateKilled
	h.killed = true
	pid := h.pid
	h.mu.Unlock()

	logging.Get(logging.CategoryProcs).Infow("killing process", "cid", cid, "pid", pid)

	// Signal the whole process group; escalate after the grace period
	// unless the reaper observes the exit first.
	_ = syscall.Kill(-pid, syscall.SIGTERM)
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		timer := time.NewTimer(r.cfg.KillGrace)
		defer timer.Stop()
		select {
		case <-h.done:
		case <-timer.C:
			_ = syscall.Kill(-pid, syscall.SIGKILL)
		}
	}()

	return nil
}

// Status returns a handle's state, exit code, and captured output.
func (r *Registry) Status(cid string) (State, int, string, error) {
	h := r.lookup(cid)
	if h == nil {
		return "", 0, "", ErrNotRunning(cid)
	}
	state, code := h.snapshotState()
	return state, code, h.output(), nil
}

// Snapshot renders a human-readable table of all known processes.
func (r *Registry) Snapshot() string {
	r.mu.Lock()
	handles := make([]*handle, 0, len(r.handles))
	for _, h := range r.handles {
		handles = append(handles, h)
	}
	r.mu.Unlock()

	if len(handles) == 0 {
		return "no processes"
	}

	sort.Slice(handles, func(i, j int) bool { return handles[i].started.Before(handles[j].started) })

	var sb strings.Builder
	for _, h := range handles {
		state, code := h.snapshotState()
		switch state {
		case StateRunning:
			fmt.Fprintf(&sb, "%-12s pid=%-7d running  %s (up %s)\n",
				h.cid, h.pid, h.commandStr, time.Since(h.started).Round(time.Second))
		default:
			fmt.Fprintf(&sb, "%-12s pid=%-7d %s exit=%d %s\n",
				h.cid, h.pid, state, code, h.commandStr)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

// Shutdown kills every live process and stops background goroutines.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	var cids []string
	for cid, h := range r.handles {
		if state, _ := h.snapshotState(); state == StateRunning {
			cids = append(cids, cid)
		}
	}
	r.mu.Unlock()

	for _, cid := range cids {
		_ = r.Kill(cid)
	}

	close(r.janitorStop)
	<-r.janitorDone
	r.wg.Wait()
}

func (r *Registry) lookup(cid string) *handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[cid]
}
