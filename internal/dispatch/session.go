package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Session holds the working directory every file, directory, and process
// operation resolves against. It is explicit state, not the process cwd, so
// directory changes are testable and visible to every subsequent dispatch.
type Session struct {
	mu  sync.RWMutex
	cwd string
}

// NewSession anchors a session at dir, which must be an existing directory.
func NewSession(dir string) (*Session, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve session directory: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("session directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("session directory %s is not a directory", abs)
	}
	return &Session{cwd: abs}, nil
}

// Cwd returns the current working directory.
func (s *Session) Cwd() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cwd
}

// Resolve turns a possibly-relative path into an absolute one under the
// session cwd.
func (s *Session) Resolve(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(s.Cwd(), path)
}

// ChangeDir moves the session to dir after validating it exists and is a
// directory. On failure the cwd is untouched.
func (s *Session) ChangeDir(dir string) error {
	target := s.Resolve(dir)

	info, err := os.Stat(target)
	if err != nil {
		return classify("change_directory", target, err)
	}
	if !info.IsDir() {
		return fail(CodeInvalid, "change_directory", target, fmt.Errorf("%s is not a directory", target))
	}

	s.mu.Lock()
	s.cwd = target
	s.mu.Unlock()
	return nil
}
