package main

import (
	"context"
	"strings"
)

const miniHelp = `mini-commands (bypass the model):
  \pin <path>      pin a file into every context
  \unpin <path>    unpin a file
  \sticky          list pinned files
  \scan [dir]      index a directory tree (default: cwd)
  \ps              list tracked processes
  \kill <cid>      kill a process by correlation id
  \cd <dir>        change the session working directory
  \help            this text
  \quit            exit`

// runMini handles a backslash command locally. Returns true when the loop
// should exit.
func (s *chatSession) runMini(ctx context.Context, line string) bool {
	fields := strings.Fields(line)
	cmd := fields[0]
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch cmd {
	case `\quit`, `\exit`, `\q`:
		return true

	case `\help`:
		s.ui.statusf("%s", miniHelp)

	case `\pin`:
		if arg == "" {
			s.ui.errorf("usage: \\pin <path>")
			break
		}
		if err := s.idx.Pin(ctx, s.session.Resolve(arg)); err != nil {
			s.ui.errorf("pin failed: %v", err)
			break
		}
		s.ui.statusf("pinned %s", arg)

	case `\unpin`:
		if arg == "" {
			s.ui.errorf("usage: \\unpin <path>")
			break
		}
		if s.idx.Unpin(s.session.Resolve(arg)) {
			s.ui.statusf("unpinned %s", arg)
		} else {
			s.ui.errorf("%s is not pinned", arg)
		}

	case `\sticky`:
		stickies := s.idx.Stickies()
		if len(stickies) == 0 {
			s.ui.statusf("no pinned files")
			break
		}
		s.ui.statusf("%s", strings.Join(stickies, "\n"))

	case `\scan`:
		root := s.session.Cwd()
		if arg != "" {
			root = s.session.Resolve(arg)
		}
		stats, err := s.idx.Scan(ctx, root)
		if err != nil {
			s.ui.errorf("scan failed: %v", err)
			break
		}
		s.ui.statusf("scanned %s: %d indexed, %d skipped, %d failed",
			root, stats.Indexed, stats.Skipped, stats.Failed)

	case `\ps`:
		s.ui.statusf("%s", s.registry.Snapshot())

	case `\kill`:
		if arg == "" {
			s.ui.errorf("usage: \\kill <cid>")
			break
		}
		if err := s.registry.Kill(arg); err != nil {
			s.ui.errorf("kill failed: %v", err)
			break
		}
		s.ui.statusf("kill signal sent to [%s]", arg)

	case `\cd`:
		if arg == "" {
			s.ui.errorf("usage: \\cd <dir>")
			break
		}
		if err := s.session.ChangeDir(arg); err != nil {
			s.ui.errorf("cd failed: %v", err)
			break
		}
		s.ui.statusf("cwd: %s", s.session.Cwd())

	default:
		s.ui.errorf("unknown command %s (\\help lists commands)", cmd)
	}
	return false
}
