package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clai/internal/action"
	"clai/internal/procs"
)

type recordingIndex struct {
	mu       sync.Mutex
	upserts  []string
	removals []string
}

func (r *recordingIndex) Upsert(_ context.Context, path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.upserts = append(r.upserts, path)
	return nil
}

func (r *recordingIndex) Remove(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removals = append(r.removals, path)
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *Session, *recordingIndex, string) {
	t.Helper()
	root := t.TempDir()
	sess, err := NewSession(root)
	require.NoError(t, err)

	reg := procs.NewRegistry(procs.Config{
		Retention:      time.Minute,
		MaxOutputLines: 100,
		KillGrace:      time.Second,
	})
	t.Cleanup(reg.Shutdown)

	idx := &recordingIndex{}
	return New(sess, idx, reg), sess, idx, root
}

func req(kind action.Kind, args map[string]any) *action.Request {
	if args == nil {
		args = map[string]any{}
	}
	return &action.Request{Kind: kind, Args: args}
}

func code(t *testing.T, res Result) Code {
	t.Helper()
	require.False(t, res.OK)
	var de *DispatchError
	require.ErrorAs(t, res.Err, &de)
	return de.Code
}

func TestChangeDirectoryNotFoundLeavesCwd(t *testing.T) {
	d, sess, _, root := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), req(action.KindChangeDirectory,
		map[string]any{"path": "/nonexistent"}))
	assert.Equal(t, CodeNotFound, code(t, res))
	assert.Equal(t, root, sess.Cwd())
}

func TestChangeDirectoryAffectsRelativePaths(t *testing.T) {
	d, sess, _, root := newTestDispatcher(t)
	sub := filepath.Join(root, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	res := d.Dispatch(context.Background(), req(action.KindChangeDirectory,
		map[string]any{"path": "sub"}))
	require.True(t, res.OK, res.Output)
	assert.Equal(t, sub, sess.Cwd())

	res = d.Dispatch(context.Background(), req(action.KindCreateFile,
		map[string]any{"path": "a.txt", "content": "hi"}))
	require.True(t, res.OK, res.Output)
	assert.FileExists(t, filepath.Join(sub, "a.txt"))
}

func TestChangeDirectoryToFileIsInvalid(t *testing.T) {
	d, sess, _, root := newTestDispatcher(t)
	file := filepath.Join(root, "plain.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	res := d.Dispatch(context.Background(), req(action.KindChangeDirectory,
		map[string]any{"path": "plain.txt"}))
	assert.Equal(t, CodeInvalid, code(t, res))
	assert.Equal(t, root, sess.Cwd())
}

func TestCreateFileMakesParentsAndIndexes(t *testing.T) {
	d, _, idx, root := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), req(action.KindCreateFile,
		map[string]any{"path": "a/b/c.txt", "content": "hello"}))
	require.True(t, res.OK, res.Output)

	target := filepath.Join(root, "a", "b", "c.txt")
	data, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
	assert.Equal(t, []string{target}, idx.upserts)
}

func TestCreateFileAlreadyExists(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)

	first := d.Dispatch(context.Background(), req(action.KindCreateFile,
		map[string]any{"path": "a.txt", "content": "one"}))
	require.True(t, first.OK)

	second := d.Dispatch(context.Background(), req(action.KindCreateFile,
		map[string]any{"path": "a.txt", "content": "two"}))
	assert.Equal(t, CodeAlreadyExists, code(t, second))
}

func TestReadFileNotFound(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), req(action.KindReadFile,
		map[string]any{"path": "ghost.txt"}))
	assert.Equal(t, CodeNotFound, code(t, res))
}

func TestReadFileReturnsContent(t *testing.T) {
	d, _, _, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "r.txt"), []byte("body"), 0o644))

	res := d.Dispatch(context.Background(), req(action.KindReadFile,
		map[string]any{"path": "r.txt"}))
	require.True(t, res.OK)
	assert.Equal(t, "body", res.Output)
}

func TestUpdateFileModes(t *testing.T) {
	d, _, idx, root := newTestDispatcher(t)
	target := filepath.Join(root, "f.txt")
	require.NoError(t, os.WriteFile(target, []byte("one\ntwo\nthree\n"), 0o644))

	cases := []struct {
		name string
		args map[string]any
		want string
	}{
		{
			name: "append",
			args: map[string]any{"path": "f.txt", "mode": "append", "content": "four\n"},
			want: "one\ntwo\nthree\nfour\n",
		},
		{
			name: "insert_line",
			args: map[string]any{"path": "f.txt", "mode": "insert_line", "content": "zero", "line": float64(1)},
			want: "zero\none\ntwo\nthree\nfour\n",
		},
		{
			name: "delete_line_range",
			args: map[string]any{"path": "f.txt", "mode": "delete_line_range", "start_line": float64(2), "end_line": float64(3)},
			want: "zero\nthree\nfour\n",
		},
		{
			name: "overwrite",
			args: map[string]any{"path": "f.txt", "content": "fresh\n"},
			want: "fresh\n",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res := d.Dispatch(context.Background(), req(action.KindUpdateFile, tc.args))
			require.True(t, res.OK, res.Output)
			data, err := os.ReadFile(target)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(data))
		})
	}
	assert.Len(t, idx.upserts, len(cases))
}

func TestUpdateFileMissingIsNotFound(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), req(action.KindUpdateFile,
		map[string]any{"path": "ghost.txt", "content": "x"}))
	assert.Equal(t, CodeNotFound, code(t, res))
}

func TestUpdateFileBadRangeIsInvalid(t *testing.T) {
	d, _, _, root := newTestDispatcher(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f.txt"), []byte("one\n"), 0o644))

	res := d.Dispatch(context.Background(), req(action.KindUpdateFile,
		map[string]any{"path": "f.txt", "mode": "delete_line_range", "start_line": float64(5), "end_line": float64(9)}))
	assert.Equal(t, CodeInvalid, code(t, res))
}

func TestDeleteFileRemovesFromIndex(t *testing.T) {
	d, _, idx, root := newTestDispatcher(t)
	target := filepath.Join(root, "gone.txt")
	require.NoError(t, os.WriteFile(target, []byte("x"), 0o644))

	res := d.Dispatch(context.Background(), req(action.KindDeleteFile,
		map[string]any{"path": "gone.txt"}))
	require.True(t, res.OK)
	assert.NoFileExists(t, target)
	assert.Equal(t, []string{target}, idx.removals)
}

func TestDeleteFileOnDirectoryIsInvalid(t *testing.T) {
	d, _, _, root := newTestDispatcher(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "d"), 0o755))

	res := d.Dispatch(context.Background(), req(action.KindDeleteFile,
		map[string]any{"path": "d"}))
	assert.Equal(t, CodeInvalid, code(t, res))
}

func TestFolderLifecycle(t *testing.T) {
	d, _, _, root := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), req(action.KindCreateFolder,
		map[string]any{"path": "pkg/sub"}))
	require.True(t, res.OK)
	assert.DirExists(t, filepath.Join(root, "pkg", "sub"))

	res = d.Dispatch(context.Background(), req(action.KindCreateFolder,
		map[string]any{"path": "pkg/sub"}))
	assert.Equal(t, CodeAlreadyExists, code(t, res))

	res = d.Dispatch(context.Background(), req(action.KindDeleteFolder,
		map[string]any{"path": "pkg"}))
	require.True(t, res.OK)
	assert.NoDirExists(t, filepath.Join(root, "pkg"))

	res = d.Dispatch(context.Background(), req(action.KindDeleteFolder,
		map[string]any{"path": "pkg"}))
	assert.Equal(t, CodeNotFound, code(t, res))
}

func TestListDirectory(t *testing.T) {
	d, _, _, root := newTestDispatcher(t)
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	// No path argument lists the session cwd.
	res := d.Dispatch(context.Background(), req(action.KindListDirectory, nil))
	require.True(t, res.OK)
	assert.Equal(t, "a.txt\nsub/", res.Output)
}

func TestRunCommandUsesSessionCwd(t *testing.T) {
	d, _, _, root := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), &action.Request{
		Kind:          action.KindRunCommand,
		Args:          map[string]any{"command_string": "pwd > where.txt"},
		CorrelationID: "p1",
	})
	require.True(t, res.OK, res.Output)
	assert.Contains(t, res.Output, "p1")

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(root, "where.txt"))
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestRunCommandGeneratesCorrelationID(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), req(action.KindRunCommand,
		map[string]any{"command_string": "true"}))
	require.True(t, res.OK, res.Output)
	assert.Contains(t, res.Output, "proc-")
}

func TestProcessOpsOnUnknownCID(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)

	res := d.Dispatch(context.Background(), &action.Request{
		Kind:          action.KindSendInputToProcess,
		Args:          map[string]any{"input_data": "hi"},
		CorrelationID: "ghost",
	})
	assert.Equal(t, CodeNotRunning, code(t, res))

	res = d.Dispatch(context.Background(), &action.Request{
		Kind:          action.KindKillProcess,
		Args:          map[string]any{},
		CorrelationID: "ghost",
	})
	assert.Equal(t, CodeNotRunning, code(t, res))
}

func TestRunCommandConflict(t *testing.T) {
	d, _, _, _ := newTestDispatcher(t)

	first := d.Dispatch(context.Background(), &action.Request{
		Kind:          action.KindRunCommand,
		Args:          map[string]any{"command_string": "sleep 30"},
		CorrelationID: "dup",
	})
	require.True(t, first.OK)

	second := d.Dispatch(context.Background(), &action.Request{
		Kind:          action.KindRunCommand,
		Args:          map[string]any{"command_string": "true"},
		CorrelationID: "dup",
	})
	assert.Equal(t, CodeConflict, code(t, second))
}
