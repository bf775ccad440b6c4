package dispatch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// atomicWrite replaces path's contents via a temp file in the same directory
// followed by a rename, so a failed write never leaves a partial file.
func atomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".clai-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}

// createFile writes a new file, creating parent directories. An existing
// file is an AlreadyExists failure; use update_file to change it.
func createFile(path, content string) error {
	if _, err := os.Lstat(path); err == nil {
		return fail(CodeAlreadyExists, "create_file", path, os.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return classify("create_file", path, err)
	}
	if err := atomicWrite(path, []byte(content)); err != nil {
		return classify("create_file", path, err)
	}
	return nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", classify("read_file", path, err)
	}
	return string(data), nil
}

// updateFile edits an existing file. Modes:
//
//	overwrite          replace the whole file (default)
//	append             add content at the end
//	insert_line        insert content before 1-based line N
//	delete_line_range  remove 1-based lines [start_line, end_line]
func updateFile(path, content, mode string, line, startLine, endLine int) error {
	existing, err := os.ReadFile(path)
	if err != nil {
		return classify("update_file", path, err)
	}

	var next []byte
	switch mode {
	case "", "overwrite":
		next = []byte(content)
	case "append":
		next = append(existing, []byte(content)...)
	case "insert_line":
		next, err = insertLine(existing, content, line)
	case "delete_line_range":
		next, err = deleteLineRange(existing, startLine, endLine)
	default:
		return fail(CodeInvalid, "update_file", path, fmt.Errorf("unknown update mode %q", mode))
	}
	if err != nil {
		return fail(CodeInvalid, "update_file", path, err)
	}

	if err := atomicWrite(path, next); err != nil {
		return classify("update_file", path, err)
	}
	return nil
}

func insertLine(existing []byte, content string, line int) ([]byte, error) {
	lines := splitLines(existing)
	if line < 1 || line > len(lines)+1 {
		return nil, fmt.Errorf("line %d out of range (file has %d lines)", line, len(lines))
	}
	inserted := strings.TrimSuffix(content, "\n")
	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:line-1]...)
	out = append(out, inserted)
	out = append(out, lines[line-1:]...)
	return joinLines(out), nil
}

func deleteLineRange(existing []byte, start, end int) ([]byte, error) {
	lines := splitLines(existing)
	if start < 1 || end < start || end > len(lines) {
		return nil, fmt.Errorf("line range %d-%d out of range (file has %d lines)", start, end, len(lines))
	}
	out := make([]string, 0, len(lines)-(end-start+1))
	out = append(out, lines[:start-1]...)
	out = append(out, lines[end:]...)
	return joinLines(out), nil
}

func splitLines(data []byte) []string {
	s := strings.TrimSuffix(string(data), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

func joinLines(lines []string) []byte {
	if len(lines) == 0 {
		return nil
	}
	return []byte(strings.Join(lines, "\n") + "\n")
}

func deleteFile(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return classify("delete_file", path, err)
	}
	if info.IsDir() {
		return fail(CodeInvalid, "delete_file", path, fmt.Errorf("%s is a directory", path))
	}
	if err := os.Remove(path); err != nil {
		return classify("delete_file", path, err)
	}
	return nil
}
