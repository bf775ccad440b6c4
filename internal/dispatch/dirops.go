package dispatch

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

func createFolder(path string) error {
	if _, err := os.Lstat(path); err == nil {
		return fail(CodeAlreadyExists, "create_folder", path, os.ErrExist)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return classify("create_folder", path, err)
	}
	return nil
}

// deleteFolder removes a directory tree. Missing directories are NotFound;
// a plain file target is rejected.
func deleteFolder(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return classify("delete_folder", path, err)
	}
	if !info.IsDir() {
		return fail(CodeInvalid, "delete_folder", path, fmt.Errorf("%s is not a directory", path))
	}
	if err := os.RemoveAll(path); err != nil {
		return classify("delete_folder", path, err)
	}
	return nil
}

// listDirectory renders the entries of path, directories suffixed with "/",
// sorted by name.
func listDirectory(path string) (string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return "", classify("list_directory", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "(empty)", nil
	}
	return strings.Join(names, "\n"), nil
}
