package action

import "strings"

// Models frequently emit near-miss action names and argument keys. These
// tables fold the common variants onto the canonical protocol before
// validation, so a payload like {"action":"mkdir","args":{"dir":"x"}} still
// dispatches. Unknown names that survive normalization are decode failures.

var actionAliases = map[string]Kind{
	"create_directory": KindCreateFolder,
	"mkdir":            KindCreateFolder,
	"make_directory":   KindCreateFolder,
	"make_folder":      KindCreateFolder,
	"make_dir":         KindCreateFolder,
	"create_dir":       KindCreateFolder,

	"delete_directory": KindDeleteFolder,
	"rmdir":            KindDeleteFolder,
	"remove_directory": KindDeleteFolder,
	"remove_folder":    KindDeleteFolder,
	"rm_dir":           KindDeleteFolder,
	"rm_folder":        KindDeleteFolder,

	"write_file": KindCreateFile,
	"make_file":  KindCreateFile,

	"remove_file": KindDeleteFile,
	"rm_file":     KindDeleteFile,
	"rm":          KindDeleteFile,

	"cd":    KindChangeDirectory,
	"chdir": KindChangeDirectory,

	"ls":       KindListDirectory,
	"dir":      KindListDirectory,
	"list_dir": KindListDirectory,

	"execute": KindRunCommand,
	"exec":    KindRunCommand,
	"run":     KindRunCommand,
	"shell":   KindRunCommand,

	"cat":       KindReadFile,
	"view_file": KindReadFile,
	"open_file": KindReadFile,

	"modify_file": KindUpdateFile,
	"edit_file":   KindUpdateFile,

	"input_to_process": KindSendInputToProcess,
	"process_input":    KindSendInputToProcess,
	"send_to_process":  KindSendInputToProcess,

	"terminate_process": KindKillProcess,
	"stop_process":      KindKillProcess,
	"end_process":       KindKillProcess,
}

// paramSynonyms maps, per kind, each canonical argument to the variant keys
// models use for it. The first variant present wins; canonical keys already
// present are left alone.
var paramSynonyms = map[Kind]map[string][]string{
	KindCreateFolder: {
		"path": {"dir_path", "directory_path", "folder_path", "dirname", "dir", "folder", "directory"},
	},
	KindCreateFile: {
		"path":    {"file_path", "filepath", "filename", "file", "destination", "dest"},
		"content": {"file_content", "text", "data", "source", "code", "body", "contents"},
	},
	KindReadFile: {
		"path": {"file_path", "filepath", "filename", "file", "source", "src"},
	},
	KindUpdateFile: {
		"path":       {"file_path", "filepath", "filename", "file", "target"},
		"content":    {"file_content", "text", "data", "new_content", "code", "body", "contents"},
		"mode":       {"update_mode", "edit_mode", "method", "operation"},
		"line":       {"line_number", "line_num", "at_line", "lineno"},
		"start_line": {"start", "from_line", "begin_line", "first_line"},
		"end_line":   {"end", "to_line", "last_line"},
	},
	KindDeleteFile: {
		"path": {"file_path", "filepath", "filename", "file", "target"},
	},
	KindDeleteFolder: {
		"path": {"dir_path", "directory_path", "folder_path", "dirname", "dir", "folder", "directory", "target"},
	},
	KindListDirectory: {
		"path": {"dir_path", "directory_path", "folder_path", "dirname", "dir", "folder", "directory"},
	},
	KindChangeDirectory: {
		"path": {"dir_path", "directory_path", "folder_path", "dirname", "dir", "folder", "directory", "to", "destination"},
	},
	KindRunCommand: {
		"command_string": {"command", "cmd", "shell_command", "script"},
	},
	KindSendInputToProcess: {
		"input_data": {"input", "data", "text", "stdin"},
	},
}

// normalizeKind folds an action name onto its canonical kind. ok is false
// when the name is not canonical and has no alias.
func normalizeKind(name string) (Kind, bool) {
	k := Kind(name)
	if knownKinds[k] {
		return k, true
	}
	if canonical, ok := actionAliases[name]; ok {
		return canonical, true
	}
	return k, false
}

// normalizeArgs rewrites synonym argument keys onto canonical ones in place.
func normalizeArgs(kind Kind, args map[string]any) {
	synonyms, ok := paramSynonyms[kind]
	if !ok {
		return
	}
	for canonical, variants := range synonyms {
		if _, present := args[canonical]; present {
			continue
		}
		for _, variant := range variants {
			if v, present := args[variant]; present {
				args[canonical] = v
				break
			}
		}
	}
}

// rewriteCommandCD converts run_command payloads whose command is a bare
// `cd <dir>` into change_directory, since a cd in a child shell would not
// affect session state.
func rewriteCommandCD(kind Kind, args map[string]any) Kind {
	if kind != KindRunCommand {
		return kind
	}
	cmd, _ := args["command_string"].(string)
	trimmed := strings.TrimSpace(cmd)
	if !strings.HasPrefix(trimmed, "cd ") {
		return kind
	}
	target := strings.TrimSpace(strings.TrimPrefix(trimmed, "cd "))
	if target == "" || strings.ContainsAny(target, "&|;") {
		return kind // compound command, leave it to the shell
	}
	delete(args, "command_string")
	args["path"] = target
	return KindChangeDirectory
}
