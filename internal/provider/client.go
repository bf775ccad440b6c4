// Package provider sends composed prompts to the chat model and returns its
// free-text response. Parsing that response is the action package's job.
package provider

import (
	"context"

	"clai/internal/compose"
)

// Client is the model boundary. Implementations receive the full composed
// prompt and return the raw model text, which may contain zero or one action
// payload.
type Client interface {
	Generate(ctx context.Context, systemPrompt string, blocks []compose.Block, turns []compose.ConversationTurn, userText string) (string, error)
}

// SystemPrompt instructs the model on the action protocol. Responses that
// want a side effect must carry exactly one JSON payload of the documented
// shape; plain answers carry none.
const SystemPrompt = `You are a coding assistant living in the user's terminal.

You can act on the user's machine by emitting exactly ONE JSON object, on its
own, of the shape:

  {"action": "<kind>", "args": {...}, "cid": "<id>"}

Action kinds and their required args:
  read_file              {"path": ...}
  create_file            {"path": ..., "content": ...}
  update_file            {"path": ..., "content": ..., "mode": "overwrite"|"append"|"insert_line"|"delete_line_range", "line": N, "start_line": N, "end_line": N}
  delete_file            {"path": ...}
  create_folder          {"path": ...}
  delete_folder          {"path": ...}
  list_directory         {"path": ...}
  change_directory       {"path": ...}
  run_command            {"command_string": ...}   long-running commands keep running; you get a notification when they finish
  send_input_to_process  {"input_data": ...} plus "cid" of the running process
  kill_process           just "cid" of the running process

"cid" is a correlation id of your choosing for run_command; reuse it to send
input to or kill that process in later turns. Relative paths resolve against
the session working directory. Emit at most one action per response; when no
action is needed, answer in plain prose with no JSON object.`
