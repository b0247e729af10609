// Package mcpserver exposes the plugin's actions as Model Context Protocol tools.
//
// Every action is registered as one tool named after the action in lower case
// (execute_python_code, read_file, list_sandboxes, ...). All tools take the
// same inputs:
//
//   - text: the chat message to act on (required)
//   - owner_id: whose sandbox to use, "default-user" when omitted
//   - code: code to run instead of the code found in text
//
// The tool result carries the action's response text and, as structured
// content, the full response including its outcome. Results of failed actions
// are flagged with IsError.
//
// The server runs over stdio or streamable HTTP. Over HTTP the MCP endpoint
// is served at /mcp and, when enabled, Prometheus metrics at /metrics.
package mcpserver
