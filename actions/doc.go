// Package actions defines the agent-facing actions of the plugin.
//
// Each Action has a name, similes the agent runtime may use instead of the
// name, a description, a Validate step that rejects unusable input before any
// remote call, and a handler that produces a Content response. Handlers never
// return errors to the caller: every failure is formatted into the response
// text and classified with an Outcome.
//
// Actions:
//
//   - EXECUTE_PYTHON_CODE, EXECUTE_JAVASCRIPT_CODE, EXECUTE_BASH_CODE,
//     EXECUTE_JAVA_CODE, EXECUTE_R_CODE run code in the owner's sandbox
//   - READ_FILE and WRITE_FILE access the sandbox filesystem
//   - LIST_SANDBOXES and CLOSE_SANDBOX manage sessions
package actions
