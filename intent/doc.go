// Package intent turns chat text into requests the actions can execute.
//
// Every parser accepts structured input first and falls back to a short,
// ordered list of patterns for conversational input. Parsers never talk to a
// sandbox; a failed parse is reported with one of the sentinel errors so the
// caller can reject the request before any remote call.
package intent
