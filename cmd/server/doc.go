// Package main is the entry point for the e2bbox server and CLI.
//
// e2bbox lets a conversational agent run Python, JavaScript, Bash, Java and R
// code in remote E2B sandboxes, one sandbox per user, and read or write files
// inside them. Agents reach it as an MCP server over stdio or streamable HTTP.
//
// Commands:
//
//	e2bbox serve                              run the MCP server (default)
//	e2bbox exec --language python 'print(1)'  run one snippet and print the response
//	e2bbox list                               show sandboxes known to E2B
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
// Stopping the application closes every sandbox it opened.
package main
