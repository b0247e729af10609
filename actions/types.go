package actions

import (
	"context"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/intent"
)

// Outcome classifies how an action invocation ended
type Outcome string

// Possible outcomes
const (
	OutcomeSuccess             Outcome = "success"
	OutcomeExecutionError      Outcome = "execution_error"
	OutcomeInfrastructureError Outcome = "infrastructure_error"
	OutcomeValidationError     Outcome = "validation_error"
)

// Normal reports whether the outcome is an expected result rather than a failure
func (o Outcome) Normal() bool {
	return o == OutcomeSuccess || o == OutcomeExecutionError
}

// Source identifies who sent a message
type Source struct {
	ID string `json:"id,omitempty"`
}

// Message is an inbound chat message
type Message struct {
	Text string `json:"text"`
	// Code, when set, is run instead of the code found in Text.
	Code   string  `json:"code,omitempty"`
	Source *Source `json:"source,omitempty"`
}

// OwnerID resolves the session owner of the message
func (m Message) OwnerID() string {
	if m.Source == nil {
		return intent.OwnerID("")
	}
	return intent.OwnerID(m.Source.ID)
}

// Content is the response produced by an action
type Content struct {
	Text    string   `json:"text"`
	Stdout  string   `json:"stdout,omitempty"`
	Stderr  string   `json:"stderr,omitempty"`
	Data    any      `json:"data,omitempty"`
	Actions []string `json:"actions"`
	Source  *Source  `json:"source,omitempty"`
	Outcome Outcome  `json:"outcome"`
}

// Callback receives the response once an action finishes
type Callback func(ctx context.Context, content *Content) error

// Action is one capability exposed to the agent runtime
type Action struct {
	Name        string
	Similes     []string
	Description string
	Examples    [][]ExampleTurn

	// Validate rejects messages the handler cannot act on.
	Validate func(msg Message) error

	handle   func(ctx context.Context, log *zap.Logger, msg Message) *Content
	failText func(err error) string
}
