package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Metadata keys written on every sandbox the registry creates
const (
	MetadataOwnerKey     = "ownerId"
	MetadataCreatedAtKey = "createdAt"
)

// ErrRemoteUnavailable is returned when the remote service cannot produce a handle
var ErrRemoteUnavailable = errors.New("remote sandbox service unavailable")

// Handle is a reference to one live remote sandbox
type Handle struct {
	ID         string
	OwnerID    string
	CreatedAt  time.Time
	TemplateID string

	// Domain and AccessToken address the sandbox's data plane.
	Domain      string
	AccessToken string
}

// Info describes a sandbox as reported by the remote list operation
type Info struct {
	SandboxID  string            `json:"sandbox_id"`
	TemplateID string            `json:"template_id"`
	Name       string            `json:"name,omitempty"`
	StartedAt  time.Time         `json:"started_at"`
	EndAt      time.Time         `json:"end_at,omitempty"`
	State      string            `json:"state,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}

// Execution is the outcome of running code inside a sandbox
type Execution struct {
	Stdout  []string        `json:"stdout"`
	Stderr  []string        `json:"stderr"`
	Results []string        `json:"results"`
	Error   *ExecutionError `json:"error,omitempty"`
}

// StdoutText concatenates the stdout chunks
func (e *Execution) StdoutText() string {
	return strings.Join(e.Stdout, "")
}

// StderrText concatenates the stderr chunks
func (e *Execution) StderrText() string {
	return strings.Join(e.Stderr, "")
}

// ExecutionError is a language-level error raised by the executed code
type ExecutionError struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Traceback string `json:"traceback"`
}

func (e *ExecutionError) Error() string {
	if e.Name == "" {
		return e.Value
	}
	return fmt.Sprintf("%s: %s", e.Name, e.Value)
}

// File is one entry of a batch write
type File struct {
	Path string `json:"path"`
	Data []byte `json:"data"`
}

// Client is the contract of the remote sandbox service
type Client interface {
	// Create starts a new sandbox tagged with metadata.
	Create(ctx context.Context, metadata map[string]string) (*Handle, error)
	// Connect attaches to an existing sandbox by its remote id.
	Connect(ctx context.Context, sandboxID string) (*Handle, error)
	// List returns sandboxes whose metadata contains every filter pair. A nil
	// filter lists everything visible to the credential.
	List(ctx context.Context, filter map[string]string) ([]Info, error)
	// RunCode executes code with the given runtime identifier.
	RunCode(ctx context.Context, h *Handle, code, runtime string) (*Execution, error)
	ReadFile(ctx context.Context, h *Handle, path string) ([]byte, error)
	WriteFile(ctx context.Context, h *Handle, path string, data []byte) error
	WriteFiles(ctx context.Context, h *Handle, files []File) error
	// Kill terminates the sandbox.
	Kill(ctx context.Context, h *Handle) error
}
