package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/intent"
)

func (p *Plugin) readFileAction() *Action {
	a := &Action{
		Name:        "READ_FILE",
		Similes:     []string{"readFile", "readFileFromSandbox", "getFileContent"},
		Description: `Reads a file from the sandbox. Accepts {"path": "/path/to/file"} or a request such as "read file at /path/to/file".`,
		Validate: func(msg Message) error {
			_, err := intent.ParseReadRequest(msg.Text)
			return err
		},
		failText: func(err error) string {
			return fmt.Sprintf("Error reading from file: \n%s", err)
		},
	}

	a.handle = func(ctx context.Context, log *zap.Logger, msg Message) *Content {
		req, err := intent.ParseReadRequest(msg.Text)
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeValidationError)
		}

		h, err := p.sessions.GetOrCreate(ctx, msg.OwnerID())
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}

		data, err := p.sessions.Client().ReadFile(ctx, h, req.Path)
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}

		log.Debug("file read", zap.String("sandbox_id", h.ID), zap.String("path", req.Path))

		content := a.respond(msg, "File content read successfully:\n\n"+string(data), OutcomeSuccess)
		content.Data = string(data)
		return content
	}

	return a
}

func (p *Plugin) writeFileAction() *Action {
	a := &Action{
		Name:    "WRITE_FILE",
		Similes: []string{"writeFile", "writeFileToSandbox", "saveFileContent"},
		Description: `Writes files to the sandbox. Accepts {"path": "/path/to/file", "content": "..."}, ` +
			`a batch {"isMultiple": true, "files": [{"path": "...", "data": "..."}]}, ` +
			`or a request such as 'write "hello" to /path/to/file'.`,
		Validate: func(msg Message) error {
			_, err := intent.ParseWriteRequest(msg.Text)
			return err
		},
		failText: func(err error) string {
			return fmt.Sprintf("Error writing to file: \n%s", err)
		},
	}

	a.handle = func(ctx context.Context, log *zap.Logger, msg Message) *Content {
		req, err := intent.ParseWriteRequest(msg.Text)
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeValidationError)
		}

		h, err := p.sessions.GetOrCreate(ctx, msg.OwnerID())
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}

		client := p.sessions.Client()
		if req.IsBatch() {
			err = client.WriteFiles(ctx, h, req.Files)
		} else {
			err = client.WriteFile(ctx, h, req.Path, []byte(req.Content))
		}
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}

		paths := req.Paths()
		log.Debug("files written", zap.String("sandbox_id", h.ID), zap.Strings("paths", paths))

		text := "Successfully wrote file: " + req.Path
		if req.IsBatch() {
			text = "Successfully wrote multiple files:\n- " + strings.Join(paths, "\n- ")
		}

		content := a.respond(msg, text, OutcomeSuccess)
		content.Data = paths
		return content
	}

	return a
}
