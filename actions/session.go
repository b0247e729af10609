package actions

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/sandbox"
)

func (p *Plugin) listSandboxesAction() *Action {
	a := &Action{
		Name:        "LIST_SANDBOXES",
		Similes:     []string{"LIST_SANDBOX", "LIST_SANDBOXES_FOR_USER"},
		Description: "Lists all sandboxes known to the sandbox service",
		Validate:    func(Message) error { return nil },
		failText: func(err error) string {
			return fmt.Sprintf("Error listing sandboxes: %s", err)
		},
	}

	a.handle = func(ctx context.Context, log *zap.Logger, msg Message) *Content {
		infos, err := p.sessions.ListAll(ctx)
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}

		log.Debug("sandboxes listed", zap.Int("count", len(infos)))

		content := a.respond(msg, formatSandboxes(msg.OwnerID(), infos), OutcomeSuccess)
		content.Data = infos
		return content
	}

	return a
}

func formatSandboxes(ownerID string, infos []sandbox.Info) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Sandboxes for user %s:", ownerID)

	if len(infos) == 0 {
		b.WriteString(" No sandboxes found.")
		return b.String()
	}

	for _, info := range infos {
		started := "unknown"
		if !info.StartedAt.IsZero() {
			started = info.StartedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(&b, "\n- ID: %s\n  Template: %s\n  Name: %s\n  Started: %s",
			info.SandboxID, info.TemplateID, info.Name, started)
	}
	return b.String()
}

func (p *Plugin) closeSandboxAction() *Action {
	a := &Action{
		Name:        "CLOSE_SANDBOX",
		Similes:     []string{"TERMINATE_SANDBOX", "STOP_SANDBOX"},
		Description: "Closes the sandbox of the requesting user",
		Validate:    func(Message) error { return nil },
		failText: func(err error) string {
			return fmt.Sprintf("Error closing sandbox: %s", err)
		},
	}

	a.handle = func(ctx context.Context, _ *zap.Logger, msg Message) *Content {
		ownerID := msg.OwnerID()
		if err := p.sessions.Close(ctx, ownerID); err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}
		return a.respond(msg, "Sandbox closed for user "+ownerID, OutcomeSuccess)
	}

	return a
}
