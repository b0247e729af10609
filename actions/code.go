package actions

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/intent"
	"github.com/isdmx/e2bbox/sandbox"
)

type codeActionDef struct {
	language    string
	similes     []string
	description string
}

var codeActions = []codeActionDef{
	{
		language:    sandbox.LanguagePython,
		similes:     []string{"RUN_PYTHON", "EXECUTE_CODE", "RUN_CODE"},
		description: "Executes Python code in a secure sandboxed environment",
	},
	{
		language:    sandbox.LanguageJavaScript,
		similes:     []string{"RUN_JAVASCRIPT", "EXECUTE_JS", "RUN_JS"},
		description: "Executes JavaScript code in a secure sandboxed environment",
	},
	{
		language:    sandbox.LanguageBash,
		similes:     []string{"RUN_BASH", "EXECUTE_BASH", "RUN_SHELL", "EXECUTE_SHELL"},
		description: "Executes Bash code in a secure sandboxed environment",
	},
	{
		language:    sandbox.LanguageJava,
		similes:     []string{"RUN_JAVA", "EXECUTE_JAVA", "RUN_JAVAC", "EXECUTE_JAVAC"},
		description: "Executes Java code in a secure sandboxed environment",
	},
	{
		language:    sandbox.LanguageR,
		similes:     []string{"RUN_R", "EXECUTE_R", "RUN_RSCRIPT", "EXECUTE_RSCRIPT"},
		description: "Executes R code in a secure sandboxed environment",
	},
}

// CodeActionName returns the action name for a language, e.g. EXECUTE_PYTHON_CODE
func CodeActionName(lang sandbox.Language) string {
	return "EXECUTE_" + strings.ToUpper(lang.Name) + "_CODE"
}

// Classify maps the result of a RunCode call to an outcome
func Classify(exec *sandbox.Execution, err error) Outcome {
	switch {
	case err != nil || exec == nil:
		return OutcomeInfrastructureError
	case exec.Error != nil:
		return OutcomeExecutionError
	default:
		return OutcomeSuccess
	}
}

func (p *Plugin) codeAction(lang sandbox.Language, similes []string, description string) *Action {
	a := &Action{
		Name:        CodeActionName(lang),
		Similes:     similes,
		Description: description,
		Validate: func(msg Message) error {
			_, err := intent.Code(msg.Text, msg.Code)
			return err
		},
		failText: func(err error) string {
			return fmt.Sprintf("Failed to execute %s code: \n%s", lang.DisplayName, err)
		},
	}

	a.handle = func(ctx context.Context, log *zap.Logger, msg Message) *Content {
		code, err := intent.Code(msg.Text, msg.Code)
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeValidationError)
		}

		h, err := p.sessions.GetOrCreate(ctx, msg.OwnerID())
		if err != nil {
			return a.respond(msg, a.failText(err), OutcomeInfrastructureError)
		}

		log.Debug("running code",
			zap.String("sandbox_id", h.ID),
			zap.String("runtime", lang.Runtime),
			zap.Int("code_bytes", len(code)))

		exec, err := p.sessions.Client().RunCode(ctx, h, code, lang.Runtime)
		outcome := Classify(exec, err)

		var content *Content
		switch outcome {
		case OutcomeInfrastructureError:
			if err == nil {
				err = fmt.Errorf("no execution result from sandbox %s", h.ID)
			}
			return a.respond(msg, a.failText(err), outcome)
		case OutcomeExecutionError:
			content = a.respond(msg, fmt.Sprintf("Error executing %s code: \n%s\n\n%s",
				lang.DisplayName, exec.Error.Value, exec.Error.Traceback), outcome)
		default:
			content = a.respond(msg, formatExecution(lang, code, exec), outcome)
		}

		content.Stdout = exec.StdoutText()
		content.Stderr = exec.StderrText()
		if len(exec.Results) > 0 {
			content.Data = exec.Results
		}
		return content
	}

	return a
}

func formatExecution(lang sandbox.Language, code string, exec *sandbox.Execution) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Successfully executed %s code: \n%s\n\nOutput: \n%s", lang.DisplayName, code, exec.StdoutText())

	if len(exec.Results) > 0 {
		b.WriteString("\n\nResults: \n")
		b.WriteString(strings.Join(exec.Results, "\n"))
	}
	if stderr := exec.StderrText(); stderr != "" {
		b.WriteString("\n\nStderr: \n")
		b.WriteString(stderr)
	}

	return b.String()
}
