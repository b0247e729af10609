package actions

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/isdmx/e2bbox/sandbox"
)

func TestClassify(t *testing.T) {
	assert.Equal(t, OutcomeInfrastructureError, Classify(nil, errors.New("boom")))
	assert.Equal(t, OutcomeInfrastructureError, Classify(nil, nil))
	assert.Equal(t, OutcomeExecutionError, Classify(&sandbox.Execution{Error: &sandbox.ExecutionError{Value: "x"}}, nil))
	assert.Equal(t, OutcomeSuccess, Classify(&sandbox.Execution{Stderr: []string{"warn"}}, nil))

	assert.True(t, OutcomeSuccess.Normal())
	assert.True(t, OutcomeExecutionError.Normal())
	assert.False(t, OutcomeInfrastructureError.Normal())
	assert.False(t, OutcomeValidationError.Normal())
}

func TestCodeActions(t *testing.T) {
	ctx := context.Background()

	t.Run("SuccessEchoesCodeAndOutput", func(t *testing.T) {
		client := newFakeClient()
		client.execution = &sandbox.Execution{Stdout: []string{"hello\n", "world\n"}}
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "EXECUTE_PYTHON_CODE", msgFrom("alice", "```python\nprint('hello')\n```"), nil)
		require.NoError(t, err)

		assert.Equal(t, OutcomeSuccess, content.Outcome)
		assert.Equal(t, "Successfully executed Python code: \nprint('hello')\n\nOutput: \nhello\nworld\n", content.Text)
		assert.Equal(t, "hello\nworld\n", content.Stdout)
		assert.Empty(t, content.Stderr)
		assert.Equal(t, []string{"EXECUTE_PYTHON_CODE"}, content.Actions)
		assert.Equal(t, "alice", content.Source.ID)
		assert.Equal(t, []string{"print('hello')"}, client.runs)
		assert.Equal(t, []string{"python"}, client.runtimes)
	})

	t.Run("ResultsAndStderr", func(t *testing.T) {
		client := newFakeClient()
		client.execution = &sandbox.Execution{
			Stdout:  []string{"done\n"},
			Stderr:  []string{"DeprecationWarning\n"},
			Results: []string{"42", "'ok'"},
		}
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "EXECUTE_PYTHON_CODE", msgFrom("alice", "f()"), nil)
		require.NoError(t, err)

		assert.Equal(t, OutcomeSuccess, content.Outcome)
		assert.Equal(t, "Successfully executed Python code: \nf()\n\nOutput: \ndone\n"+
			"\n\nResults: \n42\n'ok'"+
			"\n\nStderr: \nDeprecationWarning\n", content.Text)
		assert.Equal(t, []string{"42", "'ok'"}, content.Data)
	})

	t.Run("ExecutionError", func(t *testing.T) {
		client := newFakeClient()
		client.execution = &sandbox.Execution{
			Stdout: []string{"before\n"},
			Error: &sandbox.ExecutionError{
				Name:      "ZeroDivisionError",
				Value:     "division by zero",
				Traceback: "Traceback (most recent call last):\n  File \"<stdin>\", line 1",
			},
		}
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "EXECUTE_PYTHON_CODE", msgFrom("alice", "1/0"), nil)
		require.NoError(t, err)

		assert.Equal(t, OutcomeExecutionError, content.Outcome)
		assert.Equal(t, "Error executing Python code: \ndivision by zero\n\nTraceback (most recent call last):\n  File \"<stdin>\", line 1", content.Text)
		assert.Equal(t, "before\n", content.Stdout)
	})

	t.Run("RunFails", func(t *testing.T) {
		client := newFakeClient()
		client.runErr = errors.New("execute code: connection reset")
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "EXECUTE_BASH_CODE", msgFrom("alice", "ls"), nil)
		require.NoError(t, err)

		assert.Equal(t, OutcomeInfrastructureError, content.Outcome)
		assert.Equal(t, "Failed to execute Bash code: \nexecute code: connection reset", content.Text)
	})

	t.Run("NoSandbox", func(t *testing.T) {
		client := newFakeClient()
		client.createErr = errors.New("quota exceeded")
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "EXECUTE_JAVA_CODE", msgFrom("alice", "System.out.println(1);"), nil)
		require.NoError(t, err)

		assert.Equal(t, OutcomeInfrastructureError, content.Outcome)
		assert.Contains(t, content.Text, "Failed to execute Java code: \n")
		assert.Contains(t, content.Text, "quota exceeded")
		assert.Empty(t, client.runs)
	})

	t.Run("EmptyCodeRejectedBeforeRemoteCall", func(t *testing.T) {
		client := newFakeClient()
		p, reg := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "EXECUTE_R_CODE", msgFrom("alice", "```r\n\n```"), nil)
		require.NoError(t, err)

		assert.Equal(t, OutcomeValidationError, content.Outcome)
		assert.Equal(t, "Failed to execute R code: \nno code found in message", content.Text)
		assert.Equal(t, 0, client.created)
		assert.Equal(t, 0, reg.Len())
	})

	t.Run("ExplicitCodeWins", func(t *testing.T) {
		client := newFakeClient()
		p, _ := newTestPlugin(t, client)

		msg := msgFrom("alice", "please run the snippet")
		msg.Code = "console.log(1)"
		_, err := p.Dispatch(ctx, "EXECUTE_JAVASCRIPT_CODE", msg, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{"console.log(1)"}, client.runs)
		assert.Equal(t, []string{"js"}, client.runtimes)
	})

	t.Run("SessionReusedAcrossLanguages", func(t *testing.T) {
		client := newFakeClient()
		p, reg := newTestPlugin(t, client)

		for _, name := range []string{"EXECUTE_PYTHON_CODE", "EXECUTE_BASH_CODE", "EXECUTE_R_CODE"} {
			_, err := p.Dispatch(ctx, name, msgFrom("alice", "x"), nil)
			require.NoError(t, err)
		}
		assert.Equal(t, 1, client.created)
		assert.Equal(t, 1, reg.Len())
		assert.Equal(t, []string{"python", "bash", "r"}, client.runtimes)
	})
}
