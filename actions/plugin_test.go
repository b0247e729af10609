package actions

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/isdmx/e2bbox/sandbox"
)

// fakeClient implements sandbox.Client for testing
type fakeClient struct {
	mu sync.Mutex

	createErr error
	runErr    error
	readErr   error
	writeErr  error
	killErr   error
	listErr   error

	execution *sandbox.Execution
	listed    []sandbox.Info
	files     map[string]string

	created  int
	runs     []string
	runtimes []string
	killed   []string
}

func newFakeClient() *fakeClient {
	return &fakeClient{files: make(map[string]string)}
}

func (f *fakeClient) Create(context.Context, map[string]string) (*sandbox.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created++
	return &sandbox.Handle{ID: fmt.Sprintf("sbx-%d", f.created)}, nil
}

func (*fakeClient) Connect(_ context.Context, id string) (*sandbox.Handle, error) {
	return &sandbox.Handle{ID: id}, nil
}

func (f *fakeClient) List(_ context.Context, filter map[string]string) ([]sandbox.Info, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	if filter != nil {
		return nil, nil
	}
	return f.listed, nil
}

func (f *fakeClient) RunCode(_ context.Context, _ *sandbox.Handle, code, runtime string) (*sandbox.Execution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, code)
	f.runtimes = append(f.runtimes, runtime)
	if f.runErr != nil {
		return nil, f.runErr
	}
	if f.execution == nil {
		return &sandbox.Execution{}, nil
	}
	return f.execution, nil
}

func (f *fakeClient) ReadFile(_ context.Context, _ *sandbox.Handle, path string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	content, ok := f.files[path]
	if !ok {
		return nil, errors.New("path not found")
	}
	return []byte(content), nil
}

func (f *fakeClient) WriteFile(_ context.Context, _ *sandbox.Handle, path string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.files[path] = string(data)
	return nil
}

func (f *fakeClient) WriteFiles(_ context.Context, _ *sandbox.Handle, files []sandbox.File) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	for _, file := range files {
		f.files[file.Path] = string(file.Data)
	}
	return nil
}

func (f *fakeClient) Kill(_ context.Context, h *sandbox.Handle) error {
	if f.killErr != nil {
		return f.killErr
	}
	f.killed = append(f.killed, h.ID)
	return nil
}

func newTestPlugin(t *testing.T, client *fakeClient) (*Plugin, *sandbox.Registry) {
	t.Helper()
	logger := zaptest.NewLogger(t)
	reg := sandbox.NewRegistry(logger, client, nil)
	p, err := New(logger, reg, nil)
	require.NoError(t, err)
	return p, reg
}

func msgFrom(owner, text string) Message {
	return Message{Text: text, Source: &Source{ID: owner}}
}

func TestNew(t *testing.T) {
	p, _ := newTestPlugin(t, newFakeClient())

	var names []string
	for _, a := range p.Actions() {
		names = append(names, a.Name)
		assert.NotEmpty(t, a.Description, a.Name)
		assert.NotNil(t, a.Validate, a.Name)
		assert.NotEmpty(t, a.Examples, a.Name)
	}
	assert.Equal(t, []string{
		"EXECUTE_PYTHON_CODE",
		"EXECUTE_JAVASCRIPT_CODE",
		"EXECUTE_BASH_CODE",
		"EXECUTE_JAVA_CODE",
		"EXECUTE_R_CODE",
		"READ_FILE",
		"WRITE_FILE",
		"LIST_SANDBOXES",
		"CLOSE_SANDBOX",
	}, names)
}

func TestLookup(t *testing.T) {
	p, _ := newTestPlugin(t, newFakeClient())

	tests := []struct {
		name     string
		expected string
	}{
		{"EXECUTE_PYTHON_CODE", "EXECUTE_PYTHON_CODE"},
		{"run_code", "EXECUTE_PYTHON_CODE"},
		{"RUN_JS", "EXECUTE_JAVASCRIPT_CODE"},
		{"EXECUTE_SHELL", "EXECUTE_BASH_CODE"},
		{"RUN_JAVAC", "EXECUTE_JAVA_CODE"},
		{"RUN_RSCRIPT", "EXECUTE_R_CODE"},
		{"readFileFromSandbox", "READ_FILE"},
		{"saveFileContent", "WRITE_FILE"},
		{"LIST_SANDBOXES_FOR_USER", "LIST_SANDBOXES"},
		{"TERMINATE_SANDBOX", "CLOSE_SANDBOX"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, ok := p.Lookup(tt.name)
			require.True(t, ok)
			assert.Equal(t, tt.expected, a.Name)
		})
	}

	_, ok := p.Lookup("EXECUTE_COBOL_CODE")
	assert.False(t, ok)

	_, err := p.Dispatch(context.Background(), "EXECUTE_COBOL_CODE", Message{Text: "x"}, nil)
	require.Error(t, err)
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	p := &Plugin{index: make(map[string]*Action)}
	require.NoError(t, p.register(&Action{Name: "A", Similes: []string{"SAME"}}))

	err := p.register(&Action{Name: "B", Similes: []string{"same"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already used by A")
}

func TestMessageOwnerID(t *testing.T) {
	assert.Equal(t, "default-user", Message{Text: "x"}.OwnerID())
	assert.Equal(t, "default-user", Message{Source: &Source{}}.OwnerID())
	assert.Equal(t, "u-7", Message{Source: &Source{ID: "u-7"}}.OwnerID())
}

func TestInvokeCallbackAndMetrics(t *testing.T) {
	client := newFakeClient()
	logger := zaptest.NewLogger(t)
	reg := sandbox.NewRegistry(logger, client, nil)
	promReg := prometheus.NewRegistry()
	metrics := NewMetrics(promReg)
	require.NotNil(t, metrics)

	p, err := New(logger, reg, metrics)
	require.NoError(t, err)

	var got []*Content
	cb := func(_ context.Context, c *Content) error {
		got = append(got, c)
		return errors.New("callback failures are only logged")
	}

	client.execution = &sandbox.Execution{Stdout: []string{"1\n"}}
	content, err := p.Dispatch(context.Background(), "RUN_PYTHON", msgFrom("alice", "print(1)"), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, content.Outcome)

	content, err = p.Dispatch(context.Background(), "EXECUTE_PYTHON_CODE", msgFrom("alice", "   "), cb)
	require.NoError(t, err)
	assert.Equal(t, OutcomeValidationError, content.Outcome)

	require.Len(t, got, 2)
	assert.Same(t, content, got[1])

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues("EXECUTE_PYTHON_CODE", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ActionsTotal.WithLabelValues("EXECUTE_PYTHON_CODE", "validation_error")))
	assert.Equal(t, 1, testutil.CollectAndCount(metrics.ActionDuration))

	assert.Nil(t, NewMetrics(nil))
}

func TestSessionActions(t *testing.T) {
	ctx := context.Background()

	t.Run("ListEmpty", func(t *testing.T) {
		p, _ := newTestPlugin(t, newFakeClient())

		content, err := p.Dispatch(ctx, "LIST_SANDBOXES", Message{Text: "List my sandboxes"}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Sandboxes for user default-user: No sandboxes found.", content.Text)
		assert.Equal(t, OutcomeSuccess, content.Outcome)
	})

	t.Run("ListEntries", func(t *testing.T) {
		client := newFakeClient()
		client.listed = []sandbox.Info{
			{
				SandboxID:  "sbx-1",
				TemplateID: "code-interpreter-v1",
				Name:       "code-interpreter-v1",
				StartedAt:  time.Date(2026, 5, 4, 3, 2, 1, 0, time.UTC),
			},
			{SandboxID: "sbx-2", TemplateID: "base"},
		}
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "LIST_SANDBOXES", msgFrom("bob", "list"), nil)
		require.NoError(t, err)
		assert.Equal(t, "Sandboxes for user bob:"+
			"\n- ID: sbx-1\n  Template: code-interpreter-v1\n  Name: code-interpreter-v1\n  Started: 2026-05-04T03:02:01Z"+
			"\n- ID: sbx-2\n  Template: base\n  Name: \n  Started: unknown", content.Text)
		assert.Equal(t, client.listed, content.Data)
		assert.Equal(t, []string{"LIST_SANDBOXES"}, content.Actions)
	})

	t.Run("ListFails", func(t *testing.T) {
		client := newFakeClient()
		client.listErr = errors.New("unauthorized")
		p, _ := newTestPlugin(t, client)

		content, err := p.Dispatch(ctx, "LIST_SANDBOXES", Message{}, nil)
		require.NoError(t, err)
		assert.Equal(t, "Error listing sandboxes: list sandboxes: unauthorized", content.Text)
		assert.Equal(t, OutcomeInfrastructureError, content.Outcome)
	})

	t.Run("Close", func(t *testing.T) {
		client := newFakeClient()
		p, reg := newTestPlugin(t, client)

		_, err := reg.GetOrCreate(ctx, "carol")
		require.NoError(t, err)

		content, err := p.Dispatch(ctx, "CLOSE_SANDBOX", msgFrom("carol", "close it"), nil)
		require.NoError(t, err)
		assert.Equal(t, "Sandbox closed for user carol", content.Text)
		assert.Equal(t, []string{"sbx-1"}, client.killed)
		assert.Equal(t, 0, reg.Len())

		content, err = p.Dispatch(ctx, "CLOSE_SANDBOX", msgFrom("carol", "again"), nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSuccess, content.Outcome)
	})

	t.Run("CloseFails", func(t *testing.T) {
		client := newFakeClient()
		p, reg := newTestPlugin(t, client)

		_, err := reg.GetOrCreate(ctx, "dave")
		require.NoError(t, err)
		client.killErr = errors.New("timeout")

		content, err := p.Dispatch(ctx, "STOP_SANDBOX", msgFrom("dave", ""), nil)
		require.NoError(t, err)
		assert.Equal(t, OutcomeInfrastructureError, content.Outcome)
		assert.Equal(t, "Error closing sandbox: kill sandbox sbx-1 for owner dave: timeout", content.Text)
		assert.Equal(t, 1, reg.Len())
	})
}
