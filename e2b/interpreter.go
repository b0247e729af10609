package e2b

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/sandbox"
)

// maxEventSize bounds a single streamed event, large results included
const maxEventSize = 16 << 20

type executeRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
}

// executionEvent is one line of the interpreter's NDJSON stream
type executionEvent struct {
	Type         string `json:"type"`
	Text         string `json:"text"`
	IsMainResult bool   `json:"is_main_result"`
	Name         string `json:"name"`
	Value        string `json:"value"`
	Traceback    string `json:"traceback"`
}

// RunCode executes code in the sandbox's code interpreter and collects the
// streamed output. A language-level error is reported in Execution.Error, not
// as a returned error.
func (c *Client) RunCode(ctx context.Context, h *sandbox.Handle, code, runtime string) (*sandbox.Execution, error) {
	raw, err := json.Marshal(executeRequest{Code: code, Language: runtime})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := c.dataPlaneRequest(ctx, http.MethodPost, interpreterPort, h, "/execute", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute code: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("execute code: %w", checkStatus(resp.StatusCode, body))
	}

	exec, err := decodeExecution(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("execute code: %w", err)
	}

	c.logger.Debug("code executed",
		zap.String("sandbox_id", h.ID),
		zap.String("runtime", runtime),
		zap.Int("stdout_chunks", len(exec.Stdout)),
		zap.Bool("has_error", exec.Error != nil))
	return exec, nil
}

func decodeExecution(r io.Reader) (*sandbox.Execution, error) {
	exec := &sandbox.Execution{}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventSize)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var ev executionEvent
		if err := json.Unmarshal(line, &ev); err != nil {
			return nil, fmt.Errorf("failed to decode event: %w", err)
		}

		switch ev.Type {
		case "stdout":
			exec.Stdout = append(exec.Stdout, ev.Text)
		case "stderr":
			exec.Stderr = append(exec.Stderr, ev.Text)
		case "result":
			if ev.Text != "" {
				exec.Results = append(exec.Results, ev.Text)
			}
		case "error":
			exec.Error = &sandbox.ExecutionError{
				Name:      ev.Name,
				Value:     ev.Value,
				Traceback: ev.Traceback,
			}
		case "end_of_execution":
			return exec, nil
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			return nil, fmt.Errorf("event exceeds %d bytes: %w", maxEventSize, err)
		}
		return nil, err
	}
	return exec, nil
}
