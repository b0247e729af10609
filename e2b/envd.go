package e2b

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/sandbox"
)

// ReadFile returns the contents of path inside the sandbox
func (c *Client) ReadFile(ctx context.Context, h *sandbox.Handle, path string) ([]byte, error) {
	q := url.Values{}
	q.Set("path", path)
	q.Set("username", envdUser)

	req, err := c.dataPlaneRequest(ctx, http.MethodGet, envdPort, h, "/files?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	if err := checkStatus(resp.StatusCode, data); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	c.logger.Debug("file read",
		zap.String("sandbox_id", h.ID),
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return data, nil
}

// WriteFile writes data to path inside the sandbox, creating parent directories
func (c *Client) WriteFile(ctx context.Context, h *sandbox.Handle, path string, data []byte) error {
	if err := c.upload(ctx, h, sandbox.File{Path: path, Data: data}); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	c.logger.Debug("file written",
		zap.String("sandbox_id", h.ID),
		zap.String("path", path),
		zap.Int("bytes", len(data)))
	return nil
}

// WriteFiles writes files in order, one upload per file. envd keeps only the
// base name of a multipart filename, so every target path goes in the query.
// It stops at the first failure.
func (c *Client) WriteFiles(ctx context.Context, h *sandbox.Handle, files []sandbox.File) error {
	for i, f := range files {
		if err := c.upload(ctx, h, f); err != nil {
			return fmt.Errorf("write %s (file %d of %d): %w", f.Path, i+1, len(files), err)
		}
	}

	c.logger.Debug("files written", zap.String("sandbox_id", h.ID), zap.Int("count", len(files)))
	return nil
}

// upload posts f as a multipart part named "file" to /files?path=<f.Path>
func (c *Client) upload(ctx context.Context, h *sandbox.Handle, f sandbox.File) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile("file", f.Path)
	if err != nil {
		return fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(f.Data); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to close multipart writer: %w", err)
	}

	q := url.Values{}
	q.Set("path", f.Path)
	q.Set("username", envdUser)

	req, err := c.dataPlaneRequest(ctx, http.MethodPost, envdPort, h, "/files?"+q.Encode(), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read upload response (status %d): %w", resp.StatusCode, err)
	}
	return checkStatus(resp.StatusCode, body)
}

func (c *Client) dataPlaneRequest(ctx context.Context, method string, port int, h *sandbox.Handle, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.dataPlaneURL(port, h)+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if h.AccessToken != "" {
		req.Header.Set("X-Access-Token", h.AccessToken)
	}
	return req, nil
}
