package e2b

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/isdmx/e2bbox/config"
	"github.com/isdmx/e2bbox/sandbox"
)

const (
	// DefaultDomain is the public E2B domain.
	DefaultDomain = "e2b.app"
	// DefaultTemplate ships the code interpreter used by RunCode.
	DefaultTemplate = "code-interpreter-v1"

	defaultSandboxTimeoutSec = 3600
	defaultRequestTimeout    = 5 * time.Minute

	envdPort        = 49983
	interpreterPort = 49999
	envdUser        = "user"
)

// Config holds connection settings for the E2B service
type Config struct {
	APIKey string
	Domain string
	// APIURL overrides the control plane URL, https://api.<Domain> by default.
	APIURL            string
	Template          string
	SandboxTimeoutSec int
	RequestTimeout    time.Duration
}

// APIError is a non-2xx response from any E2B endpoint
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("e2b api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the E2B control plane and to sandboxes' data planes
type Client struct {
	logger       *zap.Logger
	cfg          Config
	httpClient   *http.Client
	dataPlaneURL func(port int, h *sandbox.Handle) string
}

var _ sandbox.Client = (*Client)(nil)

// Option defines a functional option for Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client used for every request
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithDataPlaneURL overrides how in-sandbox service URLs are built
func WithDataPlaneURL(fn func(port int, h *sandbox.Handle) string) Option {
	return func(c *Client) {
		c.dataPlaneURL = fn
	}
}

// NewClient creates an E2B client. An API key is required.
func NewClient(logger *zap.Logger, cfg Config, opts ...Option) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("e2b api key is required")
	}
	if cfg.Domain == "" {
		cfg.Domain = DefaultDomain
	}
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api." + cfg.Domain
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	if cfg.Template == "" {
		cfg.Template = DefaultTemplate
	}
	if cfg.SandboxTimeoutSec <= 0 {
		cfg.SandboxTimeoutSec = defaultSandboxTimeoutSec
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}

	c := &Client{
		logger:     logger.With(zap.String("component", "e2b")),
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
	}
	c.dataPlaneURL = c.defaultDataPlaneURL

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// NewFromConfig creates a client from the application configuration
func NewFromConfig(logger *zap.Logger, cfg *config.Config) (*Client, error) {
	return NewClient(logger, Config{
		APIKey:            cfg.E2B.APIKey,
		Domain:            cfg.E2B.Domain,
		APIURL:            cfg.E2B.APIURL,
		Template:          cfg.E2B.Template,
		SandboxTimeoutSec: cfg.E2B.SandboxTimeoutSec,
		RequestTimeout:    cfg.GetRequestTimeout(),
	})
}

func (c *Client) defaultDataPlaneURL(port int, h *sandbox.Handle) string {
	domain := h.Domain
	if domain == "" {
		domain = c.cfg.Domain
	}
	return fmt.Sprintf("https://%d-%s.%s", port, h.ID, domain)
}

type createSandboxRequest struct {
	TemplateID string            `json:"templateID"`
	Timeout    int               `json:"timeout"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	Secure     bool              `json:"secure"`
}

type connectSandboxRequest struct {
	Timeout int `json:"timeout"`
}

type sandboxResponse struct {
	SandboxID       string `json:"sandboxID"`
	TemplateID      string `json:"templateID"`
	EnvdAccessToken string `json:"envdAccessToken"`
	Domain          string `json:"domain,omitempty"`
}

type listedSandbox struct {
	SandboxID  string            `json:"sandboxID"`
	TemplateID string            `json:"templateID"`
	Alias      string            `json:"alias,omitempty"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	StartedAt  string            `json:"startedAt"`
	EndAt      string            `json:"endAt"`
	State      string            `json:"state"`
}

// Create starts a sandbox from the configured template
func (c *Client) Create(ctx context.Context, metadata map[string]string) (*sandbox.Handle, error) {
	req := createSandboxRequest{
		TemplateID: c.cfg.Template,
		Timeout:    c.cfg.SandboxTimeoutSec,
		Metadata:   metadata,
		Secure:     true,
	}

	var resp sandboxResponse
	if err := c.controlPlaneCall(ctx, http.MethodPost, "/sandboxes", req, &resp); err != nil {
		return nil, fmt.Errorf("create sandbox: %w", err)
	}

	h := c.handle(resp)
	if h.TemplateID == "" {
		h.TemplateID = c.cfg.Template
	}
	h.CreatedAt = time.Now()

	c.logger.Debug("sandbox created",
		zap.String("sandbox_id", h.ID),
		zap.String("template_id", h.TemplateID),
		zap.Int("timeout_sec", c.cfg.SandboxTimeoutSec))
	return h, nil
}

// Connect attaches to a running or paused sandbox and extends its timeout
func (c *Client) Connect(ctx context.Context, sandboxID string) (*sandbox.Handle, error) {
	req := connectSandboxRequest{Timeout: c.cfg.SandboxTimeoutSec}

	var resp sandboxResponse
	path := "/sandboxes/" + url.PathEscape(sandboxID) + "/connect"
	if err := c.controlPlaneCall(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("connect sandbox %s: %w", sandboxID, err)
	}
	if resp.SandboxID == "" {
		resp.SandboxID = sandboxID
	}

	h := c.handle(resp)
	c.logger.Debug("sandbox connected", zap.String("sandbox_id", h.ID))
	return h, nil
}

func (c *Client) handle(resp sandboxResponse) *sandbox.Handle {
	domain := resp.Domain
	if domain == "" {
		domain = c.cfg.Domain
	}
	return &sandbox.Handle{
		ID:          resp.SandboxID,
		TemplateID:  resp.TemplateID,
		Domain:      domain,
		AccessToken: resp.EnvdAccessToken,
	}
}

// List returns sandboxes whose metadata contains every pair in filter
func (c *Client) List(ctx context.Context, filter map[string]string) ([]sandbox.Info, error) {
	path := "/v2/sandboxes"
	if len(filter) > 0 {
		md := url.Values{}
		for k, v := range filter {
			md.Set(k, v)
		}
		q := url.Values{}
		q.Set("metadata", md.Encode())
		path += "?" + q.Encode()
	}

	var listed []listedSandbox
	if err := c.controlPlaneCall(ctx, http.MethodGet, path, nil, &listed); err != nil {
		return nil, fmt.Errorf("list sandboxes: %w", err)
	}

	infos := make([]sandbox.Info, 0, len(listed))
	for _, s := range listed {
		infos = append(infos, sandbox.Info{
			SandboxID:  s.SandboxID,
			TemplateID: s.TemplateID,
			Name:       s.Alias,
			StartedAt:  parseTime(s.StartedAt),
			EndAt:      parseTime(s.EndAt),
			State:      s.State,
			Metadata:   s.Metadata,
		})
	}
	return infos, nil
}

func parseTime(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Kill terminates the sandbox. A sandbox that is already gone is not an error.
func (c *Client) Kill(ctx context.Context, h *sandbox.Handle) error {
	err := c.controlPlaneCall(ctx, http.MethodDelete, "/sandboxes/"+url.PathEscape(h.ID), nil, nil)
	if err != nil {
		if IsNotFound(err) {
			c.logger.Debug("sandbox already gone", zap.String("sandbox_id", h.ID))
			return nil
		}
		return fmt.Errorf("kill sandbox %s: %w", h.ID, err)
	}

	c.logger.Debug("sandbox killed", zap.String("sandbox_id", h.ID))
	return nil
}

// controlPlaneCall sends a JSON request to the control plane and decodes the response into result
func (c *Client) controlPlaneCall(ctx context.Context, method, path string, body, result any) error {
	var bodyReader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.APIURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-API-Key", c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := checkStatus(resp.StatusCode, respBody); err != nil {
		return err
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func checkStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	var payload struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Message != "" {
		msg = payload.Message
	}
	return &APIError{StatusCode: status, Message: msg}
}
