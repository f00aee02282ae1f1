package n8n

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiKeyHeader   = "X-N8N-API-KEY"
	defaultTimeout = 30 * time.Second
)

// Config holds n8n API connection settings
type Config struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Validate validates the n8n configuration
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("n8n: base URL is required")
	}
	if _, err := url.Parse(c.BaseURL); err != nil {
		return fmt.Errorf("n8n: invalid base URL: %w", err)
	}
	if c.APIKey == "" {
		return fmt.Errorf("n8n: API key is required")
	}
	return nil
}

// Client talks to the n8n public REST API
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an n8n API client
func NewClient(config Config, logger *zap.Logger) (*Client, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(config.BaseURL, "/"),
		apiKey:  config.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}, nil
}

// RemoteWorkflow is a workflow as stored by the n8n instance
type RemoteWorkflow struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

// Execution is a single workflow run on the n8n instance
type Execution struct {
	ID        string     `json:"id"`
	Status    string     `json:"status"`
	Mode      string     `json:"mode"`
	StartedAt *time.Time `json:"startedAt"`
	StoppedAt *time.Time `json:"stoppedAt"`
}

// ExecutionList is a paginated execution listing
type ExecutionList struct {
	Data       []Execution `json:"data"`
	NextCursor string      `json:"nextCursor"`
}

type apiError struct {
	Message string `json:"message"`
}

// CreateWorkflow imports a workflow definition into the n8n instance and
// returns its remote ID
func (c *Client) CreateWorkflow(ctx context.Context, definition json.RawMessage) (*RemoteWorkflow, error) {
	body, err := importPayload(definition)
	if err != nil {
		return nil, err
	}

	var remote RemoteWorkflow
	if err := c.do(ctx, http.MethodPost, "/api/v1/workflows", body, &remote); err != nil {
		return nil, err
	}

	c.logger.Info("Deployed workflow to n8n",
		zap.String("remote_id", remote.ID),
		zap.String("name", remote.Name))

	return &remote, nil
}

// ActivateWorkflow activates a deployed workflow on the n8n instance
func (c *Client) ActivateWorkflow(ctx context.Context, remoteID string) error {
	path := fmt.Sprintf("/api/v1/workflows/%s/activate", url.PathEscape(remoteID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// DeactivateWorkflow deactivates a deployed workflow on the n8n instance
func (c *Client) DeactivateWorkflow(ctx context.Context, remoteID string) error {
	path := fmt.Sprintf("/api/v1/workflows/%s/deactivate", url.PathEscape(remoteID))
	return c.do(ctx, http.MethodPost, path, nil, nil)
}

// DeleteWorkflow removes a workflow from the n8n instance
func (c *Client) DeleteWorkflow(ctx context.Context, remoteID string) error {
	path := fmt.Sprintf("/api/v1/workflows/%s", url.PathEscape(remoteID))
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// ListExecutions returns recent executions of a deployed workflow
func (c *Client) ListExecutions(ctx context.Context, remoteID string, limit int) (*ExecutionList, error) {
	if limit <= 0 {
		limit = 20
	}

	query := url.Values{}
	query.Set("workflowId", remoteID)
	query.Set("limit", strconv.Itoa(limit))

	var list ExecutionList
	if err := c.do(ctx, http.MethodGet, "/api/v1/executions?"+query.Encode(), nil, &list); err != nil {
		return nil, err
	}
	return &list, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("n8n: failed to build request: %w", err)
	}
	req.Header.Set(apiKeyHeader, c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("n8n: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("n8n: failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Message != "" {
			return fmt.Errorf("n8n: %s %s returned %d: %s", method, path, resp.StatusCode, apiErr.Message)
		}
		return fmt.Errorf("n8n: %s %s returned %d", method, path, resp.StatusCode)
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("n8n: failed to decode response: %w", err)
		}
	}

	return nil
}

// importPayload trims a stored definition down to the fields the n8n
// create endpoint accepts; extra fields such as "active" or export
// metadata make the API reject the request.
func importPayload(definition json.RawMessage) ([]byte, error) {
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(definition, &doc); err != nil {
		return nil, fmt.Errorf("n8n: invalid workflow definition: %w", err)
	}

	payload := make(map[string]json.RawMessage, 5)
	for _, key := range []string{"name", "nodes", "connections", "settings", "staticData"} {
		if v, ok := doc[key]; ok {
			payload[key] = v
		}
	}
	if _, ok := payload["settings"]; !ok {
		payload["settings"] = json.RawMessage(`{}`)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("n8n: failed to encode workflow payload: %w", err)
	}
	return body, nil
}
