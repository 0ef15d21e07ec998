package compute

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

const (
	defaultClientTimeout = 60 * time.Second
	maxResponseBody      = 10 * 1024 * 1024 // 10 MB
)

// ClientConfig — конфигурация HTTP-клиента сервиса вычислений.
type ClientConfig struct {
	// BaseURL — адрес сервиса ("http://compute:8000").
	BaseURL string

	// Token — Bearer-токен. Пустой — без авторизации.
	Token string

	// Timeout — таймаут одного запроса. По умолчанию 60s.
	Timeout time.Duration

	// HTTPClient — собственный http.Client (например, в тестах).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client — реализация Service поверх HTTP API сервиса вычислений.
//
//	POST {base}/api/v1/flows/{flowId}/nodes/{nodeId}/execute
//	POST {base}/api/v1/flows/{flowId}/execute
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient создаёт HTTP-клиент.
func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultClientTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		http:    cfg.HTTPClient,
		logger:  cfg.Logger,
	}
}

// ExecuteNode выполняет узел на сервисе.
func (c *Client) ExecuteNode(ctx context.Context, req NodeRequest) (*NodeResponse, error) {
	path := fmt.Sprintf("/api/v1/flows/%s/nodes/%s/execute",
		url.PathEscape(req.FlowID), url.PathEscape(req.NodeID))

	body := map[string]any{
		"node_type": req.TypeID,
		"inputs":    req.Inputs,
		"settings":  req.Settings,
	}

	var resp NodeResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.Outputs == nil {
		resp.Outputs = make(map[string]any)
	}

	c.logger.Debug("node executed by compute service",
		slog.String("flow_id", req.FlowID),
		slog.String("node_id", req.NodeID),
		slog.String("status", resp.Status),
	)
	return &resp, nil
}

// ExecuteFlow выполняет весь flow на сервисе.
func (c *Client) ExecuteFlow(ctx context.Context, flowID string, triggerInputs map[string]any) (*FlowResponse, error) {
	path := fmt.Sprintf("/api/v1/flows/%s/execute", url.PathEscape(flowID))

	body := map[string]any{
		"trigger_inputs": triggerInputs,
	}

	var resp FlowResponse
	if err := c.post(ctx, path, body, &resp); err != nil {
		return nil, err
	}
	if resp.FlowID == "" {
		resp.FlowID = flowID
	}
	return &resp, nil
}

// post отправляет JSON и декодирует ответ в out.
func (c *Client) post(ctx context.Context, path string, body, out any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal body: %v", ErrRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrRequest, err)
	}

	if resp.StatusCode >= 400 {
		return &HTTPStatusError{StatusCode: resp.StatusCode, Body: truncate(string(respBody), 200)}
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}
	return nil
}

// truncate обрезает строку до maxLen символов.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
