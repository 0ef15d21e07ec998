package cli

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// NodeResult — результат узла из ответа запуска.
type NodeResult struct {
	Success  bool           `json:"success"`
	Outputs  map[string]any `json:"outputs"`
	Metadata map[string]any `json:"metadata,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// RunResponse — итог запуска flow.
type RunResponse struct {
	FlowID  string                `json:"flow_id"`
	Status  string                `json:"status"`
	Results map[string]NodeResult `json:"results"`
}

// NodeStatus — запись выполнения узла.
type NodeStatus struct {
	NodeID      string         `json:"node_id,omitempty"`
	Status      string         `json:"status"`
	Message     string         `json:"message,omitempty"`
	StartedAt   string         `json:"started_at,omitempty"`
	CompletedAt string         `json:"completed_at,omitempty"`
	Outputs     map[string]any `json:"outputs,omitempty"`
	Error       string         `json:"error,omitempty"`
}

// RunStats — прогресс текущего запуска.
type RunStats struct {
	TotalNodes     int    `json:"total_nodes"`
	CompletedNodes int    `json:"completed_nodes"`
	CurrentNode    string `json:"current_node,omitempty"`
}

// FlowStatusResponse — статусы узлов flow.
type FlowStatusResponse struct {
	FlowID  string                `json:"flow_id"`
	Running bool                  `json:"running"`
	Run     *RunStats             `json:"run,omitempty"`
	Nodes   map[string]NodeStatus `json:"nodes"`
}

// Port — порт типа узла.
type Port struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	DataType []string `json:"data_type"`
	Required bool     `json:"required"`
}

// NodeTypeResponse — тип узла из каталога.
type NodeTypeResponse struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Version     string `json:"version"`
	Ports       struct {
		Inputs  []Port `json:"inputs"`
		Outputs []Port `json:"outputs"`
	} `json:"ports"`
}

// --- Request types ---

// CreateRunRequest — запуск flow.
type CreateRunRequest struct {
	TriggerNodeID string         `json:"trigger_node_id,omitempty"`
	TriggerInputs map[string]any `json:"trigger_inputs"`
	Graph         any            `json:"graph,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
		NodeID  string `json:"node_id,omitempty"`
	} `json:"error"`
}

// APIError — ответ API с ошибкой.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	NodeID     string
}

func (e *APIError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s: node %s: %s", e.Code, e.NodeID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// --- Client ---

// Client — HTTP-клиент для Nodeflow API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
//
// Запуск flow синхронный и может длиться до RUN_TIMEOUT сервера,
// поэтому таймаут клиента больше.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 90 * time.Second,
		},
	}
}

// --- Runs ---

// CreateRun запускает flow и ждёт итога.
func (c *Client) CreateRun(flowID string, req CreateRunRequest) (*RunResponse, error) {
	if req.TriggerInputs == nil {
		req.TriggerInputs = map[string]any{}
	}
	var run RunResponse
	err := c.post("/api/v1/flows/"+url.PathEscape(flowID)+"/runs", req, &run)
	return &run, err
}

// --- Status ---

// FlowStatus возвращает статусы узлов flow.
func (c *Client) FlowStatus(flowID string) (*FlowStatusResponse, error) {
	var resp FlowStatusResponse
	err := c.get("/api/v1/flows/"+url.PathEscape(flowID)+"/status", &resp)
	return &resp, err
}

// NodeStatus возвращает запись выполнения узла.
func (c *Client) NodeStatus(nodeID string) (*NodeStatus, error) {
	var resp NodeStatus
	err := c.get("/api/v1/nodes/"+url.PathEscape(nodeID)+"/status", &resp)
	return &resp, err
}

// --- Node types ---

// ListNodeTypes возвращает каталог типов узлов. Если category не пустая — фильтрует.
func (c *Client) ListNodeTypes(category string) ([]NodeTypeResponse, error) {
	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}

	var types []NodeTypeResponse
	err := c.list("/api/v1/node-types", params, &types)
	return types, err
}

// GetNodeType возвращает тип узла по ID.
func (c *Client) GetNodeType(id string) (*NodeTypeResponse, error) {
	var t NodeTypeResponse
	err := c.get("/api/v1/node-types/"+url.PathEscape(id), &t)
	return &t, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return &APIError{
		StatusCode: resp.StatusCode,
		Code:       er.Error.Code,
		Message:    er.Error.Message,
		NodeID:     er.Error.NodeID,
	}
}
