// ABOUTME: Tool clients used by the orchestrator: in-process and remote over HTTP.
// ABOUTME: ProxyClient speaks the /mcp/call contract and lists tools via JSON-RPC.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
)

// Client lists and calls tools. CallTool returns the text of the content
// envelope.
type Client interface {
	ListTools(ctx context.Context) ([]ToolEntry, error)
	CallTool(ctx context.Context, name string, args json.RawMessage) (string, error)
}

var (
	_ Client = (*LocalClient)(nil)
	_ Client = (*ProxyClient)(nil)
)

// LocalClient calls tools through an in-process Dispatcher.
type LocalClient struct {
	dispatcher *Dispatcher
}

// NewLocalClient wraps d.
func NewLocalClient(d *Dispatcher) *LocalClient {
	return &LocalClient{dispatcher: d}
}

// ListTools returns the registered tools.
func (c *LocalClient) ListTools(_ context.Context) ([]ToolEntry, error) {
	return c.dispatcher.ListTools().Tools, nil
}

// CallTool executes name through the dispatcher.
func (c *LocalClient) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	result, err := c.dispatcher.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	return result.Text(), nil
}

// ProxyClient calls tools on a remote gateway.
type ProxyClient struct {
	baseURL string
	http    *http.Client
	nextID  atomic.Int64
}

// NewProxyClient creates a client for the gateway at baseURL. A nil client
// uses http.DefaultClient.
func NewProxyClient(baseURL string, client *http.Client) *ProxyClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &ProxyClient{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    client,
	}
}

// CallTool posts {tool, arguments} to /mcp/call.
func (c *ProxyClient) CallTool(ctx context.Context, name string, args json.RawMessage) (string, error) {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}

	var resp ProxyCallResponse
	status, err := c.do(ctx, http.MethodPost, "/mcp/call", ProxyCallRequest{Tool: name, Arguments: args}, &resp)
	if err != nil {
		return "", err
	}
	if status < 200 || status >= 300 || resp.Error != "" {
		msg := resp.Error
		if msg == "" {
			msg = http.StatusText(status)
		}
		return "", fmt.Errorf("tool %s: %s (status %d)", name, msg, status)
	}
	if resp.Data == nil {
		return "", fmt.Errorf("tool %s: response has no data", name)
	}
	return resp.Data.Text(), nil
}

// ListTools calls listTools over JSON-RPC at /mcp.
func (c *ProxyClient) ListTools(ctx context.Context) ([]ToolEntry, error) {
	req := JSONRPCRequest{
		JSONRPC: "2.0",
		ID:      json.RawMessage(fmt.Sprint(c.nextID.Add(1))),
		Method:  MethodListTools,
	}

	var resp struct {
		Result *ListToolsResult `json:"result"`
		Error  *RPCError        `json:"error"`
	}
	if _, err := c.do(ctx, http.MethodPost, "/mcp", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, resp.Error
	}
	if resp.Result == nil {
		return nil, errors.New("listTools: empty result")
	}
	return resp.Result.Tools, nil
}

// Health returns the remote tool names from /mcp/health.
func (c *ProxyClient) Health(ctx context.Context) ([]string, error) {
	var resp ProxyHealthResponse
	status, err := c.do(ctx, http.MethodGet, "/mcp/health", nil, &resp)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK || resp.Status != "healthy" {
		return nil, fmt.Errorf("gateway unhealthy: status %d", status)
	}
	return resp.AvailableTools, nil
}

func (c *ProxyClient) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxRequestBodySize))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("reading response: %w", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding response (status %d): %w", resp.StatusCode, err)
	}
	return resp.StatusCode, nil
}
