// ABOUTME: JSON-RPC 2.0 envelope types and the tool-call wire contract.
// ABOUTME: Shared by the dispatcher, HTTP and stdio transports and the proxy client.

package mcp

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MaxRequestBodySize is the maximum allowed size for request bodies (1MB).
const MaxRequestBodySize = 1 << 20

// JSON-RPC 2.0 types

// JSONRPCRequest represents a JSON-RPC 2.0 request.
type JSONRPCRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// JSONRPCResponse represents a JSON-RPC 2.0 response. A nil ID encodes as null.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

// RPCError is a JSON-RPC 2.0 error object. It is also returned as a Go error
// by CallTool so callers can read the code.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`

	err error
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("json-rpc error %d: %s", e.Code, e.Message)
}

func (e *RPCError) Unwrap() error {
	return e.err
}

// Standard JSON-RPC error codes
const (
	JSONRPCParseError     = -32700
	JSONRPCInvalidRequest = -32600
	JSONRPCMethodNotFound = -32601
	JSONRPCInvalidParams  = -32602
	JSONRPCInternalError  = -32603
)

// Methods served by the dispatcher.
const (
	MethodCallTool       = "callTool"
	MethodListTools      = "listTools"
	MethodListCategories = "listCategories"
	MethodPing           = "ping"
)

// CallToolParams are the params for callTool.
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// CallToolResult is the result for callTool.
type CallToolResult struct {
	Content []Content `json:"content"`
}

// Text joins the text of every content item.
func (r *CallToolResult) Text() string {
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	var b strings.Builder
	for _, c := range r.Content {
		b.WriteString(c.Text)
	}
	return b.String()
}

// Content represents content in a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolEntry is one tool in a listTools result. Name is "category:name".
type ToolEntry struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ListToolsResult is the result for listTools.
type ListToolsResult struct {
	Tools []ToolEntry `json:"tools"`
}

// ListCategoriesResult is the result for listCategories.
type ListCategoriesResult struct {
	Categories []string `json:"categories"`
}

// ProxyCallRequest is the body of POST /mcp/call.
type ProxyCallRequest struct {
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ProxyCallResponse is the body returned by POST /mcp/call.
type ProxyCallResponse struct {
	Status string          `json:"status,omitempty"`
	Data   *CallToolResult `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// ProxyHealthResponse is the body returned by GET /mcp/health.
type ProxyHealthResponse struct {
	Status         string   `json:"status"`
	AvailableTools []string `json:"availableTools"`
}
