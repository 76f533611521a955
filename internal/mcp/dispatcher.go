// ABOUTME: Stateless JSON-RPC dispatcher over the tool registry.
// ABOUTME: Validates envelopes, resolves category:name and wraps results in the content envelope.

package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/2389/folio-gateway/internal/tools"
)

// Config holds configuration for the dispatcher and HTTP server.
type Config struct {
	Registry *tools.Registry
	Logger   *slog.Logger
}

// Dispatcher turns JSON-RPC requests into registry calls. It keeps no state
// between requests.
type Dispatcher struct {
	registry *tools.Registry
	logger   *slog.Logger
}

// NewDispatcher creates a dispatcher over cfg.Registry.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		registry: cfg.Registry,
		logger:   logger.With("component", "mcp"),
	}, nil
}

// Dispatch handles one raw request and always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) *JSONRPCResponse {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return errorResponse(nil, &RPCError{Code: JSONRPCParseError, Message: "Parse error"})
	}

	if len(trimmed) == 0 || trimmed[0] != '{' {
		return errorResponse(nil, &RPCError{Code: JSONRPCInvalidRequest, Message: "Invalid Request"})
	}

	var req JSONRPCRequest
	if err := json.Unmarshal(trimmed, &req); err != nil {
		// A mistyped field still leaves a usable id to echo.
		var envelope struct {
			ID json.RawMessage `json:"id"`
		}
		_ = json.Unmarshal(trimmed, &envelope)
		return errorResponse(validID(envelope.ID), &RPCError{Code: JSONRPCInvalidRequest, Message: "Invalid Request"})
	}

	return d.Handle(ctx, &req)
}

// Handle dispatches a decoded request.
func (d *Dispatcher) Handle(ctx context.Context, req *JSONRPCRequest) *JSONRPCResponse {
	id := validID(req.ID)
	if req.JSONRPC != "2.0" || req.Method == "" || id == nil {
		return errorResponse(id, &RPCError{Code: JSONRPCInvalidRequest, Message: "Invalid Request"})
	}

	d.logger.Debug("MCP request", "method", req.Method, "id", string(id))

	switch req.Method {
	case MethodCallTool:
		var params CallToolParams
		if len(req.Params) > 0 {
			if err := json.Unmarshal(req.Params, &params); err != nil {
				return errorResponse(id, &RPCError{Code: JSONRPCInvalidParams, Message: "Invalid params"})
			}
		}
		result, err := d.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			var rpcErr *RPCError
			if !errors.As(err, &rpcErr) {
				rpcErr = &RPCError{Code: JSONRPCInternalError, Message: err.Error()}
			}
			return errorResponse(id, rpcErr)
		}
		return resultResponse(id, result)

	case MethodListTools:
		return resultResponse(id, d.ListTools())

	case MethodListCategories:
		return resultResponse(id, ListCategoriesResult{Categories: d.registry.ListCategories()})

	case MethodPing:
		return resultResponse(id, "pong")

	default:
		return errorResponse(id, &RPCError{Code: JSONRPCMethodNotFound, Message: "Method not found"})
	}
}

// CallTool resolves name ("category:name", or a bare name in the default
// category) and executes it. Failures are *RPCError values: -32602 for a
// missing name or non-object arguments, -32603 for unknown tools and handler
// failures.
func (d *Dispatcher) CallTool(ctx context.Context, name string, args json.RawMessage) (*CallToolResult, error) {
	if name == "" {
		return nil, &RPCError{Code: JSONRPCInvalidParams, Message: "Invalid params: name is required"}
	}
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && string(trimmed) != "null" && trimmed[0] != '{' {
		return nil, &RPCError{Code: JSONRPCInvalidParams, Message: "Invalid params: arguments must be an object"}
	}

	id := tools.ParseToolID(name)
	result, err := d.registry.ExecuteTool(ctx, id, args)
	if err != nil {
		d.logger.Warn("tool execution failed", "tool", id.String(), "error", err)
		return nil, &RPCError{
			Code:    JSONRPCInternalError,
			Message: "Tool execution error: " + err.Error(),
			err:     err,
		}
	}

	return &CallToolResult{
		Content: []Content{{Type: "text", Text: tools.ResultText(result)}},
	}, nil
}

// ListTools returns every registered tool, sorted by name.
func (d *Dispatcher) ListTools() ListToolsResult {
	infos := d.registry.ListTools()
	entries := make([]ToolEntry, len(infos))
	for i, info := range infos {
		entries[i] = ToolEntry{
			Name:        info.ID,
			Description: info.Description,
			InputSchema: info.InputSchema,
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return ListToolsResult{Tools: entries}
}

// validID returns id if it is a JSON string or number, nil otherwise.
func validID(id json.RawMessage) json.RawMessage {
	id = bytes.TrimSpace(id)
	if len(id) == 0 {
		return nil
	}
	switch c := id[0]; {
	case c == '"', c == '-', c >= '0' && c <= '9':
		return id
	}
	return nil
}

func resultResponse(id json.RawMessage, result any) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Result: result}
}

func errorResponse(id json.RawMessage, err *RPCError) *JSONRPCResponse {
	return &JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: err}
}
