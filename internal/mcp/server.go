// ABOUTME: HTTP transport for the dispatcher plus the /mcp/call proxy contract.
// ABOUTME: JSON-RPC on POST /mcp; POST /mcp/call and GET /mcp/health for the orchestrator.

package mcp

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"

	"github.com/2389/folio-gateway/internal/tools"
)

// Server exposes a Dispatcher over HTTP.
type Server struct {
	dispatcher *Dispatcher
	registry   *tools.Registry
	logger     *slog.Logger
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	d, err := NewDispatcher(cfg)
	if err != nil {
		return nil, err
	}

	return &Server{
		dispatcher: d,
		registry:   cfg.Registry,
		logger:     d.logger,
	}, nil
}

// Dispatcher returns the dispatcher behind the server.
func (s *Server) Dispatcher() *Dispatcher {
	return s.dispatcher
}

// RegisterRoutes registers the MCP endpoints on the given ServeMux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/mcp", s.handleMCP)
	mux.HandleFunc("/mcp/call", s.handleCall)
	mux.HandleFunc("/mcp/health", s.handleHealth)
}

// handleMCP accepts one JSON-RPC request per POST.
func (s *Server) handleMCP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := readBody(r)
	if err != nil {
		s.sendJSONRPC(w, errorResponse(nil, &RPCError{Code: JSONRPCInvalidRequest, Message: err.Error()}))
		return
	}

	s.sendJSONRPC(w, s.dispatcher.Dispatch(r.Context(), body))
}

// handleCall serves the proxy contract: {tool, arguments} in,
// {status: "success", data} or {error} with a non-2xx status out.
func (s *Server) handleCall(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		s.sendJSON(w, http.StatusMethodNotAllowed, ProxyCallResponse{Error: "method not allowed"})
		return
	}

	body, err := readBody(r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		s.sendJSON(w, status, ProxyCallResponse{Error: err.Error()})
		return
	}

	var req ProxyCallRequest
	if err := json.Unmarshal(body, &req); err != nil {
		s.sendJSON(w, http.StatusBadRequest, ProxyCallResponse{Error: "invalid JSON body"})
		return
	}

	result, err := s.dispatcher.CallTool(r.Context(), req.Tool, req.Arguments)
	if err != nil {
		status := http.StatusInternalServerError
		msg := err.Error()
		var rpcErr *RPCError
		if errors.As(err, &rpcErr) {
			msg = rpcErr.Message
			if rpcErr.Code == JSONRPCInvalidParams {
				status = http.StatusBadRequest
			}
		}
		if errors.Is(err, tools.ErrToolNotFound) {
			status = http.StatusNotFound
		}
		s.sendJSON(w, status, ProxyCallResponse{Error: msg})
		return
	}

	s.sendJSON(w, http.StatusOK, ProxyCallResponse{Status: "success", Data: result})
}

// handleHealth reports liveness and the registered tool names.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	infos := s.registry.ListTools()
	names := make([]string, len(infos))
	for i, info := range infos {
		names[i] = info.ID
	}
	sort.Strings(names)

	s.sendJSON(w, http.StatusOK, ProxyHealthResponse{Status: "healthy", AvailableTools: names})
}

var errBodyTooLarge = errors.New("request body too large")

func readBody(r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r.Body, MaxRequestBodySize+1))
	if err != nil {
		return nil, errors.New("failed to read request body")
	}
	if int64(len(body)) > MaxRequestBodySize {
		return nil, errBodyTooLarge
	}
	return body, nil
}

// sendJSONRPC writes a JSON-RPC response. Protocol errors travel in the body
// with HTTP 200.
func (s *Server) sendJSONRPC(w http.ResponseWriter, resp *JSONRPCResponse) {
	s.sendJSON(w, http.StatusOK, resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("failed to encode response", "error", err)
	}
}
