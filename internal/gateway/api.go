// ABOUTME: HTTP API handlers for the chat assistant and tool listing.
// ABOUTME: Provides POST /api/chat, GET /api/tools and GET /health.

package gateway

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/2389/folio-gateway/internal/chat"
	"github.com/2389/folio-gateway/internal/llm"
	"github.com/2389/folio-gateway/internal/tools"
)

// maxChatBodySize caps POST /api/chat bodies.
const maxChatBodySize = 256 << 10

// maxHistory caps how many prior turns a client may send.
const maxHistory = 50

// ChatRequest is the JSON request body for POST /api/chat.
type ChatRequest struct {
	Message string        `json:"message"`
	History []HistoryTurn `json:"history,omitempty"`
}

// HistoryTurn is one prior turn supplied by the client.
type HistoryTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatResponse is the JSON response for POST /api/chat.
type ChatResponse struct {
	Reply     string                `json:"reply"`
	ToolCalls []chat.ToolCallRecord `json:"toolCalls"`
}

// handleChat runs one orchestration pass. Provider failures still answer 200
// with the fallback reply.
func (g *Gateway) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", "POST")
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, err := parseChatRequest(http.MaxBytesReader(w, r.Body, maxChatBodySize))
	if err != nil {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	history := make([]llm.Message, len(req.History))
	for i, turn := range req.History {
		history[i] = llm.Message{Role: turn.Role, Content: turn.Content}
	}

	result, err := g.chat.Chat(r.Context(), history, req.Message)
	if errors.Is(err, chat.ErrEmptyMessage) {
		g.sendJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		g.logger.Error("chat failed", "error", err)
		g.sendJSONError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	calls := result.ToolCalls
	if calls == nil {
		calls = []chat.ToolCallRecord{}
	}
	g.sendJSON(w, http.StatusOK, ChatResponse{Reply: result.Reply, ToolCalls: calls})
}

// handleListTools returns the registry's tools sorted by category and name.
func (g *Gateway) handleListTools(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", "GET")
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var infos []tools.ToolInfo
	for _, category := range g.registry.ListCategories() {
		infos = append(infos, g.registry.ListToolsByCategory(category)...)
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"tools": infos, "count": len(infos)})
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// parseChatRequest decodes and validates a ChatRequest.
func parseChatRequest(r io.Reader) (*ChatRequest, error) {
	var req ChatRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, errors.New("invalid JSON body")
	}

	if req.Message == "" {
		return nil, errors.New("message is required")
	}
	if len(req.History) > maxHistory {
		req.History = req.History[len(req.History)-maxHistory:]
	}

	return &req, nil
}

// sendJSONError writes a JSON error response.
func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		g.logger.Warn("failed to encode response", "error", err)
	}
}
