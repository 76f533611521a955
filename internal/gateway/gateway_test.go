// ABOUTME: Tests for gateway wiring, the chat API and server lifecycle
// ABOUTME: Uses an in-memory store and a scripted chat provider

package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/2389/folio-gateway/internal/chat"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/llm"
	"github.com/2389/folio-gateway/internal/store"
)

// testConfig creates a default config with an in-memory store and a free port.
func testConfig(t *testing.T) *config.Config {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to find available HTTP port: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	cfg := config.Default()
	cfg.Server.HTTPAddr = addr
	cfg.Database.Path = ":memory:"
	return cfg
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeProvider replays scripted responses and records each request.
type fakeProvider struct {
	mu        sync.Mutex
	responses []*llm.Response
	err       error
	requests  []*llm.Request
}

func (p *fakeProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llm.Response{Message: llm.Message{Role: llm.RoleAssistant, Content: "no more script"}}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

func newTestGateway(t *testing.T, cfg *config.Config, provider llm.Provider) *Gateway {
	t.Helper()
	gw, err := NewWithOptions(cfg, testLogger(), Options{Provider: provider})
	if err != nil {
		t.Fatalf("NewWithOptions() failed: %v", err)
	}
	t.Cleanup(func() { gw.Close() })
	return gw
}

func doJSON(t *testing.T, h http.Handler, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var out map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
			t.Fatalf("decoding response %q: %v", rec.Body.String(), err)
		}
	}
	return rec, out
}

func TestGatewayNew(t *testing.T) {
	gw := newTestGateway(t, testConfig(t), &fakeProvider{})

	got := gw.Registry().ListCategories()
	want := []string{"database", "profile", "system", "workflow"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("categories = %v, want %v", got, want)
	}
	if gw.Chat() == nil || gw.Dispatcher() == nil || gw.Store() == nil {
		t.Error("gateway components should not be nil")
	}
}

func TestGatewayNew_Errors(t *testing.T) {
	t.Run("bad driver", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Database.Driver = "postgres"
		if _, err := New(cfg, testLogger()); err == nil {
			t.Error("expected error for unsupported driver")
		}
	})

	t.Run("missing workflow file", func(t *testing.T) {
		cfg := testConfig(t)
		cfg.Tools.Workflows.File = filepath.Join(t.TempDir(), "missing.toml")
		if _, err := New(cfg, testLogger()); err == nil {
			t.Error("expected error for missing workflow catalog")
		}
	})
}

func TestGateway_Workflows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflows.toml")
	catalog := `
[[workflow]]
name = "contact_form"
description = "Send a contact request"
url = "https://hooks.example.com/contact"
`
	if err := os.WriteFile(path, []byte(catalog), 0600); err != nil {
		t.Fatalf("writing catalog: %v", err)
	}

	cfg := testConfig(t)
	cfg.Tools.Workflows.File = path
	gw := newTestGateway(t, cfg, &fakeProvider{})

	names := make(map[string]bool)
	for _, info := range gw.Registry().ListToolsByCategory("workflow") {
		names[info.Name] = true
	}
	if !names["contact_form"] || !names["list_workflows"] {
		t.Errorf("workflow tools = %v", names)
	}
}

func TestHealth(t *testing.T) {
	gw := newTestGateway(t, testConfig(t), &fakeProvider{})

	rec := httptest.NewRecorder()
	gw.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Errorf("health = %d %q", rec.Code, rec.Body.String())
	}
}

func TestChatAPI_ToolRoundTrip(t *testing.T) {
	provider := &fakeProvider{responses: []*llm.Response{
		{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "profile__get_skills", Arguments: `{"category":"backend"}`},
		}}}},
		{Message: llm.Message{Role: llm.RoleAssistant, Content: "The backend skill listed is Go."}},
	}}
	gw := newTestGateway(t, testConfig(t), provider)

	if err := gw.Store().CreateSkill(context.Background(), &store.Skill{Name: "Go", Category: "backend", Proficiency: 90}); err != nil {
		t.Fatalf("CreateSkill: %v", err)
	}

	rec, out := doJSON(t, gw.Handler(), http.MethodPost, "/api/chat",
		`{"message":"What backend skills?","history":[{"role":"user","content":"hi"},{"role":"assistant","content":"hello"}]}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out["reply"] != "The backend skill listed is Go." {
		t.Errorf("reply = %v", out["reply"])
	}

	calls, ok := out["toolCalls"].([]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("toolCalls = %v", out["toolCalls"])
	}
	call := calls[0].(map[string]any)
	if call["name"] != "profile:get_skills" {
		t.Errorf("tool name = %v", call["name"])
	}
	if !strings.Contains(call["result"].(string), `"Go"`) {
		t.Errorf("tool result = %v", call["result"])
	}

	// system + 2 history + user on the first request
	if n := len(provider.requests[0].Messages); n != 4 {
		t.Errorf("first request had %d messages, want 4", n)
	}
	if len(provider.requests[0].Tools) == 0 {
		t.Error("expected tool declarations on the first request")
	}
}

func TestChatAPI_ProviderFailure(t *testing.T) {
	provider := &fakeProvider{err: errors.New("upstream 502: secret internals")}
	gw := newTestGateway(t, testConfig(t), provider)

	rec, out := doJSON(t, gw.Handler(), http.MethodPost, "/api/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["reply"] != chat.FallbackReply {
		t.Errorf("reply = %v", out["reply"])
	}
	if strings.Contains(rec.Body.String(), "secret internals") {
		t.Error("provider error leaked into the response")
	}
	if calls, ok := out["toolCalls"].([]any); !ok || len(calls) != 0 {
		t.Errorf("toolCalls = %v, want empty list", out["toolCalls"])
	}
}

func TestChatAPI_RemoteGatewayDown(t *testing.T) {
	remote := httptest.NewServer(http.NotFoundHandler())
	remoteURL := remote.URL
	remote.Close()

	cfg := testConfig(t)
	cfg.Chat.MCPURL = remoteURL

	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&syncWriter{w: &logs}, nil))
	provider := &fakeProvider{}
	gw, err := NewWithOptions(cfg, logger, Options{Provider: provider})
	if err != nil {
		t.Fatalf("NewWithOptions() failed: %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	rec, out := doJSON(t, gw.Handler(), http.MethodPost, "/api/chat", `{"message":"hello"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out["reply"] != chat.FallbackReply {
		t.Errorf("reply = %v", out["reply"])
	}
	if len(provider.requests) != 0 {
		t.Errorf("provider called %d times without tools", len(provider.requests))
	}

	text := logs.String()
	if !strings.Contains(text, "remote tool gateway unreachable") {
		t.Errorf("missing startup health warning in logs: %s", text)
	}
	if !strings.Contains(text, "chat tool listing failed") {
		t.Errorf("missing listing failure in logs: %s", text)
	}
}

func TestChatAPI_RemoteGateway(t *testing.T) {
	backend := newTestGateway(t, testConfig(t), &fakeProvider{})
	remote := httptest.NewServer(backend.Handler())
	t.Cleanup(remote.Close)

	cfg := testConfig(t)
	cfg.Chat.MCPURL = remote.URL

	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&syncWriter{w: &logs}, nil))
	provider := &fakeProvider{responses: []*llm.Response{
		{Message: llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{{
			ID:       "call_1",
			Type:     "function",
			Function: llm.FunctionCall{Name: "database__get_tables", Arguments: `{}`},
		}}}},
		{Message: llm.Message{Role: llm.RoleAssistant, Content: "Four tables."}},
	}}
	gw, err := NewWithOptions(cfg, logger, Options{Provider: provider})
	if err != nil {
		t.Fatalf("NewWithOptions() failed: %v", err)
	}
	t.Cleanup(func() { gw.Close() })

	if !strings.Contains(logs.String(), "chat tools served by remote gateway") {
		t.Errorf("missing remote gateway log: %s", logs.String())
	}

	rec, out := doJSON(t, gw.Handler(), http.MethodPost, "/api/chat", `{"message":"which tables?"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if out["reply"] != "Four tables." {
		t.Errorf("reply = %v", out["reply"])
	}
	calls, ok := out["toolCalls"].([]any)
	if !ok || len(calls) != 1 {
		t.Fatalf("toolCalls = %v", out["toolCalls"])
	}
	if result := calls[0].(map[string]any)["result"].(string); !strings.Contains(result, "skills") {
		t.Errorf("remote tool result = %s", result)
	}
}

// syncWriter serializes writes from concurrent handlers.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func TestChatAPI_BadRequests(t *testing.T) {
	gw := newTestGateway(t, testConfig(t), &fakeProvider{})

	tests := []struct {
		name   string
		method string
		body   string
		status int
		errMsg string
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed, "method not allowed"},
		{"invalid json", http.MethodPost, "{", http.StatusBadRequest, "invalid JSON body"},
		{"missing message", http.MethodPost, `{"history":[]}`, http.StatusBadRequest, "message is required"},
		{"blank message", http.MethodPost, `{"message":"   "}`, http.StatusBadRequest, "message is required"},
		{"too large", http.MethodPost, `{"message":"` + strings.Repeat("x", maxChatBodySize) + `"}`, http.StatusBadRequest, "too large"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, out := doJSON(t, gw.Handler(), tt.method, "/api/chat", tt.body)
			if rec.Code != tt.status {
				t.Errorf("status = %d, want %d", rec.Code, tt.status)
			}
			if msg, _ := out["error"].(string); !strings.Contains(msg, tt.errMsg) {
				t.Errorf("error = %q, want it to contain %q", msg, tt.errMsg)
			}
		})
	}
}

func TestParseChatRequest_TrimsHistory(t *testing.T) {
	turns := make([]string, 0, maxHistory+10)
	for range maxHistory + 10 {
		turns = append(turns, `{"role":"user","content":"x"}`)
	}
	body := `{"message":"hi","history":[` + strings.Join(turns, ",") + `]}`

	req, err := parseChatRequest(strings.NewReader(body))
	if err != nil {
		t.Fatalf("parseChatRequest: %v", err)
	}
	if len(req.History) != maxHistory {
		t.Errorf("history length = %d, want %d", len(req.History), maxHistory)
	}
}

func TestListToolsAPI(t *testing.T) {
	gw := newTestGateway(t, testConfig(t), &fakeProvider{})

	rec, out := doJSON(t, gw.Handler(), http.MethodGet, "/api/tools", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	list := out["tools"].([]any)
	if int(out["count"].(float64)) != len(list) || len(list) == 0 {
		t.Fatalf("count = %v, tools = %d", out["count"], len(list))
	}
	first := list[0].(map[string]any)
	if first["category"] != "database" {
		t.Errorf("first tool category = %v, want database", first["category"])
	}
}

func TestMCPRoutesMounted(t *testing.T) {
	gw := newTestGateway(t, testConfig(t), &fakeProvider{})

	rec, out := doJSON(t, gw.Handler(), http.MethodPost, "/mcp/call",
		`{"tool":"database:count_rows","arguments":{"table":"skills"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if out["status"] != "success" {
		t.Errorf("status field = %v", out["status"])
	}

	_, out = doJSON(t, gw.Handler(), http.MethodPost, "/mcp", `{"jsonrpc":"2.0","method":"ping","id":7}`)
	if out["result"] != "pong" {
		t.Errorf("ping result = %v", out["result"])
	}
}

func TestGatewayRun(t *testing.T) {
	cfg := testConfig(t)
	gw, err := NewWithOptions(cfg, testLogger(), Options{Provider: &fakeProvider{}})
	if err != nil {
		t.Fatalf("NewWithOptions() failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- gw.Run(ctx) }()

	url := "http://" + cfg.Server.HTTPAddr + "/health"
	var resp *http.Response
	for range 50 {
		resp, err = http.Get(url)
		if err == nil {
			break
		}
		time.Sleep(20 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("server never came up: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("health status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run() returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancel")
	}
}

func TestAppendCloseError(t *testing.T) {
	errs := appendCloseError(nil, "ok", nil)
	if len(errs) != 0 {
		t.Errorf("expected no errors, got %v", errs)
	}
	errs = appendCloseError(errs, "store close", io.ErrClosedPipe)
	if len(errs) != 1 || !errors.Is(errs[0], io.ErrClosedPipe) {
		t.Errorf("expected wrapped error, got %v", errs)
	}
}
