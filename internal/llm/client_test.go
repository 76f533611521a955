// ABOUTME: Tests for the chat-completions client against an httptest server.
// ABOUTME: Covers request shape, tool-call parsing and provider error handling.

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewClient_TrimTrailingSlash(t *testing.T) {
	c := NewClient(Config{BaseURL: "https://api.test.com/", Model: "m"})
	if c.baseURL != "https://api.test.com" {
		t.Errorf("expected baseURL without trailing slash, got %q", c.baseURL)
	}
	if c.httpClient.Timeout != DefaultTimeout {
		t.Errorf("expected default timeout, got %v", c.httpClient.Timeout)
	}
}

func TestComplete_Text(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("expected /v1/chat/completions, got %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("expected bearer token, got %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if req.Model != "test-model" {
			t.Errorf("expected model test-model, got %q", req.Model)
		}
		if len(req.Messages) != 2 {
			t.Errorf("expected 2 messages, got %d", len(req.Messages))
		}
		if req.Tools != nil || req.ToolChoice != "" {
			t.Errorf("expected no tools, got %v / %q", req.Tools, req.ToolChoice)
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "cmpl-1",
			"choices": [{"index": 0, "message": {"role": "assistant", "content": "Hi there"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 2, "total_tokens": 12}
		}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, APIKey: "test-key", Model: "test-model", Temperature: 0.2})
	resp, err := c.Complete(context.Background(), &Request{Messages: []Message{
		{Role: RoleSystem, Content: "be brief"},
		{Role: RoleUser, Content: "hello"},
	}})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Message.Content != "Hi there" {
		t.Errorf("expected content 'Hi there', got %q", resp.Message.Content)
	}
	if resp.FinishReason != "stop" {
		t.Errorf("expected finish_reason stop, got %q", resp.FinishReason)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Errorf("expected 12 total tokens, got %d", resp.Usage.TotalTokens)
	}
}

func TestComplete_ToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decoding request: %v", err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Function.Name != "database__get_tables" {
			t.Errorf("unexpected tools: %+v", req.Tools)
		}
		if req.ToolChoice != "auto" {
			t.Errorf("expected tool_choice auto, got %q", req.ToolChoice)
		}

		w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": null,
			"tool_calls": [{"id": "call_1", "type": "function",
				"function": {"name": "database__get_tables", "arguments": "{}"}}]},
			"finish_reason": "tool_calls"}]}`))
	}))
	defer server.Close()

	c := NewClient(Config{BaseURL: server.URL, Model: "m"})
	resp, err := c.Complete(context.Background(), &Request{
		Messages: []Message{{Role: RoleUser, Content: "what tables?"}},
		Tools: []Tool{{Type: "function", Function: ToolFunction{
			Name:       "database__get_tables",
			Parameters: json.RawMessage(`{"type":"object","properties":{}}`),
		}}},
	})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if len(resp.Message.ToolCalls) != 1 {
		t.Fatalf("expected 1 tool call, got %d", len(resp.Message.ToolCalls))
	}
	call := resp.Message.ToolCalls[0]
	if call.ID != "call_1" || call.Function.Name != "database__get_tables" || call.Function.Arguments != "{}" {
		t.Errorf("unexpected tool call: %+v", call)
	}
}

func TestComplete_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "http status",
			status: http.StatusUnauthorized,
			body:   `{"error":{"message":"bad key"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized {
					t.Errorf("expected 401 APIError, got %v", err)
				}
			},
		},
		{
			name:   "error object",
			status: http.StatusOK,
			body:   `{"error":{"message":"model overloaded","type":"server_error"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				if !errors.As(err, &apiErr) || apiErr.Message != "model overloaded" {
					t.Errorf("expected APIError with message, got %v", err)
				}
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				if !errors.Is(err, ErrEmptyResponse) {
					t.Errorf("expected ErrEmptyResponse, got %v", err)
				}
			},
		},
		{
			name:   "invalid json",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				if err == nil {
					t.Error("expected decode error")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(Config{BaseURL: server.URL}).Complete(context.Background(), &Request{})
			tt.check(t, err)
		})
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewClient(Config{BaseURL: server.URL}).Complete(ctx, &Request{})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
