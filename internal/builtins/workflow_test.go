// ABOUTME: Tests for workflow pack and RegisterAll.
// ABOUTME: Webhooks are served by httptest.

package builtins

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/tools"
)

func TestWorkflowPack_CallsWebhook(t *testing.T) {
	var gotBody map[string]any
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"queued":true}`))
	}))
	defer server.Close()

	group := WorkflowPack([]config.Workflow{{
		Name:       "send_contact_email",
		URL:        server.URL,
		Headers:    map[string]string{"Authorization": "Bearer tok"},
		Parameters: map[string]any{"type": "object", "properties": map[string]any{"email": map[string]any{"type": "string"}}},
	}}, server.Client())

	require.Len(t, group.Tools, 2)
	assert.Equal(t, "workflow", group.Category)
	assert.JSONEq(t, `{"type":"object","properties":{"email":{"type":"string"}}}`, string(group.Tools[0].Schema))

	resp := callTool(t, findHandler(group, "send_contact_email"), map[string]any{"email": "a@example.com"})
	assert.Equal(t, float64(200), resp["status"])
	assert.Equal(t, map[string]any{"queued": true}, resp["response"])
	assert.Nil(t, resp["error"])
	assert.Equal(t, "a@example.com", gotBody["email"])
	assert.Equal(t, "Bearer tok", gotAuth)
}

func TestWorkflowPack_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer server.Close()

	group := WorkflowPack([]config.Workflow{{Name: "flaky", URL: server.URL}}, server.Client())

	resp := callTool(t, findHandler(group, "flaky"), map[string]any{})
	assert.Equal(t, float64(http.StatusBadGateway), resp["status"])
	assert.Equal(t, "boom", resp["response"])
	assert.Contains(t, resp["error"], "returned status 502")
}

func TestWorkflowPack_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	group := WorkflowPack([]config.Workflow{{Name: "gone", URL: url}}, nil)
	_, err := findHandler(group, "gone")(context.Background(), json.RawMessage(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "workflow gone")
}

func TestWorkflowPack_List(t *testing.T) {
	group := WorkflowPack([]config.Workflow{
		{Name: "a", Description: "first", URL: "http://localhost"},
		{Name: "b", URL: "http://localhost"},
	}, nil)

	resp := callTool(t, findHandler(group, "list_workflows"), map[string]any{})
	assert.Equal(t, float64(2), resp["count"])
	workflows := resp["workflows"].([]any)
	assert.Equal(t, "first", workflows[0].(map[string]any)["description"])
	assert.Equal(t, "Trigger the b workflow", workflows[1].(map[string]any)["description"])
}

func TestRegisterAll(t *testing.T) {
	s := newTestStore(t)
	seedSkills(t, s)
	reg := tools.NewRegistry(slog.Default())

	deps := DepsFromConfig(config.Default().Tools)
	deps.SQL = s
	deps.Profile = s
	deps.Workflows = []config.Workflow{{Name: "notify", URL: "http://localhost:1"}}

	require.NoError(t, RegisterAll(reg, deps))
	assert.Equal(t, []string{"database", "profile", "system", "workflow"}, reg.ListCategories())

	_, ok := reg.GetTool(tools.ToolID{Category: "database", Name: "insert_row"})
	assert.False(t, ok, "writes are off by default")

	// Bare names resolve to the database category
	result, err := reg.ExecuteTool(context.Background(), tools.ParseToolID("count_rows"), json.RawMessage(`{"table":"skills"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"table":"skills","count":3}`, string(result))

	result, err = reg.ExecuteTool(context.Background(), tools.ParseToolID("profile:get_skills"), json.RawMessage(`{"category":"frontend"}`))
	require.NoError(t, err)
	assert.Contains(t, string(result), `"CSS"`)
}

func TestRegisterAll_WithoutStores(t *testing.T) {
	reg := tools.NewRegistry(slog.Default())
	require.NoError(t, RegisterAll(reg, Deps{}))
	assert.Equal(t, []string{"system", "workflow"}, reg.ListCategories())
}
