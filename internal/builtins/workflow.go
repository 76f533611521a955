// ABOUTME: Workflow pack exposes configured webhooks as tools.
// ABOUTME: Each call sends the tool arguments as the JSON request body.

package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/tools"
)

const maxWorkflowResponse = 64 * 1024

// WorkflowPack creates one tool per workflow plus list_workflows. A nil
// client uses http.DefaultClient.
func WorkflowPack(workflows []config.Workflow, client *http.Client) *tools.Group {
	if client == nil {
		client = http.DefaultClient
	}

	group := &tools.Group{Category: "workflow"}
	catalog := make([]map[string]string, 0, len(workflows))

	for _, w := range workflows {
		var schema json.RawMessage
		if len(w.Parameters) > 0 {
			// Parameters came from TOML so they always marshal
			schema, _ = json.Marshal(w.Parameters)
		}

		description := w.Description
		if description == "" {
			description = fmt.Sprintf("Trigger the %s workflow", w.Name)
		}

		group.Tools = append(group.Tools, tools.Definition{
			Name:        w.Name,
			Description: description,
			Schema:      schema,
			Handler:     workflowHandler(w, client),
		})
		catalog = append(catalog, map[string]string{"name": w.Name, "description": description})
	}

	group.Tools = append(group.Tools, tools.Definition{
		Name:        config.CatalogToolName,
		Description: "List the configured workflows",
		Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
		Handler: func(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
			return json.Marshal(map[string]any{"workflows": catalog, "count": len(catalog)})
		},
	})

	return group
}

func workflowHandler(w config.Workflow, client *http.Client) tools.Handler {
	return func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
		if !json.Valid(input) {
			return tools.ErrorResult("invalid input: arguments are not valid JSON")
		}

		timeout := w.Timeout
		if timeout <= 0 {
			timeout = config.DefaultWorkflowTimeout
		}
		reqCtx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		method := w.Method
		if method == "" {
			method = http.MethodPost
		}
		var body io.Reader
		if method != http.MethodGet {
			body = bytes.NewReader(input)
		}
		req, err := http.NewRequestWithContext(reqCtx, method, w.URL, body)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		for k, v := range w.Headers {
			req.Header.Set(k, v)
		}

		resp, err := client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("workflow %s: %w", w.Name, err)
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(io.LimitReader(resp.Body, maxWorkflowResponse))
		if err != nil {
			return nil, fmt.Errorf("workflow %s: reading response: %w", w.Name, err)
		}

		out := map[string]any{"status": resp.StatusCode}
		if trimmed := bytes.TrimSpace(data); json.Valid(trimmed) {
			out["response"] = json.RawMessage(trimmed)
		} else {
			out["response"] = strings.TrimSpace(string(data))
		}
		if resp.StatusCode >= 400 {
			out["error"] = fmt.Sprintf("workflow %s returned status %d", w.Name, resp.StatusCode)
		}

		return json.Marshal(out)
	}
}
