// ABOUTME: Thread-safe registry mapping category:name to tool handlers.
// ABOUTME: Handles registration, lookup, enumeration and execution of tools.

package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/google/uuid"
)

// emptySchema is used when a tool registers without a parameter schema.
var emptySchema = json.RawMessage(`{"type":"object","properties":{}}`)

// Registry maintains the process-wide catalog of tools.
type Registry struct {
	mu         sync.RWMutex
	tools      map[ToolID]*Tool
	categories map[string]struct{}
	logger     *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		tools:      make(map[ToolID]*Tool),
		categories: make(map[string]struct{}),
		logger:     logger,
	}
}

// RegisterTool inserts or overwrites the tool at category:name.
// Returns ErrInvalidRegistration if category, name or handler is missing or the
// schema is not an object schema.
func (r *Registry) RegisterTool(category, name string, handler Handler, schema json.RawMessage, description string) error {
	if category == "" || name == "" || handler == nil {
		return fmt.Errorf("%w: category, name and handler are required (got %q:%q)", ErrInvalidRegistration, category, name)
	}

	schema, err := checkSchema(schema)
	if err != nil {
		return fmt.Errorf("%w: %s:%s: %v", ErrInvalidRegistration, category, name, err)
	}

	id := ToolID{Category: category, Name: name}

	r.mu.Lock()
	_, replaced := r.tools[id]
	r.tools[id] = &Tool{
		ID:          id,
		Description: description,
		Schema:      schema,
		Handler:     handler,
	}
	r.categories[category] = struct{}{}
	total := len(r.tools)
	r.mu.Unlock()

	r.logger.Debug("tool registered",
		"tool", id.String(),
		"replaced", replaced,
		"total_tools", total,
	)
	return nil
}

// RegisterToolGroup registers every definition under one category. The first
// invalid definition aborts the call; definitions before it stay registered.
func (r *Registry) RegisterToolGroup(category string, defs []Definition) error {
	for _, def := range defs {
		if err := r.RegisterTool(category, def.Name, def.Handler, def.Schema, def.Description); err != nil {
			return err
		}
	}

	r.logger.Info("=== TOOL GROUP REGISTERED ===",
		"category", category,
		"tool_count", len(defs),
	)
	return nil
}

// RegisterGroup registers a Group built by a handler package.
func (r *Registry) RegisterGroup(g *Group) error {
	return r.RegisterToolGroup(g.Category, g.Tools)
}

// GetTool returns the tool registered under id.
func (r *Registry) GetTool(id ToolID) (*Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tool, ok := r.tools[id]
	return tool, ok
}

// ExecuteTool runs the tool registered under id with the given arguments.
// Returns an error wrapping ErrToolNotFound if nothing is registered, or a
// *ToolError if the handler fails.
func (r *Registry) ExecuteTool(ctx context.Context, id ToolID, args json.RawMessage) (json.RawMessage, error) {
	tool, ok := r.GetTool(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, id)
	}

	if len(args) == 0 || string(args) == "null" {
		args = json.RawMessage(`{}`)
	}

	requestID := uuid.New().String()
	start := time.Now()
	r.logger.Info("→ dispatching tool",
		"tool", id.String(),
		"request_id", requestID,
	)

	result, err := tool.Handler(ctx, args)
	if err != nil {
		r.logger.Warn("tool error",
			"tool", id.String(),
			"request_id", requestID,
			"duration", time.Since(start),
			"error", err,
		)
		return nil, &ToolError{ID: id, Err: err}
	}

	r.logger.Info("← tool responded",
		"tool", id.String(),
		"request_id", requestID,
		"duration", time.Since(start),
	)
	return result, nil
}

// ListTools returns a snapshot of every registered tool. Order is unspecified.
func (r *Registry) ListTools() []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	infos := make([]ToolInfo, 0, len(r.tools))
	for _, tool := range r.tools {
		infos = append(infos, tool.info())
	}
	return infos
}

// ListToolsByCategory returns the tools registered under category.
func (r *Registry) ListToolsByCategory(category string) []ToolInfo {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var infos []ToolInfo
	for id, tool := range r.tools {
		if id.Category == category {
			infos = append(infos, tool.info())
		}
	}
	return infos
}

// ListCategories returns the known category names, sorted.
func (r *Registry) ListCategories() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	categories := make([]string, 0, len(r.categories))
	for c := range r.categories {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// FindByName returns every tool whose bare name matches, across categories.
func (r *Registry) FindByName(name string) []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var found []*Tool
	for id, tool := range r.tools {
		if id.Name == name {
			found = append(found, tool)
		}
	}
	return found
}

func (t *Tool) info() ToolInfo {
	return ToolInfo{
		ID:          t.ID.String(),
		Category:    t.ID.Category,
		Name:        t.ID.Name,
		Description: t.Description,
		InputSchema: t.Schema,
	}
}

// checkSchema verifies the schema is an object schema and returns it, or the
// empty object schema when none was given.
func checkSchema(raw json.RawMessage) (json.RawMessage, error) {
	if len(raw) == 0 {
		return emptySchema, nil
	}

	var s jsonschema.Schema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}

	isObject := s.Type == "object"
	for _, t := range s.Types {
		if t == "object" {
			isObject = true
		}
	}
	if !isObject && len(s.Properties) == 0 {
		return nil, fmt.Errorf("schema must declare type object or properties")
	}
	return raw, nil
}
