// ABOUTME: Tool identity, handler signature and registration types.
// ABOUTME: ToolID replaces "category:name" strings inside the process.

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultCategory is assumed when a caller names a tool without a category.
const DefaultCategory = "database"

// ErrInvalidRegistration indicates a tool was registered without a category,
// name or handler, or with a malformed parameter schema.
var ErrInvalidRegistration = errors.New("invalid tool registration")

// ErrToolNotFound indicates no tool is registered under the requested ID.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes a tool. Input is the JSON arguments object; the result is
// JSON (a string value for plain-text results).
type Handler func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

// ToolID identifies a tool within the registry.
type ToolID struct {
	Category string
	Name     string
}

// ParseToolID splits "category:name". A bare name resolves to DefaultCategory.
func ParseToolID(s string) ToolID {
	if category, name, ok := strings.Cut(s, ":"); ok {
		return ToolID{Category: category, Name: name}
	}
	return ToolID{Category: DefaultCategory, Name: s}
}

// String renders the wire form "category:name".
func (id ToolID) String() string {
	return id.Category + ":" + id.Name
}

// Tool is a registered tool.
type Tool struct {
	ID          ToolID
	Description string
	Schema      json.RawMessage
	Handler     Handler
}

// Definition describes one tool of a group passed to RegisterToolGroup.
type Definition struct {
	Name        string
	Description string
	Schema      json.RawMessage
	Handler     Handler
}

// Group is a category of tools built by a handler package.
type Group struct {
	Category string
	Tools    []Definition
}

// ToolInfo is the enumeration view of a tool returned by ListTools.
type ToolInfo struct {
	ID          string          `json:"id"`
	Category    string          `json:"category"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}

// ToolError tags a handler failure with the tool that produced it.
type ToolError struct {
	ID  ToolID
	Err error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %v", e.ID, e.Err)
}

func (e *ToolError) Unwrap() error {
	return e.Err
}

// ResultText renders a handler result as message text. JSON string results are
// unquoted; any other JSON value is returned verbatim.
func ResultText(result json.RawMessage) string {
	trimmed := strings.TrimSpace(string(result))
	if strings.HasPrefix(trimmed, `"`) {
		var s string
		if err := json.Unmarshal(result, &s); err == nil {
			return s
		}
	}
	return trimmed
}

// Text encodes a plain-text handler result.
func Text(s string) json.RawMessage {
	b, _ := json.Marshal(s)
	return b
}

// ErrorResult encodes an {"error": msg} payload for input problems the caller
// can correct.
func ErrorResult(format string, args ...any) (json.RawMessage, error) {
	return json.Marshal(map[string]string{"error": fmt.Sprintf(format, args...)})
}
