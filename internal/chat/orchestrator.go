// ABOUTME: Tool-call orchestrator between a chat-completion provider and the tool client.
// ABOUTME: Loops provider -> tools -> provider until a plain answer or the iteration cap.

package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/2389/folio-gateway/internal/llm"
	"github.com/2389/folio-gateway/internal/mcp"
	"github.com/2389/folio-gateway/internal/tools"
)

// Defaults applied when Config leaves a limit at zero.
const (
	DefaultMaxIterations = 8
	DefaultMaxParallel   = 4
)

// Replies shown to the end user when a pass cannot finish.
const (
	FallbackReply      = "I encountered an error while processing your request. Please try again in a moment."
	MaxIterationsReply = "I had to stop after too many tool steps. Please try rephrasing your question."
)

// DefaultSystemPrompt opens every conversation unless Config.SystemPrompt is set.
const DefaultSystemPrompt = "You are the assistant on a personal portfolio website. " +
	"Answer questions about the site owner's experience, skills, projects and blog posts. " +
	"Look facts up with the available tools instead of guessing, and keep answers short."

// functionSeparator replaces ':' in exported function names; providers only
// accept [a-zA-Z0-9_-].
const functionSeparator = "__"

// ErrMaxIterations is returned when the provider keeps requesting tools past
// the configured number of rounds.
var ErrMaxIterations = errors.New("max tool iterations exceeded")

// ErrEmptyMessage is returned by Chat for a blank user message.
var ErrEmptyMessage = errors.New("message is required")

// Config configures an Orchestrator.
type Config struct {
	Provider llm.Provider
	Tools    mcp.Client
	Logger   *slog.Logger

	// EnableTools attaches the tool declarations to provider requests.
	EnableTools bool
	// EnableMCP allows category-qualified lookup of function names the
	// provider invents from the "category__name" or bare-name forms.
	EnableMCP bool

	MaxIterations int
	MaxParallel   int
	SystemPrompt  string
}

// Orchestrator runs tool-calling conversations. It holds no per-conversation
// state and is safe for concurrent use.
type Orchestrator struct {
	provider      llm.Provider
	tools         mcp.Client
	logger        *slog.Logger
	enableTools   bool
	enableMCP     bool
	maxIterations int
	maxParallel   int
	systemPrompt  string
}

// ToolCallRecord describes one executed tool call.
type ToolCallRecord struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
	Result    string          `json:"result"`
	Failed    bool            `json:"failed,omitempty"`
	Duration  time.Duration   `json:"-"`
}

// Result is the outcome of one orchestration pass.
type Result struct {
	Reply string
	// Messages is the full conversation, starting with the system message.
	Messages   []llm.Message
	ToolCalls  []ToolCallRecord
	Iterations int
}

// New creates an orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Provider == nil {
		return nil, errors.New("provider is required")
	}
	if cfg.EnableTools && cfg.Tools == nil {
		return nil, errors.New("tool client is required when tools are enabled")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxIterations := cfg.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	maxParallel := cfg.MaxParallel
	if maxParallel <= 0 {
		maxParallel = DefaultMaxParallel
	}
	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = DefaultSystemPrompt
	}

	return &Orchestrator{
		provider:      cfg.Provider,
		tools:         cfg.Tools,
		logger:        logger.With("component", "chat"),
		enableTools:   cfg.EnableTools,
		enableMCP:     cfg.EnableMCP,
		maxIterations: maxIterations,
		maxParallel:   maxParallel,
		systemPrompt:  systemPrompt,
	}, nil
}

// Chat answers message in the context of history. Tool listing failures,
// provider failures and the iteration cap are logged and turned into a
// user-safe reply; the returned error is only for a blank message.
func (o *Orchestrator) Chat(ctx context.Context, history []llm.Message, message string) (*Result, error) {
	if strings.TrimSpace(message) == "" {
		return nil, ErrEmptyMessage
	}

	declarations, names, err := o.declarations(ctx)
	if err != nil {
		o.logger.Error("chat tool listing failed", "error", err)
		return &Result{Reply: FallbackReply}, nil
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: o.describe(declarations)})
	for _, m := range history {
		// Only prior user and assistant turns are accepted from callers.
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
		}
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: message})

	result, err := o.run(ctx, messages, declarations, names)
	switch {
	case err == nil:
	case errors.Is(err, ErrMaxIterations):
		o.logger.Warn("tool loop stopped", "iterations", result.Iterations, "tool_calls", len(result.ToolCalls))
		result.Reply = MaxIterationsReply
	default:
		o.logger.Error("chat completion failed", "error", err, "iterations", result.Iterations)
		result.Reply = FallbackReply
	}
	return result, nil
}

// Run drives the loop over a prepared conversation and returns raw errors.
func (o *Orchestrator) Run(ctx context.Context, messages []llm.Message) (*Result, error) {
	declarations, names, err := o.declarations(ctx)
	if err != nil {
		return nil, err
	}
	return o.run(ctx, messages, declarations, names)
}

func (o *Orchestrator) run(ctx context.Context, messages []llm.Message, declarations []llm.Tool, names map[string]string) (*Result, error) {
	result := &Result{Messages: messages}

	for {
		result.Iterations++
		resp, err := o.provider.Complete(ctx, &llm.Request{
			Messages:   result.Messages,
			Tools:      declarations,
			ToolChoice: toolChoice(declarations),
		})
		if err != nil {
			return result, fmt.Errorf("completion: %w", err)
		}

		if len(resp.Message.ToolCalls) == 0 {
			reply := resp.Message
			reply.Role = llm.RoleAssistant
			result.Messages = append(result.Messages, reply)
			result.Reply = reply.Content
			return result, nil
		}

		// At most maxIterations tool rounds; asking for another ends the pass.
		if result.Iterations > o.maxIterations {
			return result, ErrMaxIterations
		}

		calls := resp.Message.ToolCalls
		for i := range calls {
			if calls[i].ID == "" {
				calls[i].ID = "call_" + uuid.NewString()
			}
			if calls[i].Type == "" {
				calls[i].Type = "function"
			}
		}
		result.Messages = append(result.Messages, llm.Message{
			Role:      llm.RoleAssistant,
			Content:   resp.Message.Content,
			ToolCalls: calls,
		})

		records := o.executeAll(ctx, calls, names)
		for _, rec := range records {
			result.Messages = append(result.Messages, llm.Message{
				Role:       llm.RoleTool,
				ToolCallID: rec.ID,
				Content:    rec.Result,
			})
		}
		result.ToolCalls = append(result.ToolCalls, records...)

		if err := ctx.Err(); err != nil {
			return result, err
		}
	}
}

// executeAll runs one provider turn's calls concurrently and returns records
// in request order.
func (o *Orchestrator) executeAll(ctx context.Context, calls []llm.ToolCall, names map[string]string) []ToolCallRecord {
	records := make([]ToolCallRecord, len(calls))

	if len(calls) == 1 {
		records[0] = o.execute(ctx, calls[0], names)
		return records
	}

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(o.maxParallel)
	for i, call := range calls {
		g.Go(func() error {
			// Each goroutine owns records[i].
			records[i] = o.execute(gCtx, call, names)
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// execute runs one call. Every failure becomes tool-message content so the
// model can correct itself on the next turn.
func (o *Orchestrator) execute(ctx context.Context, call llm.ToolCall, names map[string]string) ToolCallRecord {
	rec := ToolCallRecord{ID: call.ID, Name: call.Function.Name}

	args := json.RawMessage(strings.TrimSpace(call.Function.Arguments))
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	rec.Arguments = args

	fail := func(format string, a ...any) ToolCallRecord {
		payload, _ := tools.ErrorResult(format, a...)
		rec.Result = string(payload)
		rec.Failed = true
		return rec
	}

	if !o.enableTools {
		return fail("tools are disabled")
	}
	if !json.Valid(args) {
		return fail("arguments for %s are not valid JSON", call.Function.Name)
	}

	name, ok := o.resolve(call.Function.Name, names)
	if !ok {
		return fail("unknown tool: %s", call.Function.Name)
	}
	rec.Name = name

	if err := ctx.Err(); err != nil {
		return fail("tool %s was cancelled", name)
	}

	start := time.Now()
	text, err := o.tools.CallTool(ctx, name, args)
	rec.Duration = time.Since(start)
	if err != nil {
		o.logger.Warn("tool call failed", "tool", name, "call_id", call.ID, "error", err, "duration", rec.Duration)
		return fail("%v", err)
	}

	o.logger.Debug("tool call completed", "tool", name, "call_id", call.ID, "duration", rec.Duration)
	rec.Result = text
	return rec
}

// resolve maps a provider function name to a registry tool name: exported
// names first, then "category__name" or a bare name when MCP lookup is on.
func (o *Orchestrator) resolve(function string, names map[string]string) (string, bool) {
	if name, ok := names[function]; ok {
		return name, true
	}
	if !o.enableMCP || function == "" {
		return "", false
	}
	return tools.ParseToolID(strings.Replace(function, functionSeparator, ":", 1)).String(), true
}

// declarations lists the tools and converts them to provider functions.
// names maps each exported function name back to its "category:name".
func (o *Orchestrator) declarations(ctx context.Context) ([]llm.Tool, map[string]string, error) {
	if !o.enableTools {
		return nil, nil, nil
	}

	entries, err := o.tools.ListTools(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("listing tools: %w", err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })

	declarations := make([]llm.Tool, 0, len(entries))
	names := make(map[string]string, len(entries))
	for _, e := range entries {
		fn := FunctionName(e.Name)
		names[fn] = e.Name
		schema := e.InputSchema
		if len(schema) == 0 {
			schema = json.RawMessage(`{"type":"object","properties":{}}`)
		}
		declarations = append(declarations, llm.Tool{
			Type: "function",
			Function: llm.ToolFunction{
				Name:        fn,
				Description: e.Description,
				Parameters:  schema,
			},
		})
	}
	return declarations, names, nil
}

// describe builds the system message, naming the tool categories on offer.
func (o *Orchestrator) describe(declarations []llm.Tool) string {
	if len(declarations) == 0 {
		return o.systemPrompt
	}

	seen := make(map[string]bool)
	var categories []string
	for _, d := range declarations {
		category, _, _ := strings.Cut(d.Function.Name, functionSeparator)
		if !seen[category] {
			seen[category] = true
			categories = append(categories, category)
		}
	}
	return fmt.Sprintf("%s\n\nTool categories: %s.", o.systemPrompt, strings.Join(categories, ", "))
}

// FunctionName converts "category:name" to the provider-safe "category__name".
func FunctionName(tool string) string {
	return strings.Replace(tool, ":", functionSeparator, 1)
}

func toolChoice(declarations []llm.Tool) string {
	if len(declarations) == 0 {
		return ""
	}
	return "auto"
}
