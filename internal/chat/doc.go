// Package chat runs tool-calling conversations against a chat-completion
// provider.
//
// An Orchestrator builds the message list (system prompt, prior turns, the
// new user message), declares every registered tool as a provider function
// named "category__name", and submits it. While the provider answers with
// tool calls, the orchestrator records an assistant message with those calls,
// executes them through an mcp.Client (concurrently, bounded by MaxParallel)
// and appends one "tool" message per call in request order, then resubmits.
// The first answer without tool calls is the reply.
//
// Tool failures never abort a pass: they become {"error": "..."} tool content
// the model can react to. Provider failures and the iteration cap do end the
// pass; Chat logs them and substitutes a generic reply so the cause never
// reaches the end user.
package chat
