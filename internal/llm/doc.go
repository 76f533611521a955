// Package llm is a client for OpenAI-compatible chat-completion endpoints.
//
// Client sends the running conversation plus function declarations to
// POST {base_url}/v1/chat/completions and returns the first choice's message.
// The message either carries text or a list of tool calls; the chat package
// decides what to do with it.
//
// Provider is the interface the orchestrator consumes, so tests can script
// responses without a network.
package llm
