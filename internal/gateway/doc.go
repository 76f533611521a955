// Package gateway wires the folio-gateway components and serves them over HTTP.
//
// # Wiring
//
// New opens the SQLite store, registers the built-in tool groups (database,
// profile, system, workflow) in a tools.Registry, puts an mcp.Server in front
// of it and builds a chat.Orchestrator. The orchestrator reaches tools through
// the in-process dispatcher, or through a remote gateway's /mcp/call when
// chat.mcp_url is configured.
//
// # HTTP API
//
//   - POST /api/chat {message, history?} -> {reply, toolCalls}
//   - GET /api/tools - registered tools with their schemas
//   - POST /mcp - JSON-RPC 2.0 dispatcher
//   - POST /mcp/call, GET /mcp/health - tool proxy contract
//   - GET /health - liveness
//
// Provider failures on /api/chat still answer 200 with a generic reply; the
// cause is only logged.
//
// # Lifecycle
//
// Run blocks until its context is canceled, then shuts the HTTP server down
// with a 5 second deadline and closes the store.
package gateway
