// Package mcp implements the JSON-RPC tool dispatcher and its transports.
//
// # Overview
//
// The Dispatcher is a stateless bridge between JSON-RPC 2.0 requests and the
// tool registry. Each request is validated, resolved, executed and answered
// independently; nothing is remembered between requests.
//
// # Methods
//
//   - callTool {name, arguments}: run "category:name" (a bare name means the
//     database category) and return {content: [{type: "text", text}]}
//   - listTools: {tools: [{name, description, inputSchema}]}
//   - listCategories: {categories: [...]}
//   - ping: "pong"
//
// Example:
//
//	{"jsonrpc": "2.0", "method": "callTool", "params": {"name": "database:get_tables"}, "id": 1}
//
// # Errors
//
//   - -32700 Parse error: the body is not JSON (id is null)
//   - -32600 Invalid Request: jsonrpc is not "2.0", or method or id is missing
//   - -32601 Method not found
//   - -32602 Invalid params: callTool without a name
//   - -32603 Tool execution error: unknown tool or handler failure
//
// A bad tool call never takes the transport down.
//
// # Transports
//
// Server.RegisterRoutes mounts:
//
//   - POST /mcp: one JSON-RPC request per body
//   - POST /mcp/call: {tool, arguments} -> {status: "success", data} or {error}
//   - GET /mcp/health: {status: "healthy", availableTools}
//
// Dispatcher.ServeStdio serves line-delimited JSON-RPC over a reader and
// writer, one response line per request line.
//
// # Clients
//
// LocalClient calls an in-process Dispatcher. ProxyClient calls a remote
// gateway through /mcp/call and /mcp. Both satisfy Client, which is what the
// chat orchestrator consumes.
package mcp
