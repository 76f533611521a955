// Package tools implements the tool registry shared by the JSON-RPC dispatcher
// and the chat orchestrator.
//
// # Overview
//
// A tool is a named, schema-described operation grouped under a category.
// Tools are addressed by a ToolID ({Category, Name}), rendered on the wire as
// "category:name". The Registry maps ToolIDs to handlers and is populated once
// at process start, usually one category at a time:
//
//	reg := tools.NewRegistry(logger)
//	err := reg.RegisterToolGroup("database", []tools.Definition{
//	    {Name: "get_tables", Description: "List tables", Handler: h.GetTables},
//	})
//
// # Handlers
//
// A Handler receives the raw JSON arguments and returns a raw JSON result.
// Handlers report user-input problems as an {"error": "..."} payload with a nil
// error, and reserve the error return for unexpected failures. ExecuteTool wraps
// those failures in a ToolError that names the tool.
//
// # Schemas
//
// Parameter schemas are opaque JSON Schema documents. They are checked
// structurally at registration (an object type or a properties map) and passed
// through untouched to listTools and to the chat provider.
//
// # Concurrency
//
// Registration is expected at boot. Reads take a shared lock, so the registry is
// safe for concurrent dispatch afterwards.
package tools
