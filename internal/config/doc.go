// Package config handles configuration loading for folio-gateway.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// Every key is optional: values missing from the file keep the Default value,
// and Validate rejects combinations the gateway cannot run with.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from FOLIO_CONFIG environment variable
//  2. $XDG_CONFIG_HOME/folio/gateway.yaml
//  3. ~/.config/folio/gateway.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	llm:
//	  api_key: "${OPENAI_API_KEY}"
//
// Unset variables expand to the empty string.
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	tools:
//	  shell:
//	    timeout: "10s"
//
// # Workflow Catalog
//
// Webhook-backed tools are declared in a separate TOML file named by
// tools.workflows.file:
//
//	[[workflow]]
//	name = "send_contact_email"
//	url = "https://hooks.example.com/contact"
//	timeout = "5s"
//
//	[workflow.parameters]
//	type = "object"
//
// LoadWorkflows validates names, URLs and timeouts and defaults the method
// to POST.
package config
