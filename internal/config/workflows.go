// ABOUTME: Workflow catalog loading from TOML
// ABOUTME: Each [[workflow]] table becomes one webhook-backed tool

package config

import (
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Workflow describes a webhook exposed as a tool in the workflow category.
type Workflow struct {
	Name        string            `toml:"name"`
	Description string            `toml:"description"`
	URL         string            `toml:"url"`
	Method      string            `toml:"method"`
	Headers     map[string]string `toml:"headers"`
	// Parameters is the JSON Schema of the tool arguments.
	Parameters map[string]any `toml:"parameters"`
	Timeout    time.Duration  `toml:"-"`

	TimeoutRaw string `toml:"timeout"`
}

type workflowFile struct {
	Workflows []Workflow `toml:"workflow"`
}

const (
	// DefaultWorkflowTimeout applies when a workflow sets no timeout.
	DefaultWorkflowTimeout = 30 * time.Second

	// CatalogToolName is the workflow tool that lists the catalog. No
	// workflow may use it.
	CatalogToolName = "list_workflows"
)

// LoadWorkflows reads the workflow catalog at path. Environment variables in
// the format ${VAR_NAME} are expanded before decoding.
func LoadWorkflows(path string) ([]Workflow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading workflow file: %w", err)
	}
	return ParseWorkflows(data)
}

// ParseWorkflows decodes and validates a workflow catalog.
func ParseWorkflows(data []byte) ([]Workflow, error) {
	var file workflowFile
	if _, err := toml.Decode(expandEnvVars(string(data)), &file); err != nil {
		return nil, fmt.Errorf("parsing workflow file: %w", err)
	}

	seen := make(map[string]bool, len(file.Workflows))
	for i := range file.Workflows {
		w := &file.Workflows[i]
		if w.Name == "" {
			return nil, fmt.Errorf("workflow %d: name is required", i)
		}
		if w.Name == CatalogToolName {
			return nil, fmt.Errorf("workflow %s: name is reserved", w.Name)
		}
		if seen[w.Name] {
			return nil, fmt.Errorf("workflow %s: duplicate name", w.Name)
		}
		seen[w.Name] = true

		u, err := url.Parse(w.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return nil, fmt.Errorf("workflow %s: url must be an absolute http(s) URL", w.Name)
		}
		if w.Method == "" {
			w.Method = "POST"
		}

		w.Timeout = DefaultWorkflowTimeout
		if w.TimeoutRaw != "" {
			if w.Timeout, err = time.ParseDuration(w.TimeoutRaw); err != nil {
				return nil, fmt.Errorf("workflow %s: parsing timeout %q: %w", w.Name, w.TimeoutRaw, err)
			}
		}
	}

	return file.Workflows, nil
}
