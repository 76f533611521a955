// ABOUTME: Configuration loading and parsing for folio-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete folio-gateway configuration
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	LLM      LLMConfig      `yaml:"llm"`
	Chat     ChatConfig     `yaml:"chat"`
	Tools    ToolsConfig    `yaml:"tools"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // "sqlite" (modernc) or "sqlite3" (mattn, cgo)
	Path   string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// LLMConfig holds the chat-completions provider configuration
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url"`
	APIKey      string        `yaml:"api_key"`
	Model       string        `yaml:"model"`
	Temperature float64       `yaml:"temperature"`
	MaxTokens   int           `yaml:"max_tokens"`
	Timeout     time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// ChatConfig holds orchestrator configuration
type ChatConfig struct {
	EnableTools       bool   `yaml:"enable_tools"`
	EnableMCP         bool   `yaml:"enable_mcp"`
	MaxToolIterations int    `yaml:"max_tool_iterations"`
	MaxParallelTools  int    `yaml:"max_parallel_tools"`
	SystemPrompt      string `yaml:"system_prompt"`
	// MCPURL is the base URL of a remote gateway serving /mcp/call. Empty means
	// the local registry.
	MCPURL string `yaml:"mcp_url"`
}

// ToolsConfig holds per-category tool configuration
type ToolsConfig struct {
	Database  DatabaseToolsConfig `yaml:"database"`
	Shell     ShellConfig         `yaml:"shell"`
	Files     FilesConfig         `yaml:"files"`
	Network   NetworkConfig       `yaml:"network"`
	Workflows WorkflowsConfig     `yaml:"workflows"`
}

// DatabaseToolsConfig controls the database category
type DatabaseToolsConfig struct {
	AllowWrites bool `yaml:"allow_writes"`
	MaxRows     int  `yaml:"max_rows"`
}

// ShellConfig controls execute_command
type ShellConfig struct {
	AllowedCommands []string      `yaml:"allowed_commands"`
	WorkDir         string        `yaml:"work_dir"`
	Timeout         time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// FilesConfig controls read_file and list_directory
type FilesConfig struct {
	AllowedDirs []string `yaml:"allowed_dirs"`
	MaxBytes    int64    `yaml:"max_bytes"`
}

// NetworkConfig controls check_url and dns_lookup
type NetworkConfig struct {
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// WorkflowsConfig points at the workflow catalog
type WorkflowsConfig struct {
	File string `yaml:"file"`
}

// DefaultAllowedCommands is the shell allow-list used when none is configured.
var DefaultAllowedCommands = []string{
	"ls", "pwd", "echo", "date", "cat", "grep", "find",
	"head", "tail", "wc", "sort", "uniq", "curl",
}

// Default returns a configuration usable without a file: local HTTP listener,
// in-memory database and every default tool limit.
func Default() *Config {
	cfg := &Config{
		Server:   ServerConfig{HTTPAddr: "127.0.0.1:8080"},
		Database: DatabaseConfig{Driver: "sqlite", Path: ":memory:"},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
		LLM: LLMConfig{
			BaseURL:     "https://api.openai.com",
			Model:       "gpt-4o-mini",
			Temperature: 0.7,
			MaxTokens:   1024,
			TimeoutRaw:  "60s",
		},
		Chat: ChatConfig{
			EnableTools:       true,
			EnableMCP:         true,
			MaxToolIterations: 8,
			MaxParallelTools:  4,
		},
		Tools: ToolsConfig{
			Database: DatabaseToolsConfig{MaxRows: 500},
			Shell: ShellConfig{
				AllowedCommands: append([]string(nil), DefaultAllowedCommands...),
				TimeoutRaw:      "10s",
			},
			Files:   FilesConfig{MaxBytes: 64 * 1024},
			Network: NetworkConfig{TimeoutRaw: "5s"},
		},
	}
	// Defaults always parse
	_ = parseDurations(cfg)
	return cfg
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Keys missing from the file keep their Default values.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data)
}

// Parse builds a Config from YAML content layered over Default.
func Parse(data []byte) (*Config, error) {
	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	switch c.Database.Driver {
	case "sqlite", "sqlite3":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"sqlite3\", got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format must be \"text\" or \"json\", got %q", c.Logging.Format)
	}

	if c.Chat.MaxToolIterations < 1 {
		return fmt.Errorf("chat.max_tool_iterations must be at least 1")
	}
	if c.Chat.MaxParallelTools < 1 {
		return fmt.Errorf("chat.max_parallel_tools must be at least 1")
	}
	if c.Tools.Database.MaxRows < 1 {
		return fmt.Errorf("tools.database.max_rows must be at least 1")
	}
	if c.Tools.Files.MaxBytes < 1 {
		return fmt.Errorf("tools.files.max_bytes must be at least 1")
	}
	if c.Tools.Shell.Timeout <= 0 {
		return fmt.Errorf("tools.shell.timeout must be positive")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	fields := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"llm.timeout", cfg.LLM.TimeoutRaw, &cfg.LLM.Timeout},
		{"tools.shell.timeout", cfg.Tools.Shell.TimeoutRaw, &cfg.Tools.Shell.Timeout},
		{"tools.network.timeout", cfg.Tools.Network.TimeoutRaw, &cfg.Tools.Network.Timeout},
	}

	for _, f := range fields {
		if f.raw == "" {
			continue
		}
		d, err := time.ParseDuration(f.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", f.name, f.raw, err)
		}
		*f.dst = d
	}

	return nil
}
