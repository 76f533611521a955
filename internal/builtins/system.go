// ABOUTME: System pack provides allow-listed command execution, sandboxed file reads and network checks.
// ABOUTME: Commands run without a shell; file paths are resolved before the allowed-directory check.

package builtins

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/2389/folio-gateway/internal/tools"
)

// ErrCommandTimeout indicates execute_command exceeded its deadline.
var ErrCommandTimeout = errors.New("command timed out")

const (
	DefaultCommandTimeout = 10 * time.Second
	MaxCommandTimeout     = 60 * time.Second
	DefaultMaxFileBytes   = 64 * 1024
	DefaultNetworkTimeout = 5 * time.Second

	maxCommandOutput = 64 * 1024
	maxDirEntries    = 500
)

// shellOperators are rejected because commands never pass through a shell.
const shellOperators = ";|&$><`\n"

// argPolicy describes the arguments an allowed command may not receive.
// Short options are matched anywhere inside a bundle ("-sO") and with an
// attached value ("-o/tmp/x"). Long options are also matched by any
// abbreviation getopt would accept.
type argPolicy struct {
	shorts string
	longs  []string
	// words are single-dash options matched exactly, as find spells them.
	words []string
	// maxOperands limits non-option arguments; zero means no limit.
	maxOperands int
	// valueShorts take the next argument as their value.
	valueShorts string
	// noLocalFiles rejects arguments naming local files to read or upload.
	noLocalFiles bool
}

// argPolicies cover the commands that can write files, run other programs or
// read outside the sandbox through their arguments.
var argPolicies = map[string]argPolicy{
	"find": {
		words: []string{"-exec", "-execdir", "-ok", "-okdir", "-delete", "-fprint", "-fprint0", "-fprintf", "-fls"},
	},
	"curl": {
		shorts: "oOTKDc",
		longs: []string{
			"--output", "--output-dir", "--remote-name", "--remote-name-all", "--remote-header-name",
			"--upload-file", "--config", "--dump-header", "--cookie-jar", "--trace", "--trace-ascii",
			"--stderr", "--libcurl", "--etag-save", "--hsts", "--alt-svc", "--create-dirs",
		},
		noLocalFiles: true,
	},
	"sort": {
		shorts: "oT",
		longs:  []string{"--output", "--temporary-directory", "--compress-program"},
	},
	"uniq": {
		maxOperands: 1,
		valueShorts: "fsw",
	},
}

// check returns the first argument the policy forbids, or "".
func (p argPolicy) check(args []string) string {
	operands := 0
	skipValue := false
	for _, arg := range args {
		if skipValue {
			skipValue = false
			continue
		}
		if p.noLocalFiles && referencesLocalFile(arg) {
			return arg
		}

		switch {
		case arg == "-" || !strings.HasPrefix(arg, "-"):
			operands++
			if p.maxOperands > 0 && operands > p.maxOperands {
				return arg
			}
		case strings.HasPrefix(arg, "--"):
			name, _, _ := strings.Cut(arg, "=")
			if len(name) > 2 && slices.ContainsFunc(p.longs, func(l string) bool { return strings.HasPrefix(l, name) }) {
				return name
			}
		default:
			word, _, _ := strings.Cut(arg, "=")
			if slices.Contains(p.words, word) {
				return word
			}
			if strings.ContainsAny(arg[1:], p.shorts) {
				return arg
			}
			if len(arg) == 2 && strings.ContainsRune(p.valueShorts, rune(arg[1])) {
				skipValue = true
			}
		}
	}
	return ""
}

// referencesLocalFile reports file: URLs and curl's @file and <file value forms.
func referencesLocalFile(arg string) bool {
	if strings.Contains(strings.ToLower(arg), "file:") {
		return true
	}
	return strings.HasPrefix(arg, "@") || strings.HasPrefix(arg, "<") ||
		strings.Contains(arg, "=@") || strings.Contains(arg, "=<") ||
		(strings.HasPrefix(arg, "-") && !strings.HasPrefix(arg, "--") && strings.Contains(arg, "@"))
}

// SystemOptions configures the system pack.
type SystemOptions struct {
	AllowedCommands []string
	CommandTimeout  time.Duration
	WorkDir         string
	// AllowedDirs are the directory trees read_file and list_directory may
	// access. Empty disables file access.
	AllowedDirs    []string
	MaxFileBytes   int64
	NetworkTimeout time.Duration
	HTTPClient     *http.Client
	Resolver       *net.Resolver
}

// SystemPack creates the system pack.
func SystemPack(opts SystemOptions) *tools.Group {
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = DefaultCommandTimeout
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.NetworkTimeout <= 0 {
		opts.NetworkTimeout = DefaultNetworkTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Resolver == nil {
		opts.Resolver = net.DefaultResolver
	}

	s := &systemHandlers{
		opts:    opts,
		allowed: make(map[string]bool, len(opts.AllowedCommands)),
		started: time.Now(),
	}
	for _, c := range opts.AllowedCommands {
		s.allowed[c] = true
	}
	for _, dir := range opts.AllowedDirs {
		if root, err := resolvePath(dir); err == nil {
			s.roots = append(s.roots, root)
		}
	}

	return &tools.Group{
		Category: "system",
		Tools: []tools.Definition{
			{
				Name:        "execute_command",
				Description: fmt.Sprintf("Run an allow-listed command without a shell. Allowed: %s", strings.Join(opts.AllowedCommands, ", ")),
				Schema:      json.RawMessage(`{"type":"object","properties":{"command":{"type":"string","description":"Command line, e.g. \"ls -la\""},"timeout":{"type":"number","description":"Timeout in seconds (max 60)"}},"required":["command"]}`),
				Handler:     s.ExecuteCommand,
			},
			{
				Name:        "read_file",
				Description: "Read a UTF-8 text file inside an allowed directory",
				Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"max_bytes":{"type":"integer","minimum":1}},"required":["path"]}`),
				Handler:     s.ReadFile,
			},
			{
				Name:        "list_directory",
				Description: "List entries of a directory inside an allowed directory",
				Schema:      json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
				Handler:     s.ListDirectory,
			},
			{
				Name:        "system_info",
				Description: "Report host platform, runtime and uptime information",
				Schema:      json.RawMessage(`{"type":"object","properties":{}}`),
				Handler:     s.SystemInfo,
			},
			{
				Name:        "check_url",
				Description: "Request an http(s) URL and report status and latency",
				Schema:      json.RawMessage(`{"type":"object","properties":{"url":{"type":"string"}},"required":["url"]}`),
				Handler:     s.CheckURL,
			},
			{
				Name:        "dns_lookup",
				Description: "Resolve a host name to its addresses",
				Schema:      json.RawMessage(`{"type":"object","properties":{"host":{"type":"string"}},"required":["host"]}`),
				Handler:     s.DNSLookup,
			},
		},
	}
}

type systemHandlers struct {
	opts    SystemOptions
	allowed map[string]bool
	roots   []string
	started time.Time
}

type commandInput struct {
	Command string  `json:"command"`
	Timeout float64 `json:"timeout"`
}

func (s *systemHandlers) ExecuteCommand(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in commandInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}

	fields := strings.Fields(in.Command)
	if len(fields) == 0 {
		return tools.ErrorResult("missing required argument: command")
	}
	if strings.ContainsAny(in.Command, shellOperators) {
		return tools.ErrorResult("shell operators are not supported; run one command at a time")
	}
	name, args := fields[0], fields[1:]
	if strings.ContainsRune(name, '/') {
		return tools.ErrorResult("command must be a bare name, got %q", name)
	}
	if !s.allowed[name] {
		return tools.ErrorResult("command %q is not allowed", name)
	}
	if denied := argPolicies[name].check(args); denied != "" {
		return tools.ErrorResult("argument %q is not allowed for %s", denied, name)
	}

	timeout := s.opts.CommandTimeout
	if in.Timeout > 0 {
		seconds := min(in.Timeout, MaxCommandTimeout.Seconds())
		timeout = time.Duration(seconds * float64(time.Second))
	}
	timeout = min(timeout, MaxCommandTimeout)

	cmdCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(cmdCtx, name, args...)
	cmd.Dir = s.opts.WorkDir
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = time.Second

	err := cmd.Run()
	if cmdCtx.Err() == context.DeadlineExceeded {
		return nil, fmt.Errorf("%w after %s: %s", ErrCommandTimeout, timeout, in.Command)
	}

	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		exitCode = exitErr.ExitCode()
	case errors.Is(err, exec.ErrNotFound):
		return tools.ErrorResult("command %q is not installed", name)
	default:
		return nil, fmt.Errorf("running %s: %w", name, err)
	}

	return json.Marshal(map[string]any{
		"command":  in.Command,
		"stdout":   truncateOutput(stdout.Bytes()),
		"stderr":   truncateOutput(stderr.Bytes()),
		"exitCode": exitCode,
	})
}

type fileInput struct {
	Path     string `json:"path"`
	MaxBytes int64  `json:"max_bytes"`
}

func (s *systemHandlers) ReadFile(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	path, problem := s.allowedPath(in.Path)
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.IsDir() {
		return tools.ErrorResult("%s is a directory; use list_directory", in.Path)
	}

	limit := s.opts.MaxFileBytes
	if in.MaxBytes > 0 {
		limit = min(in.MaxBytes, limit)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	truncated := info.Size() > int64(len(data))
	if truncated {
		// Drop a rune split by the limit
		for i := 0; i < utf8.UTFMax-1 && len(data) > 0 && !utf8.Valid(data); i++ {
			data = data[:len(data)-1]
		}
	}
	if !utf8.Valid(data) {
		return tools.ErrorResult("%s is not a UTF-8 text file", in.Path)
	}

	return json.Marshal(map[string]any{
		"path":      path,
		"content":   string(data),
		"size":      info.Size(),
		"truncated": truncated,
	})
}

func (s *systemHandlers) ListDirectory(_ context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in fileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	path, problem := s.allowedPath(in.Path)
	if problem != "" {
		return tools.ErrorResult("%s", problem)
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if !info.IsDir() {
		return tools.ErrorResult("%s is not a directory", in.Path)
	}

	dirEntries, err := os.ReadDir(path)
	if err != nil {
		return nil, fmt.Errorf("reading directory %s: %w", path, err)
	}

	entries := make([]map[string]any, 0, min(len(dirEntries), maxDirEntries))
	for i, e := range dirEntries {
		if i == maxDirEntries {
			break
		}
		entry := map[string]any{"name": e.Name(), "type": entryType(e)}
		if info, err := e.Info(); err == nil && info.Mode().IsRegular() {
			entry["size"] = info.Size()
		}
		entries = append(entries, entry)
	}

	return json.Marshal(map[string]any{
		"path":      path,
		"entries":   entries,
		"count":     len(entries),
		"truncated": len(dirEntries) > maxDirEntries,
	})
}

func (s *systemHandlers) SystemInfo(_ context.Context, _ json.RawMessage) (json.RawMessage, error) {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return json.Marshal(map[string]any{
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"hostname":   hostname,
		"cpus":       runtime.NumCPU(),
		"goVersion":  runtime.Version(),
		"goroutines": runtime.NumGoroutine(),
		"memory": map[string]any{
			"allocBytes": mem.Alloc,
			"sysBytes":   mem.Sys,
		},
		"uptime": time.Since(s.started).Round(time.Second).String(),
		"time":   time.Now().Format(time.RFC3339),
	})
}

type urlInput struct {
	URL string `json:"url"`
}

func (s *systemHandlers) CheckURL(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in urlInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	u, err := url.Parse(in.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return tools.ErrorResult("url must be an absolute http or https URL")
	}

	reqCtx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	start := time.Now()
	resp, err := s.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting %s: %w", u, err)
	}
	defer resp.Body.Close()
	// Drain a bounded amount so latency covers the first body bytes
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	latency := time.Since(start)

	return json.Marshal(map[string]any{
		"url":           u.String(),
		"status":        resp.Status,
		"statusCode":    resp.StatusCode,
		"ok":            resp.StatusCode < 400,
		"latencyMs":     latency.Milliseconds(),
		"contentType":   resp.Header.Get("Content-Type"),
		"contentLength": resp.ContentLength,
	})
}

type hostInput struct {
	Host string `json:"host"`
}

func (s *systemHandlers) DNSLookup(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
	var in hostInput
	if err := json.Unmarshal(input, &in); err != nil {
		return tools.ErrorResult("invalid input: %v", err)
	}
	host := strings.TrimSpace(in.Host)
	if host == "" {
		return tools.ErrorResult("missing required argument: host")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, s.opts.NetworkTimeout)
	defer cancel()

	addrs, err := s.opts.Resolver.LookupHost(lookupCtx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return tools.ErrorResult("no such host: %s", host)
		}
		return nil, fmt.Errorf("looking up %s: %w", host, err)
	}

	return json.Marshal(map[string]any{"host": host, "addresses": addrs})
}

// allowedPath resolves p (following symlinks) and checks it lies inside an
// allowed directory. A non-empty problem is reported to the caller.
func (s *systemHandlers) allowedPath(p string) (string, string) {
	if p == "" {
		return "", "missing required argument: path"
	}
	if len(s.roots) == 0 {
		return "", "file access is disabled"
	}
	resolved, err := resolvePath(p)
	if errors.Is(err, fs.ErrNotExist) {
		return "", fmt.Sprintf("%s does not exist", p)
	}
	if err != nil {
		return "", fmt.Sprintf("cannot resolve %s", p)
	}
	for _, root := range s.roots {
		if within(root, resolved) {
			return resolved, ""
		}
	}
	return "", fmt.Sprintf("path %s is outside the allowed directories", p)
}

func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return filepath.EvalSymlinks(abs)
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}

func entryType(e fs.DirEntry) string {
	switch {
	case e.Type()&fs.ModeSymlink != 0:
		return "symlink"
	case e.IsDir():
		return "dir"
	default:
		return "file"
	}
}

func truncateOutput(b []byte) string {
	if len(b) <= maxCommandOutput {
		return string(b)
	}
	return string(b[:maxCommandOutput]) + "\n... (output truncated)"
}
