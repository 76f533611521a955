// ABOUTME: Gateway wiring: store, tool registry, MCP server and chat orchestrator
// ABOUTME: Owns the HTTP server lifecycle and graceful shutdown

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/2389/folio-gateway/internal/builtins"
	"github.com/2389/folio-gateway/internal/chat"
	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/llm"
	"github.com/2389/folio-gateway/internal/mcp"
	"github.com/2389/folio-gateway/internal/store"
	"github.com/2389/folio-gateway/internal/tools"
)

const (
	// shutdownTimeout bounds graceful HTTP shutdown.
	shutdownTimeout = 5 * time.Second

	remoteHealthTimeout = 3 * time.Second
)

// Gateway owns the folio-gateway components.
type Gateway struct {
	config     *config.Config
	store      *store.SQLiteStore
	registry   *tools.Registry
	mcpServer  *mcp.Server
	chat       *chat.Orchestrator
	httpServer *http.Server
	logger     *slog.Logger
}

// Options overrides collaborators New would otherwise build from config.
type Options struct {
	// Provider replaces the OpenAI-compatible client built from cfg.LLM.
	Provider llm.Provider
	// HTTPClient is used by check_url, workflow tools and the proxy client.
	HTTPClient *http.Client
}

// New builds a gateway from configuration.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	return NewWithOptions(cfg, logger, Options{})
}

// NewWithOptions builds a gateway, letting callers inject collaborators.
func NewWithOptions(cfg *config.Config, logger *slog.Logger, opts Options) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s, err := store.Open(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	registry, err := buildRegistry(cfg, s, opts.HTTPClient, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{Registry: registry, Logger: logger})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}

	orchestrator, err := buildOrchestrator(cfg, mcpServer.Dispatcher(), opts, logger)
	if err != nil {
		s.Close()
		return nil, err
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		registry:  registry,
		mcpServer: mcpServer,
		chat:      orchestrator,
		logger:    logger,
	}

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           gw.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logger.Info("gateway initialized",
		"tools", len(registry.ListTools()),
		"categories", registry.ListCategories(),
		"chat_tools", cfg.Chat.EnableTools,
	)
	return gw, nil
}

// buildRegistry registers the built-in tool groups.
func buildRegistry(cfg *config.Config, s *store.SQLiteStore, client *http.Client, logger *slog.Logger) (*tools.Registry, error) {
	var workflows []config.Workflow
	if path := cfg.Tools.Workflows.File; path != "" {
		var err error
		workflows, err = config.LoadWorkflows(path)
		if err != nil {
			return nil, fmt.Errorf("loading workflows: %w", err)
		}
	}

	deps := builtins.DepsFromConfig(cfg.Tools)
	deps.SQL = s
	deps.Profile = s
	deps.Workflows = workflows
	deps.HTTPClient = client

	registry := tools.NewRegistry(logger)
	if err := builtins.RegisterAll(registry, deps); err != nil {
		return nil, err
	}
	return registry, nil
}

// buildOrchestrator picks the tool client (in-process, or remote when
// chat.mcp_url is set) and the provider.
func buildOrchestrator(cfg *config.Config, d *mcp.Dispatcher, opts Options, logger *slog.Logger) (*chat.Orchestrator, error) {
	var client mcp.Client = mcp.NewLocalClient(d)
	if cfg.Chat.MCPURL != "" {
		proxy := mcp.NewProxyClient(cfg.Chat.MCPURL, opts.HTTPClient)
		checkRemoteGateway(proxy, cfg.Chat.MCPURL, logger)
		client = proxy
	}

	provider := opts.Provider
	if provider == nil {
		if cfg.LLM.APIKey == "" {
			logger.Warn("llm.api_key is empty; chat requests may be rejected by the provider")
		}
		provider = llm.NewClient(llm.Config{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			Temperature: cfg.LLM.Temperature,
			MaxTokens:   cfg.LLM.MaxTokens,
			Timeout:     cfg.LLM.Timeout,
		})
	}

	o, err := chat.New(chat.Config{
		Provider:      provider,
		Tools:         client,
		Logger:        logger,
		EnableTools:   cfg.Chat.EnableTools,
		EnableMCP:     cfg.Chat.EnableMCP,
		MaxIterations: cfg.Chat.MaxToolIterations,
		MaxParallel:   cfg.Chat.MaxParallelTools,
		SystemPrompt:  cfg.Chat.SystemPrompt,
	})
	if err != nil {
		return nil, fmt.Errorf("creating chat orchestrator: %w", err)
	}
	return o, nil
}

// checkRemoteGateway logs whether the remote tool gateway answers its health
// check. An unreachable gateway is not fatal; chat falls back until it is up.
func checkRemoteGateway(proxy *mcp.ProxyClient, url string, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteHealthTimeout)
	defer cancel()

	names, err := proxy.Health(ctx)
	if err != nil {
		logger.Warn("remote tool gateway unreachable", "mcp_url", url, "error", err)
		return
	}
	logger.Info("chat tools served by remote gateway", "mcp_url", url, "tools", len(names))
}

// Handler returns the HTTP routes.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/chat", g.handleChat)
	mux.HandleFunc("/api/tools", g.handleListTools)
	g.mcpServer.RegisterRoutes(mux)
	return mux
}

// Registry returns the tool registry.
func (g *Gateway) Registry() *tools.Registry {
	return g.registry
}

// Dispatcher returns the JSON-RPC dispatcher.
func (g *Gateway) Dispatcher() *mcp.Dispatcher {
	return g.mcpServer.Dispatcher()
}

// Chat returns the orchestrator.
func (g *Gateway) Chat() *chat.Orchestrator {
	return g.chat
}

// Store returns the profile store.
func (g *Gateway) Store() *store.SQLiteStore {
	return g.store
}

// Run serves HTTP until ctx is canceled or the server fails, then shuts down.
// Returns nil on graceful shutdown.
func (g *Gateway) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", g.config.Server.HTTPAddr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := g.startServer(ln)
	serverErr := g.waitForShutdownSignal(ctx, errCh)

	shutdownErr := g.gracefulShutdown()

	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// startServer serves on ln in a goroutine, returning its error channel.
func (g *Gateway) startServer(ln net.Listener) chan error {
	errCh := make(chan error, 1)

	go func() {
		g.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := g.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
	}()

	return errCh
}

// waitForShutdownSignal waits for context cancellation or server error.
func (g *Gateway) waitForShutdownSignal(ctx context.Context, errCh chan error) error {
	select {
	case <-ctx.Done():
		g.logger.Info("context canceled, initiating shutdown")
		return nil
	case err := <-errCh:
		g.logger.Error("server error", "error", err)
		return err
	}
}

// gracefulShutdown runs Shutdown with a fresh context; the run context is
// already canceled at this point.
func (g *Gateway) gracefulShutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return g.Shutdown(ctx)
}

// appendCloseError appends an error with label if err is non-nil.
func appendCloseError(errs []error, label string, err error) []error {
	if err != nil {
		return append(errs, fmt.Errorf("%s: %w", label, err))
	}
	return errs
}

// Shutdown stops the HTTP server and closes the store.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	var errs []error
	errs = appendCloseError(errs, "HTTP shutdown", g.httpServer.Shutdown(ctx))
	errs = appendCloseError(errs, "store close", g.store.Close())

	return errors.Join(errs...)
}

// Close releases the store without touching the HTTP server. Used by
// commands that never call Run.
func (g *Gateway) Close() error {
	return g.store.Close()
}
