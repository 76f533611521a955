// ABOUTME: Entry point for folio-gateway, the portfolio assistant tool gateway
// ABOUTME: Cobra commands to serve HTTP or stdio and to list, call and chat with tools

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/2389/folio-gateway/internal/config"
	"github.com/2389/folio-gateway/internal/gateway"
	"github.com/2389/folio-gateway/internal/tools"
)

// version is set at build time via -ldflags.
var version = "dev"

const banner = `
  __       _ _
 / _| ___ | (_) ___         __ _  __ _| |_ _____      ____ _ _   _
| |_ / _ \| | |/ _ \ _____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
|  _| (_) | | | (_) |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_|  \___/|_|_|\___/       \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                           |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: FOLIO_CONFIG env var > XDG_CONFIG_HOME/folio/gateway.yaml > ~/.config/folio/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FOLIO_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "folio", "gateway.yaml")
}

// loadConfig reads path. With allowMissing, an absent file yields the defaults.
func loadConfig(path string, allowMissing bool) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err == nil {
		return cfg, nil
	}
	if allowMissing && errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	return nil, fmt.Errorf("loading config: %w", err)
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "folio-gateway",
		Short: "Tool gateway and chat assistant for a portfolio site",
		Long: `folio-gateway exposes portfolio data, database, system and workflow tools
over JSON-RPC and drives an LLM chat assistant that calls them.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $FOLIO_CONFIG or ~/.config/folio/gateway.yaml)")

	resolve := func() string {
		if configPath != "" {
			return configPath
		}
		return getConfigPath()
	}

	root.AddCommand(
		newServeCmd(resolve),
		newStdioCmd(resolve),
		newToolsCmd(resolve),
		newCallCmd(resolve),
		newChatCmd(resolve),
		&cobra.Command{
			Use:   "version",
			Short: "Show version information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "folio-gateway %s\n", version)
			},
		},
	)
	return root
}

func newServeCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP gateway",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), configPath())
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := loadConfig(configPath, false)
	if err != nil {
		return err
	}

	logger := setupLogger(cfg.Logging, os.Stdout)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Database:  %s (%s)\n", cfg.Database.Path, cfg.Database.Driver)
	green.Print("    ▶ ")
	fmt.Printf("Model:     %s", cfg.LLM.Model)
	if !cfg.Chat.EnableTools {
		color.New(color.FgYellow).Print(" [tools disabled]")
	}
	fmt.Println()
	fmt.Println()

	logger.Info("starting folio-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func newStdioCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "stdio",
		Short: "Serve line-delimited JSON-RPC on stdin/stdout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// stdout carries the protocol; logs go to stderr
			gw, err := openGateway(configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer gw.Close()

			err = gw.Dispatcher().ServeStdio(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		},
	}
}

func newToolsCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List registered tools by category",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			gw, err := openGateway(configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer gw.Close()

			printTools(cmd.OutOrStdout(), gw)
			return nil
		},
	}
}

func printTools(w io.Writer, gw *gateway.Gateway) {
	cyan := color.New(color.FgCyan, color.Bold)
	gray := color.New(color.FgHiBlack)

	reg := gw.Registry()
	for _, category := range reg.ListCategories() {
		cyan.Fprintf(w, "%s\n", category)
		for _, info := range reg.ListToolsByCategory(category) {
			fmt.Fprintf(w, "  %-18s ", info.Name)
			gray.Fprintln(w, info.Description)
		}
	}
}

func newCallCmd(configPath func() string) *cobra.Command {
	return &cobra.Command{
		Use:   "call <category:name> [json-arguments]",
		Short: "Execute one tool and print its result",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			toolArgs, err := callArguments(args)
			if err != nil {
				return err
			}

			gw, err := openGateway(configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer gw.Close()

			if err := checkBareName(gw.Registry(), args[0]); err != nil {
				return err
			}

			result, err := gw.Dispatcher().CallTool(cmd.Context(), args[0], toolArgs)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), result.Text())
			return nil
		},
	}
}

// checkBareName rejects a bare tool name that is missing from the default
// category but registered elsewhere, naming the qualified alternatives.
func checkBareName(reg *tools.Registry, name string) error {
	if strings.Contains(name, ":") {
		return nil
	}
	if _, ok := reg.GetTool(tools.ParseToolID(name)); ok {
		return nil
	}
	matches := reg.FindByName(name)
	if len(matches) == 0 {
		return nil
	}
	qualified := make([]string, 0, len(matches))
	for _, t := range matches {
		qualified = append(qualified, t.ID.String())
	}
	sort.Strings(qualified)
	return fmt.Errorf("tool %q is not in the %s category; did you mean %s?",
		name, tools.DefaultCategory, strings.Join(qualified, " or "))
}

// callArguments returns the optional JSON arguments of the call command.
func callArguments(args []string) (json.RawMessage, error) {
	if len(args) < 2 || strings.TrimSpace(args[1]) == "" {
		return json.RawMessage(`{}`), nil
	}
	raw := json.RawMessage(args[1])
	if !json.Valid(raw) {
		return nil, fmt.Errorf("arguments are not valid JSON: %s", args[1])
	}
	return raw, nil
}

func newChatCmd(configPath func() string) *cobra.Command {
	var showTools bool

	cmd := &cobra.Command{
		Use:   "chat <message>",
		Short: "Ask the assistant one question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gw, err := openGateway(configPath(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer gw.Close()

			result, err := gw.Chat().Chat(cmd.Context(), nil, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if showTools {
				gray := color.New(color.FgHiBlack)
				for _, call := range result.ToolCalls {
					gray.Fprintf(out, "  ↳ %s %s (%s)\n", call.Name, call.Arguments, call.Duration.Round(time.Millisecond))
				}
			}
			fmt.Fprintln(out, result.Reply)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showTools, "show-tools", "t", false, "print the tool calls made")
	return cmd
}

// openGateway builds a gateway for one-shot commands. A missing config file
// falls back to the defaults.
func openGateway(configPath string, logOut io.Writer) (*gateway.Gateway, error) {
	cfg, err := loadConfig(configPath, true)
	if err != nil {
		return nil, err
	}

	logger := setupLogger(cfg.Logging, logOut)
	slog.SetDefault(logger)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating gateway: %w", err)
	}
	return gw, nil
}
