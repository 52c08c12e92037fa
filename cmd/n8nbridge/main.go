package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/config"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/server"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/tools"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/transport"
	"github.com/J2DevStudio/n8n-mcp-server/internal/bridge/workflows"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/httpclient"
	"github.com/J2DevStudio/n8n-mcp-server/internal/common/logtrace"
)

var errorLabel = color.New(color.FgRed)

type cmdoptions struct {
	configFile string
	overrides  config.Overrides
}

func newRootCmd() *cobra.Command {
	opt := &cmdoptions{}
	cmd := &cobra.Command{
		Use:   "n8nbridge [flags]",
		Short: "n8nbridge - MCP bridge to the n8n workflow automation API",
		Long: `n8nbridge exposes n8n workflows as MCP tools over Server-Sent Events.

Clients open GET /sse, receive an endpoint event naming their session, and
post tool calls to that endpoint. Results are pushed back on the stream.

Examples:
  # Start with defaults (127.0.0.1:3002, n8n at localhost:5678)
  n8nbridge

  # Use a config file and a remote n8n
  n8nbridge --config bridge.toml --backend-url https://n8n.example.com/api/v1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfiguration(opt)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&opt.configFile, "config", "", "Path to a TOML configuration file")
	cmd.Flags().StringVar(&opt.overrides.Host, "host", "", "Interface to listen on")
	cmd.Flags().StringVar(&opt.overrides.Port, "port", "", "Port to listen on")
	cmd.Flags().StringVar(&opt.overrides.BackendURL, "backend-url", "", "Base URL of the n8n REST API")
	cmd.Flags().StringVar(&opt.overrides.LogLevel, "log-level", "", "Log level: trace, debug, info, warn, error")
	return cmd
}

func main() {
	cmd := newRootCmd()
	cmd.SilenceErrors = true
	cmd.SilenceUsage = true
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfiguration(opt *cmdoptions) (*config.ConfigParam, error) {
	cfg, err := config.LoadConfig(opt.configFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.ApplyOverrides(opt.overrides); err != nil {
		return nil, fmt.Errorf("invalid flags: %w", err)
	}
	if err := logtrace.InitLogger(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	return cfg, nil
}

// buildRegistry registers the workflow tools. A failure here aborts start-up.
func buildRegistry(cfg *config.ConfigParam) (*tools.Registry, error) {
	reg := tools.NewRegistry()
	toolset := workflows.NewToolset(httpclient.NewClient(cfg), workflows.Options{
		MessagesURL:   cfg.Backend.MessagesURL,
		RetryAttempts: cfg.Backend.RetryAttempts,
	})
	if err := toolset.Register(reg); err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}
	return reg, nil
}

func run(ctx context.Context, cfg *config.ConfigParam) error {
	slog := log.With().Str("state", "init").Logger()
	ctx = slog.WithContext(ctx)

	reg, err := buildRegistry(cfg)
	if err != nil {
		return err
	}
	for _, d := range reg.List() {
		slog.Debug().Str("tool", d.Name).Msg("registered tool")
	}

	s, err := server.CreateNewServer(ctx, cfg, reg)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	s.MountHandlers()

	slog.Info().
		Str("sse", "http://"+cfg.ListenAddr()+transport.NormalizeBasePath(cfg.Server.BasePath)+transport.StreamPath).
		Str("backend", cfg.GetServerURL()).
		Str("messages", cfg.Backend.MessagesURL).
		Msg("starting n8n MCP bridge")

	if err := s.ListenAndServe(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server error: %w", err)
	}
	slog.Info().Msg("server stopped")
	return nil
}
