// Command workshop runs the remote session server: a local-first,
// tool-using assistant that exposes multi-user chat sessions over HTTP
// with Server-Sent-Events streaming.
//
// Start the server:
//
//	workshop serve
//	workshop serve --config workshop.toml --config override.toml
//
// Configuration merges defaults, the given TOML files in order, then
// WORKSHOP_* environment variables. Graceful shutdown on SIGINT/SIGTERM.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	workshop "github.com/nevindra/workshop"
	"github.com/nevindra/workshop/internal/config"
	"github.com/nevindra/workshop/observer"
	"github.com/nevindra/workshop/provider/openaicompat"
	"github.com/nevindra/workshop/sandbox"
	"github.com/nevindra/workshop/server"
	"github.com/nevindra/workshop/tools/fs"
	"github.com/nevindra/workshop/tools/summarize"
	"github.com/nevindra/workshop/tools/web"
)

// version is populated by ldflags during release builds.
var version = "dev"

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "workshop",
		Short:        "Workshop - local-first tool-using assistant runtime",
		Version:      version,
		SilenceUsage: true,
	}
	root.AddCommand(buildServeCmd())
	return root
}

func buildServeCmd() *cobra.Command {
	var (
		configPaths []string
		debug       bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the remote session server",
		Long: `Start the remote session server.

The server exposes POST /session, /reset and /chat (SSE) plus GET /health.
Each user gets an isolated workspace under <base_dir>/workspaces/<user>;
file, web and summarize tools run inside it.`,
		Example: `  # Defaults (127.0.0.1:8787, workspace under the home directory)
  workshop serve

  # Layered config files; later files win
  workshop serve --config base.toml --config local.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPaths, debug)
		},
	}

	cmd.Flags().StringArrayVarP(&configPaths, "config", "c", nil,
		"Path to a TOML config file (repeatable; later files override earlier ones)")
	cmd.Flags().BoolVarP(&debug, "debug", "d", false,
		"Enable debug logging")

	return cmd
}

func runServe(ctx context.Context, configPaths []string, debug bool) error {
	cfg := config.Load(configPaths...)

	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if cfg.LLM.APIKey == "" {
		logger.Warn("llm.api_key is empty; fine for local backends, OpenAI will reject requests")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	var provider workshop.Provider = openaicompat.NewProvider(cfg.LLM.APIKey, cfg.LLM.Model, cfg.LLM.BaseURL)
	if cfg.LLM.RPM > 0 || cfg.LLM.TPM > 0 {
		var limits []workshop.RateLimitOption
		if cfg.LLM.RPM > 0 {
			limits = append(limits, workshop.RPM(cfg.LLM.RPM))
		}
		if cfg.LLM.TPM > 0 {
			limits = append(limits, workshop.TPM(cfg.LLM.TPM))
		}
		provider = workshop.WithRateLimit(provider, limits...)
		logger.Info("provider rate limiting on", "rpm", cfg.LLM.RPM, "tpm", cfg.LLM.TPM)
	}

	var (
		inst             *observer.Instruments
		shutdownObserver func(context.Context) error
	)
	if cfg.Observer.Enabled {
		var err error
		inst, shutdownObserver, err = observer.Init(ctx, cfg.Observer.Endpoint, observer.DefaultPricing)
		if err != nil {
			return fmt.Errorf("init observer: %w", err)
		}
		provider = observer.WrapProvider(provider, cfg.LLM.Model, inst)
		logger.Info("observability on", "endpoint", cfg.Observer.Endpoint)
	}

	// The web tool is session-independent; file and summarize tools bind to
	// each session's sandbox inside the factory.
	webTool := web.New(web.Config{
		SearchAPIKey: cfg.Search.APIKey,
		Logger:       logger,
	})
	toolFactory := func(sb *sandbox.Sandbox) *workshop.ToolRegistry {
		reg := workshop.NewToolRegistry()
		for _, t := range []workshop.Tool{
			fs.New(sb),
			webTool,
			summarize.New(provider, sb, webTool.Fetcher()),
		} {
			if inst != nil {
				t = observer.WrapTool(t, inst)
			}
			reg.Add(t)
		}
		return reg
	}

	opts := []server.Option{
		server.WithBaseDir(cfg.BaseDir),
		server.WithToken(cfg.Token),
		server.WithAutoApprove(cfg.AutoApprove),
		server.WithMaxSteps(cfg.Agent.MaxSteps),
		server.WithSystemPrompt(cfg.Agent.SystemPrompt),
		server.WithLogger(logger),
	}
	if inst != nil {
		opts = append(opts,
			server.WithTracer(observer.NewTracer()),
			server.WithTurnRecorder(inst.RecordTurn),
		)
	}
	srv := server.New(provider, toolFactory, opts...)

	httpSrv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Handler(),
		ReadTimeout:       5 * time.Minute,
		ReadHeaderTimeout: 10 * time.Second,
		// No WriteTimeout: /chat streams stay open for the whole turn.
		IdleTimeout: 2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Addr(), "base_dir", cfg.BaseDir,
			"model", cfg.LLM.Model, "auto_approve", cfg.AutoApprove)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	srv.Close()
	if shutdownObserver != nil {
		if err := shutdownObserver(shutCtx); err != nil {
			logger.Warn("observer shutdown", "error", err)
		}
	}
	logger.Info("stopped")
	return nil
}
