package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/zhouzirui/z-relay/backend/internal/callbacks"
	"github.com/zhouzirui/z-relay/backend/internal/config"
	"github.com/zhouzirui/z-relay/backend/internal/handler"
	"github.com/zhouzirui/z-relay/backend/internal/model/prompt"
	"github.com/zhouzirui/z-relay/backend/internal/service/ai"
	"github.com/zhouzirui/z-relay/backend/internal/service/callback"
	"github.com/zhouzirui/z-relay/backend/internal/service/chat"
	"github.com/zhouzirui/z-relay/backend/internal/service/recorder"
	"github.com/zhouzirui/z-relay/backend/internal/service/router"
)

func main() {
	envFile := pflag.String("env-file", ".env", "dotenv file loaded before reading the environment")
	addr := pflag.String("addr", "", "listen address, overrides PORT")
	promptFile := pflag.String("prompt-file", "", "prompt file (.toml or .yaml), overrides PROMPT_FILE")
	logJSON := pflag.Bool("log-json", false, "emit JSON logs instead of text")
	pflag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	envErr := godotenv.Load(*envFile)

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.LogLevel, *logJSON)
	slog.SetDefault(logger)

	if envErr != nil {
		logger.Warn("failed to load .env file, continuing with system environment variables only", "path", *envFile, "error", envErr)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *promptFile != "" {
		cfg.Relay.PromptFile = *promptFile
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

func newLogger(level slog.Level, asJSON bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	prompts, err := prompt.Load(cfg.Relay.PromptFile)
	if err != nil {
		return err
	}
	prompts = prompts.WithMaxHistorySize(cfg.Relay.MaxHistorySize)
	scripted := prompts.ScriptedPrompts()

	registry := chat.NewRegistry(chat.Options{
		SystemMessage:   prompts.Basic.SystemMessage,
		ScriptedPrompts: scripted,
		Retention:       chat.NewRetentionPolicy(len(scripted), prompts.Configuration.MaxHistorySize),
		Logger:          logger,
	})

	// Initialize AI service
	var provider router.Provider
	if cfg.AI.Enabled() {
		aiService, err := ai.NewService(ctx, cfg.AI, logger)
		if err != nil {
			logger.Warn("failed to initialize AI service, continuing without model replies", "error", err)
		} else {
			provider = aiService
			logger.Info("AI service initialized", "provider", cfg.AI.Provider, "model", cfg.AI.Model(), "stream", cfg.AI.StreamResponse)
		}
	} else {
		logger.Warn("LLM credentials not configured, skipping AI initialization", "provider", cfg.AI.Provider)
	}

	var regs []callback.Registration
	if cfg.Hooks.WikiSearch {
		regs = append(regs, callbacks.NewWikiSearch(cfg.Hooks.WikiAPIURL, nil, logger).Registration())
	}
	if cfg.Hooks.ClientIDLog {
		regs = append(regs, callbacks.ClientIDLog(logger))
	}

	rec, err := recorder.New(ctx, cfg.Recorder, logger)
	if err != nil {
		return err
	}
	if rec != nil {
		defer rec.Close()
		regs = append(regs, recorder.Observer(rec))
		logger.Info("transcript recorder enabled", "recorder", cfg.Recorder.Kind)
	}

	pipeline, err := callback.NewPipeline(logger, regs...)
	if err != nil {
		return err
	}

	sessions := router.New(registry, router.Options{
		OperatorPassword: cfg.Relay.OperatorPassword,
		SliceSize:        cfg.Relay.SliceSize,
		Pipeline:         pipeline,
		Provider:         provider,
		Logger:           logger,
	})
	if cfg.Relay.OperatorPassword == "" {
		logger.Warn("OPERATOR_PASSWORD is empty, operator login and /api are disabled")
	}

	routes := handler.Options{OperatorPassword: cfg.Relay.OperatorPassword, Transcripts: rec}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler.NewRouter(sessions, routes, logger),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("z-relay backend listening", "addr", cfg.Server.Addr, "scripted_prompts", len(scripted), "max_history", prompts.Configuration.MaxHistorySize)
	return runServer(ctx, srv)
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
