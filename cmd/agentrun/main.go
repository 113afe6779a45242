package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentrun/config"
	"github.com/hupe1980/agentrun/core"
	"github.com/hupe1980/agentrun/guardrail"
	"github.com/hupe1980/agentrun/invoker"
	anthropicinvoker "github.com/hupe1980/agentrun/invoker/anthropic"
	openaiinvoker "github.com/hupe1980/agentrun/invoker/openai"
	"github.com/hupe1980/agentrun/logging"
	"github.com/hupe1980/agentrun/memory"
	"github.com/hupe1980/agentrun/pipeline"
	"github.com/hupe1980/agentrun/server"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file overlaying the environment")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: cfg.LogFormat,
		Output: os.Stdout,
	})

	logger.Info("Starting agentrun",
		"http_port", cfg.HTTPPort,
		"database_url", cfg.DatabaseURL,
		"agent_provider", cfg.AgentProvider,
		"guardrail_fail_open", cfg.GuardrailFailOpen)

	store, closeStore, err := newStore(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize memory store: %v", err)
	}
	defer closeStore()

	evaluator, err := newEvaluator(context.Background(), cfg)
	if err != nil {
		log.Fatalf("Failed to initialize guardrail evaluator: %v", err)
	}

	agent, err := newInvoker(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize agent invoker: %v", err)
	}

	p := pipeline.New(agent, func(o *pipeline.Options) {
		o.MemoryStore = store
		o.GuardrailEvaluator = evaluator
		o.GuardrailFailOpen = cfg.GuardrailFailOpen
		o.MaxContextTurns = cfg.MaxContextTurns
		o.MaxContextChars = cfg.MaxContextChars
		o.MaxConcurrentInvocations = cfg.MaxConcurrentInvocations
		o.LockWaitTimeout = cfg.LockWaitTimeout.Std()
		o.InvocationTimeout = cfg.InvocationTimeout.Std()
		o.MaxRetries = cfg.MaxRetries
		o.RetryBackoffBase = cfg.RetryBackoffBase.Std()
		o.Logger = logger
	})

	h := server.NewHandler(p, func(o *server.Options) {
		o.Logger = logger
	})

	e := server.NewServer(h)
	e.Use(middleware.Logger())

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	logger.Info("API started", "port", cfg.HTTPPort)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		logger.Error("Failed to shut down gracefully", "error", err.Error())
	}

	logger.Info("Stopped")
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load(), nil
	}
	return config.LoadFile(path)
}

func newStore(cfg *config.Config) (core.MemoryStore, func(), error) {
	if cfg.DatabaseURL == "" {
		return memory.NewInMemoryStore(), func() {}, nil
	}
	db, err := memory.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

func newEvaluator(ctx context.Context, cfg *config.Config) (core.GuardrailEvaluator, error) {
	if cfg.GuardrailPolicy == "" {
		return guardrail.NewKeywordEvaluator(), nil
	}
	policy, err := os.ReadFile(cfg.GuardrailPolicy)
	if err != nil {
		return nil, fmt.Errorf("read guardrail policy: %w", err)
	}
	return guardrail.NewRegoEvaluator(ctx, string(policy))
}

func newInvoker(cfg *config.Config) (core.AgentInvoker, error) {
	switch cfg.AgentProvider {
	case "anthropic":
		return anthropicinvoker.NewInvoker(func(o *anthropicinvoker.Options) {
			if cfg.AgentModel != "" {
				o.Model = anthropicinvoker.Model(cfg.AgentModel)
			}
			o.SystemPrompt = cfg.SystemPrompt
		}), nil
	case "openai":
		return openaiinvoker.NewInvoker(func(o *openaiinvoker.Options) {
			if cfg.AgentModel != "" {
				o.Model = cfg.AgentModel
			}
			o.SystemPrompt = cfg.SystemPrompt
		}), nil
	case "mock":
		return invoker.NewMockInvoker(), nil
	default:
		return nil, fmt.Errorf("unknown agent provider %q", cfg.AgentProvider)
	}
}
