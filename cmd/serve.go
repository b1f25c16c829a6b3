package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/anthropics/anthropic-sdk-go"
	aoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	ooption "github.com/openai/openai-go/option"
	"google.golang.org/genai"

	"github.com/koopa0/assistant/api"
	"github.com/koopa0/assistant/db"
	"github.com/koopa0/assistant/internal/config"
	"github.com/koopa0/assistant/internal/database"
	"github.com/koopa0/assistant/internal/mcp"
	"github.com/koopa0/assistant/internal/model"
	"github.com/koopa0/assistant/internal/processor"
	"github.com/koopa0/assistant/internal/thread"
)

// runServe initializes and starts the HTTP API server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	addr, err := parseServeAddr(cfg.ServerAddr)
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()
	logger.Info("starting assistant server", "version", Version)

	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}

	pool, err := database.Connect(ctx, cfg.PostgresConnectionString())
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	servers := mcp.Load(cfg.MCP.Servers, cfg.MCP.Allowed, cfg.MCP.Excluded, logger)
	logger.Info("MCP servers loaded", "count", len(servers))

	runners, err := buildRunners(ctx, cfg, processor.Options{
		Servers:   servers,
		MaxTokens: cfg.MaxTokens,
		Logger:    logger,
	})
	if err != nil {
		return fmt.Errorf("initializing processors: %w", err)
	}

	registry := model.NewRegistry(cfg.Models)
	store := thread.NewStore(pool, logger)
	svc := thread.NewService(store, registry, runners, 0, logger)

	srv := api.NewServer(svc, registry, pool, cfg, logger)
	return srv.Run(ctx, addr)
}

// buildRunners constructs one processor per vendor the model catalog
// actually references. Vendor clients are created lazily so an unused
// vendor needs no API key.
func buildRunners(ctx context.Context, cfg *config.Config, opts processor.Options) ([]thread.Runner, error) {
	vendors := make(map[string]bool)
	for _, m := range cfg.Models {
		vendors[m.Vendor] = true
	}

	var runners []thread.Runner

	if vendors[model.VendorOpenAIChat] || vendors[model.VendorOpenAIResponses] {
		client := openai.NewClient(ooption.WithAPIKey(cfg.OpenAIAPIKey))
		if vendors[model.VendorOpenAIChat] {
			runners = append(runners, processor.NewOpenAIChat(client, opts))
		}
		if vendors[model.VendorOpenAIResponses] {
			runners = append(runners, processor.NewOpenAIResponses(client, opts))
		}
	}

	if vendors[model.VendorClaude] {
		client := anthropic.NewClient(aoption.WithAPIKey(cfg.AnthropicAPIKey))
		runners = append(runners, processor.NewClaude(client, opts))
	}

	if vendors[model.VendorGemini] {
		client, err := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  cfg.GeminiAPIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if err != nil {
			return nil, fmt.Errorf("creating Gemini client: %w", err)
		}
		runners = append(runners, processor.NewGemini(client, opts))
	}

	return runners, nil
}
