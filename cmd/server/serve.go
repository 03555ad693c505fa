package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"answer-engine/internal/adapter/api"
	"answer-engine/internal/adapter/client"
	"answer-engine/internal/adapter/store"
	"answer-engine/internal/adapter/tools"
	"answer-engine/internal/config"
	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
	"answer-engine/internal/usecase"

	"github.com/gofiber/fiber/v2"
	"github.com/qdrant/go-client/qdrant"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v2"
)

const scrapeTimeout = 10 * time.Second

// kvStore is what both store backends provide.
type kvStore interface {
	repository.CounterStore
	repository.KVStore
}

func serveCommand(c *cli.Context) error {
	cfg := configFromContext(c)
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	kv, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	model, embedder, err := buildModels(ctx, cfg)
	if err != nil {
		return err
	}
	resilient := usecase.NewResilientModel(model, cfg.FallbackModel)

	// Serper also backs the shopping and news tools, so it is built whenever
	// a key exists regardless of the chosen search provider.
	var serper *client.SerperClient
	if cfg.SerperAPIKey != "" {
		serper = client.NewSerperClient(cfg.SerperAPIKey)
	}
	search := buildSearch(cfg, serper)

	toolRunner := usecase.NewToolRunner(tools.Registry(serper)...)
	generator := usecase.NewGenerator(resilient, toolRunner, usecase.GeneratorConfig{
		AnswerModel:        cfg.AnswerModel,
		RephraseModel:      cfg.RephraseModel,
		FollowUpModel:      cfg.FollowUpModel,
		UseFunctionCalling: cfg.UseFunctionCalling,
	})

	retriever, err := usecase.NewRetriever(generator, search, client.NewHTTPScraper(scrapeTimeout),
		store.NewMemoryIndexer(embedder), cfg.ScrapeWorkers)
	if err != nil {
		return err
	}
	defer retriever.Release()

	limiter := usecase.NewRateLimiter(kv, cfg.RequestsPerMinute)
	cache := usecase.NewAnswerCache(kv)

	var semantic *usecase.SemanticCache
	if cfg.UseSemanticCache {
		semantic, err = buildSemanticCache(ctx, cfg, embedder, resilient)
		if err != nil {
			return err
		}
	}

	orchestrator := usecase.NewOrchestrator(limiter, cache, semantic, retriever, generator, cfg.CacheTTL)
	streamer := usecase.NewStreamCoordinator(limiter, cache, semantic, retriever, generator)

	go warmUp(embedder, resilient, cfg.AnswerModel)

	// Initialize API Layer (Delivery Layer)
	app := fiber.New(fiber.Config{
		AppName: "Answer Engine",
	})
	api.SetupRouter(app, api.NewAnswerHandler(orchestrator, streamer))

	go func() {
		<-ctx.Done()
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			slog.Error("shutdown failed", "err", err)
		}
	}()

	slog.Info("answer engine running", "port", cfg.Port, "provider", cfg.LLMProvider, "search", cfg.SearchProvider, "store", cfg.StoreBackend)
	return app.Listen(":" + cfg.Port)
}

func openStore(ctx context.Context, cfg *config.Config) (kvStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreBadger:
		bs, err := store.OpenBadgerStore(cfg.BadgerPath)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open badger: %w", err)
		}
		return bs, func() {
			if err := bs.Close(); err != nil {
				slog.Error("closing badger", "err", err)
			}
		}, nil
	default:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		rs := store.NewRedisStore(rdb)
		if err := rs.Ping(ctx); err != nil {
			// The limiter fails open and the cache misses, so keep serving.
			slog.Warn("redis unreachable at startup", "addr", cfg.RedisAddr, "err", err)
		}
		return rs, func() { _ = rdb.Close() }, nil
	}
}

// buildModels selects the provider variant once for the whole process.
func buildModels(ctx context.Context, cfg *config.Config) (repository.ChatModel, repository.Embedder, error) {
	switch cfg.LLMProvider {
	case config.ProviderGemini:
		gc, err := client.NewGeminiClient(ctx, cfg.GoogleProject, cfg.GoogleLocation, cfg.GeminiAPIKey)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to init genai client: %w", err)
		}
		return client.NewGeminiModelFromClient(gc), client.NewGeminiEmbedderFromClient(gc, cfg.EmbeddingModel), nil
	case config.ProviderOpenAI:
		return openAICompatible(client.OpenAIBaseURL, cfg.OpenAIAPIKey, client.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	case config.ProviderGroq:
		return openAICompatible(client.GroqBaseURL, cfg.GroqAPIKey, client.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.EmbeddingModel)
	case config.ProviderOllama:
		return openAICompatible(cfg.OllamaBaseURL, "ollama", cfg.OllamaBaseURL, "ollama", cfg.EmbeddingModel)
	default:
		return nil, nil, fmt.Errorf("unsupported llm provider %q", cfg.LLMProvider)
	}
}

func openAICompatible(chatURL, chatToken, embedURL, embedToken, embedModel string) (repository.ChatModel, repository.Embedder, error) {
	model, err := client.NewOpenAIModel(chatURL, chatToken)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init chat model: %w", err)
	}
	embedder, err := client.NewOpenAIEmbedder(embedURL, embedToken, embedModel)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to init embedder: %w", err)
	}
	return model, embedder, nil
}

// buildSearch returns nil for an unconfigured provider; retrieval then finds
// no sources instead of failing.
func buildSearch(cfg *config.Config, serper *client.SerperClient) repository.SearchProvider {
	switch cfg.SearchProvider {
	case config.SearchSerper:
		if serper != nil {
			return serper
		}
	case config.SearchBrave:
		if cfg.BraveAPIKey != "" {
			return client.NewBraveClient(cfg.BraveAPIKey)
		}
	}
	slog.Warn("no usable search provider configured", "provider", cfg.SearchProvider)
	return nil
}

func buildSemanticCache(ctx context.Context, cfg *config.Config, embedder repository.Embedder, model repository.ChatModel) (*usecase.SemanticCache, error) {
	qClient, err := qdrant.NewClient(&qdrant.Config{
		Host: cfg.QdrantHost,
		Port: cfg.QdrantPort,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	// The collection is sized by whatever the configured embedder produces.
	probe, err := embedder.CreateEmbedding(ctx, "dimension probe")
	if err != nil {
		return nil, fmt.Errorf("probing embedding size: %w", err)
	}
	if len(probe) == 0 {
		return nil, errors.New("embedder returned an empty vector")
	}

	vectorStore := store.NewQdrantStore(qClient, cfg.QdrantCollection)
	if err := vectorStore.InitCollection(ctx, uint64(len(probe))); err != nil {
		return nil, fmt.Errorf("failed to init qdrant collection: %w", err)
	}
	judge := client.NewModelJudge(model, cfg.AnswerModel)
	return usecase.NewSemanticCache(embedder, vectorStore, judge, cfg.SemanticThreshold, cfg.CacheTTL), nil
}

func warmUp(embedder repository.Embedder, model repository.ChatModel, modelName string) {
	warmCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := embedder.CreateEmbedding(warmCtx, "warmup"); err != nil {
		slog.Warn("embedder warm-up failed", "err", err)
	}
	if _, err := model.Complete(warmCtx, modelName, []entity.Message{entity.UserMessage(".")}, nil); err != nil {
		slog.Warn("model warm-up failed", "err", err)
	}
	slog.Info("pre-warm complete")
}
