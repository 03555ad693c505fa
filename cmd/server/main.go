package main

import (
	"fmt"
	"log"
	"log/slog"
	"os"
	"strings"
	"time"

	"answer-engine/internal/config"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := godotenv.Load(".env.dev"); err != nil {
		log.Println("Warning: .env.dev file not found, using system environment variables")
	}

	app := &cli.App{
		Name:  "answer-engine",
		Usage: "Web-grounded question answering over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
		},
		Before: setupLogger,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP answer gateway",
				Action: serveCommand,
				Flags:  serveFlags(),
			},
		},
		DefaultCommand: "serve",
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func serveFlags() []cli.Flag {
	d := config.DefaultConfig()
	return []cli.Flag{
		&cli.StringFlag{Name: "port", Value: d.Port, EnvVars: []string{"PORT"}, Usage: "HTTP listen port"},
		&cli.StringFlag{Name: "store", Value: string(d.StoreBackend), EnvVars: []string{"STORE_BACKEND"}, Usage: "Counter and cache store (redis, badger)"},
		&cli.StringFlag{Name: "redis-addr", Value: d.RedisAddr, EnvVars: []string{"REDIS_ADDR"}},
		&cli.StringFlag{Name: "redis-password", EnvVars: []string{"REDIS_PASSWORD"}},
		&cli.IntFlag{Name: "redis-db", EnvVars: []string{"REDIS_DB"}},
		&cli.StringFlag{Name: "badger-path", EnvVars: []string{"BADGER_PATH"}, Usage: "BadgerDB directory; empty runs in memory"},
		&cli.StringFlag{Name: "llm-provider", Value: string(d.LLMProvider), EnvVars: []string{"LLM_PROVIDER"}, Usage: "Model backend (gemini, openai, groq, ollama)"},
		&cli.StringFlag{Name: "openai-api-key", EnvVars: []string{"OPENAI_API_KEY"}},
		&cli.StringFlag{Name: "groq-api-key", EnvVars: []string{"GROQ_API_KEY"}},
		&cli.StringFlag{Name: "ollama-base-url", Value: d.OllamaBaseURL, EnvVars: []string{"OLLAMA_BASE_URL"}},
		&cli.StringFlag{Name: "google-project", EnvVars: []string{"GOOGLE_CLOUD_PROJECT"}},
		&cli.StringFlag{Name: "google-location", Value: d.GoogleLocation, EnvVars: []string{"GOOGLE_CLOUD_LOCATION"}},
		&cli.StringFlag{Name: "gemini-api-key", EnvVars: []string{"GEMINI_API_KEY"}},
		&cli.StringFlag{Name: "answer-model", EnvVars: []string{"ANSWER_MODEL"}},
		&cli.StringFlag{Name: "rephrase-model", EnvVars: []string{"REPHRASE_MODEL"}},
		&cli.StringFlag{Name: "followup-model", EnvVars: []string{"FOLLOWUP_MODEL"}},
		&cli.StringFlag{Name: "fallback-model", EnvVars: []string{"FALLBACK_MODEL"}},
		&cli.StringFlag{Name: "embedding-model", EnvVars: []string{"EMBEDDING_MODEL"}},
		&cli.BoolFlag{Name: "function-calling", Value: d.UseFunctionCalling, EnvVars: []string{"USE_FUNCTION_CALLING"}},
		&cli.StringFlag{Name: "search-provider", Value: string(d.SearchProvider), EnvVars: []string{"SEARCH_PROVIDER"}, Usage: "Web search backend (serper, brave)"},
		&cli.StringFlag{Name: "serper-api-key", EnvVars: []string{"SERPER_API_KEY"}},
		&cli.StringFlag{Name: "brave-api-key", EnvVars: []string{"BRAVE_SEARCH_API_KEY"}},
		&cli.IntFlag{Name: "requests-per-minute", Value: d.RequestsPerMinute, EnvVars: []string{"REQUESTS_PER_MINUTE"}},
		&cli.IntFlag{Name: "cache-ttl-seconds", Value: int(d.CacheTTL / time.Second), EnvVars: []string{"CACHE_TTL_SECONDS"}},
		&cli.IntFlag{Name: "scrape-workers", Value: d.ScrapeWorkers, EnvVars: []string{"SCRAPE_WORKERS"}},
		&cli.BoolFlag{Name: "semantic-cache", Value: d.UseSemanticCache, EnvVars: []string{"USE_SEMANTIC_CACHE"}},
		&cli.StringFlag{Name: "qdrant-host", Value: d.QdrantHost, EnvVars: []string{"QDRANT_HOST"}},
		&cli.IntFlag{Name: "qdrant-port", Value: d.QdrantPort, EnvVars: []string{"QDRANT_PORT"}},
		&cli.StringFlag{Name: "qdrant-collection", Value: d.QdrantCollection, EnvVars: []string{"QDRANT_COLLECTION"}},
		&cli.Float64Flag{Name: "semantic-threshold", Value: float64(d.SemanticThreshold), EnvVars: []string{"SEMANTIC_CACHE_THRESHOLD"}},
	}
}

func configFromContext(c *cli.Context) *config.Config {
	return &config.Config{
		Port:               c.String("port"),
		StoreBackend:       config.StoreBackend(strings.ToLower(c.String("store"))),
		RedisAddr:          c.String("redis-addr"),
		RedisPassword:      c.String("redis-password"),
		RedisDB:            c.Int("redis-db"),
		BadgerPath:         c.String("badger-path"),
		LLMProvider:        config.LLMProvider(strings.ToLower(c.String("llm-provider"))),
		OpenAIAPIKey:       c.String("openai-api-key"),
		GroqAPIKey:         c.String("groq-api-key"),
		OllamaBaseURL:      c.String("ollama-base-url"),
		GoogleProject:      c.String("google-project"),
		GoogleLocation:     c.String("google-location"),
		GeminiAPIKey:       c.String("gemini-api-key"),
		AnswerModel:        c.String("answer-model"),
		RephraseModel:      c.String("rephrase-model"),
		FollowUpModel:      c.String("followup-model"),
		FallbackModel:      c.String("fallback-model"),
		EmbeddingModel:     c.String("embedding-model"),
		UseFunctionCalling: c.Bool("function-calling"),
		SearchProvider:     config.SearchProvider(strings.ToLower(c.String("search-provider"))),
		SerperAPIKey:       c.String("serper-api-key"),
		BraveAPIKey:        c.String("brave-api-key"),
		RequestsPerMinute:  c.Int("requests-per-minute"),
		CacheTTL:           time.Duration(c.Int("cache-ttl-seconds")) * time.Second,
		ScrapeWorkers:      c.Int("scrape-workers"),
		UseSemanticCache:   c.Bool("semantic-cache"),
		QdrantHost:         c.String("qdrant-host"),
		QdrantPort:         c.Int("qdrant-port"),
		QdrantCollection:   c.String("qdrant-collection"),
		SemanticThreshold:  float32(c.Float64("semantic-threshold")),
	}
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
