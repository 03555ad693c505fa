package config

import (
	"errors"
	"fmt"
	"time"
)

type LLMProvider string

const (
	ProviderGemini LLMProvider = "gemini"
	ProviderOpenAI LLMProvider = "openai"
	ProviderGroq   LLMProvider = "groq"
	ProviderOllama LLMProvider = "ollama"
)

type SearchProvider string

const (
	SearchSerper SearchProvider = "serper"
	SearchBrave  SearchProvider = "brave"
)

type StoreBackend string

const (
	StoreRedis  StoreBackend = "redis"
	StoreBadger StoreBackend = "badger"
)

// Config holds everything the server needs to wire the pipeline.
type Config struct {
	Port string

	// Counter and answer cache storage.
	StoreBackend  StoreBackend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	BadgerPath    string // empty keeps Badger in memory

	// Model backend. Empty model names are filled from the provider table
	// by ApplyModelDefaults.
	LLMProvider        LLMProvider
	OpenAIAPIKey       string
	GroqAPIKey         string
	OllamaBaseURL      string
	GoogleProject      string
	GoogleLocation     string
	GeminiAPIKey       string
	AnswerModel        string
	RephraseModel      string
	FollowUpModel      string
	FallbackModel      string
	EmbeddingModel     string
	UseFunctionCalling bool

	SearchProvider SearchProvider
	SerperAPIKey   string
	BraveAPIKey    string

	RequestsPerMinute int
	CacheTTL          time.Duration
	ScrapeWorkers     int

	// Semantic cache
	UseSemanticCache  bool
	QdrantHost        string
	QdrantPort        int
	QdrantCollection  string
	SemanticThreshold float32
}

func DefaultConfig() *Config {
	return &Config{
		Port:               "8080",
		StoreBackend:       StoreRedis,
		RedisAddr:          "localhost:6379",
		LLMProvider:        ProviderGemini,
		OllamaBaseURL:      "http://localhost:11434/v1",
		GoogleLocation:     "us-central1",
		UseFunctionCalling: true,
		SearchProvider:     SearchSerper,
		RequestsPerMinute:  30,
		CacheTTL:           time.Hour,
		ScrapeWorkers:      4,
		QdrantHost:         "localhost",
		QdrantPort:         6334,
		QdrantCollection:   "answer_cache",
		SemanticThreshold:  0.9,
	}
}

// ModelSet names the models one provider uses by default.
type ModelSet struct {
	Rephrase  string
	Answer    string
	FollowUp  string
	Fallback  string
	Embedding string
}

var defaultModels = map[LLMProvider]ModelSet{
	ProviderOpenAI: {
		Rephrase:  "gpt-4o-mini",
		Answer:    "gpt-4o-mini",
		FollowUp:  "gpt-4o-mini",
		Embedding: "text-embedding-ada-002",
	},
	ProviderGroq: {
		Rephrase:  "llama-guard-3-8b",
		Answer:    "llama-3.3-70b-versatile",
		FollowUp:  "llama-3.3-70b-versatile",
		Embedding: "text-embedding-ada-002",
	},
	ProviderOllama: {
		Rephrase:  "llama3",
		Answer:    "llama3",
		FollowUp:  "llama3",
		Embedding: "bge-large",
	},
	ProviderGemini: {
		Rephrase:  "gemini-2.5-flash",
		Answer:    "gemini-2.5-flash",
		FollowUp:  "gemini-2.5-flash",
		Fallback:  "gemini-1.5-flash",
		Embedding: "text-embedding-004",
	},
}

// DefaultModels returns the model table entry for p.
func DefaultModels(p LLMProvider) (ModelSet, bool) {
	m, ok := defaultModels[p]
	return m, ok
}

// ApplyModelDefaults fills every empty model name from the provider table.
func (c *Config) ApplyModelDefaults() {
	m, ok := defaultModels[c.LLMProvider]
	if !ok {
		return
	}
	c.RephraseModel = orDefault(c.RephraseModel, m.Rephrase)
	c.AnswerModel = orDefault(c.AnswerModel, m.Answer)
	c.FollowUpModel = orDefault(c.FollowUpModel, m.FollowUp)
	c.FallbackModel = orDefault(c.FallbackModel, m.Fallback)
	c.EmbeddingModel = orDefault(c.EmbeddingModel, m.Embedding)
}

// Validate applies model defaults and checks the configuration is complete.
func (c *Config) Validate() error {
	c.ApplyModelDefaults()

	if c.Port == "" {
		return errors.New("config: PORT is required")
	}

	switch c.StoreBackend {
	case StoreRedis:
		if c.RedisAddr == "" {
			return errors.New("config: REDIS_ADDR is required for the redis store")
		}
	case StoreBadger:
	default:
		return fmt.Errorf("config: unknown STORE_BACKEND %q", c.StoreBackend)
	}

	switch c.LLMProvider {
	case ProviderGemini:
		if c.GoogleProject == "" && c.GeminiAPIKey == "" {
			return errors.New("config: gemini needs GOOGLE_CLOUD_PROJECT or GEMINI_API_KEY")
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("config: OPENAI_API_KEY is required for openai")
		}
	case ProviderGroq:
		// Groq serves no embeddings; they come from OpenAI.
		if c.GroqAPIKey == "" || c.OpenAIAPIKey == "" {
			return errors.New("config: groq needs GROQ_API_KEY and OPENAI_API_KEY")
		}
	case ProviderOllama:
		if c.OllamaBaseURL == "" {
			return errors.New("config: OLLAMA_BASE_URL is required for ollama")
		}
	default:
		return fmt.Errorf("config: unsupported LLM_PROVIDER %q", c.LLMProvider)
	}

	if c.RequestsPerMinute < 1 {
		return errors.New("config: REQUESTS_PER_MINUTE must be positive")
	}
	if c.CacheTTL <= 0 {
		return errors.New("config: CACHE_TTL_SECONDS must be positive")
	}
	if c.ScrapeWorkers < 1 {
		return errors.New("config: SCRAPE_WORKERS must be positive")
	}
	if c.UseSemanticCache {
		if c.QdrantHost == "" || c.QdrantCollection == "" {
			return errors.New("config: semantic cache needs QDRANT_HOST and QDRANT_COLLECTION")
		}
		if c.SemanticThreshold <= 0 || c.SemanticThreshold > 1 {
			return errors.New("config: SEMANTIC_CACHE_THRESHOLD must be in (0, 1]")
		}
	}
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
