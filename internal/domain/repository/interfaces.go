package repository

import (
	"context"
	"time"

	"answer-engine/internal/domain/entity"
)

// CounterStore increments a counter and arms its expiry only when the
// increment created the key.
type CounterStore interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, error)
}

// KVStore is the exact-match answer cache backend. Get reports found=false
// for missing or expired keys.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// SemanticHit is the closest previously answered query.
type SemanticHit struct {
	Query   string
	Payload []byte
	Score   float32
}

type SemanticStore interface {
	Search(ctx context.Context, vector []float32, threshold float32, maxAge time.Duration) (*SemanticHit, error)
	Save(ctx context.Context, query string, payload []byte, vector []float32) error
}

type IntentJudge interface {
	IsMatch(ctx context.Context, userPrompt, cachedPrompt string) bool
}

// ChatModel is a chat completion backend. Stream calls onToken for every
// fragment as soon as it arrives; an error from onToken aborts the stream.
type ChatModel interface {
	Complete(ctx context.Context, model string, messages []entity.Message, tools []entity.ToolSpec) (*entity.Completion, error)
	Stream(ctx context.Context, model string, messages []entity.Message, onToken func(string) error) error
}

type Embedder interface {
	CreateEmbedding(ctx context.Context, text string) ([]float32, error)
	CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error)
}

// VectorIndexer embeds chunks and builds a queryable index over them.
// metadata[i] belongs to chunks[i].
type VectorIndexer interface {
	Build(ctx context.Context, chunks []string, metadata []map[string]any) (VectorIndex, error)
}

type VectorIndex interface {
	Query(ctx context.Context, text string, k int) ([]entity.Passage, error)
}

type SearchProvider interface {
	Search(ctx context.Context, query string, maxResults int) ([]entity.SearchResult, error)
}

// Scraper fetches a page and returns its plain text. Network and HTTP
// errors wrap entity.ErrFetchFailure.
type Scraper interface {
	FetchAndExtract(ctx context.Context, url string) (string, error)
}

type ToolHandler func(ctx context.Context, args map[string]any) (any, error)

type Tool struct {
	Spec    entity.ToolSpec
	Handler ToolHandler
}
