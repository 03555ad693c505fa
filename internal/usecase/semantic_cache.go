package usecase

import (
	"context"
	"log/slog"
	"time"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// SemanticCache finds answers to earlier queries that ask for the same thing
// in different words. A vector hit above the threshold is only served after
// the judge confirms both queries share intent.
type SemanticCache struct {
	embedder  repository.Embedder
	store     repository.SemanticStore
	judge     repository.IntentJudge
	threshold float32
	maxAge    time.Duration
	logger    *slog.Logger
}

func NewSemanticCache(embedder repository.Embedder, store repository.SemanticStore, judge repository.IntentJudge, threshold float32, maxAge time.Duration) *SemanticCache {
	return &SemanticCache{
		embedder:  embedder,
		store:     store,
		judge:     judge,
		threshold: threshold,
		maxAge:    maxAge,
		logger:    slog.Default().With("component", "semantic-cache"),
	}
}

func (s *SemanticCache) Lookup(ctx context.Context, query string) (*entity.AnswerResult, bool) {
	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		s.logger.Error("embedding query failed", "err", err)
		return nil, false
	}
	hit, err := s.store.Search(ctx, vector, s.threshold, s.maxAge)
	if err != nil {
		s.logger.Error("semantic search failed", "err", err)
		return nil, false
	}
	if hit == nil {
		return nil, false
	}
	if s.judge != nil && !s.judge.IsMatch(ctx, query, hit.Query) {
		s.logger.Info("judge rejected semantic hit", "query", query, "cached", hit.Query, "score", hit.Score)
		return nil, false
	}
	result, err := decodeAnswer(hit.Payload)
	if err != nil {
		s.logger.Error("semantic entry undecodable", "err", err)
		return nil, false
	}
	s.logger.Info("semantic cache hit", "query", query, "cached", hit.Query, "score", hit.Score)
	return result, true
}

func (s *SemanticCache) Store(ctx context.Context, query string, result *entity.AnswerResult) {
	payload, err := encodeAnswer(result)
	if err != nil {
		s.logger.Error("semantic entry unencodable", "err", err)
		return
	}
	vector, err := s.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		s.logger.Error("embedding query failed", "err", err)
		return
	}
	if err := s.store.Save(ctx, query, payload, vector); err != nil {
		s.logger.Error("semantic cache write failed", "err", err)
	}
}
