package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"

	"answer-engine/internal/domain/entity"
)

// Progress texts, one per retrieval stage.
const (
	ProgressRephrase = "Rephrasing your question..."
	ProgressSearch   = "Searching the web..."
	ProgressScrape   = "Reading the search results..."
	ProgressEmbed    = "Indexing page content..."
	ProgressRank     = "Finding the most relevant passages..."
	ProgressTools    = "Running tools..."
)

var errConsumerGone = errors.New("stream consumer gone")

// StreamCoordinator runs the answer pipeline and reports it as an ordered
// stream of events. Every stream ends either after the tool phase or with
// exactly one terminal event, and the channel is always closed.
type StreamCoordinator struct {
	limiter   *RateLimiter
	cache     *AnswerCache
	semantic  *SemanticCache // nil when the semantic cache is disabled
	retriever *Retriever
	generator *Generator
	logger    *slog.Logger
}

func NewStreamCoordinator(limiter *RateLimiter, cache *AnswerCache, semantic *SemanticCache, retriever *Retriever, generator *Generator) *StreamCoordinator {
	return &StreamCoordinator{
		limiter:   limiter,
		cache:     cache,
		semantic:  semantic,
		retriever: retriever,
		generator: generator,
		logger:    slog.Default().With("component", "stream"),
	}
}

// Run starts the pipeline and returns its events. Cancelling ctx stops all
// upstream work; the consumer should cancel when it goes away.
func (s *StreamCoordinator) Run(ctx context.Context, clientID string, req entity.AnswerRequest) <-chan entity.Event {
	out := make(chan entity.Event)
	go func() {
		defer close(out)
		emit := func(ev entity.Event) error {
			// A ready consumer must not win over a cancelled context.
			if ctx.Err() != nil {
				return errConsumerGone
			}
			select {
			case out <- ev:
				return nil
			case <-ctx.Done():
				return errConsumerGone
			}
		}
		defer func() {
			if p := recover(); p != nil {
				s.logger.Error("stream panicked", "client", clientID, "panic", p, "stack", string(debug.Stack()))
				_ = emit(entity.TerminalEvent(entity.StreamErrorMessage))
			}
		}()

		err := s.run(ctx, clientID, req, emit)
		switch {
		case err == nil:
		case errors.Is(err, errConsumerGone) || ctx.Err() != nil:
			s.logger.Info("stream consumer disconnected", "client", clientID)
		default:
			s.logger.Error("stream failed", "client", clientID, "err", err)
			_ = emit(entity.TerminalEvent(entity.StreamErrorMessage))
		}
	}()
	return out
}

func (s *StreamCoordinator) run(ctx context.Context, clientID string, req entity.AnswerRequest, emit func(entity.Event) error) error {
	// RateCheck
	if !s.limiter.Check(ctx, clientID) {
		return emit(entity.TerminalEvent(entity.QuotaExceededMessage))
	}

	// CacheCheck
	if cached, ok := s.lookupCache(ctx, req.Message); ok {
		if err := emit(entity.TokenEvent(cached.Answer)); err != nil {
			return err
		}
		return s.emitTools(cached.ToolOutputs, emit)
	}

	// Rephrase
	if err := s.enter(ctx, ProgressRephrase, emit); err != nil {
		return err
	}
	query := s.retriever.Rephrase(ctx, req.Message)

	// Search
	if err := s.enter(ctx, ProgressSearch, emit); err != nil {
		return err
	}
	results := s.retriever.Search(ctx, query, req.NumberOfPagesToScan)

	// Scrape
	if err := s.enter(ctx, ProgressScrape, emit); err != nil {
		return err
	}
	docs := s.retriever.Scrape(ctx, results)
	if len(docs) == 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		return emit(entity.TerminalEvent(entity.NoSourcesMessage))
	}

	// Embed
	if err := s.enter(ctx, ProgressEmbed, emit); err != nil {
		return err
	}
	index, err := s.retriever.Index(ctx, docs, req.Chunking())
	if err != nil {
		return err
	}

	// SimilaritySearch
	if err := s.enter(ctx, ProgressRank, emit); err != nil {
		return err
	}
	passages, err := s.retriever.Rank(ctx, index, query, req.NumberOfSimilarityResults)
	if err != nil {
		return err
	}
	contextText, _ := BuildContext(passages, req.EmbedSourcesInLLMResponse)
	prompt := Prompt{Context: contextText, Question: query, Cite: req.EmbedSourcesInLLMResponse}

	// GenerateStream
	if err := ctx.Err(); err != nil {
		return err
	}
	err = s.generator.StreamAnswer(ctx, prompt, func(token string) error {
		return emit(entity.TokenEvent(token))
	})
	if err != nil {
		return err
	}

	// ToolPhase
	if err := ctx.Err(); err != nil {
		return err
	}
	invocations, err := s.generator.RunTools(ctx, prompt)
	if err != nil {
		return fmt.Errorf("tool phase: %w", err)
	}
	return s.emitTools(invocations, emit)
}

// enter announces a stage, refusing to start it once the consumer is gone.
func (s *StreamCoordinator) enter(ctx context.Context, progress string, emit func(entity.Event) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := emit(entity.ProgressEvent(progress)); err != nil {
		return err
	}
	return ctx.Err()
}

// lookupCache mirrors the non-streaming path: exact entry first, then a
// semantic match.
func (s *StreamCoordinator) lookupCache(ctx context.Context, query string) (*entity.AnswerResult, bool) {
	if cached, ok := s.cache.Get(ctx, query); ok {
		return cached, true
	}
	if s.semantic != nil {
		return s.semantic.Lookup(ctx, query)
	}
	return nil, false
}

// emitTools sends the tool progress line and the payload, or nothing when
// there were no invocations.
func (s *StreamCoordinator) emitTools(invocations []entity.ToolInvocation, emit func(entity.Event) error) error {
	if len(invocations) == 0 {
		return nil
	}
	if err := emit(entity.ProgressEvent(ProgressTools)); err != nil {
		return err
	}
	return emit(entity.ToolOutputEvent(invocations))
}
