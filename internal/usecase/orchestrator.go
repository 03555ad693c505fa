package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"answer-engine/internal/domain/entity"
)

// Orchestrator runs one non-streaming answer request end to end.
type Orchestrator struct {
	limiter   *RateLimiter
	cache     *AnswerCache
	semantic  *SemanticCache // nil when the semantic cache is disabled
	retriever *Retriever
	generator *Generator
	cacheTTL  time.Duration
	logger    *slog.Logger
}

func NewOrchestrator(limiter *RateLimiter, cache *AnswerCache, semantic *SemanticCache, retriever *Retriever, generator *Generator, cacheTTL time.Duration) *Orchestrator {
	return &Orchestrator{
		limiter:   limiter,
		cache:     cache,
		semantic:  semantic,
		retriever: retriever,
		generator: generator,
		cacheTTL:  cacheTTL,
		logger:    slog.Default().With("component", "orchestrator"),
	}
}

// Execute always returns a result. Failures become a generic answer and the
// detail goes to the log only.
func (u *Orchestrator) Execute(ctx context.Context, clientID string, req entity.AnswerRequest) (result *entity.AnswerResult, outcome entity.Outcome) {
	defer func() {
		if p := recover(); p != nil {
			u.logger.Error("answer pipeline panicked", "client", clientID, "panic", p, "stack", string(debug.Stack()))
			result, outcome = entity.MessageResult(entity.InternalErrorMessage), entity.OutcomeFailed
		}
	}()

	result, outcome, err := u.execute(ctx, clientID, req)
	if err != nil {
		u.logger.Error("answer pipeline failed", "client", clientID, "err", err)
		return entity.MessageResult(entity.InternalErrorMessage), entity.OutcomeFailed
	}
	return result, outcome
}

func (u *Orchestrator) execute(ctx context.Context, clientID string, req entity.AnswerRequest) (*entity.AnswerResult, entity.Outcome, error) {
	// 1. Check rate limits
	if !u.limiter.Check(ctx, clientID) {
		return entity.MessageResult(entity.QuotaExceededMessage), entity.OutcomeQuotaExceeded, nil
	}
	u.logger.Info("received request", "client", clientID, "message", req.Message)

	// 2. Cache lookup, exact then semantic
	if cached, ok := u.cache.Get(ctx, req.Message); ok {
		return cached, entity.OutcomeCached, nil
	}
	if u.semantic != nil {
		if cached, ok := u.semantic.Lookup(ctx, req.Message); ok {
			return cached, entity.OutcomeCached, nil
		}
	}

	// 3. Retrieve context
	retrieval, err := u.retriever.Retrieve(ctx, req.Message, req.NumberOfPagesToScan,
		req.NumberOfSimilarityResults, req.Chunking(), req.EmbedSourcesInLLMResponse)
	if err != nil {
		return nil, entity.OutcomeFailed, fmt.Errorf("retrieval: %w", err)
	}
	switch retrieval.Outcome {
	case entity.OutcomeNoSources:
		u.logger.Warn("no documents scraped", "query", retrieval.Query)
		return entity.MessageResult(entity.NoSourcesMessage), entity.OutcomeNoSources, nil
	case entity.OutcomeAnswered:
	default:
		return nil, entity.OutcomeFailed, fmt.Errorf("unexpected retrieval outcome %s", retrieval.Outcome)
	}

	// 4. Generate
	prompt := Prompt{Context: retrieval.Context, Question: retrieval.Query, Cite: req.EmbedSourcesInLLMResponse}
	answer, invocations, err := u.generator.Answer(ctx, prompt, true)
	if err != nil {
		return nil, entity.OutcomeFailed, err
	}

	result := &entity.AnswerResult{Answer: answer, ToolOutputs: invocations}
	if result.ToolOutputs == nil {
		result.ToolOutputs = []entity.ToolInvocation{}
	}
	if req.ReturnSources && len(retrieval.Sources) > 0 {
		result.Sources = retrieval.Sources
	}
	if req.ReturnFollowUpQuestions {
		followUps, err := u.generator.FollowUpQuestions(ctx, retrieval.Query)
		if err != nil {
			u.logger.Error("follow-up generation failed", "err", err)
		} else if len(followUps) > 0 {
			result.FollowUpQuestions = followUps
		}
	}

	// 5. Write back under the raw message
	u.cache.Put(ctx, req.Message, result, u.cacheTTL)
	if u.semantic != nil {
		go u.semantic.Store(context.WithoutCancel(ctx), req.Message, result)
	}

	return result, entity.OutcomeAnswered, nil
}
