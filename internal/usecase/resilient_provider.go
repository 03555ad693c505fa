package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"time"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// ResilientModel retries transient completion failures with backoff and then
// tries the fallback model once.
type ResilientModel struct {
	model         repository.ChatModel
	fallbackModel string // e.g. a faster or cheaper model on the same backend
	maxRetries    int
	baseDelay     time.Duration
	timeout       time.Duration
	logger        *slog.Logger
}

func NewResilientModel(model repository.ChatModel, fallbackModel string) *ResilientModel {
	return &ResilientModel{
		model:         model,
		fallbackModel: fallbackModel,
		maxRetries:    2, // 3 attempts on the requested model
		baseDelay:     500 * time.Millisecond,
		timeout:       60 * time.Second,
		logger:        slog.Default().With("component", "resilient-model"),
	}
}

func (r *ResilientModel) Complete(ctx context.Context, model string, messages []entity.Message, tools []entity.ToolSpec) (*entity.Completion, error) {
	// Scoped so one slow completion cannot hang the request.
	resCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	resp, err := r.executeWithRetry(resCtx, model, messages, tools)
	if err == nil {
		return resp, nil
	}
	if r.fallbackModel == "" || r.fallbackModel == model || ctx.Err() != nil {
		return nil, err
	}

	r.logger.Warn("primary model exhausted, switching to fallback", "model", model, "fallback", r.fallbackModel, "err", err)
	resp, err = r.model.Complete(resCtx, r.fallbackModel, messages, tools)
	if err != nil {
		return nil, fmt.Errorf("both primary and fallback failed: %w", err)
	}
	return resp, nil
}

// Stream is not retried: tokens already delivered cannot be taken back.
func (r *ResilientModel) Stream(ctx context.Context, model string, messages []entity.Message, onToken func(string) error) error {
	return r.model.Stream(ctx, model, messages, onToken)
}

func (r *ResilientModel) executeWithRetry(ctx context.Context, model string, messages []entity.Message, tools []entity.ToolSpec) (*entity.Completion, error) {
	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		resp, err := r.model.Complete(ctx, model, messages, tools)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !r.isRetryable(err) || attempt == r.maxRetries {
			break
		}

		wait := r.calculateBackoff(attempt)
		select {
		case <-time.After(wait):
			continue
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (r *ResilientModel) isRetryable(err error) bool {
	msg := strings.ToLower(err.Error())
	// Rate limits (429) and server errors (5xx)
	return strings.Contains(msg, "429") ||
		strings.Contains(msg, "500") ||
		strings.Contains(msg, "503") ||
		strings.Contains(msg, "overloaded") ||
		strings.Contains(msg, "deadline")
}

func (r *ResilientModel) calculateBackoff(attempt int) time.Duration {
	backoff := float64(r.baseDelay) * float64(int(1)<<attempt)
	jitter := (rand.Float64() * 0.2) * backoff // 20% jitter
	return time.Duration(backoff + jitter)
}
