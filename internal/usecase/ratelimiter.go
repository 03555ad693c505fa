package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"answer-engine/internal/domain/entity"
	"answer-engine/internal/domain/repository"
)

// RateWindow is the fixed window a client's request counter lives for.
const RateWindow = 60 * time.Second

type RateLimiter struct {
	store  repository.CounterStore
	limit  int
	window time.Duration
	logger *slog.Logger
}

func NewRateLimiter(store repository.CounterStore, requestsPerMinute int) *RateLimiter {
	return &RateLimiter{
		store:  store,
		limit:  requestsPerMinute,
		window: RateWindow,
		logger: slog.Default().With("component", "rate-limiter"),
	}
}

// Check counts one request for clientID and reports whether it is within
// quota. Store failures allow the request.
func (r *RateLimiter) Check(ctx context.Context, clientID string) bool {
	count, err := r.store.Incr(ctx, "rate:"+clientID, r.window)
	if err != nil {
		r.logger.Error("counter store failed, allowing request",
			"client", clientID, "err", fmt.Errorf("%w: %w", entity.ErrRateStoreFault, err))
		return true
	}
	if count > int64(r.limit) {
		r.logger.Warn("rate limit exceeded", "client", clientID, "count", count, "limit", r.limit)
		return false
	}
	return true
}
