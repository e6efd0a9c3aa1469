package llm

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"adresse/internal/domain"
)

// RetryPolicy bounds each model call and the number of extra attempts.
type RetryPolicy struct {
	Timeout time.Duration
	Retries int
	Delay   time.Duration
}

type retryingChat struct {
	next   domain.ChatModel
	policy RetryPolicy
	logger *zap.Logger
}

// WithRetry wraps next so that each attempt gets its own timeout and failed
// attempts are retried after a constant delay. Exhausted attempts surface as
// domain.ErrModelUnavailable; cancellation by the caller stops immediately.
func WithRetry(next domain.ChatModel, policy RetryPolicy, logger *zap.Logger) domain.ChatModel {
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.Retries < 0 {
		policy.Retries = 0
	}
	return &retryingChat{next: next, policy: policy, logger: logger}
}

func (r *retryingChat) Name() string { return r.next.Name() }

func (r *retryingChat) Chat(ctx context.Context, messages []domain.Message) (string, error) {
	var (
		out     string
		attempt int
	)
	op := func() error {
		attempt++
		actx, cancel := ctx, context.CancelFunc(func() {})
		if r.policy.Timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, r.policy.Timeout)
		}
		defer cancel()

		text, err := r.next.Chat(actx, messages)
		if err == nil {
			out = text
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		r.logger.Warn("model call failed",
			zap.String("model", r.next.Name()),
			zap.Int("attempt", attempt),
			zap.Error(err))
		return err
	}

	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(r.policy.Delay), uint64(r.policy.Retries)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("model call canceled: %w", ctx.Err())
		}
		return "", fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return out, nil
}

// Ping forwards to the wrapped model when it supports health checks.
func (r *retryingChat) Ping(ctx context.Context) error {
	if p, ok := r.next.(interface{ Ping(context.Context) error }); ok {
		return p.Ping(ctx)
	}
	return nil
}
