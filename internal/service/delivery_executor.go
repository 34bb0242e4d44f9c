package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/config"
	"github.com/popeskul/wa-dispatcher/internal/gateway"
	"github.com/popeskul/wa-dispatcher/internal/metrics"
	"github.com/popeskul/wa-dispatcher/internal/pacing"
)

// RetryPolicy bounds the attempts made for a single recipient.
type RetryPolicy struct {
	AttemptTimeout time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		AttemptTimeout: 30 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 5 * time.Second,
	}
}

// RetryPolicyFromConfig builds the policy from loaded configuration.
func RetryPolicyFromConfig(gw config.GatewayConfig, d config.DispatchConfig) RetryPolicy {
	policy := DefaultRetryPolicy()
	if gw.SendTimeout > 0 {
		policy.AttemptTimeout = time.Duration(gw.SendTimeout) * time.Second
	}
	if d.MaxRetries >= 0 {
		policy.MaxRetries = d.MaxRetries
	}
	if d.InitialBackoffMs > 0 {
		policy.InitialBackoff = time.Duration(d.InitialBackoffMs) * time.Millisecond
	}
	return policy
}

// Backoff returns the wait before retry number n (1-based).
func (p RetryPolicy) Backoff(n int) time.Duration {
	if n < 1 {
		return 0
	}
	return p.InitialBackoff << (n - 1)
}

// DeliveryResult is the outcome of delivering one message.
type DeliveryResult struct {
	Delivered  bool
	Attempts   int
	StatusCode int
	Err        error
	// Aborted is set when the caller's context ended before an outcome was
	// reached. The recipient must stay pending.
	Aborted bool
}

// ErrorText is the text stored on a failed recipient row.
func (r DeliveryResult) ErrorText() string {
	if r.Err == nil {
		return ""
	}
	return r.Err.Error()
}

type DeliveryExecutor struct {
	gateway Gateway
	breaker *CircuitBreaker
	policy  RetryPolicy
	clock   pacing.Clock
	logger  *zap.Logger
}

func NewDeliveryExecutor(gw Gateway, breaker *CircuitBreaker, policy RetryPolicy, clock pacing.Clock, logger *zap.Logger) *DeliveryExecutor {
	return &DeliveryExecutor{
		gateway: gw,
		breaker: breaker,
		policy:  policy,
		clock:   clock,
		logger:  logger,
	}
}

// Deliver sends req, retrying transient failures with exponential backoff.
// It never returns an error: the result carries the last failure.
func (e *DeliveryExecutor) Deliver(ctx context.Context, req *gateway.SendRequest) DeliveryResult {
	var result DeliveryResult
	maxAttempts := e.policy.MaxRetries + 1

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			backoff := e.policy.Backoff(attempt - 1)
			if err := e.clock.Sleep(ctx, backoff); err != nil {
				result.Aborted = true
				return result
			}
		}

		result.Attempts = attempt
		start := time.Now()
		err := e.attempt(ctx, req)
		elapsed := time.Since(start)
		metrics.GatewaySendDuration.Observe(elapsed.Seconds())

		if err == nil {
			metrics.GatewayAttempts.WithLabelValues("ok").Inc()
			e.logger.Info("Message delivered",
				zap.String("to", req.To),
				zap.Int("attempt", attempt),
				zap.Duration("duration", elapsed),
			)
			result.Delivered = true
			result.Err = nil
			result.StatusCode = 0
			return result
		}

		if ctx.Err() != nil {
			result.Aborted = true
			result.Err = ctx.Err()
			return result
		}

		retryable := e.retryable(err)
		result.Err = err
		result.StatusCode = gateway.StatusCode(err)

		if retryable {
			metrics.GatewayAttempts.WithLabelValues("transient").Inc()
		} else {
			metrics.GatewayAttempts.WithLabelValues("terminal").Inc()
		}

		e.logger.Warn("Message delivery attempt failed",
			zap.String("to", req.To),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Int("status_code", result.StatusCode),
			zap.Duration("duration", elapsed),
			zap.Bool("retryable", retryable),
			zap.Error(err),
		)

		if !retryable {
			return result
		}
	}

	return result
}

func (e *DeliveryExecutor) attempt(ctx context.Context, req *gateway.SendRequest) error {
	attemptCtx, cancel := context.WithTimeout(ctx, e.policy.AttemptTimeout)
	defer cancel()

	err := e.breaker.Execute(attemptCtx, func() error {
		return e.gateway.Send(attemptCtx, req)
	})
	if err != nil && errors.Is(attemptCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return fmt.Errorf("attempt timed out after %s: %w", e.policy.AttemptTimeout, context.DeadlineExceeded)
	}
	return err
}

func (e *DeliveryExecutor) retryable(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || gateway.IsTransient(err)
}
