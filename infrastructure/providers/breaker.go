package providers

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"github.com/tolik-unicornrider/llm-bias-detector/domain/chat"
)

// BreakerProvider wraps a provider adapter with a circuit breaker so that a
// provider outage fails fast instead of tying up submissions in timeouts.
// This is fail-fast protection only; no call is ever retried.
type BreakerProvider struct {
	inner chat.ProviderPort
	cb    *gobreaker.CircuitBreaker
}

// NewBreakerProvider wraps inner with a circuit breaker named after its
// provider ID. Only infrastructure failures (network faults, rate limits)
// count toward tripping; request rejections and missing credentials are the
// caller's problem, not the provider's health.
func NewBreakerProvider(inner chat.ProviderPort) *BreakerProvider {
	settings := gobreaker.Settings{
		Name:        string(inner.ID()),
		MaxRequests: 3,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			if err == nil {
				return true
			}
			if pe, ok := chat.AsProviderError(err); ok {
				return pe.Kind == chat.ErrKindProviderRejected || pe.Kind == chat.ErrKindMissingCredential
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logrus.WithFields(logrus.Fields{
				"provider": name,
				"from":     from.String(),
				"to":       to.String(),
			}).Warn("Provider circuit breaker state changed")
		},
	}
	return &BreakerProvider{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(settings),
	}
}

func (b *BreakerProvider) ID() chat.ProviderID { return b.inner.ID() }

// Complete delegates through the breaker. An open breaker is reported as a
// network failure so the UI shows it inline like any other outage.
func (b *BreakerProvider) Complete(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.Complete(ctx, req)
	})
	if err != nil {
		return nil, b.mapError(err)
	}
	return result.(*chat.Completion), nil
}

// CompleteJSON delegates through the breaker when the inner adapter supports
// strict-JSON completions.
func (b *BreakerProvider) CompleteJSON(ctx context.Context, req *chat.CompletionRequest) (*chat.Completion, error) {
	jc, ok := b.inner.(chat.JSONCompleter)
	if !ok {
		return nil, &chat.ProviderError{
			Provider: b.inner.ID(),
			Kind:     chat.ErrKindProviderRejected,
			Message:  "provider does not support JSON completions",
		}
	}
	result, err := b.cb.Execute(func() (interface{}, error) {
		return jc.CompleteJSON(ctx, req)
	})
	if err != nil {
		return nil, b.mapError(err)
	}
	return result.(*chat.Completion), nil
}

func (b *BreakerProvider) mapError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &chat.ProviderError{
			Provider: b.inner.ID(),
			Kind:     chat.ErrKindNetworkFailure,
			Message:  "provider temporarily unavailable (circuit open)",
			Cause:    err,
		}
	}
	return err
}
