package embedding

import (
	"context"

	"github.com/kestrelai/memoria/resilience"
)

// Resilient wraps a Provider with retry-with-backoff and a circuit breaker,
// so a flaky embedding API degrades to fast failures instead of hanging
// every ingestion worker on every retry.
type Resilient struct {
	inner   Provider
	retry   resilience.RetryOpts
	breaker *resilience.Breaker
}

// NewResilient wraps provider. Pass zero-value RetryOpts/nil breaker to use
// the package defaults.
func NewResilient(provider Provider, retry resilience.RetryOpts, breaker *resilience.Breaker) *Resilient {
	if retry.MaxAttempts == 0 {
		retry = resilience.DefaultRetry
	}
	if breaker == nil {
		breaker = resilience.NewBreaker(resilience.DefaultBreakerOpts)
	}
	return &Resilient{inner: provider, retry: retry, breaker: breaker}
}

func (r *Resilient) Embed(ctx context.Context, text string) ([]float32, error) {
	var vector []float32
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		v, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) ([]float32, error) {
			return r.inner.Embed(ctx, text)
		})
		vector = v
		return err
	})
	return vector, err
}

func (r *Resilient) EmbedBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float32, error) {
	var vectors [][]float32
	err := r.breaker.Call(ctx, func(ctx context.Context) error {
		v, err := resilience.Retry(ctx, r.retry, func(ctx context.Context) ([][]float32, error) {
			return r.inner.EmbedBatch(ctx, texts, callback)
		})
		vectors = v
		return err
	})
	return vectors, err
}

func (r *Resilient) Info() Info {
	return r.inner.Info()
}

var _ Provider = (*Resilient)(nil)
