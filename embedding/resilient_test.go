package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kestrelai/memoria/resilience"
)

type flakyProvider struct {
	failuresRemaining int
	calls             int
	vector            []float32
}

func (f *flakyProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failuresRemaining > 0 {
		f.failuresRemaining--
		return nil, errors.New("transient failure")
	}
	return f.vector, nil
}

func (f *flakyProvider) EmbedBatch(ctx context.Context, texts []string, callback ProgressCallback) ([][]float32, error) {
	panic("unused")
}

func (f *flakyProvider) Info() Info {
	return DefaultInfo("flaky")
}

func TestResilientEmbedRetriesUntilSuccess(t *testing.T) {
	inner := &flakyProvider{failuresRemaining: 2, vector: []float32{1, 2, 3}}
	r := NewResilient(inner, resilience.RetryOpts{MaxAttempts: 3, InitialWait: time.Millisecond, MaxWait: time.Millisecond}, nil)

	vector, err := r.Embed(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3}, vector)
	assert.Equal(t, 3, inner.calls)
}

func TestResilientEmbedExhaustsRetriesAndReturnsError(t *testing.T) {
	inner := &flakyProvider{failuresRemaining: 5}
	r := NewResilient(inner, resilience.RetryOpts{MaxAttempts: 2, InitialWait: time.Millisecond, MaxWait: time.Millisecond}, nil)

	_, err := r.Embed(context.Background(), "hello")
	assert.Error(t, err)
	assert.Equal(t, 2, inner.calls)
}
