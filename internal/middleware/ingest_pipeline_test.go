package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	"SignalForge/pkg/metrics"
)

type fakeSink struct {
	mu     sync.Mutex
	stored []models.PriceBar
	fail   bool
}

func (f *fakeSink) Store(ctx context.Context, bar *models.PriceBar) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("store unavailable")
	}
	f.stored = append(f.stored, *bar)
	return nil
}

func (f *fakeSink) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stored)
}

func validBar(symbol string) *models.PriceBar {
	return &models.PriceBar{
		Symbol:    symbol,
		Timestamp: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		Open:      100, High: 101, Low: 99, Close: 100.5, Volume: 1000,
	}
}

func TestIngestStoreForwards(t *testing.T) {
	sink := &fakeSink{}
	p := NewIngestPipeline(sink, metrics.Nop{})

	require.NoError(t, p.Store(context.Background(), validBar("AAPL")))
	assert.Equal(t, 1, sink.count())
}

func TestIngestValidation(t *testing.T) {
	sink := &fakeSink{}
	p := NewIngestPipeline(sink, metrics.Nop{})
	ctx := context.Background()

	assert.Error(t, p.Store(ctx, nil))

	noSymbol := validBar("")
	assert.Error(t, p.Store(ctx, noSymbol))

	noTS := validBar("AAPL")
	noTS.Timestamp = time.Time{}
	assert.Error(t, p.Store(ctx, noTS))

	negative := validBar("AAPL")
	negative.Close = -1
	assert.Error(t, p.Store(ctx, negative))

	assert.Equal(t, 0, sink.count())
}

func TestIngestThrottlesPerSymbol(t *testing.T) {
	sink := &fakeSink{}
	p := NewIngestPipeline(sink, metrics.Nop{}, WithMaxRPS(1))
	ctx := context.Background()

	// First bar per symbol passes; an immediate second one is throttled
	// without error.
	require.NoError(t, p.Store(ctx, validBar("AAPL")))
	require.NoError(t, p.Store(ctx, validBar("AAPL")))
	assert.Equal(t, 1, sink.count())

	// Another symbol has its own budget.
	require.NoError(t, p.Store(ctx, validBar("MSFT")))
	assert.Equal(t, 2, sink.count())
}

func TestIngestBuffersOnStoreFailure(t *testing.T) {
	sink := &fakeSink{fail: true}
	p := NewIngestPipeline(sink, metrics.Nop{}, WithBufferSize(10))
	ctx := context.Background()

	err := p.Store(ctx, validBar("AAPL"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pipeline downstream")

	// Once the sink recovers, the flusher drains the buffer.
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()

	p.Start(ctx)
	defer p.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for sink.count() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 1, sink.count())
}
