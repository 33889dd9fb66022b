package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	"SignalForge/internal/evaluator"
	"SignalForge/internal/indicator"
	"SignalForge/internal/repository"
	"SignalForge/internal/services/notify"
	"SignalForge/internal/strategy"
	pkgcache "SignalForge/pkg/cache"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/metrics"
)

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

// alwaysBuy forces a BUY decision regardless of indicators.
type alwaysBuy struct{}

func (alwaysBuy) Name() string { return "always_buy" }
func (alwaysBuy) Generate(strategy.Inputs) strategy.Result {
	return strategy.Result{Type: models.SignalBuy, Reasoning: []string{"forced buy"}}
}

type fakeExplainer struct {
	mu    sync.Mutex
	calls int
	fail  bool
}

func (f *fakeExplainer) Explain(ctx context.Context, sig models.SignalRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.fail {
		return "", errors.New("commentary service down")
	}
	return "explained " + sig.Symbol, nil
}

type fakePublisher struct {
	mu        sync.Mutex
	published []string
	fail      bool
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("broker unavailable")
	}
	f.published = append(f.published, topic+"/"+string(key))
	return nil
}

type fakeQueue struct {
	mu       sync.Mutex
	messages []string
	payloads []interface{}
}

func (f *fakeQueue) PublishMessage(ctx context.Context, msgType string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, msgType)
	f.payloads = append(f.payloads, payload)
	return nil
}

func seedBars(t *testing.T, bars *repository.MemoryBarStore, symbol string, n int) {
	t.Helper()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := 100 + float64(i)*0.5
		err := bars.Store(context.Background(), &models.PriceBar{
			Symbol:    symbol,
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		})
		require.NoError(t, err)
	}
}

type pipelineFixture struct {
	bars    *repository.MemoryBarStore
	snaps   *repository.MemorySnapshotStore
	signals *repository.MemorySignalStore
	reg     *strategy.Registry
}

func newPipeline(t *testing.T, opts ...SignalPipelineOption) (*SignalPipeline, *pipelineFixture) {
	t.Helper()
	f := &pipelineFixture{
		bars:    repository.NewMemoryBarStore(),
		snaps:   repository.NewMemorySnapshotStore(),
		signals: repository.NewMemorySignalStore(),
		reg:     strategy.NewRegistry(nil, nil),
	}
	p := NewSignalPipeline(
		f.bars, f.snaps, f.signals,
		indicator.NewEngine(14, 12, 26, 9),
		evaluator.New(f.reg),
		metrics.Nop{}, testLogger(t),
		opts...,
	)
	return p, f
}

func TestGenerateSignalPersistsAndIsIdempotent(t *testing.T) {
	ctx := context.Background()
	p, f := newPipeline(t)
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	sig, err := p.GenerateSignal(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.SignalBuy, sig.SignalType)
	assert.Equal(t, evaluator.RuleVersion, sig.RuleVersion)
	firstID := sig.ID

	// Snapshots for the whole window were upserted.
	snaps, err := f.snaps.GetRange(ctx,
		"AAPL", time.Time{}, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, snaps, 30)

	// Rerunning the same bar overwrites, never duplicates.
	again, err := p.GenerateSignal(ctx, "AAPL")
	require.NoError(t, err)
	assert.Equal(t, firstID, again.ID)
	assert.Len(t, f.signals.All(), 1)
}

func TestGenerateSignalInsufficientHistory(t *testing.T) {
	p, f := newPipeline(t)
	seedBars(t, f.bars, "AAPL", 5)

	_, err := p.GenerateSignal(context.Background(), "AAPL")
	require.Error(t, err)
	assert.True(t, errors.Is(err, domrepo.ErrInsufficientData))
	assert.Empty(t, f.signals.All())
}

func TestGenerateSignalEmptySymbol(t *testing.T) {
	p, _ := newPipeline(t)
	_, err := p.GenerateSignal(context.Background(), "")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domrepo.ErrInsufficientData))
}

func TestGenerateBatchSkipsShortSymbols(t *testing.T) {
	p, f := newPipeline(t)
	f.reg.Assign("GOOD", alwaysBuy{})
	seedBars(t, f.bars, "GOOD", 30)
	seedBars(t, f.bars, "SHORT", 3)

	out := p.GenerateBatch(context.Background(), []string{"GOOD", "SHORT", "EMPTY"})
	require.Len(t, out, 1)
	assert.Equal(t, "GOOD", out[0].Symbol)
}

func TestPipelinePublishesSignals(t *testing.T) {
	pub := &fakePublisher{}
	p, f := newPipeline(t, WithPublisher(pub, "signals.events"))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	_, err := p.GenerateSignal(context.Background(), "AAPL")
	require.NoError(t, err)
	require.Len(t, pub.published, 1)
	assert.Equal(t, "signals.events/AAPL", pub.published[0])
}

func TestPipelinePublishFailureIsNotFatal(t *testing.T) {
	pub := &fakePublisher{fail: true}
	p, f := newPipeline(t, WithPublisher(pub, "signals.events"))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	sig, err := p.GenerateSignal(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.NotNil(t, sig)
	assert.Len(t, f.signals.All(), 1)
}

func TestPipelineInlineExplanation(t *testing.T) {
	exp := &fakeExplainer{}
	p, f := newPipeline(t, WithExplainer(exp))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	sig, err := p.GenerateSignal(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, exp.calls)
	assert.Equal(t, "explained AAPL", sig.Explanation)

	all := f.signals.All()
	require.Len(t, all, 1)
	assert.Equal(t, "explained AAPL", all[0].Explanation)
}

func TestPipelineHoldIsNeverExplained(t *testing.T) {
	exp := &fakeExplainer{}
	p, f := newPipeline(t, WithExplainer(exp))
	// No strategy assigned: the hold fallback decides.
	seedBars(t, f.bars, "AAPL", 30)

	sig, err := p.GenerateSignal(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, models.SignalHold, sig.SignalType)
	assert.Equal(t, 0, exp.calls)
	assert.Empty(t, sig.Explanation)
}

func TestPipelineExplainerFailureIsNotFatal(t *testing.T) {
	exp := &fakeExplainer{fail: true}
	p, f := newPipeline(t, WithExplainer(exp))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	sig, err := p.GenerateSignal(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Empty(t, sig.Explanation)
}

func TestPipelineQueueTakesPrecedence(t *testing.T) {
	exp := &fakeExplainer{}
	q := &fakeQueue{}
	p, f := newPipeline(t, WithExplainer(exp), WithExplainQueue(q))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	sig, err := p.GenerateSignal(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 0, exp.calls, "inline explainer bypassed when a queue is attached")
	require.Len(t, q.messages, 1)
	assert.Equal(t, notify.ExplainMsgType, q.messages[0])

	payload, ok := q.payloads[0].(notify.ExplainPayload)
	require.True(t, ok, "payload type %T", q.payloads[0])
	assert.Equal(t, sig.ID, payload.SignalID)
	assert.Equal(t, "AAPL", payload.Symbol)
	assert.Equal(t, string(models.SignalBuy), payload.SignalType)
}

func TestRecomputeIndicatorsUpserts(t *testing.T) {
	ctx := context.Background()
	p, f := newPipeline(t)
	seedBars(t, f.bars, "AAPL", 20)

	snaps, err := p.RecomputeIndicators(ctx, "AAPL")
	require.NoError(t, err)
	require.Len(t, snaps, 20)

	// Same snapshot count after a second run.
	_, err = p.RecomputeIndicators(ctx, "AAPL")
	require.NoError(t, err)
	stored, err := f.snaps.GetRange(ctx,
		"AAPL", time.Time{}, time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, stored, 20)
}

func TestWindowOptionBoundsRecompute(t *testing.T) {
	ctx := context.Background()
	p, f := newPipeline(t, WithWindow(16))
	seedBars(t, f.bars, "AAPL", 40)

	snaps, err := p.RecomputeIndicators(ctx, "AAPL")
	require.NoError(t, err)
	assert.Len(t, snaps, 16)
}

func TestLatestSnapshotServedFromCache(t *testing.T) {
	ctx := context.Background()
	p, f := newPipeline(t, WithSnapshotCache(pkgcache.NewMemoryCache()))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	_, err := p.GenerateSignal(ctx, "AAPL")
	require.NoError(t, err)

	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lastBarTS := base.Add(29 * 24 * time.Hour)

	snap, err := p.LatestSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, snap.Timestamp.Equal(lastBarTS))

	// A new bar is invisible until the next recompute; the cached snapshot
	// still points at the previous bar.
	price := 120.0
	require.NoError(t, f.bars.Store(ctx, &models.PriceBar{
		Symbol:    "AAPL",
		Timestamp: base.Add(30 * 24 * time.Hour),
		Open:      price, High: price + 1, Low: price - 1, Close: price, Volume: 1000,
	}))
	snap, err = p.LatestSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, snap.Timestamp.Equal(lastBarTS))
}

func TestLatestSnapshotRecomputesOnMiss(t *testing.T) {
	ctx := context.Background()
	p, f := newPipeline(t, WithSnapshotCache(pkgcache.NewMemoryCache()))
	f.reg.Assign("AAPL", alwaysBuy{})
	seedBars(t, f.bars, "AAPL", 30)

	snap, err := p.LatestSnapshot(ctx, "AAPL")
	require.NoError(t, err)
	assert.True(t, snap.Timestamp.Equal(time.Date(2025, 1, 30, 0, 0, 0, 0, time.UTC)))

	_, err = p.LatestSnapshot(ctx, "NONE")
	require.ErrorIs(t, err, domrepo.ErrInsufficientData)
}
