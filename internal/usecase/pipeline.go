package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	domsvc "SignalForge/internal/domain/service"
	"SignalForge/internal/evaluator"
	"SignalForge/internal/indicator"
	"SignalForge/internal/services/notify"
	pkgcache "SignalForge/pkg/cache"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/queue"
)

const defaultWindow = 600

// SignalPublisher pushes generated signals onto the event stream. Optional;
// a nil publisher disables the event feed without touching the pipeline.
type SignalPublisher interface {
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
}

// SignalPipeline is the recompute-then-evaluate core: pull the trailing bar
// window, recompute indicators, run the assigned strategy on the latest bar
// and persist the result.
type SignalPipeline struct {
	bars      domrepo.BarStore
	snaps     domrepo.SnapshotStore
	signals   domrepo.SignalStore
	engine    *indicator.Engine
	eval      *evaluator.Evaluator
	explainer domsvc.ExplanationGenerator
	explainQ  queue.QueueService
	publisher SignalPublisher
	snapCache pkgcache.Service
	metrics   domrepo.Metrics
	l         *applogger.Logger

	topic  string
	window int
}

type SignalPipelineOption func(*SignalPipeline)

// WithWindow overrides the trailing bar window used for recomputation.
func WithWindow(n int) SignalPipelineOption {
	return func(p *SignalPipeline) {
		if n > 0 {
			p.window = n
		}
	}
}

// WithExplainer attaches a free-text explanation generator. Explanations are
// opportunistic; failures never fail the signal.
func WithExplainer(g domsvc.ExplanationGenerator) SignalPipelineOption {
	return func(p *SignalPipeline) { p.explainer = g }
}

// WithExplainQueue defers explanation generation to a background queue
// instead of the inline call. Takes precedence over WithExplainer.
func WithExplainQueue(q queue.QueueService) SignalPipelineOption {
	return func(p *SignalPipeline) { p.explainQ = q }
}

// WithSnapshotCache keeps the newest snapshot per symbol in a cache so reads
// skip recomputation. The snapshot store stays the source of truth.
func WithSnapshotCache(c pkgcache.Service) SignalPipelineOption {
	return func(p *SignalPipeline) { p.snapCache = c }
}

// WithPublisher emits every generated signal to topic.
func WithPublisher(pub SignalPublisher, topic string) SignalPipelineOption {
	return func(p *SignalPipeline) {
		p.publisher = pub
		p.topic = topic
	}
}

func NewSignalPipeline(
	bars domrepo.BarStore,
	snaps domrepo.SnapshotStore,
	signals domrepo.SignalStore,
	engine *indicator.Engine,
	eval *evaluator.Evaluator,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...SignalPipelineOption,
) *SignalPipeline {
	p := &SignalPipeline{
		bars:    bars,
		snaps:   snaps,
		signals: signals,
		engine:  engine,
		eval:    eval,
		metrics: metrics,
		l:       l,
		window:  defaultWindow,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RecomputeIndicators recomputes snapshots over the trailing window and
// upserts them in place. Returns ErrInsufficientData when the stored history
// is shorter than the indicator warm-up.
func (p *SignalPipeline) RecomputeIndicators(ctx context.Context, symbol string) ([]models.IndicatorSnapshot, error) {
	_, snaps, err := p.recompute(ctx, symbol)
	return snaps, err
}

func (p *SignalPipeline) recompute(ctx context.Context, symbol string) ([]models.PriceBar, []models.IndicatorSnapshot, error) {
	if symbol == "" {
		return nil, nil, fmt.Errorf("symbol required")
	}

	start := time.Now()
	bars, err := p.bars.GetLatestNBars(ctx, symbol, p.window)
	if err != nil {
		p.metrics.RecordError("bars_fetch")
		return nil, nil, fmt.Errorf("fetch bars for %s: %w", symbol, err)
	}
	if len(bars) < p.engine.MinBars() {
		return nil, nil, fmt.Errorf("%s: %d bars, need %d: %w",
			symbol, len(bars), p.engine.MinBars(), domrepo.ErrInsufficientData)
	}

	snaps := p.engine.Compute(bars)
	if err := p.snaps.UpsertBatch(ctx, snaps); err != nil {
		p.metrics.RecordError("snapshot_upsert")
		return nil, nil, fmt.Errorf("upsert snapshots for %s: %w", symbol, err)
	}
	p.metrics.RecordLatency("recompute_indicators", time.Since(start).Seconds())
	p.cacheLatest(ctx, symbol, &snaps[len(snaps)-1])

	return bars, snaps, nil
}

func (p *SignalPipeline) cacheLatest(ctx context.Context, symbol string, snap *models.IndicatorSnapshot) {
	if p.snapCache == nil {
		return
	}
	b, err := json.Marshal(snap)
	if err != nil {
		return
	}
	key := pkgcache.GenerateKey("snapshot", symbol)
	if err := p.snapCache.Set(ctx, key, string(b), time.Hour); err != nil {
		p.l.Warn("snapshot cache set failed",
			applogger.String("symbol", symbol), applogger.Error(err))
	}
}

// LatestSnapshot returns the newest indicator snapshot for symbol, from the
// cache when one is attached, recomputing from the bar store on a miss.
func (p *SignalPipeline) LatestSnapshot(ctx context.Context, symbol string) (*models.IndicatorSnapshot, error) {
	if p.snapCache != nil {
		var raw string
		if err := p.snapCache.Get(ctx, pkgcache.GenerateKey("snapshot", symbol), &raw); err == nil {
			var snap models.IndicatorSnapshot
			if err := json.Unmarshal([]byte(raw), &snap); err == nil {
				return &snap, nil
			}
		}
	}
	_, snaps, err := p.recompute(ctx, symbol)
	if err != nil {
		return nil, err
	}
	return &snaps[len(snaps)-1], nil
}

// GenerateSignal recomputes indicators for symbol, evaluates the latest bar
// and upserts the resulting signal. Regenerating the same bar overwrites the
// previous row; the signal id is stable across reruns.
func (p *SignalPipeline) GenerateSignal(ctx context.Context, symbol string) (*models.SignalRecord, error) {
	start := time.Now()
	bars, snaps, err := p.recompute(ctx, symbol)
	if err != nil {
		return nil, err
	}

	latest := snaps[len(snaps)-1]
	sig := p.eval.Evaluate(symbol, latest.Timestamp, bars[len(bars)-1].Close, &latest)
	if err := p.signals.Upsert(ctx, &sig); err != nil {
		p.metrics.RecordError("signal_upsert")
		return nil, fmt.Errorf("upsert signal for %s: %w", symbol, err)
	}

	p.metrics.RecordSignal(symbol, string(sig.SignalType))
	p.metrics.RecordStrength(symbol, sig.Strength)
	p.l.Info("signal generated",
		applogger.String("symbol", symbol),
		applogger.String("type", string(sig.SignalType)),
		applogger.Float64("strength", sig.Strength))

	p.publish(ctx, &sig)
	p.explain(ctx, &sig)

	p.metrics.RecordLatency("generate_signal", time.Since(start).Seconds())
	return &sig, nil
}

// GenerateBatch evaluates every symbol concurrently. Symbols with too little
// history are skipped, other failures are logged and counted; one bad symbol
// never aborts the batch.
func (p *SignalPipeline) GenerateBatch(ctx context.Context, symbols []string) []models.SignalRecord {
	type item struct {
		sig *models.SignalRecord
		err error
	}
	ch := make(chan item, len(symbols))
	var wg sync.WaitGroup

	for _, symbol := range symbols {
		wg.Add(1)
		go func(sym string) {
			defer wg.Done()
			sig, err := p.GenerateSignal(ctx, sym)
			ch <- item{sig, err}
		}(symbol)
	}
	go func() { wg.Wait(); close(ch) }()

	var out []models.SignalRecord
	for it := range ch {
		if it.err != nil {
			if errors.Is(it.err, domrepo.ErrInsufficientData) {
				p.l.Debug("symbol skipped", applogger.Error(it.err))
			} else {
				p.l.Error("signal generation failed", applogger.Error(it.err))
			}
			continue
		}
		out = append(out, *it.sig)
	}
	return out
}

func (p *SignalPipeline) publish(ctx context.Context, sig *models.SignalRecord) {
	if p.publisher == nil {
		return
	}
	if err := p.publisher.Publish(ctx, p.topic, []byte(sig.Symbol), sig); err != nil {
		p.metrics.RecordError("signal_publish")
		p.l.Warn("signal publish failed",
			applogger.String("symbol", sig.Symbol), applogger.Error(err))
	}
}

func (p *SignalPipeline) explain(ctx context.Context, sig *models.SignalRecord) {
	if sig.SignalType == models.SignalHold {
		return
	}
	if p.explainQ != nil {
		if err := p.explainQ.PublishMessage(ctx, notify.ExplainMsgType, notify.NewExplainPayload(sig)); err != nil {
			p.metrics.RecordError("explanation_enqueue")
			p.l.Warn("explanation enqueue failed",
				applogger.String("symbol", sig.Symbol), applogger.Error(err))
		}
		return
	}
	if p.explainer == nil {
		return
	}
	text, err := p.explainer.Explain(ctx, *sig)
	if err != nil {
		p.metrics.RecordError("explanation")
		p.l.Warn("explanation failed",
			applogger.String("symbol", sig.Symbol), applogger.Error(err))
		return
	}
	if err := p.signals.AttachExplanation(ctx, sig.ID, text); err != nil {
		p.l.Warn("explanation attach failed",
			applogger.String("symbol", sig.Symbol), applogger.Error(err))
		return
	}
	sig.Explanation = text
}
