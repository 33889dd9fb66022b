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
	"SignalForge/internal/repository"
	pkgcache "SignalForge/pkg/cache"
	"SignalForge/pkg/metrics"
)

type fakeTransport struct {
	mu          sync.Mutex
	delivered   []string // "email/symbol"
	failSymbols map[string]bool
	failIDs     map[uint]bool
}

func (f *fakeTransport) Deliver(ctx context.Context, sub models.Subscriber, sig models.SignalRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSymbols[sig.Symbol] || f.failIDs[sig.ID] {
		return errors.New("delivery service unavailable")
	}
	f.delivered = append(f.delivered, sub.Email+"/"+sig.Symbol)
	return nil
}

type dispatchFixture struct {
	signals   *repository.MemorySignalStore
	subs      *repository.MemorySubscriberStore
	ledger    *repository.MemoryLedger
	transport *fakeTransport
	now       time.Time
}

func newDispatcher(t *testing.T, opts ...DispatcherOption) (*NotificationDispatcher, *dispatchFixture) {
	t.Helper()
	f := &dispatchFixture{
		signals:   repository.NewMemorySignalStore(),
		subs:      repository.NewMemorySubscriberStore(),
		transport: &fakeTransport{failSymbols: map[string]bool{}, failIDs: map[uint]bool{}},
		now:       time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	f.ledger = repository.NewMemoryLedger(f.signals)

	opts = append([]DispatcherOption{WithClock(func() time.Time { return f.now })}, opts...)
	d := NewNotificationDispatcher(
		f.signals, f.subs, f.ledger, f.transport,
		metrics.Nop{}, testLogger(t), opts...,
	)
	return d, f
}

func (f *dispatchFixture) addSignal(t *testing.T, symbol string, strength float64, age time.Duration) models.SignalRecord {
	t.Helper()
	sig := models.SignalRecord{
		Symbol:      symbol,
		Timestamp:   f.now.Add(-age),
		RuleVersion: "rsi_ema_v1",
		SignalType:  models.SignalBuy,
		Strength:    strength,
		GeneratedAt: f.now.Add(-age),
	}
	require.NoError(t, f.signals.Upsert(context.Background(), &sig))
	return sig
}

func (f *dispatchFixture) addSubscriber(email string) {
	f.subs.Add(models.Subscriber{Email: email, Confirmed: true})
}

func TestDispatchSendsStrongSignals(t *testing.T) {
	d, f := newDispatcher(t)
	f.addSignal(t, "AAPL", 85, time.Hour)
	f.addSubscriber("a@example.com")

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"a@example.com/AAPL"}, f.transport.delivered)
	assert.Len(t, f.ledger.Entries(), 1)
}

func TestDispatchIgnoresWeakAndStale(t *testing.T) {
	d, f := newDispatcher(t)
	f.addSignal(t, "WEAK", 40, time.Hour)
	f.addSignal(t, "STALE", 90, 48*time.Hour)
	f.addSubscriber("a@example.com")

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, f.transport.delivered)
}

func TestDispatchNoSubscribers(t *testing.T) {
	d, f := newDispatcher(t)
	f.addSignal(t, "AAPL", 85, time.Hour)

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestDispatchCooldownSuppressesRepeat(t *testing.T) {
	d, f := newDispatcher(t)
	f.addSignal(t, "AAPL", 85, time.Hour)
	f.addSubscriber("a@example.com")

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, sent)

	// Five hours later, inside the six hour cooldown: suppressed.
	f.now = f.now.Add(5 * time.Hour)
	sent, err = d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Len(t, f.ledger.Entries(), 1)

	// Seven hours after the first send: allowed again.
	f.now = f.now.Add(2 * time.Hour)
	sent, err = d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Len(t, f.ledger.Entries(), 2)
}

func TestDispatchCooldownIsPerPair(t *testing.T) {
	d, f := newDispatcher(t)
	f.addSignal(t, "AAPL", 85, time.Hour)
	f.addSignal(t, "MSFT", 90, time.Hour)
	f.addSubscriber("a@example.com")
	f.addSubscriber("b@example.com")

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	// Two subscribers times two symbols.
	assert.Equal(t, 4, sent)

	// A fresh subscriber is not held back by the others' cooldowns.
	f.addSubscriber("c@example.com")
	f.now = f.now.Add(time.Hour)
	sent, err = d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
}

func TestDispatchFailureIsolation(t *testing.T) {
	d, f := newDispatcher(t)
	f.addSignal(t, "AAPL", 85, time.Hour)
	f.addSignal(t, "MSFT", 90, time.Hour)
	f.addSubscriber("a@example.com")
	f.transport.failSymbols["MSFT"] = true

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"a@example.com/AAPL"}, f.transport.delivered)
	// No ledger entry for the failed delivery, so a retry next round is
	// not suppressed by cooldown.
	require.Len(t, f.ledger.Entries(), 1)

	f.transport.failSymbols["MSFT"] = false
	f.now = f.now.Add(time.Minute)
	sent, err = d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Contains(t, f.transport.delivered, "a@example.com/MSFT")
}

func TestDispatchDedupesPerSymbol(t *testing.T) {
	d, f := newDispatcher(t)
	// Two strong signals for the same symbol at different bars; only the
	// newest one is worth sending.
	older := f.addSignal(t, "AAPL", 85, 3*time.Hour)
	newer := f.addSignal(t, "AAPL", 92, time.Hour)
	require.NotEqual(t, older.ID, newer.ID)
	f.addSubscriber("a@example.com")

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	entries := f.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, newer.ID, entries[0].SignalID)
}

func TestDispatchFallsBackToOlderSignalOnFailure(t *testing.T) {
	d, f := newDispatcher(t)
	older := f.addSignal(t, "AAPL", 85, 3*time.Hour)
	newer := f.addSignal(t, "AAPL", 92, time.Hour)
	f.addSubscriber("a@example.com")
	// The newest signal fails to deliver; the older in-window signal for
	// the same symbol must still reach the subscriber.
	f.transport.failIDs[newer.ID] = true

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, []string{"a@example.com/AAPL"}, f.transport.delivered)

	entries := f.ledger.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, older.ID, entries[0].SignalID)
}

func TestDispatchMinStrengthOption(t *testing.T) {
	d, f := newDispatcher(t, WithMinStrength(95))
	f.addSignal(t, "AAPL", 90, time.Hour)
	f.addSubscriber("a@example.com")

	sent, err := d.Dispatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestDispatchCooldownCacheShortCircuits(t *testing.T) {
	ctx := context.Background()
	cc := pkgcache.NewMemoryCache()
	d, f := newDispatcher(t, WithCooldownCache(cc))
	f.addSignal(t, "AAPL", 85, time.Hour)
	f.addSubscriber("a@example.com")

	// A cache entry suppresses the pair even though the ledger is empty.
	key := pkgcache.GenerateKeyWithParams("cooldown", "a@example.com", "AAPL")
	require.NoError(t, cc.Set(ctx, key, "1", time.Minute))

	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
	assert.Empty(t, f.transport.delivered)
	assert.Empty(t, f.ledger.Entries())
}

func TestDispatchPopulatesCooldownCache(t *testing.T) {
	ctx := context.Background()
	cc := pkgcache.NewMemoryCache()
	d, f := newDispatcher(t, WithCooldownCache(cc))
	f.addSignal(t, "AAPL", 85, time.Hour)
	f.addSubscriber("a@example.com")

	sent, err := d.Dispatch(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, sent)

	key := pkgcache.GenerateKeyWithParams("cooldown", "a@example.com", "AAPL")
	hit, err := cc.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, hit)
}
