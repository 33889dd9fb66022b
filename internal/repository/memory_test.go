package repository

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

func TestMemoryBarStoreOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBarStore()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	// Insert out of order.
	for _, offset := range []int{2, 0, 1, 3} {
		err := s.Store(ctx, &models.PriceBar{
			Symbol:    "AAPL",
			Timestamp: base.Add(time.Duration(offset) * time.Hour),
			Close:     float64(100 + offset),
		})
		require.NoError(t, err)
	}

	bars, err := s.GetLatestNBars(ctx, "AAPL", 3)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, 101.0, bars[0].Close)
	assert.Equal(t, 103.0, bars[2].Close)

	ranged, err := s.GetBars(ctx, "AAPL", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	none, err := s.GetBars(ctx, "MSFT", base, base.Add(time.Hour))
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestMemorySnapshotStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySnapshotStore()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	rsi1, rsi2 := 40.0, 60.0
	require.NoError(t, s.UpsertBatch(ctx, []models.IndicatorSnapshot{
		{Symbol: "AAPL", Timestamp: ts, RSI: &rsi1},
	}))
	require.NoError(t, s.UpsertBatch(ctx, []models.IndicatorSnapshot{
		{Symbol: "AAPL", Timestamp: ts, RSI: &rsi2},
	}))

	snaps, err := s.GetRange(ctx, "AAPL", ts.Add(-time.Hour), ts.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, 60.0, *snaps[0].RSI)
}

func TestMemorySignalStoreUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySignalStore()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	first := models.SignalRecord{
		Symbol: "AAPL", Timestamp: ts, RuleVersion: "rsi_ema_v1",
		SignalType: models.SignalBuy, Strength: 72,
	}
	require.NoError(t, s.Upsert(ctx, &first))
	firstID := first.ID
	require.NotZero(t, firstID)

	// Same natural key, new values: the row is overwritten in place.
	second := models.SignalRecord{
		Symbol: "AAPL", Timestamp: ts, RuleVersion: "rsi_ema_v1",
		SignalType: models.SignalSell, Strength: 55,
	}
	require.NoError(t, s.Upsert(ctx, &second))
	assert.Equal(t, firstID, second.ID)

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, models.SignalSell, all[0].SignalType)
	assert.Equal(t, 55.0, all[0].Strength)

	// A different rule version is a distinct row.
	third := models.SignalRecord{
		Symbol: "AAPL", Timestamp: ts, RuleVersion: "rsi_ema_v2",
		SignalType: models.SignalBuy, Strength: 80,
	}
	require.NoError(t, s.Upsert(ctx, &third))
	assert.Len(t, s.All(), 2)
	assert.NotEqual(t, firstID, third.ID)
}

func TestMemorySignalStoreKeepsExplanationAcrossUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySignalStore()
	ts := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	sig := models.SignalRecord{Symbol: "AAPL", Timestamp: ts, RuleVersion: "rsi_ema_v1", SignalType: models.SignalBuy}
	require.NoError(t, s.Upsert(ctx, &sig))
	require.NoError(t, s.AttachExplanation(ctx, sig.ID, "momentum building"))

	rerun := models.SignalRecord{Symbol: "AAPL", Timestamp: ts, RuleVersion: "rsi_ema_v1", SignalType: models.SignalBuy}
	require.NoError(t, s.Upsert(ctx, &rerun))

	all := s.All()
	require.Len(t, all, 1)
	assert.Equal(t, "momentum building", all[0].Explanation)
}

func TestMemorySignalStoreStrongSince(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySignalStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	mk := func(symbol string, strength float64, age time.Duration) models.SignalRecord {
		return models.SignalRecord{
			Symbol: symbol, Timestamp: now.Add(-age), RuleVersion: "rsi_ema_v1",
			SignalType: models.SignalBuy, Strength: strength, GeneratedAt: now.Add(-age),
		}
	}
	for _, sig := range []models.SignalRecord{
		mk("AAPL", 85, 2*time.Hour),
		mk("MSFT", 90, 1*time.Hour),
		mk("NVDA", 40, 1*time.Hour),   // too weak
		mk("TSLA", 95, 48*time.Hour),  // too old
	} {
		rec := sig
		require.NoError(t, s.Upsert(ctx, &rec))
	}

	strong, err := s.StrongSince(ctx, 70, now.Add(-24*time.Hour))
	require.NoError(t, err)
	require.Len(t, strong, 2)
	// Newest first.
	assert.Equal(t, "MSFT", strong[0].Symbol)
	assert.Equal(t, "AAPL", strong[1].Symbol)
}

func TestMemoryLedgerCooldownJoin(t *testing.T) {
	ctx := context.Background()
	signals := NewMemorySignalStore()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	sig := models.SignalRecord{
		Symbol: "AAPL", Timestamp: now, RuleVersion: "rsi_ema_v1",
		SignalType: models.SignalBuy, Strength: 85, GeneratedAt: now,
	}
	require.NoError(t, signals.Upsert(ctx, &sig))

	ledger := NewMemoryLedger(signals)
	require.NoError(t, ledger.Append(ctx, &models.SentNotification{
		Email: "a@example.com", SignalID: sig.ID, SentAt: now,
	}))

	hit, err := ledger.SentWithin(ctx, "a@example.com", "AAPL", now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.True(t, hit)

	// Outside the window.
	hit, err = ledger.SentWithin(ctx, "a@example.com", "AAPL", now.Add(time.Hour))
	require.NoError(t, err)
	assert.False(t, hit)

	// Symbol resolves through the signal, so another symbol is clear.
	hit, err = ledger.SentWithin(ctx, "a@example.com", "MSFT", now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.False(t, hit)

	// Per subscriber, not global.
	hit, err = ledger.SentWithin(ctx, "b@example.com", "AAPL", now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.False(t, hit)

	assert.Len(t, ledger.Entries(), 1)
}

func TestMemorySubscriberStoreActiveConfirmed(t *testing.T) {
	ctx := context.Background()
	s := NewMemorySubscriberStore(
		models.Subscriber{Email: "confirmed@example.com", Confirmed: true},
		models.Subscriber{Email: "pending@example.com", Confirmed: false},
		models.Subscriber{Email: "gone@example.com", Confirmed: true, Unsubscribed: true},
	)

	subs, err := s.ActiveConfirmed(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "confirmed@example.com", subs[0].Email)
}

func TestMemoryBacktestStoreUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryBacktestStore()

	missing, err := s.Get(ctx, "AAPL", "1y", "rsi_ema_v1")
	require.NoError(t, err)
	assert.Nil(t, missing)

	first := models.BacktestSummary{Symbol: "AAPL", RangeLabel: "1y", RuleVersion: "rsi_ema_v1", Trades: 3}
	require.NoError(t, s.Upsert(ctx, &first))

	rerun := models.BacktestSummary{Symbol: "AAPL", RangeLabel: "1y", RuleVersion: "rsi_ema_v1", Trades: 5}
	require.NoError(t, s.Upsert(ctx, &rerun))
	assert.Equal(t, first.ID, rerun.ID)

	got, err := s.Get(ctx, "AAPL", "1y", "rsi_ema_v1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 5, got.Trades)

	// A different range is a distinct row.
	other := models.BacktestSummary{Symbol: "AAPL", RangeLabel: "6mo", RuleVersion: "rsi_ema_v1", Trades: 1}
	require.NoError(t, s.Upsert(ctx, &other))
	assert.NotEqual(t, first.ID, other.ID)
}
