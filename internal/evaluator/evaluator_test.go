package evaluator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/strategy"
)

func scoreInputs(rsi, emaFast, emaSlow, hist float64) strategy.Inputs {
	return strategy.Inputs{
		Symbol:        "AAPL",
		Price:         100,
		RSI:           rsi,
		EMAFast:       emaFast,
		EMASlow:       emaSlow,
		MACDHistogram: hist,
	}
}

func TestScoreHoldIsZero(t *testing.T) {
	// Even wildly bullish inputs score zero on a HOLD.
	assert.Equal(t, 0.0, Score(models.SignalHold, scoreInputs(5, 120, 100, 3)))
}

func TestScoreBounds(t *testing.T) {
	cases := []struct {
		name string
		typ  models.SignalType
		in   strategy.Inputs
	}{
		{"extreme buy", models.SignalBuy, scoreInputs(0, 120, 100, 5)},
		{"extreme sell", models.SignalSell, scoreInputs(100, 80, 100, -5)},
		{"buy against trend", models.SignalBuy, scoreInputs(20, 90, 100, -2)},
		{"neutral buy", models.SignalBuy, scoreInputs(50, 100, 100, 0)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := Score(tc.typ, tc.in)
			assert.GreaterOrEqual(t, s, 0.0)
			assert.LessOrEqual(t, s, 100.0)
		})
	}
}

func TestScoreKnownValue(t *testing.T) {
	// rsi 40 -> 10/25 of the 60-point band = 24
	// histogram 0.5 aligned -> 4
	// gap 0.3% of 100 -> 6 magnitude + 10 alignment = 16
	s := Score(models.SignalBuy, scoreInputs(40, 100.3, 100, 0.5))
	assert.InDelta(t, 44.0, s, 0.01)
}

func TestScoreMisalignedMACDIgnored(t *testing.T) {
	with := Score(models.SignalBuy, scoreInputs(40, 100.3, 100, 0.5))
	against := Score(models.SignalBuy, scoreInputs(40, 100.3, 100, -0.5))
	assert.InDelta(t, with-against, 4.0, 0.01)
}

func TestScoreSymmetry(t *testing.T) {
	buy := Score(models.SignalBuy, scoreInputs(30, 102, 100, 1))
	sell := Score(models.SignalSell, scoreInputs(70, 98, 100, -1))
	// Mirrored inputs give nearly mirrored scores; the EMA gap percentage
	// denominators differ slightly.
	assert.InDelta(t, buy, sell, 1.0)
}

func TestEvaluateStampsRuleVersion(t *testing.T) {
	reg := strategy.NewRegistry(map[string]string{"AAPL": "mean_reversion"}, nil)
	e := New(reg)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rsi, emaFast, emaSlow, hist := 20.0, 105.0, 100.0, 0.8
	snap := &models.IndicatorSnapshot{
		RSI: &rsi, EMAFast: &emaFast, EMASlow: &emaSlow, MACDHistogram: &hist,
	}

	rec := e.Evaluate("AAPL", ts, 104, snap)
	assert.Equal(t, "AAPL", rec.Symbol)
	assert.Equal(t, RuleVersion, rec.RuleVersion)
	assert.Equal(t, "rsi_ema_v1", rec.RuleVersion)
	assert.Equal(t, models.SignalBuy, rec.SignalType)
	assert.Equal(t, 104.0, rec.PriceAtSignal)
	assert.Equal(t, ts, rec.Timestamp)
	require.NotEmpty(t, rec.Reasoning)

	// Strength always comes from the canonical formula, not the strategy's
	// internal confidence.
	in := strategy.NewInputs("AAPL", ts, 104, snap)
	assert.Equal(t, Score(models.SignalBuy, in), rec.Strength)
}

func TestEvaluateUnassignedSymbolHolds(t *testing.T) {
	reg := strategy.NewRegistry(nil, nil)
	e := New(reg)

	rec := e.Evaluate("MSFT", time.Now().UTC(), 300, nil)
	assert.Equal(t, models.SignalHold, rec.SignalType)
	assert.Equal(t, 0.0, rec.Strength)
	assert.Equal(t, []string{"No strategy assigned; defaulting to HOLD."}, rec.Reasoning)
}

func TestEvaluateIdempotencyKey(t *testing.T) {
	reg := strategy.NewRegistry(nil, nil)
	e := New(reg)

	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	a := e.Evaluate("AAPL", ts, 100, nil)
	b := e.Evaluate("AAPL", ts, 100, nil)
	assert.Equal(t, a.IdempotencyKey, b.IdempotencyKey)
	assert.Equal(t, models.DebugKey("AAPL", RuleVersion, ts), a.IdempotencyKey)
}
