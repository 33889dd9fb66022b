package strategy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

func inputs(rsi, emaFast, emaSlow, hist float64) Inputs {
	return Inputs{
		Symbol:        "AAPL",
		Timestamp:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Price:         100,
		RSI:           rsi,
		EMAFast:       emaFast,
		EMASlow:       emaSlow,
		MACDHistogram: hist,
	}
}

func TestMeanReversionBuy(t *testing.T) {
	s := NewMeanReversion(35, 70)
	res := s.Generate(inputs(20, 105, 100, 0))
	assert.Equal(t, models.SignalBuy, res.Type)
	assert.Greater(t, res.Strength, 0.0)
	require.Len(t, res.Reasoning, 2)
	assert.Contains(t, res.Reasoning[0], "RSI 20.0")
	assert.Equal(t, "EMA fast above EMA slow (bullish crossover)", res.Reasoning[1])
}

func TestMeanReversionSell(t *testing.T) {
	s := NewMeanReversion(35, 70)
	res := s.Generate(inputs(80, 95, 100, 0))
	assert.Equal(t, models.SignalSell, res.Type)
	assert.Greater(t, res.Strength, 0.0)
	assert.Equal(t, "EMA fast below EMA slow (bearish crossover)", res.Reasoning[1])
}

func TestMeanReversionNeutralHolds(t *testing.T) {
	s := NewMeanReversion(35, 70)
	res := s.Generate(inputs(50, 100, 100, 0))
	assert.Equal(t, models.SignalHold, res.Type)
	assert.Equal(t, []string{"RSI and EMA spread neutral; holding position"}, res.Reasoning)
}

func TestMeanReversionOversoldInDowntrendHolds(t *testing.T) {
	// Oversold but trend is bearish: no catch-the-knife buys.
	s := NewMeanReversion(35, 70)
	res := s.Generate(inputs(20, 95, 100, 0))
	assert.Equal(t, models.SignalHold, res.Type)
}

func TestMomentumBuy(t *testing.T) {
	s := NewMomentum(0.5, -0.5)
	res := s.Generate(inputs(45, 105, 100, 1.2))
	assert.Equal(t, models.SignalBuy, res.Type)
	assert.Greater(t, res.Strength, 0.0)
	assert.LessOrEqual(t, res.Strength, 100.0)
	assert.Contains(t, res.Reasoning[0], "MACD histogram 1.20")
}

func TestMomentumSell(t *testing.T) {
	s := NewMomentum(0.5, -0.5)
	res := s.Generate(inputs(65, 95, 100, -1.2))
	assert.Equal(t, models.SignalSell, res.Type)
	// RSI above 60 adds the selling-pressure note
	require.Len(t, res.Reasoning, 3)
}

func TestMomentumWeakHistogramHolds(t *testing.T) {
	s := NewMomentum(0.5, -0.5)
	res := s.Generate(inputs(50, 105, 100, 0.1))
	assert.Equal(t, models.SignalHold, res.Type)
	assert.Equal(t, []string{"Momentum neutral; holding position"}, res.Reasoning)
}

func TestHoldStrategy(t *testing.T) {
	res := NewHold().Generate(inputs(20, 105, 100, 2))
	assert.Equal(t, models.SignalHold, res.Type)
	assert.Equal(t, 0.0, res.Strength)
	assert.Equal(t, []string{"No strategy assigned; defaulting to HOLD."}, res.Reasoning)
}

func TestBuildKinds(t *testing.T) {
	assert.Equal(t, "stock_mean_reversion", Build("mean_reversion", Params{}).Name())
	assert.Equal(t, "stock_mean_reversion", Build("STOCK_MEAN_REVERSION", Params{}).Name())
	assert.Equal(t, "crypto_momentum", Build("momentum", Params{}).Name())
	assert.Equal(t, "hold", Build("something_else", Params{}).Name())
	assert.Equal(t, "hold", Build("", Params{}).Name())
}

func TestRegistryResolve(t *testing.T) {
	reg := NewRegistry(
		map[string]string{"AAPL": "mean_reversion", "BTC-USD": "momentum"},
		map[string]Params{"mean_reversion": {BuyRSI: fv(30), SellRSI: fv(75)}},
	)

	assert.Equal(t, "stock_mean_reversion", reg.Resolve("AAPL").Name())
	assert.Equal(t, "crypto_momentum", reg.Resolve("BTC-USD").Name())
	// Unknown symbols fall back to hold, never an error.
	assert.Equal(t, "hold", reg.Resolve("MSFT").Name())
	assert.ElementsMatch(t, []string{"AAPL", "BTC-USD"}, reg.Symbols())
}

func TestRegistryAssignOverrides(t *testing.T) {
	reg := NewRegistry(map[string]string{"AAPL": "mean_reversion"}, nil)
	reg.Assign("AAPL", NewHold())
	assert.Equal(t, "hold", reg.Resolve("AAPL").Name())
}

func TestRegistryParamsApplied(t *testing.T) {
	reg := NewRegistry(
		map[string]string{"AAPL": "mean_reversion"},
		map[string]Params{"mean_reversion": {BuyRSI: fv(25), SellRSI: fv(75)}},
	)
	// RSI 30 is below the default buy threshold (35) but above the custom 25.
	res := reg.Resolve("AAPL").Generate(inputs(30, 105, 100, 0))
	assert.Equal(t, models.SignalHold, res.Type)
}

func TestBuildHonorsExplicitZeroMACDThreshold(t *testing.T) {
	// A zero threshold is a real configuration, not a request for the
	// 0.5 default: any positive histogram with a bullish spread buys.
	s := Build("momentum", Params{MACDBuy: fv(0), MACDSell: fv(-0.5)})
	res := s.Generate(inputs(45, 105, 100, 0.1))
	assert.Equal(t, models.SignalBuy, res.Type)

	// Unset thresholds still get the defaults, so the same bar holds.
	res = Build("momentum", Params{}).Generate(inputs(45, 105, 100, 0.1))
	assert.Equal(t, models.SignalHold, res.Type)
}

func fv(v float64) *float64 { return &v }

func TestNewInputsNeutralizesWarmup(t *testing.T) {
	ts := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	in := NewInputs("AAPL", ts, 150, nil)
	assert.Equal(t, 50.0, in.RSI)
	assert.Equal(t, 150.0, in.EMAFast)
	assert.Equal(t, 150.0, in.EMASlow)
	assert.Equal(t, 0.0, in.MACDHistogram)

	rsi := 22.0
	in = NewInputs("AAPL", ts, 150, &models.IndicatorSnapshot{RSI: &rsi})
	assert.Equal(t, 22.0, in.RSI)
	assert.Equal(t, 150.0, in.EMAFast, "missing EMA stays neutral")
}
