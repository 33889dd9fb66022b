package indicator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
)

func TestRSIWarmup(t *testing.T) {
	closes := []float64{10, 11, 10.5, 11.2, 10.8, 11.5, 12, 11.7, 12.3, 12.1,
		12.8, 13, 12.6, 13.2, 13.5, 13.1, 13.8, 14, 13.6, 14.2}
	period := 14

	out := RSI(closes, period)
	require.Len(t, out, len(closes))

	for i := 0; i < period; i++ {
		assert.Nil(t, out[i], "index %d should still be warming up", i)
	}
	for i := period; i < len(out); i++ {
		require.NotNil(t, out[i], "index %d should be computed", i)
		assert.GreaterOrEqual(t, *out[i], 0.0)
		assert.LessOrEqual(t, *out[i], 100.0)
	}
}

func TestRSIPureUptrend(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	out := RSI(closes, 14)
	require.NotNil(t, out[len(out)-1])
	assert.Equal(t, 100.0, *out[len(out)-1])
}

func TestRSIPureDowntrend(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 100 - float64(i)
	}
	out := RSI(closes, 14)
	require.NotNil(t, out[len(out)-1])
	assert.Equal(t, 0.0, *out[len(out)-1])
}

func TestRSIShortSeries(t *testing.T) {
	out := RSI([]float64{100}, 14)
	require.Len(t, out, 1)
	assert.Nil(t, out[0])
}

func TestEMAConstantSeries(t *testing.T) {
	values := []float64{50, 50, 50, 50, 50, 50}
	out := EMA(values, 3)
	require.Len(t, out, len(values))
	for i, v := range out {
		assert.InDelta(t, 50.0, v, 1e-12, "index %d", i)
	}
}

func TestEMAConvergesToward(t *testing.T) {
	// A step from 10 to 20 pulls the average monotonically toward 20.
	values := []float64{10, 20, 20, 20, 20, 20, 20, 20}
	out := EMA(values, 3)
	for i := 1; i < len(out); i++ {
		assert.Greater(t, out[i], out[i-1])
		assert.Less(t, out[i], 20.0)
	}
}

func TestEMANullableCarriesForward(t *testing.T) {
	v := func(f float64) *float64 { return &f }
	out := EMANullable([]*float64{nil, v(10), nil, v(12)}, 3)
	require.Len(t, out, 4)
	assert.Nil(t, out[0])
	require.NotNil(t, out[1])
	assert.Equal(t, 10.0, *out[1])
	require.NotNil(t, out[2])
	assert.Equal(t, 10.0, *out[2])
	require.NotNil(t, out[3])
	assert.Greater(t, *out[3], 10.0)
}

func TestMACDHistogramIdentity(t *testing.T) {
	closes := []float64{100, 102, 101, 105, 107, 104, 108, 110, 109, 112,
		111, 115, 113, 117, 120, 118, 122, 121, 125, 124}
	res := MACD(closes, 12, 26, 9)
	require.Len(t, res.Line, len(closes))
	require.Len(t, res.Signal, len(closes))
	require.Len(t, res.Histogram, len(closes))
	for i := range closes {
		assert.InDelta(t, res.Line[i]-res.Signal[i], res.Histogram[i], 1e-12, "index %d", i)
	}
}

func TestEngineCompute(t *testing.T) {
	e := NewEngine(14, 12, 26, 9)
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	bars := make([]models.PriceBar, 20)
	for i := range bars {
		price := 100 + float64(i)
		bars[i] = models.PriceBar{
			Symbol:    "AAPL",
			Timestamp: base.Add(time.Duration(i) * 24 * time.Hour),
			Open:      price,
			High:      price + 1,
			Low:       price - 1,
			Close:     price,
			Volume:    1000,
		}
	}

	snaps := e.Compute(bars)
	require.Len(t, snaps, len(bars))

	first := snaps[0]
	assert.Equal(t, "AAPL", first.Symbol)
	assert.Nil(t, first.RSI)
	require.NotNil(t, first.EMAFast)
	assert.Equal(t, 100.0, *first.EMAFast)

	last := snaps[len(snaps)-1]
	require.NotNil(t, last.RSI)
	assert.Equal(t, 100.0, *last.RSI)
	require.NotNil(t, last.MACD)
	require.NotNil(t, last.MACDSignal)
	require.NotNil(t, last.MACDHistogram)
	assert.InDelta(t, *last.MACD-*last.MACDSignal, *last.MACDHistogram, 1e-12)
}

func TestEngineMinBars(t *testing.T) {
	assert.Equal(t, 15, NewEngine(14, 12, 26, 9).MinBars())
	assert.Equal(t, 8, NewEngine(7, 12, 26, 9).MinBars())
}

func TestEngineEmptyInput(t *testing.T) {
	assert.Nil(t, NewEngine(14, 12, 26, 9).Compute(nil))
}

func TestEngineDefaultsOnZeroParams(t *testing.T) {
	e := NewEngine(0, 0, 0, 0)
	assert.Equal(t, 15, e.MinBars())
}
