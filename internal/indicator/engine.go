package indicator

import (
	"SignalForge/internal/domain/models"
)

// Engine computes one IndicatorSnapshot per input bar from an ascending
// price series. Recomputing over a bounded trailing window restarts warm-up
// at the window start, so values near the start differ slightly from a
// full-history run; they stabilize after roughly one period inside the
// window.
type Engine struct {
	rsiPeriod  int
	emaFast    int
	emaSlow    int
	macdSignal int
}

// NewEngine builds an engine with the standard 14/12/26/9 parameters unless
// overridden.
func NewEngine(rsiPeriod, emaFast, emaSlow, macdSignal int) *Engine {
	if rsiPeriod <= 0 {
		rsiPeriod = 14
	}
	if emaFast <= 0 {
		emaFast = 12
	}
	if emaSlow <= 0 {
		emaSlow = 26
	}
	if macdSignal <= 0 {
		macdSignal = 9
	}
	return &Engine{rsiPeriod: rsiPeriod, emaFast: emaFast, emaSlow: emaSlow, macdSignal: macdSignal}
}

// MinBars is the smallest series length for which Compute yields at least
// one fully warmed-up snapshot. RSI has the longest warm-up.
func (e *Engine) MinBars() int {
	return e.rsiPeriod + 1
}

// Compute returns one snapshot per bar. Bars must be ascending by timestamp
// and belong to a single symbol.
func (e *Engine) Compute(bars []models.PriceBar) []models.IndicatorSnapshot {
	if len(bars) == 0 {
		return nil
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = b.Close
	}

	rsi := RSI(closes, e.rsiPeriod)
	emaFast := EMA(closes, e.emaFast)
	emaSlow := EMA(closes, e.emaSlow)
	macd := MACD(closes, e.emaFast, e.emaSlow, e.macdSignal)

	snaps := make([]models.IndicatorSnapshot, len(bars))
	for i, b := range bars {
		snaps[i] = models.IndicatorSnapshot{
			Symbol:        b.Symbol,
			Timestamp:     b.Timestamp.UTC(),
			RSI:           rsi[i],
			EMAFast:       ptr(emaFast[i]),
			EMASlow:       ptr(emaSlow[i]),
			MACD:          ptr(macd.Line[i]),
			MACDSignal:    ptr(macd.Signal[i]),
			MACDHistogram: ptr(macd.Histogram[i]),
		}
	}
	return snaps
}

func ptr(v float64) *float64 { return &v }
