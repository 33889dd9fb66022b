package evaluator

import (
	"math"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/strategy"
)

// RuleVersion identifies the canonical scoring formula below. Signals and
// backtest summaries carry it so a formula change lands under a new label.
const RuleVersion = "rsi_ema_v1"

// Score computes the 0-100 confidence for a decision using the canonical
// formula: an RSI sub-score up to 60, an EMA trend sub-score up to 40 and an
// optional MACD sub-score up to 20, summed and clamped. HOLD always scores
// zero.
func Score(sigType models.SignalType, in strategy.Inputs) float64 {
	if sigType == models.SignalHold {
		return 0
	}
	total := rsiScore(sigType, in.RSI) + macdScore(sigType, in.MACDHistogram) + trendScore(sigType, in.EMAFast, in.EMASlow)
	total = math.Max(0, math.Min(100, total))
	return math.Round(total*100) / 100
}

// rsiScore rewards distance from neutral (50) in the signal's favorable
// direction: 25 points from neutral earns the full 60.
func rsiScore(sigType models.SignalType, rsi float64) float64 {
	var distance float64
	switch sigType {
	case models.SignalBuy:
		distance = math.Max(0, 50-rsi)
	case models.SignalSell:
		distance = math.Max(0, rsi-50)
	}
	normalized := math.Min(1, distance/25)
	return normalized * 60
}

// macdScore counts histogram magnitude only when its sign agrees with the
// signal direction, capped at 20.
func macdScore(sigType models.SignalType, histogram float64) float64 {
	if (sigType == models.SignalBuy && histogram > 0) ||
		(sigType == models.SignalSell && histogram < 0) {
		return math.Min(20, math.Abs(histogram)*8)
	}
	return 0
}

// trendScore grants up to 30 points for percentage EMA separation (full at
// about a 1.5% gap) plus a flat 10 when the separation direction agrees with
// the signal.
func trendScore(sigType models.SignalType, emaFast, emaSlow float64) float64 {
	if emaSlow == 0 {
		return 0
	}
	gapPct := math.Abs(emaFast-emaSlow) / math.Abs(emaSlow)
	magnitude := math.Min(30, gapPct/0.015*30)

	aligned := (sigType == models.SignalBuy && emaFast >= emaSlow) ||
		(sigType == models.SignalSell && emaFast <= emaSlow)
	if aligned {
		return magnitude + 10
	}
	return magnitude
}
