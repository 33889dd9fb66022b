package strategy

import (
	"fmt"
	"math"

	"SignalForge/internal/domain/models"
)

// MomentumStrategy follows MACD histogram thrust confirmed by the EMA spread
// direction.
type MomentumStrategy struct {
	macdBuy  float64
	macdSell float64
}

// NewMomentum builds the strategy. NaN selects the built-in threshold, so an
// explicit 0 remains expressible.
func NewMomentum(macdBuy, macdSell float64) MomentumStrategy {
	if math.IsNaN(macdBuy) {
		macdBuy = 0.5
	}
	if math.IsNaN(macdSell) {
		macdSell = -0.5
	}
	return MomentumStrategy{macdBuy: macdBuy, macdSell: macdSell}
}

func (MomentumStrategy) Name() string { return "crypto_momentum" }

func (s MomentumStrategy) Generate(in Inputs) Result {
	spread := in.EMAFast - in.EMASlow

	switch {
	case in.MACDHistogram >= s.macdBuy && spread >= 0:
		reasons := []string{
			fmt.Sprintf("MACD histogram %.2f >= %v", in.MACDHistogram, s.macdBuy),
			"EMA fast above EMA slow (bullish momentum)",
		}
		if in.RSI < 40 {
			reasons = append(reasons, fmt.Sprintf("RSI %.1f still below 40 (room to run)", in.RSI))
		}
		strength := in.MACDHistogram*80 + maxf(0, spread)/in.Price*800 + (50 - abs(in.RSI-50))
		return Result{Type: models.SignalBuy, Strength: round2(min100(strength)), Reasoning: reasons}

	case in.MACDHistogram <= s.macdSell && spread < 0:
		reasons := []string{
			fmt.Sprintf("MACD histogram %.2f <= %v", in.MACDHistogram, s.macdSell),
			"EMA fast below EMA slow (bearish momentum)",
		}
		if in.RSI > 60 {
			reasons = append(reasons, fmt.Sprintf("RSI %.1f elevated (selling pressure likely)", in.RSI))
		}
		strength := abs(in.MACDHistogram)*80 + abs(minf(0, spread))/in.Price*800 + abs(in.RSI-40)
		return Result{Type: models.SignalSell, Strength: round2(min100(strength)), Reasoning: reasons}

	default:
		residual := 40 - abs(in.MACDHistogram*40)
		if residual < 0 {
			residual = 0
		}
		return Result{
			Type:      models.SignalHold,
			Strength:  round2(residual),
			Reasoning: []string{"Momentum neutral; holding position"},
		}
	}
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
