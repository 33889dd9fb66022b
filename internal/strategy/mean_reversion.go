package strategy

import (
	"fmt"

	"SignalForge/internal/domain/models"
)

// MeanReversionStrategy buys oversold dips inside an uptrend and sells
// overbought rallies inside a downtrend, using RSI thresholds gated by the
// EMA spread direction.
type MeanReversionStrategy struct {
	buyRSI  float64
	sellRSI float64
}

func NewMeanReversion(buyRSI, sellRSI float64) MeanReversionStrategy {
	if buyRSI <= 0 {
		buyRSI = 35
	}
	if sellRSI <= 0 {
		sellRSI = 70
	}
	return MeanReversionStrategy{buyRSI: buyRSI, sellRSI: sellRSI}
}

func (MeanReversionStrategy) Name() string { return "stock_mean_reversion" }

func (s MeanReversionStrategy) Generate(in Inputs) Result {
	spread := in.EMAFast - in.EMASlow

	switch {
	case in.RSI <= s.buyRSI && spread >= 0:
		strength := (s.buyRSI-in.RSI)*2 + abs(spread)/in.Price*1500
		return Result{
			Type:     models.SignalBuy,
			Strength: round2(min100(strength)),
			Reasoning: []string{
				fmt.Sprintf("RSI %.1f <= %v", in.RSI, s.buyRSI),
				"EMA fast above EMA slow (bullish crossover)",
			},
		}
	case in.RSI >= s.sellRSI && spread < 0:
		strength := (in.RSI-s.sellRSI)*2 + abs(spread)/in.Price*1500
		return Result{
			Type:     models.SignalSell,
			Strength: round2(min100(strength)),
			Reasoning: []string{
				fmt.Sprintf("RSI %.1f >= %v", in.RSI, s.sellRSI),
				"EMA fast below EMA slow (bearish crossover)",
			},
		}
	default:
		residual := (50 - abs(in.RSI-50)) / 2
		if residual < 0 {
			residual = 0
		}
		return Result{
			Type:      models.SignalHold,
			Strength:  round2(residual),
			Reasoning: []string{"RSI and EMA spread neutral; holding position"},
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func min100(v float64) float64 {
	if v > 100 {
		return 100
	}
	return v
}
