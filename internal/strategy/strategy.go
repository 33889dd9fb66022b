package strategy

import (
	"math"
	"time"

	"SignalForge/internal/domain/models"
)

// Inputs is the indicator snapshot a strategy decides on. Nullable indicator
// fields are neutralized before a strategy runs, so every field here is a
// defined number.
type Inputs struct {
	Symbol        string
	Timestamp     time.Time
	Price         float64
	RSI           float64
	EMAFast       float64
	EMASlow       float64
	MACDHistogram float64
}

// Result is a strategy decision with its confidence and ordered reasoning.
type Result struct {
	Type      models.SignalType
	Strength  float64
	Reasoning []string
}

// Strategy is a pure decision function. Implementations are stateless;
// thresholds are fixed per instance.
type Strategy interface {
	Name() string
	Generate(in Inputs) Result
}

// NewInputs builds strategy inputs from a snapshot, substituting neutral
// values for indicators still in warm-up: rsi 50, both EMAs the current
// price, histogram 0.
func NewInputs(symbol string, ts time.Time, price float64, snap *models.IndicatorSnapshot) Inputs {
	in := Inputs{
		Symbol:        symbol,
		Timestamp:     ts,
		Price:         price,
		RSI:           50,
		EMAFast:       price,
		EMASlow:       price,
		MACDHistogram: 0,
	}
	if snap == nil {
		return in
	}
	if snap.RSI != nil {
		in.RSI = *snap.RSI
	}
	if snap.EMAFast != nil {
		in.EMAFast = *snap.EMAFast
	}
	if snap.EMASlow != nil {
		in.EMASlow = *snap.EMASlow
	}
	if snap.MACDHistogram != nil {
		in.MACDHistogram = *snap.MACDHistogram
	}
	return in
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
