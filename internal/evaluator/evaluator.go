package evaluator

import (
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/strategy"
)

// Evaluator resolves the strategy assigned to a symbol and turns the latest
// indicator snapshot into an unsaved SignalRecord. The registry is injected
// so tests can substitute their own mapping.
type Evaluator struct {
	registry *strategy.Registry
}

func New(registry *strategy.Registry) *Evaluator {
	return &Evaluator{registry: registry}
}

// Evaluate runs the assigned strategy and scores the decision with the
// canonical formula. The strategy decides type and reasoning; strength comes
// from Score so records stay comparable across strategies, and HOLD is
// always 0.
func (e *Evaluator) Evaluate(symbol string, ts time.Time, price float64, snap *models.IndicatorSnapshot) models.SignalRecord {
	in := strategy.NewInputs(symbol, ts, price, snap)
	res := e.registry.Resolve(symbol).Generate(in)

	return models.SignalRecord{
		Symbol:         symbol,
		Timestamp:      ts.UTC(),
		RuleVersion:    RuleVersion,
		SignalType:     res.Type,
		Strength:       Score(res.Type, in),
		Reasoning:      res.Reasoning,
		PriceAtSignal:  price,
		IdempotencyKey: models.DebugKey(symbol, RuleVersion, ts),
	}
}
