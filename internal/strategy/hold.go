package strategy

import "SignalForge/internal/domain/models"

// HoldStrategy always holds. It is the fail-safe default for symbols with no
// assigned strategy.
type HoldStrategy struct{}

func NewHold() HoldStrategy { return HoldStrategy{} }

func (HoldStrategy) Name() string { return "hold" }

func (HoldStrategy) Generate(Inputs) Result {
	return Result{
		Type:      models.SignalHold,
		Strength:  0,
		Reasoning: []string{"No strategy assigned; defaulting to HOLD."},
	}
}
