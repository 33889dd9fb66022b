package strategy

import (
	"math"
	"strings"
)

// Params expresses the tunable knobs strategy constructors accept. Nil
// fields leave the strategy's built-in threshold in place.
type Params struct {
	BuyRSI   *float64
	SellRSI  *float64
	MACDBuy  *float64
	MACDSell *float64
}

// Build returns the strategy variant matching kind. Unknown kinds fall back
// to hold, the safe default.
func Build(kind string, params Params) Strategy {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "stock_mean_reversion", "mean_reversion":
		return NewMeanReversion(threshold(params.BuyRSI, 0), threshold(params.SellRSI, 0))
	case "crypto_momentum", "momentum":
		return NewMomentum(threshold(params.MACDBuy, math.NaN()), threshold(params.MACDSell, math.NaN()))
	default:
		return NewHold()
	}
}

func threshold(p *float64, unset float64) float64 {
	if p == nil {
		return unset
	}
	return *p
}

// Registry maps symbols to their assigned strategy. It is an explicit
// object built once from configuration and passed into the evaluator, never
// a process-wide singleton; tests construct their own.
type Registry struct {
	bySymbol map[string]Strategy
	fallback Strategy
}

// NewRegistry builds a registry from a symbol -> strategy kind mapping.
// Params are keyed by strategy kind; missing entries use the strategy's
// built-in thresholds.
func NewRegistry(mapping map[string]string, params map[string]Params) *Registry {
	r := &Registry{
		bySymbol: make(map[string]Strategy, len(mapping)),
		fallback: NewHold(),
	}
	for symbol, kind := range mapping {
		r.bySymbol[symbol] = Build(kind, params[kind])
	}
	return r
}

// Assign sets the strategy for one symbol.
func (r *Registry) Assign(symbol string, s Strategy) {
	r.bySymbol[symbol] = s
}

// Resolve returns the strategy assigned to symbol, or the hold fallback for
// unmapped symbols. Unknown symbols are not an error.
func (r *Registry) Resolve(symbol string) Strategy {
	if s, ok := r.bySymbol[symbol]; ok {
		return s
	}
	return r.fallback
}

// Symbols lists every symbol with an explicit assignment.
func (r *Registry) Symbols() []string {
	out := make([]string, 0, len(r.bySymbol))
	for s := range r.bySymbol {
		out = append(out, s)
	}
	return out
}
