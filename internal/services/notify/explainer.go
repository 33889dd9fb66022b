package notify

import (
	"context"
	"fmt"

	"SignalForge/internal/domain/models"
	domsvc "SignalForge/internal/domain/service"
	"SignalForge/pkg/config"
)

// HTTPExplanationGenerator asks the commentary service for a free-text
// explanation of a signal. Callers treat failures as soft.
type HTTPExplanationGenerator struct {
	base *HTTPServiceBase
}

func NewHTTPExplanationGenerator(cfg *config.Config) *HTTPExplanationGenerator {
	return &HTTPExplanationGenerator{
		base: NewHTTPServiceBase(cfg.Explainer.URL, cfg.Explainer.Timeout),
	}
}

type explainRequest struct {
	Symbol     string   `json:"symbol"`
	SignalType string   `json:"signal_type"`
	Strength   float64  `json:"strength"`
	Price      float64  `json:"price"`
	Reasoning  []string `json:"reasoning"`
}

type explainResponse struct {
	Explanation string `json:"explanation"`
}

func (g *HTTPExplanationGenerator) Explain(ctx context.Context, signal models.SignalRecord) (string, error) {
	var er explainResponse
	err := g.base.PostJSON(ctx, "/explain", explainRequest{
		Symbol:     signal.Symbol,
		SignalType: string(signal.SignalType),
		Strength:   signal.Strength,
		Price:      signal.PriceAtSignal,
		Reasoning:  signal.Reasoning,
	}, &er)
	if err != nil {
		return "", fmt.Errorf("post explain: %w", err)
	}
	return er.Explanation, nil
}

var _ domsvc.ExplanationGenerator = (*HTTPExplanationGenerator)(nil)
