package notify

import (
	"context"
	"fmt"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
	domsvc "SignalForge/internal/domain/service"
	applogger "SignalForge/pkg/logger"
	"SignalForge/pkg/queue"
)

// ExplainMsgType is the queue message type for explanation jobs.
const ExplainMsgType = "signal.explain"

// ExplainPayload carries the signal fields the commentary service needs.
// The signal id comes along so the result can be attached afterwards.
type ExplainPayload struct {
	SignalID   uint     `json:"signal_id"`
	Symbol     string   `json:"symbol"`
	SignalType string   `json:"signal_type"`
	Strength   float64  `json:"strength"`
	Price      float64  `json:"price"`
	Reasoning  []string `json:"reasoning"`
}

// NewExplainPayload builds a payload from a persisted signal.
func NewExplainPayload(sig *models.SignalRecord) ExplainPayload {
	return ExplainPayload{
		SignalID:   sig.ID,
		Symbol:     sig.Symbol,
		SignalType: string(sig.SignalType),
		Strength:   sig.Strength,
		Price:      sig.PriceAtSignal,
		Reasoning:  sig.Reasoning,
	}
}

// ExplainJob consumes explanation requests off the queue, calls the
// commentary service and attaches the result to the stored signal.
type ExplainJob struct {
	gen     domsvc.ExplanationGenerator
	signals domrepo.SignalStore
	l       *applogger.Logger
}

func NewExplainJob(gen domsvc.ExplanationGenerator, signals domrepo.SignalStore, l *applogger.Logger) *ExplainJob {
	return &ExplainJob{gen: gen, signals: signals, l: l}
}

func (j *ExplainJob) Name() string { return "signal_explain" }
func (j *ExplainJob) Type() string { return ExplainMsgType }

func (j *ExplainJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[ExplainPayload](payload)
	if err != nil {
		return fmt.Errorf("parse explain payload: %w", err)
	}

	text, err := j.gen.Explain(ctx, models.SignalRecord{
		ID:            p.SignalID,
		Symbol:        p.Symbol,
		SignalType:    models.SignalType(p.SignalType),
		Strength:      p.Strength,
		PriceAtSignal: p.Price,
		Reasoning:     p.Reasoning,
	})
	if err != nil {
		return fmt.Errorf("explain %s signal %d: %w", p.Symbol, p.SignalID, err)
	}

	if err := j.signals.AttachExplanation(ctx, p.SignalID, text); err != nil {
		return fmt.Errorf("attach explanation to signal %d: %w", p.SignalID, err)
	}
	j.l.Debug("explanation attached",
		applogger.String("symbol", p.Symbol),
		applogger.Uint("signal_id", p.SignalID))
	return nil
}

var _ queue.Job = (*ExplainJob)(nil)
