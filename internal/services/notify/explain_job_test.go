package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/repository"
	applogger "SignalForge/pkg/logger"
)

type stubGenerator struct {
	text string
	err  error
}

func (s stubGenerator) Explain(ctx context.Context, sig models.SignalRecord) (string, error) {
	return s.text, s.err
}

func testLogger(t *testing.T) *applogger.Logger {
	t.Helper()
	l, err := applogger.New(&applogger.Config{Level: "error", Format: "json", Output: "stderr"})
	require.NoError(t, err)
	return l
}

func storedSignal(t *testing.T, signals *repository.MemorySignalStore) models.SignalRecord {
	t.Helper()
	sig := models.SignalRecord{
		Symbol:      "AAPL",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		RuleVersion: "rsi_ema_v1",
		SignalType:  models.SignalBuy,
		Strength:    82,
	}
	require.NoError(t, signals.Upsert(context.Background(), &sig))
	return sig
}

func TestExplainJobAttachesCommentary(t *testing.T) {
	signals := repository.NewMemorySignalStore()
	sig := storedSignal(t, signals)

	job := NewExplainJob(stubGenerator{text: "strong upside momentum"}, signals, testLogger(t))
	assert.Equal(t, ExplainMsgType, job.Type())

	err := job.Handle(context.Background(), NewExplainPayload(&sig))
	require.NoError(t, err)

	all := signals.All()
	require.Len(t, all, 1)
	assert.Equal(t, "strong upside momentum", all[0].Explanation)
}

func TestExplainJobGeneratorFailure(t *testing.T) {
	signals := repository.NewMemorySignalStore()
	sig := storedSignal(t, signals)

	job := NewExplainJob(stubGenerator{err: errors.New("model overloaded")}, signals, testLogger(t))
	err := job.Handle(context.Background(), NewExplainPayload(&sig))
	require.Error(t, err, "queue retries on generator failure")
	assert.Empty(t, signals.All()[0].Explanation)
}

func TestExplainJobBadPayload(t *testing.T) {
	signals := repository.NewMemorySignalStore()
	job := NewExplainJob(stubGenerator{text: "x"}, signals, testLogger(t))

	err := job.Handle(context.Background(), 42)
	require.Error(t, err)
}

func TestNewExplainPayloadFields(t *testing.T) {
	sig := models.SignalRecord{
		ID: 7, Symbol: "AAPL", SignalType: models.SignalSell,
		Strength: 71, PriceAtSignal: 182.5, Reasoning: []string{"overbought"},
	}
	p := NewExplainPayload(&sig)
	assert.Equal(t, uint(7), p.SignalID)
	assert.Equal(t, "SELL", p.SignalType)
	assert.Equal(t, 182.5, p.Price)
	assert.Equal(t, []string{"overbought"}, p.Reasoning)
}
