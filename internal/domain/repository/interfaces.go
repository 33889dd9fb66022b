package repository

import (
	"context"
	"errors"
	"time"

	"SignalForge/internal/domain/models"
)

// ErrInsufficientData marks a symbol whose price history is too short for
// indicator warm-up. Callers skip the symbol; it never aborts a batch.
var ErrInsufficientData = errors.New("insufficient price history")

// BarStore holds immutable OHLCV history, ordered by timestamp per symbol.
type BarStore interface {
	Init(ctx context.Context) error // ensure tables, health checks
	Store(ctx context.Context, bar *models.PriceBar) error
	GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error)
	// GetLatestNBars returns the most recent n bars in ascending order.
	GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.PriceBar, error)
	Health(ctx context.Context) error
	Close() error
}

// SnapshotStore persists indicator snapshots, one row per (symbol, bar).
// Recomputation upserts in place.
type SnapshotStore interface {
	UpsertBatch(ctx context.Context, snaps []models.IndicatorSnapshot) error
	GetRange(ctx context.Context, symbol string, from, to time.Time) ([]models.IndicatorSnapshot, error)
}

// SignalStore persists signals keyed by (symbol, timestamp, rule_version).
// Upsert is a single atomic statement, never read-then-write.
type SignalStore interface {
	Upsert(ctx context.Context, sig *models.SignalRecord) error
	// StrongSince returns signals with strength >= minStrength generated at or
	// after since, newest first.
	StrongSince(ctx context.Context, minStrength float64, since time.Time) ([]models.SignalRecord, error)
	// AttachExplanation sets the free-text explanation on an existing signal.
	AttachExplanation(ctx context.Context, signalID uint, text string) error
}

// SubscriberStore reads notification recipients. Subscriber lifecycle is
// owned elsewhere.
type SubscriberStore interface {
	ActiveConfirmed(ctx context.Context) ([]models.Subscriber, error)
}

// NotificationLedger is the append-only record of delivered notifications and
// the sole source of truth for cooldown enforcement.
type NotificationLedger interface {
	Append(ctx context.Context, entry *models.SentNotification) error
	// SentWithin reports whether email was notified about symbol at or after
	// since. Always evaluated against the ledger, never cached state.
	SentWithin(ctx context.Context, email, symbol string, since time.Time) (bool, error)
}

// BacktestStore persists replay summaries keyed by
// (symbol, range_label, rule_version).
type BacktestStore interface {
	Upsert(ctx context.Context, summary *models.BacktestSummary) error
	Get(ctx context.Context, symbol, rangeLabel, ruleVersion string) (*models.BacktestSummary, error)
}

// Metrics records operational measurements.
type Metrics interface {
	RecordSignal(symbol, signalType string)
	RecordStrength(symbol string, strength float64)
	RecordNotification(outcome string)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
}
