package repository

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
)

// PGSnapshotStore persists indicator snapshots with upsert-on-conflict over
// the (symbol, timestamp) natural key.
type PGSnapshotStore struct {
	db *gorm.DB
}

func NewPGSnapshotStore(db *gorm.DB) *PGSnapshotStore {
	return &PGSnapshotStore{db: db}
}

func (s *PGSnapshotStore) UpsertBatch(ctx context.Context, snaps []models.IndicatorSnapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "timestamp"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"rsi", "ema_12", "ema_26", "macd", "macd_signal", "macd_histogram",
		}),
	}).Create(&snaps).Error
	if err != nil {
		return fmt.Errorf("upsert indicators: %w", err)
	}
	return nil
}

func (s *PGSnapshotStore) GetRange(ctx context.Context, symbol string, from, to time.Time) ([]models.IndicatorSnapshot, error) {
	var out []models.IndicatorSnapshot
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND timestamp BETWEEN ? AND ?", symbol, from, to).
		Order("timestamp ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("get indicators: %w", err)
	}
	return out, nil
}

var _ domrepo.SnapshotStore = (*PGSnapshotStore)(nil)

// PGSignalStore persists signals. Upsert is one atomic ON CONFLICT statement
// over the (symbol, timestamp, rule_version) natural key, so rerunning
// generation for a bar replaces the row instead of duplicating it. The
// idempotency_key column is carried along purely as a debug aid.
type PGSignalStore struct {
	db *gorm.DB
}

func NewPGSignalStore(db *gorm.DB) *PGSignalStore {
	return &PGSignalStore{db: db}
}

func (s *PGSignalStore) Upsert(ctx context.Context, sig *models.SignalRecord) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "timestamp"}, {Name: "rule_version"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"signal_type", "strength", "reasoning", "price_at_signal", "idempotency_key",
		}),
	}).Create(sig).Error
	if err != nil {
		return fmt.Errorf("upsert signal: %w", err)
	}
	return nil
}

func (s *PGSignalStore) StrongSince(ctx context.Context, minStrength float64, since time.Time) ([]models.SignalRecord, error) {
	var out []models.SignalRecord
	err := s.db.WithContext(ctx).
		Where("strength >= ? AND generated_at >= ?", minStrength, since).
		Order("generated_at DESC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("strong signals: %w", err)
	}
	return out, nil
}

func (s *PGSignalStore) AttachExplanation(ctx context.Context, signalID uint, text string) error {
	err := s.db.WithContext(ctx).
		Model(&models.SignalRecord{}).
		Where("id = ?", signalID).
		Update("explanation", text).Error
	if err != nil {
		return fmt.Errorf("attach explanation: %w", err)
	}
	return nil
}

var _ domrepo.SignalStore = (*PGSignalStore)(nil)

// PGSubscriberStore reads recipients. Writes happen in the subscription
// service, not here.
type PGSubscriberStore struct {
	db *gorm.DB
}

func NewPGSubscriberStore(db *gorm.DB) *PGSubscriberStore {
	return &PGSubscriberStore{db: db}
}

func (s *PGSubscriberStore) ActiveConfirmed(ctx context.Context) ([]models.Subscriber, error) {
	var out []models.Subscriber
	err := s.db.WithContext(ctx).
		Where("confirmed = ? AND unsubscribed = ?", true, false).
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("active subscribers: %w", err)
	}
	return out, nil
}

var _ domrepo.SubscriberStore = (*PGSubscriberStore)(nil)

// PGNotificationLedger is the append-only delivery ledger. The cooldown
// check always queries it directly so the rule survives restarts and
// scale-out.
type PGNotificationLedger struct {
	db *gorm.DB
}

func NewPGNotificationLedger(db *gorm.DB) *PGNotificationLedger {
	return &PGNotificationLedger{db: db}
}

func (s *PGNotificationLedger) Append(ctx context.Context, entry *models.SentNotification) error {
	if err := s.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("append ledger: %w", err)
	}
	return nil
}

func (s *PGNotificationLedger) SentWithin(ctx context.Context, email, symbol string, since time.Time) (bool, error) {
	// The ledger stores the signal reference, not the symbol; join back to
	// signals the way the cooldown rule is defined.
	var hit int
	err := s.db.WithContext(ctx).Raw(`
        SELECT 1
        FROM sent_notifications sn
        JOIN signals s ON s.id = sn.signal_id
        WHERE sn.email = ? AND s.symbol = ? AND sn.sent_at >= ?
        LIMIT 1`, email, symbol, since).Scan(&hit).Error
	if err != nil {
		return false, fmt.Errorf("ledger lookup: %w", err)
	}
	return hit == 1, nil
}

var _ domrepo.NotificationLedger = (*PGNotificationLedger)(nil)

// PGBacktestStore persists replay summaries, one row per
// (symbol, range_label, rule_version).
type PGBacktestStore struct {
	db *gorm.DB
}

func NewPGBacktestStore(db *gorm.DB) *PGBacktestStore {
	return &PGBacktestStore{db: db}
}

func (s *PGBacktestStore) Upsert(ctx context.Context, summary *models.BacktestSummary) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "symbol"}, {Name: "range_label"}, {Name: "rule_version"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"start_timestamp", "end_timestamp", "trades", "win_rate", "avg_return", "total_return",
		}),
	}).Create(summary).Error
	if err != nil {
		return fmt.Errorf("upsert backtest: %w", err)
	}
	return nil
}

func (s *PGBacktestStore) Get(ctx context.Context, symbol, rangeLabel, ruleVersion string) (*models.BacktestSummary, error) {
	var out models.BacktestSummary
	err := s.db.WithContext(ctx).
		Where("symbol = ? AND range_label = ? AND rule_version = ?", symbol, rangeLabel, ruleVersion).
		First(&out).Error
	if err != nil {
		return nil, fmt.Errorf("get backtest: %w", err)
	}
	return &out, nil
}

var _ domrepo.BacktestStore = (*PGBacktestStore)(nil)
