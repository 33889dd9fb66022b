package models

import (
	"fmt"
	"time"
)

// SignalType is the decision attached to a signal.
type SignalType string

const (
	SignalBuy  SignalType = "BUY"
	SignalSell SignalType = "SELL"
	SignalHold SignalType = "HOLD"
)

// SignalRecord is one generated trading signal for a (symbol, bar,
// rule version) triple. Recomputation for the same key overwrites in place.
type SignalRecord struct {
	ID             uint       `gorm:"primarykey" json:"id"`
	Symbol         string     `gorm:"size:32;not null;uniqueIndex:idx_signal_bar_rule,priority:1" json:"symbol"`
	Timestamp      time.Time  `gorm:"not null;uniqueIndex:idx_signal_bar_rule,priority:2" json:"timestamp"`
	RuleVersion    string     `gorm:"size:64;not null;uniqueIndex:idx_signal_bar_rule,priority:3" json:"rule_version"`
	SignalType     SignalType `gorm:"size:8;not null" json:"signal_type"`
	Strength       float64    `gorm:"not null" json:"strength"`
	Reasoning      []string   `gorm:"type:jsonb;serializer:json" json:"reasoning"`
	PriceAtSignal  float64    `gorm:"column:price_at_signal" json:"price_at_signal"`
	IdempotencyKey string     `gorm:"size:128" json:"idempotency_key"`
	Explanation    string     `gorm:"type:text;default:''" json:"explanation"`
	GeneratedAt    time.Time  `gorm:"autoCreateTime" json:"generated_at"`
}

func (SignalRecord) TableName() string { return "signals" }

// DebugKey returns the generated string key stored alongside the natural key.
// It is a debugging aid only; uniqueness is enforced by the natural key.
func DebugKey(symbol, ruleVersion string, ts time.Time) string {
	return fmt.Sprintf("%s:%s:%s", symbol, ruleVersion, ts.UTC().Format(time.RFC3339))
}

// Subscriber is a notification recipient. Lifecycle (confirm, unsubscribe,
// tokens) is owned by the subscription service; the core only reads
// confirmed-and-active rows.
type Subscriber struct {
	ID               uint      `gorm:"primarykey" json:"id"`
	Email            string    `gorm:"size:255;not null;uniqueIndex" json:"email"`
	Confirmed        bool      `gorm:"default:false" json:"confirmed"`
	Unsubscribed     bool      `gorm:"default:false" json:"unsubscribed"`
	ConfirmToken     string    `gorm:"size:64" json:"-"`
	UnsubscribeToken string    `gorm:"size:64" json:"-"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (Subscriber) TableName() string { return "email_subscribers" }

// SentNotification is one append-only ledger row recording a delivered
// notification. Never updated or deleted; the cooldown check reads it.
type SentNotification struct {
	ID       uint      `gorm:"primarykey" json:"id"`
	Email    string    `gorm:"size:255;not null;index:idx_sent_email_at,priority:1" json:"email"`
	SignalID uint      `gorm:"not null" json:"signal_id"`
	SentAt   time.Time `gorm:"autoCreateTime;index:idx_sent_email_at,priority:2" json:"sent_at"`
}

func (SentNotification) TableName() string { return "sent_notifications" }

// BacktestSummary aggregates one replay run. One row per
// (symbol, range_label, rule_version); reruns overwrite.
type BacktestSummary struct {
	ID          uint      `gorm:"primarykey" json:"id"`
	Symbol      string    `gorm:"size:32;not null;uniqueIndex:idx_backtest_key,priority:1" json:"symbol"`
	RangeLabel  string    `gorm:"size:32;not null;uniqueIndex:idx_backtest_key,priority:2" json:"range_label"`
	RuleVersion string    `gorm:"size:64;not null;uniqueIndex:idx_backtest_key,priority:3" json:"rule_version"`
	StartTS     time.Time `gorm:"column:start_timestamp" json:"start_timestamp"`
	EndTS       time.Time `gorm:"column:end_timestamp" json:"end_timestamp"`
	Trades      int       `gorm:"not null" json:"trades"`
	WinRate     float64   `gorm:"not null" json:"win_rate"`
	AvgReturn   float64   `gorm:"not null" json:"avg_return"`
	TotalReturn float64   `gorm:"not null" json:"total_return"`
	GeneratedAt time.Time `gorm:"autoCreateTime" json:"generated_at"`
}

func (BacktestSummary) TableName() string { return "backtests" }
