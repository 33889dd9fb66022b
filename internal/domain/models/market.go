package models

import "time"

// PriceBar is one OHLCV bar for a symbol, bar-aligned in UTC. Bars are
// produced by the ingestion side and are immutable once written.
type PriceBar struct {
	Symbol    string
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// IndicatorSnapshot holds the indicator values computed for one bar.
// Fields are nil until their warm-up period has elapsed.
type IndicatorSnapshot struct {
	ID            uint      `gorm:"primarykey" json:"id"`
	Symbol        string    `gorm:"size:32;not null;uniqueIndex:idx_indicator_bar,priority:1" json:"symbol"`
	Timestamp     time.Time `gorm:"not null;uniqueIndex:idx_indicator_bar,priority:2" json:"timestamp"`
	RSI           *float64  `json:"rsi"`
	EMAFast       *float64  `gorm:"column:ema_12" json:"ema_12"`
	EMASlow       *float64  `gorm:"column:ema_26" json:"ema_26"`
	MACD          *float64  `json:"macd"`
	MACDSignal    *float64  `gorm:"column:macd_signal" json:"macd_signal"`
	MACDHistogram *float64  `gorm:"column:macd_histogram" json:"macd_histogram"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func (IndicatorSnapshot) TableName() string { return "indicators" }
