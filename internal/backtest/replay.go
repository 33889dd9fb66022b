package backtest

import (
	"time"

	"SignalForge/internal/domain/models"
	"SignalForge/internal/evaluator"
)

// Row is one historical bar joined with its indicator snapshot.
type Row struct {
	Timestamp time.Time
	Price     float64
	Snapshot  *models.IndicatorSnapshot
}

// Replayer walks indicator history bar-by-bar, re-evaluates the strategy at
// every bar (the notification threshold does not apply here) and simulates a
// single long position.
type Replayer struct {
	eval *evaluator.Evaluator
}

func NewReplayer(eval *evaluator.Evaluator) *Replayer {
	return &Replayer{eval: eval}
}

// Run replays rows for symbol and returns the aggregated summary together
// with the per-bar signal records in bar order. An empty window yields a
// zero-valued summary with the window bounds left unset.
//
// A position still open at the final bar is force-closed against the price
// of the bar immediately following its entry, clamped to the last bar. That
// mirrors the historical behavior this engine must reproduce; closing at the
// window's final price would be the more natural rule.
func (r *Replayer) Run(symbol, rangeLabel, ruleVersion string, rows []Row) (models.BacktestSummary, []models.SignalRecord) {
	summary := models.BacktestSummary{
		Symbol:      symbol,
		RangeLabel:  rangeLabel,
		RuleVersion: ruleVersion,
	}
	if len(rows) == 0 {
		return summary, nil
	}
	summary.StartTS = rows[0].Timestamp.UTC()
	summary.EndTS = rows[len(rows)-1].Timestamp.UTC()

	records := make([]models.SignalRecord, 0, len(rows))
	var returns []float64

	// FLAT/LONG state machine; BUY while LONG and SELL while FLAT are no-ops.
	entryIdx := -1
	var entryPrice float64

	for i, row := range rows {
		rec := r.eval.Evaluate(symbol, row.Timestamp, row.Price, row.Snapshot)
		records = append(records, rec)

		switch rec.SignalType {
		case models.SignalBuy:
			if entryIdx < 0 {
				entryIdx = i
				entryPrice = row.Price
			}
		case models.SignalSell:
			if entryIdx >= 0 {
				if entryPrice != 0 {
					returns = append(returns, (row.Price-entryPrice)/entryPrice*100)
				}
				entryIdx = -1
			}
		}
	}

	if entryIdx >= 0 && entryPrice != 0 {
		exitIdx := entryIdx + 1
		if exitIdx >= len(rows) {
			exitIdx = len(rows) - 1
		}
		exit := rows[exitIdx].Price
		returns = append(returns, (exit-entryPrice)/entryPrice*100)
	}

	summary.Trades = len(returns)
	if summary.Trades > 0 {
		wins := 0
		total := 0.0
		for _, ret := range returns {
			total += ret
			if ret > 0 {
				wins++
			}
		}
		summary.WinRate = float64(wins) / float64(summary.Trades) * 100
		summary.AvgReturn = total / float64(summary.Trades)
		summary.TotalReturn = total
	}
	return summary, records
}
