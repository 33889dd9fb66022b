package indicator

// MACDResult carries the three MACD series, aligned to the input closes.
type MACDResult struct {
	Line      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes macd_line = EMA(fast) - EMA(slow), signal = EMA(line,
// signalSpan) and histogram = line - signal. The histogram identity holds
// exactly at every index.
func MACD(closes []float64, fastSpan, slowSpan, signalSpan int) MACDResult {
	if len(closes) == 0 {
		return MACDResult{}
	}
	emaFast := EMA(closes, fastSpan)
	emaSlow := EMA(closes, slowSpan)

	line := make([]float64, len(closes))
	for i := range closes {
		line[i] = emaFast[i] - emaSlow[i]
	}
	signal := EMA(line, signalSpan)

	hist := make([]float64, len(closes))
	for i := range closes {
		hist[i] = line[i] - signal[i]
	}
	return MACDResult{Line: line, Signal: signal, Histogram: hist}
}
