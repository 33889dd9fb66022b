package indicator

// EMA computes the exponential moving average of a dense series with
// alpha = 2/(span+1). ema[0] seeds from values[0].
func EMA(values []float64, span int) []float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = alpha*values[i] + (1-alpha)*out[i-1]
	}
	return out
}

// EMANullable is EMA over a series with gaps. A nil input at index i means
// "no update": the previous EMA value carries forward. The average seeds at
// the first non-nil value.
func EMANullable(values []*float64, span int) []*float64 {
	if len(values) == 0 || span <= 0 {
		return nil
	}
	alpha := 2.0 / (float64(span) + 1.0)
	out := make([]*float64, len(values))
	var prev *float64
	for i, v := range values {
		switch {
		case v == nil:
			out[i] = prev
		case prev == nil:
			seeded := *v
			out[i] = &seeded
		default:
			next := alpha*(*v) + (1-alpha)*(*prev)
			out[i] = &next
		}
		prev = out[i]
	}
	return out
}
