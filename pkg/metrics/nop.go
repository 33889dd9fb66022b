package metrics

// Nop discards every measurement. Used in tests and when metrics are
// disabled; promauto registers globally, so tests avoid the real Recorder.
type Nop struct{}

func (Nop) RecordSignal(symbol, signalType string)     {}
func (Nop) RecordStrength(symbol string, v float64)    {}
func (Nop) RecordNotification(outcome string)          {}
func (Nop) RecordError(kind string)                    {}
func (Nop) RecordLatency(op string, seconds float64)   {}
