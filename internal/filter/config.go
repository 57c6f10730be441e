package filter

import "time"

// Config holds the filter's tuning knobs.
type Config struct {
	// Duplicate-delivery suppression between accepted history entries.
	DebounceInterval time.Duration
	// Coarser guard between any two append calls, covering concurrent
	// triggers of the movement path and the settle path.
	AppendDebounce time.Duration

	// Movement gate.
	MinUpdateInterval  time.Duration
	MovingThresholdM   float64
	SettlingThresholdM float64

	// No-movement timeout converting a moving state into a recorded stop.
	SettleAfter time.Duration

	// Grace past local midnight before a rollover flush is trusted.
	MidnightGrace time.Duration

	// Bounded state.
	HistoryCap     int
	RejectQueueCap int
}

// DefaultConfig returns the production tuning.
func DefaultConfig() Config {
	return Config{
		DebounceInterval:   time.Second,
		AppendDebounce:     time.Second,
		MinUpdateInterval:  30 * time.Second,
		MovingThresholdM:   20,
		SettlingThresholdM: 60,
		SettleAfter:        120 * time.Second,
		MidnightGrace:      10 * time.Second,
		HistoryCap:         20,
		RejectQueueCap:     10,
	}
}
