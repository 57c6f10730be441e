package filter

import (
	"strings"
	"time"

	"life2gpx/internal/gpx"
)

// Fix is one raw location sample from the positioning sensor.
type Fix struct {
	Lat                float64   `json:"lat"`
	Lon                float64   `json:"lon"`
	Altitude           float64   `json:"altitude"`
	HorizontalAccuracy float64   `json:"horizontal_accuracy"`
	VerticalAccuracy   float64   `json:"vertical_accuracy"`
	Speed              float64   `json:"speed"`
	SpeedAccuracy      float64   `json:"speed_accuracy"`
	Timestamp          time.Time `json:"timestamp"`
}

// Confidence grades a motion-activity classification.
type Confidence int

const (
	ConfidenceLow Confidence = iota
	ConfidenceMedium
	ConfidenceHigh
)

// Activity is the side-channel motion classification delivered alongside
// fixes. Several flags may be raised at once; the dominant flag decides the
// track type.
type Activity struct {
	Walking    bool       `json:"walking"`
	Running    bool       `json:"running"`
	Cycling    bool       `json:"cycling"`
	Automotive bool       `json:"automotive"`
	Stationary bool       `json:"stationary"`
	Confidence Confidence `json:"confidence"`
}

// TrackType maps the dominant activity flag to a track type. Faster modes
// win when several flags are raised; a purely stationary classification maps
// to unknown.
func (a Activity) TrackType() gpx.TrackType {
	switch {
	case a.Automotive:
		return gpx.TrackAutomotive
	case a.Cycling:
		return gpx.TrackCycling
	case a.Running:
		return gpx.TrackRunning
	case a.Walking:
		return gpx.TrackWalking
	default:
		return gpx.TrackUnknown
	}
}

// Flags renders the raw activity flags for the extension bag.
func (a Activity) Flags() string {
	var flags []string
	if a.Walking {
		flags = append(flags, "walking")
	}
	if a.Running {
		flags = append(flags, "running")
	}
	if a.Cycling {
		flags = append(flags, "cycling")
	}
	if a.Automotive {
		flags = append(flags, "automotive")
	}
	if a.Stationary {
		flags = append(flags, "stationary")
	}
	return strings.Join(flags, "|")
}

// Pedometer answers step counts between two instants. Errors are annotated
// into the output record, never fatal.
type Pedometer interface {
	Steps(from, to time.Time) (int, error)
}

// ActivitySource exposes the most recent motion-activity classification.
type ActivitySource interface {
	Current() (Activity, bool)
}

// Clock abstracts wall time so the transition table stays testable.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Timer is a one-shot scheduled callback that can be cancelled.
type Timer interface {
	Stop() bool
}

// TimerFactory arms a one-shot timer. Re-arming through the filter always
// cancels the previous instance first.
type TimerFactory func(d time.Duration, fn func()) Timer

func systemTimer(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// Publisher receives every appended point for live consumers. Optional.
type Publisher interface {
	Broadcast(channel string, payload []byte)
}
