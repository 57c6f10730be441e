package filter

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"life2gpx/internal/daystore"
	"life2gpx/internal/gpx"
	"life2gpx/internal/place"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type fakeTimer struct{ stopped bool }

func (t *fakeTimer) Stop() bool { t.stopped = true; return true }

type timerRecorder struct {
	timers []*fakeTimer
	fire   func()
	armFor time.Duration
}

func (r *timerRecorder) factory(d time.Duration, fn func()) Timer {
	t := &fakeTimer{}
	r.timers = append(r.timers, t)
	r.fire = fn
	r.armFor = d
	return t
}

type fakePedometer struct {
	steps int
	err   error
}

func (p *fakePedometer) Steps(_, _ time.Time) (int, error) { return p.steps, p.err }

type fakeActivity struct {
	act Activity
	ok  bool
}

func (a *fakeActivity) Current() (Activity, bool) { return a.act, a.ok }

type fakePublisher struct {
	channels []string
	payloads [][]byte
}

func (p *fakePublisher) Broadcast(channel string, payload []byte) {
	p.channels = append(p.channels, channel)
	p.payloads = append(p.payloads, payload)
}

type harness struct {
	filter *Filter
	clock  *fakeClock
	timers *timerRecorder
	days   *daystore.Store
	places *place.Store
	opts   Options
}

func newHarness(t *testing.T, mutate func(*Options)) *harness {
	t.Helper()
	dir := t.TempDir()
	clock := &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	timers := &timerRecorder{}
	days := daystore.NewStore(dir)
	places := place.NewStore(filepath.Join(dir, "places.json"))

	opts := Options{
		Clock:     clock,
		NewTimer:  timers.factory,
		StatePath: filepath.Join(dir, "filterstate.json"),
	}
	if mutate != nil {
		mutate(&opts)
	}
	return &harness{
		filter: New(DefaultConfig(), days, places, opts),
		clock:  clock,
		timers: timers,
		days:   days,
		places: places,
		opts:   opts,
	}
}

func (h *harness) date() string { return h.clock.t.Format(dateLayout) }

// seedReference stores a point for today so the filter restores its
// reference from the day file instead of the incoming fix.
func (h *harness) seedReference(t *testing.T, lat, lon float64) {
	t.Helper()
	at := h.clock.t.Add(-time.Hour)
	day := gpx.NewDayFile()
	day.Waypoints = []gpx.Point{{Lat: lat, Lon: lon, Time: &at}}
	if err := h.days.Save(day, h.date()); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestDistanceTimeGate(t *testing.T) {
	h := newHarness(t, nil)
	h.seedReference(t, 0, 0)

	// ~22 m east of the reference with perfect accuracy: accepted.
	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})
	day, _ := h.days.Load(h.date())
	if len(day.Tracks) != 1 || len(day.Tracks[0].Segments[0].Points) != 1 {
		t.Fatalf("expected first moving point accepted, got %+v", day.Tracks)
	}

	// Another ~22 m only 10 s later: rejected purely on time.
	h.clock.advance(10 * time.Second)
	h.filter.Process(Fix{Lat: 0, Lon: 0.00040, Timestamp: h.clock.t})
	day, _ = h.days.Load(h.date())
	if got := len(day.Tracks[0].Segments[0].Points); got != 1 {
		t.Fatalf("time-gated fix must not append, got %d points", got)
	}
	if len(h.filter.rejectQueue) != 0 {
		t.Fatalf("time-only rejection must not queue the fix")
	}

	// Same fix at 31 s since the last accepted update: accepted.
	h.clock.advance(21 * time.Second)
	h.filter.Process(Fix{Lat: 0, Lon: 0.00040, Timestamp: h.clock.t})
	day, _ = h.days.Load(h.date())
	if got := len(day.Tracks[0].Segments[0].Points); got != 2 {
		t.Fatalf("expected second moving point accepted, got %d points", got)
	}
}

func TestAccuracyCompensationRejects(t *testing.T) {
	h := newHarness(t, nil)
	h.seedReference(t, 0, 0)

	// 22 m away but with 30 m of combined accuracy slop: effective
	// distance goes negative and the fix is queued, not recorded.
	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, HorizontalAccuracy: 40, VerticalAccuracy: 20, Timestamp: h.clock.t})

	day, _ := h.days.Load(h.date())
	if len(day.Tracks) != 0 {
		t.Fatalf("inaccurate fix must not be recorded")
	}
	if len(h.filter.rejectQueue) != 1 {
		t.Fatalf("distance-rejected fix must be queued, queue=%d", len(h.filter.rejectQueue))
	}
}

func TestDebounceDiscardsBursts(t *testing.T) {
	h := newHarness(t, nil)

	h.filter.Process(Fix{Lat: 1, Lon: 1, Timestamp: h.clock.t})
	h.clock.advance(500 * time.Millisecond)
	h.filter.Process(Fix{Lat: 50, Lon: 50, Timestamp: h.clock.t})

	if len(h.filter.history) != 1 {
		t.Fatalf("burst fix must be discarded regardless of content, history=%d", len(h.filter.history))
	}
}

func TestHistoryRingBounded(t *testing.T) {
	h := newHarness(t, nil)
	h.seedReference(t, 0, 0)

	for i := 0; i < 30; i++ {
		h.filter.Process(Fix{Lat: 0, Lon: 0, HorizontalAccuracy: 100, Timestamp: h.clock.t})
		h.clock.advance(2 * time.Second)
	}
	if len(h.filter.history) != DefaultConfig().HistoryCap {
		t.Fatalf("history ring not bounded: %d", len(h.filter.history))
	}
	if len(h.filter.rejectQueue) != DefaultConfig().RejectQueueCap {
		t.Fatalf("reject queue not bounded: %d", len(h.filter.rejectQueue))
	}
}

func TestSettleAveragingAndPlaceTagging(t *testing.T) {
	h := newHarness(t, nil)
	if err := h.places.Add(place.Place{
		PlaceID: "cafe-1",
		Name:    "Cafe X",
		Center:  place.Coordinate{Latitude: 1, Longitude: 2},
		Radius:  100,
	}, false); err != nil {
		t.Fatalf("add place: %v", err)
	}

	// All fixes carry enough accuracy slop to be rejected on distance and
	// land in the averaging queue: (1,1), (1,2), (1,3).
	for i, lon := range []float64{1, 2, 3} {
		h.filter.Process(Fix{Lat: 1, Lon: lon, Altitude: 10, HorizontalAccuracy: 500000, Timestamp: h.clock.t})
		if i == 0 && h.timers.fire == nil {
			t.Fatalf("settle timer must be armed once a reference exists")
		}
		h.clock.advance(2 * time.Second)
	}
	if len(h.filter.rejectQueue) != 3 {
		t.Fatalf("expected 3 queued fixes, got %d", len(h.filter.rejectQueue))
	}

	h.clock.advance(2 * time.Minute)
	h.timers.fire()

	day, _ := h.days.Load(h.date())
	if len(day.Waypoints) != 1 {
		t.Fatalf("expected one stationary waypoint, got %d", len(day.Waypoints))
	}
	wp := day.Waypoints[0]
	if wp.Lat != 1 || wp.Lon != 2 {
		t.Fatalf("expected averaged coordinate (1, 2), got (%v, %v)", wp.Lat, wp.Lon)
	}
	if *wp.Elevation != 10 {
		t.Fatalf("expected averaged elevation 10, got %v", *wp.Elevation)
	}
	if wp.Name != "Cafe X" || wp.Extensions[gpx.ExtPlaceID] != "cafe-1" {
		t.Fatalf("expected place tagging, got %+v", wp)
	}

	if h.filter.distanceFilter != DefaultConfig().SettlingThresholdM {
		t.Fatalf("expected widened threshold, got %v", h.filter.distanceFilter)
	}
	if tagged, _ := h.places.Get("cafe-1"); tagged.LastVisited == nil {
		t.Fatalf("expected last visited stamp on the place")
	}
}

func TestSettleTimerRearmCancelsPrevious(t *testing.T) {
	h := newHarness(t, nil)
	h.seedReference(t, 0, 0)

	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})
	h.clock.advance(31 * time.Second)
	h.filter.Process(Fix{Lat: 0, Lon: 0.00060, Timestamp: h.clock.t})

	if len(h.timers.timers) != 2 {
		t.Fatalf("expected a timer per accepted update, got %d", len(h.timers.timers))
	}
	if !h.timers.timers[0].stopped {
		t.Fatalf("re-arming must cancel the previous settle timer")
	}
	if h.timers.timers[1].stopped {
		t.Fatalf("live timer must not be stopped")
	}
	if h.timers.armFor != DefaultConfig().SettleAfter {
		t.Fatalf("unexpected settle delay %v", h.timers.armFor)
	}
}

func TestMidnightFlushNotDuplicated(t *testing.T) {
	h := newHarness(t, nil)
	h.clock.t = time.Date(2024, 3, 1, 23, 59, 30, 0, time.UTC)
	h.filter.Process(Fix{Lat: 5, Lon: 6, Timestamp: h.clock.t})

	// The once-daily flush fires just past midnight, then the first fix of
	// the new day triggers the rollover flush for the same final second.
	h.clock.t = time.Date(2024, 3, 2, 0, 0, 11, 0, time.UTC)
	h.filter.ForceMidnightUpdate(time.Date(2024, 3, 1, 23, 59, 30, 0, time.UTC))

	h.clock.t = time.Date(2024, 3, 2, 0, 0, 15, 0, time.UTC)
	h.filter.Process(Fix{Lat: 5, Lon: 6, HorizontalAccuracy: 100, Timestamp: h.clock.t})

	day, _ := h.days.Load("2024-03-01")
	if len(day.Waypoints) != 1 {
		t.Fatalf("closing waypoint recorded %d times, want 1", len(day.Waypoints))
	}
}

func TestMidnightRollover(t *testing.T) {
	h := newHarness(t, nil)
	h.clock.t = time.Date(2024, 3, 1, 23, 59, 30, 0, time.UTC)

	h.filter.Process(Fix{Lat: 5, Lon: 6, Timestamp: h.clock.t})

	// Next fix lands 15 s past local midnight, beyond the grace period.
	h.clock.t = time.Date(2024, 3, 2, 0, 0, 15, 0, time.UTC)
	h.filter.Process(Fix{Lat: 5, Lon: 6, HorizontalAccuracy: 100, Timestamp: h.clock.t})

	day, _ := h.days.Load("2024-03-01")
	if len(day.Waypoints) != 1 {
		t.Fatalf("expected previous day flushed, got %d waypoints", len(day.Waypoints))
	}
	wp := day.Waypoints[0]
	if wp.Lat != 5 || wp.Lon != 6 {
		t.Fatalf("flush must use the last known point, got (%v, %v)", wp.Lat, wp.Lon)
	}
	end := time.Date(2024, 3, 1, 23, 59, 59, 0, time.UTC)
	if !wp.Time.Equal(end) {
		t.Fatalf("flush must stamp the day's final second, got %v", wp.Time)
	}
}

func TestMidnightGraceSuppressesEarlyFlush(t *testing.T) {
	h := newHarness(t, nil)
	h.clock.t = time.Date(2024, 3, 1, 23, 59, 58, 0, time.UTC)
	h.filter.Process(Fix{Lat: 5, Lon: 6, Timestamp: h.clock.t})

	// 3 s past midnight is inside the grace window against clock skew.
	h.clock.t = time.Date(2024, 3, 2, 0, 0, 3, 0, time.UTC)
	h.filter.Process(Fix{Lat: 5, Lon: 6, HorizontalAccuracy: 100, Timestamp: h.clock.t})

	day, _ := h.days.Load("2024-03-01")
	if len(day.Waypoints) != 0 {
		t.Fatalf("flush inside the grace window must not happen")
	}
}

func TestStationaryRestartWidensThreshold(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "filterstate.json")
	st, _ := json.Marshal(persistedState{
		LastUpdateTimestamp: time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC),
		LastUpdateType:      updateStationary,
	})
	if err := os.WriteFile(statePath, st, 0o644); err != nil {
		t.Fatalf("write state: %v", err)
	}

	days := daystore.NewStore(dir)
	places := place.NewStore(filepath.Join(dir, "places.json"))
	f := New(DefaultConfig(), days, places, Options{
		Clock:     &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)},
		NewTimer:  (&timerRecorder{}).factory,
		StatePath: statePath,
	})

	if f.distanceFilter != DefaultConfig().SettlingThresholdM {
		t.Fatalf("expected settling threshold after stationary restart, got %v", f.distanceFilter)
	}
	if !f.lastUpdate.Equal(time.Date(2024, 3, 1, 11, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected restored last update time, got %v", f.lastUpdate)
	}
}

func TestStatePersistedAfterAccept(t *testing.T) {
	h := newHarness(t, nil)
	h.seedReference(t, 0, 0)
	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})

	data, err := os.ReadFile(h.opts.StatePath)
	if err != nil {
		t.Fatalf("state not persisted: %v", err)
	}
	var st persistedState
	if err := json.Unmarshal(data, &st); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if st.LastUpdateType != updateMoving || !st.LastUpdateTimestamp.Equal(h.clock.t) {
		t.Fatalf("unexpected persisted state: %+v", st)
	}
}

func TestActivityDrivenTrackSplit(t *testing.T) {
	activity := &fakeActivity{act: Activity{Cycling: true, Confidence: ConfidenceHigh}, ok: true}
	h := newHarness(t, func(o *Options) { o.Activity = activity })
	h.seedReference(t, 0, 0)

	// Seed a current walking track so the type change forces a split.
	start := h.clock.t.Add(-time.Minute)
	if err := h.days.AppendMoving(h.date(), gpx.Point{Lat: 0, Lon: 0, Time: &start}, gpx.TrackWalking, false); err != nil {
		t.Fatalf("seed track: %v", err)
	}

	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})

	day, _ := h.days.Load(h.date())
	if len(day.Tracks) != 2 {
		t.Fatalf("expected type-boundary split, got %d tracks", len(day.Tracks))
	}
	if day.Tracks[1].Type != gpx.TrackCycling {
		t.Fatalf("expected cycling track, got %v", day.Tracks[1].Type)
	}
	pt := day.Tracks[1].Segments[0].Points[0]
	if pt.Extensions[gpx.ExtActivity] != "cycling" {
		t.Fatalf("expected activity annotation, got %+v", pt.Extensions)
	}
	if pt.Extensions[gpx.ExtActivityFlags] != "cycling" {
		t.Fatalf("expected raw flags, got %+v", pt.Extensions)
	}
}

func TestLowConfidenceActivityDoesNotSplit(t *testing.T) {
	activity := &fakeActivity{act: Activity{Cycling: true, Confidence: ConfidenceLow}, ok: true}
	h := newHarness(t, func(o *Options) { o.Activity = activity })
	h.seedReference(t, 0, 0)

	start := h.clock.t.Add(-time.Minute)
	if err := h.days.AppendMoving(h.date(), gpx.Point{Lat: 0, Lon: 0, Time: &start}, gpx.TrackWalking, false); err != nil {
		t.Fatalf("seed track: %v", err)
	}

	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})

	day, _ := h.days.Load(h.date())
	if len(day.Tracks) != 1 {
		t.Fatalf("low confidence must not split, got %d tracks", len(day.Tracks))
	}
}

func TestPedometerEnrichment(t *testing.T) {
	pedometer := &fakePedometer{steps: 250}
	h := newHarness(t, func(o *Options) { o.Pedometer = pedometer })
	h.seedReference(t, 0, 0)

	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})
	h.clock.advance(31 * time.Second)
	h.filter.Process(Fix{Lat: 0, Lon: 0.00060, Timestamp: h.clock.t})

	day, _ := h.days.Load(h.date())
	points := day.Tracks[0].Segments[0].Points
	if got := points[len(points)-1].Extensions[gpx.ExtSteps]; got != "250" {
		t.Fatalf("expected step enrichment, got %q", got)
	}
}

func TestPedometerErrorAnnotated(t *testing.T) {
	pedometer := &fakePedometer{err: errors.New("sensor offline")}
	h := newHarness(t, func(o *Options) { o.Pedometer = pedometer })
	h.seedReference(t, 0, 0)

	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})
	h.clock.advance(31 * time.Second)
	h.filter.Process(Fix{Lat: 0, Lon: 0.00060, Timestamp: h.clock.t})

	day, _ := h.days.Load(h.date())
	points := day.Tracks[0].Segments[0].Points
	last := points[len(points)-1]
	if last.Extensions[gpx.ExtDebug] != "Steps error" {
		t.Fatalf("expected steps error marker, got %+v", last.Extensions)
	}
	if _, ok := last.Extensions[gpx.ExtSteps]; ok {
		t.Fatalf("errored query must not record a count")
	}
}

func TestBroadcastOnAppend(t *testing.T) {
	publisher := &fakePublisher{}
	h := newHarness(t, func(o *Options) { o.Publisher = publisher })
	h.seedReference(t, 0, 0)

	h.filter.Process(Fix{Lat: 0, Lon: 0.00020, Timestamp: h.clock.t})

	if len(publisher.channels) != 1 || publisher.channels[0] != h.date() {
		t.Fatalf("expected broadcast on the date channel, got %v", publisher.channels)
	}
	var msg struct {
		Kind  string    `json:"kind"`
		Point gpx.Point `json:"point"`
	}
	if err := json.Unmarshal(publisher.payloads[0], &msg); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if msg.Kind != updateMoving {
		t.Fatalf("unexpected payload kind %q", msg.Kind)
	}
}
