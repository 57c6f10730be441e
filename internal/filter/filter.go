package filter

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	"life2gpx/internal/daystore"
	"life2gpx/internal/gpx"
	"life2gpx/internal/place"
	"life2gpx/internal/shared/geo"
)

const dateLayout = "2006-01-02"

const (
	updateMoving     = "moving"
	updateStationary = "stationary"
)

// Options carries the filter's optional collaborators. Zero values select
// real clocks and timers and disable the corresponding enrichment.
type Options struct {
	Pedometer Pedometer
	Activity  ActivitySource
	Publisher Publisher
	Clock     Clock
	NewTimer  TimerFactory
	// StatePath is the sidecar file holding the two scalars that survive
	// restarts (last update time and type). Empty disables persistence.
	StatePath string
}

// Filter converts a bursty stream of raw fixes into a minimal set of moving
// track points and stationary waypoints. Fixes are processed in arrival
// order; only the stored point's own time field reflects sensor time.
type Filter struct {
	cfg    Config
	days   *daystore.Store
	places *place.Store
	opts   Options
	clock  Clock
	timers TimerFactory

	mu              sync.Mutex
	prevSaved       *gpx.Point
	currentFiltered *Fix
	distanceFilter  float64
	history         []time.Time
	rejectQueue     []Fix
	lastReceive     time.Time
	lastAppend      time.Time
	lastUpdate      time.Time // persisted
	lastUpdateType  string    // persisted
	settle          Timer
}

// New builds a filter, restoring the persisted scalars when a state path is
// configured. The distance threshold starts wide when the last recorded
// update was stationary.
func New(cfg Config, days *daystore.Store, places *place.Store, opts Options) *Filter {
	f := &Filter{
		cfg:            cfg,
		days:           days,
		places:         places,
		opts:           opts,
		clock:          opts.Clock,
		timers:         opts.NewTimer,
		distanceFilter: cfg.MovingThresholdM,
	}
	if f.clock == nil {
		f.clock = systemClock{}
	}
	if f.timers == nil {
		f.timers = systemTimer
	}

	f.loadState()
	if f.lastUpdateType == updateStationary {
		f.distanceFilter = cfg.SettlingThresholdM
	}
	return f
}

// Process runs one raw fix through the decision table. Never fatal: sensor
// and file errors degrade to annotations or a skipped append.
func (f *Filter) Process(fix Fix) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.clock.Now()

	// Duplicate-delivery debounce against the accepted-history ring.
	if n := len(f.history); n > 0 && now.Sub(f.history[n-1]) < f.cfg.DebounceInterval {
		return
	}
	f.history = append(f.history, now)
	if len(f.history) > f.cfg.HistoryCap {
		f.history = f.history[1:]
	}

	// Day rollover: flush the previous day before touching the new one.
	if !f.lastReceive.IsZero() && !sameDay(f.lastReceive, now) && now.Sub(startOfDay(now)) >= f.cfg.MidnightGrace {
		f.flushDayLocked(f.lastReceive)
	}
	f.lastReceive = now

	// Reference establishment after a cold start.
	if f.prevSaved == nil {
		if p, ok, err := f.days.LatestPoint(now.Format(dateLayout)); err == nil && ok {
			f.prevSaved = &p
		} else {
			pt := f.pointFromFix(fix, now)
			f.prevSaved = &pt
			cur := fix
			f.currentFiltered = &cur
			f.pushRejectLocked(fix)
			f.armSettleLocked()
			return
		}
	}

	// Accuracy-compensated movement test.
	effective := geo.DistanceMeters(f.prevSaved.Lat, f.prevSaved.Lon, fix.Lat, fix.Lon) -
		(fix.HorizontalAccuracy+fix.VerticalAccuracy)/2
	elapsed := now.Sub(f.lastUpdate)
	if f.lastUpdate.IsZero() {
		elapsed = f.cfg.MinUpdateInterval
	}

	if effective >= f.distanceFilter && elapsed >= f.cfg.MinUpdateInterval {
		f.acceptMovingLocked(fix, now)
		return
	}

	if effective < f.distanceFilter {
		cur := fix
		f.currentFiltered = &cur
		f.pushRejectLocked(fix)
	}
	// Rejected purely on time: nothing further.
}

// Settle is the settle-timer callback: no movement was accepted for the
// configured window, so record a stop at the averaged rejected position.
func (f *Filter) Settle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.settleLocked(f.clock.Now())
}

// ForceMidnightUpdate flushes the last known point as a stationary update
// for the given day, stamped at that day's final second. Also invoked by the
// once-daily timer.
func (f *Filter) ForceMidnightUpdate(day time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.flushDayLocked(day)
}

// RunMidnightFlush sleeps until just past each local midnight and flushes
// the day that ended. Blocks until the context is cancelled.
func (f *Filter) RunMidnightFlush(ctx context.Context) {
	for {
		now := f.clock.Now()
		next := startOfDay(now).AddDate(0, 0, 1).Add(f.cfg.MidnightGrace)
		select {
		case <-ctx.Done():
			return
		case <-time.After(next.Sub(now)):
			f.ForceMidnightUpdate(now)
		}
	}
}

func (f *Filter) acceptMovingLocked(fix Fix, now time.Time) {
	pt := f.pointFromFix(fix, now)
	f.enrichStepsLocked(&pt, now)

	trackType := gpx.TrackUnknown
	split := false
	if f.opts.Activity != nil {
		if act, ok := f.opts.Activity.Current(); ok {
			trackType = act.TrackType()
			pt.Extensions[gpx.ExtActivity] = string(trackType)
			if flags := act.Flags(); flags != "" {
				pt.Extensions[gpx.ExtActivityFlags] = flags
			}
			if act.Confidence >= ConfidenceMedium && trackType != gpx.TrackUnknown {
				current, err := f.days.CurrentTrackType(now.Format(dateLayout))
				if err == nil && current != gpx.TrackUnknown && current != trackType {
					split = true
				}
			}
		}
	}

	f.appendLocked(now, func(date string) error {
		return f.days.AppendMoving(date, pt, trackType, split)
	}, updateMoving, pt)

	f.distanceFilter = f.cfg.MovingThresholdM
	f.prevSaved = &pt
	cur := fix
	f.currentFiltered = &cur
	f.rejectQueue = nil
	f.lastUpdate = now
	f.lastUpdateType = updateMoving
	f.saveState()
	f.armSettleLocked()
}

func (f *Filter) settleLocked(now time.Time) {
	avg, ok := f.averagedFixLocked()
	if !ok {
		return
	}

	pt := f.pointFromFix(avg, now)
	f.enrichStepsLocked(&pt, now)

	if f.places != nil {
		if p, found := f.places.ContainingPlace(avg.Lat, avg.Lon); found {
			pt.Name = p.Name
			pt.Extensions[gpx.ExtPlaceID] = p.PlaceID
			pt.Extensions[gpx.ExtPlaceName] = p.Name
			if p.StreetAddress != "" {
				pt.Extensions[gpx.ExtAddress] = p.StreetAddress
			}
			if p.FacebookPlaceID != "" {
				pt.Extensions[gpx.ExtFacebookPlaceID] = p.FacebookPlaceID
			}
			if p.MapboxPlaceID != "" {
				pt.Extensions[gpx.ExtMapboxPlaceID] = p.MapboxPlaceID
			}
			if p.FoursquareVenueID != "" {
				pt.Extensions[gpx.ExtFoursquareVenueID] = p.FoursquareVenueID
			}
			if p.FoursquareCategoryID != "" {
				pt.Extensions[gpx.ExtFoursquareCategoryID] = p.FoursquareCategoryID
			}
			f.places.MarkVisited(p.PlaceID, now)
		}
	}

	f.appendLocked(now, func(date string) error {
		return f.days.AppendStationary(date, pt)
	}, updateStationary, pt)

	f.distanceFilter = f.cfg.SettlingThresholdM
	f.prevSaved = &pt
	f.rejectQueue = nil
	f.lastUpdate = now
	f.lastUpdateType = updateStationary
	f.saveState()
}

// flushDayLocked records the last known position as the closing stationary
// point of the given day.
func (f *Filter) flushDayLocked(day time.Time) {
	last := f.prevSaved
	if last == nil && f.currentFiltered != nil {
		pt := f.pointFromFix(*f.currentFiltered, day)
		last = &pt
	}
	if last == nil {
		return
	}

	endOfDay := startOfDay(day).Add(24*time.Hour - time.Second)
	pt := gpx.ClonePoint(*last)
	pt.Time = &endOfDay

	f.appendLocked(endOfDay, func(date string) error {
		return f.days.AppendStationary(date, pt)
	}, updateStationary, pt)

	f.lastUpdate = f.clock.Now()
	f.lastUpdateType = updateStationary
	f.distanceFilter = f.cfg.SettlingThresholdM
	f.saveState()
}

// appendLocked applies the coarse append debounce, performs the store write
// and broadcasts the point. A store failure aborts only this append; the
// in-memory state still advances so the same decision is not relitigated.
func (f *Filter) appendLocked(at time.Time, write func(date string) error, kind string, pt gpx.Point) {
	if !f.lastAppend.IsZero() && at.Sub(f.lastAppend) < f.cfg.AppendDebounce {
		return
	}
	date := at.Format(dateLayout)
	if err := write(date); err != nil {
		log.Printf("append %s to %s failed: %v", kind, date, err)
		return
	}
	f.lastAppend = at

	if f.opts.Publisher != nil {
		payload, err := json.Marshal(struct {
			Date  string    `json:"date"`
			Kind  string    `json:"kind"`
			Point gpx.Point `json:"point"`
		}{date, kind, pt})
		if err == nil {
			f.opts.Publisher.Broadcast(date, payload)
		}
	}
}

// averagedFixLocked returns the arithmetic mean of the rejected fixes, or
// the current filtered location when the queue is empty.
func (f *Filter) averagedFixLocked() (Fix, bool) {
	if len(f.rejectQueue) == 0 {
		if f.currentFiltered == nil {
			return Fix{}, false
		}
		return *f.currentFiltered, true
	}

	var avg Fix
	for _, fx := range f.rejectQueue {
		avg.Lat += fx.Lat
		avg.Lon += fx.Lon
		avg.Altitude += fx.Altitude
		avg.HorizontalAccuracy += fx.HorizontalAccuracy
		avg.VerticalAccuracy += fx.VerticalAccuracy
	}
	n := float64(len(f.rejectQueue))
	avg.Lat /= n
	avg.Lon /= n
	avg.Altitude /= n
	avg.HorizontalAccuracy /= n
	avg.VerticalAccuracy /= n
	avg.Timestamp = f.rejectQueue[len(f.rejectQueue)-1].Timestamp
	return avg, true
}

func (f *Filter) pushRejectLocked(fix Fix) {
	f.rejectQueue = append(f.rejectQueue, fix)
	if len(f.rejectQueue) > f.cfg.RejectQueueCap {
		f.rejectQueue = f.rejectQueue[1:]
	}
}

// armSettleLocked replaces any live settle timer with a fresh one. At most
// one settle timer is live per filter instance.
func (f *Filter) armSettleLocked() {
	if f.settle != nil {
		f.settle.Stop()
	}
	f.settle = f.timers(f.cfg.SettleAfter, f.Settle)
}

func (f *Filter) enrichStepsLocked(pt *gpx.Point, now time.Time) {
	if f.opts.Pedometer == nil {
		return
	}
	from := f.lastAppend
	if from.IsZero() {
		from = f.lastUpdate
	}
	if from.IsZero() {
		return
	}
	steps, err := f.opts.Pedometer.Steps(from, now)
	if err != nil {
		pt.Extensions[gpx.ExtDebug] = "Steps error"
		return
	}
	pt.Extensions[gpx.ExtSteps] = strconv.Itoa(steps)
}

func (f *Filter) pointFromFix(fix Fix, fallback time.Time) gpx.Point {
	t := fix.Timestamp
	if t.IsZero() {
		t = fallback
	}
	ele := fix.Altitude
	pt := gpx.Point{
		Lat:        fix.Lat,
		Lon:        fix.Lon,
		Elevation:  &ele,
		Time:       &t,
		Extensions: gpx.Extensions{},
	}
	if fix.HorizontalAccuracy > 0 {
		pt.Extensions[gpx.ExtHorizontalPrecision] = strconv.FormatFloat(fix.HorizontalAccuracy, 'f', -1, 64)
	}
	if fix.VerticalAccuracy > 0 {
		pt.Extensions[gpx.ExtVerticalPrecision] = strconv.FormatFloat(fix.VerticalAccuracy, 'f', -1, 64)
	}
	return pt
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
