package timeline

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"life2gpx/internal/gpx"
	"life2gpx/internal/shared/geo"
)

const dateLayout = "2006-01-02"

// Kind discriminates the two timeline item shapes.
type Kind string

const (
	KindVisit Kind = "visit"
	KindTrack Kind = "track"
)

// Coordinate is a rendering vertex.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Item is one entry of a day's reconstructed timeline: a visit wrapping a
// single waypoint, or a track wrapping one persisted track. Items are derived
// on every request and never stored.
type Item struct {
	Kind            Kind           `json:"kind"`
	Name            string         `json:"name,omitempty"`
	PlaceID         string         `json:"place_id,omitempty"`
	TrackType       gpx.TrackType  `json:"track_type,omitempty"`
	StartDate       *time.Time     `json:"start_date,omitempty"`
	EndDate         *time.Time     `json:"end_date,omitempty"`
	Duration        string         `json:"duration"`
	Steps           int            `json:"steps"`
	Meters          float64        `json:"meters"`
	NumberOfPoints  int            `json:"number_of_points"`
	AverageSpeedKmh float64        `json:"average_speed_kmh"`
	Coordinates     [][]Coordinate `json:"coordinates"`
}

// Build reconstructs the ordered timeline for one day file. The date names
// the queried calendar day in loc and bounds the gap-fill clamp. An empty day
// yields an empty timeline.
func Build(day *gpx.DayFile, date string, loc *time.Location) []Item {
	items := make([]Item, 0, len(day.Waypoints)+len(day.Tracks))
	flat := day.FlattenPoints()

	for _, wp := range day.Waypoints {
		items = append(items, visitItem(wp))
	}
	for i := range day.Tracks {
		items = append(items, trackItem(&day.Tracks[i], flat))
	}

	sort.SliceStable(items, func(i, j int) bool {
		return startOrPast(items[i]).Before(startOrPast(items[j]))
	})

	gapFill(items, date, loc)
	return items
}

func visitItem(wp gpx.Point) Item {
	it := Item{
		Kind:           KindVisit,
		Name:           wp.Name,
		PlaceID:        wp.Extensions[gpx.ExtPlaceID],
		Steps:          stepsOf(wp),
		NumberOfPoints: 1,
		Coordinates:    [][]Coordinate{{{Latitude: wp.Lat, Longitude: wp.Lon}}},
	}
	if wp.Time != nil {
		start := *wp.Time
		end := *wp.Time
		it.StartDate = &start
		it.EndDate = &end
	}
	return it
}

func trackItem(trk *gpx.Track, flat []gpx.Point) Item {
	it := Item{
		Kind:      KindTrack,
		Name:      trk.Name,
		TrackType: trk.Type,
	}

	var meters float64
	for _, seg := range trk.Segments {
		coords := make([]Coordinate, 0, len(seg.Points))
		for i, pt := range seg.Points {
			coords = append(coords, Coordinate{Latitude: pt.Lat, Longitude: pt.Lon})
			it.Steps += stepsOf(pt)
			it.NumberOfPoints++
			if i > 0 {
				prev := seg.Points[i-1]
				meters += geo.DistanceMeters(prev.Lat, prev.Lon, pt.Lat, pt.Lon)
			}
		}
		it.Coordinates = append(it.Coordinates, coords)
	}
	it.Meters = meters

	if start := trk.StartTime(); start != nil {
		s := *start
		it.StartDate = &s
	}
	if end := trk.EndTime(); end != nil {
		e := *end
		it.EndDate = &e
	}

	// Stitch the visual gap toward the neighbouring items: prepend the
	// chronologically nearest point before the track and append the nearest
	// one after it.
	if len(it.Coordinates) > 0 {
		if before, ok := nearestBefore(flat, it.StartDate); ok {
			it.Coordinates[0] = append([]Coordinate{before}, it.Coordinates[0]...)
		}
		if after, ok := nearestAfter(flat, it.EndDate); ok {
			last := len(it.Coordinates) - 1
			it.Coordinates[last] = append(it.Coordinates[last], after)
		}
	}

	if it.StartDate != nil && it.EndDate != nil {
		if hours := it.EndDate.Sub(*it.StartDate).Hours(); hours > 0 {
			it.AverageSpeedKmh = (meters / 1000) / hours
		}
	}
	return it
}

// gapFill stretches each visit to the start of the next item and clamps the
// final item to the queried day's last second when its natural end spills
// over into another day.
func gapFill(items []Item, date string, loc *time.Location) {
	for i := range items {
		isLast := i == len(items)-1
		if items[i].Kind == KindVisit && !isLast {
			if next := items[i+1].StartDate; next != nil {
				end := *next
				items[i].EndDate = &end
			}
		}
		if isLast {
			clampToDay(&items[i], date, loc)
		}

		start := items[i].StartDate
		var until *time.Time
		if !isLast {
			until = items[i+1].StartDate
		} else {
			until = items[i].EndDate
		}
		if start != nil && until != nil {
			items[i].Duration = humanDuration(until.Sub(*start))
		} else {
			items[i].Duration = humanDuration(0)
		}
	}
}

func clampToDay(it *Item, date string, loc *time.Location) {
	if it.EndDate == nil {
		return
	}
	dayStart, err := time.ParseInLocation(dateLayout, date, loc)
	if err != nil {
		return
	}
	if it.EndDate.In(loc).Format(dateLayout) != date {
		end := dayStart.Add(24*time.Hour - time.Second)
		it.EndDate = &end
	}
}

func nearestBefore(flat []gpx.Point, before *time.Time) (Coordinate, bool) {
	if before == nil {
		return Coordinate{}, false
	}
	var best *gpx.Point
	for i := range flat {
		t := flat[i].Time
		if t == nil || !t.Before(*before) {
			continue
		}
		if best == nil || t.After(*best.Time) {
			best = &flat[i]
		}
	}
	if best == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: best.Lat, Longitude: best.Lon}, true
}

func nearestAfter(flat []gpx.Point, after *time.Time) (Coordinate, bool) {
	if after == nil {
		return Coordinate{}, false
	}
	var best *gpx.Point
	for i := range flat {
		t := flat[i].Time
		if t == nil || !t.After(*after) {
			continue
		}
		if best == nil || t.Before(*best.Time) {
			best = &flat[i]
		}
	}
	if best == nil {
		return Coordinate{}, false
	}
	return Coordinate{Latitude: best.Lat, Longitude: best.Lon}, true
}

func stepsOf(pt gpx.Point) int {
	n, err := strconv.Atoi(pt.Extensions[gpx.ExtSteps])
	if err != nil {
		return 0
	}
	return n
}

func startOrPast(it Item) time.Time {
	if it.StartDate == nil {
		return time.Time{}
	}
	return *it.StartDate
}

func humanDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh %dm", h, m)
	}
	return fmt.Sprintf("%dm", m)
}
