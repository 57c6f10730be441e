package daystore

import (
	"life2gpx/internal/gpx"
)

// AppendMoving records an accepted moving point for the date. The point
// extends the last segment of the last track while that track is still
// current, meaning its last point is not older than the last recorded
// waypoint. A stop in between, or an activity-type split requested by the
// filter, starts a new track.
func (s *Store) AppendMoving(date string, pt gpx.Point, trackType gpx.TrackType, splitTrack bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return err
	}

	if trackType == "" {
		trackType = gpx.TrackUnknown
	}

	if !splitTrack && trackStillCurrent(day) {
		last := &day.Tracks[len(day.Tracks)-1]
		if len(last.Segments) == 0 {
			last.Segments = append(last.Segments, gpx.Segment{})
		}
		seg := &last.Segments[len(last.Segments)-1]
		seg.Points = append(seg.Points, pt)
		return s.Save(day, date)
	}

	day.Tracks = append(day.Tracks, gpx.Track{
		Type:     trackType,
		Segments: []gpx.Segment{{Points: []gpx.Point{pt}}},
	})
	return s.Save(day, date)
}

// AppendStationary records a settled stop as a waypoint.
func (s *Store) AppendStationary(date string, wpt gpx.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return err
	}
	day.Waypoints = append(day.Waypoints, wpt)
	return s.Save(day, date)
}

// CurrentTrackType reports the type of the track a moving point would extend,
// or unknown when a new track would be started.
func (s *Store) CurrentTrackType(date string) (gpx.TrackType, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return gpx.TrackUnknown, err
	}
	if !trackStillCurrent(day) {
		return gpx.TrackUnknown, nil
	}
	t := day.Tracks[len(day.Tracks)-1].Type
	if t == "" {
		t = gpx.TrackUnknown
	}
	return t, nil
}

// trackStillCurrent reports whether the last track's last point is at least
// as recent as the last waypoint, i.e. no stop has been recorded since the
// track was last extended.
func trackStillCurrent(day *gpx.DayFile) bool {
	if len(day.Tracks) == 0 {
		return false
	}
	trackEnd := day.Tracks[len(day.Tracks)-1].EndTime()
	if trackEnd == nil {
		return false
	}

	for _, wp := range day.Waypoints {
		if wp.Time != nil && wp.Time.After(*trackEnd) {
			return false
		}
	}
	return true
}
