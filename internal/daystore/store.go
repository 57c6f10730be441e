package daystore

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"life2gpx/internal/gpx"
)

// Strict similarity level used to locate stored elements for update and
// delete. Callers hold deep copies, not references, so a full-field match is
// the only safe identity.
const matchLevel = 5

var dateFormat = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ErrBadDate rejects keys that are not calendar dates.
var ErrBadDate = fmt.Errorf("date must be YYYY-MM-DD")

// Store is the durable per-day file abstraction. All mutation is
// load-modify-save under a single lock: the design assumes one logical writer
// per date and provides no cross-process locking.
type Store struct {
	dir string
	mu  sync.Mutex
}

func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

func (s *Store) path(date string) string {
	return filepath.Join(s.dir, date+".gpx")
}

// Load reads the day document for a date. A missing or corrupt file yields an
// empty day, never an error.
func (s *Store) Load(date string) (*gpx.DayFile, error) {
	if !dateFormat.MatchString(date) {
		return nil, ErrBadDate
	}

	day, err := gpx.ParseFile(s.path(date))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			log.Printf("day file %s unreadable, treating as empty: %v", date, err)
		}
		return gpx.NewDayFile(), nil
	}
	return day, nil
}

// Save rewrites the whole day document atomically (write to temp, rename).
func (s *Store) Save(day *gpx.DayFile, date string) error {
	if !dateFormat.MatchString(date) {
		return ErrBadDate
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(s.dir, "."+date+"-*.gpx")
	if err != nil {
		return err
	}
	if err := day.Write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path(date))
}

// UpdateWaypoint replaces the first stored waypoint fully matching original
// with edited. A miss is logged and reported as matched=false, not an error:
// the pipeline must not crash over a drifted copy.
func (s *Store) UpdateWaypoint(date string, original, edited gpx.Point) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return false, err
	}
	for i := range day.Waypoints {
		if gpx.SimilarPoints(day.Waypoints[i], original, matchLevel) {
			day.Waypoints[i] = gpx.ClonePoint(edited)
			return true, s.Save(day, date)
		}
	}
	log.Printf("update waypoint: no match in %s", date)
	return false, nil
}

// DeleteWaypoint removes the first stored waypoint fully matching target.
func (s *Store) DeleteWaypoint(date string, target gpx.Point) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return false, err
	}
	for i := range day.Waypoints {
		if gpx.SimilarPoints(day.Waypoints[i], target, matchLevel) {
			day.Waypoints = append(day.Waypoints[:i], day.Waypoints[i+1:]...)
			return true, s.Save(day, date)
		}
	}
	log.Printf("delete waypoint: no match in %s", date)
	return false, nil
}

// UpdateTrack replaces the first stored track fully matching original.
func (s *Store) UpdateTrack(date string, original, edited gpx.Track) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return false, err
	}
	for i := range day.Tracks {
		if gpx.SimilarTracks(day.Tracks[i], original, matchLevel) {
			day.Tracks[i] = gpx.CloneTrack(edited)
			return true, s.Save(day, date)
		}
	}
	log.Printf("update track: no match in %s", date)
	return false, nil
}

// DeleteTrack removes the first stored track fully matching target.
func (s *Store) DeleteTrack(date string, target gpx.Track) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	day, err := s.Load(date)
	if err != nil {
		return false, err
	}
	for i := range day.Tracks {
		if gpx.SimilarTracks(day.Tracks[i], target, matchLevel) {
			day.Tracks = append(day.Tracks[:i], day.Tracks[i+1:]...)
			return true, s.Save(day, date)
		}
	}
	log.Printf("delete track: no match in %s", date)
	return false, nil
}

// LatestPoint returns the most recent timed point recorded for a date. The
// filter uses it to re-establish its reference after a restart.
func (s *Store) LatestPoint(date string) (gpx.Point, bool, error) {
	day, err := s.Load(date)
	if err != nil {
		return gpx.Point{}, false, err
	}
	p, ok := day.LatestPoint()
	return p, ok, nil
}
