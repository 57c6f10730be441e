package place

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"life2gpx/internal/shared/geo"
)

// Store owns the place catalog: validation, persistence and the spatial
// index. Reads are concurrent; every mutation persists the whole catalog and
// swaps in a freshly built index unless batched.
type Store struct {
	path string

	mu     sync.RWMutex
	places []Place
	index  *GeoIndex
}

func NewStore(path string) *Store {
	return &Store{
		path:  path,
		index: BuildIndex(nil),
	}
}

// Load reads the catalog document. A missing or corrupt file yields an empty
// catalog, never an error: downstream logic always sees a usable structure.
func (s *Store) Load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("place catalog read failed: %v", err)
		}
		return
	}

	var places []Place
	if err := json.Unmarshal(data, &places); err != nil {
		log.Printf("place catalog decode failed, starting empty: %v", err)
		return
	}

	s.mu.Lock()
	s.places = places
	s.index = BuildIndex(places)
	s.mu.Unlock()
}

// Add validates and appends a new place. With batch set, persistence and
// reindexing are deferred until FinalizeBatch.
func (s *Store) Add(p Place, batch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(p); err != nil {
		return err
	}
	for i := range s.places {
		if s.places[i].PlaceID == p.PlaceID {
			return ErrInvalidPlaceID
		}
	}

	p.LastSaved = time.Now().Format(time.RFC3339)
	if batch {
		s.places = append(s.places, p)
		return nil
	}
	return s.commitLocked(append(s.snapshotLocked(), p))
}

// Edit re-validates edited and replaces the catalog entry matching
// original's id.
func (s *Store) Edit(original, edited Place, batch bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := validate(edited); err != nil {
		return err
	}

	for i := range s.places {
		if s.places[i].PlaceID != original.PlaceID {
			continue
		}
		edited.LastSaved = time.Now().Format(time.RFC3339)
		if batch {
			s.places[i] = edited
			return nil
		}
		staged := s.snapshotLocked()
		staged[i] = edited
		return s.commitLocked(staged)
	}
	return ErrPlaceNotFound
}

// Delete removes the place with a matching id. No batch mode: deletions are
// rare and always persist immediately.
func (s *Store) Delete(p Place) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.places {
		if s.places[i].PlaceID == p.PlaceID {
			staged := s.snapshotLocked()
			staged = append(staged[:i], staged[i+1:]...)
			return s.commitLocked(staged)
		}
	}
	return ErrPlaceNotFound
}

// FinalizeBatch persists and reindexes after a run of batched mutations.
func (s *Store) FinalizeBatch() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commitLocked(s.snapshotLocked())
}

// MarkVisited stamps the place's last visit time. Invoked on every stationary
// append that resolves to a place, so failures only log.
func (s *Store) MarkVisited(placeID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.places {
		if !s.places[i].HasID(placeID) {
			continue
		}
		staged := s.snapshotLocked()
		staged[i].LastVisited = &at
		if err := s.commitLocked(staged); err != nil {
			log.Printf("persisting last visit for %s failed: %v", placeID, err)
		}
		return
	}
}

// Get resolves a place by its current or any historical id.
func (s *Store) Get(id string) (Place, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := range s.places {
		if s.places[i].HasID(id) {
			return s.places[i], true
		}
	}
	return Place{}, false
}

// All returns a snapshot of the catalog.
func (s *Store) All() []Place {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Place, len(s.places))
	copy(out, s.places)
	return out
}

// ContainingPlace answers which geofence contains the coordinate.
func (s *Store) ContainingPlace(lat, lon float64) (Place, bool) {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	return idx.ContainingPlace(lat, lon)
}

// Nearby returns up to limit places ordered by distance from the coordinate.
func (s *Store) Nearby(lat, lon float64, limit int) []Place {
	s.mu.RLock()
	idx := s.index
	s.mu.RUnlock()
	return idx.Nearby(lat, lon, limit)
}

// DuplicatePair flags two distinct catalog entries that look like the same
// real-world place.
type DuplicatePair struct {
	A Place `json:"a"`
	B Place `json:"b"`
}

// FindDuplicates groups the catalog by exact name, then flags every pair
// within a group whose centers sit within the larger of the two radii.
// Transitively related triples surface as separate pairs.
func (s *Store) FindDuplicates() []DuplicatePair {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byName := make(map[string][]*Place)
	for i := range s.places {
		byName[s.places[i].Name] = append(byName[s.places[i].Name], &s.places[i])
	}

	var pairs []DuplicatePair
	for _, group := range byName {
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				a, b := group[i], group[j]
				if a.PlaceID == b.PlaceID {
					continue
				}
				d := geo.DistanceMeters(a.Center.Latitude, a.Center.Longitude, b.Center.Latitude, b.Center.Longitude)
				if d <= maxRadius(a.Radius, b.Radius) {
					pairs = append(pairs, DuplicatePair{A: *a, B: *b})
				}
			}
		}
	}
	return pairs
}

func maxRadius(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func (s *Store) snapshotLocked() []Place {
	out := make([]Place, len(s.places))
	copy(out, s.places)
	return out
}

// commitLocked rewrites the catalog document atomically, then adopts the
// staged catalog and rebuilds the index. On failure the in-memory catalog is
// left as it was, so memory never diverges from disk. Callers hold the write
// lock.
func (s *Store) commitLocked(staged []Place) error {
	data, err := json.MarshalIndent(staged, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".places-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return err
	}

	s.places = staged
	s.index = BuildIndex(staged)
	return nil
}
