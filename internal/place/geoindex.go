package place

import (
	"math"
	"sort"

	"life2gpx/internal/shared/geo"
)

// Grid cell edge in degrees. Catalog sizes are user-place counts, so a coarse
// grid keeps lookups to a handful of candidates.
const cellSizeDegrees = 0.1

type cellKey struct {
	row, col int
}

func cellFor(lat, lon float64) cellKey {
	return cellKey{
		row: int(math.Floor(lat / cellSizeDegrees)),
		col: int(math.Floor(lon / cellSizeDegrees)),
	}
}

// GeoIndex buckets places by every grid cell their bounding rectangle
// intersects. An index is immutable once built; catalog mutations build a
// fresh index and swap it in so concurrent readers stay consistent.
type GeoIndex struct {
	cells     map[cellKey][]*Place
	maxRadius float64
}

// BuildIndex constructs an index over a snapshot of the catalog. The index
// keeps its own backing array, so later catalog edits cannot reach it.
func BuildIndex(places []Place) *GeoIndex {
	snapshot := make([]Place, len(places))
	copy(snapshot, places)

	idx := &GeoIndex{cells: make(map[cellKey][]*Place)}
	for i := range snapshot {
		p := &snapshot[i]
		if p.Radius > idx.maxRadius {
			idx.maxRadius = p.Radius
		}
		latSpan := geo.LatSpanDegrees(p.Radius)
		lonSpan := geo.LonSpanDegrees(p.Radius, p.Center.Latitude)
		min := cellFor(p.Center.Latitude-latSpan, p.Center.Longitude-lonSpan)
		max := cellFor(p.Center.Latitude+latSpan, p.Center.Longitude+lonSpan)
		for row := min.row; row <= max.row; row++ {
			for col := min.col; col <= max.col; col++ {
				key := cellKey{row, col}
				idx.cells[key] = append(idx.cells[key], p)
			}
		}
	}
	return idx
}

// ContainingPlace returns the place whose circle contains the coordinate.
// When circles overlap, the smallest radius wins: the more specific geofence
// is the better label for a visit.
func (idx *GeoIndex) ContainingPlace(lat, lon float64) (Place, bool) {
	var best *Place
	for _, p := range idx.cells[cellFor(lat, lon)] {
		d := geo.DistanceMeters(lat, lon, p.Center.Latitude, p.Center.Longitude)
		if d > p.Radius {
			continue
		}
		if best == nil || p.Radius < best.Radius {
			best = p
		}
	}
	if best == nil {
		return Place{}, false
	}
	return *best, true
}

// Nearby returns up to limit places ordered by distance from the coordinate.
// The search box is sized by the catalog's largest radius so no geofence that
// could reach the coordinate is skipped.
func (idx *GeoIndex) Nearby(lat, lon float64, limit int) []Place {
	if limit <= 0 || len(idx.cells) == 0 {
		return nil
	}

	latSpan := geo.LatSpanDegrees(idx.maxRadius)
	lonSpan := geo.LonSpanDegrees(idx.maxRadius, lat)
	min := cellFor(lat-latSpan, lon-lonSpan)
	max := cellFor(lat+latSpan, lon+lonSpan)

	seen := make(map[*Place]struct{})
	var candidates []*Place
	for row := min.row; row <= max.row; row++ {
		for col := min.col; col <= max.col; col++ {
			for _, p := range idx.cells[cellKey{row, col}] {
				if _, dup := seen[p]; dup {
					continue
				}
				seen[p] = struct{}{}
				candidates = append(candidates, p)
			}
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		di := geo.DistanceMeters(lat, lon, candidates[i].Center.Latitude, candidates[i].Center.Longitude)
		dj := geo.DistanceMeters(lat, lon, candidates[j].Center.Latitude, candidates[j].Center.Longitude)
		return di < dj
	})

	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	out := make([]Place, len(candidates))
	for i, p := range candidates {
		out[i] = *p
	}
	return out
}
