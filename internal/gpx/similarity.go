package gpx

import "math"

// Tolerances for the fuzzy field comparator. Coordinates allow roughly a
// meter of drift; times a full second.
const (
	coordTolerance = 1e-5
	eleTolerance   = 0.1
	ageTolerance   = 0.1
	dopTolerance   = 0.01
	timeTolerance  = 1.0 // seconds
)

// fieldTally accumulates candidate fields and matches while comparing two
// elements. A field counts as a candidate when present on either side.
type fieldTally struct {
	candidates int
	matches    int
}

func (ft *fieldTally) count(present, matched bool) {
	if !present {
		return
	}
	ft.candidates++
	if matched {
		ft.matches++
	}
}

func (ft *fieldTally) ratio() (float64, bool) {
	if ft.candidates == 0 {
		return 0, false
	}
	return float64(ft.matches) / float64(ft.candidates), true
}

// clampLevel maps an out-of-range confidence level back to the default of 3.
func clampLevel(level int) int {
	if level < 1 || level > 5 {
		return 3
	}
	return level
}

// SimilarPoints reports whether a and b are plausibly the same stored point.
// Each attribute present on either side is a candidate; the fraction of
// candidates matching within tolerance must reach level*0.2 (level 1 → 20%,
// level 5 → every field). Elements with no comparable fields never match.
func SimilarPoints(a, b Point, level int) bool {
	ft := pointTally(a, b)
	ratio, ok := ft.ratio()
	if !ok {
		return false
	}
	return ratio >= float64(clampLevel(level))*0.2
}

// SimilarTracks applies the same ratio rule across track-level fields plus
// every corresponding point pair. Tracks with different shapes never match.
func SimilarTracks(a, b Track, level int) bool {
	aPoints := flattenTrack(a)
	bPoints := flattenTrack(b)
	if len(aPoints) != len(bPoints) {
		return false
	}

	var ft fieldTally
	ft.count(a.Name != "" || b.Name != "", a.Name == b.Name)
	ft.count(a.Desc != "" || b.Desc != "", a.Desc == b.Desc)
	ft.count(a.Type != "" || b.Type != "", a.Type == b.Type)
	ft.count(len(a.Extensions) > 0 || len(b.Extensions) > 0, sameExtensions(a.Extensions, b.Extensions))
	for i := range aPoints {
		pt := pointTally(aPoints[i], bPoints[i])
		ft.candidates += pt.candidates
		ft.matches += pt.matches
	}

	ratio, ok := ft.ratio()
	if !ok {
		return false
	}
	return ratio >= float64(clampLevel(level))*0.2
}

func pointTally(a, b Point) fieldTally {
	var ft fieldTally
	// Coordinates are required fields, so they are always candidates.
	ft.count(true, math.Abs(a.Lat-b.Lat) <= coordTolerance)
	ft.count(true, math.Abs(a.Lon-b.Lon) <= coordTolerance)
	ft.count(a.Elevation != nil || b.Elevation != nil, floatsWithin(a.Elevation, b.Elevation, eleTolerance))
	ft.count(a.Time != nil || b.Time != nil, timesWithin(a, b))
	ft.count(a.MagVar != nil || b.MagVar != nil, floatsWithin(a.MagVar, b.MagVar, dopTolerance))
	ft.count(a.Name != "" || b.Name != "", a.Name == b.Name)
	ft.count(a.Desc != "" || b.Desc != "", a.Desc == b.Desc)
	ft.count(len(a.Links) > 0 || len(b.Links) > 0, sameLinkSet(a.Links, b.Links))
	ft.count(a.HDOP != nil || b.HDOP != nil, floatsWithin(a.HDOP, b.HDOP, dopTolerance))
	ft.count(a.VDOP != nil || b.VDOP != nil, floatsWithin(a.VDOP, b.VDOP, dopTolerance))
	ft.count(a.PDOP != nil || b.PDOP != nil, floatsWithin(a.PDOP, b.PDOP, dopTolerance))
	ft.count(a.AgeOfData != nil || b.AgeOfData != nil, floatsWithin(a.AgeOfData, b.AgeOfData, ageTolerance))
	ft.count(len(a.Extensions) > 0 || len(b.Extensions) > 0, sameExtensions(a.Extensions, b.Extensions))
	return ft
}

func floatsWithin(a, b *float64, tolerance float64) bool {
	if a == nil || b == nil {
		return false
	}
	return math.Abs(*a-*b) <= tolerance
}

func timesWithin(a, b Point) bool {
	if a.Time == nil || b.Time == nil {
		return false
	}
	return math.Abs(a.Time.Sub(*b.Time).Seconds()) <= timeTolerance
}

func sameLinkSet(a, b []Link) bool {
	if len(a) != len(b) {
		return false
	}
	hrefs := make(map[string]int, len(a))
	for _, l := range a {
		hrefs[l.Href]++
	}
	for _, l := range b {
		hrefs[l.Href]--
		if hrefs[l.Href] < 0 {
			return false
		}
	}
	return true
}

func sameExtensions(a, b Extensions) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

func flattenTrack(t Track) []Point {
	var points []Point
	for _, seg := range t.Segments {
		points = append(points, seg.Points...)
	}
	return points
}
