package gpx

import "time"

// ClonePoint produces an independent working copy of a point. Editors mutate
// the copy while the pre-edit original is still needed to locate the stored
// element, so no field may alias the source.
func ClonePoint(p Point) Point {
	out := p
	out.Elevation = cloneFloat(p.Elevation)
	out.Time = cloneTimestamp(p.Time)
	out.MagVar = cloneFloat(p.MagVar)
	out.HDOP = cloneFloat(p.HDOP)
	out.VDOP = cloneFloat(p.VDOP)
	out.PDOP = cloneFloat(p.PDOP)
	out.AgeOfData = cloneFloat(p.AgeOfData)
	if p.Links != nil {
		out.Links = append([]Link(nil), p.Links...)
	}
	out.Extensions = cloneExtensions(p.Extensions)
	return out
}

// CloneTrack deep-copies a track including every segment, point and bag.
func CloneTrack(t Track) Track {
	out := t
	out.Extensions = cloneExtensions(t.Extensions)
	if t.Segments != nil {
		out.Segments = make([]Segment, len(t.Segments))
		for i, seg := range t.Segments {
			points := make([]Point, len(seg.Points))
			for j, p := range seg.Points {
				points[j] = ClonePoint(p)
			}
			out.Segments[i] = Segment{Points: points}
		}
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func cloneTimestamp(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneExtensions(e Extensions) Extensions {
	if e == nil {
		return nil
	}
	out := make(Extensions, len(e))
	for k, v := range e {
		out[k] = v
	}
	return out
}
