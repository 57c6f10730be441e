package gpx

import (
	"encoding/xml"
	"sort"
	"strings"
	"time"
)

// TrackType tags a track with the motion activity that produced it.
type TrackType string

const (
	TrackWalking    TrackType = "walking"
	TrackRunning    TrackType = "running"
	TrackCycling    TrackType = "cycling"
	TrackAutomotive TrackType = "automotive"
	TrackUnknown    TrackType = "unknown"
)

// Extension keys written by the location pipeline. The bag is open: callers
// must tolerate unknown keys round-tripping unchanged.
const (
	ExtSteps                = "Steps"
	ExtHorizontalPrecision  = "HorizontalPrecision"
	ExtVerticalPrecision    = "VerticalPrecision"
	ExtActivity             = "Activity"
	ExtActivityFlags        = "ActivityFlags"
	ExtPlaceID              = "PlaceId"
	ExtPlaceName            = "PlaceName"
	ExtAddress              = "Address"
	ExtFacebookPlaceID      = "FacebookPlaceId"
	ExtMapboxPlaceID        = "MapboxPlaceId"
	ExtFoursquareVenueID    = "FoursquareVenueId"
	ExtFoursquareCategoryID = "FoursquareCategoryId"
	ExtDebug                = "Debug"
)

// Extensions is the open string-keyed metadata bag carried by points and
// tracks. Keys are encoded as child elements of <extensions>; element order is
// not significant and unknown keys are preserved verbatim.
type Extensions map[string]string

func (e Extensions) MarshalXML(enc *xml.Encoder, start xml.StartElement) error {
	if len(e) == 0 {
		return nil
	}
	if err := enc.EncodeToken(start); err != nil {
		return err
	}
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		el := xml.StartElement{Name: xml.Name{Local: k}}
		if err := enc.EncodeElement(e[k], el); err != nil {
			return err
		}
	}
	return enc.EncodeToken(start.End())
}

func (e *Extensions) UnmarshalXML(dec *xml.Decoder, start xml.StartElement) error {
	m := Extensions{}
	for {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			var v string
			if err := dec.DecodeElement(&v, &t); err != nil {
				return err
			}
			m[t.Name.Local] = strings.TrimSpace(v)
		case xml.EndElement:
			if len(m) > 0 {
				*e = m
			}
			return nil
		}
	}
}

// Link is a secondary reference attached to a point (photo, venue URL).
type Link struct {
	Href string `xml:"href,attr" json:"href"`
	Text string `xml:"text,omitempty" json:"text,omitempty"`
}

// Point is a single geographic fix. Waypoints and track points share the same
// attribute set; only the containing element decides the kind.
type Point struct {
	Lat       float64    `xml:"lat,attr" json:"lat"`
	Lon       float64    `xml:"lon,attr" json:"lon"`
	Elevation *float64   `xml:"ele,omitempty" json:"ele,omitempty"`
	Time      *time.Time `xml:"time,omitempty" json:"time,omitempty"`
	MagVar    *float64   `xml:"magvar,omitempty" json:"magvar,omitempty"`
	Name      string     `xml:"name,omitempty" json:"name,omitempty"`
	Desc      string     `xml:"desc,omitempty" json:"desc,omitempty"`
	Links     []Link     `xml:"link,omitempty" json:"links,omitempty"`
	HDOP      *float64   `xml:"hdop,omitempty" json:"hdop,omitempty"`
	VDOP      *float64   `xml:"vdop,omitempty" json:"vdop,omitempty"`
	PDOP      *float64   `xml:"pdop,omitempty" json:"pdop,omitempty"`
	AgeOfData *float64   `xml:"ageofdgpsdata,omitempty" json:"ageofdgpsdata,omitempty"`

	Extensions Extensions `xml:"extensions,omitempty" json:"extensions,omitempty"`
}

// Segment is an ordered, non-empty run of track points.
type Segment struct {
	Points []Point `xml:"trkpt" json:"points"`
}

// Track is an ordered sequence of segments tagged with a motion type.
type Track struct {
	Name       string     `xml:"name,omitempty" json:"name,omitempty"`
	Desc       string     `xml:"desc,omitempty" json:"desc,omitempty"`
	Type       TrackType  `xml:"type,omitempty" json:"type,omitempty"`
	Segments   []Segment  `xml:"trkseg" json:"segments"`
	Extensions Extensions `xml:"extensions,omitempty" json:"extensions,omitempty"`
}

// DayFile is the persisted timeline for one calendar date: a set of waypoints
// (visits) plus an ordered list of tracks.
type DayFile struct {
	XMLName xml.Name `xml:"gpx"`
	Version string   `xml:"version,attr"`
	Creator string   `xml:"creator,attr"`
	XMLNS   string   `xml:"xmlns,attr,omitempty"`

	Waypoints []Point `xml:"wpt"`
	Tracks    []Track `xml:"trk"`
}

// NewDayFile returns an empty day document with standard headers.
func NewDayFile() *DayFile {
	return &DayFile{
		Version: "1.1",
		Creator: "life2gpx",
		XMLNS:   "http://www.topografix.com/GPX/1/1",
	}
}

// IsEmpty reports whether the day holds no recorded points at all.
func (d *DayFile) IsEmpty() bool {
	return len(d.Waypoints) == 0 && len(d.Tracks) == 0
}

// FlattenPoints returns every waypoint and track point of the day in document
// order: waypoints first, then all segments of all tracks.
func (d *DayFile) FlattenPoints() []Point {
	var points []Point
	points = append(points, d.Waypoints...)
	for _, trk := range d.Tracks {
		for _, seg := range trk.Segments {
			points = append(points, seg.Points...)
		}
	}
	return points
}

// LatestPoint returns the most recent timed point of the day. Untimed points
// never win.
func (d *DayFile) LatestPoint() (Point, bool) {
	var latest Point
	found := false
	for _, p := range d.FlattenPoints() {
		if p.Time == nil {
			continue
		}
		if !found || p.Time.After(*latest.Time) {
			latest = p
			found = true
		}
	}
	return latest, found
}

// StartTime returns the time of the first point of the first segment.
func (t *Track) StartTime() *time.Time {
	for _, seg := range t.Segments {
		for _, p := range seg.Points {
			if p.Time != nil {
				return p.Time
			}
		}
	}
	return nil
}

// EndTime returns the time of the last timed point of the track.
func (t *Track) EndTime() *time.Time {
	var end *time.Time
	for _, seg := range t.Segments {
		for i := range seg.Points {
			if seg.Points[i].Time != nil {
				end = seg.Points[i].Time
			}
		}
	}
	return end
}
