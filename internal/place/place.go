package place

import (
	"errors"
	"strings"
	"time"
)

// Validation and lookup failures surfaced by the catalog.
var (
	ErrInvalidPlaceID   = errors.New("place id empty or already in use")
	ErrInvalidName      = errors.New("place name empty")
	ErrInvalidLatitude  = errors.New("latitude out of range")
	ErrInvalidLongitude = errors.New("longitude out of range")
	ErrInvalidRadius    = errors.New("radius must be positive")
	ErrPlaceNotFound    = errors.New("place not found")
)

// Coordinate is a latitude/longitude pair in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Place is a named circular geofence used to label stationary visits.
// PreviousIDs carries the IDs of places this one absorbed through merges or
// renames, so old day files keep resolving.
type Place struct {
	PlaceID              string     `json:"place_id"`
	Name                 string     `json:"name"`
	Center               Coordinate `json:"center"`
	Radius               float64    `json:"radius"`
	StreetAddress        string     `json:"street_address,omitempty"`
	SecondsFromGMT       int        `json:"seconds_from_gmt,omitempty"`
	LastSaved            string     `json:"last_saved,omitempty"`
	FacebookPlaceID      string     `json:"facebook_place_id,omitempty"`
	MapboxPlaceID        string     `json:"mapbox_place_id,omitempty"`
	FoursquareVenueID    string     `json:"foursquare_venue_id,omitempty"`
	FoursquareCategoryID string     `json:"foursquare_category_id,omitempty"`
	PreviousIDs          []string   `json:"previous_ids,omitempty"`
	LastVisited          *time.Time `json:"last_visited,omitempty"`
	IsFavorite           bool       `json:"is_favorite,omitempty"`
	CustomIcon           string     `json:"custom_icon,omitempty"`
	Elevation            *float64   `json:"elevation,omitempty"`
}

// HasID reports whether the given id is this place's current or a historical id.
func (p *Place) HasID(id string) bool {
	if p.PlaceID == id {
		return true
	}
	for _, prev := range p.PreviousIDs {
		if prev == id {
			return true
		}
	}
	return false
}

func validate(p Place) error {
	if strings.TrimSpace(p.PlaceID) == "" {
		return ErrInvalidPlaceID
	}
	if strings.TrimSpace(p.Name) == "" {
		return ErrInvalidName
	}
	if p.Center.Latitude < -90 || p.Center.Latitude > 90 {
		return ErrInvalidLatitude
	}
	if p.Center.Longitude < -180 || p.Center.Longitude > 180 {
		return ErrInvalidLongitude
	}
	if p.Radius <= 0 {
		return ErrInvalidRadius
	}
	return nil
}
