package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// NoLocation is the area assigned to records without an MSOA.
const NoLocation = "No Location"

// police.uk street CSV column names, plus the derived columns added by classification.
const (
	ColumnCrimeID   = "Crime ID"
	ColumnMonth     = "Month"
	ColumnForce     = "Falls within"
	ColumnLongitude = "Longitude"
	ColumnLatitude  = "Latitude"
	ColumnLocation  = "Location"
	ColumnCrimeType = "Crime type"
	ColumnOutcome   = "Last outcome category"
	ColumnArea      = "MSOA"
	ColumnColour    = "COLOUR"
	ColumnIcon      = "ICON"
)

// RecordRef identifies where a record was read from so derived columns can be
// written back to the same place.
type RecordRef struct {
	Source string
	Row    int64
}

// RawRecord is a single unparsed row from a record source, keyed by column name.
type RawRecord struct {
	Ref    RecordRef
	Fields map[string]string
}

// Incident is one reported crime after parsing.
type Incident struct {
	ID        string   `json:"id"`
	Area      string   `json:"area"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	CrimeType string   `json:"crime_type"`
	Outcome   string   `json:"outcome"`
	Force     string   `json:"force"`
	Location  string   `json:"location"`
	Month     string   `json:"month"`

	// Derived by Classify.
	Colour Colour `json:"colour"`
	Icon   Icon   `json:"icon"`

	Ref RecordRef `json:"-"`
}

// Coordinates returns the record's position and whether both values are usable.
func (i Incident) Coordinates() (lat, lon float64, ok bool) {
	if i.Latitude == nil || i.Longitude == nil {
		return 0, 0, false
	}
	return *i.Latitude, *i.Longitude, true
}

// Clone returns a copy that shares no coordinate storage with i.
func (i Incident) Clone() Incident {
	if i.Latitude != nil {
		lat := *i.Latitude
		i.Latitude = &lat
	}
	if i.Longitude != nil {
		lon := *i.Longitude
		i.Longitude = &lon
	}
	return i
}

// ParseIncident maps a raw row onto an Incident. Missing areas become NoLocation,
// unparseable coordinates are left nil and missing outcomes are empty.
func ParseIncident(raw RawRecord) (Incident, error) {
	if len(raw.Fields) == 0 {
		return Incident{}, fmt.Errorf("parse incident %s:%d: empty record", raw.Ref.Source, raw.Ref.Row)
	}

	field := func(name string) string {
		return strings.TrimSpace(raw.Fields[name])
	}

	area := field(ColumnArea)
	if area == "" {
		area = NoLocation
	}

	inc := Incident{
		ID:        field(ColumnCrimeID),
		Area:      area,
		Latitude:  parseCoordinate(field(ColumnLatitude)),
		Longitude: parseCoordinate(field(ColumnLongitude)),
		CrimeType: field(ColumnCrimeType),
		Outcome:   field(ColumnOutcome),
		Force:     field(ColumnForce),
		Location:  field(ColumnLocation),
		Month:     field(ColumnMonth),
		Colour:    Colour(field(ColumnColour)),
		Icon:      Icon(field(ColumnIcon)),
		Ref:       raw.Ref,
	}
	if inc.ID == "" {
		inc.ID = generateID(inc)
	}
	return inc, nil
}

// parseCoordinate returns nil for empty, non-numeric or non-finite values.
func parseCoordinate(s string) *float64 {
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// generateID produces a deterministic ID for rows without a Crime ID (anti-social
// behaviour reports). Identical rows hash to the same ID.
func generateID(inc Incident) string {
	lat, lon := "", ""
	if inc.Latitude != nil {
		lat = strconv.FormatFloat(*inc.Latitude, 'f', 6, 64)
	}
	if inc.Longitude != nil {
		lon = strconv.FormatFloat(*inc.Longitude, 'f', 6, 64)
	}
	input := strings.Join([]string{inc.Month, inc.Force, lat, lon, inc.Location, inc.CrimeType}, "|")
	hash := sha256.Sum256([]byte(input))
	return "gen-" + hex.EncodeToString(hash[:8])
}

// PeriodLabel formats a "YYYY-MM" month as "Mar, 2024". Returns "" for anything else.
func PeriodLabel(month string) string {
	t, err := time.Parse("2006-01", strings.TrimSpace(month))
	if err != nil {
		return ""
	}
	return t.Format("Jan, 2006")
}
