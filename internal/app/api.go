package app

import (
	"context"
	"math"
	"time"
)

// Source - provenance tag of a Snapshot
type Source string

const (
	SourceLive     Source = "live"
	SourceMock     Source = "mock"
	SourceFallback Source = "fallback"
)

// Valid reports whether s is one of the three known tags.
func (s Source) Valid() bool {
	switch s {
	case SourceLive, SourceMock, SourceFallback:
		return true
	}
	return false
}

// Position - a WGS84 lat/lon pair in decimal degrees
type Position struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Valid reports whether the position is finite and inside lat [-90,90], lon [-180,180].
func (p Position) Valid() bool {
	if math.IsNaN(p.Lat) || math.IsNaN(p.Lon) || math.IsInf(p.Lat, 0) || math.IsInf(p.Lon, 0) {
		return false
	}
	return p.Lat >= -90 && p.Lat <= 90 && p.Lon >= -180 && p.Lon <= 180
}

//FlightState - canonical per-aircraft record, one per tracked entity
type FlightState struct {
	ID            string   `json:"id"`
	Callsign      string   `json:"callsign,omitempty"`
	OriginCountry string   `json:"originCountry,omitempty"`
	Lat           float64  `json:"lat"`
	Lon           float64  `json:"lon"`
	Heading       float64  `json:"heading"`                //degrees [0,360)
	Velocity      *float64 `json:"velocity,omitempty"`     //m/s
	Altitude      *float64 `json:"altitude,omitempty"`     //meters
	OnGround      *bool    `json:"onGround,omitempty"`     //
	VerticalRate  *float64 `json:"verticalRate,omitempty"` //m/s
	LastContact   *int64   `json:"lastContact,omitempty"`  //unix seconds
}

// Position returns the lat/lon pair of the flight.
func (f FlightState) Position() Position {
	return Position{Lat: f.Lat, Lon: f.Lon}
}

// Valid reports whether the flight has an id and a resolvable position.
func (f FlightState) Valid() bool {
	return f.ID != "" && f.Position().Valid()
}

// DisplayCallsign returns the callsign or "Unknown".
func (f FlightState) DisplayCallsign() string {
	if f.Callsign == "" {
		return "Unknown"
	}
	return f.Callsign
}

// DisplayCountry returns the origin country or "Unknown".
func (f FlightState) DisplayCountry() string {
	if f.OriginCountry == "" {
		return "Unknown"
	}
	return f.OriginCountry
}

// NormalizeHeading folds any angle into [0,360).
func NormalizeHeading(deg float64) float64 {
	if math.IsNaN(deg) || math.IsInf(deg, 0) {
		return 0
	}
	h := math.Mod(deg, 360)
	if h < 0 {
		h += 360
	}
	if h >= 360 {
		h = 0
	}
	return h
}

//Snapshot - one polled batch of flight states tagged with its provenance
type Snapshot struct {
	Count   int           `json:"count"`
	Flights []FlightState `json:"flights"`
	Source  Source        `json:"source,omitempty"`
}

// NewSnapshot builds a Snapshot holding only valid flights. Duplicate ids keep the
// last record at the position of the first appearance.
func NewSnapshot(source Source, flights []FlightState) Snapshot {
	result := make([]FlightState, 0, len(flights))
	index := make(map[string]int, len(flights))
	for _, f := range flights {
		if !f.Valid() {
			continue
		}
		if i, ok := index[f.ID]; ok {
			result[i] = f
			continue
		}
		index[f.ID] = len(result)
		result = append(result, f)
	}
	return Snapshot{
		Count:   len(result),
		Flights: result,
		Source:  source,
	}
}

// MSKMH converts m/s to km/h
const MSKMH = 3.6

// Sinker receives every snapshot served by the API
type Sinker interface {
	Init(ctx context.Context, params interface{}) error
	Sink(ctx context.Context, t time.Time, snap Snapshot) error
	Close() error
}
