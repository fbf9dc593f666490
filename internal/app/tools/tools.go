package tools

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/francois-poidevin/flightmap/internal/app"
)

// Bbox - a bounding box structure
type Bbox struct {
	LatSW float64 `json:"latSW"`
	LonSW float64 `json:"lonSW"`
	LatNE float64 `json:"latNE"`
	LonNE float64 `json:"lonNE"`
}

// World covers the whole globe.
var World = Bbox{LatSW: -90, LonSW: -180, LatNE: 90, LonNE: 180}

// GetBbox parses a 'lat,lon^lat,lon' (SW^NE) string.
func GetBbox(data string) (Bbox, error) {
	sWnE := strings.Split(data, "^")
	result := Bbox{}
	if len(sWnE) != 2 {
		return result, errors.New("Bounding Box malformed - need ^ for separating SW and NE coordinate")
	}

	for idx, latlonRec := range sWnE {
		latlon := strings.Split(latlonRec, ",")
		if len(latlon) != 2 {
			return result, errors.New("Bounding Box malformed - need , for separating lat and lon coordinate")
		}
		lat, errLat := strconv.ParseFloat(strings.TrimSpace(latlon[0]), 64)
		if errLat != nil {
			return result, errLat
		}
		lon, errLon := strconv.ParseFloat(strings.TrimSpace(latlon[1]), 64)
		if errLon != nil {
			return result, errLon
		}
		if !(app.Position{Lat: lat, Lon: lon}).Valid() {
			return result, fmt.Errorf("Bounding Box malformed - coordinate out of range (%f,%f)", lat, lon)
		}
		if idx == 0 {
			result.LatSW = lat
			result.LonSW = lon
		} else {

			result.LatNE = lat
			result.LonNE = lon
		}
	}
	if result.LatSW > result.LatNE || result.LonSW > result.LonNE {
		return result, errors.New("Bounding Box malformed - SW corner must be south-west of NE corner")
	}
	return result, nil
}

// String formats the box the way GetBbox reads it.
func (b Bbox) String() string {
	return strconv.FormatFloat(b.LatSW, 'f', -1, 64) + "," + strconv.FormatFloat(b.LonSW, 'f', -1, 64) +
		"^" + strconv.FormatFloat(b.LatNE, 'f', -1, 64) + "," + strconv.FormatFloat(b.LonNE, 'f', -1, 64)
}

// Contains reports whether p lies inside the box, edges included.
func (b Bbox) Contains(p app.Position) bool {
	return p.Lat >= b.LatSW && p.Lat <= b.LatNE && p.Lon >= b.LonSW && p.Lon <= b.LonNE
}

// Center returns the middle point of the box.
func (b Bbox) Center() app.Position {
	return app.Position{Lat: (b.LatSW + b.LatNE) / 2, Lon: (b.LonSW + b.LonNE) / 2}
}

// BboxOf returns the smallest box holding every position. ok is false for an empty input.
func BboxOf(positions []app.Position) (Bbox, bool) {
	if len(positions) == 0 {
		return Bbox{}, false
	}
	result := Bbox{LatSW: math.Inf(1), LonSW: math.Inf(1), LatNE: math.Inf(-1), LonNE: math.Inf(-1)}
	for _, p := range positions {
		result.LatSW = math.Min(result.LatSW, p.Lat)
		result.LonSW = math.Min(result.LonSW, p.Lon)
		result.LatNE = math.Max(result.LatNE, p.Lat)
		result.LonNE = math.Max(result.LonNE, p.Lon)
	}
	return result, true
}

// PointToWKT renders a position as a WKT point (lon lat order).
func PointToWKT(p app.Position) string {
	return "POINT(" + fmt.Sprintf("%f", p.Lon) + " " + fmt.Sprintf("%f", p.Lat) + ")"
}
