package source

import (
	"fmt"
	"math"
	"strings"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/goccy/go-json"
)

// OpenSky state vector field positions
const (
	idxICAO24 = iota
	idxCallsign
	idxOriginCountry
	idxTimePosition
	idxLastContact
	idxLongitude
	idxLatitude
	idxBaroAltitude
	idxOnGround
	idxVelocity
	idxTrueTrack
	idxVerticalRate

	minStateFields = idxLatitude + 1
)

//statesResponse - body of GET /states/all
type statesResponse struct {
	Time   int64             `json:"time"`
	States []json.RawMessage `json:"states"`
}

// mapStates turns raw state vectors into flights. Records failing validation are
// returned as MalformedRecordError values alongside the valid flights.
func mapStates(raw []json.RawMessage) ([]app.FlightState, []error) {
	flights := make([]app.FlightState, 0, len(raw))
	var malformed []error
	for idx, r := range raw {
		var fields []interface{}
		if err := json.Unmarshal(r, &fields); err != nil {
			malformed = append(malformed, &MalformedRecordError{Index: idx, Reason: "not an array", Shape: shapeOf(r)})
			continue
		}
		flight, err := mapState(idx, fields)
		if err != nil {
			malformed = append(malformed, err)
			continue
		}
		flights = append(flights, flight)
	}
	return flights, malformed
}

func mapState(idx int, s []interface{}) (app.FlightState, error) {
	if len(s) < minStateFields {
		return app.FlightState{}, &MalformedRecordError{Index: idx, Reason: fmt.Sprintf("expected at least %d fields", minStateFields), Shape: describe(s)}
	}
	id, ok := s[idxICAO24].(string)
	id = strings.TrimSpace(id)
	if !ok || id == "" {
		return app.FlightState{}, &MalformedRecordError{Index: idx, Reason: "missing icao24", Shape: describe(s)}
	}
	lat, okLat := number(s, idxLatitude)
	lon, okLon := number(s, idxLongitude)
	if !okLat || !okLon {
		return app.FlightState{}, &MalformedRecordError{Index: idx, Reason: "missing position", Shape: describe(s)}
	}
	if !(app.Position{Lat: lat, Lon: lon}).Valid() {
		return app.FlightState{}, &MalformedRecordError{Index: idx, Reason: fmt.Sprintf("position out of range (%f,%f)", lat, lon), Shape: describe(s)}
	}

	flight := app.FlightState{
		ID:            id,
		Callsign:      text(s, idxCallsign),
		OriginCountry: text(s, idxOriginCountry),
		Lat:           lat,
		Lon:           lon,
	}
	if h, ok := number(s, idxTrueTrack); ok {
		flight.Heading = app.NormalizeHeading(h)
	}
	if v, ok := number(s, idxBaroAltitude); ok {
		flight.Altitude = &v
	}
	if v, ok := number(s, idxVelocity); ok {
		flight.Velocity = &v
	}
	if v, ok := number(s, idxVerticalRate); ok {
		flight.VerticalRate = &v
	}
	if v, ok := number(s, idxLastContact); ok {
		lc := int64(v)
		flight.LastContact = &lc
	}
	if idxOnGround < len(s) {
		if b, ok := s[idxOnGround].(bool); ok {
			flight.OnGround = &b
		}
	}
	return flight, nil
}

// number reads a finite numeric field; absent, null or wrong-typed gives ok=false.
func number(s []interface{}, i int) (float64, bool) {
	if i >= len(s) {
		return 0, false
	}
	v, ok := s[i].(float64)
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

func text(s []interface{}, i int) string {
	if i >= len(s) {
		return ""
	}
	v, _ := s[i].(string)
	return strings.TrimSpace(v)
}

// describe summarizes a record as its field types, e.g. [string,null,number].
func describe(s []interface{}) string {
	kinds := make([]string, len(s))
	for i, v := range s {
		switch v.(type) {
		case nil:
			kinds[i] = "null"
		case string:
			kinds[i] = "string"
		case float64:
			kinds[i] = "number"
		case bool:
			kinds[i] = "bool"
		case []interface{}:
			kinds[i] = "array"
		default:
			kinds[i] = "object"
		}
	}
	return "[" + strings.Join(kinds, ",") + "]"
}

func shapeOf(r json.RawMessage) string {
	trimmed := strings.TrimSpace(string(r))
	if trimmed == "" {
		return "empty"
	}
	switch trimmed[0] {
	case '{':
		return "object"
	case '"':
		return "string"
	case 'n':
		return "null"
	case 't', 'f':
		return "bool"
	}
	return "number"
}
