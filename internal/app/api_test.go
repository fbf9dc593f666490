package app

import (
	"math"
	"testing"

	"github.com/goccy/go-json"
)

func TestNewSnapshotDropsInvalidAndDeduplicates(t *testing.T) {
	flights := []FlightState{
		{ID: "A", Lat: 10, Lon: 20, Callsign: "OLD"},
		{ID: "B", Lat: 95, Lon: 0},
		{ID: "", Lat: 1, Lon: 1},
		{ID: "C", Lat: math.NaN(), Lon: 1},
		{ID: "D", Lat: -5, Lon: 30},
		{ID: "A", Lat: 11, Lon: 21, Callsign: "NEW"},
	}

	snap := NewSnapshot(SourceLive, flights)
	if snap.Count != len(snap.Flights) {
		t.Fatalf("count %d != len %d", snap.Count, len(snap.Flights))
	}
	if snap.Count != 2 {
		t.Fatalf("expected 2 flights, got %d", snap.Count)
	}
	if snap.Flights[0].ID != "A" || snap.Flights[0].Callsign != "NEW" || snap.Flights[0].Lat != 11 {
		t.Errorf("expected last write of A in first slot, got %+v", snap.Flights[0])
	}
	if snap.Flights[1].ID != "D" {
		t.Errorf("expected D second, got %s", snap.Flights[1].ID)
	}
}

func TestSnapshotEncodesEmptyFlightsAsArray(t *testing.T) {
	body, err := json.Marshal(NewSnapshot(SourceMock, nil))
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"count":0,"flights":[],"source":"mock"}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestFlightStateOmitsAbsentOptionals(t *testing.T) {
	body, err := json.Marshal(FlightState{ID: "A", Lat: 1, Lon: 2, Heading: 90})
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != `{"id":"A","lat":1,"lon":2,"heading":90}` {
		t.Errorf("unexpected body %s", body)
	}
}

func TestNormalizeHeading(t *testing.T) {
	cases := map[float64]float64{
		0:    0,
		90:   90,
		360:  0,
		370:  10,
		-90:  270,
		-720: 0,
	}
	for in, want := range cases {
		if got := NormalizeHeading(in); got != want {
			t.Errorf("NormalizeHeading(%v) = %v, want %v", in, got, want)
		}
	}
	if got := NormalizeHeading(math.Inf(1)); got != 0 {
		t.Errorf("expected 0 for +Inf, got %v", got)
	}
}

func TestSourceValid(t *testing.T) {
	for _, s := range []Source{SourceLive, SourceMock, SourceFallback} {
		if !s.Valid() {
			t.Errorf("%s should be valid", s)
		}
	}
	if Source("opensky").Valid() {
		t.Error("unknown tag should be invalid")
	}
}

func TestDisplayLabels(t *testing.T) {
	f := FlightState{}
	if f.DisplayCallsign() != "Unknown" || f.DisplayCountry() != "Unknown" {
		t.Error("expected Unknown labels")
	}
}
