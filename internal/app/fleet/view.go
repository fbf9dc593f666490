package fleet

import (
	"strings"

	"github.com/francois-poidevin/flightmap/internal/app"
)

// Row - one line of the flight list
type Row struct {
	ID            string
	Callsign      string
	OriginCountry string
	Lat           float64
	Lon           float64
}

// Label renders "CALLSIGN - Country".
func (r Row) Label() string {
	callsign, country := r.Callsign, r.OriginCountry
	if callsign == "" {
		callsign = "Unknown"
	}
	if country == "" {
		country = "Unknown"
	}
	return callsign + " - " + country
}

// Filter keeps the flights whose callsign or origin country contains query, ignoring case.
// An empty query keeps everything. Order follows the snapshot.
func Filter(snap app.Snapshot, query string) []Row {
	q := strings.ToLower(strings.TrimSpace(query))
	rows := make([]Row, 0, len(snap.Flights))
	for _, f := range snap.Flights {
		if !f.Valid() {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(f.Callsign), q) &&
			!strings.Contains(strings.ToLower(f.OriginCountry), q) {
			continue
		}
		rows = append(rows, Row{
			ID:            f.ID,
			Callsign:      f.Callsign,
			OriginCountry: f.OriginCountry,
			Lat:           f.Lat,
			Lon:           f.Lon,
		})
	}
	return rows
}
