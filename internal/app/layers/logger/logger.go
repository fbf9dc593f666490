package logger

import (
	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/fleet"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/sirupsen/logrus"
)

var _ fleet.Layer = (*Layer)(nil)

// Layer renders the fleet as log lines
type Layer struct {
	Log *logrus.Logger
}

func New(log *logrus.Logger) *Layer {
	return &Layer{Log: log}
}

type marker struct {
	log *logrus.Logger
	id  string
}

func (l *Layer) AddMarker(f app.FlightState) fleet.Marker {
	l.Log.WithFields(logrus.Fields{
		"id":       f.ID,
		"callsign": f.DisplayCallsign(),
		"country":  f.DisplayCountry(),
		"lat":      f.Lat,
		"lon":      f.Lon,
		"heading":  f.Heading,
	}).Info("Marker created")
	return &marker{log: l.Log, id: f.ID}
}

func (l *Layer) RemoveMarker(id string, m fleet.Marker) {
	l.Log.WithFields(logrus.Fields{
		"id": id,
	}).Info("Marker removed")
}

func (l *Layer) ShowRows(rows []fleet.Row) {
	l.Log.WithFields(logrus.Fields{
		"rows": len(rows),
	}).Debug("Flight list refreshed")
}

func (l *Layer) FitBounds(bbox tools.Bbox) {
	l.Log.WithFields(logrus.Fields{
		"bbox": bbox.String(),
	}).Debug("Fit bounds")
}

func (l *Layer) Focus(id string, m fleet.Marker) {
	l.Log.WithFields(logrus.Fields{
		"id": id,
	}).Info("Marker focused")
}

func (m *marker) SetPosition(p app.Position) {
	m.log.WithFields(logrus.Fields{
		"id":  m.id,
		"lat": p.Lat,
		"lon": p.Lon,
	}).Trace("Marker moved")
}

func (m *marker) SetHeading(deg float64) {
	m.log.WithFields(logrus.Fields{
		"id":      m.id,
		"heading": deg,
	}).Trace("Marker rotated")
}

func (m *marker) SetDetails(f app.FlightState) {
	fields := logrus.Fields{
		"id":       m.id,
		"callsign": f.DisplayCallsign(),
	}
	if f.Altitude != nil {
		fields["altitude"] = *f.Altitude
	}
	if f.Velocity != nil {
		fields["velocity"] = *f.Velocity
	}
	m.log.WithFields(fields).Trace("Marker details")
}
