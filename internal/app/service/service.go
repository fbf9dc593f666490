package service

import (
	"context"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/metrics"
	"github.com/francois-poidevin/flightmap/internal/app/source"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

// Snapshotter produces the snapshot served for a bbox.
type Snapshotter interface {
	FetchSnapshot(ctx context.Context, bbox *tools.Bbox) app.Snapshot
}

type Service struct {
	Log        *logrus.Logger
	snapshots  Snapshotter
	sinker     app.Sinker
	sinkerType string
	bbox       *tools.Bbox
	clock      clockwork.Clock
}

var _ Snapshotter = (*source.Adapter)(nil)

// New - bbox is the area used when a request does not name one, nil means the whole globe.
func New(log *logrus.Logger, snapshots Snapshotter, sinker app.Sinker, sinkerType string, bbox *tools.Bbox) *Service {
	return &Service{
		Log:        log,
		snapshots:  snapshots,
		sinker:     sinker,
		sinkerType: sinkerType,
		bbox:       bbox,
		clock:      clockwork.NewRealClock(),
	}
}

// Flights returns the current snapshot and hands it to the sinker.
func (s *Service) Flights(ctx context.Context, bbox *tools.Bbox) app.Snapshot {
	if bbox == nil {
		bbox = s.bbox
	}
	snap := s.snapshots.FetchSnapshot(ctx, bbox)

	if s.sinker != nil {
		if errSink := s.sinker.Sink(ctx, s.clock.Now(), snap); errSink != nil {
			metrics.SinkErrors.WithLabelValues(s.sinkerType).Inc()
			s.Log.WithContext(ctx).WithFields(logrus.Fields{
				"Error":  errSink,
				"sinker": s.sinkerType,
			}).Error("Unable to sink snapshot")
		}
	}
	return snap
}
