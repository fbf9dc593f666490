package source

import (
	"context"
	"errors"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/metrics"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMockCount     = 300
	DefaultFallbackCount = 200
)

// Adapter turns whatever the upstream does into a valid, tagged Snapshot.
type Adapter struct {
	Log      *logrus.Logger
	upstream Source
	mock     Source
	fallback Source
}

// NewAdapter - a nil upstream means mock mode.
func NewAdapter(log *logrus.Logger, upstream Source, generator *Generator, mockCount, fallbackCount int) *Adapter {
	if mockCount <= 0 {
		mockCount = DefaultMockCount
	}
	if fallbackCount <= 0 {
		fallbackCount = DefaultFallbackCount
	}
	return &Adapter{
		Log:      log,
		upstream: upstream,
		mock:     generator.Sized(mockCount),
		fallback: generator.Sized(fallbackCount),
	}
}

// Mode tells whether the adapter talks to a live upstream.
func (a *Adapter) Mode() app.Source {
	if a.upstream == nil {
		return app.SourceMock
	}
	return app.SourceLive
}

// FetchSnapshot never fails: upstream trouble is logged and replaced by synthetic data.
func (a *Adapter) FetchSnapshot(ctx context.Context, bbox *tools.Bbox) app.Snapshot {
	if a.upstream == nil {
		return a.synthetic(ctx, app.SourceMock, a.mock, bbox)
	}

	flights, errFetch := a.upstream.Fetch(ctx, bbox)
	if errFetch == nil && len(flights) == 0 {
		errFetch = ErrUpstreamEmpty
	}
	if errFetch == nil {
		snap := app.NewSnapshot(app.SourceLive, flights)
		if snap.Count > 0 {
			return a.record(snap)
		}
		errFetch = ErrUpstreamEmpty
	}

	fields := logrus.Fields{"Error": errFetch}
	var upstreamErr *UpstreamError
	if errors.As(errFetch, &upstreamErr) {
		fields["status"] = upstreamErr.StatusCode
	}
	if errors.Is(errFetch, ErrUpstreamEmpty) {
		metrics.UpstreamFailures.WithLabelValues("empty").Inc()
		a.Log.WithContext(ctx).WithFields(fields).Warn("Upstream returned 0 flights, using fallback set")
	} else {
		metrics.UpstreamFailures.WithLabelValues("unavailable").Inc()
		a.Log.WithContext(ctx).WithFields(fields).Error("Upstream fetch failed, using fallback set")
	}

	return a.synthetic(ctx, app.SourceFallback, a.fallback, bbox)
}

func (a *Adapter) synthetic(ctx context.Context, tag app.Source, src Source, bbox *tools.Bbox) app.Snapshot {
	flights, errFetch := src.Fetch(ctx, bbox)
	if errFetch != nil {
		a.Log.WithContext(ctx).WithFields(logrus.Fields{
			"Error":  errFetch,
			"source": tag,
		}).Error("Synthetic source failed")
	}
	return a.record(app.NewSnapshot(tag, flights))
}

func (a *Adapter) record(snap app.Snapshot) app.Snapshot {
	metrics.SnapshotsServed.WithLabelValues(string(snap.Source)).Inc()
	metrics.SnapshotFlights.Set(float64(snap.Count))
	return snap
}
