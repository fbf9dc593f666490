package logger

import (
	"context"
	"testing"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/fleet"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestLayerLogsMarkerLifecycle(t *testing.T) {
	log, hook := test.NewNullLogger()
	log.Level = logrus.TraceLevel

	engine := fleet.New(log, New(log), fleet.NewDriver(0, 0, nil))
	ctx := context.Background()
	engine.Reconcile(ctx, app.NewSnapshot(app.SourceMock, []app.FlightState{
		{ID: "mock1", Lat: 1, Lon: 1},
		{ID: "mock2", Lat: 2, Lon: 2},
	}))
	engine.Reconcile(ctx, app.NewSnapshot(app.SourceMock, []app.FlightState{
		{ID: "mock1", Lat: 1.5, Lon: 1},
	}))
	engine.Select("mock1")

	counts := map[string]int{}
	for _, e := range hook.AllEntries() {
		counts[e.Message]++
	}
	if counts["Marker created"] != 2 || counts["Marker removed"] != 1 || counts["Marker focused"] != 1 {
		t.Errorf("unexpected lifecycle events %v", counts)
	}
	if counts["Fit bounds"] != 1 || counts["Marker rotated"] != 1 || counts["Marker details"] != 1 {
		t.Errorf("unexpected render events %v", counts)
	}
}
