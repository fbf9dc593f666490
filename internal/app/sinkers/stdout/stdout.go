package stdout

import (
	"context"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"
)

type StdOutSinker struct {
	Log *logrus.Logger
}

func New(log *logrus.Logger) app.Sinker {
	return &StdOutSinker{Log: log}
}

func (s *StdOutSinker) Init(ctx context.Context, params interface{}) error {
	//Nothing to do here
	return nil
}

func (s *StdOutSinker) Sink(ctx context.Context, t time.Time, snap app.Snapshot) error {
	s.Log.WithContext(ctx).WithFields(logrus.Fields{
		"number of Flights": snap.Count,
		"source":            snap.Source,
		"time":              t.UTC().Format(time.RFC3339),
	}).Info("Snapshot served")

	if !s.Log.IsLevelEnabled(logrus.DebugLevel) {
		return nil
	}
	Marshal, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	s.Log.WithContext(ctx).Debug(" Raw Datas" + string(Marshal))
	return nil
}

func (s *StdOutSinker) Close() error {
	return nil
}
