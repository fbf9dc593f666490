package internal

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/francois-poidevin/flightmap/config"
	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/fleet"
	"github.com/francois-poidevin/flightmap/internal/app/layers/logger"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

var log *logrus.Logger

func init() {
	log = logrus.New()
	log.Formatter = new(logrus.TextFormatter)
	log.Formatter.(*logrus.TextFormatter).DisableColors = true
	log.Formatter.(*logrus.TextFormatter).DisableTimestamp = true
	log.Level = logrus.TraceLevel
	log.Out = os.Stdout
}

type blockingSource struct {
	release chan struct{}
	calls   int32
	snap    app.Snapshot
	err     error
}

func (b *blockingSource) Snapshot(ctx context.Context) (app.Snapshot, error) {
	atomic.AddInt32(&b.calls, 1)
	if b.release != nil {
		<-b.release
	}
	return b.snap, b.err
}

func newEngine() *fleet.Engine {
	return fleet.New(log, logger.New(log), fleet.NewDriver(0, 0, nil))
}

func TestPollIsNotReentrant(t *testing.T) {
	src := &blockingSource{
		release: make(chan struct{}),
		snap:    app.NewSnapshot(app.SourceMock, []app.FlightState{{ID: "mock0", Lat: 1, Lon: 1}}),
	}
	engine := newEngine()
	p := newPoller(log, src, engine)

	p.start(context.Background())
	for atomic.LoadInt32(&src.calls) == 0 {
		time.Sleep(time.Millisecond)
	}
	if p.poll(context.Background()) {
		t.Error("overlapping poll must be skipped")
	}
	close(src.release)
	p.wait()

	if atomic.LoadInt32(&src.calls) != 1 {
		t.Errorf("expected a single upstream call, got %d", atomic.LoadInt32(&src.calls))
	}
	if engine.Len() != 1 {
		t.Errorf("expected the first poll to be reconciled")
	}
	if !p.poll(context.Background()) {
		t.Error("guard must be released after the poll")
	}
}

func TestFailedPollKeepsState(t *testing.T) {
	engine := newEngine()
	ok := &blockingSource{snap: app.NewSnapshot(app.SourceLive, []app.FlightState{
		{ID: "A", Lat: 1, Lon: 1},
		{ID: "B", Lat: 2, Lon: 2},
	})}
	if !newPoller(log, ok, engine).poll(context.Background()) {
		t.Fatal("poll failed")
	}

	failing := &blockingSource{err: errors.New("connection refused")}
	if newPoller(log, failing, engine).poll(context.Background()) {
		t.Error("failed poll reported success")
	}
	if engine.Len() != 2 {
		t.Errorf("failed poll must leave tracked entities untouched, got %d", engine.Len())
	}
}

func TestTickingPollsImmediatelyThenEveryRefresh(t *testing.T) {
	src := &blockingSource{snap: app.NewSnapshot(app.SourceMock, nil)}
	p := newPoller(log, src, newEngine())
	clock := clockwork.NewFakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ticking(ctx, 3*time.Second, clock, p)
		close(done)
	}()

	waitCalls := func(n int32) {
		deadline := time.Now().Add(2 * time.Second)
		for atomic.LoadInt32(&src.calls) < n {
			if time.Now().After(deadline) {
				t.Fatalf("expected %d polls, got %d", n, atomic.LoadInt32(&src.calls))
			}
			time.Sleep(time.Millisecond)
		}
	}

	waitCalls(1)
	clock.BlockUntil(1)
	clock.Advance(3 * time.Second)
	waitCalls(2)

	cancel()
	<-done
	p.wait()
}

func TestExecute(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write([]byte(`{"count":1,"flights":[{"id":"mock0","lat":1,"lon":2,"heading":45}],"source":"mock"}`))
	}))
	defer srv.Close()

	conf := config.Configuration{}
	conf.Watch.Server = srv.URL
	conf.Watch.Refresh = 1
	conf.Watch.Timeout = 1
	conf.Watch.Ui = UILog

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := Execute(ctx, log, conf); err != nil {
		t.Fatal(err)
	}
	if atomic.LoadInt32(&hits) == 0 {
		t.Error("expected at least one poll")
	}
}

func TestExecuteRejectsUnknownUI(t *testing.T) {
	conf := config.Configuration{}
	conf.Watch.Ui = "gtk"
	if err := Execute(context.Background(), log, conf); err == nil {
		t.Error("expected error for unknown ui")
	}
}
