package internal

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/francois-poidevin/flightmap/config"
	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/client"
	"github.com/francois-poidevin/flightmap/internal/app/fleet"
	"github.com/francois-poidevin/flightmap/internal/app/layers/logger"
	"github.com/francois-poidevin/flightmap/internal/app/layers/tui"
	"github.com/francois-poidevin/flightmap/internal/app/metrics"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
)

const (
	UILog = "log"
	UITUI = "tui"

	defaultRefresh = 3 * time.Second
)

// SnapshotSource is what the poller asks for a new snapshot.
type SnapshotSource interface {
	Snapshot(ctx context.Context) (app.Snapshot, error)
}

//Execute - start the watch worker
func Execute(ctx context.Context,
	log *logrus.Logger,
	conf config.Configuration) error {

	log.WithContext(ctx).WithFields(logrus.Fields{
		"server":            conf.Watch.Server,
		"refreshTime (sec)": conf.Watch.Refresh,
		"steps":             conf.Watch.Steps,
		"cadence (ms)":      conf.Watch.Cadence,
		"ui":                conf.Watch.Ui,
		"query":             conf.Watch.Query,
	}).Info("START with Configuration params: ")

	refresh := time.Duration(conf.Watch.Refresh) * time.Second
	if refresh <= 0 {
		refresh = defaultRefresh
	}

	c := client.New(log, conf.Watch.Server, time.Duration(conf.Watch.Timeout)*time.Second)
	driver := fleet.NewDriver(conf.Watch.Steps, time.Duration(conf.Watch.Cadence)*time.Millisecond, nil)

	var (
		engine   *fleet.Engine
		tuiLayer *tui.Layer
	)
	switch strings.ToLower(conf.Watch.Ui) {
	case UILog, "":
		log.WithContext(ctx).Info("Initiate log layer")
		engine = fleet.New(log, logger.New(log), driver)
	case UITUI:
		log.WithContext(ctx).Info("Initiate terminal UI layer")
		tuiLayer = tui.New(0)
		prevOut := log.Out
		log.Out = tuiLayer.LogWriter()
		defer func() {
			log.Out = prevOut
		}()
		engine = fleet.New(log, tuiLayer, driver)
		tuiLayer.Bind(engine)
	default:
		return errors.New("Wrong ui specified")
	}
	engine.SetQuery(conf.Watch.Query)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go driver.Run(ctx)

	uiDone := make(chan error, 1)
	if tuiLayer != nil {
		go func() {
			uiDone <- tuiLayer.Run(ctx)
			cancel()
		}()
	}

	p := newPoller(log, c, engine)
	ticking(ctx, refresh, clockwork.NewRealClock(), p)
	p.wait()
	engine.Close()

	if tuiLayer != nil {
		return <-uiDone
	}
	return nil
}

type poller struct {
	log    *logrus.Logger
	source SnapshotSource
	engine *fleet.Engine

	inFlight int32
	wg       sync.WaitGroup
}

func newPoller(log *logrus.Logger, source SnapshotSource, engine *fleet.Engine) *poller {
	return &poller{log: log, source: source, engine: engine}
}

// poll reconciles one snapshot. It returns false when the poll was skipped or failed.
func (p *poller) poll(ctx context.Context) bool {
	if !atomic.CompareAndSwapInt32(&p.inFlight, 0, 1) {
		metrics.PollFailures.WithLabelValues("busy").Inc()
		p.log.WithContext(ctx).Debug("Previous poll still running, skipping tick")
		return false
	}
	defer atomic.StoreInt32(&p.inFlight, 0)

	snap, errSnap := p.source.Snapshot(ctx)
	if errSnap != nil {
		metrics.PollFailures.WithLabelValues("fetch").Inc()
		p.log.WithContext(ctx).WithFields(logrus.Fields{
			"Error": errSnap,
		}).Error("Unable to get snapshot")
		return false
	}
	p.engine.Reconcile(ctx, snap)
	return true
}

func (p *poller) start(ctx context.Context) {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		p.poll(ctx)
	}()
}

func (p *poller) wait() {
	p.wg.Wait()
}

// ticking polls right away, then every refresh until ctx is done.
func ticking(ctx context.Context, refresh time.Duration, clock clockwork.Clock, p *poller) {
	ticker := clock.NewTicker(refresh)
	defer ticker.Stop()

	p.start(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.start(ctx)
		}
	}
}
