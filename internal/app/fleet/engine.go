package fleet

import (
	"context"
	"sync"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/metrics"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/sirupsen/logrus"
)

// Marker is the visual handle of one tracked flight.
type Marker interface {
	SetPosition(p app.Position)
	SetHeading(deg float64)
	SetDetails(f app.FlightState)
}

// Layer renders markers, the flight list and the map viewport.
// Implementations must not call back into the Engine from these methods.
type Layer interface {
	AddMarker(f app.FlightState) Marker
	RemoveMarker(id string, m Marker)
	ShowRows(rows []Row)
	FitBounds(bbox tools.Bbox)
	Focus(id string, m Marker)
}

// TrackedEntity pairs a flight id with its marker and last rendered position.
type TrackedEntity struct {
	ID     string
	Marker Marker

	mu       sync.Mutex
	rendered app.Position
	state    app.FlightState
}

func (e *TrackedEntity) Rendered() app.Position {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rendered
}

// State returns the last reconciled record.
func (e *TrackedEntity) State() app.FlightState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *TrackedEntity) render(p app.Position) {
	e.mu.Lock()
	e.rendered = p
	e.mu.Unlock()
	e.Marker.SetPosition(p)
}

func (e *TrackedEntity) setState(f app.FlightState) {
	e.mu.Lock()
	e.state = f
	e.mu.Unlock()
}

// Result counts what one Reconcile did.
type Result struct {
	Created int
	Updated int
	Removed int
	Skipped int
}

// Engine keeps the tracked set in sync with the latest snapshot.
type Engine struct {
	Log    *logrus.Logger
	layer  Layer
	driver *Driver

	mu      sync.RWMutex
	tracked map[string]*TrackedEntity
	last    app.Snapshot
	query   string
}

func New(log *logrus.Logger, layer Layer, driver *Driver) *Engine {
	return &Engine{
		Log:     log,
		layer:   layer,
		driver:  driver,
		tracked: map[string]*TrackedEntity{},
		last:    app.NewSnapshot("", nil),
	}
}

// Reconcile diffs snap against the tracked set and drives the layer.
func (e *Engine) Reconcile(ctx context.Context, snap app.Snapshot) Result {
	res := Result{}

	valid := make([]app.FlightState, 0, len(snap.Flights))
	for idx, f := range snap.Flights {
		if !f.Valid() {
			res.Skipped++
			e.Log.WithContext(ctx).WithFields(logrus.Fields{
				"index": idx,
				"id":    f.ID,
				"lat":   f.Lat,
				"lon":   f.Lon,
			}).Warn("Skipping invalid flight entry")
			continue
		}
		f.Heading = app.NormalizeHeading(f.Heading)
		valid = append(valid, f)
	}
	current := app.NewSnapshot(snap.Source, valid)

	active := make(map[string]struct{}, current.Count)
	for _, f := range current.Flights {
		active[f.ID] = struct{}{}
	}

	e.mu.Lock()
	for id, te := range e.tracked {
		if _, ok := active[id]; ok {
			continue
		}
		e.driver.Cancel(id)
		e.layer.RemoveMarker(id, te.Marker)
		delete(e.tracked, id)
		res.Removed++
	}

	for _, f := range current.Flights {
		if te, ok := e.tracked[f.ID]; ok {
			e.driver.Start(te, f.Position())
			te.Marker.SetHeading(f.Heading)
			te.Marker.SetDetails(f)
			te.setState(f)
			res.Updated++
			continue
		}
		e.tracked[f.ID] = &TrackedEntity{
			ID:       f.ID,
			Marker:   e.layer.AddMarker(f),
			rendered: f.Position(),
			state:    f,
		}
		res.Created++
	}
	e.last = current
	query := e.query
	tracked := len(e.tracked)
	e.mu.Unlock()

	e.layer.ShowRows(Filter(current, query))
	if current.Count >= 2 {
		positions := make([]app.Position, 0, current.Count)
		for _, f := range current.Flights {
			positions = append(positions, f.Position())
		}
		if bounds, ok := tools.BboxOf(positions); ok {
			e.layer.FitBounds(bounds)
		}
	}

	metrics.Reconciliations.Inc()
	metrics.TrackedEntities.Set(float64(tracked))
	metrics.MarkerEvents.WithLabelValues("created").Add(float64(res.Created))
	metrics.MarkerEvents.WithLabelValues("updated").Add(float64(res.Updated))
	metrics.MarkerEvents.WithLabelValues("removed").Add(float64(res.Removed))
	metrics.MarkerEvents.WithLabelValues("skipped").Add(float64(res.Skipped))

	e.Log.WithContext(ctx).WithFields(logrus.Fields{
		"source":  current.Source,
		"created": res.Created,
		"updated": res.Updated,
		"removed": res.Removed,
		"skipped": res.Skipped,
		"tracked": tracked,
	}).Debug("Snapshot reconciled")
	return res
}

// SetQuery changes the list filter and re-derives rows from the last snapshot.
func (e *Engine) SetQuery(q string) []Row {
	e.mu.Lock()
	e.query = q
	last := e.last
	e.mu.Unlock()

	rows := Filter(last, q)
	e.layer.ShowRows(rows)
	return rows
}

func (e *Engine) Query() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.query
}

// Select focuses the live marker of id, false when id is not tracked.
func (e *Engine) Select(id string) bool {
	e.mu.RLock()
	te, ok := e.tracked[id]
	e.mu.RUnlock()
	if !ok {
		return false
	}
	e.layer.Focus(id, te.Marker)
	return true
}

func (e *Engine) Tracked(id string) (*TrackedEntity, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	te, ok := e.tracked[id]
	return te, ok
}

func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.tracked)
}

// Close cancels every transition and removes every marker.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.driver.CancelAll()
	for id, te := range e.tracked {
		e.layer.RemoveMarker(id, te.Marker)
		delete(e.tracked, id)
	}
	metrics.TrackedEntities.Set(0)
}
