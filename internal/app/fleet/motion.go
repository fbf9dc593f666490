package fleet

import (
	"context"
	"sync"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/jonboulle/clockwork"
)

const (
	DefaultSteps   = 10
	DefaultCadence = 60 * time.Millisecond
)

// Interpolate returns steps evenly spaced points from 'from' (excluded) to 'to' (included).
// The last point is exactly 'to'.
func Interpolate(from, to app.Position, steps int) []app.Position {
	if steps <= 1 {
		return []app.Position{to}
	}
	dLat := (to.Lat - from.Lat) / float64(steps)
	dLon := (to.Lon - from.Lon) / float64(steps)
	points := make([]app.Position, steps)
	for i := 1; i < steps; i++ {
		points[i-1] = app.Position{
			Lat: from.Lat + dLat*float64(i),
			Lon: from.Lon + dLon*float64(i),
		}
	}
	points[steps-1] = to
	return points
}

type transition struct {
	entity *TrackedEntity
	points []app.Position
	next   int
}

// Driver moves tracked entities along their transitions, one point per tick.
type Driver struct {
	mu      sync.Mutex
	steps   int
	cadence time.Duration
	clock   clockwork.Clock
	active  map[string]*transition
}

// NewDriver - zero values fall back to DefaultSteps / DefaultCadence, a nil clock is the real one.
func NewDriver(steps int, cadence time.Duration, clock clockwork.Clock) *Driver {
	if steps <= 0 {
		steps = DefaultSteps
	}
	if cadence <= 0 {
		cadence = DefaultCadence
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Driver{
		steps:   steps,
		cadence: cadence,
		clock:   clock,
		active:  map[string]*transition{},
	}
}

// Start moves e towards target from its currently rendered position.
// Any transition already running for e.ID is replaced.
func (d *Driver) Start(e *TrackedEntity, target app.Position) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.active[e.ID] = &transition{
		entity: e,
		points: Interpolate(e.Rendered(), target, d.steps),
	}
}

func (d *Driver) Cancel(id string) {
	d.mu.Lock()
	delete(d.active, id)
	d.mu.Unlock()
}

func (d *Driver) CancelAll() {
	d.mu.Lock()
	d.active = map[string]*transition{}
	d.mu.Unlock()
}

func (d *Driver) Active(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.active[id]
	return ok
}

func (d *Driver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.active)
}

// Step advances every transition by one point and returns how many are still running.
func (d *Driver) Step() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	for id, tr := range d.active {
		tr.entity.render(tr.points[tr.next])
		tr.next++
		if tr.next >= len(tr.points) {
			delete(d.active, id)
		}
	}
	return len(d.active)
}

// Run steps every cadence until ctx is done.
func (d *Driver) Run(ctx context.Context) error {
	ticker := d.clock.NewTicker(d.cadence)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			d.Step()
		}
	}
}
