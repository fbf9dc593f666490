package source

import (
	"context"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/jonboulle/clockwork"
)

const (
	// MockIDPrefix marks synthetic ids; real icao24 codes are 6 hex digits.
	MockIDPrefix = "mock"

	metersPerDegree = 111320.0
	maxVelocity     = 300   // m/s
	maxAltitude     = 12000 // meters
)

var mockCountries = []string{"USA", "France", "India", "UAE", "Brazil", "Thailand", "Spain"}

// GeneratorConfig - synthetic fleet settings
type GeneratorConfig struct {
	Band     tools.Bbox
	Stateful bool
	Seed     int64
}

// Generator fabricates flights with the same shape as live ones. In stateful mode the
// fleet is kept between calls and moved along its heading by velocity x elapsed time.
type Generator struct {
	conf  GeneratorConfig
	clock clockwork.Clock

	mu    sync.Mutex
	rnd   *rand.Rand
	fleet []app.FlightState
	last  time.Time
}

// NewGenerator - a zero Band means the whole world, a zero Seed a time based one.
func NewGenerator(conf GeneratorConfig, clock clockwork.Clock) *Generator {
	if conf.Band == (tools.Bbox{}) {
		conf.Band = tools.World
	}
	if conf.Seed == 0 {
		conf.Seed = time.Now().UnixNano()
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Generator{
		conf:  conf,
		clock: clock,
		rnd:   rand.New(rand.NewSource(conf.Seed)),
	}
}

// Sized exposes the generator as a Source producing n flights per call.
func (g *Generator) Sized(n int) Source {
	return &sizedGenerator{g: g, n: n}
}

type sizedGenerator struct {
	g *Generator
	n int
}

func (s *sizedGenerator) Fetch(ctx context.Context, bbox *tools.Bbox) ([]app.FlightState, error) {
	return s.g.Generate(s.n, bbox), nil
}

// Generate returns n synthetic flights, restricted to bbox when given.
func (g *Generator) Generate(n int, bbox *tools.Bbox) []app.FlightState {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.conf.Stateful {
		area := g.conf.Band
		if bbox != nil {
			area = intersect(g.conf.Band, *bbox)
		}
		flights := make([]app.FlightState, 0, n)
		for i := 0; i < n; i++ {
			flights = append(flights, g.newFlight(i, area))
		}
		return flights
	}

	g.advance()
	for len(g.fleet) < n {
		g.fleet = append(g.fleet, g.newFlight(len(g.fleet), g.conf.Band))
	}
	flights := make([]app.FlightState, 0, n)
	for _, f := range g.fleet[:n] {
		if bbox != nil && !bbox.Contains(f.Position()) {
			continue
		}
		flights = append(flights, f)
	}
	return flights
}

func (g *Generator) newFlight(i int, area tools.Bbox) app.FlightState {
	velocity := math.Round(g.rnd.Float64() * maxVelocity)
	altitude := math.Round(g.rnd.Float64() * maxAltitude)
	lastContact := g.clock.Now().Unix()
	return app.FlightState{
		ID:            MockIDPrefix + strconv.Itoa(i),
		Callsign:      "MOCK" + strconv.Itoa(100+i),
		OriginCountry: mockCountries[g.rnd.Intn(len(mockCountries))],
		Lat:           round6(area.LatSW + g.rnd.Float64()*(area.LatNE-area.LatSW)),
		Lon:           round6(area.LonSW + g.rnd.Float64()*(area.LonNE-area.LonSW)),
		Heading:       float64(g.rnd.Intn(360)),
		Velocity:      &velocity,
		Altitude:      &altitude,
		LastContact:   &lastContact,
	}
}

// advance moves the retained fleet by the time elapsed since the previous call.
func (g *Generator) advance() {
	now := g.clock.Now()
	if g.last.IsZero() {
		g.last = now
		return
	}
	dt := now.Sub(g.last).Seconds()
	g.last = now
	if dt <= 0 {
		return
	}
	lastContact := now.Unix()
	for i := range g.fleet {
		f := &g.fleet[i]
		if f.Velocity != nil {
			g.move(f, *f.Velocity*dt)
		}
		f.LastContact = &lastContact
	}
}

func (g *Generator) move(f *app.FlightState, meters float64) {
	band := g.conf.Band
	rad := f.Heading * math.Pi / 180
	lat := f.Lat + meters*math.Cos(rad)/metersPerDegree
	cosLat := math.Cos(f.Lat * math.Pi / 180)
	if cosLat < 0.01 {
		cosLat = 0.01
	}
	lon := f.Lon + meters*math.Sin(rad)/(metersPerDegree*cosLat)
	heading := f.Heading

	if lat > band.LatNE {
		lat = 2*band.LatNE - lat
		heading = 180 - heading
	} else if lat < band.LatSW {
		lat = 2*band.LatSW - lat
		heading = 180 - heading
	}

	if band.LonSW == -180 && band.LonNE == 180 {
		for lon > 180 {
			lon -= 360
		}
		for lon < -180 {
			lon += 360
		}
	} else if lon > band.LonNE {
		lon = 2*band.LonNE - lon
		heading = 360 - heading
	} else if lon < band.LonSW {
		lon = 2*band.LonSW - lon
		heading = 360 - heading
	}

	f.Lat = round6(clamp(lat, band.LatSW, band.LatNE))
	f.Lon = round6(clamp(lon, band.LonSW, band.LonNE))
	f.Heading = app.NormalizeHeading(heading)
}

func intersect(a, b tools.Bbox) tools.Bbox {
	r := tools.Bbox{
		LatSW: math.Max(a.LatSW, b.LatSW),
		LonSW: math.Max(a.LonSW, b.LonSW),
		LatNE: math.Min(a.LatNE, b.LatNE),
		LonNE: math.Min(a.LonNE, b.LonNE),
	}
	if r.LatSW > r.LatNE || r.LonSW > r.LonNE {
		// disjoint, the requested box wins
		return b
	}
	return r
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
