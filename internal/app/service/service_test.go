package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/francois-poidevin/flightmap/internal/app/source"
	"github.com/francois-poidevin/flightmap/internal/app/tools"
	"github.com/goccy/go-json"
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

type fakeSnapshotter struct {
	snap app.Snapshot
	bbox *tools.Bbox
}

func (f *fakeSnapshotter) FetchSnapshot(ctx context.Context, bbox *tools.Bbox) app.Snapshot {
	f.bbox = bbox
	return f.snap
}

type recordingSinker struct {
	err   error
	calls int
	last  time.Time
}

func (r *recordingSinker) Init(ctx context.Context, params interface{}) error { return nil }

func (r *recordingSinker) Sink(ctx context.Context, t time.Time, snap app.Snapshot) error {
	r.calls++
	r.last = t
	return r.err
}

func (r *recordingSinker) Close() error { return nil }

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndRoot(t *testing.T) {
	svc := New(log, &fakeSnapshotter{}, nil, "", nil)
	h := svc.Handler(0)

	for _, path := range []string{"/health", "/api/health"} {
		rec := get(t, h, path)
		if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != `{"ok":true}` {
			t.Errorf("%s: unexpected response %d %s", path, rec.Code, rec.Body.String())
		}
		if rec.Header().Get("X-Request-Id") == "" {
			t.Errorf("%s: missing request id", path)
		}
	}

	rec := get(t, h, "/")
	if rec.Body.String() != "Flight backend running" {
		t.Errorf("unexpected root body %q", rec.Body.String())
	}
}

func TestFlightsEndpointMockMode(t *testing.T) {
	gen := source.NewGenerator(source.GeneratorConfig{Seed: 5}, clockwork.NewFakeClock())
	adapter := source.NewAdapter(log, nil, gen, 25, 10)
	sinker := &recordingSinker{}
	svc := New(log, adapter, sinker, "TEST", nil)

	rec := get(t, svc.Handler(0), "/api/flights")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Count   int               `json:"count"`
		Flights []app.FlightState `json:"flights"`
		Source  string            `json:"source"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Source != "mock" || body.Count != 25 || len(body.Flights) != body.Count {
		t.Errorf("unexpected body: source %s count %d len %d", body.Source, body.Count, len(body.Flights))
	}
	if sinker.calls != 1 {
		t.Errorf("expected the snapshot to be sunk once, got %d", sinker.calls)
	}
}

func TestFlightsEndpointBbox(t *testing.T) {
	fallback := &tools.Bbox{LatSW: 1, LonSW: 1, LatNE: 2, LonNE: 2}
	fake := &fakeSnapshotter{snap: app.NewSnapshot(app.SourceLive, nil)}
	h := New(log, fake, nil, "", fallback).Handler(0)

	get(t, h, "/api/flights?bbox=43.52,1.32%5E43.70,1.69")
	if fake.bbox == nil || fake.bbox.LatSW != 43.52 || fake.bbox.LonNE != 1.69 {
		t.Errorf("bbox not forwarded: %+v", fake.bbox)
	}

	rec := get(t, h, "/api/flights?bbox=nonsense")
	if rec.Code != http.StatusOK {
		t.Errorf("malformed bbox must not fail the request, got %d", rec.Code)
	}
	if fake.bbox != fallback {
		t.Errorf("malformed bbox should fall back to the configured area, got %+v", fake.bbox)
	}
	if strings.TrimSpace(rec.Body.String()) != `{"count":0,"flights":[],"source":"live"}` {
		t.Errorf("unexpected body %s", rec.Body.String())
	}
}

func TestSinkFailureDoesNotAffectResponse(t *testing.T) {
	fake := &fakeSnapshotter{snap: app.NewSnapshot(app.SourceFallback, []app.FlightState{{ID: "mock0", Lat: 1, Lon: 2}})}
	sinker := &recordingSinker{err: errors.New("disk full")}
	svc := New(log, fake, sinker, "FILE", nil)
	clock := clockwork.NewFakeClock()
	svc.clock = clock

	rec := get(t, svc.Handler(0), "/api/flights")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"count":1`) {
		t.Errorf("unexpected response %d %s", rec.Code, rec.Body.String())
	}
	if strings.Contains(rec.Body.String(), "disk full") {
		t.Error("sink error leaked into response")
	}
	if !sinker.last.Equal(clock.Now()) {
		t.Errorf("sink time %v, expected %v", sinker.last, clock.Now())
	}
}

func TestRateLimit(t *testing.T) {
	h := New(log, &fakeSnapshotter{}, nil, "", nil).Handler(2)
	codes := []int{}
	for i := 0; i < 3; i++ {
		codes = append(codes, get(t, h, "/health").Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence %v", codes)
	}
}

func TestRateLimitSparesFlights(t *testing.T) {
	gen := source.NewGenerator(source.GeneratorConfig{Seed: 9}, clockwork.NewFakeClock())
	h := New(log, source.NewAdapter(log, nil, gen, 5, 5), nil, "", nil).Handler(2)

	statuses := map[int]int{}
	for i := 0; i < 10; i++ {
		rec := get(t, h, "/api/flights")
		statuses[rec.Code]++
		var body app.Snapshot
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("call %d: body is not a snapshot: %v", i, err)
		}
		if body.Count != len(body.Flights) {
			t.Errorf("call %d: count %d for %d flights", i, body.Count, len(body.Flights))
		}
	}
	if statuses[http.StatusOK] != 10 {
		t.Errorf("expected only 200s past the limit, got %v", statuses)
	}

	// the other routes are still limited
	get(t, h, "/health")
	get(t, h, "/health")
	if code := get(t, h, "/health").Code; code != http.StatusTooManyRequests {
		t.Errorf("expected /health to be limited, got %d", code)
	}
}

func TestCORSPreflight(t *testing.T) {
	h := New(log, &fakeSnapshotter{}, nil, "", nil).Handler(0)
	req := httptest.NewRequest(http.MethodOptions, "/api/flights", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Header().Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("missing CORS header, got %v", rec.Header())
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, New(log, &fakeSnapshotter{}, nil, "", nil).Handler(0), "/metrics")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "go_goroutines") {
		t.Errorf("unexpected metrics response %d", rec.Code)
	}
}
