package sinkers

import (
	"bufio"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/francois-poidevin/flightmap/internal/app"
	pgSinker "github.com/francois-poidevin/flightmap/internal/app/sinkers/db"
	fileSinker "github.com/francois-poidevin/flightmap/internal/app/sinkers/file"
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

func TestNewByType(t *testing.T) {
	for _, kind := range []string{TypeStdout, TypeFile, TypeDB, TypeNone, "stdout", ""} {
		if _, err := New(log, kind); err != nil {
			t.Errorf("New(%q): unexpected error %v", kind, err)
		}
	}
	if _, err := New(log, "KAFKA"); err == nil {
		t.Error("expected error for unknown sinker type")
	}
}

func testSnapshot() app.Snapshot {
	v := 230.5
	return app.NewSnapshot(app.SourceLive, []app.FlightState{
		{ID: "4b1805", Callsign: "SWR123", OriginCountry: "Switzerland", Lat: 47.45, Lon: 8.55, Heading: 91, Velocity: &v},
		{ID: "a0b1c2", Lat: 40.64, Lon: -73.78},
	})
}

func readLines(t *testing.T, path string) []string {
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	var lines []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines
}

func TestFileSinkerJSON(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	conf := fileSinker.Configuration{Dir: dir, Name: "snap.log", Format: "json"}

	s, err := New(log, TypeFile)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Init(context.Background(), conf); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 2; i++ {
		if err := s.Sink(context.Background(), now, testSnapshot()); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	lines := readLines(t, filepath.Join(dir, "snap.log"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.Contains(lines[0], `"time":"2024-05-01T12:00:00Z"`) || !strings.Contains(lines[0], `"count":2`) {
		t.Errorf("unexpected line %s", lines[0])
	}
}

func TestFileSinkerCSVWritesHeaderOnce(t *testing.T) {
	dir := t.TempDir()
	conf := fileSinker.Configuration{Dir: dir, Name: "snap.csv", Format: "csv"}
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	for round := 0; round < 2; round++ {
		s, _ := New(log, TypeFile)
		if err := s.Init(context.Background(), conf); err != nil {
			t.Fatal(err)
		}
		if err := s.Sink(context.Background(), now, testSnapshot()); err != nil {
			t.Fatal(err)
		}
		s.Close()
	}

	lines := readLines(t, filepath.Join(dir, "snap.csv"))
	if len(lines) != 5 {
		t.Fatalf("expected header + 4 rows, got %d: %v", len(lines), lines)
	}
	if !strings.HasPrefix(lines[0], "time,source,id,callsign") {
		t.Errorf("unexpected header %s", lines[0])
	}
	if lines[1] != "2024-05-01T12:00:00Z,live,4b1805,SWR123,Switzerland,47.45,8.55,91,230.5,,,," {
		t.Errorf("unexpected row %s", lines[1])
	}
	for _, l := range lines[1:] {
		if strings.HasPrefix(l, "time,") {
			t.Error("header repeated")
		}
	}
}

func TestFileSinkerRejectsUnknownFormat(t *testing.T) {
	s, _ := New(log, TypeFile)
	err := s.Init(context.Background(), fileSinker.Configuration{Dir: t.TempDir(), Name: "x", Format: "xml"})
	if err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestParams(t *testing.T) {
	f := fileSinker.Configuration{Dir: "d"}
	d := pgSinker.Configuration{Host: "h"}
	if p, ok := Params("file", f, d).(fileSinker.Configuration); !ok || p.Dir != "d" {
		t.Errorf("unexpected file params %v", p)
	}
	if p, ok := Params(TypeDB, f, d).(pgSinker.Configuration); !ok || p.Host != "h" {
		t.Errorf("unexpected db params %v", p)
	}
	if Params(TypeStdout, f, d) != nil {
		t.Error("stdout takes no params")
	}
}

func TestDSN(t *testing.T) {
	got := pgSinker.DSN(pgSinker.Configuration{Host: "db", Port: 5432, User: "u", Password: "p", Dbname: "n"})
	if got != "host=db port=5432 user=u password=p dbname=n sslmode=disable" {
		t.Errorf("unexpected dsn %s", got)
	}
}
