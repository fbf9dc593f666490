package cmd

import (
	"bytes"
	"context"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/francois-poidevin/flightmap/config"
	"github.com/francois-poidevin/flightmap/internal/app"
	"github.com/goccy/go-json"
	defaults "github.com/mcuadros/go-defaults"
	toml "github.com/pelletier/go-toml"
)

func TestAsEnvVariables(t *testing.T) {
	c := &config.Configuration{}
	defaults.SetDefaults(c)

	vars := asEnvVariables(c, envPrefix, true)
	expected := map[string]string{
		"FT_LOG_LEVEL":               "info",
		"FT_SERVER_PORT":             "5000",
		"FT_SOURCE_MOCKSTATEFUL":     "false",
		"FT_SOURCE_OPENSKYUSER":      "",
		"FT_WATCH_CADENCE":           "60",
		"FT_SINKER_TYPE":             "NONE",
		"FT_SINKER_FILE_FORMAT":      "json",
		"FT_SINKER_POSTGRES_SSLMODE": "disable",
	}
	for k, v := range expected {
		got, ok := vars[k]
		if !ok {
			t.Errorf("missing %s", k)
			continue
		}
		if got != v {
			t.Errorf("%s: expected %q, got %q", k, v, got)
		}
	}

	noPrefix := asEnvVariables(c, "", false)
	if _, ok := noPrefix["SOURCE_OPENSKYPASS"]; !ok {
		t.Error("unprefixed names should start with the section")
	}
}

func TestLegacyEnvKeysExist(t *testing.T) {
	keys := map[string]bool{}
	for k := range asEnvVariables(&config.Configuration{}, "", false) {
		keys[strings.ToLower(strings.Replace(k, "_", ".", -1))] = true
	}
	for key := range legacyEnv {
		if !keys[key] {
			t.Errorf("legacy env bound to unknown key %s", key)
		}
	}
}

func TestNewConfig(t *testing.T) {
	out, err := newConfig(false)
	if err != nil {
		t.Fatal(err)
	}
	parsed := config.Configuration{}
	if err := toml.Unmarshal([]byte(out), &parsed); err != nil {
		t.Fatalf("generated config does not parse: %v", err)
	}
	if parsed.Server.Port != 5000 || parsed.Watch.Steps != 10 || parsed.Sinker.File.Name != "snapshots.log" {
		t.Errorf("unexpected defaults %+v", parsed)
	}

	env, err := newConfig(true)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(env, `export FT_WATCH_REFRESH="3"`) {
		t.Errorf("unexpected env output:\n%s", env)
	}
}

func TestOptionalBbox(t *testing.T) {
	if b, err := optionalBbox(""); b != nil || err != nil {
		t.Errorf("empty bbox should mean no restriction")
	}
	b, err := optionalBbox("43.52,1.32^43.70,1.69")
	if err != nil || b == nil || b.LatNE != 43.70 {
		t.Errorf("unexpected bbox %v %v", b, err)
	}
	if _, err := optionalBbox("43.52,1.32"); err == nil {
		t.Error("expected error for malformed bbox")
	}
}

func TestSnapshotKeepsStdoutForJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flightmap.toml")
	if err := os.WriteFile(path, []byte("[Source]\nmockCount = 3\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("OPENSKY_USER", "")
	t.Setenv("FT_SOURCE_OPENSKYUSER", "")

	previousFile, previousOut := cfgFile, log.Out
	defer func() {
		cfgFile, log.Out = previousFile, previousOut
	}()
	cfgFile = path

	var stdout, stderr bytes.Buffer
	if err := runSnapshot(context.Background(), &stdout, &stderr, ""); err != nil {
		t.Fatal(err)
	}

	var snap app.Snapshot
	if err := json.Unmarshal(stdout.Bytes(), &snap); err != nil {
		t.Fatalf("stdout should hold the JSON document only: %v\n%s", err, stdout.String())
	}
	if snap.Source != app.SourceMock || snap.Count != 3 {
		t.Errorf("unexpected snapshot source %s count %d", snap.Source, snap.Count)
	}
	if !strings.Contains(stderr.String(), "Reading configuration file") {
		t.Errorf("config logs should go to stderr, got %q", stderr.String())
	}
}

type closingSinker struct {
	closed bool
}

func (c *closingSinker) Init(ctx context.Context, params interface{}) error { return nil }

func (c *closingSinker) Sink(ctx context.Context, t time.Time, snap app.Snapshot) error { return nil }

func (c *closingSinker) Close() error {
	c.closed = true
	return nil
}

func TestServeClosesSinkerWhenListenFails(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	sinker := &closingSinker{}
	srv := &http.Server{Addr: ln.Addr().String(), Handler: http.NotFoundHandler()}
	if err := serve(context.Background(), srv, sinker); err == nil {
		t.Fatal("expected an error on a busy address")
	}
	if !sinker.closed {
		t.Error("sinker must be closed when the server cannot start")
	}
}

func TestServeClosesSinkerOnShutdown(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sinker := &closingSinker{}
	srv := &http.Server{Addr: "127.0.0.1:0", Handler: http.NotFoundHandler()}

	done := make(chan error, 1)
	go func() {
		done <- serve(ctx, srv, sinker)
	}()
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("graceful shutdown should not be an error, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return after cancel")
	}
	if !sinker.closed {
		t.Error("sinker must be closed after shutdown")
	}
}
