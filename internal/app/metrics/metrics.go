package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Server side
	SnapshotsServed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightmap_snapshots_served_total",
			Help: "Total number of snapshots produced, by source tag",
		},
		[]string{"source"},
	)

	SnapshotFlights = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flightmap_snapshot_flights",
			Help: "Number of flights in the last produced snapshot",
		},
	)

	UpstreamFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightmap_upstream_failures_total",
			Help: "Upstream fetches resolved by a fallback snapshot, by kind",
		},
		[]string{"kind"}, // "unavailable", "empty"
	)

	MalformedRecords = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flightmap_upstream_malformed_records_total",
			Help: "Upstream records dropped because they failed validation",
		},
	)

	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "flightmap_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	SinkErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightmap_sink_errors_total",
			Help: "Snapshots the configured sinker failed to store",
		},
		[]string{"sinker"},
	)

	// Client side
	Reconciliations = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flightmap_sync_reconciliations_total",
			Help: "Snapshots reconciled by the fleet sync engine",
		},
	)

	MarkerEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightmap_sync_marker_events_total",
			Help: "Marker lifecycle events, by kind",
		},
		[]string{"event"}, // "created", "updated", "removed", "skipped"
	)

	TrackedEntities = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flightmap_sync_tracked_entities",
			Help: "Entities currently tracked by the fleet sync engine",
		},
	)

	PollFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightmap_sync_poll_failures_total",
			Help: "Polls that produced no snapshot, by reason",
		},
		[]string{"reason"}, // "fetch", "busy"
	)
)
