package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	FramesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "frames_processed_total",
		Help:      "Total number of camera frames processed",
	})

	FacesDetected = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "faces_detected_total",
		Help:      "Total number of faces detected in frames",
	})

	FacesMatched = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "faces_matched_total",
		Help:      "Total number of faces matched to an enrolled identity",
	})

	FacesUnknown = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "faces_unknown_total",
		Help:      "Total number of faces with no roster match",
	})

	AmbiguousMatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "ambiguous_matches_total",
		Help:      "Matches where several identities were within epsilon of the minimum distance",
	})

	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "events_emitted_total",
		Help:      "Attendance events emitted by the presence state machine",
	}, []string{"status"})

	SightingsSuppressed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "sightings_suppressed_total",
		Help:      "Recognized sightings that produced no event (dwell or debounce)",
	})

	ReporterQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kiosk",
		Name:      "reporter_queue_depth",
		Help:      "Number of events waiting in the local report queue",
	})

	EventsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "events_dropped_total",
		Help:      "Events evicted from the report queue on overflow (data loss)",
	})

	ReportAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "report_attempts_total",
		Help:      "Event report attempts by outcome",
	}, []string{"outcome"})

	RosterIdentities = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kiosk",
		Name:      "roster_identities",
		Help:      "Number of identities in the cached roster snapshot",
	})

	RosterRefreshFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "roster_refresh_failures_total",
		Help:      "Failed roster refresh attempts",
	})

	ControlState = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kiosk",
		Name:      "control_state",
		Help:      "Current control state (0=running, 1=paused, 2=stopped)",
	})

	CameraRestarts = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "kiosk",
		Name:      "camera_restarts_total",
		Help:      "Camera reacquisition attempts after capture failure",
	})

	InferenceDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kiosk",
		Name:      "inference_duration_seconds",
		Help:      "Duration of vision pipeline stages",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"stage"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "kiosk",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	WSConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "kiosk",
		Name:      "ws_connections",
		Help:      "Number of active WebSocket decision-stream clients",
	})
)
