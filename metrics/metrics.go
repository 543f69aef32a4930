// Package metrics exposes optional Prometheus counters and histograms for
// the core's wrap/unwrap/transport operations, adapted from the teacher's
// metrics package (a package-level prometheus.Registry plus a handful of
// Counter/Histogram vars, registered once via a bindMetrics-style guard and
// served over promhttp). Unlike the teacher's daemon, a channels user is a
// library, not a long-running server: metrics are opt-in (Start is never
// called unless the embedding application wants an HTTP endpoint), and
// recording functions are safe to call even when no collector is started.
package metrics

import (
	"net"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the registry every channels counter/histogram below is
// registered against, mirroring the teacher's PrivateMetrics registry.
var Registry = prometheus.NewRegistry()

var (
	// MessagesWrapped counts successful wrap-pass sends, by content type.
	MessagesWrapped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channels_messages_wrapped_total",
		Help: "Number of messages wrapped and sent, by content type.",
	}, []string{"content_type"})

	// MessagesUnwrapped counts successful unwrap-pass decodes, by content
	// type.
	MessagesUnwrapped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channels_messages_unwrapped_total",
		Help: "Number of messages unwrapped, by content type.",
	}, []string{"content_type"})

	// UnwrapErrors counts unwrap failures, by error kind (decode,
	// signature, not_permitted, ...).
	UnwrapErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "channels_unwrap_errors_total",
		Help: "Number of unwrap failures, by error kind.",
	}, []string{"kind"})

	// TransportLatency measures round-trip Send/Recv/RecvIndex latency.
	TransportLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "channels_transport_duration_seconds",
		Help:    "Latency of transport operations.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op"})

	// SyncMessagesFound counts messages discovered per Sync pass.
	SyncMessagesFound = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "channels_sync_messages_found",
		Help:    "Number of new messages found per Sync pass.",
		Buckets: []float64{0, 1, 2, 5, 10, 25, 50, 100},
	})
)

var (
	bindOnce sync.Once
	bindErr  error
)

func bind() error {
	bindOnce.Do(func() {
		for _, c := range []prometheus.Collector{
			MessagesWrapped, MessagesUnwrapped, UnwrapErrors, TransportLatency, SyncMessagesFound,
		} {
			if err := Registry.Register(c); err != nil {
				bindErr = err
				return
			}
		}
	})
	return bindErr
}

func init() { //nolint:gochecknoinits // mirrors the teacher's eager metric registration
	if err := bind(); err != nil {
		panic("metrics: registration failed: " + err.Error())
	}
}

// Start serves Registry's metrics over HTTP at bind (host:port or just
// port, like the teacher's metrics.Start), returning the listener so the
// caller can close it. Returns nil on listen failure rather than panicking,
// since metrics are never load-bearing for channel correctness.
func Start(bind string) net.Listener {
	l, err := net.Listen("tcp", bind)
	if err != nil {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry}))
	srv := &http.Server{Handler: mux}
	go func() { _ = srv.Serve(l) }()
	return l
}
