// Package metrics instruments media source and danmaku workers, selections and extensions.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/anisan-cli/aniplay/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "aniplay"

// Registry collects every metric of the process.
var Registry = prometheus.NewRegistry()

var (
	SourceQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_queries_total",
		Help:      "Media source queries by outcome.",
	}, []string{"source", "outcome"})

	SourceQuerySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_query_seconds",
		Help:      "Duration of media source queries that reached a terminal state.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 9),
	}, []string{"source"})

	DanmakuQueries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "danmaku_queries_total",
		Help:      "Danmaku provider queries by outcome.",
	}, []string{"provider", "outcome"})

	Selections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "selections_total",
		Help:      "Media selections by kind and whether the user made them.",
	}, []string{"kind", "explicit"})

	PlaybackErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_errors_total",
		Help:      "Fatal errors reported by the playback engine.",
	})

	ExtensionEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "extension_events_total",
		Help:      "Actions taken by player extensions.",
	}, []string{"extension", "event"})
)

func init() {
	Registry.MustRegister(
		SourceQueries,
		SourceQuerySeconds,
		DanmakuQueries,
		Selections,
		PlaybackErrors,
		ExtensionEvents,
		collectors.NewGoCollector(),
	)
}

// ObserveQuery records a finished media source query.
func ObserveQuery(source, outcome string, started time.Time) {
	SourceQueries.WithLabelValues(source, outcome).Inc()
	SourceQuerySeconds.WithLabelValues(source).Observe(time.Since(started).Seconds())
}

// Serve exposes /metrics on addr until ctx is done.
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	log.Infof("serving metrics on %s", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	return nil
}
