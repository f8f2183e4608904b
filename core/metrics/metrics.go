// Package metrics holds the Prometheus collectors shared by the bot runtime
// and the HTTP exporter serving them.
package metrics

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/m3rciful/refbot/core/logger"
)

var (
	updatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_updates_total",
			Help: "Inbound Telegram updates by kind and admission status",
		},
		[]string{"kind", "status"},
	)

	handlerDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "refbot_handler_duration_seconds",
			Help:    "Duration of update handlers in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"handler", "status"},
	)

	outboundTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_outbound_total",
			Help: "Outbound Telegram calls by action and result",
		},
		[]string{"action", "status"},
	)

	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refbot_step_transitions_total",
			Help: "Conversation step transitions",
		},
		[]string{"from", "to"},
	)
)

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// RecordUpdate counts an inbound update. status is one of ok, duplicate or rate_limited.
func RecordUpdate(kind, status string) {
	updatesTotal.WithLabelValues(kind, status).Inc()
}

// RecordHandler observes a finished handler.
func RecordHandler(handler string, d time.Duration, err error) {
	handlerDuration.WithLabelValues(handler, status(err)).Observe(d.Seconds())
}

// RecordOutbound counts a finished outbound call after retries.
func RecordOutbound(action string, err error) {
	outboundTotal.WithLabelValues(action, status(err)).Inc()
}

// RecordTransition counts a persisted conversation step change.
func RecordTransition(from, to string) {
	transitionsTotal.WithLabelValues(from, to).Inc()
}

// Serve exposes /metrics on listen until ctx is done. An empty listen address disables it.
func Serve(ctx context.Context, listen string) error {
	if listen == "" {
		return nil
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	logger.TG.Info("metrics listening",
		slog.String("event", "metrics.listen"),
		slog.String("listen", listen),
	)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
