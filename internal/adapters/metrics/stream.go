// Package metrics exports stream activity to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "pttsync"
	subsystem = "stream"

	shutdownTimeout = 5 * time.Second
)

var allStates = []domain.ConnectionState{
	domain.ConnectionIdle,
	domain.ConnectionConnecting,
	domain.ConnectionConnected,
	domain.ConnectionReconnecting,
	domain.ConnectionStopped,
}

// Stream implements ports.StreamMetrics on a private registry.
type Stream struct {
	registry *prometheus.Registry

	frames     *prometheus.CounterVec // topic, kind (comment/data)
	events     *prometheus.CounterVec // topic, event
	decodeErrs *prometheus.CounterVec // topic
	reconnects *prometheus.CounterVec // topic
	state      *prometheus.GaugeVec   // topic, state; 1 for the current state
}

var _ ports.StreamMetrics = (*Stream)(nil)

func NewStream() *Stream {
	m := &Stream{
		registry: prometheus.NewRegistry(),

		frames: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "frames_total",
			Help:      "Frames read from the event stream",
		}, []string{"topic", "kind"}),

		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "events_dispatched_total",
			Help:      "Decoded events delivered to subscribers",
		}, []string{"topic", "event"}),

		decodeErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "decode_errors_total",
			Help:      "Data frames dropped because they could not be decoded",
		}, []string{"topic"}),

		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reconnects_scheduled_total",
			Help:      "Reconnect attempts scheduled after a failure",
		}, []string{"topic"}),

		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "connection_state",
			Help:      "Current connection state per topic (1 = active state)",
		}, []string{"topic", "state"}),
	}

	m.registry.MustRegister(
		m.frames,
		m.events,
		m.decodeErrs,
		m.reconnects,
		m.state,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Stream) FrameReceived(topic string, kind string) {
	m.frames.WithLabelValues(topic, kind).Inc()
}

func (m *Stream) EventDispatched(topic string, name domain.EventName) {
	m.events.WithLabelValues(topic, string(name)).Inc()
}

func (m *Stream) DecodeFailed(topic string) {
	m.decodeErrs.WithLabelValues(topic).Inc()
}

func (m *Stream) ReconnectScheduled(topic string) {
	m.reconnects.WithLabelValues(topic).Inc()
}

func (m *Stream) StateChanged(topic string, state domain.ConnectionState) {
	for _, candidate := range allStates {
		value := 0.0
		if candidate == state {
			value = 1
		}
		m.state.WithLabelValues(topic, candidate.String()).Set(value)
	}
}

func (m *Stream) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

// Serve exposes Handler on addr until ctx is cancelled.
func (m *Stream) Serve(ctx context.Context, addr string, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	server := &http.Server{
		Addr:              addr,
		Handler:           m.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics server listening", "addr", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("metrics server on %s: %w", addr, err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown metrics server: %w", err)
		}
		return nil
	}
}
