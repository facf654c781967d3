package telemetry

import (
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"
)

// NewLogger builds a slog.Logger writing to stderr, in either "json" or
// text format, at the given level ("debug", "info", "warn", "error").
func NewLogger(format, level string) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stderr, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	}

	return slog.New(handler)
}

// NewMetricsRegistry creates a Prometheus registry seeded with the Go
// runtime/process collectors plus any service-specific collectors.
func NewMetricsRegistry(collectors ...prometheus.Collector) *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	for _, c := range collectors {
		reg.MustRegister(c)
	}
	return reg
}
