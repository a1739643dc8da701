// Package metrics provides Prometheus metrics for the device engine and its
// management surface.
package metrics

import (
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tapbox"

var (
	tapsTotal        atomic.Pointer[prometheus.CounterVec]
	debouncedTotal   atomic.Pointer[prometheus.Counter]
	effectOverrun    atomic.Pointer[prometheus.Histogram]
	activityLogBytes atomic.Pointer[prometheus.Gauge]
	scanningEnabled  atomic.Pointer[prometheus.Gauge]
	commandsTotal    atomic.Pointer[prometheus.CounterVec]
	requestsTotal    atomic.Pointer[prometheus.CounterVec]
	requestDuration  atomic.Pointer[prometheus.HistogramVec]
	uplinkFailures   atomic.Pointer[prometheus.Counter]
)

// Init registers every collector with reg. Recording before Init is a no-op.
func Init(reg prometheus.Registerer, version string) error {
	taps := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "taps_total",
		Help:      "Tags resolved by the scanner, by access status",
	}, []string{"status"})

	debounced := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "taps_debounced_total",
		Help:      "Repeated detections of the tag currently being shown",
	})

	overrun := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "effect_overrun_seconds",
		Help:      "How late an effect was cleared past its deadline",
		Buckets:   []float64{.001, .01, .05, .1, .25, .5, 1, 2.5, 5},
	})

	logBytes := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "activity_log_bytes",
		Help:      "Size of the activity log",
	})

	scanning := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "scanning_enabled",
		Help:      "1 when the tag reader was detected at boot",
	})

	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "commands_total",
		Help:      "Management commands served by the engine",
	}, []string{"command", "result"})

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests handled by the management API",
	}, []string{"method", "path", "status"})

	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	uplink := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uplink_failures_total",
		Help:      "Activity records that could not be published",
	})

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "info",
		Help:      "Firmware version",
	}, []string{"version"})

	for name, c := range map[string]prometheus.Collector{
		"taps":       taps,
		"debounced":  debounced,
		"overrun":    overrun,
		"log bytes":  logBytes,
		"scanning":   scanning,
		"commands":   commands,
		"requests":   requests,
		"duration":   duration,
		"uplink":     uplink,
		"build info": info,
	} {
		if err := reg.Register(c); err != nil {
			return fmt.Errorf("register %s: %w", name, err)
		}
	}
	info.WithLabelValues(version).Set(1)

	tapsTotal.Store(taps)
	debouncedTotal.Store(&debounced)
	effectOverrun.Store(&overrun)
	activityLogBytes.Store(&logBytes)
	scanningEnabled.Store(&scanning)
	commandsTotal.Store(commands)
	requestsTotal.Store(requests)
	requestDuration.Store(duration)
	uplinkFailures.Store(&uplink)
	return nil
}

func RecordTap(status string) {
	if c := tapsTotal.Load(); c != nil {
		c.WithLabelValues(status).Inc()
	}
}

func RecordDebounced() {
	if c := debouncedTotal.Load(); c != nil {
		(*c).Inc()
	}
}

// RecordEffectOverrun observes how far past its deadline an effect ended.
func RecordEffectOverrun(seconds float64) {
	if h := effectOverrun.Load(); h != nil {
		(*h).Observe(seconds)
	}
}

func SetActivityLogBytes(n int64) {
	if g := activityLogBytes.Load(); g != nil {
		(*g).Set(float64(n))
	}
}

func SetScanningEnabled(on bool) {
	if g := scanningEnabled.Load(); g != nil {
		v := 0.0
		if on {
			v = 1
		}
		(*g).Set(v)
	}
}

func RecordCommand(command, result string) {
	if c := commandsTotal.Load(); c != nil {
		c.WithLabelValues(command, result).Inc()
	}
}

func RecordRequest(method, path, status string, seconds float64) {
	if c := requestsTotal.Load(); c != nil {
		c.WithLabelValues(method, path, status).Inc()
	}
	if h := requestDuration.Load(); h != nil {
		h.WithLabelValues(method, path, status).Observe(seconds)
	}
}

func RecordUplinkFailure() {
	if c := uplinkFailures.Load(); c != nil {
		(*c).Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
