package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DeviceMetrics holds all Prometheus metrics for the device daemon.
type DeviceMetrics struct {
	PressesTotal     *prometheus.CounterVec
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	CacheStaleServes prometheus.Counter
}

// NewDeviceMetrics initializes and registers the device daemon metrics.
func NewDeviceMetrics() *DeviceMetrics {
	return &DeviceMetrics{
		PressesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "device",
			Name:      "presses_total",
			Help:      "Total number of button presses by outcome.",
		}, []string{"status"}), // status: accepted, disabled, rejected, rate_limited, submit_error
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "config",
			Name:      "cache_hits_total",
			Help:      "Total number of config cache hits.",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "config",
			Name:      "cache_misses_total",
			Help:      "Total number of config cache misses or expiries.",
		}),
		CacheStaleServes: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "config",
			Name:      "cache_stale_serves_total",
			Help:      "Total number of resolves served from a stale table after a failed refresh.",
		}),
	}
}

// HandlerMetrics holds all Prometheus metrics for the remote handler worker.
type HandlerMetrics struct {
	EventsTotal         *prometheus.CounterVec
	SinkDeliveriesTotal *prometheus.CounterVec
	StatusReportErrors  prometheus.Counter
}

// NewHandlerMetrics initializes and registers the handler worker metrics.
func NewHandlerMetrics() *HandlerMetrics {
	return &HandlerMetrics{
		EventsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "handler",
			Name:      "events_total",
			Help:      "Total number of handled events by terminal result.",
		}, []string{"result"}), // result: acked, requeued, dead_lettered
		SinkDeliveriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "handler",
			Name:      "sink_deliveries_total",
			Help:      "Total number of sink delivery resolutions by sink and status.",
		}, []string{"sink", "status"}), // status: ok, failed
		StatusReportErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "button_relay",
			Subsystem: "handler",
			Name:      "status_report_errors_total",
			Help:      "Total number of best-effort status reports that failed to send.",
		}),
	}
}
