// Package metrics provides Prometheus metrics for the weft control-message
// engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "weft"
	subsystem = "icmp6"
)

// Drop reason label values for DatagramsDropped.
const (
	DropTruncated   = "truncated"
	DropBadChecksum = "bad_checksum"
)

// Metrics contains all Prometheus metrics for the ICMPv6 engine.
type Metrics struct {
	// Inbound path
	DatagramsReceived    prometheus.Counter
	DatagramsDropped     *prometheus.CounterVec
	EchoRequestsReceived prometheus.Counter
	EchoRepliesReceived  prometheus.Counter

	// Outbound path
	EchoRequestsSent prometheus.Counter
	EchoRepliesSent  prometheus.Counter
	ErrorsSent       prometheus.Counter
	ErrorsThrottled  prometheus.Counter

	// Notifications and resources
	UnreachableNotifications prometheus.Counter
	ReplyAllocFailures       prometheus.Counter
}

var (
	defaultMetrics *Metrics
	metricsOnce    sync.Once
)

// Default returns the default metrics instance.
func Default() *Metrics {
	metricsOnce.Do(func() {
		defaultMetrics = NewMetrics()
	})
	return defaultMetrics
}

// NewMetrics creates a new Metrics instance registered on the default
// Prometheus registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates a new Metrics instance with a custom registry.
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		DatagramsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_received_total",
			Help:      "Total ICMPv6 datagrams delivered to the engine",
		}),
		DatagramsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "datagrams_dropped_total",
			Help:      "Total inbound ICMPv6 datagrams dropped, by reason",
		}, []string{"reason"}),
		EchoRequestsReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "echo_requests_received_total",
			Help:      "Total echo requests received",
		}),
		EchoRepliesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "echo_replies_received_total",
			Help:      "Total echo replies received",
		}),
		EchoRequestsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "echo_requests_sent_total",
			Help:      "Total echo requests sent",
		}),
		EchoRepliesSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "echo_replies_sent_total",
			Help:      "Total echo replies sent",
		}),
		ErrorsSent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_sent_total",
			Help:      "Total ICMPv6 error messages sent",
		}),
		ErrorsThrottled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "errors_throttled_total",
			Help:      "Total ICMPv6 error messages suppressed by rate limiting",
		}),
		UnreachableNotifications: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "unreachable_notifications_total",
			Help:      "Total destination-unreachable notifications dispatched to handlers",
		}),
		ReplyAllocFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "reply_alloc_failures_total",
			Help:      "Total echo replies not sent because no buffer was available",
		}),
	}
}
