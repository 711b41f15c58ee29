// Package metrics exposes redigo's Prometheus instrumentation.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redigo_connections_total",
		Help: "Total number of accepted TCP connections.",
	})

	ConnectionsActive = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redigo_connections_active",
		Help: "Current number of open connections.",
	})

	ConnectionsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redigo_connections_rejected_total",
		Help: "Total number of accepted connections refused by the resource guard before a handler was spawned.",
	})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redigo_commands_total",
		Help: "Total number of commands processed, by command name.",
	}, []string{"command"})

	CommandErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "redigo_command_errors_total",
		Help: "Total number of commands that produced an Error frame, by command name.",
	}, []string{"command"})

	KeysExpiredTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redigo_keys_expired_total",
		Help: "Total number of keys reaped by the eviction worker.",
	})

	StoreKeys = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redigo_store_keys",
		Help: "Current number of keys in the store.",
	})

	StoreChannels = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "redigo_store_channels",
		Help: "Current number of distinct pub/sub channels.",
	})

	PublishTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redigo_publish_total",
		Help: "Total number of PUBLISH commands processed.",
	})

	SubscriberLagTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "redigo_subscriber_lag_total",
		Help: "Total number of times a subscriber fell behind a channel's broadcast ring and skipped ahead.",
	})
)

func init() {
	prometheus.MustRegister(
		ConnectionsTotal,
		ConnectionsActive,
		ConnectionsRejected,
		CommandsTotal,
		CommandErrorsTotal,
		KeysExpiredTotal,
		StoreKeys,
		StoreChannels,
		PublishTotal,
		SubscriberLagTotal,
	)
}

// Handler returns the HTTP handler to mount at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
