package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments for the alerting core.
type Metrics struct {
	AlertsCreated        *prometheus.CounterVec
	NotificationsSent    *prometheus.CounterVec
	NotificationFailures *prometheus.CounterVec
	ActiveConnections    prometheus.Gauge
}

// New creates the metric set and registers it with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AlertsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_monitor_alerts_created_total",
			Help: "Alerts created, labeled by alert type and level",
		}, []string{"type", "level"}),
		NotificationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_monitor_notifications_sent_total",
			Help: "Notifications delivered, labeled by channel",
		}, []string{"channel"}),
		NotificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "risk_monitor_notification_failures_total",
			Help: "Notification delivery failures, labeled by channel",
		}, []string{"channel"}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "risk_monitor_active_connections",
			Help: "Live websocket subscriber connections",
		}),
	}
	reg.MustRegister(m.AlertsCreated, m.NotificationsSent, m.NotificationFailures, m.ActiveConnections)
	return m
}

// NewRegistry creates a registry preloaded with the standard Go and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector())
	reg.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	return reg
}
