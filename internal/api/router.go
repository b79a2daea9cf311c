package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter mounts the API surface: the alerting operations, the websocket
// subscriber endpoint, and the Prometheus metrics endpoint.
func NewRouter(h *Handlers, subscriber http.Handler, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()

	apiRouter := r.PathPrefix("/api").Subrouter()
	apiRouter.HandleFunc("/monitor", h.MonitorRisk).Methods(http.MethodPost)
	apiRouter.HandleFunc("/alerts", h.GetActiveAlerts).Methods(http.MethodGet)
	apiRouter.HandleFunc("/alerts/history", h.GetAlertHistory).Methods(http.MethodGet)
	apiRouter.HandleFunc("/alerts/{id}/acknowledge", h.AcknowledgeAlert).Methods(http.MethodPost)
	apiRouter.HandleFunc("/alerts/{id}/resolve", h.ResolveAlert).Methods(http.MethodPost)
	apiRouter.HandleFunc("/rules", h.GetRules).Methods(http.MethodGet)
	apiRouter.HandleFunc("/rules", h.CreateRule).Methods(http.MethodPost)
	apiRouter.HandleFunc("/statistics", h.GetStatistics).Methods(http.MethodGet)

	r.Handle("/ws", subscriber)
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet)

	return r
}
