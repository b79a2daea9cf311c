package alerting

import (
	"net/http"

	"student-risk-monitor/internal/dispatch"
	"student-risk-monitor/internal/model"
	"student-risk-monitor/internal/monitor"
	"student-risk-monitor/internal/rules"
	"student-risk-monitor/internal/store"
	"student-risk-monitor/internal/ws"

	"github.com/sirupsen/logrus"
)

// Service is the single owning object of the alerting core. It composes
// the risk monitor, alert store, rule set, dispatcher, and subscriber hub,
// and exposes the operation surface callers use: external scorers feed
// MonitorRisk, staff acknowledge and resolve, subscribers attach through
// the hub.
type Service struct {
	monitor    *monitor.Monitor
	store      *store.Store
	rules      *rules.Set
	dispatcher *dispatch.Dispatcher
	hub        *ws.Hub
	logger     *logrus.Logger
}

// Statistics aggregates alert counts with the live view of the rest of the
// system.
type Statistics struct {
	store.Stats
	ActiveConnections int `json:"active_connections"`
	NotificationRules int `json:"notification_rules"`
	StudentsMonitored int `json:"students_monitored"`
}

// New wires the service together. The hub's acknowledge handler is bound
// here so subscriber acknowledge_alert messages flow through the same path
// as API calls.
func New(mon *monitor.Monitor, st *store.Store, ruleSet *rules.Set, d *dispatch.Dispatcher, hub *ws.Hub, logger *logrus.Logger) *Service {
	s := &Service{
		monitor:    mon,
		store:      st,
		rules:      ruleSet,
		dispatcher: d,
		hub:        hub,
		logger:     logger,
	}
	hub.SetAcknowledgeFunc(s.AcknowledgeAlert)
	return s
}

// MonitorRisk evaluates a fresh risk score for a student. Produced alerts
// are stored and dispatched before this returns.
func (s *Service) MonitorRisk(studentID, studentName string, riskScore float64, context map[string]interface{}) ([]*model.Alert, error) {
	return s.monitor.Monitor(studentID, studentName, riskScore, context)
}

// AcknowledgeAlert marks an active alert acknowledged and broadcasts the
// status change. Returns false when the id is unknown.
func (s *Service) AcknowledgeAlert(alertID, userID string) bool {
	if !s.store.Acknowledge(alertID, userID) {
		return false
	}
	s.dispatcher.BroadcastUpdate(alertID, model.UpdateAcknowledged)
	return true
}

// ResolveAlert resolves an active alert and broadcasts the status change.
// Returns false when the id is unknown.
func (s *Service) ResolveAlert(alertID, userID, notes string) bool {
	if !s.store.Resolve(alertID, userID, notes) {
		return false
	}
	s.dispatcher.BroadcastUpdate(alertID, model.UpdateResolved)
	return true
}

// CreateRule validates and registers a notification rule, returning its id.
func (s *Service) CreateRule(rule model.NotificationRule) (string, error) {
	return s.rules.Add(rule)
}

// Rules returns every registered notification rule.
func (s *Service) Rules() []model.NotificationRule {
	return s.rules.All()
}

// GetActiveAlerts returns unresolved alerts newest first, optionally
// filtered to one student.
func (s *Service) GetActiveAlerts(studentID string) []model.Alert {
	return s.store.GetActive(studentID)
}

// GetHistory returns alert history newest first.
func (s *Service) GetHistory(studentID string, limit int) []model.Alert {
	return s.store.GetHistory(studentID, limit)
}

// GetStatistics returns alert counts plus connection, rule, and monitored
// student totals.
func (s *Service) GetStatistics() Statistics {
	return Statistics{
		Stats:             s.store.Statistics(),
		ActiveConnections: s.hub.Count(),
		NotificationRules: s.rules.Count(),
		StudentsMonitored: s.monitor.StudentsTracked(),
	}
}

// SubscriberHandler exposes the websocket upgrade endpoint for the router.
func (s *Service) SubscriberHandler() http.Handler {
	return s.hub
}
