package monitor

import (
	"fmt"
	"sync"

	"student-risk-monitor/internal/metrics"
	"student-risk-monitor/internal/model"
	"student-risk-monitor/internal/rules"

	"github.com/sirupsen/logrus"
)

// Risk score bands used when building threshold and increase alerts.
const (
	criticalRiskLevel         = 0.85
	interventionThresholdRisk = 0.70
	interventionIncreaseRisk  = 0.60
	increaseDelta             = 0.15
	highIncreaseDelta         = 0.20
)

// AlertSink records created alerts. Implemented by the alert store.
type AlertSink interface {
	Create(alert *model.Alert)
}

// AlertDispatcher fans a created alert out to its delivery channels.
type AlertDispatcher interface {
	Dispatch(alert *model.Alert)
}

// Monitor tracks the last observed risk score per student and turns fresh
// scores into alerts: threshold crossings, rapid increases, and condition
// checks from the monitoring context.
type Monitor struct {
	rules      *rules.Set
	sink       AlertSink
	dispatcher AlertDispatcher
	metrics    *metrics.Metrics
	logger     *logrus.Logger

	mu       sync.Mutex
	lastRisk map[string]float64
}

// New creates a monitor with an empty risk cache.
func New(ruleSet *rules.Set, sink AlertSink, dispatcher AlertDispatcher, m *metrics.Metrics, logger *logrus.Logger) *Monitor {
	return &Monitor{
		rules:      ruleSet,
		sink:       sink,
		dispatcher: dispatcher,
		metrics:    m,
		logger:     logger,
		lastRisk:   make(map[string]float64),
	}
}

// Monitor evaluates a fresh risk score for a student and returns the alerts
// it produced, already stored and dispatched, in evaluation order
// (threshold, increase, conditions). A score outside [0,1] is rejected
// before any state changes. The cached previous score is overwritten with
// currentRisk whether or not anything fired; that overwrite is what makes
// crossing detection correct on the next call.
func (m *Monitor) Monitor(studentID, studentName string, currentRisk float64, context map[string]interface{}) ([]*model.Alert, error) {
	if currentRisk < 0 || currentRisk > 1 {
		return nil, model.NewValidationError("risk_score", fmt.Sprintf("%.2f outside [0,1]", currentRisk))
	}

	m.mu.Lock()
	previousRisk := m.lastRisk[studentID]
	m.lastRisk[studentID] = currentRisk
	m.mu.Unlock()

	var alerts []*model.Alert
	alerts = append(alerts, m.thresholdAlerts(studentID, studentName, currentRisk, previousRisk)...)
	alerts = append(alerts, m.increaseAlerts(studentID, studentName, currentRisk, previousRisk)...)
	alerts = append(alerts, m.conditionAlerts(studentID, studentName, currentRisk, previousRisk, context)...)

	// Dispatch and the caller get snapshots, not the stored pointers: once
	// Create publishes an alert it can be acknowledged or resolved at any
	// moment, and serializing the live struct would race those writes.
	out := make([]*model.Alert, 0, len(alerts))
	for _, alert := range alerts {
		snapshot := alert.Clone()
		m.sink.Create(alert)
		m.metrics.AlertsCreated.WithLabelValues(string(alert.Type), string(alert.Level)).Inc()
		m.dispatcher.Dispatch(snapshot)
		out = append(out, snapshot)
	}
	if len(out) > 0 {
		m.logger.Infof("Monitor produced %d alert(s) for student %s (risk %.2f -> %.2f)",
			len(out), studentID, previousRisk, currentRisk)
	}
	return out, nil
}

// thresholdAlerts fires once per rule threshold the score crossed on this
// observation: previous below, current at or above. A score that stays
// above a threshold does not fire again.
func (m *Monitor) thresholdAlerts(studentID, studentName string, currentRisk, previousRisk float64) []*model.Alert {
	var alerts []*model.Alert
	for _, rule := range m.rules.ForType(model.AlertRiskThreshold) {
		if currentRisk < rule.RiskThreshold || previousRisk >= rule.RiskThreshold {
			continue
		}
		level := model.LevelHigh
		if currentRisk >= criticalRiskLevel {
			level = model.LevelCritical
		}
		alert := model.NewAlert(studentID, studentName, model.AlertRiskThreshold, level,
			currentRisk, previousRisk,
			fmt.Sprintf("%s's risk score crossed the %.2f threshold (%.2f -> %.2f)",
				studentName, rule.RiskThreshold, previousRisk, currentRisk),
			map[string]interface{}{
				"rule":      rule.Name,
				"threshold": rule.RiskThreshold,
			})
		alert.InterventionRecommended = currentRisk >= interventionThresholdRisk
		alerts = append(alerts, alert)
	}
	return alerts
}

// increaseAlerts fires per rule when the score jumped by at least
// increaseDelta and sits at or above the rule threshold.
func (m *Monitor) increaseAlerts(studentID, studentName string, currentRisk, previousRisk float64) []*model.Alert {
	delta := currentRisk - previousRisk
	if delta < increaseDelta {
		return nil
	}
	var alerts []*model.Alert
	for _, rule := range m.rules.ForType(model.AlertRiskIncrease) {
		if currentRisk < rule.RiskThreshold {
			continue
		}
		level := model.LevelMedium
		if delta >= highIncreaseDelta {
			level = model.LevelHigh
		}
		alert := model.NewAlert(studentID, studentName, model.AlertRiskIncrease, level,
			currentRisk, previousRisk,
			fmt.Sprintf("%s's risk score increased rapidly (%.2f -> %.2f)",
				studentName, previousRisk, currentRisk),
			map[string]interface{}{
				"rule":     rule.Name,
				"increase": delta,
			})
		alert.InterventionRecommended = currentRisk >= interventionIncreaseRisk
		alerts = append(alerts, alert)
	}
	return alerts
}

// conditionAlerts runs the ordered condition table against the monitoring
// context. Condition checks are independent of rule thresholds.
func (m *Monitor) conditionAlerts(studentID, studentName string, currentRisk, previousRisk float64, context map[string]interface{}) []*model.Alert {
	if len(context) == 0 {
		return nil
	}
	var alerts []*model.Alert
	for _, check := range conditionChecks {
		spec := check.eval(studentName, context)
		if spec == nil {
			continue
		}
		alert := model.NewAlert(studentID, studentName, spec.Type, spec.Level,
			currentRisk, previousRisk, spec.Message, spec.Details)
		alert.InterventionRecommended = spec.Intervention
		alerts = append(alerts, alert)
	}
	return alerts
}

// LastRisk returns the cached previous risk score for a student.
func (m *Monitor) LastRisk(studentID string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	risk, ok := m.lastRisk[studentID]
	return risk, ok
}

// StudentsTracked returns how many distinct students have been monitored.
func (m *Monitor) StudentsTracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lastRisk)
}
