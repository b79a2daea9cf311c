package rules

import (
	"fmt"
	"sync"

	"student-risk-monitor/internal/model"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Set holds the notification rules. Rules are added at startup or through
// CreateRule and are never removed, so readers only ever see a growing list.
//
// Rule matching happens in two independent phases. Phase A (ForType) feeds
// alert creation in the monitor: it answers which enabled rules cover a
// given alert type so crossings can be tested per rule threshold. Phase B
// (MatchTargets) runs at dispatch time on an already-created alert: it
// re-scans every enabled rule whose type set covers the alert and whose
// threshold is at or below the alert's risk score, and unions their channel
// sets and recipient lists. Collapsing the phases would change fan-out when
// several rules of the same type overlap.
type Set struct {
	logger *logrus.Logger

	mu    sync.RWMutex
	rules []model.NotificationRule
}

// Targets is the union of delivery channels and recipients selected by
// Phase B matching for one alert.
type Targets struct {
	Channels   map[model.Channel]bool
	Recipients []string
}

// Has reports whether channel c was selected.
func (t Targets) Has(c model.Channel) bool {
	return t.Channels[c]
}

// NewSet creates an empty rule set.
func NewSet(logger *logrus.Logger) *Set {
	return &Set{logger: logger}
}

// NewDefaultSet creates a rule set preloaded with the four standard rules.
func NewDefaultSet(logger *logrus.Logger) *Set {
	s := NewSet(logger)
	defaults := []model.NotificationRule{
		{
			Name:              "High Risk Alert",
			AlertTypes:        []model.AlertType{model.AlertRiskThreshold},
			RiskThreshold:     0.70,
			Enabled:           true,
			Channels:          []model.Channel{model.ChannelWebsocket, model.ChannelEmail},
			Recipients:        []string{"counselor@school.edu"},
			EscalationMinutes: 30,
		},
		{
			Name:              "Critical Risk Alert",
			AlertTypes:        []model.AlertType{model.AlertRiskThreshold},
			RiskThreshold:     0.85,
			Enabled:           true,
			Channels:          []model.Channel{model.ChannelWebsocket, model.ChannelEmail, model.ChannelSMS},
			Recipients:        []string{"counselor@school.edu", "dean@school.edu"},
			EscalationMinutes: 15,
		},
		{
			Name:              "Risk Increase Alert",
			AlertTypes:        []model.AlertType{model.AlertRiskIncrease},
			RiskThreshold:     0.50,
			Enabled:           true,
			Channels:          []model.Channel{model.ChannelWebsocket},
			EscalationMinutes: 60,
		},
		{
			Name:              "Attendance Alert",
			AlertTypes:        []model.AlertType{model.AlertAttendanceDrop},
			RiskThreshold:     0.30,
			Enabled:           true,
			Channels:          []model.Channel{model.ChannelWebsocket, model.ChannelEmail},
			Recipients:        []string{"attendance@school.edu"},
			EscalationMinutes: 45,
		},
	}
	for _, rule := range defaults {
		if _, err := s.Add(rule); err != nil {
			// Defaults are static and always valid.
			logger.Errorf("failed to register default rule %q: %v", rule.Name, err)
		}
	}
	return s
}

// Add validates rule and inserts it, returning the rule id. On validation
// failure nothing is inserted.
func (s *Set) Add(rule model.NotificationRule) (string, error) {
	if err := validate(rule); err != nil {
		return "", err
	}
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.rules = append(s.rules, rule)
	s.mu.Unlock()
	s.logger.Infof("Registered notification rule: %s (threshold=%.2f, channels=%v)",
		rule.Name, rule.RiskThreshold, rule.Channels)
	return rule.ID, nil
}

func validate(rule model.NotificationRule) error {
	if rule.Name == "" {
		return model.NewValidationError("name", "must not be empty")
	}
	if len(rule.AlertTypes) == 0 {
		return model.NewValidationError("alert_types", "must not be empty")
	}
	for _, t := range rule.AlertTypes {
		if !t.Valid() {
			return model.NewValidationError("alert_types", fmt.Sprintf("unknown alert type %q", t))
		}
	}
	if rule.RiskThreshold < 0 || rule.RiskThreshold > 1 {
		return model.NewValidationError("risk_threshold", fmt.Sprintf("%.2f outside [0,1]", rule.RiskThreshold))
	}
	if len(rule.Channels) == 0 {
		return model.NewValidationError("channels", "must not be empty")
	}
	for _, c := range rule.Channels {
		if !c.Valid() {
			return model.NewValidationError("channels", fmt.Sprintf("unknown channel %q", c))
		}
	}
	if rule.HasChannel(model.ChannelEmail) && len(rule.Recipients) == 0 {
		return model.NewValidationError("recipients", "required when the email channel is enabled")
	}
	return nil
}

// ForType returns the enabled rules whose type set covers t, used at alert
// creation time (Phase A).
func (s *Set) ForType(t model.AlertType) []model.NotificationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []model.NotificationRule
	for _, rule := range s.rules {
		if rule.Enabled && rule.CoversType(t) {
			matched = append(matched, rule)
		}
	}
	return matched
}

// MatchTargets computes the delivery targets for an already-created alert
// (Phase B): the union of channels and recipients over every enabled rule
// covering the alert's type with threshold at or below its risk score.
func (s *Set) MatchTargets(alert *model.Alert) Targets {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := Targets{Channels: make(map[model.Channel]bool)}
	seen := make(map[string]bool)
	for _, rule := range s.rules {
		if !rule.Enabled || !rule.CoversType(alert.Type) || rule.RiskThreshold > alert.RiskScore {
			continue
		}
		for _, c := range rule.Channels {
			targets.Channels[c] = true
		}
		for _, r := range rule.Recipients {
			if !seen[r] {
				seen[r] = true
				targets.Recipients = append(targets.Recipients, r)
			}
		}
	}
	return targets
}

// All returns a copy of every rule.
func (s *Set) All() []model.NotificationRule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.NotificationRule, len(s.rules))
	copy(out, s.rules)
	return out
}

// Count returns the number of registered rules.
func (s *Set) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rules)
}
