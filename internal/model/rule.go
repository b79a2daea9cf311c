package model

// Channel is a notification delivery mechanism.
type Channel string

const (
	ChannelWebsocket Channel = "websocket"
	ChannelEmail     Channel = "email"
	ChannelSMS       Channel = "sms"
)

// Channels lists every valid delivery channel.
var Channels = []Channel{ChannelWebsocket, ChannelEmail, ChannelSMS}

// Valid reports whether c is a member of the closed channel set.
func (c Channel) Valid() bool {
	for _, known := range Channels {
		if c == known {
			return true
		}
	}
	return false
}

// NotificationRule maps a set of alert types and a risk threshold to the
// channels and recipients that should receive matching alerts.
// EscalationMinutes is stored and served but no scheduler consumes it yet.
type NotificationRule struct {
	ID                string      `yaml:"id" json:"id"`
	Name              string      `yaml:"name" json:"name"`
	AlertTypes        []AlertType `yaml:"alert_types" json:"alert_types"`
	RiskThreshold     float64     `yaml:"risk_threshold" json:"risk_threshold"`
	Enabled           bool        `yaml:"enabled" json:"enabled"`
	Channels          []Channel   `yaml:"channels" json:"channels"`
	Recipients        []string    `yaml:"recipients,omitempty" json:"recipients,omitempty"`
	EscalationMinutes int         `yaml:"escalation_minutes,omitempty" json:"escalation_minutes,omitempty"`
}

// CoversType reports whether the rule's type set contains t.
func (r NotificationRule) CoversType(t AlertType) bool {
	for _, rt := range r.AlertTypes {
		if rt == t {
			return true
		}
	}
	return false
}

// HasChannel reports whether the rule's channel set contains c.
func (r NotificationRule) HasChannel(c Channel) bool {
	for _, rc := range r.Channels {
		if rc == c {
			return true
		}
	}
	return false
}
