package dispatch

import (
	"student-risk-monitor/internal/metrics"
	"student-risk-monitor/internal/model"
	"student-risk-monitor/internal/rules"

	"github.com/sirupsen/logrus"
)

// Broadcaster pushes a serialized message to every live subscriber.
// Implemented by the websocket hub.
type Broadcaster interface {
	Broadcast(payload []byte)
}

// EmailSender delivers an alert to a recipient list over SMTP.
type EmailSender interface {
	Configured() bool
	Send(alert *model.Alert, recipients []string) error
}

// SMSSender is the sms channel contract. The shipped implementation is a
// log-only stub; the channel stays in rule matching so wiring a real
// provider later does not change dispatch.
type SMSSender interface {
	Send(alert *model.Alert, recipients []string) error
}

// Dispatcher fans an alert out to the channels selected by rule matching.
// Delivery is strictly best-effort: a failure on one channel is logged,
// counted, and never blocks another channel or surfaces to the caller.
type Dispatcher struct {
	rules       *rules.Set
	broadcaster Broadcaster
	email       EmailSender
	sms         SMSSender
	metrics     *metrics.Metrics
	logger      *logrus.Logger
}

// New creates a dispatcher. email and sms may be nil when the channel has
// no transport configured.
func New(ruleSet *rules.Set, broadcaster Broadcaster, email EmailSender, sms SMSSender, m *metrics.Metrics, logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		rules:       ruleSet,
		broadcaster: broadcaster,
		email:       email,
		sms:         sms,
		metrics:     m,
		logger:      logger,
	}
}

// Dispatch delivers alert to every channel selected by Phase B rule
// matching. The alert has already been stored; nothing here can undo that.
func (d *Dispatcher) Dispatch(alert *model.Alert) {
	targets := d.rules.MatchTargets(alert)
	if len(targets.Channels) == 0 {
		d.logger.Debugf("No delivery targets for alert %s (%s)", alert.ID, alert.Type)
		return
	}

	if targets.Has(model.ChannelWebsocket) {
		d.broadcastAlert(alert)
	}
	if targets.Has(model.ChannelEmail) {
		d.sendEmail(alert, targets.Recipients)
	}
	if targets.Has(model.ChannelSMS) {
		d.sendSMS(alert, targets.Recipients)
	}
}

// BroadcastUpdate pushes a lightweight status-change message to every
// subscriber after an acknowledge or resolve.
func (d *Dispatcher) BroadcastUpdate(alertID, updateType string) {
	payload, err := model.EncodeUpdateMessage(alertID, updateType)
	if err != nil {
		d.logger.Errorf("Failed to encode alert update for %s: %v", alertID, err)
		return
	}
	d.broadcaster.Broadcast(payload)
}

func (d *Dispatcher) broadcastAlert(alert *model.Alert) {
	payload, err := model.EncodeAlertMessage(alert)
	if err != nil {
		d.logger.Errorf("Failed to encode alert %s: %v", alert.ID, err)
		d.metrics.NotificationFailures.WithLabelValues(string(model.ChannelWebsocket)).Inc()
		return
	}
	d.broadcaster.Broadcast(payload)
	d.metrics.NotificationsSent.WithLabelValues(string(model.ChannelWebsocket)).Inc()
}

func (d *Dispatcher) sendEmail(alert *model.Alert, recipients []string) {
	if d.email == nil || !d.email.Configured() {
		d.logger.Debugf("Email channel selected for alert %s but SMTP is not configured", alert.ID)
		return
	}
	if len(recipients) == 0 {
		return
	}
	if err := d.email.Send(alert, recipients); err != nil {
		d.logger.Errorf("Failed to send email for alert %s: %v", alert.ID, err)
		d.metrics.NotificationFailures.WithLabelValues(string(model.ChannelEmail)).Inc()
		return
	}
	d.metrics.NotificationsSent.WithLabelValues(string(model.ChannelEmail)).Inc()
	d.logger.Infof("Email notification sent for alert %s to %d recipient(s)", alert.ID, len(recipients))
}

func (d *Dispatcher) sendSMS(alert *model.Alert, recipients []string) {
	if d.sms == nil {
		return
	}
	if err := d.sms.Send(alert, recipients); err != nil {
		d.logger.Errorf("Failed to send SMS for alert %s: %v", alert.ID, err)
		d.metrics.NotificationFailures.WithLabelValues(string(model.ChannelSMS)).Inc()
	}
}
