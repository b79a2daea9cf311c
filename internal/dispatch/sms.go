package dispatch

import (
	"student-risk-monitor/internal/model"

	"github.com/sirupsen/logrus"
)

// LogSMSSender is the sms channel stub: it logs what would be sent and
// reports success so the channel keeps flowing through rule matching.
type LogSMSSender struct {
	logger *logrus.Logger
}

// NewLogSMSSender creates the sms stub.
func NewLogSMSSender(logger *logrus.Logger) *LogSMSSender {
	return &LogSMSSender{logger: logger}
}

// Send logs the alert instead of delivering it. SMS delivery is not
// implemented; the stub keeps the channel contract stable.
func (s *LogSMSSender) Send(alert *model.Alert, recipients []string) error {
	s.logger.Warnf("SMS ALERT (not sent, no provider) [%s] %s: %s", alert.Level, alert.Type, alert.Message)
	return nil
}
