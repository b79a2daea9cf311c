package dispatch

import (
	"bytes"
	"fmt"
	"html/template"
	"time"

	"student-risk-monitor/internal/model"

	"github.com/sirupsen/logrus"
	"gopkg.in/gomail.v2"
)

const emailBodyTemplate = `<html>
<body>
<h2>Student Alert: {{.Alert.StudentName}}</h2>
<p><strong>Level:</strong> {{.Alert.Level}}</p>
<p><strong>Type:</strong> {{.Alert.Type}}</p>
<p><strong>Risk Score:</strong> {{printf "%.2f" .Alert.RiskScore}} (previous {{printf "%.2f" .Alert.PreviousRiskScore}})</p>
<p><strong>Time:</strong> {{.Timestamp}}</p>
<p>{{.Alert.Message}}</p>
{{if .Alert.InterventionRecommended}}<p><strong>Intervention recommended.</strong></p>{{end}}
{{if .Alert.Details}}
<h3>Details</h3>
<ul>
{{range $key, $value := .Alert.Details}}<li>{{$key}}: {{$value}}</li>
{{end}}</ul>
{{end}}
</body>
</html>`

// SMTPEmailSender delivers alert emails through an SMTP relay using gomail.
type SMTPEmailSender struct {
	host   string
	port   int
	from   string
	dialer *gomail.Dialer
	tmpl   *template.Template
	logger *logrus.Logger
}

// NewSMTPEmailSender builds an email sender. With an empty host or from
// address the sender reports itself unconfigured and Dispatch skips the
// email channel.
func NewSMTPEmailSender(host string, port int, from, username, password string, logger *logrus.Logger) *SMTPEmailSender {
	s := &SMTPEmailSender{
		host:   host,
		port:   port,
		from:   from,
		tmpl:   template.Must(template.New("alert_email").Parse(emailBodyTemplate)),
		logger: logger,
	}
	if host != "" {
		s.dialer = gomail.NewDialer(host, port, username, password)
	}
	return s
}

// Configured reports whether SMTP transport details are present.
func (s *SMTPEmailSender) Configured() bool {
	return s.dialer != nil && s.from != ""
}

// Send renders and delivers the alert email to recipients.
func (s *SMTPEmailSender) Send(alert *model.Alert, recipients []string) error {
	if !s.Configured() {
		return fmt.Errorf("smtp transport not configured")
	}

	body, err := s.renderBody(alert)
	if err != nil {
		return fmt.Errorf("render email body: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", s.from)
	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", Subject(alert))
	msg.SetBody("text/html", body)

	if err := s.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// Subject builds the alert email subject line.
func Subject(alert *model.Alert) string {
	return fmt.Sprintf("Student Alert: %s - %s", alert.StudentName, alert.Level)
}

func (s *SMTPEmailSender) renderBody(alert *model.Alert) (string, error) {
	var buf bytes.Buffer
	data := struct {
		Alert     *model.Alert
		Timestamp string
	}{
		Alert:     alert,
		Timestamp: alert.Timestamp.Format(time.RFC3339),
	}
	if err := s.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
