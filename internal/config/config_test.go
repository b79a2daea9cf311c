package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"student-risk-monitor/internal/config"
	"student-risk-monitor/internal/model"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk_monitor.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFullConfig(t *testing.T) {
	path := writeConfig(t, `
server:
  listen_addr: ":9090"
smtp:
  host: smtp.school.edu
  port: 465
  from: alerts@school.edu
  username: alerts
logging:
  level: DEBUG
  format: json
rules:
  - id: counselor-escalation
    name: Counselor Escalation
    alert_types: [INTERVENTION_NEEDED]
    risk_threshold: 0.6
    enabled: true
    channels: [websocket, email]
    recipients: [counselor@school.edu]
    escalation_minutes: 20
`)

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %s", cfg.Server.ListenAddr)
	}
	if cfg.SMTP.Host != "smtp.school.edu" || cfg.SMTP.Port != 465 {
		t.Errorf("smtp: got %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	}
	if cfg.Logging.Level != "DEBUG" || cfg.Logging.Format != "json" {
		t.Errorf("logging: got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if len(cfg.Rules) != 1 {
		t.Fatalf("rules: got %d, want 1", len(cfg.Rules))
	}
	rule := cfg.Rules[0]
	if rule.Name != "Counselor Escalation" || rule.RiskThreshold != 0.6 {
		t.Errorf("rule fields: %+v", rule)
	}
	if len(rule.Channels) != 2 || rule.Channels[0] != model.ChannelWebsocket {
		t.Errorf("rule channels: %v", rule.Channels)
	}
	if rule.EscalationMinutes != 20 {
		t.Errorf("escalation_minutes: got %d", rule.EscalationMinutes)
	}
}

func TestValidateAppliesDefaults(t *testing.T) {
	cfg, err := config.Load(writeConfig(t, "server: {}\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("default listen_addr: got %s", cfg.Server.ListenAddr)
	}
	if cfg.SMTP.Port != 587 {
		t.Errorf("default smtp port: got %d", cfg.SMTP.Port)
	}
	if cfg.Logging.Level != "INFO" || cfg.Logging.Format != "text" {
		t.Errorf("default logging: got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
}

func TestLoadRejectsSMTPHostWithoutFrom(t *testing.T) {
	_, err := config.Load(writeConfig(t, "smtp:\n  host: smtp.school.edu\n"))
	if err == nil {
		t.Fatal("expected error for smtp.host without smtp.from")
	}
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	if _, err := config.Load(writeConfig(t, "server: [unclosed")); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestDefaultIsValid(t *testing.T) {
	cfg := config.Default()
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("default listen_addr: got %s", cfg.Server.ListenAddr)
	}
}

func TestSMTPPasswordFromEnv(t *testing.T) {
	t.Setenv("SMTP_PASSWORD", "hunter2")
	if got := config.SMTPPassword(); got != "hunter2" {
		t.Errorf("SMTPPassword: got %q", got)
	}
}
