package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"student-risk-monitor/internal/alerting"
	"student-risk-monitor/internal/api"
	"student-risk-monitor/internal/config"
	"student-risk-monitor/internal/dispatch"
	"student-risk-monitor/internal/metrics"
	"student-risk-monitor/internal/monitor"
	"student-risk-monitor/internal/rules"
	"student-risk-monitor/internal/store"
	"student-risk-monitor/internal/utils"
	"student-risk-monitor/internal/ws"

	"github.com/joho/godotenv"
)

func main() {
	var (
		configFile = flag.String("config", "configs/risk_monitor.yaml", "Configuration file path (YAML)")
	)
	flag.Parse()

	// Secrets (SMTP password) come from the environment; .env is optional.
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Printf("Warning: failed to load .env: %v\n", err)
	}

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Printf("Failed to load config %s: %v\n", *configFile, err)
		fmt.Println("Using default configuration...")
		cfg = config.Default()
	} else {
		fmt.Printf("Loaded configuration from %s\n", *configFile)
	}

	logger := utils.NewLogger(cfg.Logging.Level, cfg.Logging.Format)

	registry := metrics.NewRegistry()
	m := metrics.New(registry)

	ruleSet := rules.NewDefaultSet(logger)
	for _, rule := range cfg.Rules {
		if _, err := ruleSet.Add(rule); err != nil {
			logger.Errorf("Skipping invalid rule %q from config: %v", rule.Name, err)
		}
	}

	alertStore := store.New(logger)
	hub := ws.NewHub(alertStore, m, logger)

	emailSender := dispatch.NewSMTPEmailSender(
		cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From,
		cfg.SMTP.Username, config.SMTPPassword(), logger)
	if emailSender.Configured() {
		logger.Infof("Email notifications enabled via %s:%d", cfg.SMTP.Host, cfg.SMTP.Port)
	} else {
		logger.Info("Email notifications disabled (no SMTP transport configured)")
	}
	smsSender := dispatch.NewLogSMSSender(logger)

	dispatcher := dispatch.New(ruleSet, hub, emailSender, smsSender, m, logger)
	riskMonitor := monitor.New(ruleSet, alertStore, dispatcher, m, logger)
	svc := alerting.New(riskMonitor, alertStore, ruleSet, dispatcher, hub, logger)

	handlers := api.NewHandlers(svc, logger)
	router := api.NewRouter(handlers, svc.SubscriberHandler(), registry)

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: router,
	}

	go func() {
		logger.Infof("Student risk monitor listening on %s", cfg.Server.ListenAddr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("HTTP server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("Shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown error: %v", err)
	}
}
