package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"student-risk-monitor/internal/alerting"
	"student-risk-monitor/internal/model"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Handlers is the HTTP boundary over the alerting core. Authentication and
// CORS belong to the proxy in front of this service.
type Handlers struct {
	svc    *alerting.Service
	logger *logrus.Logger
}

// NewHandlers creates the HTTP handler set.
func NewHandlers(svc *alerting.Service, logger *logrus.Logger) *Handlers {
	return &Handlers{svc: svc, logger: logger}
}

type monitorRequest struct {
	StudentID   string                 `json:"student_id"`
	StudentName string                 `json:"student_name"`
	RiskScore   float64                `json:"risk_score"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

// MonitorRisk is the scorer boundary: it feeds a fresh risk score into the
// monitor and returns the alerts it produced.
func (h *Handlers) MonitorRisk(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.StudentID == "" {
		writeError(w, http.StatusBadRequest, "student_id is required")
		return
	}

	alerts, err := h.svc.MonitorRisk(req.StudentID, req.StudentName, req.RiskScore, req.Context)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Errorf("Monitor failed for student %s: %v", req.StudentID, err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	if alerts == nil {
		alerts = []*model.Alert{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

// GetActiveAlerts lists unresolved alerts newest first.
func (h *Handlers) GetActiveAlerts(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	alerts := h.svc.GetActiveAlerts(studentID)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
	})
}

// GetAlertHistory lists alert history newest first.
func (h *Handlers) GetAlertHistory(w http.ResponseWriter, r *http.Request) {
	studentID := r.URL.Query().Get("student_id")
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	alerts := h.svc.GetHistory(studentID, limit)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"items": alerts,
		"total": len(alerts),
	})
}

type actionRequest struct {
	UserID string `json:"user_id"`
	Notes  string `json:"notes,omitempty"`
}

// AcknowledgeAlert marks an alert acknowledged.
func (h *Handlers) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.svc.AcknowledgeAlert(id, req.UserID) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "acknowledged", "alert_id": id})
}

// ResolveAlert resolves an alert.
func (h *Handlers) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	if !h.svc.ResolveAlert(id, req.UserID, req.Notes) {
		writeError(w, http.StatusNotFound, "Alert not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "resolved", "alert_id": id})
}

// GetRules lists the notification rules.
func (h *Handlers) GetRules(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Rules())
}

// CreateRule registers a new notification rule.
func (h *Handlers) CreateRule(w http.ResponseWriter, r *http.Request) {
	var rule model.NotificationRule
	if err := json.NewDecoder(r.Body).Decode(&rule); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	id, err := h.svc.CreateRule(rule)
	if err != nil {
		var verr *model.ValidationError
		if errors.As(err, &verr) {
			writeError(w, http.StatusBadRequest, verr.Error())
			return
		}
		h.logger.Errorf("Rule creation failed: %v", err)
		writeError(w, http.StatusInternalServerError, "Internal error")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetStatistics returns alert, connection, rule, and student counts.
func (h *Handlers) GetStatistics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.GetStatistics())
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK")) //nolint:errcheck
}

// Helper functions
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data) //nolint:errcheck
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
