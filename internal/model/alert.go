package model

import (
	"time"

	"github.com/google/uuid"
)

// AlertType classifies what condition produced an alert.
type AlertType string

const (
	AlertRiskThreshold      AlertType = "RISK_THRESHOLD"
	AlertRiskIncrease       AlertType = "RISK_INCREASE"
	AlertAttendanceDrop     AlertType = "ATTENDANCE_DROP"
	AlertGradeDecline       AlertType = "GRADE_DECLINE"
	AlertEngagementDrop     AlertType = "ENGAGEMENT_DROP"
	AlertInterventionNeeded AlertType = "INTERVENTION_NEEDED"
)

// AlertTypes lists every valid alert type.
var AlertTypes = []AlertType{
	AlertRiskThreshold,
	AlertRiskIncrease,
	AlertAttendanceDrop,
	AlertGradeDecline,
	AlertEngagementDrop,
	AlertInterventionNeeded,
}

// Valid reports whether t is a member of the closed alert type set.
func (t AlertType) Valid() bool {
	for _, known := range AlertTypes {
		if t == known {
			return true
		}
	}
	return false
}

// AlertLevel is the severity of an alert.
type AlertLevel string

const (
	LevelLow      AlertLevel = "LOW"
	LevelMedium   AlertLevel = "MEDIUM"
	LevelHigh     AlertLevel = "HIGH"
	LevelCritical AlertLevel = "CRITICAL"
)

// Alert is a notification about a student's risk condition. An alert is
// created once, optionally acknowledged while active, and resolved exactly
// once; a resolved alert never returns to the active set.
type Alert struct {
	ID                      string                 `json:"alert_id"`
	StudentID               string                 `json:"student_id"`
	StudentName             string                 `json:"student_name"`
	Type                    AlertType              `json:"alert_type"`
	Level                   AlertLevel             `json:"alert_level"`
	RiskScore               float64                `json:"risk_score"`
	PreviousRiskScore       float64                `json:"previous_risk_score"`
	Message                 string                 `json:"message"`
	Details                 map[string]interface{} `json:"details"`
	Timestamp               time.Time              `json:"timestamp"`
	Acknowledged            bool                   `json:"acknowledged"`
	Resolved                bool                   `json:"resolved"`
	Assignee                string                 `json:"assignee,omitempty"`
	InterventionRecommended bool                   `json:"intervention_recommended"`
}

// NewAlert constructs an alert with a fresh unique id and UTC timestamp.
func NewAlert(studentID, studentName string, alertType AlertType, level AlertLevel, risk, previousRisk float64, message string, details map[string]interface{}) *Alert {
	if details == nil {
		details = make(map[string]interface{})
	}
	return &Alert{
		ID:                uuid.NewString(),
		StudentID:         studentID,
		StudentName:       studentName,
		Type:              alertType,
		Level:             level,
		RiskScore:         risk,
		PreviousRiskScore: previousRisk,
		Message:           message,
		Details:           details,
		Timestamp:         time.Now().UTC(),
	}
}

// Clone returns a copy with its own Details map. Readers that serialize an
// alert outside the store's lock must work on a clone, since the stored
// original keeps changing through acknowledge and resolve.
func (a *Alert) Clone() *Alert {
	clone := *a
	clone.Details = make(map[string]interface{}, len(a.Details))
	for k, v := range a.Details {
		clone.Details[k] = v
	}
	return &clone
}
