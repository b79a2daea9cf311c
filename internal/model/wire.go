package model

import (
	"encoding/json"
	"time"
)

// Wire message type tags sent to websocket subscribers.
const (
	MsgStudentAlert          = "student_alert"
	MsgAlertUpdate           = "alert_update"
	MsgConnectionEstablished = "connection_established"
	MsgPong                  = "pong"
)

// Update kinds carried by alert_update messages.
const (
	UpdateAcknowledged = "acknowledged"
	UpdateResolved     = "resolved"
)

// AlertMessage is the full-alert envelope broadcast to subscribers.
type AlertMessage struct {
	Type  string `json:"type"`
	Alert *Alert `json:"alert"`
}

// UpdateMessage is the lightweight status-change envelope broadcast after an
// alert is acknowledged or resolved.
type UpdateMessage struct {
	Type       string    `json:"type"`
	AlertID    string    `json:"alert_id"`
	UpdateType string    `json:"update_type"`
	Timestamp  time.Time `json:"timestamp"`
}

// EncodeAlertMessage serializes alert into a student_alert envelope.
func EncodeAlertMessage(alert *Alert) ([]byte, error) {
	return json.Marshal(AlertMessage{Type: MsgStudentAlert, Alert: alert})
}

// EncodeUpdateMessage serializes an alert_update envelope for alertID.
func EncodeUpdateMessage(alertID, updateType string) ([]byte, error) {
	return json.Marshal(UpdateMessage{
		Type:       MsgAlertUpdate,
		AlertID:    alertID,
		UpdateType: updateType,
		Timestamp:  time.Now().UTC(),
	})
}
