package store

import (
	"sort"
	"sync"
	"time"

	"student-risk-monitor/internal/model"

	"github.com/sirupsen/logrus"
)

// DefaultHistoryLimit is the query limit applied when the caller does not
// give one.
const DefaultHistoryLimit = 50

// maxHistory caps the in-memory history log; the oldest entries are dropped
// once the cap is exceeded.
const maxHistory = 1000

// Store owns the alert lifecycle: the active map, the history log, and the
// acknowledge/resolve transitions. All state is in-memory and process-wide.
//
// One RWMutex guards everything. That already serializes racing
// acknowledge/resolve calls on the same id: whichever runs second sees the
// first's effect, and a resolve racing an acknowledge always wins because
// resolve removes the alert from the active map. Mutations are map and
// field writes held for microseconds, so finer-grained locking buys
// nothing here.
type Store struct {
	logger *logrus.Logger

	mu      sync.RWMutex
	active  map[string]*model.Alert
	history []*model.Alert
}

// Stats is the alert-count summary produced by Statistics.
type Stats struct {
	Total    int            `json:"total_alerts"`
	Active   int            `json:"active_alerts"`
	Resolved int            `json:"resolved_alerts"`
	ByLevel  map[string]int `json:"alerts_by_level"`
	ByType   map[string]int `json:"alerts_by_type"`
}

// New creates an empty alert store.
func New(logger *logrus.Logger) *Store {
	return &Store{
		logger:  logger,
		active:  make(map[string]*model.Alert),
		history: make([]*model.Alert, 0),
	}
}

// Create inserts alert into the active map and appends it to the history
// log. Both views hold the alert until it is resolved.
func (s *Store) Create(alert *model.Alert) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active[alert.ID] = alert
	s.history = append(s.history, alert)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}

	s.logger.Infof("Alert created: %s [%s/%s] student=%s risk=%.2f",
		alert.ID, alert.Type, alert.Level, alert.StudentID, alert.RiskScore)
}

// Acknowledge marks an active alert as acknowledged by userID. It returns
// false when id is unknown; the alert stays active either way.
func (s *Store) Acknowledge(id, userID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.active[id]
	if !ok {
		return false
	}
	alert.Acknowledged = true
	alert.Assignee = userID
	s.logger.Infof("Alert %s acknowledged by %s", id, userID)
	return true
}

// Resolve marks an alert resolved by userID, removes it from the active
// map, and replaces its history entry in place so the id appears exactly
// once in history afterwards. It returns false when id is unknown.
func (s *Store) Resolve(id, userID, notes string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	alert, ok := s.active[id]
	if !ok {
		return false
	}
	alert.Resolved = true
	alert.Assignee = userID
	alert.Details["resolved_by"] = userID
	alert.Details["resolved_at"] = time.Now().UTC().Format(time.RFC3339)
	if notes != "" {
		alert.Details["resolution_notes"] = notes
	}
	delete(s.active, id)

	replaced := false
	for i := range s.history {
		if s.history[i].ID == id {
			s.history[i] = alert
			replaced = true
			break
		}
	}
	if !replaced {
		// The entry can only be missing when the history cap evicted it.
		s.history = append(s.history, alert)
	}

	s.logger.Infof("Alert %s resolved by %s", id, userID)
	return true
}

// GetActive returns the active alerts newest first, optionally filtered to
// one student.
func (s *Store) GetActive(studentID string) []model.Alert {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Alert, 0, len(s.active))
	for _, alert := range s.active {
		if studentID != "" && alert.StudentID != studentID {
			continue
		}
		result = append(result, *alert)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})
	return result
}

// RecentActive returns up to limit active alerts, newest first. Used to
// replay state to freshly connected subscribers.
func (s *Store) RecentActive(limit int) []model.Alert {
	alerts := s.GetActive("")
	if limit > 0 && len(alerts) > limit {
		alerts = alerts[:limit]
	}
	return alerts
}

// GetHistory returns up to limit history entries newest first, optionally
// filtered to one student. A non-positive limit means DefaultHistoryLimit.
func (s *Store) GetHistory(studentID string, limit int) []model.Alert {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.Alert, 0, limit)
	for i := len(s.history) - 1; i >= 0 && len(result) < limit; i-- {
		alert := s.history[i]
		if studentID != "" && alert.StudentID != studentID {
			continue
		}
		result = append(result, *alert)
	}
	return result
}

// ActiveCount returns the number of unresolved alerts.
func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.active)
}

// Statistics tallies alert counts over the history log, grouped by level
// and by type.
func (s *Store) Statistics() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{
		Total:   len(s.history),
		Active:  len(s.active),
		ByLevel: make(map[string]int),
		ByType:  make(map[string]int),
	}
	stats.Resolved = stats.Total - stats.Active
	for _, alert := range s.history {
		stats.ByLevel[string(alert.Level)]++
		stats.ByType[string(alert.Type)]++
	}
	return stats
}
