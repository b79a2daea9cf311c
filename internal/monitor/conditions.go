package monitor

import (
	"fmt"

	"student-risk-monitor/internal/model"
)

// alertSpec is what a condition check produces when it fires.
type alertSpec struct {
	Type         model.AlertType
	Level        model.AlertLevel
	Message      string
	Intervention bool
	Details      map[string]interface{}
}

// conditionCheck is one entry of the ordered condition table. Checks are
// pure: they read the monitoring context and either return an alertSpec or nil.
// New condition types are added here without touching dispatch.
type conditionCheck struct {
	name string
	eval func(studentName string, context map[string]interface{}) *alertSpec
}

// conditionChecks is evaluated in order on every monitor call whose context
// carries the relevant keys. Condition alerts are independent of rule
// thresholds.
var conditionChecks = []conditionCheck{
	{
		name: "attendance",
		eval: func(studentName string, context map[string]interface{}) *alertSpec {
			rate, ok := contextFloat(context, "attendance_rate")
			if !ok || rate >= 0.75 {
				return nil
			}
			level := model.LevelMedium
			if rate < 0.60 {
				level = model.LevelHigh
			}
			return &alertSpec{
				Type:         model.AlertAttendanceDrop,
				Level:        level,
				Message:      fmt.Sprintf("%s's attendance has dropped to %.0f%%", studentName, rate*100),
				Intervention: true,
				Details:      map[string]interface{}{"attendance_rate": rate},
			}
		},
	},
	{
		name: "grades",
		eval: func(studentName string, context map[string]interface{}) *alertSpec {
			trend, ok := context["grade_trend"].(string)
			if !ok || trend != "declining" {
				return nil
			}
			return &alertSpec{
				Type:         model.AlertGradeDecline,
				Level:        model.LevelMedium,
				Message:      fmt.Sprintf("%s's grades are declining", studentName),
				Intervention: true,
				Details:      map[string]interface{}{"grade_trend": trend},
			}
		},
	},
	{
		name: "engagement",
		eval: func(studentName string, context map[string]interface{}) *alertSpec {
			score, ok := contextFloat(context, "engagement_score")
			if !ok || score >= 0.50 {
				return nil
			}
			return &alertSpec{
				Type:         model.AlertEngagementDrop,
				Level:        model.LevelMedium,
				Message:      fmt.Sprintf("%s shows low engagement (%.2f)", studentName, score),
				Intervention: true,
				Details:      map[string]interface{}{"engagement_score": score},
			}
		},
	},
}

// contextFloat reads a numeric context value. JSON decoding hands us
// float64, but callers constructing the map directly may pass ints.
func contextFloat(context map[string]interface{}, key string) (float64, bool) {
	switch v := context[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	default:
		return 0, false
	}
}
