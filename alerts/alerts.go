package alerts

import (
	"github.com/jrsteele09/go-flume-client/timestamp"
	"github.com/jrsteele09/go-flume-client/usage"
)

// UsageAlert is an alert raised when a device's usage matched a rule.
type UsageAlert struct {
	ID                int64          `json:"id"`
	DeviceID          string         `json:"device_id"`
	TriggeredDatetime timestamp.Time `json:"triggered_datetime"`
	FlumeLeak         bool           `json:"flume_leak"`
	Query             *usage.Query   `json:"query,omitempty"`
	EventRuleName     string         `json:"event_rule_name"`
}

// NotificationType is Flume's numeric notification category.
type NotificationType int

const (
	NotificationUsageAlert NotificationType = 1
	NotificationBudget     NotificationType = 2
	NotificationGeneral    NotificationType = 4
	NotificationHeartbeat  NotificationType = 8
	NotificationBattery    NotificationType = 16
)

// Notification is an entry in the account's notification feed.
type Notification struct {
	ID              int64            `json:"id"`
	DeviceID        string           `json:"device_id"`
	UserID          int64            `json:"user_id,omitempty"`
	Type            NotificationType `json:"type"`
	Title           string           `json:"title"`
	Message         string           `json:"message"`
	Read            bool             `json:"read"`
	CreatedDatetime timestamp.Time   `json:"created_datetime"`
	EventRule       string           `json:"event_rule"`
	Extra           map[string]any   `json:"extra,omitempty"`
}

// Leak reports whether Flume flagged the notification as a detected leak.
func (n Notification) Leak() bool {
	if n.Extra == nil {
		return false
	}
	leak, _ := n.Extra["flume_leak"].(bool)
	return leak
}

// Rule is a usage alert rule configured on a device.
type Rule struct {
	ID          RuleID  `json:"id"`
	Name        string  `json:"name"`
	Active      bool    `json:"active"`
	FlowRate    float64 `json:"flow_rate"`
	Duration    int     `json:"duration"`
	NotifyEvery int     `json:"notify_every"`
}
