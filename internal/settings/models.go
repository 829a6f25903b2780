// Package settings provides runtime-tunable monitor settings.
package settings

import (
	"encoding/json"
	"time"
)

// Well-known setting keys.
const (
	// KeyMonitoringEnabled gates the whole proximity monitoring session.
	KeyMonitoringEnabled = "monitoring_enabled"

	// KeyNotificationsEnabled gates notification delivery while still
	// scoring and recording assessments.
	KeyNotificationsEnabled = "notifications_enabled"

	// KeyNotificationThreshold is the minimum risk probability that
	// produces a notification.
	KeyNotificationThreshold = "notification_threshold"

	// KeyPreferredMode selects the proximity strategy: "geofence" or
	// "polling".
	KeyPreferredMode = "preferred_mode"

	// KeyPollIntervalS is the position sampling interval in polling mode.
	KeyPollIntervalS = "poll_interval_s"
)

// Setting is one runtime setting with its current value.
type Setting struct {
	Key       string      `json:"key"`
	Value     interface{} `json:"value"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// SettingList is the wire shape of a full settings read.
type SettingList struct {
	Items []Setting `json:"items"`
}

// SettingUpdate is a single update in a PUT request.
type SettingUpdate struct {
	Key   string      `json:"key"`
	Value interface{} `json:"value"`
}

// UpdateRequest is a request to change one or more settings.
type UpdateRequest struct {
	Updates []SettingUpdate `json:"updates"`
}

// BoolValue returns the setting as a boolean, or defaultValue when the
// setting is nil or not a boolean.
func (s *Setting) BoolValue(defaultValue bool) bool {
	if s == nil {
		return defaultValue
	}
	switch v := s.Value.(type) {
	case bool:
		return v
	case float64:
		// JSON numbers decode as float64
		return v != 0
	default:
		return defaultValue
	}
}

// StringValue returns the setting as a string, or defaultValue.
func (s *Setting) StringValue(defaultValue string) string {
	if s == nil {
		return defaultValue
	}
	if v, ok := s.Value.(string); ok {
		return v
	}
	return defaultValue
}

// IntValue returns the setting as an integer, or defaultValue.
func (s *Setting) IntValue(defaultValue int) int {
	if s == nil {
		return defaultValue
	}
	switch v := s.Value.(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return defaultValue
	}
}

// Float64Value returns the setting as a float64, or defaultValue.
func (s *Setting) Float64Value(defaultValue float64) float64 {
	if s == nil {
		return defaultValue
	}
	switch v := s.Value.(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return defaultValue
	}
}

// JSONValue unmarshals the setting value into target.
func (s *Setting) JSONValue(target interface{}) error {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s.Value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, target)
}

// DefaultSettings returns the out-of-the-box monitor settings.
func DefaultSettings() map[string]*Setting {
	now := time.Now()
	return map[string]*Setting{
		KeyMonitoringEnabled: {
			Key:       KeyMonitoringEnabled,
			Value:     true,
			UpdatedAt: now,
		},
		KeyNotificationsEnabled: {
			Key:       KeyNotificationsEnabled,
			Value:     true,
			UpdatedAt: now,
		},
		KeyNotificationThreshold: {
			Key:       KeyNotificationThreshold,
			Value:     0.70,
			UpdatedAt: now,
		},
		KeyPreferredMode: {
			Key:       KeyPreferredMode,
			Value:     "geofence",
			UpdatedAt: now,
		},
		KeyPollIntervalS: {
			Key:       KeyPollIntervalS,
			Value:     30,
			UpdatedAt: now,
		},
	}
}
