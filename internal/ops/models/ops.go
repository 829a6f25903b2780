package models

// Health represents the liveness of the daemon.
type Health struct {
	Status  HealthStatus           `json:"status"`
	Time    Timestamp              `json:"time"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemStatus represents the overall daemon status.
type SystemStatus struct {
	Status     HealthStatus      `json:"status"`
	Time       Timestamp         `json:"time"`
	Monitor    MonitorStatus     `json:"monitor"`
	Subsystems []SubsystemStatus `json:"subsystems"`
}

// MonitorStatus reports the monitoring session state.
type MonitorStatus struct {
	State       string           `json:"state"`
	Mode        string           `json:"mode"`
	ZoneCount   int              `json:"zoneCount"`
	RefreshedAt *Timestamp       `json:"refreshedAt,omitempty"`
	Pipeline    map[string]int64 `json:"pipeline"`
}

// SubsystemStatus represents the status of a dependency.
type SubsystemStatus struct {
	Name   string       `json:"name"`
	Status HealthStatus `json:"status"`
	Detail *string      `json:"detail,omitempty"`
}
