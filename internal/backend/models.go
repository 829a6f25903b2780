// Package backend provides a client for the Pigeon backend collaborator API.
package backend

import (
	"encoding/json"
	"errors"
)

// Client errors.
var (
	// ErrUnavailable indicates a transport failure, a non-2xx status, or an
	// open circuit. Callers may degrade to local behavior.
	ErrUnavailable = errors.New("backend unavailable")

	// ErrMalformedResponse indicates the backend answered but the body could
	// not be trusted. Callers must fail closed rather than guess.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// dangerZonesResponse is the wire shape of GET /danger-zones.
type dangerZonesResponse struct {
	DangerZones []dangerZoneData `json:"danger_zones"`
}

// dangerZoneData decodes one catalog entry. Older catalog payloads used
// "radius" and "merchant_category"; both spellings are accepted.
type dangerZoneData struct {
	ID                    string   `json:"id"`
	MerchantName          string   `json:"merchant_name"`
	Lat                   float64  `json:"lat"`
	Lng                   float64  `json:"lng"`
	RadiusM               float64  `json:"radius_m"`
	Radius                float64  `json:"radius"`
	Category              string   `json:"category"`
	MerchantCategory      string   `json:"merchant_category"`
	HistoricalRegretCount int      `json:"historical_regret_count"`
	AvgRegretScore        *float64 `json:"avg_regret_score"`
}

// PredictRequest is the body of POST /predict. is_weekend travels as 0/1.
type PredictRequest struct {
	DistanceToMerchant float64 `json:"distance_to_merchant"`
	HourOfDay          int     `json:"hour_of_day"`
	IsWeekend          int     `json:"is_weekend"`
	BudgetUtilization  float64 `json:"budget_utilization"`
	MerchantRegretRate float64 `json:"merchant_regret_rate"`
	DwellTime          float64 `json:"dwell_time"`
}

// PredictResponse is the body of a /predict reply.
type PredictResponse struct {
	Probability float64  `json:"probability"`
	ShouldNudge bool     `json:"should_nudge"`
	RiskLevel   string   `json:"risk_level"`
	Threshold   *float64 `json:"threshold"`
	ModelType   string   `json:"model_type"`
	NudgeReason string   `json:"nudge_reason,omitempty"`
}

// CheckLocationRequest is the body of POST /check-location. The camelCase
// field names are part of the backend contract.
type CheckLocationRequest struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	BudgetUtilization float64 `json:"budgetUtilization"`
	MerchantCategory  string  `json:"merchantCategory"`
}

// CheckLocationResponse is the body of a /check-location reply.
type CheckLocationResponse struct {
	InDangerZone         bool            `json:"in_danger_zone"`
	DangerZone           *dangerZoneData `json:"danger_zone,omitempty"`
	PredictedProbability float64         `json:"predicted_probability"`
	RegretScore          float64         `json:"regret_score"`
	RiskLevel            string          `json:"risk_level"`
	ShouldNotify         bool            `json:"should_notify"`
	NotificationMessage  string          `json:"notification_message,omitempty"`
	InterventionID       *ID             `json:"intervention_id,omitempty"`
}

// ID is a backend-assigned identifier. The backend sends server-side
// intervention ids as bare row numbers, so both JSON strings and numbers
// are accepted on the wire.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*id = ID(n.String())
	return nil
}

// feedbackRequest is the body of POST /intervention-feedback.
type feedbackRequest struct {
	InterventionID string `json:"intervention_id"`
	UserResponse   string `json:"user_response"`
}
