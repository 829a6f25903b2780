package models

// LocationUpdate is a position sample pushed by the host platform.
type LocationUpdate struct {
	Lat       float64    `json:"lat" validate:"required,gte=-90,lte=90"`
	Lng       float64    `json:"lng" validate:"required,gte=-180,lte=180"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// GeofenceEntry is a region-entry callback pushed by the host platform.
type GeofenceEntry struct {
	RegionID  string     `json:"regionId"`
	Lat       float64    `json:"lat"`
	Lng       float64    `json:"lng"`
	Timestamp *Timestamp `json:"timestamp,omitempty"`
}

// CheckLocationRequest is an on-demand risk check for a coordinate.
type CheckLocationRequest struct {
	Lat               float64 `json:"lat"`
	Lng               float64 `json:"lng"`
	BudgetUtilization float64 `json:"budgetUtilization"`
	MerchantCategory  string  `json:"merchantCategory,omitempty"`
}

// FeedbackRequest is a user's response to an intervention notification.
type FeedbackRequest struct {
	Response string `json:"response"`
}

// FeedbackResponse acknowledges a recorded response.
type FeedbackResponse struct {
	InterventionID string `json:"interventionId"`
	Response       string `json:"response"`
}
