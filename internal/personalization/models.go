// Package personalization maintains per-merchant regret scores learned from
// intervention feedback.
package personalization

import (
	"errors"
	"time"
)

// Repository errors.
var (
	ErrRecordNotFound = errors.New("personalization record not found")
)

// Learning constants.
const (
	// DefaultRegretScore is the conservative baseline for merchants with no
	// feedback history.
	DefaultRegretScore = 0.75

	// LearningRate is the EMA weight given to a single feedback sample.
	LearningRate = 0.2
)

// Record is the personalized regret estimate for one merchant.
type Record struct {
	MerchantKey string
	RegretScore float64
	LastUpdated time.Time
}
