package rest

import (
	"fmt"
	"time"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

// DefaultMaxRange bounds a single history request.
const DefaultMaxRange = 2 * 365 * 24 * time.Hour

type RequestValidator struct {
	maxRange     time.Duration
	validBuckets map[models.Bucket]bool
}

func NewRequestValidator(maxRange time.Duration) *RequestValidator {
	if maxRange <= 0 {
		maxRange = DefaultMaxRange
	}
	return &RequestValidator{
		maxRange: maxRange,
		validBuckets: map[models.Bucket]bool{
			models.Minute: true,
			models.Hour:   true,
			models.Day:    true,
		},
	}
}

// Validate checks if the history parameters are valid
func (v *RequestValidator) Validate(start, end time.Time, bucket models.Bucket) error {
	// Validate timestamps are present
	if start.IsZero() || end.IsZero() {
		return fmt.Errorf("missing timestamp")
	}

	// Validate time range
	if !start.Before(end) {
		return fmt.Errorf("start time must be before end time")
	}

	// Validate maximum time range
	if end.Sub(start) > v.maxRange {
		return fmt.Errorf("time range exceeds maximum allowed")
	}

	if !v.validBuckets[bucket] {
		return fmt.Errorf("invalid bucket: %s", bucket)
	}

	return nil
}
