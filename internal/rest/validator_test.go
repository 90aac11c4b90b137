package rest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

func TestRequestValidator_Validate(t *testing.T) {
	validator := NewRequestValidator(0)
	now := time.Now()

	tests := []struct {
		name       string
		start      time.Time
		end        time.Time
		bucket     models.Bucket
		wantErr    bool
		errMessage string
	}{
		{
			name:   "valid request",
			start:  now.Add(-24 * time.Hour),
			end:    now,
			bucket: models.Hour,
		},
		{
			name:       "missing timestamp",
			start:      time.Time{},
			end:        now,
			bucket:     models.Hour,
			wantErr:    true,
			errMessage: "missing timestamp",
		},
		{
			name:       "invalid time range",
			start:      now,
			end:        now.Add(-24 * time.Hour),
			bucket:     models.Hour,
			wantErr:    true,
			errMessage: "start time must be before end time",
		},
		{
			name:       "empty time range",
			start:      now,
			end:        now,
			bucket:     models.Minute,
			wantErr:    true,
			errMessage: "start time must be before end time",
		},
		{
			name:       "exceeds max time range",
			start:      now.Add(-3 * 365 * 24 * time.Hour),
			end:        now,
			bucket:     models.Day,
			wantErr:    true,
			errMessage: "time range exceeds maximum allowed",
		},
		{
			name:       "invalid bucket",
			start:      now.Add(-24 * time.Hour),
			end:        now,
			bucket:     models.Bucket("week"),
			wantErr:    true,
			errMessage: "invalid bucket: week",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validator.Validate(tt.start, tt.end, tt.bucket)
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, tt.errMessage, err.Error())
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRequestValidator_CustomMaxRange(t *testing.T) {
	validator := NewRequestValidator(7 * 24 * time.Hour)
	now := time.Now()

	assert.NoError(t, validator.Validate(now.Add(-7*24*time.Hour), now, models.Hour))
	assert.Error(t, validator.Validate(now.Add(-8*24*time.Hour), now, models.Hour))
}
