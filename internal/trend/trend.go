// Package trend classifies the direction of the reservoir level.
//
// Classification compares the instantaneous reading with the mean of a short
// look-back window. The relative band is small because the calibrated signal
// only spans 4.0-6.8 mA.
package trend

import (
	"time"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

const (
	// MarginRatio is the half-width of the stable band, relative to the window mean.
	MarginRatio = 0.003

	// LookBack is the length of the window that ends at the current sample.
	LookBack = 15 * time.Minute
)

// Classify returns the window mean and the trend of current relative to it.
// An empty window yields (0, InsufficientData).
func Classify(current float64, window []float64) (float64, models.TrendState) {
	if len(window) == 0 {
		return 0, models.InsufficientData
	}

	var sum float64
	for _, v := range window {
		sum += v
	}
	avg := sum / float64(len(window))
	margin := avg * MarginRatio

	switch {
	case current > avg+margin:
		return avg, models.Filling
	case current < avg-margin:
		return avg, models.Draining
	default:
		return avg, models.Stable
	}
}

// Window returns the values of samples whose timestamps fall within
// [at-lookBack, at], preserving input order.
func Window(samples []models.RawSample, at time.Time, lookBack time.Duration) []float64 {
	from := at.Add(-lookBack)
	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Time.Before(from) || s.Time.After(at) {
			continue
		}
		values = append(values, s.ValueMA)
	}
	return values
}
