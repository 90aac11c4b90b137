package trend

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name    string
		current float64
		window  []float64
		wantAvg float64
		want    models.TrendState
	}{
		{
			name:    "empty window",
			current: 5.1,
			window:  nil,
			wantAvg: 0,
			want:    models.InsufficientData,
		},
		{
			name:    "filling above band",
			current: 5.1,
			window:  []float64{5.0, 5.0, 5.0},
			wantAvg: 5.0,
			want:    models.Filling,
		},
		{
			name:    "draining below band",
			current: 4.9,
			window:  []float64{5.0, 5.0, 5.0},
			wantAvg: 5.0,
			want:    models.Draining,
		},
		{
			name:    "inside band",
			current: 5.01,
			window:  []float64{5.0, 5.0, 5.0},
			wantAvg: 5.0,
			want:    models.Stable,
		},
		{
			name:    "equal to mean",
			current: 5.5,
			window:  []float64{5.0, 6.0},
			wantAvg: 5.5,
			want:    models.Stable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			avg, state := Classify(tt.current, tt.window)
			assert.InDelta(t, tt.wantAvg, avg, 1e-9)
			assert.Equal(t, tt.want, state)
		})
	}
}

func TestClassifyMargin(t *testing.T) {
	avg, _ := Classify(5.1, []float64{5.0, 5.0, 5.0})
	assert.InDelta(t, 0.015, avg*MarginRatio, 1e-12)
}

func TestClassifyStableBandProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 5000; i++ {
		n := 1 + rng.Intn(20)
		window := make([]float64, n)
		var sum float64
		for j := range window {
			window[j] = 4.0 + rng.Float64()*2.8
			sum += window[j]
		}
		mean := sum / float64(n)
		current := mean + (rng.Float64()-0.5)*0.2

		avg, state := Classify(current, window)

		assert.Contains(t, []models.TrendState{models.Filling, models.Draining, models.Stable}, state)
		stable := math.Abs(current-avg) <= avg*MarginRatio
		assert.Equal(t, stable, state == models.Stable, "current=%v avg=%v", current, avg)
	}
}

func TestWindow(t *testing.T) {
	at := time.Date(2025, 12, 13, 10, 0, 0, 0, time.UTC)
	samples := []models.RawSample{
		{Time: at.Add(-20 * time.Minute), ValueMA: 4.1},
		{Time: at.Add(-15 * time.Minute), ValueMA: 4.2},
		{Time: at.Add(-5 * time.Minute), ValueMA: 4.3},
		{Time: at, ValueMA: 4.4},
		{Time: at.Add(time.Minute), ValueMA: 4.5},
	}

	assert.Equal(t, []float64{4.2, 4.3, 4.4}, Window(samples, at, LookBack))
	assert.Empty(t, Window(nil, at, LookBack))
}
