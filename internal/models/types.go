package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TelemetryResponse represents the timeseries payload returned by the remote API.
// A nil IA means the "ia" key was absent.
type TelemetryResponse struct {
	IA []TelemetryPoint `json:"ia"`
}

// TelemetryPoint is one entry of the "ia" series as sent on the wire.
type TelemetryPoint struct {
	TS    int64       `json:"ts"`
	Value NumericText `json:"value"`
}

// NumericText decodes a JSON number or a numeric string. NaN and infinities
// are rejected.
type NumericText float64

func (n *NumericText) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return fmt.Errorf("missing numeric value")
	}
	if s[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.TrimSpace(str)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid numeric value %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite numeric value %q", s)
	}
	*n = NumericText(f)
	return nil
}

// RawSample is a single reading of the loop current.
type RawSample struct {
	Time    time.Time `json:"time"`
	ValueMA float64   `json:"value_ma"`
}

// SeriesPoint is a single time-bucketed data point of a historical series.
type SeriesPoint struct {
	Time         time.Time `json:"time"`
	ValueMA      float64   `json:"value_ma"`
	ValuePercent float64   `json:"value_percent"`
}

// Snapshot is the decoded current state of the reservoir.
type Snapshot struct {
	User             string     `json:"user"`
	SiteLabel        string     `json:"site_label"`
	Situation        Situation  `json:"situation"`
	CapturedAtLocal  string     `json:"captured_at_local"`
	CapturedAtDevice time.Time  `json:"captured_at_device"`
	ValueMA          float64    `json:"value_ma"`
	ValuePercent     float64    `json:"value_percent"`
	Trend            TrendState `json:"trend"`
	ReferenceAverage float64    `json:"reference_average"`
}
