package models

import "fmt"

// TrendState is the direction the reservoir level is moving in.
type TrendState int

const (
	InsufficientData TrendState = iota
	Filling
	Draining
	Stable
)

var trendNames = map[TrendState]string{
	InsufficientData: "insufficient_data",
	Filling:          "filling",
	Draining:         "draining",
	Stable:           "stable",
}

func (t TrendState) String() string {
	if name, ok := trendNames[t]; ok {
		return name
	}
	return fmt.Sprintf("trend(%d)", int(t))
}

func (t TrendState) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

func (t *TrendState) UnmarshalText(text []byte) error {
	for state, name := range trendNames {
		if name == string(text) {
			*t = state
			return nil
		}
	}
	return fmt.Errorf("unknown trend state: %s", text)
}

// Situation is the overall health of a snapshot.
type Situation int

const (
	NoSignal Situation = iota
	Normal
	Problem
)

var situationNames = map[Situation]string{
	NoSignal: "no_signal",
	Normal:   "normal",
	Problem:  "problem",
}

func (s Situation) String() string {
	if name, ok := situationNames[s]; ok {
		return name
	}
	return fmt.Sprintf("situation(%d)", int(s))
}

func (s Situation) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Situation) UnmarshalText(text []byte) error {
	for situation, name := range situationNames {
		if name == string(text) {
			*s = situation
			return nil
		}
	}
	return fmt.Errorf("unknown situation: %s", text)
}

// Bucket is the width of a resampling interval.
type Bucket string

const (
	Minute Bucket = "minute"
	Hour   Bucket = "hour"
	Day    Bucket = "day"
)

// ParseBucket validates a bucket name.
func ParseBucket(s string) (Bucket, error) {
	switch b := Bucket(s); b {
	case Minute, Hour, Day:
		return b, nil
	}
	return "", fmt.Errorf("invalid bucket: %s", s)
}
