// Package aggregator turns raw loop-current samples into the values consumers
// display: the current snapshot of the reservoir and bucketed historical
// series.
package aggregator

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/reservoir/internal/models"
	"github.com/tejusbharadwaj/reservoir/internal/trend"
)

//go:generate mockgen -destination=mocks/mock_source.go -package=mocks github.com/tejusbharadwaj/reservoir/internal/aggregator TelemetrySource

// TelemetrySource provides raw samples. Implementations report missing data
// through their results rather than errors.
type TelemetrySource interface {
	FetchLatest(ctx context.Context) (models.RawSample, bool)
	FetchRange(ctx context.Context, start, end time.Time) []models.RawSample
}

const (
	// EmptyMA and FullMA are the calibrated loop currents of an empty and a
	// full reservoir.
	EmptyMA = 4.0
	FullMA  = 6.8

	// NoSignalTime is shown in place of the capture time when there is no reading.
	NoSignalTime = "--"

	localLayout = "02/01/2006 15:04:05"
)

type Config struct {
	User      string
	SiteLabel string
	// Location aligns buckets and renders local times. Defaults to UTC.
	Location *time.Location
	// LookBack defaults to trend.LookBack.
	LookBack time.Duration
}

type Aggregator struct {
	source TelemetrySource
	cfg    Config
	logger *logrus.Logger
}

type Option func(*Aggregator)

func WithLogger(logger *logrus.Logger) Option {
	return func(a *Aggregator) { a.logger = logger }
}

func New(source TelemetrySource, cfg Config, opts ...Option) *Aggregator {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.LookBack <= 0 {
		cfg.LookBack = trend.LookBack
	}

	a := &Aggregator{
		source: source,
		cfg:    cfg,
		logger: logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// CurrentSnapshot reads the latest sample and classifies it against the
// look-back window that ends at the sample's own timestamp.
func (a *Aggregator) CurrentSnapshot(ctx context.Context) models.Snapshot {
	snapshot := models.Snapshot{
		User:      a.cfg.User,
		SiteLabel: a.cfg.SiteLabel,
	}

	latest, ok := a.source.FetchLatest(ctx)
	if !ok {
		a.logger.Warn("No latest reading available")
		snapshot.Situation = models.NoSignal
		snapshot.Trend = models.InsufficientData
		snapshot.CapturedAtLocal = NoSignalTime
		return snapshot
	}

	samples := a.source.FetchRange(ctx, latest.Time.Add(-a.cfg.LookBack), latest.Time)
	avg, state := trend.Classify(latest.ValueMA, trend.Window(samples, latest.Time, a.cfg.LookBack))

	snapshot.CapturedAtLocal = latest.Time.In(a.cfg.Location).Format(localLayout)
	snapshot.CapturedAtDevice = latest.Time
	snapshot.ValueMA = latest.ValueMA
	snapshot.ValuePercent = Percent(latest.ValueMA)
	snapshot.Trend = state
	snapshot.ReferenceAverage = round(avg, 2)
	snapshot.Situation = situation(latest.ValueMA, state)

	a.logger.WithFields(logrus.Fields{
		"value_ma":  latest.ValueMA,
		"trend":     state,
		"situation": snapshot.Situation,
		"window":    len(samples),
	}).Debug("Snapshot computed")

	return snapshot
}

func situation(valueMA float64, state models.TrendState) models.Situation {
	if valueMA > EmptyMA && state != models.InsufficientData {
		return models.Normal
	}
	return models.Problem
}

// HistoricalSeries returns the samples in [start, end] averaged per bucket.
// Buckets without samples are omitted, so the series is sparse across gaps.
func (a *Aggregator) HistoricalSeries(ctx context.Context, start, end time.Time, bucket models.Bucket) []models.SeriesPoint {
	samples := a.source.FetchRange(ctx, start, end)

	type accumulator struct {
		start          time.Time
		sumMA, sumPerc float64
		n              int
	}
	groups := make(map[int64]*accumulator)

	for _, s := range samples {
		if s.Time.Before(start) || s.Time.After(end) {
			continue
		}
		bs := AlignBucket(s.Time, bucket, a.cfg.Location)
		acc, ok := groups[bs.UnixNano()]
		if !ok {
			acc = &accumulator{start: bs}
			groups[bs.UnixNano()] = acc
		}
		acc.sumMA += s.ValueMA
		acc.sumPerc += Percent(s.ValueMA)
		acc.n++
	}

	series := make([]models.SeriesPoint, 0, len(groups))
	for _, acc := range groups {
		series = append(series, models.SeriesPoint{
			Time:         acc.start,
			ValueMA:      acc.sumMA / float64(acc.n),
			ValuePercent: round(acc.sumPerc/float64(acc.n), 4),
		})
	}
	sort.Slice(series, func(i, j int) bool {
		return series[i].Time.Before(series[j].Time)
	})

	return series
}

// AlignBucket returns the start of the bucket containing t. Day buckets
// start at local midnight in loc. Minute and hour buckets are fixed width,
// aligned to the zone offset in effect at t, so the repeated hour of a DST
// fall-back yields two buckets.
func AlignBucket(t time.Time, bucket models.Bucket, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.UTC
	}
	lt := t.In(loc)

	var width time.Duration
	switch bucket {
	case models.Day:
		y, m, d := lt.Date()
		return time.Date(y, m, d, 0, 0, 0, 0, loc)
	case models.Hour:
		width = time.Hour
	default:
		width = time.Minute
	}

	_, offset := lt.Zone()
	shift := time.Duration(offset) * time.Second
	return lt.Add(shift).Truncate(width).Add(-shift)
}

// Percent maps a loop current to the fill fraction, clamped to [0, 1] and
// rounded to four decimals.
func Percent(valueMA float64) float64 {
	p := (valueMA - EmptyMA) / (FullMA - EmptyMA)
	return round(math.Max(0, math.Min(1, p)), 4)
}

// SuggestBucket picks the bucket width that keeps a chart of [start, end]
// readable.
func SuggestBucket(start, end time.Time) models.Bucket {
	switch span := end.Sub(start); {
	case span <= 24*time.Hour:
		return models.Minute
	case span <= 7*24*time.Hour:
		return models.Hour
	default:
		return models.Day
	}
}

func round(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
