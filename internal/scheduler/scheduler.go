package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/tejusbharadwaj/reservoir/internal/models"
)

// SnapshotSource produces the current state of the reservoir.
type SnapshotSource interface {
	CurrentSnapshot(ctx context.Context) models.Snapshot
}

// Sink receives every polled snapshot.
type Sink interface {
	Publish(snapshot models.Snapshot)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(models.Snapshot)

func (f SinkFunc) Publish(snapshot models.Snapshot) { f(snapshot) }

type Scheduler struct {
	source   SnapshotSource
	interval time.Duration
	timeout  time.Duration
	logger   *logrus.Logger
	cron     *cron.Cron
	sinks    []Sink
	gauges   *gauges

	mu   sync.RWMutex
	last models.Snapshot
	seen bool
}

type Option func(*Scheduler)

func WithSinks(sinks ...Sink) Option {
	return func(s *Scheduler) { s.sinks = append(s.sinks, sinks...) }
}

// WithRegisterer exports the level gauges of the last snapshot.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(s *Scheduler) { s.gauges = newGauges(reg) }
}

func NewScheduler(source SnapshotSource, interval time.Duration, logger *logrus.Logger, opts ...Option) *Scheduler {
	s := &Scheduler{
		source:   source,
		interval: interval,
		timeout:  time.Minute,
		logger:   logger,
		cron:     cron.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.gauges == nil {
		s.gauges = newGauges(nil)
	}
	return s
}

// Start polls once immediately and then every interval.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		return fmt.Errorf("invalid poll interval %s", s.interval)
	}
	_, err := s.cron.AddFunc(fmt.Sprintf("@every %s", s.interval), s.Poll)
	if err != nil {
		return err
	}
	go s.Poll()
	s.cron.Start()
	return nil
}

// Poll takes one snapshot and fans it out to the sinks. It never fails; a
// missing reading is published as a no-signal snapshot.
func (s *Scheduler) Poll() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	start := time.Now()
	snapshot := s.source.CurrentSnapshot(ctx)

	s.mu.Lock()
	s.last = snapshot
	s.seen = true
	s.mu.Unlock()

	s.gauges.observe(snapshot)
	for _, sink := range s.sinks {
		sink.Publish(snapshot)
	}

	entry := s.logger.WithFields(logrus.Fields{
		"situation": snapshot.Situation,
		"trend":     snapshot.Trend,
		"value_ma":  snapshot.ValueMA,
		"duration":  time.Since(start),
	})
	if snapshot.Situation == models.NoSignal {
		entry.Warn("Poll finished without a reading")
		return
	}
	entry.Info("Poll finished")
}

// Last returns the most recent snapshot, if any poll has completed.
func (s *Scheduler) Last() (models.Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, s.seen
}

// Stop the scheduler and wait for a running poll to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

type gauges struct {
	level   prometheus.Gauge
	current prometheus.Gauge
	trend   *prometheus.GaugeVec
	polls   *prometheus.CounterVec
}

func newGauges(reg prometheus.Registerer) *gauges {
	g := &gauges{
		level: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reservoir_level_ratio",
			Help: "Fill level of the last snapshot, from 0 to 1.",
		}),
		current: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reservoir_loop_current_milliamperes",
			Help: "Loop current of the last snapshot.",
		}),
		trend: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "reservoir_trend",
			Help: "1 for the trend of the last snapshot, 0 otherwise.",
		}, []string{"trend"}),
		polls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reservoir_polls_total",
			Help: "Completed polls by situation.",
		}, []string{"situation"}),
	}
	if reg != nil {
		reg.MustRegister(g.level, g.current, g.trend, g.polls)
	}
	return g
}

func (g *gauges) observe(snapshot models.Snapshot) {
	g.polls.WithLabelValues(snapshot.Situation.String()).Inc()
	if snapshot.Situation == models.NoSignal {
		return
	}

	g.level.Set(snapshot.ValuePercent)
	g.current.Set(snapshot.ValueMA)
	for _, state := range []models.TrendState{models.InsufficientData, models.Filling, models.Draining, models.Stable} {
		value := 0.0
		if state == snapshot.Trend {
			value = 1
		}
		g.trend.WithLabelValues(state.String()).Set(value)
	}
}
