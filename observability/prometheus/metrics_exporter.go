package prometheus

import (
	"errors"
	"fmt"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/taskrunlab/taskrun/core"
)

const defaultNamespace = "taskrun"

// Label names shared by the exporter's collectors.
const (
	labelPool     = "pool"
	labelPriority = "priority"
	labelReason   = "reason"
)

// ExporterOpts configures NewMetricsExporter. The zero value registers the
// collectors under the "taskrun" namespace on the default registerer with the
// client library's default histogram buckets.
type ExporterOpts struct {
	// Namespace prefixes every metric name.
	Namespace string

	// Registry receives the collectors. Defaults to prom.DefaultRegisterer.
	Registry prom.Registerer

	// DurationBuckets overrides the task-duration histogram buckets.
	DurationBuckets []float64

	// ConstLabels are stamped onto every collector, for telling apart
	// processes scraped into the same job.
	ConstLabels prom.Labels
}

// MetricsExporter publishes the scheduler's core.Metrics stream as four
// Prometheus collectors: a duration histogram per pool and priority, panic
// and rejection counters, and a queue-depth gauge. A nil *MetricsExporter
// discards every record, so callers may defer handling a construction error.
type MetricsExporter struct {
	durations  *prom.HistogramVec
	panics     *prom.CounterVec
	rejections *prom.CounterVec
	depth      *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter builds the collectors and registers them with the
// configured registry. Collectors already registered under the same names are
// reused, so several pools can feed one metric family.
func NewMetricsExporter(opts ExporterOpts) (*MetricsExporter, error) {
	ns := opts.Namespace
	if ns == "" {
		ns = defaultNamespace
	}
	reg := opts.Registry
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	m := &MetricsExporter{
		durations: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace:   ns,
			Name:        "task_duration_seconds",
			Help:        "Wall-clock duration of task execution slices.",
			Buckets:     buckets,
			ConstLabels: opts.ConstLabels,
		}, []string{labelPool, labelPriority}),
		panics: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   ns,
			Name:        "task_panic_total",
			Help:        "Tasks that panicked while executing.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelPool}),
		rejections: prom.NewCounterVec(prom.CounterOpts{
			Namespace:   ns,
			Name:        "task_rejected_total",
			Help:        "Tasks refused by the scheduler, by reason.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelPool, labelReason}),
		depth: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace:   ns,
			Name:        "queue_depth",
			Help:        "Tasks currently waiting in the ready queue.",
			ConstLabels: opts.ConstLabels,
		}, []string{labelPool}),
	}

	var err error
	if m.durations, err = registerOrReuse(reg, m.durations); err != nil {
		return nil, err
	}
	if m.panics, err = registerOrReuse(reg, m.panics); err != nil {
		return nil, err
	}
	if m.rejections, err = registerOrReuse(reg, m.rejections); err != nil {
		return nil, err
	}
	if m.depth, err = registerOrReuse(reg, m.depth); err != nil {
		return nil, err
	}
	return m, nil
}

// RecordTaskDuration observes one execution slice.
func (m *MetricsExporter) RecordTaskDuration(poolID string, priority core.TaskPriority, duration time.Duration) {
	if m == nil {
		return
	}
	m.durations.WithLabelValues(orUnknown(poolID), priorityLabel(priority)).Observe(duration.Seconds())
}

// RecordTaskPanic counts a panicking task. The panic value itself is not
// exported; it goes to the pool's panic handler.
func (m *MetricsExporter) RecordTaskPanic(poolID string, panicInfo any) {
	if m == nil {
		return
	}
	m.panics.WithLabelValues(orUnknown(poolID)).Inc()
}

// RecordQueueDepth sets the ready-queue depth gauge.
func (m *MetricsExporter) RecordQueueDepth(poolID string, depth int) {
	if m == nil {
		return
	}
	m.depth.WithLabelValues(orUnknown(poolID)).Set(float64(depth))
}

// RecordTaskRejected counts a refused task by reason.
func (m *MetricsExporter) RecordTaskRejected(poolID string, reason string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(orUnknown(poolID), orUnknown(reason)).Inc()
}

// orUnknown keeps empty label values out of the time series.
func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

func priorityLabel(priority core.TaskPriority) string {
	switch priority {
	case core.TaskPriorityUserBlocking:
		return "user_blocking"
	case core.TaskPriorityUserVisible:
		return "user_visible"
	case core.TaskPriorityBestEffort:
		return "best_effort"
	default:
		return "unknown"
	}
}

// registerOrReuse registers the collector, handing back the already
// registered instance when one with the same descriptor exists.
func registerOrReuse[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var already prom.AlreadyRegisteredError
	if errors.As(err, &already) {
		existing, ok := already.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
