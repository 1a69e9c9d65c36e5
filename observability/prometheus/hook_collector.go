package prometheus

import (
	prom "github.com/prometheus/client_golang/prometheus"
	taskrun "github.com/taskrunlab/taskrun"
	"github.com/taskrunlab/taskrun/core"
)

// HookCollector turns lifecycle hook callbacks into Prometheus metrics. Its
// methods match the hook signatures, so each can be attached to a builder
// slot directly or called from a wrapper that also forwards to another
// consumer (for example the dtrace bridge).
type HookCollector struct {
	lifecycleEvents *prom.CounterVec
	activeTasks     prom.Gauge
	parkedThreads   prom.Gauge
	workerThreads   prom.Gauge
}

// NewHookCollector creates and registers the hook-driven collectors.
func NewHookCollector(namespace string, reg prom.Registerer) (*HookCollector, error) {
	if namespace == "" {
		namespace = defaultNamespace
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	eventsVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "lifecycle_events_total",
		Help:      "Total lifecycle hook invocations by event.",
	}, []string{"event"})
	activeTasks := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "active_tasks",
		Help:      "Tasks currently being executed.",
	})
	parkedThreads := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "parked_threads",
		Help:      "Worker threads currently waiting for work.",
	})
	workerThreads := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "worker_threads",
		Help:      "Worker threads currently running.",
	})

	var err error
	if eventsVec, err = registerOrReuse(reg, eventsVec); err != nil {
		return nil, err
	}
	if activeTasks, err = registerOrReuse(reg, activeTasks); err != nil {
		return nil, err
	}
	if parkedThreads, err = registerOrReuse(reg, parkedThreads); err != nil {
		return nil, err
	}
	if workerThreads, err = registerOrReuse(reg, workerThreads); err != nil {
		return nil, err
	}

	return &HookCollector{
		lifecycleEvents: eventsVec,
		activeTasks:     activeTasks,
		parkedThreads:   parkedThreads,
		workerThreads:   workerThreads,
	}, nil
}

// Install attaches the collector's methods to all eight builder hook slots,
// overwriting any callbacks set previously. Callers that want the slots to
// feed more than one consumer should set wrapper functions on the builder
// instead and call the collector's methods from there.
func (c *HookCollector) Install(builder *taskrun.Builder) *taskrun.Builder {
	return builder.
		OnTaskSpawn(c.OnTaskSpawn).
		OnBeforeTaskPoll(c.OnBeforeTaskPoll).
		OnAfterTaskPoll(c.OnAfterTaskPoll).
		OnTaskTerminate(c.OnTaskTerminate).
		OnThreadStart(c.OnThreadStart).
		OnThreadStop(c.OnThreadStop).
		OnThreadPark(c.OnThreadPark).
		OnThreadUnpark(c.OnThreadUnpark)
}

func (c *HookCollector) OnTaskSpawn(meta *core.TaskMeta) {
	c.lifecycleEvents.WithLabelValues("task_spawn").Inc()
}

func (c *HookCollector) OnBeforeTaskPoll(meta *core.TaskMeta) {
	c.lifecycleEvents.WithLabelValues("task_poll_start").Inc()
	c.activeTasks.Inc()
}

func (c *HookCollector) OnAfterTaskPoll(meta *core.TaskMeta) {
	c.lifecycleEvents.WithLabelValues("task_poll_end").Inc()
	c.activeTasks.Dec()
}

func (c *HookCollector) OnTaskTerminate(meta *core.TaskMeta) {
	c.lifecycleEvents.WithLabelValues("task_terminate").Inc()
}

func (c *HookCollector) OnThreadStart() {
	c.lifecycleEvents.WithLabelValues("thread_start").Inc()
	c.workerThreads.Inc()
}

func (c *HookCollector) OnThreadStop() {
	c.lifecycleEvents.WithLabelValues("thread_stop").Inc()
	c.workerThreads.Dec()
}

func (c *HookCollector) OnThreadPark() {
	c.lifecycleEvents.WithLabelValues("thread_park").Inc()
	c.parkedThreads.Inc()
}

func (c *HookCollector) OnThreadUnpark() {
	c.lifecycleEvents.WithLabelValues("thread_unpark").Inc()
	c.parkedThreads.Dec()
}
