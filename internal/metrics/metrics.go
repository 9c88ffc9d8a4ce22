// ============================================================================
// labqueue metrics
// ============================================================================
//
// Package: internal/metrics
//
// Counters are fed from the manager's change stream, gauges are refreshed
// from Manager.Stats after each command. A CLI process is short lived, so
// the registry is written to a node-exporter textfile instead of being
// scraped over HTTP.
//
//   labqueue_events_total{entity,kind}        committed changes
//   labqueue_job_transitions_total{from,to}   job status changes
//   labqueue_jobs{status}                     jobs per status
//   labqueue_jobs_deletion_requested          jobs flagged for deletion
//   labqueue_machines / _persons / _admins    entity counts
//   labqueue_machine_active_hours{machine}    queued + ongoing hours
//   labqueue_machine_enabled{machine}         1 when ENABLED
//   labqueue_undo_depth                       commands that can be undone
//   labqueue_store_load_seconds               time of the last load
//   labqueue_store_save_seconds               save latency histogram
//
// ============================================================================

package metrics

import (
	"fmt"
	"sync"

	"github.com/ChuLiYu/labqueue/internal/jobmanager"
	"github.com/ChuLiYu/labqueue/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

// Collector Prometheus collector for one address book
type Collector struct {
	events      *prometheus.CounterVec
	transitions *prometheus.CounterVec

	jobs              *prometheus.GaugeVec
	deletionRequested prometheus.Gauge
	machines          prometheus.Gauge
	persons           prometheus.Gauge
	admins            prometheus.Gauge
	machineHours      *prometheus.GaugeVec
	machineEnabled    *prometheus.GaugeVec
	undoDepth         prometheus.Gauge

	loadTime    prometheus.Gauge
	saveLatency prometheus.Histogram

	mu sync.Mutex
}

// NewCollector creates the collector and registers it with reg. A nil reg
// means prometheus.DefaultRegisterer.
func NewCollector(reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	c := &Collector{
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labqueue_events_total",
			Help: "Committed changes by entity and kind",
		}, []string{"entity", "kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "labqueue_job_transitions_total",
			Help: "Job status transitions",
		}, []string{"from", "to"}),
		jobs: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labqueue_jobs",
			Help: "Current number of jobs per status",
		}, []string{"status"}),
		deletionRequested: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labqueue_jobs_deletion_requested",
			Help: "Jobs flagged for deletion",
		}),
		machines: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labqueue_machines",
			Help: "Number of machines",
		}),
		persons: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labqueue_persons",
			Help: "Number of persons",
		}),
		admins: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labqueue_admins",
			Help: "Number of admins",
		}),
		machineHours: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labqueue_machine_active_hours",
			Help: "Hours of queued and ongoing work per machine",
		}, []string{"machine"}),
		machineEnabled: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "labqueue_machine_enabled",
			Help: "1 when the machine accepts new work",
		}, []string{"machine"}),
		undoDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labqueue_undo_depth",
			Help: "Commands that can be undone",
		}),
		loadTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "labqueue_store_load_seconds",
			Help: "Time taken by the last load",
		}),
		saveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "labqueue_store_save_seconds",
			Help:    "Save latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.events,
		c.transitions,
		c.jobs,
		c.deletionRequested,
		c.machines,
		c.persons,
		c.admins,
		c.machineHours,
		c.machineEnabled,
		c.undoDepth,
		c.loadTime,
		c.saveLatency,
	)
	return c
}

// RecordEvent counts one change from the manager. It has the signature of a
// jobmanager subscriber.
func (c *Collector) RecordEvent(ev jobmanager.Event) {
	c.events.WithLabelValues(string(ev.Entity), string(ev.Kind)).Inc()
	if ev.Entity == jobmanager.EntityJob && ev.Kind == jobmanager.EventStatusChanged {
		c.transitions.WithLabelValues(ev.From, ev.To).Inc()
	}
}

// UpdateStats replaces every gauge with the values in s. Machines that no
// longer exist drop out of the per-machine series.
func (c *Collector) UpdateStats(s jobmanager.Stats) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, st := range types.AllJobStatuses {
		c.jobs.WithLabelValues(string(st)).Set(float64(s.JobsByStatus[st]))
	}
	c.deletionRequested.Set(float64(s.DeletionRequested))
	c.machines.Set(float64(s.Machines))
	c.persons.Set(float64(s.Persons))
	c.admins.Set(float64(s.Admins))
	c.undoDepth.Set(float64(s.UndoDepth))

	c.machineHours.Reset()
	c.machineEnabled.Reset()
	for _, load := range s.Loads {
		name := load.Machine.String()
		c.machineHours.WithLabelValues(name).Set(load.ActiveDuration)
		enabled := 0.0
		if load.Status == types.MachineEnabled {
			enabled = 1
		}
		c.machineEnabled.WithLabelValues(name).Set(enabled)
	}
}

// SetLoadTime records how long the last load took.
func (c *Collector) SetLoadTime(seconds float64) {
	c.loadTime.Set(seconds)
}

// ObserveSave records one save.
func (c *Collector) ObserveSave(seconds float64) {
	c.saveLatency.Observe(seconds)
}

// WriteTextfile writes everything g gathers to path in the text exposition
// format, atomically.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
