// Package metrics records engine counters. The Prometheus recorder backs
// the /metrics endpoint; Noop is used in tests and when metrics are off.
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder receives engine measurements.
type Recorder interface {
	EventHandled(event string)
	TriggerOutcome(status string)
	RequestDispatched(providerID string)
	ExecutionResult(providerID string, success bool)
	MessageDropped(topic string)
}

type noop struct{}

// Noop returns a recorder that discards everything.
func Noop() Recorder { return noop{} }

func (noop) EventHandled(string)          {}
func (noop) TriggerOutcome(string)        {}
func (noop) RequestDispatched(string)     {}
func (noop) ExecutionResult(string, bool) {}
func (noop) MessageDropped(string)        {}

// Prometheus is a Recorder registered on its own registry.
type Prometheus struct {
	registry   *prometheus.Registry
	events     *prometheus.CounterVec
	outcomes   *prometheus.CounterVec
	dispatched *prometheus.CounterVec
	results    *prometheus.CounterVec
	dropped    *prometheus.CounterVec
}

// NewPrometheus creates the counters under namespace.
func NewPrometheus(namespace string) *Prometheus {
	p := &Prometheus{
		registry: prometheus.NewRegistry(),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Events processed by the trigger store.",
		}, []string{"event"}),
		outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "trigger_outcomes_total",
			Help:      "Per-trigger results of event handling.",
		}, []string{"status"}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_dispatched_total",
			Help:      "Requests published on the execute-action topic.",
		}, []string{"provider"}),
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "execution_results_total",
			Help:      "Results reported by integrations.",
		}, []string{"provider", "success"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bus_messages_dropped_total",
			Help:      "Messages dropped because a subscriber queue was full.",
		}, []string{"topic"}),
	}

	p.registry.MustRegister(
		p.events,
		p.outcomes,
		p.dispatched,
		p.results,
		p.dropped,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) EventHandled(event string) {
	p.events.With(prometheus.Labels{"event": event}).Inc()
}

func (p *Prometheus) TriggerOutcome(status string) {
	p.outcomes.With(prometheus.Labels{"status": status}).Inc()
}

func (p *Prometheus) RequestDispatched(providerID string) {
	p.dispatched.With(prometheus.Labels{"provider": providerID}).Inc()
}

func (p *Prometheus) ExecutionResult(providerID string, success bool) {
	p.results.With(prometheus.Labels{"provider": providerID, "success": strconv.FormatBool(success)}).Inc()
}

func (p *Prometheus) MessageDropped(topic string) {
	p.dropped.With(prometheus.Labels{"topic": topic}).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (p *Prometheus) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
