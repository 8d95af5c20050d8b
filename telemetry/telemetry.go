package telemetry

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector captures telemetry events emitted by the logic engine.
//
// Implementations may forward metrics to Prometheus, loggers or other
// monitoring systems. They should be inexpensive to call because hooks run
// inline with evaluation, which happens once per answer change.
type Collector interface {
	IncEvaluation(form string)
	IncCycleDetected(form string)
	IncFormulaError(form, rule string)
	IncRuleStalled(form, rule string)
}

type noopCollector struct{}

// Noop returns a collector that discards all metrics.
func Noop() Collector {
	return noopCollector{}
}

func (noopCollector) IncEvaluation(string)          {}
func (noopCollector) IncCycleDetected(string)       {}
func (noopCollector) IncFormulaError(string, string) {}
func (noopCollector) IncRuleStalled(string, string)  {}

// PrometheusCollector exposes telemetry counters via Prometheus.
type PrometheusCollector struct {
	evaluations    *prometheus.CounterVec
	cyclesDetected *prometheus.CounterVec
	formulaErrors  *prometheus.CounterVec
	rulesStalled   *prometheus.CounterVec
}

var (
	evaluationCounter     *prometheus.CounterVec
	evaluationCounterLock sync.Mutex
	cycleCounter          *prometheus.CounterVec
	cycleCounterLock      sync.Mutex
	formulaErrorCounter   *prometheus.CounterVec
	formulaErrorLock      sync.Mutex
	ruleStalledCounter    *prometheus.CounterVec
	ruleStalledLock       sync.Mutex
)

// NewPrometheusCollector registers the required metrics with the provided
// registerer. Repeated calls reuse the already registered collectors.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	evaluations, err := registerCounter(reg, &evaluationCounter, &evaluationCounterLock, prometheus.CounterOpts{
		Name: "formlogic_evaluations_total",
		Help: "Number of rule evaluation passes per form.",
	}, []string{"form"})
	if err != nil {
		return nil, err
	}
	cycles, err := registerCounter(reg, &cycleCounter, &cycleCounterLock, prometheus.CounterOpts{
		Name: "formlogic_cycles_detected_total",
		Help: "Number of rule-set saves rejected because of dependency cycles.",
	}, []string{"form"})
	if err != nil {
		return nil, err
	}
	formulaErrors, err := registerCounter(reg, &formulaErrorCounter, &formulaErrorLock, prometheus.CounterOpts{
		Name: "formlogic_formula_errors_total",
		Help: "Number of calculate formulas that yielded no value.",
	}, []string{"form", "rule"})
	if err != nil {
		return nil, err
	}
	stalled, err := registerCounter(reg, &ruleStalledCounter, &ruleStalledLock, prometheus.CounterOpts{
		Name: "formlogic_rules_stalled_total",
		Help: "Number of rules skipped because their dependencies never resolved.",
	}, []string{"form", "rule"})
	if err != nil {
		return nil, err
	}

	return &PrometheusCollector{
		evaluations:    evaluations,
		cyclesDetected: cycles,
		formulaErrors:  formulaErrors,
		rulesStalled:   stalled,
	}, nil
}

func registerCounter(reg prometheus.Registerer, cached **prometheus.CounterVec, lock *sync.Mutex, opts prometheus.CounterOpts, labels []string) (*prometheus.CounterVec, error) {
	lock.Lock()
	defer lock.Unlock()
	if *cached != nil {
		return *cached, nil
	}
	counter := prometheus.NewCounterVec(opts, labels)
	if err := reg.Register(counter); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				*cached = existing
				return existing, nil
			}
		}
		return nil, err
	}
	*cached = counter
	return counter, nil
}

// IncEvaluation counts one evaluation pass for the form.
func (p *PrometheusCollector) IncEvaluation(form string) {
	if p == nil || p.evaluations == nil {
		return
	}
	p.evaluations.WithLabelValues(form).Inc()
}

// IncCycleDetected counts one rejected save for the form.
func (p *PrometheusCollector) IncCycleDetected(form string) {
	if p == nil || p.cyclesDetected == nil {
		return
	}
	p.cyclesDetected.WithLabelValues(form).Inc()
}

// IncFormulaError counts one calculate rule that produced no value.
func (p *PrometheusCollector) IncFormulaError(form, rule string) {
	if p == nil || p.formulaErrors == nil {
		return
	}
	p.formulaErrors.WithLabelValues(form, rule).Inc()
}

// IncRuleStalled counts one rule skipped by the stall guard.
func (p *PrometheusCollector) IncRuleStalled(form, rule string) {
	if p == nil || p.rulesStalled == nil {
		return
	}
	p.rulesStalled.WithLabelValues(form, rule).Inc()
}
