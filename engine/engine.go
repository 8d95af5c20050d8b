// Package engine evaluates conditional form logic: which questions are
// visible, which are required, and which carry piped or calculated values
// for the current answer state.
//
// Two policies deserve attention. Hidden membership is a union: once any
// rule hides a question under the current answers, no other rule shows it
// again, and a show rule hides its targets whenever its condition is NOT
// met. Required overrides are last-writer-wins in rule order, with advanced
// rules applied after simple ones.
package engine

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/timzifer/formlogic/config"
	"github.com/timzifer/formlogic/formula"
	"github.com/timzifer/formlogic/telemetry"
)

// Engine evaluates one form's rule set. It is built once per form and is
// safe for repeated Evaluate calls; every call recomputes the result from
// scratch and mutates nothing.
type Engine struct {
	form      *config.Form
	questions map[string]config.Question
	simple    []flatSimpleRule
	advanced  []*flatAdvancedRule
	logger    zerolog.Logger
	collector telemetry.Collector
}

// Option configures optional engine collaborators.
type Option func(*Engine)

// WithCollector wires a telemetry collector into the engine.
func WithCollector(collector telemetry.Collector) Option {
	return func(e *Engine) {
		if collector != nil {
			e.collector = collector
		}
	}
}

// New flattens the per-question rule lists into one global ordered list and
// compiles every calculate formula. The fill path trusts that saved rule
// sets passed ValidateRules: construction degrades gracefully on rule-level
// defects (a formula that does not compile is logged and yields no computed
// value) instead of refusing the whole form.
func New(form *config.Form, logger zerolog.Logger, opts ...Option) (*Engine, error) {
	if form == nil {
		return nil, errors.New("form must not be nil")
	}
	e := &Engine{
		form:      form,
		questions: make(map[string]config.Question, len(form.Questions)),
		logger:    logger.With().Str("component", "engine").Str("form", form.Name).Logger(),
		collector: telemetry.Noop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}

	order := 0
	for _, q := range form.Sorted() {
		e.questions[q.ID] = q
		for _, rule := range q.LogicRules {
			e.simple = append(e.simple, flatSimpleRule{rule: rule, owner: q.ID, order: order})
			order++
		}
		for _, rule := range q.AdvancedRules {
			if !rule.IsEnabled() {
				continue
			}
			flat := prepareAdvancedRule(q.ID, rule, order)
			order++
			if rule.Calculate != nil {
				program, err := formula.Compile(rule.Calculate.Formula)
				if err != nil {
					e.logger.Warn().Err(err).
						Str("rule", flat.label()).
						Msg("calculate formula does not compile, rule yields no value")
				} else {
					flat.program = program
				}
			}
			e.advanced = append(e.advanced, flat)
		}
	}
	return e, nil
}

// Result is one evaluation pass over the current answer map. It is produced
// fresh on every call and never mutated in place.
type Result struct {
	// Hidden holds every question suppressed from rendering and submit
	// validation under the current answers.
	Hidden map[string]struct{}
	// RequiredOverrides replaces the base required flag for exactly the
	// questions a rule touched.
	RequiredOverrides map[string]bool
	// ComputedValues holds piped and calculated effective values.
	ComputedValues map[string]interface{}
	// Stalled names rules skipped because their dependencies never resolved
	// (only possible when persisted data contains a cycle).
	Stalled []string
}

// Evaluate runs the simple and advanced resolvers and merges their output:
// hidden sets union, advanced required overrides land after simple ones.
func (e *Engine) Evaluate(answers map[string]interface{}) *Result {
	e.collector.IncEvaluation(e.form.Name)

	hidden, required := evaluateSimpleLogic(e.simple, answers, e.questions)
	advanced := e.evaluateAdvancedLogic(answers)

	for id := range advanced.hidden {
		hidden[id] = struct{}{}
	}
	for id, value := range advanced.required {
		required[id] = value
	}

	return &Result{
		Hidden:            hidden,
		RequiredOverrides: required,
		ComputedValues:    advanced.computed,
		Stalled:           advanced.stalled,
	}
}

// Visible reports whether the question survived every hide rule.
func (r *Result) Visible(id string) bool {
	_, hidden := r.Hidden[id]
	return !hidden
}

// QuestionValue returns the question's effective value: its computed or
// piped value when a rule set one, else its raw answer.
func (r *Result) QuestionValue(id string, answers map[string]interface{}) interface{} {
	if value, ok := r.ComputedValues[id]; ok {
		return value
	}
	return answers[id]
}

// Required returns the question's effective requiredness: the rule override
// when present, else the base flag.
func (r *Result) Required(id string, base bool) bool {
	if value, ok := r.RequiredOverrides[id]; ok {
		return value
	}
	return base
}
