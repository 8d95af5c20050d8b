package engine

import (
	"sort"

	"github.com/timzifer/formlogic/config"
	"github.com/timzifer/formlogic/formula"
)

// flatAdvancedRule is an enabled advanced rule in the flattened global
// order, with its formula compiled once at engine construction.
type flatAdvancedRule struct {
	rule    config.AdvancedRule
	owner   string
	order   int
	program *formula.Program
	// reads are the question ids whose effective value this rule consumes,
	// computedTarget the question id it produces a value for ("" for pure
	// visibility/requiredness rules).
	reads          []string
	computedTarget string
}

func prepareAdvancedRule(owner string, rule config.AdvancedRule, order int) *flatAdvancedRule {
	flat := &flatAdvancedRule{rule: rule, owner: owner, order: order}
	seen := make(map[string]struct{})
	read := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		flat.reads = append(flat.reads, id)
	}
	for _, group := range rule.Groups {
		for _, cond := range group.Conditions {
			read(cond.Source)
		}
	}
	if rule.SetValue != nil {
		read(rule.SetValue.Source)
		flat.computedTarget = rule.SetValue.Target
	}
	if rule.Calculate != nil {
		for _, src := range rule.Calculate.Sources {
			read(src)
		}
		flat.computedTarget = rule.Calculate.Target
	}
	return flat
}

func (r *flatAdvancedRule) label() string {
	if r.rule.ID != "" {
		return r.rule.ID
	}
	if r.rule.Name != "" {
		return r.rule.Name
	}
	return r.owner
}

// matches combines the rule's condition groups: conditions within a group
// via the group operator, groups via the rule's group operator (AND unless
// configured otherwise).
func (r *flatAdvancedRule) matches(answers map[string]interface{}, questions map[string]config.Question) bool {
	groupResults := make([]bool, 0, len(r.rule.Groups))
	for _, group := range r.rule.Groups {
		groupResults = append(groupResults, evaluateGroup(group, answers, questions))
	}
	return combine(r.rule.GroupOperator, groupResults)
}

func evaluateGroup(group config.ConditionGroup, answers map[string]interface{}, questions map[string]config.Question) bool {
	results := make([]bool, 0, len(group.Conditions))
	for _, cond := range group.Conditions {
		results = append(results, evaluateCondition(cond, answers, questions))
	}
	return combine(group.Operator, results)
}

func combine(op config.GroupOperator, results []bool) bool {
	if len(results) == 0 {
		return false
	}
	if op == config.GroupOr {
		for _, r := range results {
			if r {
				return true
			}
		}
		return false
	}
	for _, r := range results {
		if !r {
			return false
		}
	}
	return true
}

type advancedOutcome struct {
	hidden   map[string]struct{}
	required map[string]bool
	computed map[string]interface{}
	stalled  []string
}

// evaluateAdvancedLogic applies the enabled advanced rules in an order
// consistent with the dependency graph: a rule waits on every rule that
// produces a computed value it reads. The pass is a Kahn traversal with ties
// broken by flattened order, so it is deterministic and visits each rule at
// most once. Rules left with unsatisfied dependencies (a cycle in persisted
// data that bypassed the save gate) are skipped and reported instead of
// looping; their targets keep safe defaults.
func (e *Engine) evaluateAdvancedLogic(answers map[string]interface{}) advancedOutcome {
	outcome := advancedOutcome{
		hidden:   make(map[string]struct{}),
		required: make(map[string]bool),
		computed: make(map[string]interface{}),
	}

	rules := e.advanced
	producers := make(map[string][]*flatAdvancedRule)
	for _, rule := range rules {
		if rule.computedTarget != "" {
			producers[rule.computedTarget] = append(producers[rule.computedTarget], rule)
		}
	}

	inDegree := make(map[*flatAdvancedRule]int, len(rules))
	edges := make(map[*flatAdvancedRule][]*flatAdvancedRule, len(rules))
	for _, rule := range rules {
		for _, dep := range rule.reads {
			for _, producer := range producers[dep] {
				if producer == rule {
					continue
				}
				edges[producer] = append(edges[producer], rule)
				inDegree[rule]++
			}
		}
	}

	queue := make([]*flatAdvancedRule, 0, len(rules))
	for _, rule := range rules {
		if inDegree[rule] == 0 {
			queue = append(queue, rule)
		}
	}
	sort.Slice(queue, func(i, j int) bool { return queue[i].order < queue[j].order })

	// Conditions and formulas read effective values, so computed results are
	// layered over a copy of the answer map as they land. The caller's map
	// is never touched.
	effective := make(map[string]interface{}, len(answers))
	for id, value := range answers {
		effective[id] = value
	}

	evaluated := 0
	for len(queue) > 0 {
		rule := queue[0]
		queue = queue[1:]
		evaluated++
		e.applyAdvancedRule(rule, effective, &outcome)
		for _, succ := range edges[rule] {
			inDegree[succ]--
			if inDegree[succ] == 0 {
				queue = append(queue, succ)
			}
		}
		sort.Slice(queue, func(i, j int) bool { return queue[i].order < queue[j].order })
	}

	if evaluated != len(rules) {
		for _, rule := range rules {
			if inDegree[rule] > 0 {
				outcome.stalled = append(outcome.stalled, rule.label())
				e.collector.IncRuleStalled(e.form.Name, rule.label())
			}
		}
		e.logger.Warn().
			Strs("rules", outcome.stalled).
			Msg("advanced rules stalled on unresolved dependencies, skipping subset")
	}
	return outcome
}

func (e *Engine) applyAdvancedRule(rule *flatAdvancedRule, effective map[string]interface{}, outcome *advancedOutcome) {
	matched := rule.matches(effective, e.questions)

	switch rule.rule.Action {
	case config.ActionHide:
		if matched {
			for _, target := range rule.rule.Targets {
				outcome.hidden[target] = struct{}{}
			}
		}
	case config.ActionShow:
		// Inverse of hide: a show rule whose condition does not hold hides
		// its targets, it never un-hides them.
		if !matched {
			for _, target := range rule.rule.Targets {
				outcome.hidden[target] = struct{}{}
			}
		}
	case config.ActionRequire:
		if matched {
			for _, target := range rule.rule.Targets {
				outcome.required[target] = true
			}
		}
	case config.ActionUnrequire:
		if matched {
			for _, target := range rule.rule.Targets {
				outcome.required[target] = false
			}
		}
	case config.ActionSetValue:
		if matched && rule.rule.SetValue != nil {
			source, target := rule.rule.SetValue.Source, rule.rule.SetValue.Target
			if value, ok := effective[source]; ok {
				// Field piping copies the effective value verbatim, without
				// converting it to the target's type.
				outcome.computed[target] = cloneValue(value)
				effective[target] = value
			}
		}
	case config.ActionCalculate:
		if matched && rule.rule.Calculate != nil {
			if value, ok := e.runCalculation(rule, effective); ok {
				outcome.computed[rule.rule.Calculate.Target] = value
				effective[rule.rule.Calculate.Target] = value
			}
		}
	}
}

// runCalculation resolves the formula bindings from the sources' effective
// values and evaluates the compiled program. Any soft failure (formula did
// not compile, a referenced source is unanswered or non-numeric, variable
// out of range, division by zero) leaves the target without a computed value
// for this pass.
func (e *Engine) runCalculation(rule *flatAdvancedRule, effective map[string]interface{}) (float64, bool) {
	calc := rule.rule.Calculate
	if rule.program == nil {
		e.collector.IncFormulaError(e.form.Name, rule.label())
		return 0, false
	}

	bindings := make([]float64, len(calc.Sources))
	for _, index := range rule.program.Variables() {
		if index < 1 || index > len(calc.Sources) {
			e.logger.Debug().
				Str("rule", rule.label()).
				Int("variable", index).
				Msg("formula references variable beyond bound sources")
			e.collector.IncFormulaError(e.form.Name, rule.label())
			return 0, false
		}
		source := calc.Sources[index-1]
		value, ok := effective[source]
		if !ok {
			return 0, false
		}
		number, ok := numericValue(value)
		if !ok {
			e.logger.Debug().
				Str("rule", rule.label()).
				Str("source", source).
				Msg("formula source has no numeric value")
			e.collector.IncFormulaError(e.form.Name, rule.label())
			return 0, false
		}
		bindings[index-1] = number
	}

	result, err := rule.program.Eval(bindings)
	if err != nil {
		e.logger.Debug().Err(err).Str("rule", rule.label()).Msg("formula evaluation failed")
		e.collector.IncFormulaError(e.form.Name, rule.label())
		return 0, false
	}
	return result, true
}
