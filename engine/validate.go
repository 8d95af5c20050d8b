package engine

import (
	"fmt"
	"strings"

	"github.com/timzifer/formlogic/config"
	"github.com/timzifer/formlogic/formula"
)

// ValidateRules is the authoring-time save gate. It runs the structural
// checks of config.Form.Validate, the per-rule semantic checks (operator
// catalogs, comparison literals, formula grammar and arity, ordering), and
// finally the cycle detector. A rule set that passes here is safe to hand to
// the evaluator. The editor calls this with the pending edit merged in, so a
// failure blocks the save.
func ValidateRules(form *config.Form) error {
	if err := form.Validate(); err != nil {
		return err
	}
	questions := make(map[string]config.Question, len(form.Questions))
	for _, q := range form.Questions {
		questions[q.ID] = q
	}

	for _, q := range form.Questions {
		for i, rule := range q.LogicRules {
			if errs := checkSimpleRule(rule, questions); len(errs) > 0 {
				return fmt.Errorf("logic rule %s of question %s: %s", ruleName(rule.ID, i), q.ID, errs[0])
			}
		}
		for i, rule := range q.AdvancedRules {
			if errs := checkAdvancedRule(rule, questions); len(errs) > 0 {
				return fmt.Errorf("advanced rule %s of question %s: %s", ruleName(rule.ID, i), q.ID, errs[0])
			}
		}
	}

	if cyclic := FindCircularQuestionIDs(form.Questions); len(cyclic) > 0 {
		titles := make([]string, 0, len(cyclic))
		for _, id := range cyclic {
			if q, ok := questions[id]; ok && q.Title != "" {
				titles = append(titles, fmt.Sprintf("%s (%s)", q.Title, id))
			} else {
				titles = append(titles, id)
			}
		}
		return fmt.Errorf("rules form a dependency cycle involving: %s", strings.Join(titles, ", "))
	}
	return nil
}

func ruleName(id string, idx int) string {
	if id != "" {
		return id
	}
	return fmt.Sprintf("#%d", idx)
}

// checkSimpleRule returns every defect of one simple rule. Shared by the
// save gate (first defect fails the save) and rule analysis (all defects
// reported).
func checkSimpleRule(rule config.SimpleRule, questions map[string]config.Question) []string {
	var errs []string
	source, ok := questions[rule.Source]
	if !ok {
		return append(errs, fmt.Sprintf("unknown source question %q", rule.Source))
	}
	if !operatorAllowed(source.Type, rule.Condition) {
		errs = append(errs, fmt.Sprintf("operator %q is not valid for %s questions", rule.Condition, source.Type))
	}
	if rule.Condition.NeedsValue() && rule.Value == nil {
		errs = append(errs, fmt.Sprintf("operator %q needs a comparison value", rule.Condition))
	}
	for _, target := range rule.Targets {
		errs = append(errs, checkOrdering(source, target, questions)...)
	}
	return errs
}

// checkAdvancedRule returns every defect of one advanced rule. Disabled
// rules are skipped entirely.
func checkAdvancedRule(rule config.AdvancedRule, questions map[string]config.Question) []string {
	if !rule.IsEnabled() {
		return nil
	}
	var errs []string
	for _, group := range rule.Groups {
		for _, cond := range group.Conditions {
			source, ok := questions[cond.Source]
			if !ok {
				errs = append(errs, fmt.Sprintf("unknown condition source %q", cond.Source))
				continue
			}
			if !operatorAllowed(source.Type, cond.Operator) {
				errs = append(errs, fmt.Sprintf("operator %q is not valid for %s questions", cond.Operator, source.Type))
			}
			if cond.Operator.NeedsValue() && cond.Value == nil {
				errs = append(errs, fmt.Sprintf("operator %q needs a comparison value", cond.Operator))
			}
			for _, target := range rule.Targets {
				errs = append(errs, checkOrdering(source, target, questions)...)
			}
		}
	}

	if rule.SetValue != nil {
		if source, ok := questions[rule.SetValue.Source]; ok {
			errs = append(errs, checkOrdering(source, rule.SetValue.Target, questions)...)
		}
	}
	if rule.Calculate != nil {
		errs = append(errs, checkCalculate(rule.Calculate, questions)...)
	}
	return errs
}

func checkCalculate(calc *config.CalculateSpec, questions map[string]config.Question) []string {
	var errs []string
	program, err := formula.Compile(calc.Formula)
	if err != nil {
		errs = append(errs, fmt.Sprintf("formula does not compile: %v", err))
	} else {
		for _, index := range program.Variables() {
			if index > len(calc.Sources) {
				errs = append(errs, fmt.Sprintf("formula references Q%d but only %d sources are bound", index, len(calc.Sources)))
			}
		}
	}
	if target, ok := questions[calc.Target]; ok && !target.Type.Numeric() {
		errs = append(errs, fmt.Sprintf("calculate target %s must be a numeric question, not %s", calc.Target, target.Type))
	}
	for _, src := range calc.Sources {
		source, ok := questions[src]
		if !ok {
			continue
		}
		if !source.Type.Numeric() {
			errs = append(errs, fmt.Sprintf("calculate source %s must be a numeric question, not %s", src, source.Type))
		}
		errs = append(errs, checkOrdering(source, calc.Target, questions)...)
	}
	return errs
}

// checkOrdering enforces the authoring convention that a rule's source must
// come before its targets. This is a usability guard, not the cycle safety
// net: independently authored rules can still close a loop across questions
// in order, which is why the graph-based detector runs as well.
func checkOrdering(source config.Question, targetID string, questions map[string]config.Question) []string {
	target, ok := questions[targetID]
	if !ok {
		return []string{fmt.Sprintf("unknown target question %q", targetID)}
	}
	if source.OrderIndex >= target.OrderIndex {
		return []string{fmt.Sprintf("source %s must precede target %s in the form", source.ID, target.ID)}
	}
	return nil
}
