package engine

import (
	"fmt"
	"strings"

	"github.com/timzifer/formlogic/config"
)

// RuleReport describes one rule for the authoring UI and the CLI check
// command: what it reads, what it affects, and every defect found.
type RuleReport struct {
	Question string
	Rule     string
	Kind     string
	Action   config.Action
	Enabled  bool
	Sources  []string
	Targets  []string
	Formula  string
	Errors   []string
}

// AnalyzeRules inspects every rule of the form and reports its wiring and
// defects without stopping at the first problem. The cycle verdict is a
// separate concern, see FindCircularQuestionIDs.
func AnalyzeRules(form *config.Form) ([]RuleReport, error) {
	if form == nil {
		return nil, fmt.Errorf("form must not be nil")
	}
	questions := make(map[string]config.Question, len(form.Questions))
	for _, q := range form.Questions {
		questions[q.ID] = q
	}

	var reports []RuleReport
	for _, q := range form.Sorted() {
		for i, rule := range q.LogicRules {
			reports = append(reports, RuleReport{
				Question: q.ID,
				Rule:     ruleName(rule.ID, i),
				Kind:     "simple",
				Action:   rule.Action,
				Enabled:  true,
				Sources:  []string{rule.Source},
				Targets:  append([]string(nil), rule.Targets...),
				Errors:   checkSimpleRule(rule, questions),
			})
		}
		for i, rule := range q.AdvancedRules {
			reports = append(reports, advancedReport(q.ID, ruleName(rule.ID, i), rule, questions))
		}
	}
	return reports, nil
}

func advancedReport(questionID, name string, rule config.AdvancedRule, questions map[string]config.Question) RuleReport {
	report := RuleReport{
		Question: questionID,
		Rule:     name,
		Kind:     "advanced",
		Action:   rule.Action,
		Enabled:  rule.IsEnabled(),
		Errors:   checkAdvancedRule(rule, questions),
	}

	seen := make(map[string]struct{})
	addSource := func(id string) {
		if id == "" {
			return
		}
		if _, dup := seen[id]; dup {
			return
		}
		seen[id] = struct{}{}
		report.Sources = append(report.Sources, id)
	}
	for _, group := range rule.Groups {
		for _, cond := range group.Conditions {
			addSource(cond.Source)
		}
	}

	switch {
	case rule.SetValue != nil:
		addSource(rule.SetValue.Source)
		report.Targets = []string{rule.SetValue.Target}
	case rule.Calculate != nil:
		for _, src := range rule.Calculate.Sources {
			addSource(src)
		}
		report.Targets = []string{rule.Calculate.Target}
		report.Formula = strings.TrimSpace(rule.Calculate.Formula)
	default:
		report.Targets = append([]string(nil), rule.Targets...)
	}
	return report
}
