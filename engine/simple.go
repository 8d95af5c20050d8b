package engine

import "github.com/timzifer/formlogic/config"

// flatSimpleRule is a simple rule in the flattened global order, annotated
// with the question it was authored on.
type flatSimpleRule struct {
	rule  config.SimpleRule
	owner string
	order int
}

// evaluateSimpleLogic runs the legacy single-condition rules. The policy is
// hide-biased: a hide rule hides its targets when its condition holds, and a
// show rule hides its targets when its condition does NOT hold, so a show
// rule never un-hides what another rule hid. Hidden membership is a union
// across rules; required overrides are last-writer-wins in rule order.
func evaluateSimpleLogic(rules []flatSimpleRule, answers map[string]interface{}, questions map[string]config.Question) (map[string]struct{}, map[string]bool) {
	hidden := make(map[string]struct{})
	required := make(map[string]bool)

	for _, flat := range rules {
		rule := flat.rule
		matched := evaluateCondition(config.Condition{
			Source:   rule.Source,
			Operator: rule.Condition,
			Value:    rule.Value,
		}, answers, questions)

		switch rule.Action {
		case config.ActionHide:
			if matched {
				for _, target := range rule.Targets {
					hidden[target] = struct{}{}
				}
			}
		case config.ActionShow:
			if !matched {
				for _, target := range rule.Targets {
					hidden[target] = struct{}{}
				}
			}
		case config.ActionRequire:
			if matched {
				for _, target := range rule.Targets {
					required[target] = true
				}
			}
		case config.ActionUnrequire:
			if matched {
				for _, target := range rule.Targets {
					required[target] = false
				}
			}
		}
	}
	return hidden, required
}
