package engine

import (
	"testing"

	"github.com/timzifer/formlogic/config"
)

func conditionQuestions(questions ...config.Question) map[string]config.Question {
	out := make(map[string]config.Question, len(questions))
	for _, q := range questions {
		out[q.ID] = q
	}
	return out
}

func TestEvaluateConditionTextOperators(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "name", Type: config.QuestionShortText})
	answers := map[string]interface{}{"name": "  Ada Lovelace "}

	cases := []struct {
		name string
		cond config.Condition
		want bool
	}{
		{"equals trims whitespace", config.Condition{Source: "name", Operator: config.OpEquals, Value: "Ada Lovelace"}, true},
		{"equals is case sensitive", config.Condition{Source: "name", Operator: config.OpEquals, Value: "ada lovelace"}, false},
		{"contains substring", config.Condition{Source: "name", Operator: config.OpContains, Value: "Love"}, true},
		{"not contains", config.Condition{Source: "name", Operator: config.OpNotContains, Value: "Turing"}, true},
		{"is not empty", config.Condition{Source: "name", Operator: config.OpIsNotEmpty}, true},
		{"is empty", config.Condition{Source: "name", Operator: config.OpIsEmpty}, false},
	}
	for _, tc := range cases {
		if got := evaluateCondition(tc.cond, answers, questions); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestEvaluateConditionNumericOperators(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "score", Type: config.QuestionLinearScale})
	answers := map[string]interface{}{"score": 7}

	cases := []struct {
		op    config.Operator
		value interface{}
		want  bool
	}{
		{config.OpGreaterThan, 5, true},
		{config.OpGreaterThan, 7, false},
		{config.OpGreaterOrEqual, 7, true},
		{config.OpLessThan, 10, true},
		{config.OpLessOrEqual, 6, false},
		{config.OpEquals, 7.0, true},
		{config.OpEquals, "7", true},
		{config.OpNotEquals, 3, true},
	}
	for _, tc := range cases {
		cond := config.Condition{Source: "score", Operator: tc.op, Value: tc.value}
		if got := evaluateCondition(cond, answers, questions); got != tc.want {
			t.Fatalf("%s %v: expected %v, got %v", tc.op, tc.value, tc.want, got)
		}
	}
}

func TestEvaluateConditionCheckboxMembership(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "toppings", Type: config.QuestionCheckboxes})
	answers := map[string]interface{}{"toppings": []interface{}{"cheese", "olives"}}

	contains := config.Condition{Source: "toppings", Operator: config.OpContains, Value: "olives"}
	if !evaluateCondition(contains, answers, questions) {
		t.Fatalf("expected contains to match selected option")
	}
	missing := config.Condition{Source: "toppings", Operator: config.OpContains, Value: "ham"}
	if evaluateCondition(missing, answers, questions) {
		t.Fatalf("expected contains to miss unselected option")
	}
	notContains := config.Condition{Source: "toppings", Operator: config.OpNotContains, Value: "ham"}
	if !evaluateCondition(notContains, answers, questions) {
		t.Fatalf("expected not_contains to match unselected option")
	}
}

func TestEvaluateConditionMissingAnswer(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "color", Type: config.QuestionDropdown})
	answers := map[string]interface{}{}

	empty := config.Condition{Source: "color", Operator: config.OpIsEmpty}
	if !evaluateCondition(empty, answers, questions) {
		t.Fatalf("expected missing answer to satisfy is_empty")
	}
	equals := config.Condition{Source: "color", Operator: config.OpEquals, Value: "red"}
	if evaluateCondition(equals, answers, questions) {
		t.Fatalf("expected missing answer to fail equals")
	}
	notEquals := config.Condition{Source: "color", Operator: config.OpNotEquals, Value: "red"}
	if evaluateCondition(notEquals, answers, questions) {
		t.Fatalf("expected missing answer to fail not_equals")
	}
}

func TestEvaluateConditionBlankStringIsEmpty(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "note", Type: config.QuestionLongText})
	answers := map[string]interface{}{"note": "   "}

	empty := config.Condition{Source: "note", Operator: config.OpIsEmpty}
	if !evaluateCondition(empty, answers, questions) {
		t.Fatalf("expected whitespace-only answer to satisfy is_empty")
	}
}

func TestEvaluateConditionRejectsOperatorsOutsideCatalog(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "name", Type: config.QuestionShortText})
	answers := map[string]interface{}{"name": "5"}

	cond := config.Condition{Source: "name", Operator: config.OpGreaterThan, Value: 3}
	if evaluateCondition(cond, answers, questions) {
		t.Fatalf("expected ordered comparison on text to evaluate to false")
	}
}

func TestEvaluateConditionUnknownQuestion(t *testing.T) {
	questions := conditionQuestions()
	cond := config.Condition{Source: "ghost", Operator: config.OpIsEmpty}
	if evaluateCondition(cond, map[string]interface{}{}, questions) {
		t.Fatalf("expected condition on unknown question to be false")
	}
}

func TestEvaluateConditionConversionFailureCountsAsAbsent(t *testing.T) {
	questions := conditionQuestions(config.Question{ID: "score", Type: config.QuestionSlider})
	answers := map[string]interface{}{"score": "not a number"}

	empty := config.Condition{Source: "score", Operator: config.OpIsEmpty}
	if !evaluateCondition(empty, answers, questions) {
		t.Fatalf("expected unconvertible answer to count as absent")
	}
	greater := config.Condition{Source: "score", Operator: config.OpGreaterThan, Value: 1}
	if evaluateCondition(greater, answers, questions) {
		t.Fatalf("expected unconvertible answer to fail comparisons")
	}
}

func TestOperatorsForReturnsCopy(t *testing.T) {
	ops := OperatorsFor(config.QuestionShortText)
	if len(ops) == 0 {
		t.Fatalf("expected operators for short text questions")
	}
	ops[0] = config.Operator("mangled")
	if operatorAllowed(config.QuestionShortText, "mangled") {
		t.Fatalf("mutating the returned slice must not change the catalog")
	}
}
