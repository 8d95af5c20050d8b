package engine

import (
	"strings"
	"testing"

	"github.com/timzifer/formlogic/config"
)

func validForm() *config.Form {
	return &config.Form{
		Name: "survey",
		Questions: []config.Question{
			{
				ID: "owns_car", OrderIndex: 1, Type: config.QuestionMultipleChoice, Title: "Do you own a car?",
				Options: []config.Option{{ID: "yes", Value: "yes"}, {ID: "no", Value: "no"}},
				LogicRules: []config.SimpleRule{{
					ID:        "show_model",
					Source:    "owns_car",
					Condition: config.OpEquals,
					Value:     "yes",
					Action:    config.ActionShow,
					Targets:   []string{"car_model"},
				}},
			},
			{ID: "car_model", OrderIndex: 2, Type: config.QuestionShortText, Title: "Which model?"},
			{
				ID: "quantity", OrderIndex: 3, Type: config.QuestionSlider, Title: "Quantity",
				AdvancedRules: []config.AdvancedRule{{
					ID: "compute_total",
					Groups: []config.ConditionGroup{{
						Operator:   config.GroupAnd,
						Conditions: []config.Condition{{Source: "quantity", Operator: config.OpIsNotEmpty}},
					}},
					Action: config.ActionCalculate,
					Calculate: &config.CalculateSpec{
						Target:  "total",
						Sources: []string{"quantity"},
						Formula: "Q1 * 2",
					},
				}},
			},
			{ID: "total", OrderIndex: 4, Type: config.QuestionLinearScale, Title: "Total"},
		},
	}
}

func TestValidateRulesAcceptsWellFormedRuleSet(t *testing.T) {
	if err := ValidateRules(validForm()); err != nil {
		t.Fatalf("expected valid rule set, got %v", err)
	}
}

func TestValidateRulesRejectsOperatorOutsideCatalog(t *testing.T) {
	form := validForm()
	form.Questions[0].LogicRules[0].Condition = config.OpGreaterThan
	form.Questions[0].LogicRules[0].Value = 3
	err := ValidateRules(form)
	if err == nil || !strings.Contains(err.Error(), "not valid for multiple_choice") {
		t.Fatalf("expected operator catalog error, got %v", err)
	}
}

func TestValidateRulesRejectsMissingComparisonValue(t *testing.T) {
	form := validForm()
	form.Questions[0].LogicRules[0].Value = nil
	err := ValidateRules(form)
	if err == nil || !strings.Contains(err.Error(), "needs a comparison value") {
		t.Fatalf("expected missing value error, got %v", err)
	}
}

func TestValidateRulesRejectsFormulaArityMismatch(t *testing.T) {
	form := validForm()
	form.Questions[2].AdvancedRules[0].Calculate.Formula = "Q1 + Q2"
	err := ValidateRules(form)
	if err == nil || !strings.Contains(err.Error(), "Q2") {
		t.Fatalf("expected arity error naming Q2, got %v", err)
	}
}

func TestValidateRulesRejectsNonNumericCalculateTarget(t *testing.T) {
	form := validForm()
	form.Questions[2].AdvancedRules[0].Calculate.Target = "car_model"
	err := ValidateRules(form)
	if err == nil || !strings.Contains(err.Error(), "numeric") {
		t.Fatalf("expected numeric target error, got %v", err)
	}
}

func TestValidateRulesRejectsSourceAfterTarget(t *testing.T) {
	form := validForm()
	form.Questions[0].OrderIndex = 5
	err := ValidateRules(form)
	if err == nil || !strings.Contains(err.Error(), "must precede") {
		t.Fatalf("expected ordering error, got %v", err)
	}
}

func TestValidateRulesReportsCycleWithQuestionTitles(t *testing.T) {
	// The loop closes through a condition edge (total gates a write into
	// quantity), which the per-rule ordering guard does not cover. Only the
	// graph detector catches it.
	form := validForm()
	form.Questions = append(form.Questions, config.Question{
		ID: "base", OrderIndex: 0, Type: config.QuestionSlider, Title: "Base",
	})
	form.Questions[3].AdvancedRules = []config.AdvancedRule{{
		ID: "loop_back",
		Groups: []config.ConditionGroup{{
			Operator:   config.GroupAnd,
			Conditions: []config.Condition{{Source: "total", Operator: config.OpIsNotEmpty}},
		}},
		Action: config.ActionCalculate,
		Calculate: &config.CalculateSpec{
			Target:  "quantity",
			Sources: []string{"base"},
			Formula: "Q1 / 2",
		},
	}}

	err := ValidateRules(form)
	if err == nil {
		t.Fatalf("expected cycle error")
	}
	msg := err.Error()
	if !strings.Contains(msg, "dependency cycle") {
		t.Fatalf("expected cycle error, got %v", err)
	}
	if !strings.Contains(msg, "Quantity (quantity)") || !strings.Contains(msg, "Total (total)") {
		t.Fatalf("expected cycle error to name both questions, got %v", err)
	}
}

func TestValidateRulesSkipsDisabledAdvancedRules(t *testing.T) {
	disabled := false
	form := validForm()
	form.Questions[2].AdvancedRules[0].Enabled = &disabled
	form.Questions[2].AdvancedRules[0].Calculate.Formula = "Q1 + Q7"
	if err := ValidateRules(form); err != nil {
		t.Fatalf("expected disabled rule to be skipped, got %v", err)
	}
}

func TestAnalyzeRulesReportsWiringAndDefects(t *testing.T) {
	form := validForm()
	form.Questions[0].LogicRules[0].Value = nil

	reports, err := AnalyzeRules(form)
	if err != nil {
		t.Fatalf("analyze rules: %v", err)
	}
	if len(reports) != 2 {
		t.Fatalf("expected 2 reports, got %d", len(reports))
	}

	simple := reports[0]
	if simple.Kind != "simple" || simple.Rule != "show_model" {
		t.Fatalf("unexpected first report %+v", simple)
	}
	if len(simple.Errors) == 0 {
		t.Fatalf("expected the defective simple rule to carry errors")
	}

	advanced := reports[1]
	if advanced.Kind != "advanced" || advanced.Formula != "Q1 * 2" {
		t.Fatalf("unexpected advanced report %+v", advanced)
	}
	if len(advanced.Sources) != 1 || advanced.Sources[0] != "quantity" {
		t.Fatalf("expected quantity as the only source, got %v", advanced.Sources)
	}
	if len(advanced.Targets) != 1 || advanced.Targets[0] != "total" {
		t.Fatalf("expected total as the only target, got %v", advanced.Targets)
	}
	if len(advanced.Errors) != 0 {
		t.Fatalf("expected the calculate rule to be clean, got %v", advanced.Errors)
	}
}
