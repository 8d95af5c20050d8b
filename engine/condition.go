package engine

import (
	"strings"

	"github.com/timzifer/formlogic/config"
)

// operatorCatalog lists the condition operators valid per question type. The
// authoring UI offers exactly this set; an operator outside the catalog can
// only reach the evaluator through corrupted persisted data and evaluates to
// false instead of raising.
var operatorCatalog = map[config.QuestionType][]config.Operator{
	config.QuestionShortText: {
		config.OpEquals, config.OpNotEquals, config.OpContains,
		config.OpNotContains, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionLongText: {
		config.OpEquals, config.OpNotEquals, config.OpContains,
		config.OpNotContains, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionMultipleChoice: {
		config.OpEquals, config.OpNotEquals, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionDropdown: {
		config.OpEquals, config.OpNotEquals, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionCheckboxes: {
		config.OpContains, config.OpNotContains, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionLinearScale: {
		config.OpEquals, config.OpNotEquals, config.OpGreaterThan, config.OpLessThan,
		config.OpGreaterOrEqual, config.OpLessOrEqual, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionSlider: {
		config.OpEquals, config.OpNotEquals, config.OpGreaterThan, config.OpLessThan,
		config.OpGreaterOrEqual, config.OpLessOrEqual, config.OpIsEmpty, config.OpIsNotEmpty,
	},
	config.QuestionMatrix:     {config.OpIsEmpty, config.OpIsNotEmpty},
	config.QuestionDateTime:   {config.OpIsEmpty, config.OpIsNotEmpty},
	config.QuestionRanking:    {config.OpIsEmpty, config.OpIsNotEmpty},
	config.QuestionFileUpload: {config.OpIsEmpty, config.OpIsNotEmpty},
}

// OperatorsFor returns the operator catalog for a question type, in the
// order the authoring UI should offer them.
func OperatorsFor(kind config.QuestionType) []config.Operator {
	ops := operatorCatalog[kind]
	out := make([]config.Operator, len(ops))
	copy(out, ops)
	return out
}

func operatorAllowed(kind config.QuestionType, op config.Operator) bool {
	for _, candidate := range operatorCatalog[kind] {
		if candidate == op {
			return true
		}
	}
	return false
}

// evaluateCondition resolves one atomic condition against the answer map.
// A missing source question or an operator outside the catalog yields false.
// A missing or blank answer satisfies is_empty and nothing else.
func evaluateCondition(cond config.Condition, answers map[string]interface{}, questions map[string]config.Question) bool {
	question, ok := questions[cond.Source]
	if !ok {
		return false
	}
	if !operatorAllowed(question.Type, cond.Operator) {
		return false
	}

	raw, present := answers[cond.Source]
	var value interface{}
	if present {
		converted, err := convertValue(question.Type, raw)
		if err != nil {
			present = false
		} else {
			value = converted
		}
	}
	empty := !present || isEmptyValue(value)

	switch cond.Operator {
	case config.OpIsEmpty:
		return empty
	case config.OpIsNotEmpty:
		return !empty
	}
	if empty {
		// A missing answer can never satisfy a positive comparison.
		return false
	}

	switch cond.Operator {
	case config.OpEquals:
		return compareEqual(question.Type, value, cond.Value)
	case config.OpNotEquals:
		return !compareEqual(question.Type, value, cond.Value)
	case config.OpContains:
		return compareContains(question.Type, value, cond.Value)
	case config.OpNotContains:
		return !compareContains(question.Type, value, cond.Value)
	case config.OpGreaterThan:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a > b })
	case config.OpLessThan:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a < b })
	case config.OpGreaterOrEqual:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a >= b })
	case config.OpLessOrEqual:
		return compareNumeric(value, cond.Value, func(a, b float64) bool { return a <= b })
	default:
		return false
	}
}

func compareEqual(kind config.QuestionType, value, literal interface{}) bool {
	switch kind {
	case config.QuestionShortText, config.QuestionLongText:
		answer, ok := value.(string)
		if !ok {
			return false
		}
		expected, ok := literal.(string)
		if !ok {
			return false
		}
		// Case-sensitive on trimmed text.
		return strings.TrimSpace(answer) == strings.TrimSpace(expected)
	case config.QuestionLinearScale, config.QuestionSlider:
		answer, ok := numericValue(value)
		if !ok {
			return false
		}
		expected, ok := numericValue(literal)
		if !ok {
			return false
		}
		return answer == expected
	default:
		return valuesEqual(value, literal)
	}
}

func compareContains(kind config.QuestionType, value, literal interface{}) bool {
	needle, ok := literal.(string)
	if !ok {
		return false
	}
	switch v := value.(type) {
	case []string:
		for _, item := range v {
			if item == needle {
				return true
			}
		}
		return false
	case string:
		return strings.Contains(v, needle)
	default:
		return false
	}
}

func compareNumeric(value, literal interface{}, cmp func(a, b float64) bool) bool {
	answer, ok := numericValue(value)
	if !ok {
		return false
	}
	expected, ok := numericValue(literal)
	if !ok {
		return false
	}
	return cmp(answer, expected)
}
