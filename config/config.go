package config

import (
	"fmt"
	"sort"
	"strings"
	"unicode"
)

// QuestionType identifies the fixed set of question kinds a form may contain.
type QuestionType string

const (
	// QuestionShortText is a single-line free text question.
	QuestionShortText QuestionType = "short_text"
	// QuestionLongText is a multi-line free text question.
	QuestionLongText QuestionType = "long_text"
	// QuestionMultipleChoice offers exactly one selectable option.
	QuestionMultipleChoice QuestionType = "multiple_choice"
	// QuestionCheckboxes offers any number of selectable options.
	QuestionCheckboxes QuestionType = "checkboxes"
	// QuestionDropdown offers exactly one option from a dropdown list.
	QuestionDropdown QuestionType = "dropdown"
	// QuestionLinearScale is a numeric scale between fixed bounds.
	QuestionLinearScale QuestionType = "linear_scale"
	// QuestionSlider is a continuous numeric slider.
	QuestionSlider QuestionType = "slider"
	// QuestionMatrix collects one column choice per matrix row.
	QuestionMatrix QuestionType = "matrix"
	// QuestionDateTime collects a calendar date or timestamp.
	QuestionDateTime QuestionType = "date_time"
	// QuestionRanking collects an ordering of the configured items.
	QuestionRanking QuestionType = "ranking"
	// QuestionFileUpload collects uploaded file metadata.
	QuestionFileUpload QuestionType = "file_upload"
)

var questionTypes = map[QuestionType]struct{}{
	QuestionShortText:      {},
	QuestionLongText:       {},
	QuestionMultipleChoice: {},
	QuestionCheckboxes:     {},
	QuestionDropdown:       {},
	QuestionLinearScale:    {},
	QuestionSlider:         {},
	QuestionMatrix:         {},
	QuestionDateTime:       {},
	QuestionRanking:        {},
	QuestionFileUpload:     {},
}

// Known reports whether t is one of the supported question types.
func (t QuestionType) Known() bool {
	_, ok := questionTypes[t]
	return ok
}

// Numeric reports whether answers of this type carry a numeric value.
func (t QuestionType) Numeric() bool {
	return t == QuestionLinearScale || t == QuestionSlider
}

// Operator is a condition comparison operator.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "not_equals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not_contains"
	OpGreaterThan    Operator = "greater_than"
	OpLessThan       Operator = "less_than"
	OpGreaterOrEqual Operator = "greater_or_equal"
	OpLessOrEqual    Operator = "less_or_equal"
	OpIsEmpty        Operator = "is_empty"
	OpIsNotEmpty     Operator = "is_not_empty"
)

// NeedsValue reports whether the operator compares against a literal.
func (o Operator) NeedsValue() bool {
	return o != OpIsEmpty && o != OpIsNotEmpty
}

// Action is the effect a rule applies to its targets when it fires.
type Action string

const (
	ActionShow      Action = "show"
	ActionHide      Action = "hide"
	ActionRequire   Action = "require"
	ActionUnrequire Action = "unrequire"
	ActionSetValue  Action = "set_value"
	ActionCalculate Action = "calculate"
)

// GroupOperator combines conditions within a group or groups within a rule.
type GroupOperator string

const (
	GroupAnd GroupOperator = "AND"
	GroupOr  GroupOperator = "OR"
)

// Option is one selectable choice of a choice-type question.
type Option struct {
	ID    string      `yaml:"id"`
	Label string      `yaml:"label,omitempty"`
	Value interface{} `yaml:"value,omitempty"`
}

// Condition compares one source question's answer against a literal.
type Condition struct {
	ID       string      `yaml:"id,omitempty"`
	Source   string      `yaml:"source"`
	Operator Operator    `yaml:"operator"`
	Value    interface{} `yaml:"value,omitempty"`
}

// ConditionGroup combines its conditions with a single AND/OR operator.
type ConditionGroup struct {
	ID         string        `yaml:"id,omitempty"`
	Operator   GroupOperator `yaml:"operator"`
	Conditions []Condition   `yaml:"conditions"`
}

// SimpleRule is the legacy single-condition rule form.
type SimpleRule struct {
	ID        string      `yaml:"id,omitempty"`
	Source    string      `yaml:"source"`
	Condition Operator    `yaml:"condition"`
	Value     interface{} `yaml:"value,omitempty"`
	Action    Action      `yaml:"action"`
	Targets   []string    `yaml:"targets"`
}

// SetValueSpec pipes the source question's answer into the target verbatim.
type SetValueSpec struct {
	Target string `yaml:"target"`
	Source string `yaml:"source"`
}

// CalculateSpec computes the target from a formula over the source questions.
// The formula binds Q1..Qn positionally to Sources.
type CalculateSpec struct {
	Target  string   `yaml:"target"`
	Sources []string `yaml:"sources"`
	Formula string   `yaml:"formula"`
}

// AdvancedRule combines condition groups and applies one of six actions.
type AdvancedRule struct {
	ID            string           `yaml:"id,omitempty"`
	Enabled       *bool            `yaml:"enabled,omitempty"`
	Name          string           `yaml:"name,omitempty"`
	Groups        []ConditionGroup `yaml:"groups"`
	GroupOperator GroupOperator    `yaml:"group_operator,omitempty"`
	Action        Action           `yaml:"action"`
	Targets       []string         `yaml:"targets,omitempty"`
	SetValue      *SetValueSpec    `yaml:"set_value,omitempty"`
	Calculate     *CalculateSpec   `yaml:"calculate,omitempty"`
}

// IsEnabled reports whether the rule participates in evaluation. Rules are
// enabled unless explicitly switched off.
func (r AdvancedRule) IsEnabled() bool {
	return r.Enabled == nil || *r.Enabled
}

// Question is one entry of a form definition. Rules attached to a question
// are flattened into one global ordered list before evaluation.
type Question struct {
	ID            string         `yaml:"id"`
	OrderIndex    int            `yaml:"order_index"`
	Type          QuestionType   `yaml:"type"`
	Title         string         `yaml:"title,omitempty"`
	Required      bool           `yaml:"required,omitempty"`
	Options       []Option       `yaml:"options,omitempty"`
	LogicRules    []SimpleRule   `yaml:"logic_rules,omitempty"`
	AdvancedRules []AdvancedRule `yaml:"advanced_logic_rules,omitempty"`
}

// Form is the root of a form definition document.
type Form struct {
	Name        string     `yaml:"name,omitempty"`
	Description string     `yaml:"description,omitempty"`
	Questions   []Question `yaml:"questions"`
}

// Sorted returns the questions ordered by ascending order index.
func (f *Form) Sorted() []Question {
	if f == nil {
		return nil
	}
	out := make([]Question, len(f.Questions))
	copy(out, f.Questions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out
}

// Question returns the question with the given id, if present.
func (f *Form) Question(id string) (Question, bool) {
	if f == nil {
		return Question{}, false
	}
	for _, q := range f.Questions {
		if q.ID == id {
			return q, true
		}
	}
	return Question{}, false
}

// Validate checks structural integrity of the form definition: identifier
// syntax, uniqueness, known question types, rule payload coherence and
// references to existing questions. Rule semantics (operator catalogs,
// formulas, cycles) are checked by the engine package.
func (f *Form) Validate() error {
	if f == nil {
		return fmt.Errorf("form must not be nil")
	}
	ids := make(map[string]struct{}, len(f.Questions))
	orders := make(map[int]string, len(f.Questions))
	for _, q := range f.Questions {
		if err := ensureIdentifier(q.ID, "question"); err != nil {
			return err
		}
		if _, ok := ids[q.ID]; ok {
			return fmt.Errorf("duplicate question id %q", q.ID)
		}
		ids[q.ID] = struct{}{}
		if other, ok := orders[q.OrderIndex]; ok {
			return fmt.Errorf("questions %s and %s share order index %d", other, q.ID, q.OrderIndex)
		}
		orders[q.OrderIndex] = q.ID
		if !q.Type.Known() {
			return fmt.Errorf("question %s has unknown type %q", q.ID, q.Type)
		}
	}

	exists := func(id string) bool {
		_, ok := ids[id]
		return ok
	}

	for _, q := range f.Questions {
		for i, rule := range q.LogicRules {
			label := ruleLabel("logic rule", q.ID, rule.ID, i)
			if err := validateSimpleRule(label, rule, exists); err != nil {
				return err
			}
		}
		for i, rule := range q.AdvancedRules {
			label := ruleLabel("advanced rule", q.ID, rule.ID, i)
			if err := validateAdvancedRule(label, rule, exists); err != nil {
				return err
			}
		}
	}
	return nil
}

func ruleLabel(kind, questionID, ruleID string, idx int) string {
	if ruleID != "" {
		return fmt.Sprintf("%s %s of question %s", kind, ruleID, questionID)
	}
	return fmt.Sprintf("%s #%d of question %s", kind, idx, questionID)
}

func validateSimpleRule(label string, rule SimpleRule, exists func(string) bool) error {
	if rule.Source == "" {
		return fmt.Errorf("%s: source question is required", label)
	}
	if !exists(rule.Source) {
		return fmt.Errorf("%s: unknown source question %q", label, rule.Source)
	}
	switch rule.Action {
	case ActionShow, ActionHide, ActionRequire, ActionUnrequire:
	default:
		return fmt.Errorf("%s: unsupported action %q", label, rule.Action)
	}
	if len(rule.Targets) == 0 {
		return fmt.Errorf("%s: at least one target is required", label)
	}
	for _, target := range rule.Targets {
		if !exists(target) {
			return fmt.Errorf("%s: unknown target question %q", label, target)
		}
	}
	return nil
}

func validateAdvancedRule(label string, rule AdvancedRule, exists func(string) bool) error {
	switch rule.Action {
	case ActionShow, ActionHide, ActionRequire, ActionUnrequire, ActionSetValue, ActionCalculate:
	default:
		return fmt.Errorf("%s: unsupported action %q", label, rule.Action)
	}
	if rule.SetValue != nil && rule.Action != ActionSetValue {
		return fmt.Errorf("%s: set_value payload only valid for set_value action", label)
	}
	if rule.Calculate != nil && rule.Action != ActionCalculate {
		return fmt.Errorf("%s: calculate payload only valid for calculate action", label)
	}
	if !rule.IsEnabled() {
		return nil
	}
	if len(rule.Groups) == 0 {
		return fmt.Errorf("%s: at least one condition group is required", label)
	}
	for _, group := range rule.Groups {
		if err := validateGroupOperator(label, group.Operator); err != nil {
			return err
		}
		if len(group.Conditions) == 0 {
			return fmt.Errorf("%s: condition group %s has no conditions", label, group.ID)
		}
		for _, cond := range group.Conditions {
			if cond.Source == "" {
				return fmt.Errorf("%s: condition source question is required", label)
			}
			if !exists(cond.Source) {
				return fmt.Errorf("%s: unknown condition source %q", label, cond.Source)
			}
		}
	}
	if rule.GroupOperator != "" {
		if err := validateGroupOperator(label, rule.GroupOperator); err != nil {
			return err
		}
	}

	switch rule.Action {
	case ActionSetValue:
		if rule.SetValue == nil {
			return fmt.Errorf("%s: set_value payload is required", label)
		}
		if !exists(rule.SetValue.Source) {
			return fmt.Errorf("%s: unknown set_value source %q", label, rule.SetValue.Source)
		}
		if !exists(rule.SetValue.Target) {
			return fmt.Errorf("%s: unknown set_value target %q", label, rule.SetValue.Target)
		}
	case ActionCalculate:
		if rule.Calculate == nil {
			return fmt.Errorf("%s: calculate payload is required", label)
		}
		if strings.TrimSpace(rule.Calculate.Formula) == "" {
			return fmt.Errorf("%s: calculate formula must not be empty", label)
		}
		if !exists(rule.Calculate.Target) {
			return fmt.Errorf("%s: unknown calculate target %q", label, rule.Calculate.Target)
		}
		if len(rule.Calculate.Sources) == 0 {
			return fmt.Errorf("%s: calculate needs at least one source question", label)
		}
		for _, src := range rule.Calculate.Sources {
			if !exists(src) {
				return fmt.Errorf("%s: unknown calculate source %q", label, src)
			}
		}
	default:
		if len(rule.Targets) == 0 {
			return fmt.Errorf("%s: at least one target is required", label)
		}
		for _, target := range rule.Targets {
			if !exists(target) {
				return fmt.Errorf("%s: unknown target question %q", label, target)
			}
		}
	}
	return nil
}

func validateGroupOperator(label string, op GroupOperator) error {
	switch op {
	case GroupAnd, GroupOr:
		return nil
	default:
		return fmt.Errorf("%s: unsupported group operator %q", label, op)
	}
}

func ensureIdentifier(value, kind string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("%s identifier must not be empty", kind)
	}
	for idx, r := range trimmed {
		if idx == 0 && unicode.IsDigit(r) {
			return fmt.Errorf("%s %q must not start with a digit", kind, trimmed)
		}
		if !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			return fmt.Errorf("%s %q contains invalid character %q", kind, trimmed, r)
		}
	}
	return nil
}
