package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// formSchema is the CUE contract every form definition document must satisfy
// before it is decoded. Definitions are closed, so unknown fields are
// rejected at the load boundary instead of silently dropped.
const formSchema = `
#QuestionType: "short_text" | "long_text" | "multiple_choice" | "checkboxes" |
	"dropdown" | "linear_scale" | "slider" | "matrix" | "date_time" |
	"ranking" | "file_upload"

#Operator: "equals" | "not_equals" | "contains" | "not_contains" |
	"greater_than" | "less_than" | "greater_or_equal" | "less_or_equal" |
	"is_empty" | "is_not_empty"

#SimpleAction:   "show" | "hide" | "require" | "unrequire"
#AdvancedAction: #SimpleAction | "set_value" | "calculate"
#GroupOperator:  "AND" | "OR"

#Option: {
	id:     string
	label?: string
	value?: _
}

#Condition: {
	id?:      string
	source:   string
	operator: #Operator
	value?:   _
}

#ConditionGroup: {
	id?:      string
	operator: #GroupOperator
	conditions: [...#Condition]
}

#SimpleRule: {
	id?:       string
	source:    string
	condition: #Operator
	value?:    _
	action:    #SimpleAction
	targets: [...string]
}

#SetValue: {
	target: string
	source: string
}

#Calculate: {
	target: string
	sources: [...string]
	formula: string
}

#AdvancedRule: {
	id?:      string
	enabled?: bool
	name?:    string
	groups: [...#ConditionGroup]
	group_operator?: #GroupOperator
	action:          #AdvancedAction
	targets?: [...string]
	set_value?: #SetValue
	calculate?: #Calculate
}

#Question: {
	id:          string
	order_index: int
	type:        #QuestionType
	title?:      string
	required?:   bool
	options?: [...#Option]
	logic_rules?: [...#SimpleRule]
	advanced_logic_rules?: [...#AdvancedRule]
}

#Form: {
	name?:        string
	description?: string
	questions: [...#Question]
}
`

var (
	schemaOnce  sync.Once
	schemaValue cue.Value
	schemaErr   error
)

// compiledSchema compiles the embedded form schema once and returns the
// #Form definition value.
func compiledSchema() (cue.Value, error) {
	schemaOnce.Do(func() {
		ctx := cuecontext.New()
		compiled := ctx.CompileString(formSchema)
		if err := compiled.Err(); err != nil {
			schemaErr = fmt.Errorf("compile form schema: %w", err)
			return
		}
		schemaValue = compiled.LookupPath(cue.ParsePath("#Form"))
		if err := schemaValue.Err(); err != nil {
			schemaErr = fmt.Errorf("lookup form schema root: %w", err)
		}
	})
	return schemaValue, schemaErr
}
