package depeval

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/caseflow-dev/caseflow/internal/metrics"
	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

// FieldState is the effective state of one field after all dependency rules
// targeting it have been evaluated.
type FieldState struct {
	Visible     bool           `json:"visible"`
	Enabled     bool           `json:"enabled"`
	Required    bool           `json:"required"`
	Forced      bool           `json:"forced,omitempty"`
	ForcedValue any            `json:"forcedValue,omitempty"`
	Cleared     bool           `json:"cleared,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
	Errors      []string       `json:"errors,omitempty"`
}

// Result is the outcome of evaluating a template's dependency rules against a
// case-data payload.
type Result struct {
	Valid  bool                   `json:"valid"`
	Errors []string               `json:"errors,omitempty"`
	Fields map[string]*FieldState `json:"fields"`
	// Data is the working payload after set_value actions; the input map is
	// never mutated.
	Data map[string]any `json:"data"`
}

// Evaluate runs a single pass over the template's dependency rules in field
// display order. Rules are evaluated independently per rule, not chained
// transitively: a set_value result is visible to later rules only because it
// mutates the working payload, evaluation order follows display order.
func Evaluate(tpl casedef.Template, caseData map[string]any) Result {
	data := make(map[string]any, len(caseData))
	for k, v := range caseData {
		data[k] = v
	}

	res := Result{Fields: make(map[string]*FieldState, len(tpl.Fields)), Data: data}
	known := make(map[string]struct{}, len(tpl.Fields))
	for _, f := range tpl.Fields {
		known[f.FieldID] = struct{}{}
		res.Fields[f.FieldID] = &FieldState{Visible: true, Enabled: true, Required: f.Required}
	}

	for _, f := range tpl.Fields {
		state := res.Fields[f.FieldID]
		for _, rule := range f.Dependencies {
			if _, ok := known[rule.ParentField]; !ok {
				// template edits can orphan rules against long-lived drafts
				metrics.RulesSkipped.Inc()
				continue
			}
			if !conditionMatches(rule.Condition, data[rule.ParentField], rule.Value) {
				continue
			}
			metrics.RulesFired.WithLabelValues(string(rule.Action)).Inc()
			applyAction(f, rule, state, data)
		}
	}

	for _, f := range tpl.Fields {
		state := res.Fields[f.FieldID]
		if state.Required && isEmpty(data[f.FieldID]) {
			msg := fmt.Sprintf("%s is required", displayName(f))
			state.Errors = append(state.Errors, msg)
			res.Errors = append(res.Errors, msg)
			continue
		}
		if errs := checkRules(f, data[f.FieldID]); len(errs) > 0 {
			state.Errors = append(state.Errors, errs...)
			res.Errors = append(res.Errors, errs...)
		}
	}
	res.Valid = len(res.Errors) == 0

	outcome := "valid"
	if !res.Valid {
		outcome = "invalid"
	}
	metrics.Evaluations.WithLabelValues(outcome).Inc()
	return res
}

func applyAction(f casedef.Field, rule casedef.DependencyRule, state *FieldState, data map[string]any) {
	switch rule.Action {
	case casedef.ActionShow:
		state.Visible = true
	case casedef.ActionHide:
		state.Visible = false
	case casedef.ActionEnable:
		state.Enabled = true
	case casedef.ActionDisable:
		state.Enabled = false
	case casedef.ActionRequire:
		state.Required = true
	case casedef.ActionOptional:
		state.Required = false
	case casedef.ActionSetValue:
		if rule.ActionConfig != nil {
			if v, ok := rule.ActionConfig["value"]; ok {
				state.Forced = true
				state.ForcedValue = v
				data[f.FieldID] = v
			}
		}
	case casedef.ActionClearValue:
		// recorded as state only, the payload keeps its value
		state.Cleared = true
	case casedef.ActionUpdateOptions:
		state.Options = rule.ActionConfig
	}
}

func conditionMatches(cond casedef.ConditionType, parent any, condValue string) bool {
	switch cond {
	case casedef.CondEquals:
		return stringify(parent) == condValue
	case casedef.CondNotEquals:
		return stringify(parent) != condValue
	case casedef.CondContains:
		return strings.Contains(stringify(parent), condValue)
	case casedef.CondNotContains:
		return !strings.Contains(stringify(parent), condValue)
	case casedef.CondIsEmpty:
		return isEmpty(parent)
	case casedef.CondIsNotEmpty:
		return !isEmpty(parent)
	case casedef.CondInList:
		return inList(parent, condValue)
	case casedef.CondNotInList:
		return !inList(parent, condValue)
	case casedef.CondGreaterThan:
		a, b, ok := asNumbers(parent, condValue)
		return ok && a > b
	case casedef.CondLessThan:
		a, b, ok := asNumbers(parent, condValue)
		return ok && a < b
	}
	return false
}

func inList(parent any, condValue string) bool {
	v := stringify(parent)
	for _, item := range strings.Split(condValue, ",") {
		if strings.TrimSpace(item) == v {
			return true
		}
	}
	return false
}

// asNumbers parses both sides for the ordered comparisons. Either side failing
// to parse fails the condition safely to false.
func asNumbers(parent any, condValue string) (float64, float64, bool) {
	a, err := strconv.ParseFloat(strings.TrimSpace(stringify(parent)), 64)
	if err != nil {
		return 0, 0, false
	}
	b, err := strconv.ParseFloat(strings.TrimSpace(condValue), 64)
	if err != nil {
		return 0, 0, false
	}
	return a, b, true
}

// isEmpty treats every falsy value as unset: nil, blank strings, false, zero
// and empty collections. The string "0" is a real value.
func isEmpty(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	case bool:
		return !t
	case float64:
		return t == 0
	case int:
		return t == 0
	case int64:
		return t == 0
	case []any:
		return len(t) == 0
	case map[string]any:
		return len(t) == 0
	}
	return strings.TrimSpace(stringify(v)) == ""
}

// stringify renders payload values the way they would appear in a form field.
// Whole floats print without the trailing ".0" JSON decoding introduces.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	}
	return fmt.Sprintf("%v", v)
}

func displayName(f casedef.Field) string {
	if f.Name != "" {
		return f.Name
	}
	return f.FieldID
}
