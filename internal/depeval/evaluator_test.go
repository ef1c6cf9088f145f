package depeval

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/caseflow-dev/caseflow/pkg/casedef"
)

func assetTemplate() casedef.Template {
	return casedef.Template{
		Name: "IT Asset Request",
		Fields: []casedef.Field{
			{FieldID: "category", Name: "Category", Type: casedef.FieldSelect, Required: true},
			{FieldID: "asset_tag", Name: "Asset Tag", Type: casedef.FieldText, Dependencies: []casedef.DependencyRule{
				{ParentField: "category", Condition: casedef.CondEquals, Value: "HW", Action: casedef.ActionRequire},
			}},
		},
	}
}

func TestConditionSemantics(t *testing.T) {
	cases := []struct {
		name   string
		cond   casedef.ConditionType
		parent any
		value  string
		want   bool
	}{
		{"equals match", casedef.CondEquals, "HW", "HW", true},
		{"equals mismatch", casedef.CondEquals, "SW", "HW", false},
		{"equals stringified number", casedef.CondEquals, float64(5), "5", true},
		{"not_equals", casedef.CondNotEquals, "SW", "HW", true},
		{"contains", casedef.CondContains, "Hardware", "ard", true},
		{"contains miss", casedef.CondContains, "Hardware", "xyz", false},
		{"not_contains", casedef.CondNotContains, "Hardware", "xyz", true},
		{"is_empty nil", casedef.CondIsEmpty, nil, "", true},
		{"is_empty blank", casedef.CondIsEmpty, "   ", "", true},
		{"is_empty value", casedef.CondIsEmpty, "x", "", false},
		{"is_empty false", casedef.CondIsEmpty, false, "", true},
		{"is_empty zero", casedef.CondIsEmpty, float64(0), "", true},
		{"is_empty zero string", casedef.CondIsEmpty, "0", "", false},
		{"is_empty empty map", casedef.CondIsEmpty, map[string]any{}, "", true},
		{"is_not_empty", casedef.CondIsNotEmpty, "x", "", true},
		{"in_list member", casedef.CondInList, "sev2", "sev1,sev2", true},
		{"in_list spaces", casedef.CondInList, "sev2", "sev1, sev2", true},
		{"in_list miss", casedef.CondInList, "sev3", "sev1,sev2", false},
		{"not_in_list", casedef.CondNotInList, "sev3", "sev1,sev2", true},
		{"greater_than", casedef.CondGreaterThan, float64(10), "5", true},
		{"greater_than equal", casedef.CondGreaterThan, float64(5), "5", false},
		{"greater_than string number", casedef.CondGreaterThan, "10", "5", true},
		{"greater_than unparseable", casedef.CondGreaterThan, "abc", "5", false},
		{"less_than", casedef.CondLessThan, float64(3), "5", true},
		{"less_than unparseable bound", casedef.CondLessThan, float64(3), "five", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := conditionMatches(tc.cond, tc.parent, tc.value); got != tc.want {
				t.Fatalf("conditionMatches(%s, %v, %q) = %v, want %v", tc.cond, tc.parent, tc.value, got, tc.want)
			}
		})
	}
}

func TestRequireOnCondition(t *testing.T) {
	tpl := assetTemplate()

	res := Evaluate(tpl, map[string]any{"category": "HW"})
	if res.Valid {
		t.Fatal("expected HW without asset_tag to fail validation")
	}
	found := false
	for _, msg := range res.Errors {
		if msg == "Asset Tag is required" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected error naming asset_tag, got %v", res.Errors)
	}
	if !res.Fields["asset_tag"].Required {
		t.Fatal("expected asset_tag state to be required")
	}

	res = Evaluate(tpl, map[string]any{"category": "SW"})
	if !res.Valid {
		t.Fatalf("expected SW without asset_tag to pass, got %v", res.Errors)
	}
	if res.Fields["asset_tag"].Required {
		t.Fatal("expected asset_tag to stay optional for SW")
	}
}

func TestSetValueMutatesWorkingCopyInDisplayOrder(t *testing.T) {
	tpl := casedef.Template{
		Fields: []casedef.Field{
			{FieldID: "kind", Type: casedef.FieldSelect},
			{FieldID: "team", Type: casedef.FieldText, Dependencies: []casedef.DependencyRule{
				{ParentField: "kind", Condition: casedef.CondEquals, Value: "network", Action: casedef.ActionSetValue,
					ActionConfig: map[string]any{"value": "netops"}},
			}},
			// evaluated after "team", so it observes the forced value
			{FieldID: "escalation", Type: casedef.FieldText, Dependencies: []casedef.DependencyRule{
				{ParentField: "team", Condition: casedef.CondEquals, Value: "netops", Action: casedef.ActionRequire},
			}},
		},
	}
	input := map[string]any{"kind": "network"}
	res := Evaluate(tpl, input)
	if res.Data["team"] != "netops" {
		t.Fatalf("expected set_value to write working copy, got %v", res.Data["team"])
	}
	if !res.Fields["escalation"].Required {
		t.Fatal("expected later rule to observe the forced value")
	}
	if res.Valid {
		t.Fatal("expected required escalation to invalidate the payload")
	}
	if _, ok := input["team"]; ok {
		t.Fatal("input payload must not be mutated")
	}
}

func TestShowHideEnableDisable(t *testing.T) {
	tpl := casedef.Template{
		Fields: []casedef.Field{
			{FieldID: "category", Type: casedef.FieldSelect},
			{FieldID: "license_count", Type: casedef.FieldNumber, Dependencies: []casedef.DependencyRule{
				{ParentField: "category", Condition: casedef.CondEquals, Value: "HW", Action: casedef.ActionHide},
				{ParentField: "category", Condition: casedef.CondEquals, Value: "HW", Action: casedef.ActionDisable},
			}},
		},
	}
	res := Evaluate(tpl, map[string]any{"category": "HW"})
	st := res.Fields["license_count"]
	if st.Visible || st.Enabled {
		t.Fatalf("expected hidden+disabled, got visible=%v enabled=%v", st.Visible, st.Enabled)
	}

	res = Evaluate(tpl, map[string]any{"category": "SW"})
	st = res.Fields["license_count"]
	if !st.Visible || !st.Enabled {
		t.Fatal("expected defaults when no rule fires")
	}
}

func TestOrphanedParentRuleIsSkipped(t *testing.T) {
	tpl := casedef.Template{
		Fields: []casedef.Field{
			{FieldID: "b", Type: casedef.FieldText, Dependencies: []casedef.DependencyRule{
				{ParentField: "gone", Condition: casedef.CondIsEmpty, Action: casedef.ActionRequire},
			}},
		},
	}
	res := Evaluate(tpl, map[string]any{})
	if !res.Valid {
		t.Fatalf("orphaned rule must be a no-op, got %v", res.Errors)
	}
	if res.Fields["b"].Required {
		t.Fatal("orphaned rule must not change state")
	}
}

func TestEvaluateIsDeterministic(t *testing.T) {
	tpl := assetTemplate()
	data := map[string]any{"category": "HW", "asset_tag": "A-1"}
	first := Evaluate(tpl, data)
	for i := 0; i < 5; i++ {
		again := Evaluate(tpl, data)
		if diff := cmp.Diff(first, again); diff != "" {
			t.Fatalf("run %d differs (-first +again):\n%s", i, diff)
		}
	}
}

func TestValidationRules(t *testing.T) {
	min, max := 3, 5
	lo, hi := 1.0, 10.0
	tpl := casedef.Template{
		Fields: []casedef.Field{
			{FieldID: "code", Name: "Code", Type: casedef.FieldText,
				Validation: &casedef.ValidationRules{MinLength: &min, MaxLength: &max, Pattern: "^[A-Z]+$"}},
			{FieldID: "count", Name: "Count", Type: casedef.FieldNumber,
				Validation: &casedef.ValidationRules{Min: &lo, Max: &hi}},
			{FieldID: "mail", Name: "Mail", Type: casedef.FieldEmail,
				Validation: &casedef.ValidationRules{EmailFormat: true}},
		},
	}

	res := Evaluate(tpl, map[string]any{"code": "ABCD", "count": float64(5), "mail": "a@b.co"})
	if !res.Valid {
		t.Fatalf("expected valid payload, got %v", res.Errors)
	}

	res = Evaluate(tpl, map[string]any{"code": "ab", "count": float64(50), "mail": "nope"})
	if res.Valid {
		t.Fatal("expected invalid payload")
	}
	if len(res.Errors) < 3 {
		t.Fatalf("expected length, pattern, range and email errors, got %v", res.Errors)
	}

	// empty optional values are not validated
	res = Evaluate(tpl, map[string]any{})
	if !res.Valid {
		t.Fatalf("empty optional fields must pass, got %v", res.Errors)
	}
}

func TestStaticFieldOptions(t *testing.T) {
	f := casedef.Field{
		FieldID: "severity",
		Type:    casedef.FieldSelect,
		Config: map[string]any{"options": []any{
			"sev1",
			map[string]any{"value": "sev2", "label": "Major"},
		}},
	}
	opts, err := OptionsForField(context.Background(), f, nil, "", "", 10)
	if err != nil {
		t.Fatalf("OptionsForField: %v", err)
	}
	want := []Option{{Value: "sev1", Display: "sev1"}, {Value: "sev2", Display: "Major"}}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}
}

func TestDependentFieldOptionsMap(t *testing.T) {
	f := casedef.Field{
		FieldID: "model",
		Type:    casedef.FieldDependent,
		Config: map[string]any{
			"dependsOn": "vendor",
			"optionsMap": map[string]any{
				"lenovo": []any{"T14", "X1"},
				"apple":  []any{"MBP"},
			},
		},
	}
	opts, err := OptionsForField(context.Background(), f, nil, "", "lenovo", 10)
	if err != nil {
		t.Fatalf("OptionsForField: %v", err)
	}
	want := []Option{{Value: "T14", Display: "T14"}, {Value: "X1", Display: "X1"}}
	if diff := cmp.Diff(want, opts); diff != "" {
		t.Fatalf("options mismatch (-want +got):\n%s", diff)
	}

	// no parent value selected yet
	opts, err = OptionsForField(context.Background(), f, nil, "", "", 10)
	if err != nil {
		t.Fatalf("OptionsForField: %v", err)
	}
	if len(opts) != 0 {
		t.Fatalf("expected no options without a parent value, got %v", opts)
	}
}
