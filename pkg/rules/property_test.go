package rules

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestEvaluateProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	engine := quietEngine()

	properties.Property("unconditional hide always hides target", prop.ForAll(
		func(value string, count int) bool {
			rules := []Rule{{ID: "r", Action: HideField{TargetField: "x"}}}
			result := engine.Evaluate(rules, map[string]any{"x": value, "n": count}, nil)
			return result.Hidden("x")
		},
		gen.AlphaString(),
		gen.IntRange(-1000, 1000),
	))

	properties.Property("unset values never satisfy equals", prop.ForAll(
		func(expected string) bool {
			c := Condition{Field: "x", Operator: OpEquals, Value: expected}
			return !EvaluateCondition(c, map[string]any{}) &&
				!EvaluateCondition(c, map[string]any{"x": ""}) &&
				!EvaluateCondition(c, map[string]any{"x": []any{}})
		},
		gen.AlphaString(),
	))

	properties.Property("evaluation is deterministic", prop.ForAll(
		func(threshold int, value int, hide bool) bool {
			var action Action = EnforceComparison{TargetField: "n", Comparator: CmpLess, ValueSource: SourceStatic, Value: float64(threshold)}
			if hide {
				action = HideField{TargetField: "n"}
			}
			rules := []Rule{{ID: "r", Conditions: []Condition{{Field: "flag", Operator: OpIsTrue}}, Action: action}}
			values := map[string]any{"flag": true, "n": value}
			first := engine.Evaluate(rules, values, nil)
			second := engine.Evaluate(rules, values, nil)
			return cmp.Diff(first, second) == ""
		},
		gen.IntRange(-50, 50),
		gen.IntRange(-50, 50),
		gen.Bool(),
	))

	properties.Property("numeric comparisons agree with float ordering", prop.ForAll(
		func(a, b int) bool {
			left, right := Num(float64(a)), Num(float64(b))
			return CompareValues(left, right, CmpLess) == (a < b) &&
				CompareValues(left, right, CmpGreaterOrEqual) == (a >= b) &&
				CompareValues(left, right, CmpEqual) == (a == b)
		},
		gen.IntRange(-1000, 1000),
		gen.IntRange(-1000, 1000),
	))

	properties.TestingRun(t)
}
