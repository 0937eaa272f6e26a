package rules

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCanonicalKeyIgnoresOrdering(t *testing.T) {
	t.Parallel()

	a := Rule{
		ID:   "a",
		Name: "first",
		Conditions: []Condition{
			{Field: "role", Operator: OpEquals, Value: "Admin"},
			{Field: "dept", Operator: OpEquals, Values: []string{"Sales", "HR"}},
		},
		Action: HideOptions{TargetField: "status", Options: []string{"b", "a"}},
	}
	b := Rule{
		ID:   "b",
		Name: "second",
		Conditions: []Condition{
			{Field: "dept", Operator: OpEquals, Values: []string{"HR", "Sales"}},
			{Field: "role", Operator: OpEquals, Value: "Admin"},
		},
		Action: HideOptions{TargetField: "status", Options: []string{"a", "b"}},
	}

	if CanonicalKey(a) != CanonicalKey(b) {
		t.Fatalf("keys differ:\n%s\n%s", CanonicalKey(a), CanonicalKey(b))
	}
}

func TestCanonicalKeyIgnoresOrderWithinSameFieldAndOperator(t *testing.T) {
	t.Parallel()

	first := []Condition{
		{Field: "role", Operator: OpNotEquals, Value: "A"},
		{Field: "role", Operator: OpNotEquals, Value: "B"},
		{Field: "role", Operator: OpNotEquals, Values: []string{"C"}},
	}
	swapped := []Condition{first[2], first[1], first[0]}
	action := HideField{TargetField: "status"}

	a := CanonicalKey(Rule{Conditions: first, Action: action})
	b := CanonicalKey(Rule{Conditions: swapped, Action: action})
	if a != b {
		t.Fatalf("keys differ:\n%s\n%s", a, b)
	}
}

func TestCanonicalKeyFormat(t *testing.T) {
	t.Parallel()

	rule := Rule{
		Conditions: []Condition{{Field: "role", Operator: OpEquals, Value: "Admin"}},
		Action:     HideField{TargetField: "status"},
	}
	want := `{"conditions":[{"field":"role","operator":"equals","value":"Admin","values":null}],"action":{"type":"hide-field","target":"status"}}`
	if got := CanonicalKey(rule); got != want {
		t.Fatalf("CanonicalKey = %s\nwant %s", got, want)
	}

	cmpRule := Rule{Action: EnforceComparison{TargetField: "n", Comparator: CmpGreater, ValueSource: SourceStatic, Value: 30.0}}
	wantCmp := `{"conditions":[],"action":{"type":"enforce-comparison","target":"n","comparator":">","valueSource":"static","value":30,"otherField":null,"offset":null}}`
	if got := CanonicalKey(cmpRule); got != wantCmp {
		t.Fatalf("CanonicalKey = %s\nwant %s", got, wantCmp)
	}
}

func TestCanonicalKeyDistinguishesEffect(t *testing.T) {
	t.Parallel()

	base := EnforceComparison{TargetField: "n", Comparator: CmpGreaterOrEqual, ValueSource: SourceField, OtherField: "m"}
	withOffset := base
	withOffset.Offset = floatPtr(-10)

	if CanonicalKey(Rule{Action: base}) == CanonicalKey(Rule{Action: withOffset}) {
		t.Fatalf("offset must be part of the key")
	}
	if CanonicalKey(Rule{Action: HideField{TargetField: "x"}}) == CanonicalKey(Rule{Action: ShowField{TargetField: "x"}}) {
		t.Fatalf("action type must be part of the key")
	}
	msgA, msgB := base, base
	msgA.ErrorMessage, msgB.ErrorMessage = "one", "two"
	if CanonicalKey(Rule{Action: msgA}) != CanonicalKey(Rule{Action: msgB}) {
		t.Fatalf("error message must not be part of the key")
	}
}

func TestIsDuplicateExcludesSelf(t *testing.T) {
	t.Parallel()

	existing := []Rule{{
		ID:         "rule-1",
		Conditions: []Condition{{Field: "role", Operator: OpEquals, Value: "Admin"}},
		Action:     HideField{TargetField: "status"},
	}}
	candidate := existing[0].Clone()
	candidate.Name = "renamed"

	if !IsDuplicate(candidate, existing, "") {
		t.Fatalf("identical rule should be a duplicate")
	}
	if IsDuplicate(candidate, existing, "rule-1") {
		t.Fatalf("editing a rule must not collide with itself")
	}
}

func TestRuleJSONRoundTrip(t *testing.T) {
	t.Parallel()

	in := []Rule{
		{ID: "1", Name: "hide", Action: HideField{TargetField: "a"}},
		{ID: "2", Name: "options", Conditions: []Condition{{Field: "x", Operator: OpIsTrue}}, Action: HideOptions{TargetField: "s", SourceFields: []string{"u", "v"}}},
		{ID: "3", Name: "cmp", Action: EnforceComparison{TargetField: "n", Comparator: CmpLess, ValueSource: SourceField, OtherField: "m", Offset: floatPtr(2), ErrorMessage: "too big"}},
	}
	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"sourceField":"u"`) {
		t.Fatalf("dynamic hide-options should keep the legacy sourceField: %s", raw)
	}

	var out []Rule
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if diff := cmp.Diff(in, out, cmpopts.EquateEmpty()); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalLegacyAndLenientFields(t *testing.T) {
	t.Parallel()

	raw := `{"id":"r","name":"legacy","conditions":[{"field":"age","operator":"gt","value":18},{"field":"role","operator":"equals","values":["a",1]}],
		"action":{"type":"hide-options","targetField":"status","sourceField":"used"}}`

	var rule Rule
	if err := json.Unmarshal([]byte(raw), &rule); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	want := Rule{
		ID:   "r",
		Name: "legacy",
		Conditions: []Condition{
			{Field: "age", Operator: OpGreater, Value: "18"},
			{Field: "role", Operator: OpEquals, Values: []string{"a", "1"}},
		},
		Action: HideOptions{TargetField: "status", SourceFields: []string{"used"}},
	}
	if diff := cmp.Diff(want, rule); diff != "" {
		t.Fatalf("decoded rule mismatch (-want +got):\n%s", diff)
	}
}

func TestUnmarshalUnknownAction(t *testing.T) {
	t.Parallel()

	var rule Rule
	err := json.Unmarshal([]byte(`{"id":"x","action":{"type":"explode","targetField":"a"}}`), &rule)
	if !errors.Is(err, ErrUnknownAction) {
		t.Fatalf("expected ErrUnknownAction, got %v", err)
	}
}
