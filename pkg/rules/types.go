package rules

import (
	"encoding/json"
	"sort"
)

// Operator is a condition operator.
type Operator string

const (
	OpEquals         Operator = "equals"
	OpNotEquals      Operator = "notEquals"
	OpContains       Operator = "contains"
	OpNotContains    Operator = "not-contains"
	OpGreater        Operator = "gt"
	OpGreaterOrEqual Operator = "gte"
	OpLess           Operator = "lt"
	OpLessOrEqual    Operator = "lte"
	OpIsTrue         Operator = "isTrue"
	OpIsFalse        Operator = "isFalse"
)

var operatorLabels = map[Operator]string{
	OpEquals:         "Equals",
	OpNotEquals:      "Not equals",
	OpContains:       "Contains",
	OpNotContains:    "Does not contain",
	OpGreater:        "Greater than",
	OpGreaterOrEqual: "Greater or equal",
	OpLess:           "Less than",
	OpLessOrEqual:    "Less or equal",
	OpIsTrue:         "Is true",
	OpIsFalse:        "Is false",
}

// Valid reports whether o is a known operator.
func (o Operator) Valid() bool {
	_, ok := operatorLabels[o]
	return ok
}

// Label returns the display label for o.
func (o Operator) Label() string {
	if label, ok := operatorLabels[o]; ok {
		return label
	}
	return string(o)
}

// Comparator is the relation enforced by an enforce-comparison action.
type Comparator string

const (
	CmpLess           Comparator = "<"
	CmpLessOrEqual    Comparator = "<="
	CmpGreater        Comparator = ">"
	CmpGreaterOrEqual Comparator = ">="
	CmpEqual          Comparator = "=="
	CmpNotEqual       Comparator = "!="
	CmpContains       Comparator = "contains"
	CmpNotContains    Comparator = "not-contains"
)

// NumericComparators apply to number and date targets.
var NumericComparators = []Comparator{CmpLess, CmpLessOrEqual, CmpGreater, CmpGreaterOrEqual, CmpEqual, CmpNotEqual}

// TextComparators apply to every other target type.
var TextComparators = []Comparator{CmpEqual, CmpNotEqual, CmpContains, CmpNotContains}

// Valid reports whether c is a known comparator.
func (c Comparator) Valid() bool {
	switch c {
	case CmpLess, CmpLessOrEqual, CmpGreater, CmpGreaterOrEqual,
		CmpEqual, CmpNotEqual, CmpContains, CmpNotContains:
		return true
	}
	return false
}

// ValueSource selects where the right-hand side of a comparison comes from.
type ValueSource string

const (
	SourceStatic ValueSource = "static"
	SourceField  ValueSource = "field"
)

// Condition tests one field or user-context value. Values means "is one of"
// for equals and notEquals.
type Condition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    string   `json:"value,omitempty"`
	Values   []string `json:"values,omitempty"`
}

// UnmarshalJSON accepts numeric and boolean literals for value and values.
func (c *Condition) UnmarshalJSON(data []byte) error {
	var aux struct {
		Field    string            `json:"field"`
		Operator Operator          `json:"operator"`
		Value    json.RawMessage   `json:"value"`
		Values   []json.RawMessage `json:"values"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	c.Field = aux.Field
	c.Operator = aux.Operator
	c.Value = rawText(aux.Value)
	c.Values = nil
	for _, raw := range aux.Values {
		c.Values = append(c.Values, rawText(raw))
	}
	return nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// Rule is a named condition set with one action.
type Rule struct {
	ID         string      `json:"id"`
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Action     Action      `json:"-"`
}

type ruleWire struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Conditions []Condition     `json:"conditions"`
	Action     json.RawMessage `json:"action"`
}

// MarshalJSON encodes the rule with its tagged action.
func (r Rule) MarshalJSON() ([]byte, error) {
	action, err := MarshalAction(r.Action)
	if err != nil {
		return nil, err
	}
	conditions := r.Conditions
	if conditions == nil {
		conditions = []Condition{}
	}
	return json.Marshal(ruleWire{ID: r.ID, Name: r.Name, Conditions: conditions, Action: action})
}

// UnmarshalJSON decodes a rule and its tagged action.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var wire ruleWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	action, err := UnmarshalAction(wire.Action)
	if err != nil {
		return err
	}
	r.ID = wire.ID
	r.Name = wire.Name
	r.Conditions = wire.Conditions
	r.Action = action
	return nil
}

// Clone returns a deep copy of the rule.
func (r Rule) Clone() Rule {
	out := r
	out.Conditions = make([]Condition, len(r.Conditions))
	for i, c := range r.Conditions {
		c.Values = append([]string(nil), c.Values...)
		out.Conditions[i] = c
	}
	out.Action = cloneAction(r.Action)
	return out
}

// Target returns the action's target field, or "" when the rule has no action.
func (r Rule) Target() string {
	if r.Action == nil {
		return ""
	}
	return r.Action.Target()
}

// Set is an unordered set of strings. It encodes as a sorted JSON array.
type Set map[string]struct{}

// NewSet builds a set from items.
func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, item := range items {
		s[item] = struct{}{}
	}
	return s
}

// Has reports membership.
func (s Set) Has(item string) bool {
	_, ok := s[item]
	return ok
}

// Sorted returns the members in ascending order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for item := range s {
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// MarshalJSON implements json.Marshaler.
func (s Set) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Sorted())
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Set) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	*s = NewSet(items...)
	return nil
}

// Result is the outcome of one evaluation pass.
type Result struct {
	HiddenFields Set               `json:"hiddenFields"`
	FieldErrors  map[string]string `json:"fieldErrors"`
	OptionHides  map[string]Set    `json:"optionHides"`
}

func newResult() Result {
	return Result{
		HiddenFields: Set{},
		FieldErrors:  map[string]string{},
		OptionHides:  map[string]Set{},
	}
}

// Hidden reports whether field is hidden.
func (r Result) Hidden(field string) bool {
	return r.HiddenFields.Has(field)
}

// Error returns the rule error for field.
func (r Result) Error(field string) (string, bool) {
	msg, ok := r.FieldErrors[field]
	return msg, ok
}

// HiddenOptions returns the suppressed option values for field.
func (r Result) HiddenOptions(field string) Set {
	return r.OptionHides[field]
}
