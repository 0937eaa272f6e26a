package rules

import (
	"bytes"
	"encoding/json"
	"sort"
	"strings"
)

type canonicalCondition struct {
	Field    string   `json:"field"`
	Operator Operator `json:"operator"`
	Value    *string  `json:"value"`
	Values   []string `json:"values"`
}

type canonicalBase struct {
	Type   ActionType `json:"type"`
	Target string     `json:"target"`
}

type canonicalHideOptions struct {
	Type    ActionType `json:"type"`
	Target  string     `json:"target"`
	Options []string   `json:"options"`
	Sources []string   `json:"sources"`
}

type canonicalComparison struct {
	Type        ActionType  `json:"type"`
	Target      string      `json:"target"`
	Comparator  Comparator  `json:"comparator"`
	ValueSource ValueSource `json:"valueSource"`
	Value       any         `json:"value"`
	OtherField  *string     `json:"otherField"`
	Offset      *float64    `json:"offset"`
}

type canonicalRule struct {
	Conditions []canonicalCondition `json:"conditions"`
	Action     any                  `json:"action"`
}

// CanonicalKey renders the rule's effect as a string that is equal for two
// rules exactly when they are duplicates: conditions sorted by field,
// operator and value, value lists sorted, action fields defaulted. ID and name are not
// part of the key.
func CanonicalKey(rule Rule) string {
	conditions := make([]canonicalCondition, 0, len(rule.Conditions))
	for _, c := range rule.Conditions {
		cc := canonicalCondition{Field: c.Field, Operator: c.Operator}
		if c.Value != "" {
			value := c.Value
			cc.Value = &value
		}
		if len(c.Values) > 0 {
			cc.Values = sortedCopy(c.Values)
		}
		conditions = append(conditions, cc)
	}
	sort.SliceStable(conditions, func(i, j int) bool {
		return conditionLess(conditions[i], conditions[j])
	})

	var action any
	switch a := rule.Action.(type) {
	case HideOptions:
		action = canonicalHideOptions{
			Type:    a.Type(),
			Target:  a.TargetField,
			Options: sortedCopy(a.Options),
			Sources: sortedCopy(a.SourceFields),
		}
	case EnforceComparison:
		cc := canonicalComparison{
			Type:        a.Type(),
			Target:      a.TargetField,
			Comparator:  a.Comparator,
			ValueSource: a.ValueSource,
			Value:       a.Value,
			Offset:      a.Offset,
		}
		if a.OtherField != "" {
			other := a.OtherField
			cc.OtherField = &other
		}
		action = cc
	case nil:
		action = nil
	default:
		action = canonicalBase{Type: a.Type(), Target: a.Target()}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(canonicalRule{Conditions: conditions, Action: action}); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// IsDuplicate reports whether rule has the same canonical key as any rule in
// existing other than the one with ID ignoreID.
func IsDuplicate(rule Rule, existing []Rule, ignoreID string) bool {
	key := CanonicalKey(rule)
	for _, other := range existing {
		if ignoreID != "" && other.ID == ignoreID {
			continue
		}
		if CanonicalKey(other) == key {
			return true
		}
	}
	return false
}

func sortedCopy(in []string) []string {
	out := append([]string{}, in...)
	sort.Strings(out)
	return out
}

// conditionLess orders by field and operator, then value, then value list.
func conditionLess(a, b canonicalCondition) bool {
	if c := strings.Compare(a.Field+string(a.Operator), b.Field+string(b.Operator)); c != 0 {
		return c < 0
	}
	var av, bv string
	if a.Value != nil {
		av = *a.Value
	}
	if b.Value != nil {
		bv = *b.Value
	}
	if av != bv {
		return av < bv
	}
	return strings.Join(a.Values, "\x00") < strings.Join(b.Values, "\x00")
}
