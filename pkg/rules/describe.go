package rules

import (
	"fmt"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Labeler resolves a field or user-context key to a display label.
type Labeler func(name string) string

// NewLabeler prefers user-context display names, then field labels, then the
// raw name.
func NewLabeler(fields []model.FieldDefinition, context []model.UserContextEntry) Labeler {
	labels := make(map[string]string, len(fields)+len(context))
	for _, field := range fields {
		labels[field.Name] = field.DisplayLabel()
	}
	for _, entry := range context {
		switch {
		case entry.DisplayName != "":
			labels[entry.Key] = entry.DisplayName
		case entry.Key != "":
			labels[entry.Key] = entry.Key
		}
	}
	return func(name string) string {
		if label, ok := labels[name]; ok {
			return label
		}
		return name
	}
}

// Describe renders a one-line summary such as
// "Role Equals Admin -> Hide Status".
func Describe(rule Rule, label Labeler) string {
	if label == nil {
		label = func(name string) string { return name }
	}

	conditions := "Always"
	if len(rule.Conditions) > 0 {
		parts := make([]string, len(rule.Conditions))
		for i, c := range rule.Conditions {
			parts[i] = describeCondition(c, label)
		}
		conditions = strings.Join(parts, " AND ")
	}

	switch a := rule.Action.(type) {
	case EnforceComparison:
		right := label(a.OtherField)
		if a.ValueSource != SourceField {
			right = coerceString(a.Value)
		}
		return fmt.Sprintf("%s -> %s must be %s %s", conditions, label(a.TargetField), a.Comparator, right)
	case HideOptions:
		if a.Dynamic() {
			sources := make([]string, len(a.SourceFields))
			for i, source := range a.SourceFields {
				sources[i] = label(source)
			}
			return fmt.Sprintf("%s -> Hide value(s) selected in %s from %s", conditions, strings.Join(sources, ", "), label(a.TargetField))
		}
		return fmt.Sprintf("%s -> Hide options [%s] from %s", conditions, strings.Join(a.Options, ", "), label(a.TargetField))
	case ShowField:
		return fmt.Sprintf("%s -> Show %s", conditions, label(a.TargetField))
	case HideField:
		return fmt.Sprintf("%s -> Hide %s", conditions, label(a.TargetField))
	default:
		return conditions
	}
}

func describeCondition(c Condition, label Labeler) string {
	operand := c.Value
	if len(c.Values) > 0 {
		operand = strings.Join(c.Values, " or ")
	}
	text := label(c.Field) + " " + c.Operator.Label()
	if operand != "" {
		text += " " + operand
	}
	return text
}

// Group is the rules sharing one target field.
type Group struct {
	Target string `json:"target"`
	Rules  []Rule `json:"rules"`
}

// GroupByTarget groups rules by target field in first-seen order, keeping
// store order within each group.
func GroupByTarget(rules []Rule) []Group {
	index := make(map[string]int)
	var groups []Group
	for _, rule := range rules {
		target := rule.Target()
		pos, ok := index[target]
		if !ok {
			pos = len(groups)
			index[target] = pos
			groups = append(groups, Group{Target: target})
		}
		groups[pos].Rules = append(groups[pos].Rules, rule)
	}
	return groups
}

// ReferencingRules returns the rules with at least one condition on one of
// keys.
func ReferencingRules(rules []Rule, keys ...string) []Rule {
	if len(keys) == 0 {
		return nil
	}
	wanted := NewSet(keys...)
	var out []Rule
	for _, rule := range rules {
		for _, c := range rule.Conditions {
			if wanted.Has(c.Field) {
				out = append(out, rule)
				break
			}
		}
	}
	return out
}
