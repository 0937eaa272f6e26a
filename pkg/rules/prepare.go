package rules

import (
	"errors"
	"fmt"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// ErrInvalidRule wraps every authoring check failure.
var ErrInvalidRule = errors.New("rules: invalid rule")

// DefaultRuleName is used when a rule is saved without a name.
const DefaultRuleName = "Custom rule"

// Prepare cleans an authored rule against the form's fields and checks it.
// Display strings are sanitized, static comparison values for number targets
// are parsed, and offsets are dropped unless the target is numeric.
func Prepare(rule Rule, fields []model.FieldDefinition) (Rule, error) {
	rule = rule.Clone()
	rule.Name = model.SanitizeText(rule.Name)
	if rule.Name == "" {
		rule.Name = DefaultRuleName
	}

	byName := make(map[string]model.FieldDefinition, len(fields))
	for _, field := range fields {
		byName[field.Name] = field
	}

	for i, c := range rule.Conditions {
		if strings.TrimSpace(c.Field) == "" {
			return Rule{}, fmt.Errorf("%w: condition %d has no field", ErrInvalidRule, i+1)
		}
		if !c.Operator.Valid() {
			return Rule{}, fmt.Errorf("%w: condition %d has unknown operator %q", ErrInvalidRule, i+1, c.Operator)
		}
		if c.Operator == OpIsTrue || c.Operator == OpIsFalse {
			rule.Conditions[i].Value = ""
			rule.Conditions[i].Values = nil
		}
	}

	if rule.Action == nil {
		return Rule{}, fmt.Errorf("%w: action is required", ErrInvalidRule)
	}
	target, ok := byName[rule.Action.Target()]
	if rule.Action.Target() == "" || !ok {
		return Rule{}, fmt.Errorf("%w: unknown target field %q", ErrInvalidRule, rule.Action.Target())
	}

	switch a := rule.Action.(type) {
	case HideField, ShowField:
	case HideOptions:
		if target.Type != model.FieldTypeSelect {
			return Rule{}, fmt.Errorf("%w: hide-options requires a select target", ErrInvalidRule)
		}
		if a.Dynamic() {
			for _, source := range a.SourceFields {
				if source == a.TargetField {
					return Rule{}, fmt.Errorf("%w: %q cannot be its own option source", ErrInvalidRule, source)
				}
				if def, ok := byName[source]; !ok || def.Type != model.FieldTypeSelect {
					return Rule{}, fmt.Errorf("%w: option source %q must be a select field", ErrInvalidRule, source)
				}
			}
			a.Options = nil
		}
		rule.Action = a
	case EnforceComparison:
		allowed := AllowedComparators(target.Type)
		if !containsComparator(allowed, a.Comparator) {
			return Rule{}, fmt.Errorf("%w: comparator %q not allowed for %s fields", ErrInvalidRule, a.Comparator, target.Type)
		}
		if a.ValueSource == "" {
			a.ValueSource = SourceStatic
		}
		switch a.ValueSource {
		case SourceStatic:
			value, ok := thresholdValue(a.Value, target.Type)
			if !ok {
				return Rule{}, fmt.Errorf("%w: a comparison value is required", ErrInvalidRule)
			}
			a.Value = value
			a.OtherField = ""
			a.Offset = nil
		case SourceField:
			if a.OtherField == "" {
				return Rule{}, fmt.Errorf("%w: a comparison field is required", ErrInvalidRule)
			}
			a.Value = nil
			if !target.Type.Numeric() {
				a.Offset = nil
			}
		default:
			return Rule{}, fmt.Errorf("%w: unknown value source %q", ErrInvalidRule, a.ValueSource)
		}
		a.ErrorMessage = model.SanitizeText(a.ErrorMessage)
		rule.Action = a
	default:
		return Rule{}, fmt.Errorf("%w: unsupported action %T", ErrInvalidRule, a)
	}
	return rule, nil
}

// AllowedComparators returns the comparators offered for a target type.
func AllowedComparators(t model.FieldType) []Comparator {
	if t == model.FieldTypeNumber || t == model.FieldTypeDate {
		return NumericComparators
	}
	return TextComparators
}

func containsComparator(list []Comparator, c Comparator) bool {
	for _, item := range list {
		if item == c {
			return true
		}
	}
	return false
}

// thresholdValue parses a static comparison value. Number targets require a
// numeric value.
func thresholdValue(raw any, t model.FieldType) (any, bool) {
	if isBlank(raw) {
		return nil, false
	}
	if t.Numeric() {
		if _, isBool := raw.(bool); isBool {
			return nil, false
		}
		n, ok := coerceNumber(raw)
		if !ok {
			return nil, false
		}
		return n, true
	}
	return raw, true
}

// Check reports whether rule passes the authoring checks without returning
// the cleaned copy.
func Check(rule Rule, fields []model.FieldDefinition) error {
	_, err := Prepare(rule, fields)
	return err
}
