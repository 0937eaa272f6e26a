package rules

import "strings"

// EvaluateCondition tests one condition against the values snapshot. Apart
// from isTrue and isFalse, a condition on an unset value is false.
func EvaluateCondition(c Condition, values map[string]any) bool {
	left := values[c.Field]

	switch c.Operator {
	case OpIsTrue:
		return left == true || left == "true"
	case OpIsFalse:
		return left == false || left == "false"
	}

	if isUnset(left) {
		return false
	}
	text := coerceString(left)

	if len(c.Values) > 0 {
		switch c.Operator {
		case OpEquals:
			return containsString(c.Values, text)
		case OpNotEquals:
			return !containsString(c.Values, text)
		}
	}

	switch c.Operator {
	case OpEquals:
		return text == c.Value
	case OpNotEquals:
		return text != c.Value
	case OpContains:
		return strings.Contains(strings.ToLower(text), strings.ToLower(c.Value))
	case OpNotContains:
		return !strings.Contains(strings.ToLower(text), strings.ToLower(c.Value))
	case OpGreater, OpGreaterOrEqual, OpLess, OpLessOrEqual:
		l, lok := coerceNumber(left)
		r, rok := coerceNumber(c.Value)
		if !lok || !rok {
			return false
		}
		switch c.Operator {
		case OpGreater:
			return l > r
		case OpGreaterOrEqual:
			return l >= r
		case OpLess:
			return l < r
		default:
			return l <= r
		}
	default:
		return false
	}
}

// ConditionsSatisfied reports whether every condition holds. An empty list is
// always satisfied.
func ConditionsSatisfied(conditions []Condition, values map[string]any) bool {
	for _, c := range conditions {
		if !EvaluateCondition(c, values) {
			return false
		}
	}
	return true
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
