package rules

import "strings"

// CompareValues applies comparator to two normalized operands. Relational and
// equality comparators work on two numbers or two strings; a number never
// equals a string. contains and not-contains require two strings and are
// false otherwise.
func CompareValues(left, right NormalizedValue, comparator Comparator) bool {
	if !left.Resolved() || !right.Resolved() {
		return false
	}

	switch comparator {
	case CmpContains, CmpNotContains:
		l, lok := left.Text()
		r, rok := right.Text()
		if !lok || !rok {
			return false
		}
		found := strings.Contains(strings.ToLower(l), strings.ToLower(r))
		if comparator == CmpContains {
			return found
		}
		return !found
	}

	if left.kind != right.kind {
		// a string that failed numeric coercion acts as NaN
		return comparator == CmpNotEqual
	}

	var cmp int
	if left.kind == KindNumber {
		switch {
		case left.num < right.num:
			cmp = -1
		case left.num > right.num:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(left.str, right.str)
	}

	switch comparator {
	case CmpLess:
		return cmp < 0
	case CmpLessOrEqual:
		return cmp <= 0
	case CmpGreater:
		return cmp > 0
	case CmpGreaterOrEqual:
		return cmp >= 0
	case CmpEqual:
		return cmp == 0
	case CmpNotEqual:
		return cmp != 0
	default:
		return false
	}
}
