// Package validation runs the built-in per-field validators of a form.
//
// Each validator contributes at most one entry to Errors, keyed by validator
// name. Empty values only fail the required check; length, pattern, range,
// and email checks skip them.
package validation

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Error keys.
const (
	KeyRequired  = "required"
	KeyMinLength = "minlength"
	KeyMaxLength = "maxlength"
	KeyPattern   = "pattern"
	KeyMin       = "min"
	KeyMax       = "max"
	KeyEmail     = "email"
	KeyMinFiles  = "minFiles"
	KeyMaxFiles  = "maxFiles"
)

// Order lists the built-in keys in display priority.
var Order = []string{KeyRequired, KeyMinLength, KeyMaxLength, KeyPattern, KeyMin, KeyMax, KeyEmail, KeyMinFiles, KeyMaxFiles}

// Errors maps an error key to its message.
type Errors map[string]string

// First returns the message of the first key present in order, then any
// remaining key in sorted order.
func (e Errors) First(order ...string) string {
	for _, key := range order {
		if msg, ok := e[key]; ok {
			return msg
		}
	}
	var keys []string
	for key := range e {
		keys = append(keys, key)
	}
	if len(keys) == 0 {
		return ""
	}
	sort.Strings(keys)
	return e[keys[0]]
}

var (
	checker     = validator.New()
	patternMu   sync.Mutex
	patternMemo = map[string]*regexp.Regexp{}
)

// Field validates value against def and returns the failing checks, or nil.
func Field(def model.FieldDefinition, value any) Errors {
	errs := Errors{}
	spec := def.Validation

	if def.Type == model.FieldTypeFile {
		count := fileCount(value)
		if def.Required && count == 0 {
			errs[KeyRequired] = "This field is required"
		}
		if spec != nil && spec.MinFiles != nil && count < *spec.MinFiles {
			errs[KeyMinFiles] = fmt.Sprintf("Select at least %d file(s)", *spec.MinFiles)
		}
		if spec != nil && spec.MaxFiles != nil && count > *spec.MaxFiles {
			errs[KeyMaxFiles] = fmt.Sprintf("Select at most %d file(s)", *spec.MaxFiles)
		}
		return nilIfEmpty(errs)
	}

	empty := IsEmpty(value)
	if def.Required && empty {
		errs[KeyRequired] = "This field is required"
	}
	if empty {
		return nilIfEmpty(errs)
	}

	switch def.Type {
	case model.FieldTypeText:
		if spec == nil {
			break
		}
		text := fmt.Sprint(value)
		if spec.MinLength != nil && checker.Var(text, "min="+strconv.Itoa(*spec.MinLength)) != nil {
			errs[KeyMinLength] = fmt.Sprintf("Must be at least %d characters", *spec.MinLength)
		}
		if spec.MaxLength != nil && checker.Var(text, "max="+strconv.Itoa(*spec.MaxLength)) != nil {
			errs[KeyMaxLength] = fmt.Sprintf("Must be at most %d characters", *spec.MaxLength)
		}
		if spec.Pattern != "" {
			if re := compilePattern(spec.Pattern); re != nil && !re.MatchString(text) {
				errs[KeyPattern] = "Invalid format"
			}
		}
	case model.FieldTypeNumber:
		if spec == nil {
			break
		}
		n, ok := number(value)
		if !ok {
			break
		}
		if spec.Min != nil && n < *spec.Min {
			errs[KeyMin] = "Must be at least " + strconv.FormatFloat(*spec.Min, 'f', -1, 64)
		}
		if spec.Max != nil && n > *spec.Max {
			errs[KeyMax] = "Must be at most " + strconv.FormatFloat(*spec.Max, 'f', -1, 64)
		}
	case model.FieldTypeEmail:
		if checker.Var(fmt.Sprint(value), "email") != nil {
			errs[KeyEmail] = "Enter a valid email address"
		}
	}
	return nilIfEmpty(errs)
}

// IsEmpty reports whether value counts as missing for the required check.
// false is a value.
func IsEmpty(value any) bool {
	switch v := value.(type) {
	case nil:
		return true
	case string:
		return v == ""
	case []any:
		return len(v) == 0
	case []string:
		return len(v) == 0
	}
	return false
}

// compilePattern anchors the pattern to the whole value. Invalid patterns
// never fail a value.
func compilePattern(pattern string) *regexp.Regexp {
	patternMu.Lock()
	defer patternMu.Unlock()
	if re, ok := patternMemo[pattern]; ok {
		return re
	}
	anchored := pattern
	if !strings.HasPrefix(anchored, "^") {
		anchored = "^" + anchored
	}
	if !strings.HasSuffix(anchored, "$") {
		anchored += "$"
	}
	re, err := regexp.Compile(anchored)
	if err != nil {
		re = nil
	}
	patternMemo[pattern] = re
	return re
}

func number(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return n, err == nil
	}
	return 0, false
}

func fileCount(value any) int {
	switch v := value.(type) {
	case []any:
		return len(v)
	case []string:
		return len(v)
	}
	return 0
}

func nilIfEmpty(errs Errors) Errors {
	if len(errs) == 0 {
		return nil
	}
	return errs
}
