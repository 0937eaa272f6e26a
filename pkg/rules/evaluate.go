package rules

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Engine evaluates rule sets. The zero value is not usable; call NewEngine.
type Engine struct {
	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the logger used for per-rule faults.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngine returns an engine.
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

var defaultEngine = NewEngine()

// Evaluate runs rules against values with the default engine.
func Evaluate(rules []Rule, values map[string]any, fields []model.FieldDefinition) Result {
	return defaultEngine.Evaluate(rules, values, fields)
}

// effect is what one satisfied rule contributes to the result.
type effect struct {
	hide        string
	show        string
	optionField string
	options     []string
	errorField  string
	errorMsg    string
}

// Evaluate runs rules in order against values. fields supplies the declared
// types used for normalization; values may also carry user-context keys.
func (e *Engine) Evaluate(rules []Rule, values map[string]any, fields []model.FieldDefinition) Result {
	start := time.Now()
	defer func() {
		evaluationDuration.Observe(time.Since(start).Seconds())
	}()
	evaluations.Inc()

	types := make(map[string]model.FieldType, len(fields))
	for _, field := range fields {
		types[field.Name] = field.Type
	}

	result := newResult()
	for i := range rules {
		eff, ok := e.evaluateRule(rules[i], values, types)
		if !ok {
			continue
		}
		switch {
		case eff.hide != "":
			result.HiddenFields[eff.hide] = struct{}{}
		case eff.show != "":
			delete(result.HiddenFields, eff.show)
		case eff.optionField != "":
			set, exists := result.OptionHides[eff.optionField]
			if !exists {
				set = Set{}
				result.OptionHides[eff.optionField] = set
			}
			for _, option := range eff.options {
				set[option] = struct{}{}
			}
		case eff.errorField != "":
			result.FieldErrors[eff.errorField] = eff.errorMsg
		}
	}
	return result
}

// evaluateRule reports false when the rule contributes nothing, including when
// it faults.
func (e *Engine) evaluateRule(rule Rule, values map[string]any, types map[string]model.FieldType) (eff effect, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			ruleFaults.Inc()
			e.logger.Error("rule evaluation failed",
				slog.String("rule", rule.ID),
				slog.String("panic", fmt.Sprint(r)),
			)
			eff, ok = effect{}, false
		}
	}()

	if rule.Action == nil || !ConditionsSatisfied(rule.Conditions, values) {
		return effect{}, false
	}

	switch a := rule.Action.(type) {
	case HideField:
		return effect{hide: a.TargetField}, a.TargetField != ""
	case ShowField:
		return effect{show: a.TargetField}, a.TargetField != ""
	case HideOptions:
		if a.TargetField == "" {
			return effect{}, false
		}
		return effect{optionField: a.TargetField, options: suppressList(a, values)}, true
	case EnforceComparison:
		msg, failed := enforce(a, values, types)
		if !failed {
			return effect{}, false
		}
		return effect{errorField: a.TargetField, errorMsg: msg}, true
	default:
		return effect{}, false
	}
}

func suppressList(a HideOptions, values map[string]any) []string {
	if !a.Dynamic() {
		return a.Options
	}
	var out []string
	for _, source := range a.SourceFields {
		out = append(out, selectedValues(values[source])...)
	}
	return out
}

// enforce reports the error message and true when the comparison fails.
// Unresolvable operands skip the check.
func enforce(a EnforceComparison, values map[string]any, types map[string]model.FieldType) (string, bool) {
	if a.TargetField == "" {
		return "", false
	}
	targetType := types[a.TargetField]
	left := Normalize(values[a.TargetField], targetType)

	var right NormalizedValue
	if a.ValueSource == SourceField {
		if a.OtherField == "" {
			return "", false
		}
		raw := values[a.OtherField]
		if a.Offset != nil && targetType.Numeric() {
			raw = applyOffset(raw, *a.Offset)
		}
		otherType := types[a.OtherField]
		if otherType == "" {
			otherType = targetType
		}
		right = Normalize(raw, otherType)
	} else {
		right = Normalize(a.Value, targetType)
	}

	if !left.Resolved() || !right.Resolved() {
		return "", false
	}
	if CompareValues(left, right, a.Comparator) {
		return "", false
	}
	return errorMessage(a), true
}

func applyOffset(raw any, offset float64) any {
	if isBlank(raw) {
		return raw
	}
	n, ok := coerceNumber(raw)
	if !ok {
		return raw
	}
	return n + offset
}

func errorMessage(a EnforceComparison) string {
	if a.ErrorMessage != "" {
		return a.ErrorMessage
	}
	right := "selected field"
	if a.ValueSource != SourceField {
		right = coerceString(a.Value)
	}
	return fmt.Sprintf("Must be %s %s", a.Comparator, right)
}
