package runtime

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/goliatone/go-formrules/pkg/assist"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/options"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/validation"
)

// RuleErrorKey holds the rule-driven error of a control.
const RuleErrorKey = "rule"

// DefaultMaxPasses bounds the evaluation passes of one reconciliation.
const DefaultMaxPasses = 8

// ErrUnknownField reports a value set on a field the form does not have.
var ErrUnknownField = errors.New("runtime: unknown field")

// Option configures a Session.
type Option func(*Session)

// WithEngine overrides the rule engine.
func WithEngine(engine *rules.Engine) Option {
	return func(s *Session) {
		if engine != nil {
			s.engine = engine
		}
	}
}

// WithLogger overrides the session logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMaxPasses overrides DefaultMaxPasses.
func WithMaxPasses(n int) Option {
	return func(s *Session) {
		if n > 0 {
			s.maxPasses = n
		}
	}
}

// WithInitialValues patches known fields after defaults are applied.
func WithInitialValues(values map[string]any) Option {
	return func(s *Session) {
		s.initial = values
	}
}

type control struct {
	def      model.FieldDefinition
	value    any
	disabled bool
	errors   validation.Errors
	options  []model.Option
}

// Session is one live fill of a form.
type Session struct {
	mu        sync.RWMutex
	fields    []model.FieldDefinition
	controls  map[string]*control
	rules     []rules.Rule
	context   map[string]any
	engine    *rules.Engine
	logger    *slog.Logger
	maxPasses int
	initial   map[string]any
	result    rules.Result
}

// NewSession builds a session with default values and runs the first
// reconciliation.
func NewSession(fields []model.FieldDefinition, ruleSet []rules.Rule, userContext []model.UserContextEntry, opts ...Option) *Session {
	s := &Session{
		controls:  make(map[string]*control, len(fields)),
		context:   model.ContextValues(userContext),
		engine:    rules.NewEngine(),
		logger:    slog.Default(),
		maxPasses: DefaultMaxPasses,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}

	for _, def := range fields {
		if _, dup := s.controls[def.Name]; dup || def.Name == "" {
			continue
		}
		def = def.Clone()
		s.fields = append(s.fields, def)
		c := &control{def: def, value: DefaultValue(def)}
		if def.Type == model.FieldTypeSelect && !def.UsesAPI() {
			c.options = options.ResolveManual(def.Options)
		}
		s.controls[def.Name] = c
	}
	s.rules = make([]rules.Rule, len(ruleSet))
	for i, rule := range ruleSet {
		s.rules[i] = rule.Clone()
	}

	for name, value := range s.initial {
		if c, ok := s.controls[name]; ok {
			c.value = value
		}
	}
	s.reconcile()
	return s
}

// DefaultValue is the starting value of a control: the field default when
// set, else false for checkboxes, nil for numbers, an empty list for files,
// and "" otherwise.
func DefaultValue(def model.FieldDefinition) any {
	if def.Default != nil && def.Default != "" {
		return def.Default
	}
	switch def.Type {
	case model.FieldTypeCheckbox:
		return false
	case model.FieldTypeNumber:
		return nil
	case model.FieldTypeFile:
		return []any{}
	}
	return ""
}

// Fields returns the session's field definitions.
func (s *Session) Fields() []model.FieldDefinition {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FieldDefinition, len(s.fields))
	for i, def := range s.fields {
		out[i] = def.Clone()
	}
	return out
}

// SetValue stores value for name and reconciles.
func (s *Session) SetValue(name string, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	c.value = value
	s.reconcile()
	return nil
}

// Patch stores every value whose key is a field and reconciles once. Unknown
// keys are ignored. It returns the number of fields written.
func (s *Session) Patch(values map[string]any) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	applied := 0
	for name, value := range values {
		if c, ok := s.controls[name]; ok {
			c.value = value
			applied++
		}
	}
	if applied > 0 {
		s.reconcile()
	}
	return applied
}

// ApplyCompletion patches the field values embedded in an AI completion.
// Unparseable text leaves the form unchanged and returns
// assist.ErrUnparseable.
func (s *Session) ApplyCompletion(text string) (int, error) {
	values, err := assist.ParseFieldValues(text)
	if err != nil {
		return 0, err
	}
	return s.Patch(values), nil
}

// Reset restores default values and reconciles.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, def := range s.fields {
		s.controls[def.Name].value = DefaultValue(def)
	}
	s.reconcile()
}

// SetRules swaps the rule set and reconciles.
func (s *Session) SetRules(ruleSet []rules.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = make([]rules.Rule, len(ruleSet))
	for i, rule := range ruleSet {
		s.rules[i] = rule.Clone()
	}
	s.reconcile()
}

// SetOptions replaces the resolved options of a select field.
func (s *Session) SetOptions(name string, opts []model.Option) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.controls[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	c.options = append([]model.Option(nil), opts...)
	return nil
}

// Value returns the stored value of name, including for disabled controls.
func (s *Session) Value(name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[name]
	if !ok {
		return nil, false
	}
	return c.value, true
}

// Values returns the values of enabled controls.
func (s *Session) Values() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]any, len(s.controls))
	for name, c := range s.controls {
		if !c.disabled {
			out[name] = c.value
		}
	}
	return out
}

// RawValues returns every stored value, hidden fields included.
func (s *Session) RawValues() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rawValues()
}

func (s *Session) rawValues() map[string]any {
	out := make(map[string]any, len(s.controls))
	for name, c := range s.controls {
		out[name] = c.value
	}
	return out
}

// Hidden reports whether a rule hides name.
func (s *Session) Hidden(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result.Hidden(name)
}

// Enabled reports whether name is a field whose control accepts input.
func (s *Session) Enabled(name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[name]
	return ok && !c.disabled
}

// Errors returns the current errors of name keyed by validator, with the
// rule error under RuleErrorKey.
func (s *Session) Errors(name string) map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[name]
	if !ok || len(c.errors) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.errors))
	for k, v := range c.errors {
		out[k] = v
	}
	return out
}

// ErrorMessage returns the message shown next to name: the rule error when
// present, else the first built-in error.
func (s *Session) ErrorMessage(name string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[name]
	if !ok {
		return ""
	}
	return c.errors.First(append([]string{RuleErrorKey}, validation.Order...)...)
}

// Valid reports whether every enabled control is free of errors.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.controls {
		if !c.disabled && len(c.errors) > 0 {
			return false
		}
	}
	return true
}

// Result returns the latest evaluation result.
func (s *Session) Result() rules.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Options returns the resolved options of name.
func (s *Session) Options(name string) []model.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[name]
	if !ok {
		return nil
	}
	return append([]model.Option(nil), c.options...)
}

// VisibleOptions returns the options of name not suppressed by a
// hide-options rule.
func (s *Session) VisibleOptions(name string) []model.Option {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.controls[name]
	if !ok {
		return nil
	}
	hidden := s.result.HiddenOptions(name)
	out := make([]model.Option, 0, len(c.options))
	for _, opt := range c.options {
		if !hidden.Has(opt.Value) {
			out = append(out, opt)
		}
	}
	return out
}

// reconcile runs evaluation passes until no purge changes a value. Callers
// hold s.mu.
func (s *Session) reconcile() {
	passes := 0
	for {
		passes++
		namespace := make(map[string]any, len(s.context)+len(s.controls))
		for k, v := range s.context {
			namespace[k] = v
		}
		for k, v := range s.rawValues() {
			namespace[k] = v
		}
		s.result = s.engine.Evaluate(s.rules, namespace, s.fields)

		for _, def := range s.fields {
			s.controls[def.Name].disabled = s.result.Hidden(def.Name)
		}
		if !s.purgeHiddenOptions() {
			break
		}
		if passes >= s.maxPasses {
			unsettledReconciles.Inc()
			s.logger.Warn("form did not settle", "passes", passes)
			break
		}
	}
	reconcilePasses.Observe(float64(passes))

	for _, def := range s.fields {
		c := s.controls[def.Name]
		errs := validation.Field(def, c.value)
		if msg, ok := s.result.Error(def.Name); ok {
			if errs == nil {
				errs = validation.Errors{}
			}
			errs[RuleErrorKey] = msg
		}
		c.errors = errs
	}
}

// purgeHiddenOptions clears scalar values and filters list values that a
// hide-options rule suppresses. It reports whether any value changed.
func (s *Session) purgeHiddenOptions() bool {
	changed := false
	for _, def := range s.fields {
		hidden := s.result.HiddenOptions(def.Name)
		if len(hidden) == 0 {
			continue
		}
		c := s.controls[def.Name]
		switch v := c.value.(type) {
		case nil:
		case []string:
			kept := make([]string, 0, len(v))
			for _, item := range v {
				if !hidden.Has(item) {
					kept = append(kept, item)
				}
			}
			if len(kept) != len(v) {
				c.value = kept
				changed = true
			}
		case []any:
			kept := make([]any, 0, len(v))
			for _, item := range v {
				if !hidden.Has(options.Stringify(item)) {
					kept = append(kept, item)
				}
			}
			if len(kept) != len(v) {
				c.value = kept
				changed = true
			}
		default:
			if hidden.Has(options.Stringify(v)) {
				c.value = ""
				changed = true
			}
		}
	}
	return changed
}
