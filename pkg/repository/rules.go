package repository

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/store"
)

// RuleCountSink receives the rule count of a form after each change.
type RuleCountSink interface {
	SetRuleCount(ctx context.Context, formID string, count int) error
}

// RulesOption configures a Rules repository.
type RulesOption func(*Rules)

// WithRulesLogger overrides the logger used for persistence read failures.
func WithRulesLogger(logger *slog.Logger) RulesOption {
	return func(r *Rules) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithRuleIDs overrides the rule id generator.
func WithRuleIDs(next func() string) RulesOption {
	return func(r *Rules) {
		if next != nil {
			r.newID = next
		}
	}
}

// WithCountSink reports rule counts to sink, typically *Forms.
func WithCountSink(sink RuleCountSink) RulesOption {
	return func(r *Rules) {
		r.sink = sink
	}
}

// Rules is the rule set of the loaded form.
type Rules struct {
	mu     sync.RWMutex
	kv     store.KV
	logger *slog.Logger
	newID  func() string
	sink   RuleCountSink
	formID string
	rules  []rules.Rule
}

// NewRules returns an empty repository; call Load to select a form.
func NewRules(kv store.KV, opts ...RulesOption) *Rules {
	r := &Rules{
		kv:     kv,
		logger: slog.Default(),
		newID:  func() string { return "rule-" + uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

// Load swaps in the rule set of formID. An empty id unloads. Unreadable
// stored rules are logged and treated as an empty set.
func (r *Rules) Load(ctx context.Context, formID string) error {
	var loaded []rules.Rule
	if formID != "" {
		if _, err := store.GetJSON(ctx, r.kv, RulesKey(formID), &loaded); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return ctxErr
			}
			r.logger.Error("rules unreadable", "form", formID, "error", err)
			loaded = nil
		}
	}
	r.mu.Lock()
	r.formID = formID
	r.rules = loaded
	r.mu.Unlock()
	return nil
}

// FormID returns the loaded form id.
func (r *Rules) FormID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.formID
}

// List returns copies of the rules in store order.
func (r *Rules) List() []rules.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]rules.Rule, len(r.rules))
	for i, rule := range r.rules {
		out[i] = rule.Clone()
	}
	return out
}

// Len returns the number of loaded rules.
func (r *Rules) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rules)
}

// Get returns the rule with id.
func (r *Rules) Get(id string) (rules.Rule, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	idx := r.indexOf(id)
	if idx < 0 {
		return rules.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	return r.rules[idx].Clone(), nil
}

// Add appends rule, assigning an id when it has none. A rule identical in
// effect to a stored one is rejected with ErrDuplicateRule.
func (r *Rules) Add(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.formID == "" {
		return rules.Rule{}, ErrNoActiveForm
	}
	if rule.Action == nil {
		return rules.Rule{}, fmt.Errorf("%w: action is required", rules.ErrInvalidRule)
	}
	rule = rule.Clone()
	if strings.TrimSpace(rule.ID) == "" || r.indexOf(rule.ID) >= 0 {
		rule.ID = r.newID()
	}
	if rules.IsDuplicate(rule, r.rules, "") {
		return rules.Rule{}, ErrDuplicateRule
	}
	next := append(append([]rules.Rule(nil), r.rules...), rule)
	if err := r.commit(ctx, next); err != nil {
		return rules.Rule{}, err
	}
	return rule.Clone(), nil
}

// Update replaces the stored rule with the same id. The duplicate check
// ignores the rule being edited.
func (r *Rules) Update(ctx context.Context, rule rules.Rule) (rules.Rule, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(rule.ID)
	if idx < 0 {
		return rules.Rule{}, fmt.Errorf("%w: %s", ErrRuleNotFound, rule.ID)
	}
	if rule.Action == nil {
		return rules.Rule{}, fmt.Errorf("%w: action is required", rules.ErrInvalidRule)
	}
	rule = rule.Clone()
	if rules.IsDuplicate(rule, r.rules, rule.ID) {
		return rules.Rule{}, ErrDuplicateRule
	}
	next := append([]rules.Rule(nil), r.rules...)
	next[idx] = rule
	if err := r.commit(ctx, next); err != nil {
		return rules.Rule{}, err
	}
	return rule.Clone(), nil
}

// Delete removes the rule with id.
func (r *Rules) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, id)
	}
	next := append(append([]rules.Rule(nil), r.rules[:idx]...), r.rules[idx+1:]...)
	return r.commit(ctx, next)
}

// RemoveByIDs deletes every listed rule and returns how many were removed.
// Unknown ids are ignored.
func (r *Rules) RemoveByIDs(ctx context.Context, ids ...string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	drop := rules.NewSet(ids...)
	next := make([]rules.Rule, 0, len(r.rules))
	for _, rule := range r.rules {
		if !drop.Has(rule.ID) {
			next = append(next, rule)
		}
	}
	removed := len(r.rules) - len(next)
	if removed == 0 {
		return 0, nil
	}
	if err := r.commit(ctx, next); err != nil {
		return 0, err
	}
	return removed, nil
}

// Referencing returns the rules with a condition on one of keys.
func (r *Rules) Referencing(keys ...string) []rules.Rule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return rules.ReferencingRules(r.rules, keys...)
}

// CountReferencing counts the rules with a condition on one of keys.
func (r *Rules) CountReferencing(keys ...string) int {
	return len(r.Referencing(keys...))
}

func (r *Rules) commit(ctx context.Context, next []rules.Rule) error {
	if r.formID == "" {
		return ErrNoActiveForm
	}
	if next == nil {
		next = []rules.Rule{}
	}
	if err := store.SetJSON(ctx, r.kv, RulesKey(r.formID), next); err != nil {
		return fmt.Errorf("repository: save rules: %w", err)
	}
	r.rules = next
	if r.sink != nil {
		if err := r.sink.SetRuleCount(ctx, r.formID, len(next)); err != nil {
			r.logger.Warn("rule count not recorded", "form", r.formID, "error", err)
		}
	}
	return nil
}

func (r *Rules) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, rule := range r.rules {
		if rule.ID == id {
			return i
		}
	}
	return -1
}
