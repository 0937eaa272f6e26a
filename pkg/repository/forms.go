package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/store"
)

// FormsOption configures a Forms repository.
type FormsOption func(*Forms)

// WithFormsLogger overrides the logger used for persistence read failures.
func WithFormsLogger(logger *slog.Logger) FormsOption {
	return func(f *Forms) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithFormsClock injects the clock used for CreatedAt/UpdatedAt.
func WithFormsClock(now func() time.Time) FormsOption {
	return func(f *Forms) {
		if now != nil {
			f.now = now
		}
	}
}

// WithFormIDs overrides the form id generator.
func WithFormIDs(next func() string) FormsOption {
	return func(f *Forms) {
		if next != nil {
			f.newID = next
		}
	}
}

// Forms is the saved forms list plus the current form pointer.
type Forms struct {
	mu      sync.RWMutex
	scopes  store.Scopes
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
	forms   []model.Form
	current string
}

// NewForms loads the forms list and the current form id from scopes. Read
// failures are logged and treated as an empty store.
func NewForms(ctx context.Context, scopes store.Scopes, opts ...FormsOption) (*Forms, error) {
	if scopes.Durable == nil || scopes.Session == nil {
		return nil, errors.New("repository: durable and session stores are required")
	}
	f := &Forms{
		scopes: scopes,
		logger: slog.Default(),
		now:    time.Now,
		newID:  func() string { return "form-" + uuid.NewString() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	if err := f.load(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *Forms) load(ctx context.Context) error {
	var forms []model.Form
	found, err := store.GetJSON(ctx, f.scopes.Durable, FormsListKey, &forms)
	if err != nil {
		f.logger.Error("forms list unreadable", "key", FormsListKey, "error", err)
		found = false
		forms = nil
	}
	if !found {
		var legacy []model.Form
		ok, err := store.GetJSON(ctx, f.scopes.Durable, LegacyFormsListKey, &legacy)
		if err != nil {
			f.logger.Error("legacy forms list unreadable", "key", LegacyFormsListKey, "error", err)
		}
		if ok {
			forms = legacy
			if err := store.SetJSON(ctx, f.scopes.Durable, FormsListKey, legacy); err != nil {
				return fmt.Errorf("repository: migrate forms list: %w", err)
			}
			if err := f.scopes.Durable.Remove(ctx, LegacyFormsListKey); err != nil {
				return fmt.Errorf("repository: remove legacy forms list: %w", err)
			}
			f.logger.Info("migrated legacy forms list", "forms", len(legacy))
		}
	}
	for i := range forms {
		if forms[i].UserContext == nil {
			forms[i].UserContext = []model.UserContextEntry{}
		}
		if forms[i].Fields == nil {
			forms[i].Fields = []model.FieldDefinition{}
		}
	}
	f.forms = forms

	raw, err := f.scopes.Session.Get(ctx, CurrentFormKey)
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		f.logger.Error("current form unreadable", "key", CurrentFormKey, "error", err)
	default:
		id := string(raw)
		if f.indexOf(id) >= 0 {
			f.current = id
		} else if err := f.scopes.Session.Remove(ctx, CurrentFormKey); err != nil {
			return fmt.Errorf("repository: clear current form: %w", err)
		}
	}
	return nil
}

// List returns copies of every saved form in creation order.
func (f *Forms) List() []model.Form {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]model.Form, len(f.forms))
	for i, form := range f.forms {
		out[i] = form.Clone()
	}
	return out
}

// Get returns the form with id.
func (f *Forms) Get(id string) (model.Form, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := f.indexOf(id)
	if idx < 0 {
		return model.Form{}, fmt.Errorf("%w: %s", ErrFormNotFound, id)
	}
	return f.forms[idx].Clone(), nil
}

// Find looks a form up by id or, failing that, by case-insensitive name.
func (f *Forms) Find(id, name string) (model.Form, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := f.find(id, name)
	if idx < 0 {
		return model.Form{}, false
	}
	return f.forms[idx].Clone(), true
}

// Create saves a new empty form and makes it current.
func (f *Forms) Create(ctx context.Context, name string, userContext []model.UserContextEntry) (model.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	name = model.SanitizeText(name)
	if name == "" {
		name = DefaultFormName
	}
	now := f.now().UTC()
	form := model.Form{
		ID:          f.newID(),
		Name:        name,
		CreatedAt:   now,
		UpdatedAt:   now,
		Fields:      []model.FieldDefinition{},
		UserContext: NormalizeContext(userContext),
	}
	next := append(f.snapshot(), form)
	if err := f.persist(ctx, next); err != nil {
		return model.Form{}, err
	}
	f.forms = next
	if err := f.setCurrent(ctx, form.ID); err != nil {
		return model.Form{}, err
	}
	return form.Clone(), nil
}

// Update applies mutate to a copy of the form and saves it. The id and
// creation time are preserved and the field count is recomputed.
func (f *Forms) Update(ctx context.Context, id string, mutate func(*model.Form)) (model.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.update(ctx, id, mutate)
}

func (f *Forms) update(ctx context.Context, id string, mutate func(*model.Form)) (model.Form, error) {
	idx := f.indexOf(id)
	if idx < 0 {
		return model.Form{}, fmt.Errorf("%w: %s", ErrFormNotFound, id)
	}
	next := f.snapshot()
	form := next[idx].Clone()
	if mutate != nil {
		mutate(&form)
	}
	form.ID = f.forms[idx].ID
	form.CreatedAt = f.forms[idx].CreatedAt
	form.Name = model.SanitizeText(form.Name)
	if form.Name == "" {
		form.Name = f.forms[idx].Name
	}
	if form.Fields == nil {
		form.Fields = []model.FieldDefinition{}
	}
	if form.UserContext == nil {
		form.UserContext = []model.UserContextEntry{}
	}
	form.FieldCount = len(form.Fields)
	form.UpdatedAt = f.now().UTC()
	next[idx] = form
	if err := f.persist(ctx, next); err != nil {
		return model.Form{}, err
	}
	f.forms = next
	return form.Clone(), nil
}

// Delete removes the form and its rule set. Deleting the current form clears
// the current pointer.
func (f *Forms) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.indexOf(id)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrFormNotFound, id)
	}
	next := append(f.snapshot()[:idx:idx], f.forms[idx+1:]...)
	if err := f.persist(ctx, next); err != nil {
		return err
	}
	f.forms = next
	if err := f.scopes.Durable.Remove(ctx, RulesKey(id)); err != nil {
		return fmt.Errorf("repository: remove rules of %s: %w", id, err)
	}
	if f.current == id {
		return f.setCurrent(ctx, "")
	}
	return nil
}

// Copy duplicates a form with its fields, user context, and rules. An empty
// name yields "Copy of {source name}". The current form is unchanged.
func (f *Forms) Copy(ctx context.Context, sourceID, name string) (model.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.indexOf(sourceID)
	if idx < 0 {
		return model.Form{}, fmt.Errorf("%w: %s", ErrFormNotFound, sourceID)
	}
	source := f.forms[idx]
	name = model.SanitizeText(name)
	if name == "" {
		name = "Copy of " + source.Name
	}

	now := f.now().UTC()
	copied := source.Clone()
	copied.ID = f.newID()
	copied.Name = name
	copied.CreatedAt = now
	copied.UpdatedAt = now
	copied.FieldCount = len(copied.Fields)
	copied.RuleCount = 0

	raw, err := f.scopes.Durable.Get(ctx, RulesKey(sourceID))
	switch {
	case errors.Is(err, store.ErrNotFound):
	case err != nil:
		return model.Form{}, fmt.Errorf("repository: read rules of %s: %w", sourceID, err)
	default:
		var stored []json.RawMessage
		if err := json.Unmarshal(raw, &stored); err != nil {
			f.logger.Error("rules unreadable during copy", "form", sourceID, "error", err)
			break
		}
		if err := f.scopes.Durable.Set(ctx, RulesKey(copied.ID), raw); err != nil {
			return model.Form{}, fmt.Errorf("repository: copy rules: %w", err)
		}
		copied.RuleCount = len(stored)
	}

	next := append(f.snapshot(), copied)
	if err := f.persist(ctx, next); err != nil {
		return model.Form{}, err
	}
	f.forms = next
	return copied.Clone(), nil
}

// SetCurrent points the session at id. An empty id clears the pointer.
func (f *Forms) SetCurrent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if id != "" && f.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrFormNotFound, id)
	}
	return f.setCurrent(ctx, id)
}

func (f *Forms) setCurrent(ctx context.Context, id string) error {
	if id == "" {
		if err := f.scopes.Session.Remove(ctx, CurrentFormKey); err != nil {
			return fmt.Errorf("repository: clear current form: %w", err)
		}
		f.current = ""
		return nil
	}
	if err := f.scopes.Session.Set(ctx, CurrentFormKey, []byte(id)); err != nil {
		return fmt.Errorf("repository: set current form: %w", err)
	}
	f.current = id
	return nil
}

// CurrentID returns the current form id, or "".
func (f *Forms) CurrentID() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.current
}

// Current returns the current form.
func (f *Forms) Current() (model.Form, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := f.indexOf(f.current)
	if f.current == "" || idx < 0 {
		return model.Form{}, false
	}
	return f.forms[idx].Clone(), true
}

// Fields returns the field definitions of the form matched by id or name.
// Unknown forms yield an empty list.
func (f *Forms) Fields(id, name string) []model.FieldDefinition {
	f.mu.RLock()
	defer f.mu.RUnlock()
	idx := f.find(id, name)
	if idx < 0 {
		return []model.FieldDefinition{}
	}
	return f.forms[idx].Clone().Fields
}

// SaveFields replaces the fields of the form matched by id or name. A
// non-empty name also renames the form.
func (f *Forms) SaveFields(ctx context.Context, id, name string, fields []model.FieldDefinition) (model.Form, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	idx := f.find(id, name)
	if idx < 0 {
		return model.Form{}, fmt.Errorf("%w: %s", ErrFormNotFound, firstNonEmpty(id, name))
	}
	rename := strings.TrimSpace(name)
	return f.update(ctx, f.forms[idx].ID, func(form *model.Form) {
		if rename != "" {
			form.Name = rename
		}
		form.Fields = make([]model.FieldDefinition, len(fields))
		for i, field := range fields {
			form.Fields[i] = field.Clone()
		}
	})
}

// SetRuleCount records the size of a form's rule set. Unknown forms are
// ignored.
func (f *Forms) SetRuleCount(ctx context.Context, id string, count int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.indexOf(id)
	if idx < 0 || f.forms[idx].RuleCount == count {
		return nil
	}
	_, err := f.update(ctx, id, func(form *model.Form) { form.RuleCount = count })
	return err
}

// UserContext returns the context entries of the form, or of the current
// form when id is empty.
func (f *Forms) UserContext(id string) []model.UserContextEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if id == "" {
		id = f.current
	}
	idx := f.indexOf(id)
	if idx < 0 {
		return []model.UserContextEntry{}
	}
	return append([]model.UserContextEntry{}, f.forms[idx].UserContext...)
}

// RuleReferences is the view of a form's rule set that context edits need.
// It must be the rule set loaded for the form being edited.
type RuleReferences interface {
	Referencing(keys ...string) []rules.Rule
	RemoveByIDs(ctx context.Context, ids ...string) (int, error)
}

// ContextUpdate reports the outcome of SetUserContext.
type ContextUpdate struct {
	Entries  []model.UserContextEntry `json:"entries"`
	Removed  []string                 `json:"removed"`
	Affected int                      `json:"affected"`
	Deleted  int                      `json:"deleted"`
}

// ContextInUseError aborts a context edit that would orphan rules.
type ContextInUseError struct {
	Keys  []string
	Rules int
}

func (e *ContextInUseError) Error() string {
	return fmt.Sprintf("repository: %d rule(s) reference removed context keys %s", e.Rules, strings.Join(e.Keys, ", "))
}

// Is matches ErrContextInUse.
func (e *ContextInUseError) Is(target error) bool {
	return target == ErrContextInUse
}

// SetUserContext replaces a form's user context. Entries are normalized
// first. When removed keys are referenced by rule conditions the edit is
// aborted with a *ContextInUseError unless cascade is set, in which case the
// referencing rules are deleted before the context is saved.
func (f *Forms) SetUserContext(ctx context.Context, id string, entries []model.UserContextEntry, cascade bool, refs RuleReferences) (ContextUpdate, error) {
	previous, err := f.Get(id)
	if err != nil {
		return ContextUpdate{}, err
	}
	normalized := NormalizeContext(entries)
	kept := make(map[string]struct{}, len(normalized))
	for _, entry := range normalized {
		kept[entry.Key] = struct{}{}
	}
	var removed []string
	for _, entry := range previous.UserContext {
		if _, ok := kept[entry.Key]; !ok {
			removed = append(removed, entry.Key)
		}
	}
	sort.Strings(removed)

	update := ContextUpdate{Entries: normalized, Removed: removed}
	if len(removed) > 0 && refs != nil {
		affected := refs.Referencing(removed...)
		update.Affected = len(affected)
		if update.Affected > 0 {
			if !cascade {
				return update, &ContextInUseError{Keys: removed, Rules: update.Affected}
			}
			ids := make([]string, len(affected))
			for i, rule := range affected {
				ids[i] = rule.ID
			}
			deleted, err := refs.RemoveByIDs(ctx, ids...)
			if err != nil {
				return update, err
			}
			update.Deleted = deleted
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := f.update(ctx, id, func(form *model.Form) {
		form.UserContext = normalized
	}); err != nil {
		return update, err
	}
	return update, nil
}

// NormalizeContext trims entries and drops those without a key or display
// name. Later duplicates of a key are dropped.
func NormalizeContext(entries []model.UserContextEntry) []model.UserContextEntry {
	out := make([]model.UserContextEntry, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		entry.Key = strings.TrimSpace(entry.Key)
		entry.DisplayName = model.SanitizeText(entry.DisplayName)
		if s, ok := entry.Value.(string); ok {
			entry.Value = strings.TrimSpace(s)
		}
		if entry.Validate() != nil {
			continue
		}
		if _, dup := seen[entry.Key]; dup {
			continue
		}
		seen[entry.Key] = struct{}{}
		out = append(out, entry)
	}
	return out
}

func (f *Forms) persist(ctx context.Context, forms []model.Form) error {
	if forms == nil {
		forms = []model.Form{}
	}
	if err := store.SetJSON(ctx, f.scopes.Durable, FormsListKey, forms); err != nil {
		return fmt.Errorf("repository: save forms: %w", err)
	}
	return nil
}

func (f *Forms) snapshot() []model.Form {
	return append([]model.Form(nil), f.forms...)
}

func (f *Forms) indexOf(id string) int {
	if id == "" {
		return -1
	}
	for i, form := range f.forms {
		if form.ID == id {
			return i
		}
	}
	return -1
}

func (f *Forms) find(id, name string) int {
	if idx := f.indexOf(id); idx >= 0 {
		return idx
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return -1
	}
	for i, form := range f.forms {
		if strings.ToLower(strings.TrimSpace(form.Name)) == name {
			return i
		}
	}
	return -1
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
