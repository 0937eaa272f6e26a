package options

import (
	"context"
	"errors"
	"sync"

	"github.com/goliatone/go-formrules/pkg/model"
)

// Messages surfaced next to a field whose remote options failed to load.
const (
	MessageLoadFailed = "Failed to load options"
	MessageNoOptions  = "No options returned from API"
)

// FieldState is the option state of one select field.
type FieldState struct {
	Loading bool           `json:"loading"`
	Options []model.Option `json:"options"`
	Error   string         `json:"error,omitempty"`
}

// Tracker records per-field option state. Each load gets a request token;
// results carrying a superseded token are discarded.
type Tracker struct {
	mu     sync.Mutex
	states map[string]FieldState
	tokens map[string]uint64
	seq    uint64
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{
		states: make(map[string]FieldState),
		tokens: make(map[string]uint64),
	}
}

// Begin marks field as loading, clears its error and returns the request
// token. Previously resolved options stay visible while loading.
func (t *Tracker) Begin(field string) uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.tokens[field] = t.seq
	state := t.states[field]
	state.Loading = true
	state.Error = ""
	t.states[field] = state
	return t.seq
}

// Complete stores a result for field. It reports false and changes nothing
// when token is no longer the latest for field.
func (t *Tracker) Complete(field string, token uint64, opts []model.Option, message string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.tokens[field] != token {
		return false
	}
	t.states[field] = FieldState{
		Options: cloneOptions(opts),
		Error:   message,
	}
	return true
}

// Set stores options for field directly, superseding in-flight loads.
func (t *Tracker) Set(field string, opts []model.Option) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.seq++
	t.tokens[field] = t.seq
	t.states[field] = FieldState{Options: cloneOptions(opts)}
}

// State returns the current state for field.
func (t *Tracker) State(field string) FieldState {
	t.mu.Lock()
	defer t.mu.Unlock()
	state := t.states[field]
	state.Options = cloneOptions(state.Options)
	return state
}

// Reset forgets every field.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.states = make(map[string]FieldState)
	t.tokens = make(map[string]uint64)
}

// LoadField resolves options for def and records the outcome in tracker.
// Manual selects resolve synchronously. Remote failures become a field error
// with an empty option list.
func LoadField(ctx context.Context, resolver *Resolver, tracker *Tracker, def model.FieldDefinition, forceRefresh bool) FieldState {
	if def.Type != model.FieldTypeSelect {
		return FieldState{}
	}
	if !def.UsesAPI() {
		tracker.Set(def.Name, ResolveManual(def.Options))
		return tracker.State(def.Name)
	}

	token := tracker.Begin(def.Name)
	opts, err := resolver.ResolveRemote(ctx, *def.APIOptions, forceRefresh)
	message := ""
	switch {
	case errors.Is(err, ErrNoOptions):
		message = MessageNoOptions
	case err != nil:
		message = MessageLoadFailed
	}
	tracker.Complete(def.Name, token, opts, message)
	return tracker.State(def.Name)
}
