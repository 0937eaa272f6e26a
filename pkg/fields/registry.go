// Package fields holds the ordered set of field definitions for the active
// form. Names are unique case-insensitively.
package fields

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-formrules/pkg/model"
)

var (
	// ErrDuplicateField reports a name already used by another field.
	ErrDuplicateField = errors.New("fields: duplicate field name")
	// ErrFieldNotFound reports a lookup for an unknown field.
	ErrFieldNotFound = errors.New("fields: field not found")
)

// Registry stores field definitions in insertion order.
type Registry struct {
	mu     sync.RWMutex
	fields []model.FieldDefinition
	index  map[string]int
}

// NewRegistry builds a registry from defs, validating each one.
func NewRegistry(defs ...model.FieldDefinition) (*Registry, error) {
	r := &Registry{index: make(map[string]int, len(defs))}
	for _, def := range defs {
		if err := r.Add(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func foldKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// Add appends a field. Labels are sanitized and the name trimmed.
func (r *Registry) Add(def model.FieldDefinition) error {
	def = normalize(def)
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	key := foldKey(def.Name)
	if _, exists := r.index[key]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateField, def.Name)
	}
	r.index[key] = len(r.fields)
	r.fields = append(r.fields, def)
	return nil
}

// Update replaces the field currently named name. Renaming is allowed as long
// as the new name does not collide with another field.
func (r *Registry) Update(name string, def model.FieldDefinition) error {
	def = normalize(def)
	if err := def.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[foldKey(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	newKey := foldKey(def.Name)
	if other, exists := r.index[newKey]; exists && other != pos {
		return fmt.Errorf("%w: %q", ErrDuplicateField, def.Name)
	}
	delete(r.index, foldKey(name))
	r.index[newKey] = pos
	r.fields[pos] = def
	return nil
}

// Remove deletes a field by name.
func (r *Registry) Remove(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	pos, ok := r.index[foldKey(name)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrFieldNotFound, name)
	}
	r.fields = append(r.fields[:pos], r.fields[pos+1:]...)
	r.reindex()
	return nil
}

// Get returns the field with the given name, matched case-insensitively.
func (r *Registry) Get(name string) (model.FieldDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	pos, ok := r.index[foldKey(name)]
	if !ok {
		return model.FieldDefinition{}, false
	}
	return r.fields[pos].Clone(), true
}

// Type returns the declared type for name, or "" when unknown.
func (r *Registry) Type(name string) model.FieldType {
	def, ok := r.Get(name)
	if !ok {
		return ""
	}
	return def.Type
}

// List returns copies of all fields in order.
func (r *Registry) List() []model.FieldDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.FieldDefinition, len(r.fields))
	for i, def := range r.fields {
		out[i] = def.Clone()
	}
	return out
}

// Names returns field names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.fields))
	for i, def := range r.fields {
		out[i] = def.Name
	}
	return out
}

// Len reports the number of fields.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fields)
}

// Map returns the fields keyed by their exact name.
func (r *Registry) Map() map[string]model.FieldDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]model.FieldDefinition, len(r.fields))
	for _, def := range r.fields {
		out[def.Name] = def.Clone()
	}
	return out
}

func (r *Registry) reindex() {
	r.index = make(map[string]int, len(r.fields))
	for i, def := range r.fields {
		r.index[foldKey(def.Name)] = i
	}
}

func normalize(def model.FieldDefinition) model.FieldDefinition {
	def = def.Clone()
	def.Name = strings.TrimSpace(def.Name)
	def.Label = model.SanitizeText(def.Label)
	def.Placeholder = model.SanitizeText(def.Placeholder)
	if def.Type == model.FieldTypeSelect && def.SelectSource == "" {
		if def.APIOptions != nil {
			def.SelectSource = model.SelectSourceAPI
		} else {
			def.SelectSource = model.SelectSourceManual
		}
	}
	return def
}
