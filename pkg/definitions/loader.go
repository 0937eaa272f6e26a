// Package definitions loads form definitions (fields, rules, and user
// context) from JSON or YAML documents.
//
// A document holds a "forms" map keyed by form key:
//
//	forms:
//	  segment:
//	    name: Create Segment
//	    fields: [...]
//	    rules: [...]
//	    userContext: [...]
//
// Fields are validated, rules pass the authoring checks and the duplicate
// check, and rules without an id get "{key}-rule-{n}".
package definitions

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-formrules/pkg/fields"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/rules"
)

// ErrInvalidDocument wraps every load failure.
var ErrInvalidDocument = errors.New("definitions: invalid document")

// Definition is one loaded form.
type Definition struct {
	Key         string                   `json:"key"`
	Name        string                   `json:"name"`
	Source      string                   `json:"source"`
	Fields      []model.FieldDefinition  `json:"fields"`
	Rules       []rules.Rule             `json:"rules"`
	UserContext []model.UserContextEntry `json:"userContext"`
}

// Catalog indexes definitions by lower-cased key.
type Catalog struct {
	forms map[string]Definition
}

// LoadFS walks fsys and parses every .json, .yaml, and .yml file. A nil fsys
// yields an empty catalog.
func LoadFS(fsys fs.FS) (*Catalog, error) {
	catalog := &Catalog{forms: make(map[string]Definition)}
	if fsys == nil {
		return catalog, nil
	}

	err := fs.WalkDir(fsys, ".", func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() || !isDefinitionFile(path) {
			return nil
		}
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return fmt.Errorf("definitions: read %s: %w", path, err)
		}
		defs, err := Parse(data, path)
		if err != nil {
			return err
		}
		for _, def := range defs {
			id := strings.ToLower(def.Key)
			if existing, exists := catalog.forms[id]; exists {
				return fmt.Errorf("%w: duplicate form %q (files %s and %s)", ErrInvalidDocument, def.Key, existing.Source, path)
			}
			catalog.forms[id] = def
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return catalog, nil
}

// Form returns the definition with key, matched case-insensitively.
func (c *Catalog) Form(key string) (Definition, bool) {
	if c == nil {
		return Definition{}, false
	}
	def, ok := c.forms[strings.ToLower(strings.TrimSpace(key))]
	return def, ok
}

// Names returns the form keys in sorted order.
func (c *Catalog) Names() []string {
	if c == nil {
		return nil
	}
	out := make([]string, 0, len(c.forms))
	for _, def := range c.forms {
		out = append(out, def.Key)
	}
	sort.Strings(out)
	return out
}

// Empty reports whether the catalog holds no forms.
func (c *Catalog) Empty() bool {
	return c == nil || len(c.forms) == 0
}

type documentFile struct {
	Forms map[string]formFile `json:"forms"`
}

type formFile struct {
	Name        string                   `json:"name"`
	Fields      []model.FieldDefinition  `json:"fields"`
	Rules       []rules.Rule             `json:"rules"`
	UserContext []model.UserContextEntry `json:"userContext"`
}

// Parse decodes one JSON or YAML document. YAML is converted to JSON first so
// rule actions decode through the same discriminator in both formats.
// Definitions are returned sorted by key.
func Parse(data []byte, source string) ([]Definition, error) {
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: file %s is empty", ErrInvalidDocument, source)
	}

	var doc documentFile
	if err := json.Unmarshal(data, &doc); err != nil {
		var generic any
		if yerr := yaml.Unmarshal(data, &generic); yerr != nil {
			return nil, fmt.Errorf("%w: parse %s: invalid JSON or YAML", ErrInvalidDocument, source)
		}
		asJSON, jerr := json.Marshal(generic)
		if jerr != nil {
			return nil, fmt.Errorf("%w: parse %s: %v", ErrInvalidDocument, source, jerr)
		}
		doc = documentFile{}
		if derr := json.Unmarshal(asJSON, &doc); derr != nil {
			return nil, fmt.Errorf("%w: decode %s: %v", ErrInvalidDocument, source, derr)
		}
	}
	if len(doc.Forms) == 0 {
		return nil, fmt.Errorf("%w: file %s defines no forms", ErrInvalidDocument, source)
	}

	keys := make([]string, 0, len(doc.Forms))
	for key := range doc.Forms {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	out := make([]Definition, 0, len(keys))
	for _, key := range keys {
		def, err := normaliseForm(strings.TrimSpace(key), doc.Forms[key], source)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func normaliseForm(key string, raw formFile, source string) (Definition, error) {
	if key == "" {
		return Definition{}, fmt.Errorf("%w: file %s defines an empty form key", ErrInvalidDocument, source)
	}

	for _, field := range raw.Fields {
		if err := field.Validate(); err != nil {
			return Definition{}, fmt.Errorf("%w: form %q (file %s) field %q: %v", ErrInvalidDocument, key, source, field.Name, err)
		}
	}
	registry, err := fields.NewRegistry(raw.Fields...)
	if err != nil {
		return Definition{}, fmt.Errorf("%w: form %q (file %s): %v", ErrInvalidDocument, key, source, err)
	}
	defs := registry.List()

	prepared := make([]rules.Rule, 0, len(raw.Rules))
	for i, rule := range raw.Rules {
		if rule.ID == "" {
			rule.ID = fmt.Sprintf("%s-rule-%d", key, i+1)
		}
		clean, err := rules.Prepare(rule, defs)
		if err != nil {
			return Definition{}, fmt.Errorf("%w: form %q (file %s) rule %d: %v", ErrInvalidDocument, key, source, i+1, err)
		}
		if rules.IsDuplicate(clean, prepared, "") {
			return Definition{}, fmt.Errorf("%w: form %q (file %s) rule %d duplicates an earlier rule", ErrInvalidDocument, key, source, i+1)
		}
		prepared = append(prepared, clean)
	}

	context := make([]model.UserContextEntry, 0, len(raw.UserContext))
	for _, entry := range raw.UserContext {
		if err := entry.Validate(); err != nil {
			return Definition{}, fmt.Errorf("%w: form %q (file %s) context %q: %v", ErrInvalidDocument, key, source, entry.Key, err)
		}
		context = append(context, entry)
	}

	name := model.SanitizeText(raw.Name)
	if name == "" {
		name = key
	}
	return Definition{
		Key:         key,
		Name:        name,
		Source:      source,
		Fields:      defs,
		Rules:       prepared,
		UserContext: context,
	}, nil
}

func isDefinitionFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
		return true
	default:
		return false
	}
}
