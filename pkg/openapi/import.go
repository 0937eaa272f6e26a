package openapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/goliatone/go-formrules/pkg/fields"
	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/options"
)

// ExtensionKey is the property extension read for field hints.
const ExtensionKey = "x-formrules"

var (
	// ErrInvalidDocument wraps load and validation failures.
	ErrInvalidDocument = errors.New("openapi: invalid document")
	// ErrOperationNotFound reports an unknown operation id.
	ErrOperationNotFound = errors.New("openapi: operation not found")
	// ErrNoRequestSchema reports an operation without an object request body.
	ErrNoRequestSchema = errors.New("openapi: operation has no object request body")
)

// requestMediaTypes are tried in order before any other content type.
var requestMediaTypes = []string{"application/json", "application/x-www-form-urlencoded", "multipart/form-data"}

// Operation identifies one operation of a document.
type Operation struct {
	ID      string `json:"id"`
	Method  string `json:"method"`
	Path    string `json:"path"`
	Summary string `json:"summary,omitempty"`
}

// Option configures an import.
type Option func(*importer)

// WithLogger overrides the logger that reports skipped properties.
func WithLogger(logger *slog.Logger) Option {
	return func(i *importer) {
		if logger != nil {
			i.logger = logger
		}
	}
}

type importer struct {
	logger *slog.Logger
}

// Operations lists the operations of a document sorted by id. Operations
// without an operationId are keyed "method:path".
func Operations(ctx context.Context, data []byte) ([]Operation, error) {
	doc, err := load(ctx, data)
	if err != nil {
		return nil, err
	}
	var out []Operation
	for _, entry := range collect(doc) {
		out = append(out, entry.Operation)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ImportFields converts the request body of operationID into field
// definitions sorted by property name.
func ImportFields(ctx context.Context, data []byte, operationID string, opts ...Option) ([]model.FieldDefinition, error) {
	imp := &importer{logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(imp)
		}
	}

	doc, err := load(ctx, data)
	if err != nil {
		return nil, err
	}
	var op *openapi3.Operation
	for _, entry := range collect(doc) {
		if entry.ID == operationID {
			op = entry.op
			break
		}
	}
	if op == nil {
		return nil, fmt.Errorf("%w: %s", ErrOperationNotFound, operationID)
	}

	schema := requestSchema(op)
	if schema == nil {
		return nil, fmt.Errorf("%w: %s", ErrNoRequestSchema, operationID)
	}
	properties, required := flatten(schema)
	if len(properties) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRequestSchema, operationID)
	}

	names := make([]string, 0, len(properties))
	for name := range properties {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]model.FieldDefinition, 0, len(names))
	for _, name := range names {
		def, ok := imp.field(name, properties[name], required[name])
		if !ok {
			continue
		}
		if err := def.Validate(); err != nil {
			return nil, fmt.Errorf("%w: property %q: %v", ErrInvalidDocument, name, err)
		}
		defs = append(defs, def)
	}

	registry, err := fields.NewRegistry(defs...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return registry.List(), nil
}

func load(ctx context.Context, data []byte) (*openapi3.T, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, fmt.Errorf("%w: document is empty", ErrInvalidDocument)
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := doc.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	return doc, nil
}

type operationEntry struct {
	Operation
	op *openapi3.Operation
}

func collect(doc *openapi3.T) []operationEntry {
	if doc.Paths == nil {
		return nil
	}
	var out []operationEntry
	for path, item := range doc.Paths.Map() {
		if item == nil {
			continue
		}
		for method, op := range item.Operations() {
			if op == nil {
				continue
			}
			id := op.OperationID
			if id == "" {
				id = strings.ToLower(method) + ":" + path
			}
			out = append(out, operationEntry{
				Operation: Operation{ID: id, Method: strings.ToUpper(method), Path: path, Summary: op.Summary},
				op:        op,
			})
		}
	}
	return out
}

func requestSchema(op *openapi3.Operation) *openapi3.Schema {
	if op.RequestBody == nil || op.RequestBody.Value == nil {
		return nil
	}
	content := op.RequestBody.Value.Content
	for _, mediaType := range requestMediaTypes {
		if mt, ok := content[mediaType]; ok && mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	keys := make([]string, 0, len(content))
	for key := range content {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if mt := content[key]; mt != nil && mt.Schema != nil {
			return mt.Schema.Value
		}
	}
	return nil
}

// flatten merges properties and required names across allOf members.
func flatten(schema *openapi3.Schema) (map[string]*openapi3.Schema, map[string]bool) {
	properties := make(map[string]*openapi3.Schema)
	required := make(map[string]bool)
	var walk func(s *openapi3.Schema)
	walk = func(s *openapi3.Schema) {
		if s == nil {
			return
		}
		for _, ref := range s.AllOf {
			if ref != nil {
				walk(ref.Value)
			}
		}
		for name, ref := range s.Properties {
			if ref != nil && ref.Value != nil {
				properties[name] = ref.Value
			}
		}
		for _, name := range s.Required {
			required[name] = true
		}
	}
	walk(schema)
	return properties, required
}

type hints struct {
	Label       string                 `json:"label"`
	Placeholder string                 `json:"placeholder"`
	APIOptions  *model.ApiOptionSource `json:"apiOptions"`
}

func (imp *importer) field(name string, s *openapi3.Schema, required bool) (model.FieldDefinition, bool) {
	def := model.FieldDefinition{
		Name:     name,
		Label:    s.Title,
		Required: required,
		Default:  s.Default,
	}

	switch schemaType(s) {
	case openapi3.TypeString:
		switch {
		case len(s.Enum) > 0:
			def.Type = model.FieldTypeSelect
			def.SelectSource = model.SelectSourceManual
			def.Options = enumOptions(s.Enum)
		case s.Format == "email":
			def.Type = model.FieldTypeEmail
		case s.Format == "date" || s.Format == "date-time":
			def.Type = model.FieldTypeDate
		case s.Format == "binary":
			def.Type = model.FieldTypeFile
			def.Default = nil
		default:
			def.Type = model.FieldTypeText
		}
		if def.Type == model.FieldTypeText || def.Type == model.FieldTypeEmail {
			def.Validation = textValidation(s)
		}
	case openapi3.TypeNumber, openapi3.TypeInteger:
		def.Type = model.FieldTypeNumber
		def.Validation = numberValidation(s)
	case openapi3.TypeBoolean:
		def.Type = model.FieldTypeCheckbox
	case openapi3.TypeArray:
		items := itemSchema(s)
		switch {
		case items != nil && len(items.Enum) > 0:
			def.Type = model.FieldTypeSelect
			def.SelectSource = model.SelectSourceManual
			def.Multiple = true
			def.Options = enumOptions(items.Enum)
		case items != nil && items.Format == "binary":
			def.Type = model.FieldTypeFile
			def.Multiple = true
			def.Default = nil
			def.Validation = fileValidation(s)
		default:
			imp.logger.Debug("openapi property skipped", "property", name, "reason", "unsupported array items")
			return model.FieldDefinition{}, false
		}
	default:
		imp.logger.Debug("openapi property skipped", "property", name, "type", schemaType(s))
		return model.FieldDefinition{}, false
	}

	if h, ok := readHints(s.Extensions); ok {
		if h.Label != "" {
			def.Label = h.Label
		}
		def.Placeholder = h.Placeholder
		if h.APIOptions != nil && h.APIOptions.URL != "" {
			def.Type = model.FieldTypeSelect
			def.SelectSource = model.SelectSourceAPI
			def.APIOptions = h.APIOptions
			def.Options = nil
		}
	}
	if def.Default == nil && def.Type != model.FieldTypeFile {
		def.Default = ""
	}
	if def.Type == model.FieldTypeSelect && def.Default != nil {
		def.Default = options.Stringify(def.Default)
	}
	return def, true
}

func schemaType(s *openapi3.Schema) string {
	if s.Type == nil {
		if len(s.Properties) > 0 {
			return openapi3.TypeObject
		}
		return ""
	}
	for _, t := range s.Type.Slice() {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

func itemSchema(s *openapi3.Schema) *openapi3.Schema {
	if s.Items == nil {
		return nil
	}
	return s.Items.Value
}

func enumOptions(values []any) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		text := options.Stringify(v)
		if text == "" {
			continue
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		out = append(out, text)
	}
	return out
}

func textValidation(s *openapi3.Schema) *model.ValidationSpec {
	spec := &model.ValidationSpec{Pattern: s.Pattern}
	if s.MinLength > 0 {
		spec.MinLength = intPtr(s.MinLength)
	}
	if s.MaxLength != nil {
		spec.MaxLength = intPtr(*s.MaxLength)
	}
	return emptyToNil(spec)
}

func numberValidation(s *openapi3.Schema) *model.ValidationSpec {
	spec := &model.ValidationSpec{}
	if s.Min != nil {
		v := *s.Min
		spec.Min = &v
	}
	if s.Max != nil {
		v := *s.Max
		spec.Max = &v
	}
	if s.MultipleOf != nil && *s.MultipleOf > 0 {
		v := *s.MultipleOf
		spec.Step = &v
	}
	return emptyToNil(spec)
}

func fileValidation(s *openapi3.Schema) *model.ValidationSpec {
	spec := &model.ValidationSpec{}
	if s.MinItems > 0 {
		spec.MinFiles = intPtr(s.MinItems)
	}
	if s.MaxItems != nil {
		spec.MaxFiles = intPtr(*s.MaxItems)
	}
	return emptyToNil(spec)
}

func emptyToNil(spec *model.ValidationSpec) *model.ValidationSpec {
	if *spec == (model.ValidationSpec{}) {
		return nil
	}
	return spec
}

func intPtr(v uint64) *int {
	if v > math.MaxInt32 {
		v = math.MaxInt32
	}
	n := int(v)
	return &n
}

func readHints(extensions map[string]any) (hints, bool) {
	raw, ok := extensions[ExtensionKey]
	if !ok || raw == nil {
		return hints{}, false
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return hints{}, false
	}
	var h hints
	if err := json.Unmarshal(data, &h); err != nil {
		return hints{}, false
	}
	h.Label = model.SanitizeText(h.Label)
	h.Placeholder = model.SanitizeText(h.Placeholder)
	return h, true
}
