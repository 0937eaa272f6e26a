package model

import "time"

// FieldType enumerates the input kinds a form can contain.
type FieldType string

const (
	FieldTypeText     FieldType = "text"
	FieldTypeNumber   FieldType = "number"
	FieldTypeCheckbox FieldType = "checkbox"
	FieldTypeSelect   FieldType = "select"
	FieldTypeFile     FieldType = "file"
	FieldTypeDate     FieldType = "date"
	FieldTypeEmail    FieldType = "email"
)

// Numeric reports whether values of this type compare numerically.
func (t FieldType) Numeric() bool {
	return t == FieldTypeNumber
}

// Valid reports whether t is a known field type.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeText, FieldTypeNumber, FieldTypeCheckbox, FieldTypeSelect,
		FieldTypeFile, FieldTypeDate, FieldTypeEmail:
		return true
	}
	return false
}

// SelectSource tells where a select field's choices come from.
type SelectSource string

const (
	SelectSourceManual SelectSource = "manual"
	SelectSourceAPI    SelectSource = "api"
)

// SaveStrategy selects which side of a remote item is stored as the value.
type SaveStrategy string

const (
	SaveStrategyValue SaveStrategy = "value"
	SaveStrategyLabel SaveStrategy = "label"
)

// FileKind restricts accepted uploads for file fields.
type FileKind string

const (
	FileKindAll    FileKind = "all"
	FileKindImages FileKind = "images"
)

// ApiOptionSource describes how to map an arbitrary JSON response into
// label/value pairs. ItemsPath is a dot-separated path to the item array.
type ApiOptionSource struct {
	URL          string            `json:"url" yaml:"url" validate:"required,url"`
	Method       string            `json:"method,omitempty" yaml:"method,omitempty" validate:"omitempty,oneof=GET get POST post"`
	ItemsPath    string            `json:"itemsPath,omitempty" yaml:"itemsPath,omitempty"`
	LabelField   string            `json:"labelField,omitempty" yaml:"labelField,omitempty"`
	ValueField   string            `json:"valueField,omitempty" yaml:"valueField,omitempty"`
	SaveStrategy SaveStrategy      `json:"saveStrategy,omitempty" yaml:"saveStrategy,omitempty" validate:"omitempty,oneof=label value"`
	Headers      map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Clone returns a deep copy of the source.
func (s *ApiOptionSource) Clone() *ApiOptionSource {
	if s == nil {
		return nil
	}
	out := *s
	if len(s.Headers) > 0 {
		out.Headers = make(map[string]string, len(s.Headers))
		for k, v := range s.Headers {
			out.Headers[k] = v
		}
	}
	return &out
}

// ValidationSpec holds the constraints relevant to a field type. Constraints
// that do not apply to the owning field's type are ignored.
type ValidationSpec struct {
	Min       *float64 `json:"minValue,omitempty" yaml:"minValue,omitempty"`
	Max       *float64 `json:"maxValue,omitempty" yaml:"maxValue,omitempty"`
	Step      *float64 `json:"step,omitempty" yaml:"step,omitempty" validate:"omitempty,gt=0"`
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty" validate:"omitempty,gte=0"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty" validate:"omitempty,gte=0"`
	Pattern   string   `json:"pattern,omitempty" yaml:"pattern,omitempty" validate:"omitempty,regexp"`
	MinFiles  *int     `json:"minFiles,omitempty" yaml:"minFiles,omitempty" validate:"omitempty,gte=0"`
	MaxFiles  *int     `json:"maxFiles,omitempty" yaml:"maxFiles,omitempty" validate:"omitempty,gte=0"`
}

// FieldDefinition is a named, typed input slot on a form.
type FieldDefinition struct {
	Name         string           `json:"name" yaml:"name" validate:"required"`
	Label        string           `json:"label" yaml:"label"`
	Type         FieldType        `json:"type" yaml:"type" validate:"required,oneof=text number checkbox select file date email"`
	Required     bool             `json:"required" yaml:"required"`
	Placeholder  string           `json:"placeholder,omitempty" yaml:"placeholder,omitempty"`
	Default      any              `json:"default" yaml:"default"`
	Multiple     bool             `json:"multiple,omitempty" yaml:"multiple,omitempty"`
	Options      []string         `json:"options,omitempty" yaml:"options,omitempty"`
	SelectSource SelectSource     `json:"selectSource,omitempty" yaml:"selectSource,omitempty" validate:"omitempty,oneof=manual api"`
	APIOptions   *ApiOptionSource `json:"apiOptions,omitempty" yaml:"apiOptions,omitempty"`
	FileType     FileKind         `json:"fileType,omitempty" yaml:"fileType,omitempty" validate:"omitempty,oneof=all images"`
	Validation   *ValidationSpec  `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// DisplayLabel returns the label, falling back to the name.
func (f FieldDefinition) DisplayLabel() string {
	if f.Label != "" {
		return f.Label
	}
	return f.Name
}

// UsesAPI reports whether the field resolves options remotely.
func (f FieldDefinition) UsesAPI() bool {
	return f.Type == FieldTypeSelect && f.SelectSource == SelectSourceAPI && f.APIOptions != nil
}

// Clone returns a deep copy of the definition.
func (f FieldDefinition) Clone() FieldDefinition {
	out := f
	if f.Options != nil {
		out.Options = append([]string(nil), f.Options...)
	}
	out.APIOptions = f.APIOptions.Clone()
	if f.Validation != nil {
		v := *f.Validation
		out.Validation = &v
	}
	return out
}

// Option is one selectable choice. Item keeps the raw remote item, when any,
// for payloads that submit the full source object.
type Option struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Item  any    `json:"item,omitempty"`
}

// UserContextEntry is a named value supplied at fill time and addressable by
// rule conditions exactly like a field.
type UserContextEntry struct {
	Key         string `json:"key" yaml:"key" validate:"required"`
	DisplayName string `json:"displayName" yaml:"displayName" validate:"required"`
	Value       any    `json:"value" yaml:"value"`
}

// ContextValues flattens entries into a key/value map.
func ContextValues(entries []UserContextEntry) map[string]any {
	out := make(map[string]any, len(entries))
	for _, entry := range entries {
		if entry.Key == "" {
			continue
		}
		out[entry.Key] = entry.Value
	}
	return out
}

// Form is a saved form document.
type Form struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	CreatedAt   time.Time          `json:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt"`
	FieldCount  int                `json:"fieldCount"`
	RuleCount   int                `json:"ruleCount"`
	Fields      []FieldDefinition  `json:"fields"`
	UserContext []UserContextEntry `json:"userContext"`
}

// Clone returns a deep copy of the form.
func (f Form) Clone() Form {
	out := f
	out.Fields = make([]FieldDefinition, len(f.Fields))
	for i, field := range f.Fields {
		out.Fields[i] = field.Clone()
	}
	out.UserContext = append([]UserContextEntry{}, f.UserContext...)
	return out
}
