package model

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func floatPtr(v float64) *float64 { return &v }

func TestFieldDefinitionValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		field FieldDefinition
		want  ValidationErrors
	}{
		{
			name:  "valid text",
			field: FieldDefinition{Name: "title", Type: FieldTypeText},
		},
		{
			name:  "missing name and bad type",
			field: FieldDefinition{Type: "slider"},
			want: ValidationErrors{
				"name": "is required",
				"type": "must be one of [text number checkbox select file date email]",
			},
		},
		{
			name:  "api select without source",
			field: FieldDefinition{Name: "country", Type: FieldTypeSelect, SelectSource: SelectSourceAPI},
			want:  ValidationErrors{"apiOptions": "is required when selectSource is api"},
		},
		{
			name: "api source url",
			field: FieldDefinition{
				Name:         "country",
				Type:         FieldTypeSelect,
				SelectSource: SelectSourceAPI,
				APIOptions:   &ApiOptionSource{URL: "not a url"},
			},
			want: ValidationErrors{"apiOptions.url": "must be a valid URL"},
		},
		{
			name: "bounds and pattern",
			field: FieldDefinition{
				Name: "age",
				Type: FieldTypeNumber,
				Validation: &ValidationSpec{
					Min:     floatPtr(10),
					Max:     floatPtr(1),
					Pattern: "([",
				},
			},
			want: ValidationErrors{
				"validation.minValue": "must not exceed maxValue",
				"validation.pattern":  "is not a valid regular expression",
			},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.field.Validate()
			if tt.want == nil {
				if err != nil {
					t.Fatalf("Validate returned error: %v", err)
				}
				return
			}
			var got ValidationErrors
			if !errors.As(err, &got) {
				t.Fatalf("expected ValidationErrors, got %v", err)
			}
			if !errors.Is(err, ErrInvalidDefinition) {
				t.Fatalf("expected errors.Is ErrInvalidDefinition")
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Fatalf("errors mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"  Office  ":                    "Office",
		"<b>Bold</b> label":             "Bold label",
		"R&D <script>alert(1)</script>": "R&D",
		"":                              "",
	}
	for in, want := range cases {
		if got := SanitizeText(in); got != want {
			t.Fatalf("SanitizeText(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestFormCloneIsDeep(t *testing.T) {
	t.Parallel()

	form := Form{
		ID: "form-1",
		Fields: []FieldDefinition{{
			Name:       "status",
			Type:       FieldTypeSelect,
			Options:    []string{"a", "b"},
			APIOptions: &ApiOptionSource{URL: "https://example.com", Headers: map[string]string{"X": "1"}},
		}},
	}
	clone := form.Clone()
	clone.Fields[0].Options[0] = "z"
	clone.Fields[0].APIOptions.Headers["X"] = "2"

	if form.Fields[0].Options[0] != "a" {
		t.Fatalf("options aliased")
	}
	if form.Fields[0].APIOptions.Headers["X"] != "1" {
		t.Fatalf("headers aliased")
	}
}

func TestContextValues(t *testing.T) {
	t.Parallel()

	got := ContextValues([]UserContextEntry{
		{Key: "role", DisplayName: "Role", Value: "Admin"},
		{Key: "", DisplayName: "Ignored", Value: "x"},
	})
	want := map[string]any{"role": "Admin"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("ContextValues mismatch (-want +got):\n%s", diff)
	}
}
