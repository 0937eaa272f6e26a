package fields

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/model"
)

func TestRegistryRejectsCaseInsensitiveDuplicates(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(model.FieldDefinition{Name: "Email", Type: model.FieldTypeEmail})
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	err = reg.Add(model.FieldDefinition{Name: " email ", Type: model.FieldTypeText})
	if !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("expected ErrDuplicateField, got %v", err)
	}
	if reg.Len() != 1 {
		t.Fatalf("Len = %d, want 1", reg.Len())
	}
}

func TestRegistryUpdateAndRemove(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		model.FieldDefinition{Name: "first", Type: model.FieldTypeText},
		model.FieldDefinition{Name: "second", Type: model.FieldTypeNumber},
		model.FieldDefinition{Name: "third", Type: model.FieldTypeCheckbox},
	)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}

	if err := reg.Update("second", model.FieldDefinition{Name: "FIRST", Type: model.FieldTypeText}); !errors.Is(err, ErrDuplicateField) {
		t.Fatalf("expected duplicate on rename, got %v", err)
	}
	if err := reg.Update("second", model.FieldDefinition{Name: "count", Label: "<i>Count</i>", Type: model.FieldTypeNumber}); err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if err := reg.Remove("FIRST"); err != nil {
		t.Fatalf("Remove returned error: %v", err)
	}
	if err := reg.Remove("missing"); !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("expected ErrFieldNotFound, got %v", err)
	}

	if diff := cmp.Diff([]string{"count", "third"}, reg.Names()); diff != "" {
		t.Fatalf("names mismatch (-want +got):\n%s", diff)
	}
	def, ok := reg.Get("Count")
	if !ok {
		t.Fatalf("expected case-insensitive lookup to succeed")
	}
	if def.Label != "Count" {
		t.Fatalf("label = %q, want sanitized %q", def.Label, "Count")
	}
	if reg.Type("third") != model.FieldTypeCheckbox {
		t.Fatalf("Type(third) = %q", reg.Type("third"))
	}
}

func TestRegistryDefaultsSelectSource(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(
		model.FieldDefinition{Name: "manual", Type: model.FieldTypeSelect, Options: []string{"a"}},
		model.FieldDefinition{Name: "remote", Type: model.FieldTypeSelect, APIOptions: &model.ApiOptionSource{URL: "https://example.com/items"}},
	)
	if err != nil {
		t.Fatalf("NewRegistry returned error: %v", err)
	}
	fields := reg.Map()
	if fields["manual"].SelectSource != model.SelectSourceManual {
		t.Fatalf("manual select source = %q", fields["manual"].SelectSource)
	}
	if !fields["remote"].UsesAPI() {
		t.Fatalf("expected remote field to use api options")
	}
}

func TestRegistryRejectsInvalidDefinition(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(model.FieldDefinition{Name: "x", Type: "unknown"})
	if !errors.Is(err, model.ErrInvalidDefinition) {
		t.Fatalf("expected ErrInvalidDefinition, got %v", err)
	}
}
