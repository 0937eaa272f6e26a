// Package testsupport holds fixtures shared by package tests.
package testsupport

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/repository"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/store"
)

// Context returns a background context for tests.
func Context() context.Context {
	return context.Background()
}

// Repositories wires memory-backed form and rule repositories. Rule counts
// flow back into the forms list.
func Repositories(t testing.TB) (*repository.Forms, *repository.Rules) {
	t.Helper()

	scopes := store.NewMemoryScopes()
	forms, err := repository.NewForms(Context(), scopes)
	if err != nil {
		t.Fatalf("new forms: %v", err)
	}
	return forms, repository.NewRules(scopes.Durable, repository.WithCountSink(forms))
}

// OfficeFields is a small form with a role, a marital status, a required
// head count, and free-text notes.
func OfficeFields() []model.FieldDefinition {
	return []model.FieldDefinition{
		{Name: "role", Label: "Role", Type: model.FieldTypeSelect, SelectSource: model.SelectSourceManual, Options: []string{"Admin", "User"}},
		{Name: "status", Label: "Status", Type: model.FieldTypeSelect, SelectSource: model.SelectSourceManual, Options: []string{"Single", "Married", "Divorced"}},
		{Name: "employees", Label: "Employees", Type: model.FieldTypeNumber, Required: true},
		{Name: "notes", Label: "Notes", Type: model.FieldTypeText},
	}
}

// OfficeRules hides Single for admins, hides notes for users, and requires
// more than 30 employees.
func OfficeRules() []rules.Rule {
	return []rules.Rule{
		{
			ID:         "hide-single",
			Conditions: []rules.Condition{{Field: "role", Operator: rules.OpEquals, Value: "Admin"}},
			Action:     rules.HideOptions{TargetField: "status", Options: []string{"Single"}},
		},
		{
			ID:         "hide-notes",
			Conditions: []rules.Condition{{Field: "role", Operator: rules.OpEquals, Value: "User"}},
			Action:     rules.HideField{TargetField: "notes"},
		},
		{
			ID: "min-employees",
			Action: rules.EnforceComparison{
				TargetField:  "employees",
				Comparator:   rules.CmpGreater,
				ValueSource:  rules.SourceStatic,
				Value:        30.0,
				ErrorMessage: "Need more than 30",
			},
		},
	}
}

// MustLoadJSON decodes the fixture at path into out.
func MustLoadJSON(t testing.TB, path string, out any) {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fixture: %v", err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		t.Fatalf("unmarshal fixture %s: %v", path, err)
	}
}

// WriteGolden writes value as indented JSON when UPDATE_GOLDENS is set and
// reports whether it did.
func WriteGolden(t testing.TB, path string, value any) bool {
	t.Helper()

	if os.Getenv("UPDATE_GOLDENS") == "" {
		return false
	}
	payload, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		t.Fatalf("marshal golden: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir golden dir: %v", err)
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		t.Fatalf("write golden: %v", err)
	}
	return true
}

// AssertDiff fails t with a -want +got diff when the values differ.
func AssertDiff(t testing.TB, want, got any, opts ...cmp.Option) {
	t.Helper()
	if diff := cmp.Diff(want, got, opts...); diff != "" {
		t.Fatalf("mismatch (-want +got):\n%s", diff)
	}
}
