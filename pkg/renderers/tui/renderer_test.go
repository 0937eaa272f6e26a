package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/rules"
	"github.com/goliatone/go-formrules/pkg/runtime"
	"github.com/goliatone/go-formrules/pkg/testsupport"
)

type stubDriver struct {
	inputs        []string
	selectIdx     []int
	multiIdx      [][]int
	confirm       []bool
	infoMessages  []string
	inputMessages []string
	selectOptions [][]string
	inputPos      int
	selectPos     int
	multiPos      int
	confirmPos    int
}

func (s *stubDriver) Input(_ context.Context, cfg InputConfig) (string, error) {
	if s.inputPos >= len(s.inputs) {
		return "", errors.New("no input scripted")
	}
	s.inputMessages = append(s.inputMessages, cfg.Message)
	val := s.inputs[s.inputPos]
	s.inputPos++
	return val, nil
}

func (s *stubDriver) Confirm(_ context.Context, _ ConfirmConfig) (bool, error) {
	if s.confirmPos >= len(s.confirm) {
		return false, errors.New("no confirm scripted")
	}
	val := s.confirm[s.confirmPos]
	s.confirmPos++
	return val, nil
}

func (s *stubDriver) Select(_ context.Context, cfg SelectConfig) (int, error) {
	if s.selectPos >= len(s.selectIdx) {
		return -1, errors.New("no select scripted")
	}
	s.selectOptions = append(s.selectOptions, cfg.Options)
	val := s.selectIdx[s.selectPos]
	s.selectPos++
	return val, nil
}

func (s *stubDriver) MultiSelect(_ context.Context, cfg SelectConfig) ([]int, error) {
	if s.multiPos >= len(s.multiIdx) {
		return nil, errors.New("no multiselect scripted")
	}
	s.selectOptions = append(s.selectOptions, cfg.Options)
	val := s.multiIdx[s.multiPos]
	s.multiPos++
	return val, nil
}

func (s *stubDriver) Info(_ context.Context, msg string) error {
	s.infoMessages = append(s.infoMessages, msg)
	return nil
}

func officeSession() *runtime.Session {
	return runtime.NewSession(testsupport.OfficeFields(), testsupport.OfficeRules(), nil)
}

func TestFill_ReevaluatesAfterEachAnswer(t *testing.T) {
	t.Parallel()

	session := officeSession()
	driver := &stubDriver{
		selectIdx: []int{0, 0},
		inputs:    []string{"abc", "10", "hi", "40"},
	}
	r := New(WithPromptDriver(driver))

	got, err := r.Fill(context.Background(), session)
	if err != nil {
		t.Fatalf("Fill returned error: %v", err)
	}

	want := map[string]any{"role": "Admin", "status": "Married", "employees": 40.0, "notes": "hi"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Married", "Divorced"}, driver.selectOptions[1]); diff != "" {
		t.Fatalf("status offered hidden options (-want +got):\n%s", diff)
	}
	wantInfo := []string{"Invalid Employees: enter a number", "Employees: Need more than 30"}
	if diff := cmp.Diff(wantInfo, driver.infoMessages); diff != "" {
		t.Fatalf("info messages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"Employees *", "Employees *", "Notes", "Employees *"}, driver.inputMessages); diff != "" {
		t.Fatalf("prompt order mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_SkipsHiddenFields(t *testing.T) {
	t.Parallel()

	session := officeSession()
	driver := &stubDriver{
		selectIdx: []int{1, 0},
		inputs:    []string{"31"},
	}

	got, err := New(WithPromptDriver(driver)).Fill(context.Background(), session)
	if err != nil {
		t.Fatalf("Fill returned error: %v", err)
	}
	if driver.inputPos != 1 {
		t.Fatalf("notes should not be prompted, inputs consumed %d", driver.inputPos)
	}
	if got["status"] != "Single" {
		t.Fatalf("expected Single for users, got %v", got["status"])
	}
}

func TestFill_AsksRevealedFieldsInRetryRound(t *testing.T) {
	t.Parallel()

	fields := []model.FieldDefinition{
		{Name: "detail", Label: "Detail", Type: model.FieldTypeText},
		{Name: "more", Label: "More", Type: model.FieldTypeCheckbox},
	}
	ruleSet := []rules.Rule{{
		ID:         "show-detail",
		Conditions: []rules.Condition{{Field: "more", Operator: rules.OpIsTrue}},
		Action:     rules.ShowField{TargetField: "detail"},
	}}
	session := runtime.NewSession(fields, ruleSet, nil)
	driver := &stubDriver{confirm: []bool{true}, inputs: []string{"extra"}}

	got, err := New(WithPromptDriver(driver)).Fill(context.Background(), session)
	if err != nil {
		t.Fatalf("Fill returned error: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"detail": "extra", "more": true}, got); diff != "" {
		t.Fatalf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFill_IncompleteAfterRetries(t *testing.T) {
	t.Parallel()

	session := officeSession()
	driver := &stubDriver{selectIdx: []int{1, 1}, inputs: []string{"5"}}

	got, err := New(WithPromptDriver(driver), WithRetryRounds(0)).Fill(context.Background(), session)
	if !errors.Is(err, ErrIncomplete) {
		t.Fatalf("expected ErrIncomplete, got %v", err)
	}
	if !strings.Contains(err.Error(), "employees") {
		t.Fatalf("error should name the field: %v", err)
	}
	if got["employees"] != 5.0 {
		t.Fatalf("payload should still carry answers, got %v", got)
	}
}

func TestFill_LoadsAPIOptionsAndMultiSelect(t *testing.T) {
	t.Parallel()

	fields := []model.FieldDefinition{{
		Name:         "countries",
		Label:        "Countries",
		Type:         model.FieldTypeSelect,
		Multiple:     true,
		SelectSource: model.SelectSourceAPI,
		APIOptions:   &model.ApiOptionSource{URL: "https://example.com/countries"},
	}}
	session := runtime.NewSession(fields, nil, nil)
	driver := &stubDriver{multiIdx: [][]int{{0, 2}}}
	loader := func(_ context.Context, def model.FieldDefinition) ([]model.Option, error) {
		return []model.Option{{Label: "India", Value: "IN"}, {Label: "Pakistan", Value: "PK"}, {Label: "Peru", Value: "PE"}}, nil
	}

	r := New(WithPromptDriver(driver), WithOptionLoader(loader), WithOutputFormat(OutputFormatPrettyText))
	out, err := r.Render(context.Background(), session)
	if err != nil {
		t.Fatalf("Render returned error: %v", err)
	}
	if string(out) != "countries=[\"IN\",\"PE\"]\n" {
		t.Fatalf("unexpected output %q", out)
	}
	if r.ContentType() != "text/plain" {
		t.Fatalf("unexpected content type %q", r.ContentType())
	}
}

func TestFill_ReportsFailedOptionLoad(t *testing.T) {
	t.Parallel()

	fields := []model.FieldDefinition{{
		Name:         "country",
		Label:        "Country",
		Type:         model.FieldTypeSelect,
		SelectSource: model.SelectSourceAPI,
		APIOptions:   &model.ApiOptionSource{URL: "https://example.com/countries"},
	}}
	session := runtime.NewSession(fields, nil, nil)
	driver := &stubDriver{}
	loader := func(context.Context, model.FieldDefinition) ([]model.Option, error) {
		return nil, errors.New("boom")
	}

	if _, err := New(WithPromptDriver(driver), WithOptionLoader(loader), WithRetryRounds(0)).Fill(context.Background(), session); err != nil {
		t.Fatalf("Fill returned error: %v", err)
	}
	want := []string{"Failed to load options for Country", "No options available for Country"}
	if diff := cmp.Diff(want, driver.infoMessages); diff != "" {
		t.Fatalf("info messages mismatch (-want +got):\n%s", diff)
	}
}

func TestFlattenForm(t *testing.T) {
	t.Parallel()

	got := flattenForm(map[string]any{"tags": []string{"a", "b"}, "n": 2.5, "name": "x y"})
	if got != "n=2.5&name=x+y&tags%5B%5D=a&tags%5B%5D=b" {
		t.Fatalf("unexpected form encoding %q", got)
	}
}

func TestParseOutputFormat(t *testing.T) {
	t.Parallel()

	for raw, want := range map[string]OutputFormat{"": OutputFormatJSON, "json": OutputFormatJSON, "form": OutputFormatFormURLEncoded, "pretty": OutputFormatPrettyText} {
		got, err := ParseOutputFormat(raw)
		if err != nil || got != want {
			t.Fatalf("ParseOutputFormat(%q) = %q, %v", raw, got, err)
		}
	}
	if _, err := ParseOutputFormat("xml"); err == nil {
		t.Fatalf("expected error for unknown format")
	}
}
