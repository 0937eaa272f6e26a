package assist

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/goliatone/go-formrules/pkg/model"
)

func TestPrepareFormPrompt(t *testing.T) {
	t.Parallel()

	minLen := 2
	maxVal := 99.0
	fields := []model.FieldDefinition{
		{Name: "name", Label: "Name", Type: model.FieldTypeText, Required: true, Validation: &model.ValidationSpec{MinLength: &minLen}},
		{Name: "status", Type: model.FieldTypeSelect, Options: []string{"Single", "Married"}},
		{Name: "age", Label: "Age", Type: model.FieldTypeNumber, Validation: &model.ValidationSpec{Max: &maxVal}},
	}

	prompt := PrepareFormPrompt("I am Ada", fields, map[string]any{"name": "A"})
	for _, want := range []string{
		`User instruction: "I am Ada"`,
		"- name (text): Name [REQUIRED] - Validation: min length: 2",
		"- status (select): status - Options: Single, Married",
		"- age (number): Age - Validation: max value: 99",
		"Current form values:\n{\n  \"name\": \"A\"\n}",
	} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}

	if strings.Contains(PrepareFormPrompt("x", fields, nil), "Current form values") {
		t.Fatalf("empty values should not be listed")
	}
}

func TestParseFieldValues(t *testing.T) {
	t.Parallel()

	got, err := ParseFieldValues("Sure! Here you go:\n```json\n{\"name\": \"Ada\", \"age\": 30}\n```")
	if err != nil {
		t.Fatalf("ParseFieldValues returned error: %v", err)
	}
	if diff := cmp.Diff(map[string]any{"name": "Ada", "age": 30.0}, got); diff != "" {
		t.Fatalf("values mismatch (-want +got):\n%s", diff)
	}

	for _, bad := range []string{"", "no json here", "{broken", "[1,2]", "null"} {
		if _, err := ParseFieldValues(bad); !errors.Is(err, ErrUnparseable) {
			t.Fatalf("ParseFieldValues(%q) error = %v, want ErrUnparseable", bad, err)
		}
	}
}

func TestParseQualityCheck(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want QualityResult
		ok   bool
	}{
		{"snake case", `{"is_blurry": true, "recommend_reupload": false, "reason": "soft"}`, QualityResult{Blurry: true, Reason: "soft"}, true},
		{"camel case", `{"isBlurry": true}`, QualityResult{Blurry: true}, true},
		{"reupload follows is_blurry", `{"is_blurry": true}`, QualityResult{Blurry: true, RecommendReupload: true}, true},
		{"short synonyms", `{"blurry": false, "reupload": true}`, QualityResult{RecommendReupload: true}, true},
		{"embedded", "Result: {\"is_blurry\": false} done", QualityResult{}, true},
		{"unparseable", "I cannot tell", QualityResult{}, false},
	}
	for _, tt := range tests {
		got, ok := ParseQualityCheck(tt.text)
		if ok != tt.ok {
			t.Fatalf("%s: ok = %v, want %v", tt.name, ok, tt.ok)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Fatalf("%s: result mismatch (-want +got):\n%s", tt.name, diff)
		}
	}

	score, ok := ParseQualityCheck(`{"is_blurry": false, "blurriness_score": 0.2}`)
	if !ok || score.Score == nil || *score.Score != 0.2 {
		t.Fatalf("expected score 0.2, got %+v", score)
	}
}

type stubCompleter struct {
	reply  string
	err    error
	prompt string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

type stubTarget struct {
	applied []string
	err     error
}

func (s *stubTarget) Fields() []model.FieldDefinition {
	return []model.FieldDefinition{{Name: "name", Type: model.FieldTypeText}}
}

func (s *stubTarget) Values() map[string]any { return map[string]any{} }

func (s *stubTarget) ApplyCompletion(text string) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.applied = append(s.applied, text)
	return 1, nil
}

type stubChecker struct {
	reply string
	err   error
}

func (s stubChecker) CheckImage(context.Context, Image) (string, error) { return s.reply, s.err }

func TestAssistantAutofill(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	completer := &stubCompleter{reply: `{"name":"Ada"}`}
	target := &stubTarget{}
	n, err := New(completer).Autofill(ctx, target, "  my name is Ada ")
	if err != nil || n != 1 {
		t.Fatalf("Autofill = %d, %v", n, err)
	}
	if !strings.Contains(completer.prompt, `"my name is Ada"`) {
		t.Fatalf("instruction not trimmed into prompt:\n%s", completer.prompt)
	}

	if n, err := Autofill(ctx, &stubCompleter{}, target, "   "); n != 0 || err != nil {
		t.Fatalf("blank instruction should be a no-op, got %d, %v", n, err)
	}
	if _, err := Autofill(ctx, &stubCompleter{err: errors.New("down")}, target, "x"); err == nil {
		t.Fatalf("expected completer error")
	}
	if _, err := Autofill(ctx, &stubCompleter{reply: "  "}, target, "x"); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected ErrUnparseable for empty reply, got %v", err)
	}
	if _, err := Autofill(ctx, &stubCompleter{reply: "junk"}, &stubTarget{err: ErrUnparseable}, "x"); !errors.Is(err, ErrUnparseable) {
		t.Fatalf("expected target error to surface, got %v", err)
	}
}

func TestAssistantCheckImage(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	if _, ok := New(nil).CheckImage(ctx, Image{}); ok {
		t.Fatalf("no checker should report false")
	}
	got, ok := New(nil, WithQualityChecker(stubChecker{reply: `{"is_blurry":true}`})).CheckImage(ctx, Image{Data: []byte{1}})
	if !ok || !got.Blurry || !got.RecommendReupload {
		t.Fatalf("unexpected verdict %+v, %v", got, ok)
	}
	if _, ok := New(nil, WithQualityChecker(stubChecker{err: errors.New("x")})).CheckImage(ctx, Image{}); ok {
		t.Fatalf("checker failure should report false")
	}
}
