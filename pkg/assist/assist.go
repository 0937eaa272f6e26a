// Package assist holds the contract with the AI collaborators: the text
// completion used for autofill and the vision check used for image uploads.
//
// Every response is parsed best-effort. A response without a usable JSON
// object leaves the form unchanged and raises no warning.
package assist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// ErrUnparseable reports a response without a JSON object.
var ErrUnparseable = errors.New("assist: response has no JSON object")

// Completer turns a prompt into free text.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Image is an uploaded image handed to a QualityChecker.
type Image struct {
	Data     []byte
	MIMEType string
}

// QualityChecker runs ImageQualityPrompt against an image and returns the raw
// response text.
type QualityChecker interface {
	CheckImage(ctx context.Context, image Image) (string, error)
}

// Target is a form that can receive parsed completions.
type Target interface {
	Fields() []model.FieldDefinition
	Values() map[string]any
	ApplyCompletion(text string) (int, error)
}

// DescribeFields renders one line per field for prompts.
func DescribeFields(fields []model.FieldDefinition) string {
	lines := make([]string, 0, len(fields))
	for _, field := range fields {
		line := fmt.Sprintf("- %s (%s): %s", field.Name, field.Type, field.DisplayLabel())
		if field.Required {
			line += " [REQUIRED]"
		}
		if len(field.Options) > 0 {
			line += " - Options: " + strings.Join(field.Options, ", ")
		}
		if v := field.Validation; v != nil {
			var checks []string
			if v.MinLength != nil && *v.MinLength > 0 {
				checks = append(checks, fmt.Sprintf("min length: %d", *v.MinLength))
			}
			if v.MaxLength != nil && *v.MaxLength > 0 {
				checks = append(checks, fmt.Sprintf("max length: %d", *v.MaxLength))
			}
			if v.Min != nil {
				checks = append(checks, "min value: "+strconv.FormatFloat(*v.Min, 'f', -1, 64))
			}
			if v.Max != nil {
				checks = append(checks, "max value: "+strconv.FormatFloat(*v.Max, 'f', -1, 64))
			}
			if v.Pattern != "" {
				checks = append(checks, "pattern: "+v.Pattern)
			}
			if len(checks) > 0 {
				line += " - Validation: " + strings.Join(checks, ", ")
			}
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// PrepareFormPrompt builds the autofill prompt. Current values are appended
// as indented JSON when any are set.
func PrepareFormPrompt(instruction string, fields []model.FieldDefinition, current map[string]any) string {
	values := ""
	if len(current) > 0 {
		if raw, err := json.MarshalIndent(current, "", "  "); err == nil {
			values = currentValuesPrefix + string(raw)
		}
	}
	return fmt.Sprintf(formFillTemplate, instruction, DescribeFields(fields), values)
}

var objectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// ExtractJSONObject returns the span from the first "{" to the last "}".
func ExtractJSONObject(text string) (string, bool) {
	match := objectPattern.FindString(text)
	return match, match != ""
}

// ParseFieldValues decodes the field/value object embedded in text.
func ParseFieldValues(text string) (map[string]any, error) {
	candidate := strings.TrimSpace(text)
	if match, ok := ExtractJSONObject(candidate); ok {
		candidate = match
	}
	var values map[string]any
	if err := json.Unmarshal([]byte(candidate), &values); err != nil || values == nil {
		return nil, ErrUnparseable
	}
	return values, nil
}

// QualityResult is the parsed image-quality verdict.
type QualityResult struct {
	Blurry            bool     `json:"isBlurry"`
	RecommendReupload bool     `json:"recommendReupload"`
	Score             *float64 `json:"score,omitempty"`
	Reason            string   `json:"reason,omitempty"`
}

// ParseQualityCheck reads a quality verdict. Key synonyms are accepted:
// is_blurry, isBlurry, blurry for the verdict and recommend_reupload,
// reupload, is_blurry for the recommendation. It reports false when text
// holds no JSON object.
func ParseQualityCheck(text string) (QualityResult, bool) {
	var payload map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(text)), &payload); err != nil || payload == nil {
		match, ok := ExtractJSONObject(text)
		if !ok || json.Unmarshal([]byte(match), &payload) != nil || payload == nil {
			return QualityResult{}, false
		}
	}
	result := QualityResult{
		Blurry:            truthy(firstPresent(payload, "is_blurry", "isBlurry", "blurry")),
		RecommendReupload: truthy(firstPresent(payload, "recommend_reupload", "reupload", "is_blurry")),
	}
	if score, ok := payload["blurriness_score"].(float64); ok {
		result.Score = &score
	}
	if reason, ok := payload["reason"].(string); ok {
		result.Reason = reason
	}
	return result, true
}

func firstPresent(payload map[string]any, keys ...string) any {
	for _, key := range keys {
		if v, ok := payload[key]; ok && v != nil {
			return v
		}
	}
	return nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	}
	return true
}

// Option configures an Assistant.
type Option func(*Assistant)

// WithLogger overrides the logger used for collaborator failures.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Assistant) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithQualityChecker enables CheckImage.
func WithQualityChecker(checker QualityChecker) Option {
	return func(a *Assistant) {
		a.checker = checker
	}
}

// Assistant runs autofill and image checks against its collaborators.
type Assistant struct {
	completer Completer
	checker   QualityChecker
	logger    *slog.Logger
}

// New returns an Assistant backed by completer.
func New(completer Completer, opts ...Option) *Assistant {
	a := &Assistant{completer: completer, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// Autofill asks the completer to fill target from instruction and applies the
// parsed values. It returns the number of fields changed. A blank
// instruction is a no-op. Failures are logged and returned; target is left
// unchanged.
func (a *Assistant) Autofill(ctx context.Context, target Target, instruction string) (int, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" || target == nil {
		return 0, nil
	}
	if a.completer == nil {
		return 0, errors.New("assist: no completer configured")
	}
	prompt := PrepareFormPrompt(instruction, target.Fields(), target.Values())
	text, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		a.logger.Warn("autofill completion failed", "error", err)
		return 0, fmt.Errorf("assist: complete: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		a.logger.Warn("autofill completion was empty")
		return 0, ErrUnparseable
	}
	applied, err := target.ApplyCompletion(text)
	if err != nil {
		a.logger.Warn("autofill response unparseable", "error", err)
		return 0, err
	}
	return applied, nil
}

// CheckImage runs the quality check. It reports false when no checker is
// configured, the call fails, or the response cannot be parsed.
func (a *Assistant) CheckImage(ctx context.Context, image Image) (QualityResult, bool) {
	if a.checker == nil {
		return QualityResult{}, false
	}
	text, err := a.checker.CheckImage(ctx, image)
	if err != nil {
		a.logger.Warn("image quality check failed", "error", err)
		return QualityResult{}, false
	}
	result, ok := ParseQualityCheck(text)
	if !ok {
		a.logger.Warn("image quality response unparseable")
	}
	return result, ok
}

// Autofill runs a one-off Assistant with the default logger.
func Autofill(ctx context.Context, completer Completer, target Target, instruction string) (int, error) {
	return New(completer).Autofill(ctx, target, instruction)
}
