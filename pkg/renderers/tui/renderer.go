package tui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/options"
	"github.com/goliatone/go-formrules/pkg/runtime"
)

// Renderer fills a runtime session from terminal prompts. Fields are asked in
// definition order; the session reconciles after every answer so hidden
// fields are skipped and suppressed options are never offered.
type Renderer struct {
	driver       PromptDriver
	outputFormat OutputFormat
	payloadMode  runtime.PayloadMode
	loadOptions  OptionLoader
	retryRounds  int
	logger       *slog.Logger
}

// New constructs a TUI renderer with defaults (survey driver, JSON output,
// value payloads).
func New(opts ...Option) *Renderer {
	r := &Renderer{
		outputFormat: OutputFormatJSON,
		payloadMode:  runtime.PayloadValue,
		retryRounds:  DefaultRetryRounds,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.driver == nil {
		r.driver = NewSurveyDriver(nil)
	}
	return r
}

// ContentType reports the serialization format used by Render.
func (r *Renderer) ContentType() string {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return "application/x-www-form-urlencoded"
	case OutputFormatPrettyText:
		return "text/plain"
	default:
		return "application/json"
	}
}

// Fill prompts every visible field and returns the session payload. Fields
// left with errors, and fields revealed by a later answer, are asked in up to
// the configured retry rounds; after that the payload is returned with
// ErrIncomplete.
func (r *Renderer) Fill(ctx context.Context, session *runtime.Session) (map[string]any, error) {
	if session == nil {
		return nil, errors.New("tui: session is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	defs := session.Fields()
	asked := make(map[string]bool, len(defs))
	for _, def := range defs {
		ok, err := r.ask(ctx, session, def)
		if err != nil {
			return nil, err
		}
		asked[def.Name] = ok
	}

	for round := 0; round < r.retryRounds; round++ {
		pending := r.pending(session, defs, asked)
		if len(pending) == 0 {
			break
		}
		for _, def := range pending {
			ok, err := r.ask(ctx, session, def)
			if err != nil {
				return nil, err
			}
			asked[def.Name] = asked[def.Name] || ok
		}
	}

	payload := session.Payload(r.payloadMode)
	if !session.Valid() {
		var names []string
		for _, def := range defs {
			if session.Enabled(def.Name) && session.ErrorMessage(def.Name) != "" {
				names = append(names, def.Name)
			}
		}
		return payload, fmt.Errorf("%w: %s", ErrIncomplete, strings.Join(names, ", "))
	}
	return payload, nil
}

func (r *Renderer) pending(session *runtime.Session, defs []model.FieldDefinition, asked map[string]bool) []model.FieldDefinition {
	var out []model.FieldDefinition
	for _, def := range defs {
		if !session.Enabled(def.Name) {
			continue
		}
		if !asked[def.Name] || session.ErrorMessage(def.Name) != "" {
			out = append(out, def)
		}
	}
	return out
}

// Render runs Fill and serializes the payload in the configured format.
func (r *Renderer) Render(ctx context.Context, session *runtime.Session) ([]byte, error) {
	payload, err := r.Fill(ctx, session)
	if err != nil {
		return nil, err
	}
	return r.serialize(payload)
}

// ask prompts one field until the answer parses, then reports the resulting
// error message, if any, once. It reports whether the field was prompted.
func (r *Renderer) ask(ctx context.Context, session *runtime.Session, def model.FieldDefinition) (bool, error) {
	if session.Hidden(def.Name) {
		return false, nil
	}
	if def.UsesAPI() && r.loadOptions != nil {
		opts, err := r.loadOptions(ctx, def)
		if err != nil {
			r.logger.Warn("options not loaded", "field", def.Name, "error", err)
			_ = r.driver.Info(ctx, fmt.Sprintf("Failed to load options for %s", def.DisplayLabel()))
		} else if err := session.SetOptions(def.Name, opts); err != nil {
			return false, err
		}
	}

	for {
		value, err := r.prompt(ctx, session, def)
		var invalid invalidInput
		if errors.As(err, &invalid) {
			_ = r.driver.Info(ctx, fmt.Sprintf("Invalid %s: %s", def.DisplayLabel(), invalid.reason))
			continue
		}
		if errors.Is(err, errSkip) {
			return true, nil
		}
		if err != nil {
			return false, err
		}
		if err := session.SetValue(def.Name, value); err != nil {
			return false, err
		}
		if msg := session.ErrorMessage(def.Name); msg != "" {
			_ = r.driver.Info(ctx, fmt.Sprintf("%s: %s", def.DisplayLabel(), msg))
		}
		return true, nil
	}
}

func (r *Renderer) prompt(ctx context.Context, session *runtime.Session, def model.FieldDefinition) (any, error) {
	current, _ := session.Value(def.Name)
	label := def.DisplayLabel()
	if def.Required {
		label += " *"
	}

	switch def.Type {
	case model.FieldTypeCheckbox:
		checked, _ := current.(bool)
		return r.driver.Confirm(ctx, ConfirmConfig{Message: label, Default: checked, Help: def.Placeholder})

	case model.FieldTypeNumber:
		input, err := r.driver.Input(ctx, InputConfig{Message: label, Default: options.Stringify(current), Help: def.Placeholder})
		if err != nil {
			return nil, err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return nil, invalidInput{reason: "enter a number"}
		}
		return n, nil

	case model.FieldTypeSelect:
		return r.promptSelect(ctx, session, def, label, current)

	case model.FieldTypeFile:
		input, err := r.driver.Input(ctx, InputConfig{
			Message: label,
			Default: strings.Join(stringList(current), ", "),
			Help:    "Comma separated file paths",
		})
		if err != nil {
			return nil, err
		}
		files := []any{}
		for _, part := range strings.Split(input, ",") {
			if part = strings.TrimSpace(part); part != "" {
				files = append(files, part)
			}
		}
		return files, nil

	default:
		help := def.Placeholder
		if def.Type == model.FieldTypeDate && help == "" {
			help = "YYYY-MM-DD"
		}
		input, err := r.driver.Input(ctx, InputConfig{Message: label, Default: options.Stringify(current), Help: help})
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(input), nil
	}
}

func (r *Renderer) promptSelect(ctx context.Context, session *runtime.Session, def model.FieldDefinition, label string, current any) (any, error) {
	visible := session.VisibleOptions(def.Name)
	if len(visible) == 0 {
		_ = r.driver.Info(ctx, fmt.Sprintf("No options available for %s", def.DisplayLabel()))
		return nil, errSkip
	}
	labels := make([]string, len(visible))
	for i, opt := range visible {
		labels[i] = opt.Label
	}

	if def.Multiple {
		selected := make(map[string]struct{})
		for _, v := range stringList(current) {
			selected[v] = struct{}{}
		}
		var defaults []int
		for i, opt := range visible {
			if _, ok := selected[opt.Value]; ok {
				defaults = append(defaults, i)
			}
		}
		indices, err := r.driver.MultiSelect(ctx, SelectConfig{Message: label, Options: labels, Defaults: defaults, Help: def.Placeholder})
		if err != nil {
			return nil, err
		}
		values := make([]string, 0, len(indices))
		for _, idx := range indices {
			if idx < 0 || idx >= len(visible) {
				return nil, invalidInput{reason: "selection out of range"}
			}
			values = append(values, visible[idx].Value)
		}
		return values, nil
	}

	defaultIdx := -1
	for i, opt := range visible {
		if opt.Value == options.Stringify(current) {
			defaultIdx = i
		}
	}
	idx, err := r.driver.Select(ctx, SelectConfig{Message: label, Options: labels, DefaultIndex: defaultIdx, Help: def.Placeholder})
	if err != nil {
		return nil, err
	}
	if idx < 0 || idx >= len(visible) {
		return nil, invalidInput{reason: "selection out of range"}
	}
	return visible[idx].Value, nil
}

func stringList(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			out = append(out, options.Stringify(item))
		}
		return out
	case nil:
		return nil
	default:
		if s := options.Stringify(v); s != "" {
			return []string{s}
		}
		return nil
	}
}

func (r *Renderer) serialize(values map[string]any) ([]byte, error) {
	switch r.outputFormat {
	case OutputFormatFormURLEncoded:
		return []byte(flattenForm(values)), nil
	case OutputFormatPrettyText:
		return []byte(prettyPrint(values)), nil
	default:
		return json.Marshal(values)
	}
}

func flattenForm(values map[string]any) string {
	flattened := url.Values{}
	for key, value := range values {
		switch v := value.(type) {
		case []string:
			for _, item := range v {
				flattened.Add(key+"[]", item)
			}
		case []any:
			for _, item := range v {
				flattened.Add(key+"[]", options.Stringify(item))
			}
		default:
			flattened.Set(key, options.Stringify(v))
		}
	}
	return flattened.Encode()
}

func prettyPrint(values map[string]any) string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, key := range keys {
		fmt.Fprintf(&b, "%s=%s\n", key, options.Stringify(values[key]))
	}
	return b.String()
}
