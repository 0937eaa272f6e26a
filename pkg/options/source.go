package options

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// keyConfig mirrors the fields that participate in cache identity. Field order
// is part of the key format.
type keyConfig struct {
	URL          string `json:"url"`
	ItemsPath    string `json:"itemsPath"`
	LabelField   string `json:"labelField"`
	ValueField   string `json:"valueField"`
	SaveStrategy string `json:"saveStrategy"`
}

// CacheKey returns the deterministic cache key for src. Missing fields default
// to "" and saveStrategy defaults to "value".
func CacheKey(src model.ApiOptionSource) string {
	cfg := keyConfig{
		URL:          src.URL,
		ItemsPath:    src.ItemsPath,
		LabelField:   src.LabelField,
		ValueField:   src.ValueField,
		SaveStrategy: string(src.SaveStrategy),
	}
	if cfg.SaveStrategy == "" {
		cfg.SaveStrategy = string(model.SaveStrategyValue)
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(cfg)
	return strings.TrimSuffix(buf.String(), "\n")
}

// ResolveManual maps a manual option list to label == value pairs.
func ResolveManual(options []string) []model.Option {
	out := make([]model.Option, 0, len(options))
	for _, option := range options {
		out = append(out, model.Option{Label: option, Value: option})
	}
	return out
}

// Presets returns the distinct remote sources used by fields, deduplicated by
// cache key in first-seen order. Rule editors offer these for reuse.
func Presets(fields []model.FieldDefinition) []model.ApiOptionSource {
	seen := make(map[string]struct{})
	var out []model.ApiOptionSource
	for _, field := range fields {
		if !field.UsesAPI() || strings.TrimSpace(field.APIOptions.URL) == "" {
			continue
		}
		key := CacheKey(*field.APIOptions)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, *field.APIOptions.Clone())
	}
	return out
}
