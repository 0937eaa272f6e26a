package runtime

import (
	"fmt"

	"github.com/goliatone/go-formrules/pkg/model"
	"github.com/goliatone/go-formrules/pkg/options"
)

// PayloadMode selects how select values are submitted.
type PayloadMode string

const (
	// PayloadValue submits the stored value.
	PayloadValue PayloadMode = "value"
	// PayloadPair submits {key, value} with the option label as value.
	PayloadPair PayloadMode = "pair"
	// PayloadFull submits the raw source item of the option.
	PayloadFull PayloadMode = "full"
)

// ParsePayloadMode validates a mode name. Empty means PayloadValue.
func ParsePayloadMode(raw string) (PayloadMode, error) {
	switch PayloadMode(raw) {
	case "", PayloadValue:
		return PayloadValue, nil
	case PayloadPair, PayloadFull:
		return PayloadMode(raw), nil
	}
	return "", fmt.Errorf("runtime: unknown payload mode %q", raw)
}

// Pair is the submitted shape of a select value in PayloadPair mode.
type Pair struct {
	Key   any `json:"key"`
	Value any `json:"value"`
}

// Payload builds the submission for every field, hidden ones included.
// Missing values submit as "".
func (s *Session) Payload(mode PayloadMode) map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]any, len(s.fields))
	for _, def := range s.fields {
		c := s.controls[def.Name]
		raw := c.value
		if raw == nil {
			raw = ""
		}
		if def.Type != model.FieldTypeSelect || mode == PayloadValue || mode == "" {
			out[def.Name] = raw
			continue
		}
		table := make(map[string]model.Option, len(c.options))
		for _, opt := range c.options {
			table[opt.Value] = opt
		}
		out[def.Name] = mapSelect(raw, table, mode)
	}
	return out
}

func mapSelect(raw any, table map[string]model.Option, mode PayloadMode) any {
	one := func(v any) any {
		opt, found := table[options.Stringify(v)]
		if mode == PayloadPair {
			if found {
				return Pair{Key: v, Value: opt.Label}
			}
			return Pair{Key: v, Value: v}
		}
		switch {
		case found && opt.Item != nil:
			return opt.Item
		case found:
			return Pair{Key: opt.Value, Value: opt.Label}
		}
		return Pair{Key: v, Value: v}
	}
	switch v := raw.(type) {
	case []string:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = one(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = one(item)
		}
		return out
	}
	return one(raw)
}
