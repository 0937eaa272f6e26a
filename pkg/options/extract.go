package options

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/goliatone/go-formrules/pkg/model"
)

// ExtractItems walks itemsPath as dot-separated keys. An empty path returns
// payload itself; a missing segment yields nil.
func ExtractItems(payload any, itemsPath string) []any {
	current := payload
	for _, segment := range strings.Split(itemsPath, ".") {
		if segment == "" {
			continue
		}
		obj, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		next, ok := obj[segment]
		if !ok {
			return nil
		}
		current = next
	}
	items, ok := current.([]any)
	if !ok {
		return nil
	}
	return items
}

// MapItems converts raw items into options using the source's label and value
// fields. A field that is absent falls back to the item itself; items that are
// null are dropped.
func MapItems(items []any, src model.ApiOptionSource) []model.Option {
	out := make([]model.Option, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		label := pick(item, src.LabelField)
		value := pick(item, src.ValueField)
		if src.SaveStrategy == model.SaveStrategyLabel {
			value = label
		}
		if label == nil || value == nil {
			continue
		}
		out = append(out, model.Option{
			Label: Stringify(label),
			Value: Stringify(value),
			Item:  item,
		})
	}
	return out
}

func pick(item any, key string) any {
	if key == "" {
		return item
	}
	if obj, ok := item.(map[string]any); ok {
		if v, ok := obj[key]; ok && v != nil {
			return v
		}
	}
	return item
}

// Stringify renders a decoded JSON value as option text.
func Stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case json.Number:
		return v.String()
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(raw)
	}
}
