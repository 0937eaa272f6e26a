package rules

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ActionType discriminates the action union.
type ActionType string

const (
	ActionHideField         ActionType = "hide-field"
	ActionShowField         ActionType = "show-field"
	ActionHideOptions       ActionType = "hide-options"
	ActionEnforceComparison ActionType = "enforce-comparison"
)

// Action is the effect a satisfied rule applies. The concrete types are
// HideField, ShowField, HideOptions and EnforceComparison.
type Action interface {
	Type() ActionType
	Target() string
	isAction()
}

// HideField hides the target field.
type HideField struct {
	TargetField string
}

// ShowField removes the target field from the hidden set.
type ShowField struct {
	TargetField string
}

// HideOptions suppresses option values of a select target. Options is the
// static suppress list; SourceFields switches to dynamic mode where the
// currently selected values of those fields are suppressed.
type HideOptions struct {
	TargetField  string
	Options      []string
	SourceFields []string
}

// Dynamic reports whether the action takes its suppress list from other
// fields.
func (a HideOptions) Dynamic() bool {
	return len(a.SourceFields) > 0
}

// EnforceComparison flags the target when the comparison does not hold.
type EnforceComparison struct {
	TargetField  string
	Comparator   Comparator
	ValueSource  ValueSource
	Value        any
	OtherField   string
	Offset       *float64
	ErrorMessage string
}

func (HideField) Type() ActionType         { return ActionHideField }
func (ShowField) Type() ActionType         { return ActionShowField }
func (HideOptions) Type() ActionType       { return ActionHideOptions }
func (EnforceComparison) Type() ActionType { return ActionEnforceComparison }

func (a HideField) Target() string         { return a.TargetField }
func (a ShowField) Target() string         { return a.TargetField }
func (a HideOptions) Target() string       { return a.TargetField }
func (a EnforceComparison) Target() string { return a.TargetField }

func (HideField) isAction()         {}
func (ShowField) isAction()         {}
func (HideOptions) isAction()       {}
func (EnforceComparison) isAction() {}

// ErrUnknownAction reports an action type this package cannot decode.
var ErrUnknownAction = errors.New("rules: unknown action type")

type actionWire struct {
	Type         ActionType  `json:"type"`
	TargetField  string      `json:"targetField"`
	Options      []string    `json:"options,omitempty"`
	SourceFields []string    `json:"sourceFields,omitempty"`
	SourceField  string      `json:"sourceField,omitempty"`
	Comparator   Comparator  `json:"comparator,omitempty"`
	ValueSource  ValueSource `json:"valueSource,omitempty"`
	Value        any         `json:"value,omitempty"`
	OtherField   string      `json:"otherField,omitempty"`
	Offset       *float64    `json:"offset,omitempty"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
}

// MarshalAction encodes an action with its "type" discriminator. Dynamic
// hide-options also write the legacy single sourceField.
func MarshalAction(action Action) ([]byte, error) {
	var wire actionWire
	switch a := action.(type) {
	case nil:
		return []byte("null"), nil
	case HideField:
		wire = actionWire{Type: ActionHideField, TargetField: a.TargetField}
	case ShowField:
		wire = actionWire{Type: ActionShowField, TargetField: a.TargetField}
	case HideOptions:
		wire = actionWire{
			Type:         ActionHideOptions,
			TargetField:  a.TargetField,
			Options:      a.Options,
			SourceFields: a.SourceFields,
		}
		if a.Dynamic() {
			wire.SourceField = a.SourceFields[0]
		} else if wire.Options == nil {
			wire.Options = []string{}
		}
	case EnforceComparison:
		wire = actionWire{
			Type:         ActionEnforceComparison,
			TargetField:  a.TargetField,
			Comparator:   a.Comparator,
			ValueSource:  a.ValueSource,
			Value:        a.Value,
			OtherField:   a.OtherField,
			Offset:       a.Offset,
			ErrorMessage: a.ErrorMessage,
		}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownAction, action)
	}
	return json.Marshal(wire)
}

// UnmarshalAction decodes a tagged action. A legacy sourceField is read as a
// one-element SourceFields list.
func UnmarshalAction(data []byte) (Action, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var wire actionWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return nil, fmt.Errorf("rules: decode action: %w", err)
	}
	switch wire.Type {
	case ActionHideField:
		return HideField{TargetField: wire.TargetField}, nil
	case ActionShowField:
		return ShowField{TargetField: wire.TargetField}, nil
	case ActionHideOptions:
		sources := wire.SourceFields
		if len(sources) == 0 && wire.SourceField != "" {
			sources = []string{wire.SourceField}
		}
		return HideOptions{
			TargetField:  wire.TargetField,
			Options:      wire.Options,
			SourceFields: sources,
		}, nil
	case ActionEnforceComparison:
		source := wire.ValueSource
		if source == "" {
			source = SourceStatic
		}
		return EnforceComparison{
			TargetField:  wire.TargetField,
			Comparator:   wire.Comparator,
			ValueSource:  source,
			Value:        wire.Value,
			OtherField:   wire.OtherField,
			Offset:       wire.Offset,
			ErrorMessage: wire.ErrorMessage,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAction, wire.Type)
	}
}

func cloneAction(action Action) Action {
	switch a := action.(type) {
	case HideOptions:
		a.Options = append([]string(nil), a.Options...)
		a.SourceFields = append([]string(nil), a.SourceFields...)
		return a
	case EnforceComparison:
		if a.Offset != nil {
			offset := *a.Offset
			a.Offset = &offset
		}
		return a
	default:
		return action
	}
}
