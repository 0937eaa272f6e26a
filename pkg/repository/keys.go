package repository

import "errors"

const (
	// FormsListKey holds the JSON array of saved forms.
	FormsListKey = "formlist"
	// LegacyFormsListKey is migrated to FormsListKey on load.
	LegacyFormsListKey = "form-builder-forms-list"
	// CurrentFormKey holds the current form id in the session scope.
	CurrentFormKey = "form-builder-current-form-id"
	// DefaultFormName is used when a form is created without a name.
	DefaultFormName = "Untitled Form"

	rulesKeyPrefix = "form-builder-rules-"
)

var (
	ErrFormNotFound  = errors.New("repository: form not found")
	ErrRuleNotFound  = errors.New("repository: rule not found")
	ErrDuplicateRule = errors.New("repository: a rule with the same conditions and action already exists for this target")
	ErrNoActiveForm  = errors.New("repository: no form loaded")
	ErrContextInUse  = errors.New("repository: user context in use")
)

// RulesKey returns the durable key of a form's rule set.
func RulesKey(formID string) string {
	return rulesKeyPrefix + formID
}
